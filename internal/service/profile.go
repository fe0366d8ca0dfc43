package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/fluxpro/relay-server-go/internal/model"
)

const (
	PlaceholderName   = "Cliente"
	PlaceholderAvatar = "https://cdn-icons-png.flaticon.com/512/149/149071.png"
)

func PlaceholderProfile() model.Profile {
	return model.Profile{Name: PlaceholderName, AvatarURL: PlaceholderAvatar}
}

type ProfileFetcher interface {
	GetProfile(ctx context.Context, psid, token string) (*GraphProfile, error)
}

// ProfileResolver decorates senders with a display name and avatar. It never
// fails; any upstream problem yields the placeholder profile.
type ProfileResolver struct {
	fetcher ProfileFetcher
}

func NewProfileResolver(fetcher ProfileFetcher) *ProfileResolver {
	return &ProfileResolver{fetcher: fetcher}
}

func (r *ProfileResolver) Resolve(ctx context.Context, remotePersonID, credential string) model.Profile {
	if credential == "" {
		return PlaceholderProfile()
	}

	profile, err := r.fetcher.GetProfile(ctx, remotePersonID, credential)
	if err != nil {
		log.Warn().
			Err(err).
			Str("senderId", remotePersonID).
			Msg("profile lookup failed, using placeholder")
		return PlaceholderProfile()
	}

	result := PlaceholderProfile()
	if profile.Name != "" {
		result.Name = profile.Name
	}
	if profile.ProfilePic != "" {
		result.AvatarURL = profile.ProfilePic
	}
	return result
}
