package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// CredentialRefresher renews provider credentials that expire before a
// deadline and reports how many were renewed.
type CredentialRefresher interface {
	RefreshExpiring(ctx context.Context, before time.Time) (int, error)
}

type RefreshJob struct {
	refresher CredentialRefresher
	interval  time.Duration
	window    time.Duration
	now       func() time.Time
	done      chan struct{}
}

func NewRefreshJob(refresher CredentialRefresher, interval, window time.Duration) *RefreshJob {
	return &RefreshJob{
		refresher: refresher,
		interval:  interval,
		window:    window,
		now:       time.Now,
		done:      make(chan struct{}),
	}
}

func (j *RefreshJob) Start() {
	go j.run()
	log.Info().
		Dur("interval", j.interval).
		Dur("window", j.window).
		Msg("credential refresh job started")
}

func (j *RefreshJob) Stop() {
	close(j.done)
	log.Info().Msg("credential refresh job stopped")
}

func (j *RefreshJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.refresh()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.refresh()
		}
	}
}

func (j *RefreshJob) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := j.refresher.RefreshExpiring(ctx, j.now().Add(j.window))
	if err != nil {
		log.Error().Err(err).Msg("failed to refresh expiring credentials")
	} else if count > 0 {
		log.Info().Int("count", count).Msg("refreshed expiring credentials")
	}
}
