package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

const (
	channelPrefix     = "relay:"
	roomChannelPrefix = channelPrefix + "room:"
	connChannelPrefix = channelPrefix + "conn:"

	BroadcastChannel = channelPrefix + "broadcast"
	ChannelPattern   = channelPrefix + "*"
)

// RoomChannel carries events for every subscriber joined to an owner's room.
func RoomChannel(ownerID string) string {
	return roomChannelPrefix + ownerID
}

// ConnectionChannel carries events for a single subscriber connection.
func ConnectionChannel(connectionID string) string {
	return connChannelPrefix + connectionID
}

// ParseChannel splits a relay channel name into its kind ("room", "conn" or
// "broadcast") and target id.
func ParseChannel(channel string) (kind, id string, ok bool) {
	switch {
	case channel == BroadcastChannel:
		return "broadcast", "", true
	case strings.HasPrefix(channel, roomChannelPrefix):
		return "room", strings.TrimPrefix(channel, roomChannelPrefix), true
	case strings.HasPrefix(channel, connChannelPrefix):
		return "conn", strings.TrimPrefix(channel, connChannelPrefix), true
	default:
		return "", "", false
	}
}

func MessageDedupKey(messageID string) string {
	return fmt.Sprintf("%sdedup:%s", channelPrefix, messageID)
}

// PresenceKey marks a subscriber connection as live on some instance.
func PresenceKey(connectionID string) string {
	return fmt.Sprintf("%spresence:%s", channelPrefix, connectionID)
}
