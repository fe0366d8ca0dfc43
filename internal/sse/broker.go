package sse

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	redisclient "github.com/fluxpro/relay-server-go/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
	clientBufferSize  = 100

	// presenceTTL outlives several refreshes so a live connection never
	// expires between them.
	presenceTTL = 3 * HeartbeatInterval
)

// Server to subscriber event names.
const (
	EventConnected    = "connected"
	EventNewMessage   = "newMessage"
	EventLoginSuccess = "loginSuccess"

	// eventJoin forwards a join to the instance holding the connection.
	eventJoin = "_join"
)

var ErrUnknownConnection = errors.New("unknown subscriber connection")

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func NewEvent(eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Data: data}, nil
}

// Client is one live subscriber connection. It belongs to at most one room.
type Client struct {
	ID     string
	Events chan Event
	Done   chan struct{}

	room string
}

// Broker keeps the connection registry and delivers events to rooms,
// single connections or everyone. With redis configured every emit goes
// through pub/sub so subscribers on any instance receive it.
type Broker struct {
	redis *redisclient.Client
	conns map[string]*Client
	rooms map[string]map[*Client]bool // ownerID -> set of clients
	mu    sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Broker{
		redis:  redisClient,
		conns:  make(map[string]*Client),
		rooms:  make(map[string]map[*Client]bool),
		ctx:    ctx,
		cancel: cancel,
	}
	if redisClient != nil {
		go b.subscribeToRedis()
		go b.refreshPresence()
	}
	return b
}

func (b *Broker) Connect() *Client {
	client := &Client{
		ID:     uuid.NewString(),
		Events: make(chan Event, clientBufferSize),
		Done:   make(chan struct{}),
	}

	b.mu.Lock()
	b.conns[client.ID] = client
	total := len(b.conns)
	b.mu.Unlock()

	if b.redis != nil {
		if err := b.redis.Set(b.ctx, redisclient.PresenceKey(client.ID), 1, presenceTTL).Err(); err != nil {
			log.Warn().Err(err).Str("connectionId", client.ID).Msg("failed to record connection presence")
		}
	}

	log.Info().
		Str("connectionId", client.ID).
		Int("clientCount", total).
		Msg("sse client connected")

	return client
}

func (b *Broker) Disconnect(client *Client) {
	b.mu.Lock()
	if _, ok := b.conns[client.ID]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.conns, client.ID)
	b.leaveLocked(client)
	close(client.Done)
	total := len(b.conns)
	b.mu.Unlock()

	// Disconnects also happen during shutdown, after the broker context ends.
	if b.redis != nil {
		if err := b.redis.Del(context.Background(), redisclient.PresenceKey(client.ID)).Err(); err != nil {
			log.Warn().Err(err).Str("connectionId", client.ID).Msg("failed to clear connection presence")
		}
	}

	log.Info().
		Str("connectionId", client.ID).
		Int("clientCount", total).
		Msg("sse client disconnected")
}

// Join places a connection in the owner's private room. Joining the same
// room twice is a no-op; joining another room moves the connection. A
// connection that is live on no instance yields ErrUnknownConnection.
func (b *Broker) Join(ctx context.Context, connectionID, ownerID string) error {
	if b.joinLocal(connectionID, ownerID) {
		return nil
	}
	if b.redis == nil {
		return ErrUnknownConnection
	}

	n, err := b.redis.Exists(ctx, redisclient.PresenceKey(connectionID)).Result()
	if err != nil {
		log.Warn().Err(err).Str("connectionId", connectionID).Msg("presence check failed, forwarding join")
	} else if n == 0 {
		return ErrUnknownConnection
	}

	event, err := NewEvent(eventJoin, ownerID)
	if err != nil {
		return err
	}
	return b.publish(ctx, redisclient.ConnectionChannel(connectionID), event)
}

func (b *Broker) joinLocal(connectionID, ownerID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	client, ok := b.conns[connectionID]
	if !ok {
		return false
	}
	if client.room == ownerID {
		return true
	}

	b.leaveLocked(client)
	if b.rooms[ownerID] == nil {
		b.rooms[ownerID] = make(map[*Client]bool)
	}
	b.rooms[ownerID][client] = true
	client.room = ownerID

	log.Info().
		Str("connectionId", connectionID).
		Str("ownerId", ownerID).
		Int("roomSize", len(b.rooms[ownerID])).
		Msg("sse client joined room")

	return true
}

func (b *Broker) leaveLocked(client *Client) {
	if client.room == "" {
		return
	}
	if members, ok := b.rooms[client.room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(b.rooms, client.room)
		}
	}
	client.room = ""
}

func (b *Broker) EmitToRoom(ctx context.Context, ownerID string, event Event) error {
	if b.redis != nil {
		return b.publish(ctx, redisclient.RoomChannel(ownerID), event)
	}
	b.deliverRoom(ownerID, event)
	return nil
}

func (b *Broker) Broadcast(ctx context.Context, event Event) error {
	if b.redis != nil {
		return b.publish(ctx, redisclient.BroadcastChannel, event)
	}
	b.deliverAll(event)
	return nil
}

func (b *Broker) EmitToConnection(ctx context.Context, connectionID string, event Event) error {
	if b.redis != nil {
		return b.publish(ctx, redisclient.ConnectionChannel(connectionID), event)
	}
	b.deliverConnection(connectionID, event)
	return nil
}

func (b *Broker) publish(ctx context.Context, channel string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.redis.Publish(ctx, channel, data).Err()
}

// refreshPresence keeps the presence keys of local connections alive.
func (b *Broker) refreshPresence() {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			b.mu.RLock()
			ids := make([]string, 0, len(b.conns))
			for id := range b.conns {
				ids = append(ids, id)
			}
			b.mu.RUnlock()

			if len(ids) == 0 {
				continue
			}
			pipe := b.redis.Pipeline()
			for _, id := range ids {
				pipe.Expire(b.ctx, redisclient.PresenceKey(id), presenceTTL)
			}
			if _, err := pipe.Exec(b.ctx); err != nil {
				log.Warn().Err(err).Int("connections", len(ids)).Msg("failed to refresh connection presence")
			}
		}
	}
}

func (b *Broker) subscribeToRedis() {
	pubsub := b.redis.PSubscribe(b.ctx, redisclient.ChannelPattern)
	defer pubsub.Close()

	log.Debug().
		Str("pattern", redisclient.ChannelPattern).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-b.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Str("channel", msg.Channel).Msg("failed to unmarshal event")
				continue
			}

			b.dispatch(msg.Channel, event)
		}
	}
}

func (b *Broker) dispatch(channel string, event Event) {
	kind, id, ok := redisclient.ParseChannel(channel)
	if !ok {
		return
	}

	switch kind {
	case "room":
		b.deliverRoom(id, event)
	case "broadcast":
		b.deliverAll(event)
	case "conn":
		if event.Type == eventJoin {
			var ownerID string
			if err := json.Unmarshal(event.Data, &ownerID); err == nil {
				b.joinLocal(id, ownerID)
			}
			return
		}
		b.deliverConnection(id, event)
	}
}

func (b *Broker) deliverRoom(ownerID string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for client := range b.rooms[ownerID] {
		send(client, event)
	}
}

func (b *Broker) deliverAll(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, client := range b.conns {
		send(client, event)
	}
}

func (b *Broker) deliverConnection(connectionID string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if client, ok := b.conns[connectionID]; ok {
		send(client, event)
	}
}

func send(client *Client, event Event) {
	select {
	case client.Events <- event:
	default:
		log.Warn().
			Str("connectionId", client.ID).
			Str("event", event.Type).
			Msg("client event buffer full, dropping event")
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, client := range b.conns {
		close(client.Done)
	}
	b.conns = make(map[string]*Client)
	b.rooms = make(map[string]map[*Client]bool)
}

func (b *Broker) RoomSize(ownerID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[ownerID])
}

func (b *Broker) TotalClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.conns)
}
