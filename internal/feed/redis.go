package feed

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/franzhentze92/druma-chat/internal/models"
	"github.com/franzhentze92/druma-chat/internal/store"
)

// RedisFeed implements Feed over Redis pub/sub. The message store
// publishes every insert to the room's events channel; this feed turns
// that channel into per-room callbacks.
type RedisFeed struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisFeed creates a feed backed by the given Redis client.
func NewRedisFeed(client *redis.Client, logger zerolog.Logger) *RedisFeed {
	return &RedisFeed{client: client, logger: logger}
}

// Subscribe opens a live feed for one room. The returned Subscription
// must be closed by the caller; onInsert stops being invoked once the
// pump drains after Close.
func (f *RedisFeed) Subscribe(ctx context.Context, roomID string, onInsert func(models.Message)) (Subscription, error) {
	pubsub := f.client.Subscribe(ctx, store.EventsChannel(roomID))

	// Confirm the subscription before handing out the channel, so a
	// successful return means events are already flowing.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	sub := &redisSubscription{pubsub: pubsub}

	go func() {
		for m := range pubsub.Channel() {
			var msg models.Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				f.logger.Warn().
					Err(err).
					Str("room_id", roomID).
					Msg("discarding malformed feed payload")
				continue
			}
			onInsert(msg)
		}
	}()

	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	once   sync.Once
	err    error
}

// Close unsubscribes and stops the pump. Safe to call more than once.
func (s *redisSubscription) Close() error {
	s.once.Do(func() {
		s.err = s.pubsub.Close()
	})
	return s.err
}
