package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/franzhentze92/druma-chat/internal/models"
)

// RedisStore handles Redis operations for messages, read cursors and the
// insert-event channel consumed by the push feed.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying Redis client for the push feed.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// roomMessagesKey returns the key for a room's message sorted set.
func roomMessagesKey(roomID string) string {
	return fmt.Sprintf("room:%s:messages", roomID)
}

// EventsChannel returns the pub/sub channel carrying a room's insert events.
// The push feed subscribes to the same name.
func EventsChannel(roomID string) string {
	return fmt.Sprintf("room:%s:events", roomID)
}

// readCursorKey returns the key for a participant's read cursor in a room.
func readCursorKey(roomID, userID string) string {
	return fmt.Sprintf("room:%s:read:%s", roomID, userID)
}

// AddMessage stores a message and publishes the insert event to the
// room's channel. The id and timestamp are assigned here, so callers see
// the server-confirmed copy in msg after return.
func (s *RedisStore) AddMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	if msg.Kind == "" {
		msg.Kind = models.KindText
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	key := roomMessagesKey(msg.RoomID)

	err = s.client.ZAdd(ctx, key, redis.Z{
		Score:  float64(msg.Timestamp),
		Member: string(data),
	}).Err()
	if err != nil {
		return err
	}

	// Publish after the durable write so subscribers never see a message
	// that history would miss. Delivery is best-effort.
	s.client.Publish(ctx, EventsChannel(msg.RoomID), string(data))

	return nil
}

// GetRoomMessages retrieves messages from a room, newest first.
// A before timestamp of 0 means "from the latest".
func (s *RedisStore) GetRoomMessages(ctx context.Context, roomID string, limit int, before int64) ([]models.Message, error) {
	key := roomMessagesKey(roomID)

	var maxScore string
	if before > 0 {
		maxScore = fmt.Sprintf("(%d", before) // exclusive
	} else {
		maxScore = "+inf"
	}

	results, err := s.client.ZRevRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   maxScore,
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0, len(results))
	for _, data := range results {
		var msg models.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// History retrieves up to limit messages in ascending timestamp order,
// the order the chat thread renders them in.
func (s *RedisStore) History(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	messages, err := s.GetRoomMessages(ctx, roomID, limit, 0)
	if err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// MarkRead records the read cursor for a participant in a room. Messages
// at or before ts count as read for that participant.
func (s *RedisStore) MarkRead(ctx context.Context, roomID, userID string, ts int64) error {
	return s.client.Set(ctx, readCursorKey(roomID, userID), ts, 0).Err()
}

// GetReadCursor returns the read cursor for a participant, 0 if unset.
func (s *RedisStore) GetReadCursor(ctx context.Context, roomID, userID string) (int64, error) {
	ts, err := s.client.Get(ctx, readCursorKey(roomID, userID)).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}
	return ts, nil
}
