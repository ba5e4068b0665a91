// Package feed delivers newly-inserted room messages to live subscribers.
package feed

import (
	"context"

	"github.com/franzhentze92/druma-chat/internal/models"
)

// Feed is the push side of the chat transport: subscribe by room id,
// receive every message inserted into that room from the moment of
// subscription. Implementations must deliver events in emission order.
type Feed interface {
	Subscribe(ctx context.Context, roomID string, onInsert func(models.Message)) (Subscription, error)
}

// Subscription is one live room feed. Close is idempotent and safe to
// call multiple times.
type Subscription interface {
	Close() error
}
