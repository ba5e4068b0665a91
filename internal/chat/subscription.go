package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/franzhentze92/druma-chat/internal/feed"
	"github.com/franzhentze92/druma-chat/internal/metrics"
	"github.com/franzhentze92/druma-chat/internal/models"
)

// ErrNotIdle is returned by Attach while another subscription is live or
// still tearing down. The previous handle must be detached first.
var ErrNotIdle = errors.New("subscription manager is not idle")

// attachState is the manager's lifecycle:
// idle -> attaching -> attached -> detaching -> idle.
type attachState int

const (
	stateIdle attachState = iota
	stateAttaching
	stateAttached
	stateDetaching
)

// Handle identifies one live attachment. It is owned by the Manager for
// the lifetime of the open room.
type Handle struct {
	roomID string
	sub    feed.Subscription
	closed atomic.Bool
}

// Manager maintains exactly one live push subscription for the currently
// open room, and none when no room is open.
type Manager struct {
	feed   feed.Feed
	logger zerolog.Logger

	mu     sync.Mutex
	state  attachState
	handle *Handle
}

// NewManager creates a Manager over the given push feed.
func NewManager(f feed.Feed, logger zerolog.Logger) *Manager {
	return &Manager{feed: f, logger: logger}
}

// Attach opens the feed for roomID and delivers insert events to onInsert
// in emission order. Only valid from the idle state.
func (m *Manager) Attach(ctx context.Context, roomID string, onInsert func(models.Message)) (*Handle, error) {
	m.mu.Lock()
	if m.state != stateIdle {
		m.mu.Unlock()
		return nil, ErrNotIdle
	}
	m.state = stateAttaching
	m.mu.Unlock()

	h := &Handle{roomID: roomID}
	sub, err := m.feed.Subscribe(ctx, roomID, func(msg models.Message) {
		// Detach is the cancellation token: events racing it are dropped.
		if h.closed.Load() {
			return
		}
		onInsert(msg)
	})
	if err != nil {
		metrics.SubscriptionErrors.Inc()
		m.mu.Lock()
		m.state = stateIdle
		m.mu.Unlock()
		return nil, err
	}

	h.sub = sub
	m.mu.Lock()
	m.state = stateAttached
	m.handle = h
	m.mu.Unlock()
	return h, nil
}

// Detach tears down a handle. Idempotent; safe on nil and on handles that
// were already detached.
func (m *Manager) Detach(h *Handle) {
	if h == nil || h.closed.Swap(true) {
		return
	}

	m.mu.Lock()
	if m.handle == h {
		m.state = stateDetaching
	}
	m.mu.Unlock()

	if h.sub != nil {
		if err := h.sub.Close(); err != nil {
			m.logger.Warn().
				Err(err).
				Str("room_id", h.roomID).
				Msg("feed unsubscribe failed")
		}
	}

	m.mu.Lock()
	if m.handle == h {
		m.handle = nil
		m.state = stateIdle
	}
	m.mu.Unlock()
}

// Attached reports whether a subscription is currently live.
func (m *Manager) Attached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == stateAttached
}
