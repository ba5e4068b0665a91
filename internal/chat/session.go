package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/franzhentze92/druma-chat/internal/metrics"
	"github.com/franzhentze92/druma-chat/internal/models"
)

const defaultHistoryLimit = 200

// SessionConfig wires a Session.
type SessionConfig struct {
	Resolver *Resolver
	Messages MessageStore
	Subs     *Manager
	Sender   uuid.UUID
	Logger   zerolog.Logger

	// HistoryLimit caps the initial history fetch. Defaults to 200.
	HistoryLimit int

	// OnChange fires whenever the displayed sequence or the session flags
	// change. May be nil. Rendering is a pure function of Messages() and
	// the flag accessors.
	OnChange func()
}

// Session drives one open chat view: room resolution, history load, live
// subscription and the send pipeline. The feed pump funnels into the same
// admission path as locally-originated events, so interleaving is decided
// entirely by the engine's admission rules.
type Session struct {
	resolver     *Resolver
	messages     MessageStore
	subs         *Manager
	sender       uuid.UUID
	logger       zerolog.Logger
	historyLimit int
	onChange     func()

	mu      sync.Mutex
	epoch   uint64 // bumped by Open and Close; stale async results check it and drop out
	engine  *Engine
	room    *models.Room
	handle  *Handle
	loading bool
	sending bool
	draft   string
	lastErr error
}

// NewSession creates a closed session. Call Open to start a conversation.
func NewSession(cfg SessionConfig) *Session {
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &Session{
		resolver:     cfg.Resolver,
		messages:     cfg.Messages,
		subs:         cfg.Subs,
		sender:       cfg.Sender,
		logger:       cfg.Logger,
		historyLimit: limit,
		onChange:     cfg.OnChange,
	}
}

// Open resolves the room for the application, loads history and attaches
// the live feed. Opening over an already-open session detaches the old
// room first. A history fetch error is non-fatal: the thread renders
// empty but sending still works. A subscription error degrades to
// send-only and is only logged.
func (s *Session) Open(ctx context.Context, applicationID uuid.UUID) error {
	s.mu.Lock()
	old := s.handle
	s.handle = nil
	s.epoch++
	epoch := s.epoch
	engine := NewEngine(s.onChange)
	s.engine = engine
	s.room = nil
	s.loading = true
	s.lastErr = nil
	s.mu.Unlock()
	s.subs.Detach(old)
	s.notify()

	room, err := s.resolver.Resolve(ctx, applicationID)
	if err != nil {
		s.mu.Lock()
		if epoch == s.epoch {
			s.loading = false
			s.lastErr = err
		}
		s.mu.Unlock()
		s.notify()
		return err
	}

	history, histErr := s.messages.History(ctx, room.ID.String(), s.historyLimit)

	s.mu.Lock()
	if epoch != s.epoch {
		// Closed or reopened while the fetch was in flight; discard.
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.room = room
	s.loading = false
	if histErr != nil {
		s.lastErr = fmt.Errorf("history fetch: %w", histErr)
	}
	s.mu.Unlock()
	engine.Reset(history)

	handle, err := s.subs.Attach(ctx, room.ID.String(), func(msg models.Message) {
		s.mu.Lock()
		live := epoch == s.epoch
		s.mu.Unlock()
		if live {
			engine.Admit(msg)
		}
	})
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("room_id", room.ID.String()).
			Msg("live feed unavailable, chat degraded to send-only")
		return nil
	}

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		s.subs.Detach(handle)
		return ErrSessionClosed
	}
	s.handle = handle
	s.mu.Unlock()
	return nil
}

// Close detaches the live subscription unconditionally and invalidates
// any still-pending open or send, which will discard their results.
func (s *Session) Close() {
	s.mu.Lock()
	s.epoch++
	h := s.handle
	s.handle = nil
	s.room = nil
	s.engine = nil
	s.loading = false
	s.sending = false
	s.mu.Unlock()
	s.subs.Detach(h)
	s.notify()
}

// Send runs the send pipeline for one outgoing message: admit the
// optimistic copy, persist, then admit the ack or roll back. At most one
// send is in flight per session; concurrent submits are rejected.
func (s *Session) Send(ctx context.Context, body string) error {
	text := strings.TrimSpace(body)
	if text == "" {
		return ErrEmptyBody
	}

	s.mu.Lock()
	if s.room == nil || s.engine == nil {
		s.mu.Unlock()
		return ErrNoActiveRoom
	}
	if s.sending {
		s.mu.Unlock()
		return ErrSendInFlight
	}
	s.sending = true
	s.draft = ""
	room := s.room
	engine := s.engine
	epoch := s.epoch
	s.mu.Unlock()
	s.notify()

	// Released no matter how the persist call ends, so a failed send
	// never wedges the compose box.
	defer func() {
		s.mu.Lock()
		s.sending = false
		s.mu.Unlock()
		s.notify()
	}()

	tag := uuid.NewString()
	optimistic := models.Message{
		RoomID:    room.ID.String(),
		SenderID:  s.sender.String(),
		Body:      text,
		Kind:      models.KindText,
		Tag:       tag,
		Timestamp: time.Now().UnixMilli(),
	}
	engine.Admit(optimistic)

	persisted := optimistic
	persisted.ID = ""
	persisted.Timestamp = 0 // server assigns both
	if err := s.messages.AddMessage(ctx, &persisted); err != nil {
		if restored, ok := engine.Rollback(tag); ok {
			text = restored
		}
		metrics.OptimisticRollbacks.Inc()
		s.mu.Lock()
		if epoch == s.epoch {
			s.draft = text
			s.lastErr = fmt.Errorf("send failed: %w", err)
		}
		s.mu.Unlock()
		return err
	}

	engine.Admit(persisted)
	return nil
}

// Messages returns a snapshot of the displayed sequence.
func (s *Session) Messages() []Entry {
	s.mu.Lock()
	engine := s.engine
	s.mu.Unlock()
	if engine == nil {
		return nil
	}
	return engine.Snapshot()
}

// Room returns the open room, nil when closed.
func (s *Session) Room() *models.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// Loading reports whether room resolution or the history fetch is still
// in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Sending reports whether a send is in flight.
func (s *Session) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

// Draft returns the compose field contents, restored on rollback.
func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SetDraft stores compose field contents typed by the user.
func (s *Session) SetDraft(text string) {
	s.mu.Lock()
	s.draft = text
	s.mu.Unlock()
}

// LastErr returns the most recent non-fatal error surfaced to the view.
func (s *Session) LastErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}
