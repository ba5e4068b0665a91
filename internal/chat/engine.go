package chat

import (
	"sync"

	"github.com/franzhentze92/druma-chat/internal/models"
)

// DeliveryState is the reconciliation lifecycle of one displayed entry.
// A pending entry either becomes confirmed (replaced in place by its
// server copy) or is rolled back, which removes it from the sequence.
type DeliveryState int

const (
	StateConfirmed DeliveryState = iota
	StatePending
)

// Entry is one message of the displayed sequence plus its delivery state.
type Entry struct {
	models.Message
	State DeliveryState
}

// Engine owns the displayed message sequence and is its only writer.
// It merges optimistic inserts, persist acks and push-delivered messages
// into one deduplicated, timestamp-ordered sequence.
type Engine struct {
	mu       sync.Mutex
	entries  []Entry
	seen     map[string]bool // real ids present in the sequence
	onChange func()
}

// NewEngine creates an empty engine. onChange fires after every mutation
// of the sequence and may be nil.
func NewEngine(onChange func()) *Engine {
	return &Engine{
		seen:     make(map[string]bool),
		onChange: onChange,
	}
}

// Reset replaces the sequence with fetched history. History is already
// server-ordered and carries real ids, so every entry is confirmed.
func (e *Engine) Reset(history []models.Message) {
	e.mu.Lock()
	e.entries = make([]Entry, 0, len(history))
	e.seen = make(map[string]bool, len(history))
	for _, msg := range history {
		if msg.ID == "" || e.seen[msg.ID] {
			continue
		}
		e.seen[msg.ID] = true
		e.entries = append(e.entries, Entry{Message: msg, State: StateConfirmed})
	}
	e.mu.Unlock()
	e.notify()
}

// Admit applies one candidate from any source, in this priority order:
//
//  1. a real id already in the sequence is discarded (the push feed
//     re-delivering a message this client just persisted);
//  2. a candidate whose correlation tag matches a pending placeholder
//     replaces it in place and confirms it, whether it arrived as the
//     persist ack or as the push copy;
//  3. a candidate without a real id is an optimistic insert, appended
//     pending;
//  4. anything else is a remote message, inserted in timestamp order.
func (e *Engine) Admit(msg models.Message) {
	e.mu.Lock()
	changed := e.admit(msg)
	e.mu.Unlock()
	if changed {
		e.notify()
	}
}

func (e *Engine) admit(msg models.Message) bool {
	if msg.ID != "" && e.seen[msg.ID] {
		return false
	}

	if msg.ID != "" && msg.Tag != "" {
		for i := range e.entries {
			en := &e.entries[i]
			if en.State == StatePending && en.Tag == msg.Tag {
				en.Message = msg
				en.State = StateConfirmed
				e.seen[msg.ID] = true
				return true
			}
		}
	}

	if msg.ID == "" {
		e.entries = append(e.entries, Entry{Message: msg, State: StatePending})
		return true
	}

	e.seen[msg.ID] = true
	e.insertOrdered(Entry{Message: msg, State: StateConfirmed})
	return true
}

// insertOrdered keeps the sequence sorted by timestamp. Push delivery is
// near-real-time, so the scan from the tail is almost always one step.
func (e *Engine) insertOrdered(en Entry) {
	i := len(e.entries)
	for i > 0 && e.entries[i-1].Timestamp > en.Timestamp {
		i--
	}
	e.entries = append(e.entries, Entry{})
	copy(e.entries[i+1:], e.entries[i:])
	e.entries[i] = en
}

// Rollback removes the pending placeholder with the given tag after a
// failed persist and returns its body so the compose field can be
// restored. A placeholder is never left stuck: it is removed entirely,
// not replaced.
func (e *Engine) Rollback(tag string) (string, bool) {
	e.mu.Lock()
	for i := range e.entries {
		en := e.entries[i]
		if en.State == StatePending && en.Tag == tag {
			body := en.Body
			e.entries = append(e.entries[:i], e.entries[i+1:]...)
			e.mu.Unlock()
			e.notify()
			return body, true
		}
	}
	e.mu.Unlock()
	return "", false
}

// Snapshot returns a copy of the displayed sequence.
func (e *Engine) Snapshot() []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Entry, len(e.entries))
	copy(out, e.entries)
	return out
}

// Len returns the number of displayed entries.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

func (e *Engine) notify() {
	if e.onChange != nil {
		e.onChange()
	}
}
