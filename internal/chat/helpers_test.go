package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/franzhentze92/druma-chat/internal/feed"
	"github.com/franzhentze92/druma-chat/internal/identity"
	"github.com/franzhentze92/druma-chat/internal/models"
	"github.com/franzhentze92/druma-chat/internal/store"
)

// fakeRooms is an in-memory RoomStore with the same find-or-create
// semantics as the SQL stores, including the unique-violation path.
type fakeRooms struct {
	mu       sync.Mutex
	byApp    map[uuid.UUID]*models.Room
	creates  int
	raceOnce bool // next CreateRoom loses the race: another room appears and ErrRoomExists is returned
}

func newFakeRooms() *fakeRooms {
	return &fakeRooms{byApp: make(map[uuid.UUID]*models.Room)}
}

func (f *fakeRooms) GetRoomByApplication(ctx context.Context, applicationID uuid.UUID) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.byApp[applicationID]
	if !ok {
		return nil, nil
	}
	cp := *room
	return &cp, nil
}

func (f *fakeRooms) CreateRoom(ctx context.Context, applicationID, adopterID, shelterID uuid.UUID) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.raceOnce {
		f.raceOnce = false
		f.byApp[applicationID] = &models.Room{
			ID:            uuid.New(),
			ApplicationID: applicationID,
			AdopterID:     adopterID,
			ShelterID:     shelterID,
		}
		return nil, store.ErrRoomExists
	}
	if _, ok := f.byApp[applicationID]; ok {
		return nil, store.ErrRoomExists
	}
	room := &models.Room{
		ID:            uuid.New(),
		ApplicationID: applicationID,
		AdopterID:     adopterID,
		ShelterID:     shelterID,
	}
	f.byApp[applicationID] = room
	f.creates++
	cp := *room
	return &cp, nil
}

// fakeMessages is an in-memory MessageStore assigning ids M1, M2, ... and
// millisecond timestamps in insertion order.
type fakeMessages struct {
	mu       sync.Mutex
	seq      int
	stored   []models.Message
	failNext bool

	historyErr  error
	historyGate chan struct{} // when non-nil, History blocks until closed
	appendGate  chan struct{} // when non-nil, AddMessage blocks until closed

	// onAppend runs with the confirmed copy before AddMessage returns,
	// simulating a push echo racing the persist ack.
	onAppend func(models.Message)
}

func (f *fakeMessages) History(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	if f.historyGate != nil {
		<-f.historyGate
	}
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, msg := range f.stored {
		if msg.RoomID == roomID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (f *fakeMessages) AddMessage(ctx context.Context, msg *models.Message) error {
	if f.appendGate != nil {
		<-f.appendGate
	}
	f.mu.Lock()
	if f.failNext {
		f.failNext = false
		f.mu.Unlock()
		return errors.New("backend rejected insert")
	}
	f.seq++
	msg.ID = fmt.Sprintf("M%d", f.seq)
	msg.Timestamp = int64(f.seq) * 1000
	if msg.Kind == "" {
		msg.Kind = models.KindText
	}
	f.stored = append(f.stored, *msg)
	cb := f.onAppend
	confirmed := *msg
	f.mu.Unlock()
	if cb != nil {
		cb(confirmed)
	}
	return nil
}

// fakeIdentity is a fixed identity.Source.
type fakeIdentity struct {
	res identity.Resolution
	err error
}

func (f fakeIdentity) Resolve(ctx context.Context, applicationID uuid.UUID) (identity.Resolution, error) {
	return f.res, f.err
}

// fakeFeed captures the latest subscription and lets tests push events
// through it.
type fakeFeed struct {
	mu       sync.Mutex
	subErr   error
	onInsert func(models.Message)
	subs     []*fakeSub
}

func (f *fakeFeed) Subscribe(ctx context.Context, roomID string, onInsert func(models.Message)) (feed.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return nil, f.subErr
	}
	f.onInsert = onInsert
	sub := &fakeSub{}
	f.subs = append(f.subs, sub)
	return sub, nil
}

// Emit delivers one push event to the current subscriber.
func (f *fakeFeed) Emit(msg models.Message) {
	f.mu.Lock()
	fn := f.onInsert
	f.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}

type fakeSub struct {
	closes int32
}

func (s *fakeSub) Close() error {
	atomic.AddInt32(&s.closes, 1)
	return nil
}

func (s *fakeSub) closeCount() int {
	return int(atomic.LoadInt32(&s.closes))
}

type testEnv struct {
	rooms   *fakeRooms
	msgs    *fakeMessages
	pushes  *fakeFeed
	subs    *Manager
	adopter uuid.UUID
	shelter uuid.UUID
	appID   uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return &testEnv{
		rooms:   newFakeRooms(),
		msgs:    &fakeMessages{},
		pushes:  &fakeFeed{},
		adopter: uuid.New(),
		shelter: uuid.New(),
		appID:   uuid.New(),
	}
}

func (e *testEnv) identity(approved bool) fakeIdentity {
	return fakeIdentity{res: identity.Resolution{
		Adopter:  e.adopter,
		Shelter:  e.shelter,
		Approved: approved,
	}}
}

func (e *testEnv) session(t *testing.T, approved bool) *Session {
	t.Helper()
	logger := zerolog.Nop()
	resolver := NewResolver(e.rooms, e.identity(approved), e.msgs, logger)
	e.subs = NewManager(e.pushes, logger)
	return NewSession(SessionConfig{
		Resolver: resolver,
		Messages: e.msgs,
		Subs:     e.subs,
		Sender:   e.adopter,
		Logger:   logger,
	})
}
