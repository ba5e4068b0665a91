package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/franzhentze92/druma-chat/internal/chat"
	"github.com/franzhentze92/druma-chat/internal/identity"
	"github.com/franzhentze92/druma-chat/internal/models"
	"github.com/franzhentze92/druma-chat/internal/store"
)

// fakeData is an in-memory store.DataStore.
type fakeData struct {
	mu    sync.Mutex
	apps  map[uuid.UUID]*models.Application
	rooms map[uuid.UUID]*models.Room
}

func newFakeData() *fakeData {
	return &fakeData{
		apps:  make(map[uuid.UUID]*models.Application),
		rooms: make(map[uuid.UUID]*models.Room),
	}
}

func (f *fakeData) Close() {}

func (f *fakeData) Ping(ctx context.Context) error { return nil }

func (f *fakeData) CreateApplication(ctx context.Context, petID uuid.UUID, adopterID, shelterID *uuid.UUID, status string) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	app := &models.Application{
		ID:        uuid.New(),
		PetID:     petID,
		AdopterID: adopterID,
		ShelterID: shelterID,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.apps[app.ID] = app
	return app, nil
}

func (f *fakeData) GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[id]
	if !ok {
		return nil, nil
	}
	return app, nil
}

func (f *fakeData) UpdateApplicationStatus(ctx context.Context, id uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if app, ok := f.apps[id]; ok {
		app.Status = status
		app.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (f *fakeData) CreateRoom(ctx context.Context, applicationID, adopterID, shelterID uuid.UUID) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, room := range f.rooms {
		if room.ApplicationID == applicationID {
			return nil, store.ErrRoomExists
		}
	}
	room := &models.Room{
		ID:            uuid.New(),
		ApplicationID: applicationID,
		AdopterID:     adopterID,
		ShelterID:     shelterID,
		CreatedAt:     time.Now().UTC(),
	}
	f.rooms[room.ID] = room
	return room, nil
}

func (f *fakeData) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok {
		return nil, nil
	}
	return room, nil
}

func (f *fakeData) GetRoomByApplication(ctx context.Context, applicationID uuid.UUID) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, room := range f.rooms {
		if room.ApplicationID == applicationID {
			return room, nil
		}
	}
	return nil, nil
}

func (f *fakeData) CountRooms(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.rooms)), nil
}

// fakeMessages is an in-memory MessageStore. Ids and timestamps are
// assigned from a sequence, 1000ms apart.
type fakeMessages struct {
	mu      sync.Mutex
	seq     int
	byRoom  map[string][]models.Message
	cursors map[string]int64
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{
		byRoom:  make(map[string][]models.Message),
		cursors: make(map[string]int64),
	}
}

func (f *fakeMessages) Ping(ctx context.Context) error { return nil }

func (f *fakeMessages) AddMessage(ctx context.Context, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	if msg.ID == "" {
		msg.ID = fmt.Sprintf("M%03d", f.seq)
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = int64(f.seq) * 1000
	}
	if msg.Kind == "" {
		msg.Kind = models.KindText
	}
	f.byRoom[msg.RoomID] = append(f.byRoom[msg.RoomID], *msg)
	return nil
}

func (f *fakeMessages) GetRoomMessages(ctx context.Context, roomID string, limit int, before int64) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.byRoom[roomID]
	out := make([]models.Message, 0, limit)
	for i := len(msgs) - 1; i >= 0 && len(out) < limit; i-- {
		if before > 0 && msgs[i].Timestamp >= before {
			continue
		}
		out = append(out, msgs[i])
	}
	return out, nil
}

func (f *fakeMessages) History(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	page, err := f.GetRoomMessages(ctx, roomID, limit, 0)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}

func (f *fakeMessages) MarkRead(ctx context.Context, roomID, userID string, ts int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursors[roomID+"|"+userID] = ts
	return nil
}

func (f *fakeMessages) GetReadCursor(ctx context.Context, roomID, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursors[roomID+"|"+userID], nil
}

// newTestServer wires the handlers against in-memory stores, mirroring
// the production routes.
func newTestServer(t *testing.T) (*httptest.Server, *fakeData, *fakeMessages) {
	t.Helper()

	db := newFakeData()
	msgs := newFakeMessages()
	logger := zerolog.Nop()
	resolver := chat.NewResolver(db, identity.NewStoreSource(db), msgs, logger)
	h := NewHandler(db, msgs, nil, resolver, logger)

	r := chi.NewRouter()
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)
	r.Route("/applications", func(r chi.Router) {
		r.Post("/", h.CreateApplication)
		r.Get("/{id}", h.GetApplication)
		r.Post("/{id}/status", h.UpdateApplicationStatus)
	})
	r.Post("/chat/{applicationID}", h.OpenChat)
	r.Route("/room/{id}", func(r chi.Router) {
		r.Get("/messages", h.GetRoomMessages)
		r.Post("/messages", h.PostMessage)
		r.Post("/read", h.MarkRead)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, db, msgs
}

// seedApplication inserts an application directly into the fake store.
func seedApplication(t *testing.T, db *fakeData, status string, withShelter bool) *models.Application {
	t.Helper()

	adopter := uuid.New()
	var shelter *uuid.UUID
	if withShelter {
		s := uuid.New()
		shelter = &s
	}
	app, err := db.CreateApplication(context.Background(), uuid.New(), &adopter, shelter, status)
	if err != nil {
		t.Fatalf("seed application: %v", err)
	}
	return app
}

func doReq(t *testing.T, srv *httptest.Server, method, path, user string, body interface{}) *http.Response {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(senderHeader, user)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}
