package handlers

import (
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/franzhentze92/druma-chat/internal/models"
)

func TestOpenChatCreatesRoomAndSeedsWelcome(t *testing.T) {
	srv, db, _ := newTestServer(t)

	app := seedApplication(t, db, models.StatusApproved, true)

	resp := doReq(t, srv, "POST", "/chat/"+app.ID.String(), "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("open chat status = %d, want 200", resp.StatusCode)
	}
	var open OpenChatResponse
	decodeBody(t, resp, &open)

	if open.Room.ApplicationID != app.ID.String() {
		t.Fatal("room not bound to the application")
	}
	if open.Room.AdopterID != app.AdopterID.String() || open.Room.ShelterID != app.ShelterID.String() {
		t.Fatal("room participants do not match the application")
	}
	if len(open.Messages) != 1 || open.Messages[0].Kind != models.KindSystem {
		t.Fatalf("expected the welcome message, got %+v", open.Messages)
	}

	// A second open returns the same room
	resp = doReq(t, srv, "POST", "/chat/"+app.ID.String(), "", nil)
	var again OpenChatResponse
	decodeBody(t, resp, &again)
	if again.Room.ID != open.Room.ID {
		t.Fatalf("second open resolved room %s, want %s", again.Room.ID, open.Room.ID)
	}
}

func TestOpenChatUnresolvedParticipants(t *testing.T) {
	srv, db, _ := newTestServer(t)

	app := seedApplication(t, db, models.StatusPending, false)

	resp := doReq(t, srv, "POST", "/chat/"+app.ID.String(), "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
}

func TestPostMessageRequiresParticipant(t *testing.T) {
	srv, db, _ := newTestServer(t)

	app := seedApplication(t, db, models.StatusPending, true)
	resp := doReq(t, srv, "POST", "/chat/"+app.ID.String(), "", nil)
	var open OpenChatResponse
	decodeBody(t, resp, &open)

	post := PostMessageRequest{Body: "hello"}
	resp = doReq(t, srv, "POST", "/room/"+open.Room.ID+"/messages", "", post)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing sender header: status = %d, want 401", resp.StatusCode)
	}

	resp = doReq(t, srv, "POST", "/room/"+open.Room.ID+"/messages", uuid.NewString(), post)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("stranger sender: status = %d, want 403", resp.StatusCode)
	}
}

func TestReadCursorsSurfaceInHistory(t *testing.T) {
	srv, db, _ := newTestServer(t)

	app := seedApplication(t, db, models.StatusPending, true)
	resp := doReq(t, srv, "POST", "/chat/"+app.ID.String(), "", nil)
	var open OpenChatResponse
	decodeBody(t, resp, &open)

	adopter := open.Room.AdopterID
	shelter := open.Room.ShelterID

	resp = doReq(t, srv, "POST", "/room/"+open.Room.ID+"/messages", adopter, PostMessageRequest{Body: "hi there"})
	var first PostMessageResponse
	decodeBody(t, resp, &first)

	resp = doReq(t, srv, "POST", "/room/"+open.Room.ID+"/read", shelter, MarkReadRequest{Timestamp: first.Timestamp})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("mark read status = %d, want 204", resp.StatusCode)
	}

	resp = doReq(t, srv, "POST", "/room/"+open.Room.ID+"/messages", adopter, PostMessageRequest{Body: "anyone?"})
	resp.Body.Close()

	resp = doReq(t, srv, "GET", "/room/"+open.Room.ID+"/messages", adopter, nil)
	var page RoomMessagesResponse
	decodeBody(t, resp, &page)

	if got := page.ReadCursors[shelter]; got != first.Timestamp {
		t.Fatalf("shelter cursor = %d, want %d", got, first.Timestamp)
	}
	if _, ok := page.ReadCursors[adopter]; ok {
		t.Fatal("adopter never marked read, cursor should be absent")
	}

	if len(page.Messages) != 2 {
		t.Fatalf("history length = %d, want 2", len(page.Messages))
	}
	if page.Messages[0].ReadAt != first.Timestamp {
		t.Fatalf("first message read_at = %d, want %d", page.Messages[0].ReadAt, first.Timestamp)
	}
	if page.Messages[1].ReadAt != 0 {
		t.Fatalf("second message read_at = %d, want 0", page.Messages[1].ReadAt)
	}
}
