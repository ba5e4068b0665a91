// Package drumachat provides a Go client for the druma-chat service.
//
// The package is self-contained: requests and responses use its own
// types, so external programs can drive the full chat surface (open a
// thread, page history, post with a correlation tag, stream live
// inserts) without importing the server's packages.
package drumachat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client is a druma-chat API client for one participant.
type Client struct {
	BaseURL    string
	UserID     string
	HTTPClient *http.Client
	Dialer     *websocket.Dialer
}

// NewClient creates a client for the given server and participant.
func NewClient(baseURL, userID string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		UserID:     userID,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Dialer:     websocket.DefaultDialer,
	}
}

// Message is a chat message as the API returns it. ReadAt is non-zero
// once the counterpart's read cursor has reached the message.
type Message struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Body      string `json:"body"`
	Kind      string `json:"kind"` // "text" or "system"
	Tag       string `json:"tag,omitempty"`
	Timestamp int64  `json:"ts"` // Unix ms
	ReadAt    int64  `json:"read_at,omitempty"`
}

// Room represents room metadata.
type Room struct {
	ID            string `json:"id"`
	ApplicationID string `json:"application_id"`
	AdopterID     string `json:"adopter_id"`
	ShelterID     string `json:"shelter_id"`
}

// Application represents an adoption application record.
type Application struct {
	ID        string `json:"id"`
	PetID     string `json:"pet_id"`
	AdopterID string `json:"adopter_id,omitempty"`
	ShelterID string `json:"shelter_id,omitempty"`
	Status    string `json:"status"`
}

// OpenChatResponse is the response from opening a chat: the resolved
// room plus its history in ascending order.
type OpenChatResponse struct {
	Room          Room             `json:"room"`
	Messages      []Message        `json:"messages"`
	HasMore       bool             `json:"has_more"`
	HistoryFailed bool             `json:"history_failed,omitempty"`
	ReadCursors   map[string]int64 `json:"read_cursors,omitempty"`
}

// MessagesPage is one ascending page of room history.
type MessagesPage struct {
	Messages    []Message        `json:"messages"`
	HasMore     bool             `json:"has_more"`
	ReadCursors map[string]int64 `json:"read_cursors,omitempty"`
}

type postMessageResponse struct {
	ID        string `json:"id"`
	Tag       string `json:"tag,omitempty"`
	Timestamp int64  `json:"ts"`
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Druma-User", c.UserID)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return fmt.Errorf("druma-chat error %d: %s", resp.StatusCode, errResp.Error)
	}

	if out != nil {
		return json.Unmarshal(respBody, out)
	}
	return nil
}

// CreateApplication records a new adoption application. Adopter and
// shelter ids may be empty on a draft.
func (c *Client) CreateApplication(ctx context.Context, petID, adopterID, shelterID string) (*Application, error) {
	body, _ := json.Marshal(map[string]string{
		"pet_id":     petID,
		"adopter_id": adopterID,
		"shelter_id": shelterID,
	})

	var app Application
	if err := c.doRequest(ctx, "POST", "/applications", body, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// SetApplicationStatus moves an application to the given status.
func (c *Client) SetApplicationStatus(ctx context.Context, applicationID, status string) error {
	body, _ := json.Marshal(map[string]string{"status": status})
	return c.doRequest(ctx, "POST", "/applications/"+applicationID+"/status", body, nil)
}

// OpenChat finds or creates the room for an adoption application and
// returns it with the thread history.
func (c *Client) OpenChat(ctx context.Context, applicationID string) (*OpenChatResponse, error) {
	var resp OpenChatResponse
	if err := c.doRequest(ctx, "POST", "/chat/"+applicationID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Messages retrieves one page of room history, oldest first within the
// page. A before timestamp of 0 means "from the latest".
func (c *Client) Messages(ctx context.Context, roomID string, limit int, before int64) (*MessagesPage, error) {
	path := fmt.Sprintf("/room/%s/messages?limit=%d", roomID, limit)
	if before > 0 {
		path += fmt.Sprintf("&before=%d", before)
	}

	var page MessagesPage
	if err := c.doRequest(ctx, "GET", path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// PostMessage appends a message to a room. The optional tag is echoed on
// the stored copy and the push event, so a caller can correlate its own
// send with the streamed insert.
func (c *Client) PostMessage(ctx context.Context, roomID, body, tag string) (*Message, error) {
	reqBody, _ := json.Marshal(map[string]string{
		"body": body,
		"tag":  tag,
	})

	var resp postMessageResponse
	if err := c.doRequest(ctx, "POST", "/room/"+roomID+"/messages", reqBody, &resp); err != nil {
		return nil, err
	}

	return &Message{
		ID:        resp.ID,
		From:      c.UserID,
		Body:      body,
		Kind:      "text",
		Tag:       resp.Tag,
		Timestamp: resp.Timestamp,
	}, nil
}

// MarkRead records the caller's read cursor for a room.
func (c *Client) MarkRead(ctx context.Context, roomID string, ts int64) error {
	body, _ := json.Marshal(map[string]int64{"ts": ts})
	return c.doRequest(ctx, "POST", "/room/"+roomID+"/read", body, nil)
}

// Subscribe opens the room's websocket stream and delivers insert events
// to onInsert in emission order. Delivery stops when the stream closes.
func (c *Client) Subscribe(ctx context.Context, roomID string, onInsert func(Message)) (*Stream, error) {
	wsURL := c.BaseURL + "/room/" + roomID + "/ws"
	if strings.HasPrefix(wsURL, "https://") {
		wsURL = "wss://" + wsURL[len("https://"):]
	} else if strings.HasPrefix(wsURL, "http://") {
		wsURL = "ws://" + wsURL[len("http://"):]
	}

	header := http.Header{}
	header.Set("X-Druma-User", c.UserID)

	conn, resp, err := c.Dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, err
	}

	stream := &Stream{conn: conn}

	go func() {
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			onInsert(msg)
		}
	}()

	return stream, nil
}

// Stream is one live room subscription.
type Stream struct {
	conn *websocket.Conn
	once sync.Once
	err  error
}

// Close closes the stream. Safe to call more than once.
func (s *Stream) Close() error {
	s.once.Do(func() {
		s.err = s.conn.Close()
	})
	return s.err
}
