package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iconidentify/vidgrab/internal/domain"
	"github.com/iconidentify/vidgrab/internal/service"
)

func newTestEventService() *service.EventService {
	return service.NewEventService(service.EventServiceConfig{RingBufferSize: 100}, testLogger())
}

func TestEventHandler_Recent(t *testing.T) {
	svc := newTestEventService()
	for i := 0; i < 5; i++ {
		svc.EmitInfo(domain.EventCategoryDownload, "test", fmt.Sprintf("event %d", i), nil)
	}
	h := NewEventHandler(svc, testLogger())

	tests := []struct {
		query string
		want  int
	}{
		{"", 5},
		{"?limit=2", 2},
		{"?limit=0", 5},
		{"?limit=abc", 5},
		{"?limit=1000", 5},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		h.Recent(w, httptest.NewRequest(http.MethodGet, "/api/video/events/recent"+tt.query, nil))

		var resp RecentEventsResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("%q: failed to decode response: %v", tt.query, err)
		}
		if len(resp.Events) != tt.want {
			t.Errorf("%q: got %d events, want %d", tt.query, len(resp.Events), tt.want)
		}
	}
}

func TestEventHandler_Stream(t *testing.T) {
	svc := newTestEventService()
	svc.EmitInfo(domain.EventCategorySystem, "test", "before connect", nil)
	h := NewEventHandler(svc, testLogger())

	srv := httptest.NewServer(http.HandlerFunc(h.Stream))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var replayed EventResponse
	if err := conn.ReadJSON(&replayed); err != nil {
		t.Fatalf("read replayed event: %v", err)
	}
	if replayed.Message != "before connect" {
		t.Errorf("replayed message = %q", replayed.Message)
	}

	// Wait for the subscription before emitting.
	deadline := time.Now().Add(time.Second)
	for svc.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	svc.EmitSuccess(domain.EventCategoryDownload, "test", "live event", nil)

	var live EventResponse
	if err := conn.ReadJSON(&live); err != nil {
		t.Fatalf("read live event: %v", err)
	}
	if live.Message != "live event" || live.Severity != "success" {
		t.Errorf("live event = %+v", live)
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	deadline = time.Now().Add(2 * time.Second)
	for svc.SubscriberCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if svc.SubscriberCount() != 0 {
		t.Error("subscriber should be removed after the client disconnects")
	}
}

func TestEventHandler_StreamRequiresUpgrade(t *testing.T) {
	h := NewEventHandler(newTestEventService(), testLogger())

	w := httptest.NewRecorder()
	h.Stream(w, httptest.NewRequest(http.MethodGet, "/api/video/events", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
