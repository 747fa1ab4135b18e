package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHubRegisterAndUnregister(t *testing.T) {
	hub := NewHub()

	s1 := hub.Register(1, nil, ConnInfo{ConnID: "a"})
	s2 := hub.Register(1, nil, ConnInfo{ConnID: "b"})
	if hub.SessionCount(1) != 2 {
		t.Fatalf("expected two sessions for user 1, got %d", hub.SessionCount(1))
	}

	hub.Unregister(s1)
	if hub.SessionCount(1) != 1 {
		t.Fatalf("expected one session after unregister, got %d", hub.SessionCount(1))
	}

	hub.Unregister(s2)
	if len(hub.sessions) != 0 {
		t.Fatalf("expected user entry to be removed with its last session")
	}
}

func TestHubUnregisterIsIdempotent(t *testing.T) {
	hub := NewHub()

	s := hub.Register(3, nil, ConnInfo{ConnID: "c"})
	hub.Unregister(s)
	hub.Unregister(s)
	if hub.SessionCount(3) != 0 {
		t.Fatalf("expected no sessions for user 3")
	}
}

func TestHubDispatchToAbsentUsers(t *testing.T) {
	hub := NewHub()

	// No sessions registered: delivery is a silent no-op.
	hub.Dispatch("REFETCH_CHATS", []int{1, 2, 3}, nil)
}

func TestHubDispatchDeliversAndDropsDeadSessions(t *testing.T) {
	hub := NewHub()
	registered := make(chan *Session, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		registered <- hub.Register(7, conn, ConnInfo{ConnID: "d", ConnectedAt: time.Now()})
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer client.Close()

	session := <-registered

	hub.Dispatch("NEW_REQUEST", []int{7}, nil)

	client.SetReadDeadline(time.Now().Add(time.Second))
	_, frame, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(frame) != `{"type":"NEW_REQUEST"}` {
		t.Fatalf("unexpected frame: %s", frame)
	}

	// A session whose connection is gone fails its write and is removed;
	// the dispatch itself still returns to the caller.
	session.conn.Close()
	hub.Dispatch("REFETCH_CHATS", []int{7}, nil)
	if hub.SessionCount(7) != 0 {
		t.Fatalf("expected dead session to be dropped, %d still registered", hub.SessionCount(7))
	}
}
