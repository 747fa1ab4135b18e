package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"social-service/internal/models"
	"social-service/internal/observability"
)

// Session is one registered websocket connection for a user. A user may hold
// any number of concurrent sessions (one per device/tab).
type Session struct {
	userID  int
	conn    *websocket.Conn
	info    ConnInfo
	writeMu sync.Mutex
}

// Hub maps user ids to their active sessions and fans events out to them.
// Delivery is best-effort: unreachable sessions are dropped, never retried.
type Hub struct {
	mu       sync.RWMutex
	sessions map[int]map[*Session]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{sessions: make(map[int]map[*Session]struct{})}
}

// Register adds a connection to the user's session set.
func (h *Hub) Register(userID int, conn *websocket.Conn, info ConnInfo) *Session {
	s := &Session{userID: userID, conn: conn, info: info}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[userID]; !ok {
		h.sessions[userID] = make(map[*Session]struct{})
	}
	h.sessions[userID][s] = struct{}{}
	return s
}

// Unregister removes a session; the last session removes the user entry.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.sessions[s.userID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.sessions, s.userID)
		}
	}
}

// SessionCount reports the number of active sessions for a user.
func (h *Hub) SessionCount(userID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[userID])
}

// writeWait bounds a single frame write. A peer that stops reading runs
// into it and is dropped like any other failed session, so callers never
// wait on delivery.
const writeWait = 10 * time.Second

// Dispatch delivers the event to every session of every listed user.
// The per-session write lock keeps frames ordered per recipient; ordering
// across recipients is not guaranteed.
func (h *Hub) Dispatch(event string, userIDs []int, payload any) {
	frame, err := json.Marshal(models.SessionEvent{Type: event, Payload: payload})
	if err != nil {
		log.Printf("dispatch marshal failed: event=%s err=%v", event, err)
		return
	}

	for _, userID := range userIDs {
		h.mu.RLock()
		targets := make([]*Session, 0, len(h.sessions[userID]))
		for s := range h.sessions[userID] {
			targets = append(targets, s)
		}
		h.mu.RUnlock()

		for _, s := range targets {
			s.writeMu.Lock()
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := s.conn.WriteMessage(websocket.TextMessage, frame)
			s.writeMu.Unlock()
			if err != nil {
				log.Printf("websocket write error: user_id=%d err=%v", userID, err)
				s.conn.Close()
				h.Unregister(s)
				h.publishSessionError(s, err)
				continue
			}
			observability.IncDispatch(event)
		}
	}
}

func (h *Hub) publishSessionError(s *Session, err error) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       "ws_error",
			"conn_id":     s.info.ConnID,
			"duration_ms": time.Since(s.info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":   s.userID,
			"device_id": s.info.DeviceID,
			"ip":        s.info.IP,
		},
	}

	headers := observability.BuildHeaders(s.info.RequestID, s.info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.sessions", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent("ws_error")
}
