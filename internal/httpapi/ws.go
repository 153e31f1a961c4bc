package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"subtrack-bot/internal/domain"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsBuffer     = 32
)

// wsIncoming is a client frame. Exactly one of Text or QuickReply is set.
type wsIncoming struct {
	Text       string `json:"text,omitempty"`
	QuickReply string `json:"quick_reply,omitempty"`
}

type wsOutgoing struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Message   *domain.Message `json:"message,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.origins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return s.origins[origin]
}

// handleWebsocket streams transcript appends and accepts inputs on one socket.
// GET /v1/sessions/{sessionID}/ws
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	out := make(chan wsOutgoing, wsBuffer)
	done := make(chan struct{})
	defer close(done)

	send := func(frame wsOutgoing) {
		select {
		case out <- frame:
		case <-done:
		default:
			s.logger.Warn("websocket buffer full, dropping frame", "session_id", sess.ID(), "type", frame.Type)
		}
	}
	send(wsOutgoing{Type: "connected", SessionID: sess.ID()})

	// Live appends wait until the history is queued so frames stay in order.
	var replay sync.Mutex
	replay.Lock()
	history, unsubscribe := sess.Subscribe(func(msg domain.Message) {
		replay.Lock()
		defer replay.Unlock()
		send(wsOutgoing{Type: "message", Message: &msg})
	})
	defer unsubscribe()
	for _, msg := range history {
		send(wsOutgoing{Type: "message", Message: &msg})
	}
	replay.Unlock()

	go s.wsWriter(conn, out, done)

	conn.SetReadLimit(16 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket closed unexpectedly", "error", err, "session_id", sess.ID())
			}
			return
		}
		var in wsIncoming
		if err := json.Unmarshal(data, &in); err != nil {
			send(wsOutgoing{Type: "error", Error: "invalid frame"})
			continue
		}
		if in.QuickReply != "" {
			_, err = sess.SelectQuickReply(r.Context(), in.QuickReply)
		} else {
			_, err = sess.Submit(r.Context(), in.Text)
		}
		if err != nil {
			send(wsOutgoing{Type: "error", Error: err.Error()})
		}
	}
}

func (s *Server) wsWriter(conn *websocket.Conn, out <-chan wsOutgoing, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case frame := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(frame); err != nil {
				s.logger.Warn("websocket write failed", "error", err)
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}
