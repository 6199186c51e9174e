package http

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lessonloop/lessonloop/pkg/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect from arbitrary origins in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS streams every committed message for a session to the client as
// JSON frames. Existing history is replayed first, then live inserts follow.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	key := keyFrom(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	// Writes come from the replay loop and the subscription callback.
	var writeMu sync.Mutex
	send := func(msg domain.Message) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(msg)
	}

	ctx := r.Context()
	store := s.engine.Store()

	unsub, err := store.Subscribe(ctx, key, func(msg domain.Message) {
		if err := send(msg); err != nil {
			s.logger.Debug("websocket write failed", "err", err)
		}
	})
	if err != nil {
		s.logger.Warn("websocket subscribe failed", "err", err)
		return
	}
	defer unsub()

	history, err := store.LoadMessages(ctx, key)
	if err != nil {
		s.logger.Warn("websocket history load failed", "err", err)
		return
	}
	for _, msg := range history {
		if err := send(msg); err != nil {
			return
		}
	}

	// Drain reads until the client disconnects. Incoming frames are ignored;
	// actions go through the JSON endpoints.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
