package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// writeTimeout bounds one event write to a WebSocket client.
const writeTimeout = 5 * time.Second

// handleEvents streams the session's change notifications over a WebSocket.
// The client is expected to re-read the snapshot endpoint on each event; a
// slow client loses old events rather than stalling the engine.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.lookup(id); !ok {
		writeError(w, http.StatusNotFound, errUnknownSession)
		return
	}
	if s.feed == nil {
		writeError(w, http.StatusNotImplemented, errEventsDisabled)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.WarnContext(r.Context(), "websocket accept failed", "session", id, "error", err)
		return
	}
	defer conn.CloseNow()

	events, cancel := s.feed.Subscribe()
	defer cancel()

	// Reads are discarded but keep close/ping frames processed.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "done")
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "feed closed")
				return
			}
			if ev.SessionID != id {
				continue
			}
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, ev)
			wcancel()
			if err != nil {
				return
			}
		}
	}
}

var errEventsDisabled = errors.New("httpapi: event feed not configured")
