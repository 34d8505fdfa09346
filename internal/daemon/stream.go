package daemon

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"allthatstax/internal/logging"
	"allthatstax/internal/workflow"
)

const (
	streamWriteWait = 10 * time.Second
	streamPongWait  = 60 * time.Second
	streamBatch     = 200
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is bound to a local address and guarded by the bearer token.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleStream upgrades to a websocket and pushes job log entries as JSON
// text messages, starting after the optional since cursor.
func (s *apiServer) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	since, _ := strconv.ParseUint(r.URL.Query().Get("since"), 10, 64)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		s.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reads only serve close and pong frames; any read error ends the stream.
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	journal := s.manager.Journal()
	ticker := time.NewTicker(streamPongWait * 9 / 10)
	defer ticker.Stop()
	for {
		waitCtx, stop := context.WithTimeout(ctx, streamPongWait*9/10)
		entries, next, err := journal.Fetch(waitCtx, since, streamBatch, true)
		stop()
		for _, entry := range entries {
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if werr := conn.WriteJSON(entry); werr != nil {
				return
			}
		}
		if len(entries) > 0 {
			since = next
		}
		switch {
		case errors.Is(err, workflow.ErrJournalClosed):
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(streamWriteWait))
			return
		case ctx.Err() != nil:
			return
		}
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		default:
		}
	}
}
