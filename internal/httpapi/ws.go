package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"codewiki/internal/domain"
	"codewiki/internal/logging"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

// handleProgressWebSocket streams IndexingUpdate events for one repository
// until the client disconnects or indexing reaches a terminal status (spec
// §4.2 "subscribe_to_progress").
func (s *Server) handleProgressWebSocket(w http.ResponseWriter, r *http.Request) {
	repoID := r.PathValue("repoID")
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Log.WithError(err).Warn("progress websocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, unsubscribe := s.repos.SubscribeToProgress()
	defer unsubscribe()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		return nil
	})
	go drainClientReads(conn)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.RepositoryID != repoID {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(update); err != nil {
				return
			}
			if update.Status == domain.StatusCompleted || update.Status == domain.StatusFailed || update.Status == domain.StatusCancelled {
				return
			}
		}
	}
}

// handleAskStreamWebSocket streams one ask() answer token-by-token over a
// WebSocket connection (spec §4.3 "stream-ask"). The client sends one JSON
// Query message; the server replies with a sequence of QueryStreamChunk
// messages terminated by exactly one Complete or Error chunk.
func (s *Server) handleAskStreamWebSocket(w http.ResponseWriter, r *http.Request) {
	repoID := r.PathValue("repoID")
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Log.WithError(err).Warn("ask stream websocket upgrade failed")
		return
	}
	defer conn.Close()

	var query domain.Query
	if err := conn.ReadJSON(&query); err != nil {
		return
	}

	ctx := r.Context()
	streamErr := s.repos.StreamQueryRepository(ctx, repoID, query, func(chunk domain.QueryStreamChunk) {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		_ = conn.WriteJSON(chunk)
	})
	if streamErr != nil {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		_ = conn.WriteJSON(domain.QueryStreamChunk{
			ChunkType: domain.StreamError,
			Content:   streamErr.Error(),
			IsFinal:   true,
		})
	}
}

// drainClientReads discards incoming client frames so pong control frames
// are processed by the gorilla/websocket read loop; codewiki's progress and
// ask-stream feeds are server-to-client only.
func drainClientReads(conn *websocket.Conn) {
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}
