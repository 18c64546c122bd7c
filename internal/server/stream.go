package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/UkralStul/commentsync/internal/events"
)

// streamComments отдает события поста по websocket до отключения клиента.
func (s *Server) streamComments(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")
	if _, err := s.storage.GetPostByID(r.Context(), postID); err != nil {
		s.writeError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		s.logger.Warn("websocket upgrade failed", zap.String("post_id", postID), zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	err = events.Pump(ctx, conn, s.hub.Subscribe(ctx, postID))
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("comment stream closed", zap.String("post_id", postID), zap.Error(err))
	}
}
