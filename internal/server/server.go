// Package server - REST-бэкенд комментариев для разработки и сквозных тестов клиента.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/UkralStul/commentsync/internal/dataloader"
	"github.com/UkralStul/commentsync/internal/domain"
	"github.com/UkralStul/commentsync/internal/dto"
	"github.com/UkralStul/commentsync/internal/events"
	"github.com/UkralStul/commentsync/internal/paging"
	"github.com/UkralStul/commentsync/internal/storage"
)

const (
	maxPageSize = 100
	maxPage     = 1_000_000
)

type Server struct {
	storage  storage.Storage
	hub      *events.Hub
	tokens   *Tokens
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func New(store storage.Storage, hub *events.Hub, tokens *Tokens, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hub == nil {
		hub = events.NewHub()
	}
	return &Server{
		storage: store,
		hub:     hub,
		tokens:  tokens,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router собирает маршруты API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(dataloader.Middleware(s.storage))

	r.Post("/auth/login", s.login)

	r.Get("/posts", s.listPosts)
	r.Get("/posts/{postID}", s.getPost)
	r.Get("/posts/{postID}/comments", s.listComments)
	r.Get("/posts/{postID}/comments/stream", s.streamComments)
	r.Get("/comments/{commentID}/replies", s.listReplies)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/posts", s.createPost)
		r.Put("/posts/{postID}/comments-enabled", s.toggleComments)

		r.Post("/posts/{postID}/comments", s.createComment)
		r.Patch("/comments/{commentID}", s.updateComment)
		r.Delete("/comments/{commentID}", s.deleteComment)
		r.Post("/comments/{commentID}/like", s.toggleLike)
	})

	return r
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var input dto.LoginRequest
	if !s.decode(w, r, &input) {
		return
	}
	if input.UserID == "" {
		s.writeError(w, r, fmt.Errorf("%w: userId is required", domain.ErrValidation))
		return
	}

	user := domain.User{ID: input.UserID, DisplayName: input.DisplayName}
	if user.DisplayName == "" {
		user.DisplayName = user.ID
	}
	token, err := s.tokens.Issue(user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.LoginResponse{Token: token, User: user})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.NewBasicResponse(false, "invalid request body: "+err.Error()))
		return false
	}
	return true
}

// writeError сопоставляет ошибку хранилища со статусом ответа.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	details := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		details = http.StatusText(status)
	}
	writeJSON(w, status, dto.NewBasicResponse(false, details))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrCommentsDisabled):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// pageArgs читает page и pageSize из запроса.
func pageArgs(r *http.Request) (storage.PageArgs, error) {
	args := storage.PageArgs{Page: 1, PageSize: paging.DefaultPageSize}
	query := r.URL.Query()

	if raw := query.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return args, fmt.Errorf("%w: page must be a positive integer", domain.ErrValidation)
		}
		if page > maxPage {
			return args, fmt.Errorf("%w: page must not exceed %d", domain.ErrValidation, maxPage)
		}
		args.Page = page
	}
	if raw := query.Get("pageSize"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			return args, fmt.Errorf("%w: pageSize must be a positive integer", domain.ErrValidation)
		}
		args.PageSize = min(size, maxPageSize)
	}
	return args, nil
}

func intQuery(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrValidation, key)
	}
	return v, nil
}
