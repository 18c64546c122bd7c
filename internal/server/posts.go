package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/UkralStul/commentsync/internal/domain"
	"github.com/UkralStul/commentsync/internal/dto"
)

const defaultPostsLimit = 20

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", defaultPostsLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	offset, err := intQuery(r, "offset", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	posts, err := s.storage.GetPosts(r.Context(), min(limit, maxPageSize), offset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]domain.Post, len(posts))
	for i, p := range posts {
		out[i] = *p
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request) {
	post, err := s.storage.GetPostByID(r.Context(), chi.URLParam(r, "postID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var input dto.CreatePostRequest
	if !s.decode(w, r, &input) {
		return
	}
	if strings.TrimSpace(input.Title) == "" {
		s.writeError(w, r, fmt.Errorf("%w: title is required", domain.ErrValidation))
		return
	}

	post, err := s.storage.CreatePost(r.Context(), &domain.Post{
		Title:           strings.TrimSpace(input.Title),
		Content:         input.Content,
		AuthorID:        user.ID,
		CommentsEnabled: true,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// toggleComments открывает или закрывает пост для комментариев. Доступно только автору поста.
func (s *Server) toggleComments(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	postID := chi.URLParam(r, "postID")

	var input dto.ToggleCommentsRequest
	if !s.decode(w, r, &input) {
		return
	}

	post, err := s.storage.GetPostByID(r.Context(), postID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if post.AuthorID != user.ID {
		s.writeError(w, r, fmt.Errorf("%w: only the post author can change comment settings", domain.ErrForbidden))
		return
	}

	post, err = s.storage.ToggleComments(r.Context(), postID, input.Enabled)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}
