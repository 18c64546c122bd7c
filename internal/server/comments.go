package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/UkralStul/commentsync/internal/dataloader"
	"github.com/UkralStul/commentsync/internal/domain"
	"github.com/UkralStul/commentsync/internal/dto"
	"github.com/UkralStul/commentsync/internal/events"
	"github.com/UkralStul/commentsync/internal/storage"
)

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	postID := strings.TrimSpace(chi.URLParam(r, "postID"))
	args, err := pageArgs(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.storage.GetPostByID(r.Context(), postID); err != nil {
		s.writeError(w, r, err)
		return
	}

	comments, total, err := s.storage.GetCommentsByPostID(r.Context(), postID, args)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writePage(w, r, comments, total, args)
}

func (s *Server) listReplies(w http.ResponseWriter, r *http.Request) {
	parentID := strings.TrimSpace(chi.URLParam(r, "commentID"))
	args, err := pageArgs(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.storage.GetCommentByID(r.Context(), parentID); err != nil {
		s.writeError(w, r, err)
		return
	}

	replies, total, err := s.storage.GetCommentsByParentID(r.Context(), parentID, args)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writePage(w, r, replies, total, args)
}

func (s *Server) writePage(w http.ResponseWriter, r *http.Request, comments []*domain.Comment, total int, args storage.PageArgs) {
	if err := dataloader.For(r.Context()).Enrich(r.Context(), comments); err != nil {
		s.writeError(w, r, err)
		return
	}

	items := make([]domain.Comment, len(comments))
	for i, c := range comments {
		items[i] = *c
	}
	writeJSON(w, http.StatusOK, domain.Page{
		Items:        items,
		CurrentPage:  args.Page,
		TotalPages:   domain.TotalPagesFor(total, args.PageSize),
		TotalItems:   total,
		ItemsPerPage: args.PageSize,
	})
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var input dto.CreateCommentRequest
	if !s.decode(w, r, &input) {
		return
	}
	if input.AuthorID != user.ID {
		s.writeError(w, r, errAuthorMismatch)
		return
	}

	created, err := s.storage.CreateComment(r.Context(), &domain.Comment{
		PostID:            strings.TrimSpace(chi.URLParam(r, "postID")),
		ParentID:          input.ParentID,
		AuthorID:          user.ID,
		AuthorDisplayName: user.DisplayName,
		Content:           input.Content,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.publish(events.KindCreated, *created)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) updateComment(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var input dto.UpdateCommentRequest
	if !s.decode(w, r, &input) {
		return
	}
	if input.AuthorID != user.ID {
		s.writeError(w, r, errAuthorMismatch)
		return
	}

	updated, err := s.storage.UpdateComment(r.Context(), chi.URLParam(r, "commentID"), user.ID, input.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.enrichOne(r.Context(), updated); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.publish(events.KindUpdated, *updated)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteComment(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if authorID := r.URL.Query().Get("authorId"); authorID != "" && authorID != user.ID {
		s.writeError(w, r, errAuthorMismatch)
		return
	}

	id := chi.URLParam(r, "commentID")
	existing, err := s.storage.GetCommentByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.storage.DeleteComment(r.Context(), id, user.ID); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.publish(events.KindDeleted, *existing)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) toggleLike(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var input dto.LikeRequest
	if !s.decode(w, r, &input) {
		return
	}
	if input.UserID != user.ID {
		s.writeError(w, r, errAuthorMismatch)
		return
	}

	id := chi.URLParam(r, "commentID")
	liked, err := s.storage.ToggleLike(r.Context(), id, user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// событие несет полный список лайкнувших
	if c, err := s.storage.GetCommentByID(r.Context(), id); err == nil && s.enrichOne(r.Context(), c) == nil {
		s.publish(events.KindLiked, *c)
	}
	writeJSON(w, http.StatusOK, dto.LikeResponse{Liked: liked})
}

func (s *Server) enrichOne(ctx context.Context, c *domain.Comment) error {
	return dataloader.For(ctx).Enrich(ctx, []*domain.Comment{c})
}

func (s *Server) publish(kind events.Kind, c domain.Comment) {
	s.hub.Publish(events.Event{Kind: kind, PostID: c.PostID, Comment: c})
}
