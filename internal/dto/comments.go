package dto

import "github.com/UkralStul/commentsync/internal/domain"

type CreateCommentRequest struct {
	AuthorID string  `json:"authorId"`
	Content  string  `json:"content"`
	ParentID *string `json:"parentId,omitempty"`
}

type UpdateCommentRequest struct {
	AuthorID string `json:"authorId"`
	Content  string `json:"content"`
}

type LikeRequest struct {
	UserID string `json:"userId"`
}

type LikeResponse struct {
	Liked bool `json:"liked"`
}

type LoginRequest struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}
