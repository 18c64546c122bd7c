// Package events доставляет изменения комментариев поста в реальном времени.
package events

import "github.com/UkralStul/commentsync/internal/domain"

type Kind string

const (
	KindCreated Kind = "created"
	KindUpdated Kind = "updated"
	KindDeleted Kind = "deleted"
	KindLiked   Kind = "liked"
)

// Event - одно изменение на сервере. Comment содержит состояние узла после изменения;
// для KindDeleted значимы только ID и ParentID.
type Event struct {
	Kind    Kind           `json:"kind"`
	PostID  string         `json:"postId"`
	Comment domain.Comment `json:"comment"`
}
