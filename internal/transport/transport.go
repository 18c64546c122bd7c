// Package transport переводит операции над деревом в REST-вызовы API комментариев.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/UkralStul/commentsync/internal/domain"
)

// Transport - контракт API комментариев. Ни один вызов не повторяется автоматически.
type Transport interface {
	Create(ctx context.Context, postID, authorID, content string, parentID *string) (domain.Comment, error)
	ListRoots(ctx context.Context, postID string, page, pageSize int) (domain.Page, error)
	ListReplies(ctx context.Context, parentID string, page, pageSize int) (domain.Page, error)
	Update(ctx context.Context, commentID, authorID, content string) (domain.Comment, error)
	Remove(ctx context.Context, commentID, authorID string) error
	// ToggleLike переключает лайк и возвращает новое состояние по данным сервера.
	ToggleLike(ctx context.Context, commentID, userID string) (bool, error)
}

// TokenSource выдает bearer-токен текущего пользователя.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Error - ошибка вызова API. Unwrap возвращает одну из ошибок domain.
type Error struct {
	Op      string
	Status  int
	Message string
	Kind    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Op, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// KindForStatus сопоставляет HTTP-статус с таксономией ошибок.
func KindForStatus(status int) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.ErrValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrForbidden
	case http.StatusNotFound:
		return domain.ErrNotFound
	default:
		return domain.ErrNetwork
	}
}

// StatusOf возвращает HTTP-статус ошибки, если она пришла от сервера.
func StatusOf(err error) int {
	var terr *Error
	if errors.As(err, &terr) {
		return terr.Status
	}
	return 0
}
