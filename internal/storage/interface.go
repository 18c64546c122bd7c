package storage

import (
	"context"
	"errors"

	"github.com/UkralStul/commentsync/internal/domain"
)

// ErrCommentsDisabled - пост закрыт для комментариев.
var ErrCommentsDisabled = errors.New("comments are disabled for this post")

// PageArgs - номер страницы (с 1) и ее размер.
type PageArgs struct {
	Page     int
	PageSize int
}

func (a PageArgs) Offset() int {
	return (max(a.Page, 1) - 1) * a.PageSize
}

// Storage определяет контракт для хранилищ.
// Ошибки оборачивают domain.ErrNotFound, domain.ErrForbidden, domain.ErrValidation
// или ErrCommentsDisabled.
type Storage interface {
	GetPosts(ctx context.Context, limit, offset int) ([]*domain.Post, error)
	GetPostByID(ctx context.Context, id string) (*domain.Post, error)
	CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error)
	ToggleComments(ctx context.Context, postID string, enable bool) (*domain.Post, error)

	CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error)
	GetCommentByID(ctx context.Context, id string) (*domain.Comment, error)
	UpdateComment(ctx context.Context, id, authorID, content string) (*domain.Comment, error)
	// DeleteComment удаляет комментарий вместе со всеми ответами.
	DeleteComment(ctx context.Context, id, authorID string) error
	// ToggleLike возвращает состояние лайка после переключения.
	ToggleLike(ctx context.Context, commentID, userID string) (bool, error)

	// Методы для пагинации. Корни отдаются новыми первыми, ответы - в порядке создания.
	GetCommentsByPostID(ctx context.Context, postID string, args PageArgs) ([]*domain.Comment, int, error)
	GetCommentsByParentID(ctx context.Context, parentID string, args PageArgs) ([]*domain.Comment, int, error)

	// Методы для Dataloader'ов
	CountRepliesByParentIDs(ctx context.Context, parentIDs []string) (map[string]int, error)
	GetLikersByCommentIDs(ctx context.Context, commentIDs []string) (map[string][]string, error)
}
