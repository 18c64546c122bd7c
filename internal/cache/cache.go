// Package cache хранит загруженные деревья комментариев между открытиями поста.
package cache

import (
	"context"
	"time"

	"github.com/UkralStul/commentsync/internal/domain"
	"github.com/UkralStul/commentsync/internal/paging"
)

// Entry - снимок дерева поста вместе с курсором корневого списка.
type Entry struct {
	PostID   string           `json:"postId"`
	Roots    []domain.Comment `json:"roots"`
	Cursor   paging.Cursor    `json:"cursor"`
	StoredAt time.Time        `json:"storedAt"`
}

// Manager - кэш деревьев по id поста. Отсутствие записи не является ошибкой.
type Manager interface {
	Get(ctx context.Context, postID string) (Entry, bool, error)
	Set(ctx context.Context, entry Entry) error
	Invalidate(ctx context.Context, postID string) error
}
