package dataloader

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/UkralStul/commentsync/internal/domain"
	"github.com/UkralStul/commentsync/internal/storage"
	"github.com/graph-gophers/dataloader"
)

type contextKey string

const key = contextKey("dataloaders")

// Loaders содержит все дата-лоадеры приложения.
type Loaders struct {
	ReplyCountByCommentID *dataloader.Loader
	LikersByCommentID     *dataloader.Loader
}

// NewLoaders создает лоадеры одного запроса.
func NewLoaders(store storage.Storage) *Loaders {
	replyCounts := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		// Вызываем метод хранилища, который делает ОДИН запрос к БД
		counts, err := store.CountRepliesByParentIDs(ctx, keys.Keys())
		if err != nil {
			return failAll(keys, err)
		}

		// Формируем результат в том же порядке, что и ключи
		results := make([]*dataloader.Result, len(keys))
		for i, k := range keys {
			results[i] = &dataloader.Result{Data: counts[k.String()]}
		}
		return results
	}

	likers := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		byComment, err := store.GetLikersByCommentIDs(ctx, keys.Keys())
		if err != nil {
			return failAll(keys, err)
		}

		results := make([]*dataloader.Result, len(keys))
		for i, k := range keys {
			results[i] = &dataloader.Result{Data: byComment[k.String()]}
		}
		return results
	}

	return &Loaders{
		ReplyCountByCommentID: dataloader.NewBatchedLoader(replyCounts, dataloader.WithWait(time.Millisecond*1)),
		LikersByCommentID:     dataloader.NewBatchedLoader(likers, dataloader.WithWait(time.Millisecond*1)),
	}
}

func failAll(keys dataloader.Keys, err error) []*dataloader.Result {
	// В случае ошибки, возвращаем ее для всех ключей
	results := make([]*dataloader.Result, len(keys))
	for i := range results {
		results[i] = &dataloader.Result{Error: err}
	}
	return results
}

// Middleware для внедрения лоадеров в контекст запроса.
func Middleware(store storage.Storage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), key, NewLoaders(store))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// For извлекает лоадеры из контекста.
func For(ctx context.Context) *Loaders {
	return ctx.Value(key).(*Loaders)
}

// Enrich заполняет ReplyCount и LikedBy комментариев, собирая запросы в батчи.
func (l *Loaders) Enrich(ctx context.Context, comments []*domain.Comment) error {
	if len(comments) == 0 {
		return nil
	}

	ids := make([]string, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
	}
	keys := dataloader.NewKeysFromStrings(ids)

	countThunk := l.ReplyCountByCommentID.LoadMany(ctx, keys)
	likersThunk := l.LikersByCommentID.LoadMany(ctx, keys)

	counts, errs := countThunk()
	if err := firstError(errs); err != nil {
		return fmt.Errorf("failed to load reply counts: %w", err)
	}
	likers, errs := likersThunk()
	if err := firstError(errs); err != nil {
		return fmt.Errorf("failed to load likes: %w", err)
	}

	for i, c := range comments {
		c.ReplyCount, _ = counts[i].(int)
		c.LikedBy, _ = likers[i].([]string)
	}
	return nil
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
