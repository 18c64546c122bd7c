package session

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/UkralStul/commentsync/internal/domain"
	"github.com/UkralStul/commentsync/internal/transport"
	"github.com/UkralStul/commentsync/internal/tree"
)

type opKind string

const (
	opCreate opKind = "create"
	opEdit   opKind = "edit"
	opDelete opKind = "delete"
	opLike   opKind = "like"
)

type inflightKey struct {
	id   string
	kind opKind
}

const tempPrefix = "tmp-"

func isTemp(id string) bool {
	return strings.HasPrefix(id, tempPrefix)
}

// begin отмечает операцию как выполняющуюся. Возвращенную функцию нужно вызвать по завершении.
func (s *Session) begin(id string, kind opKind) (func(), error) {
	key := inflightKey{id: id, kind: kind}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return nil, ErrInFlight
	}
	s.inflight[key] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.inflight, key)
		s.mu.Unlock()
	}, nil
}

// AddComment добавляет комментарий (ответ, если parentID не nil). До ответа сервера
// в дереве виден временный узел; после успеха он заменяется серверным.
func (s *Session) AddComment(ctx context.Context, content string, parentID *string) (domain.Comment, error) {
	store, _, err := s.current()
	if err != nil {
		return domain.Comment{}, err
	}
	content, err = domain.NormalizeContent(content)
	if err != nil {
		return domain.Comment{}, s.reject(err)
	}
	user, err := s.users.CurrentUser(ctx)
	if err != nil {
		return domain.Comment{}, s.reject(err)
	}
	if parentID != nil && isTemp(*parentID) {
		return domain.Comment{}, ErrInFlight
	}

	now := s.now()
	temp := domain.Comment{
		ID:                tempPrefix + uuid.NewString(),
		PostID:            store.PostID(),
		ParentID:          parentID,
		AuthorID:          user.ID,
		AuthorDisplayName: user.DisplayName,
		Content:           content,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	done, err := s.begin(temp.ID, opCreate)
	if err != nil {
		return domain.Comment{}, err
	}
	defer done()

	store.Apply(func(roots []domain.Comment) []domain.Comment {
		if parentID == nil {
			return tree.Prepend(roots, temp)
		}
		return tree.AddReply(roots, *parentID, temp)
	})

	created, err := s.transport.Create(ctx, temp.PostID, user.ID, content, parentID)
	if err != nil {
		store.Apply(func(roots []domain.Comment) []domain.Comment {
			roots = tree.Remove(roots, temp.ID)
			if parentID != nil && errors.Is(err, domain.ErrNotFound) {
				roots = tree.Remove(roots, *parentID)
			}
			return roots
		})
		return domain.Comment{}, s.rollback(opCreate, temp.ID, err)
	}

	store.Apply(func(roots []domain.Comment) []domain.Comment {
		if tree.Contains(roots, created.ID) {
			// событие о создании пришло раньше ответа
			return tree.Remove(roots, temp.ID)
		}
		return tree.Replace(roots, temp.ID, created)
	})
	s.notifier.Success("Comment posted")
	return created, nil
}

// EditComment меняет текст комментария. Править можно только свои комментарии.
func (s *Session) EditComment(ctx context.Context, id, content string) (domain.Comment, error) {
	store, _, err := s.current()
	if err != nil {
		return domain.Comment{}, err
	}
	if isTemp(id) {
		return domain.Comment{}, ErrInFlight
	}
	content, err = domain.NormalizeContent(content)
	if err != nil {
		return domain.Comment{}, s.reject(err)
	}
	user, original, err := s.authorize(ctx, store, id)
	if err != nil {
		return domain.Comment{}, s.reject(err)
	}

	done, err := s.begin(id, opEdit)
	if err != nil {
		return domain.Comment{}, err
	}
	defer done()

	store.Apply(func(roots []domain.Comment) []domain.Comment {
		return tree.Update(roots, id, func(c domain.Comment) domain.Comment {
			c.Content = content
			return c
		})
	})

	updated, err := s.transport.Update(ctx, id, user.ID, content)
	if err != nil {
		store.Apply(func(roots []domain.Comment) []domain.Comment {
			if errors.Is(err, domain.ErrNotFound) {
				return tree.Remove(roots, id)
			}
			return tree.Update(roots, id, func(c domain.Comment) domain.Comment {
				c.Content = original.Content
				c.UpdatedAt = original.UpdatedAt
				return c
			})
		})
		return domain.Comment{}, s.rollback(opEdit, id, err)
	}

	// лайки и ответы могли измениться параллельно, поэтому берем только текст
	store.Apply(func(roots []domain.Comment) []domain.Comment {
		return tree.Update(roots, id, func(c domain.Comment) domain.Comment {
			c.Content = updated.Content
			c.UpdatedAt = updated.UpdatedAt
			return c
		})
	})
	s.notifier.Success("Comment updated")

	result, _ := tree.Find(store.Roots(), id)
	return result, nil
}

// DeleteComment удаляет комментарий вместе с загруженными ответами.
func (s *Session) DeleteComment(ctx context.Context, id string) error {
	store, _, err := s.current()
	if err != nil {
		return err
	}
	if isTemp(id) {
		return ErrInFlight
	}
	user, _, err := s.authorize(ctx, store, id)
	if err != nil {
		return s.reject(err)
	}

	done, err := s.begin(id, opDelete)
	if err != nil {
		return err
	}
	defer done()

	var (
		removed  domain.Comment
		parentID *string
		index    int
		found    bool
	)
	store.Apply(func(roots []domain.Comment) []domain.Comment {
		removed, found = tree.Find(roots, id)
		if !found {
			return roots
		}
		parentID, index, _ = tree.Locate(roots, id)
		return tree.Remove(roots, id)
	})

	if err := s.transport.Remove(ctx, id, user.ID); err != nil {
		if found && !errors.Is(err, domain.ErrNotFound) {
			store.Apply(func(roots []domain.Comment) []domain.Comment {
				// Refresh или событие могли уже вернуть узел
				if tree.Contains(roots, id) {
					return roots
				}
				if parentID != nil && !tree.Contains(roots, *parentID) {
					return roots
				}
				return tree.Insert(roots, parentID, index, removed)
			})
		}
		return s.rollback(opDelete, id, err)
	}

	s.notifier.Success("Comment deleted")
	return nil
}

// ToggleLike ставит или снимает лайк текущего пользователя.
// Возвращает состояние лайка по данным сервера.
func (s *Session) ToggleLike(ctx context.Context, id string) (bool, error) {
	store, _, err := s.current()
	if err != nil {
		return false, err
	}
	if isTemp(id) {
		return false, ErrInFlight
	}
	user, err := s.users.CurrentUser(ctx)
	if err != nil {
		return false, s.reject(err)
	}

	done, err := s.begin(id, opLike)
	if err != nil {
		return false, err
	}
	defer done()

	var (
		previous []string
		found    bool
	)
	live := store.Apply(func(roots []domain.Comment) []domain.Comment {
		var c domain.Comment
		c, found = tree.Find(roots, id)
		previous = c.LikedBy
		return tree.ToggleLike(roots, id, user.ID)
	})
	if !live {
		return false, ErrNoPost
	}
	if !found {
		return false, s.reject(domain.ErrNotFound)
	}

	liked, err := s.transport.ToggleLike(ctx, id, user.ID)
	if err != nil {
		store.Apply(func(roots []domain.Comment) []domain.Comment {
			if errors.Is(err, domain.ErrNotFound) {
				return tree.Remove(roots, id)
			}
			return tree.Update(roots, id, func(c domain.Comment) domain.Comment {
				c.LikedBy = previous
				return c
			})
		})
		return false, s.rollback(opLike, id, err)
	}

	store.Apply(func(roots []domain.Comment) []domain.Comment {
		return tree.SetLiked(roots, id, user.ID, liked)
	})
	return liked, nil
}

// authorize проверяет по локальному дереву, что комментарий принадлежит пользователю.
// Окончательное решение принимает сервер.
func (s *Session) authorize(ctx context.Context, store *tree.Store, id string) (domain.User, domain.Comment, error) {
	user, err := s.users.CurrentUser(ctx)
	if err != nil {
		return domain.User{}, domain.Comment{}, err
	}
	c, ok := tree.Find(store.Roots(), id)
	if !ok {
		return domain.User{}, domain.Comment{}, domain.ErrNotFound
	}
	if c.AuthorID != user.ID {
		return domain.User{}, domain.Comment{}, domain.ErrForbidden
	}
	return user, c, nil
}

// reject - отказ до обращения к серверу: дерево не менялось.
func (s *Session) reject(err error) error {
	s.logger.Debug("comment operation rejected", zap.Error(err))
	s.notifier.Error(userMessage(err))
	return err
}

// rollback вызывается после отката дерева.
func (s *Session) rollback(kind opKind, id string, err error) error {
	s.logger.Error("comment mutation rolled back",
		zap.String("op", string(kind)), zap.String("comment_id", id), zap.Error(err))
	s.notifier.Error(userMessage(err))
	return err
}

func userMessage(err error) string {
	var terr *transport.Error
	switch {
	case errors.Is(err, domain.ErrValidation):
		if errors.As(err, &terr) {
			return "Comment was rejected: " + terr.Message
		}
		return strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": ")
	case errors.Is(err, domain.ErrForbidden):
		return "You can only change your own comments"
	case errors.Is(err, domain.ErrNotFound):
		return "This comment no longer exists"
	case errors.Is(err, domain.ErrUnauthenticated):
		return "Please log in first"
	default:
		return "Network error, please try again"
	}
}
