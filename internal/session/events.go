package session

import (
	"go.uber.org/zap"

	"github.com/UkralStul/commentsync/internal/domain"
	"github.com/UkralStul/commentsync/internal/events"
	"github.com/UkralStul/commentsync/internal/tree"
)

// ApplyEvent вливает изменение, сделанное другим клиентом, в открытое дерево.
// События чужих постов и о незагруженных комментариях игнорируются.
func (s *Session) ApplyEvent(ev events.Event) bool {
	store, _, err := s.current()
	if err != nil || ev.PostID != store.PostID() {
		return false
	}

	changed := false
	store.Apply(func(roots []domain.Comment) []domain.Comment {
		next := merge(roots, ev)
		changed = !sameSlice(roots, next)
		return next
	})
	if !changed {
		s.logger.Debug("event ignored",
			zap.String("kind", string(ev.Kind)), zap.String("comment_id", ev.Comment.ID))
	}
	return changed
}

func merge(roots []domain.Comment, ev events.Event) []domain.Comment {
	c := ev.Comment
	switch ev.Kind {
	case events.KindCreated:
		if tree.Contains(roots, c.ID) {
			return roots
		}
		c.Replies = nil
		if c.ParentID == nil {
			return tree.Prepend(roots, c)
		}
		parent, ok := tree.Find(roots, *c.ParentID)
		if !ok {
			return roots
		}
		if parent.HasMoreReplies() {
			// ответ придет со следующей страницей
			return tree.Update(roots, parent.ID, func(p domain.Comment) domain.Comment {
				p.ReplyCount++
				return p
			})
		}
		return tree.AddReply(roots, parent.ID, c)
	case events.KindUpdated:
		return tree.Update(roots, c.ID, func(old domain.Comment) domain.Comment {
			old.Content = c.Content
			old.UpdatedAt = c.UpdatedAt
			return old
		})
	case events.KindDeleted:
		return tree.Remove(roots, c.ID)
	case events.KindLiked:
		return tree.Update(roots, c.ID, func(old domain.Comment) domain.Comment {
			old.LikedBy = c.LikedBy
			return old
		})
	default:
		return roots
	}
}

// sameSlice сравнивает заголовки срезов: преобразования дерева возвращают
// исходный срез, если ничего не изменилось.
func sameSlice(a, b []domain.Comment) bool {
	return len(a) == len(b) && (len(a) == 0 || &a[0] == &b[0])
}
