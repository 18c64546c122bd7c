// Package tree содержит чистые функции над деревом комментариев.
// Ни одна функция не изменяет входной срез: путь до изменённого узла
// копируется, нетронутые поддеревья разделяются с исходным деревом.
package tree

import (
	"slices"

	"github.com/UkralStul/commentsync/internal/domain"
)

// Find ищет узел на любой глубине.
func Find(roots []domain.Comment, id string) (domain.Comment, bool) {
	for _, c := range roots {
		if c.ID == id {
			return c, true
		}
		if found, ok := Find(c.Replies, id); ok {
			return found, true
		}
	}
	return domain.Comment{}, false
}

func Contains(roots []domain.Comment, id string) bool {
	_, ok := Find(roots, id)
	return ok
}

// Locate возвращает родителя узла (nil для корня) и его индекс среди соседей.
func Locate(roots []domain.Comment, id string) (parentID *string, index int, ok bool) {
	for i, c := range roots {
		if c.ID == id {
			return nil, i, true
		}
	}
	for _, c := range roots {
		for i, r := range c.Replies {
			if r.ID == id {
				pid := c.ID
				return &pid, i, true
			}
		}
		if pid, idx, found := Locate(c.Replies, id); found {
			return pid, idx, true
		}
	}
	return nil, 0, false
}

// Update применяет fn к узлу id. Если узла нет, возвращает roots без изменений.
// fn не должна менять срезы полученного узла на месте.
func Update(roots []domain.Comment, id string, fn func(domain.Comment) domain.Comment) []domain.Comment {
	out, _ := update(roots, id, fn)
	return out
}

func update(nodes []domain.Comment, id string, fn func(domain.Comment) domain.Comment) ([]domain.Comment, bool) {
	for i := range nodes {
		if nodes[i].ID == id {
			out := slices.Clone(nodes)
			out[i] = fn(nodes[i])
			return out, true
		}
		if replies, ok := update(nodes[i].Replies, id, fn); ok {
			out := slices.Clone(nodes)
			out[i].Replies = replies
			return out, true
		}
	}
	return nodes, false
}

// Replace заменяет узел id целиком.
func Replace(roots []domain.Comment, id string, node domain.Comment) []domain.Comment {
	return Update(roots, id, func(domain.Comment) domain.Comment { return node })
}

// Remove удаляет узел вместе со всем загруженным поддеревом и уменьшает
// ReplyCount непосредственного родителя.
func Remove(roots []domain.Comment, id string) []domain.Comment {
	out, _ := remove(roots, id)
	return out
}

func remove(nodes []domain.Comment, id string) ([]domain.Comment, bool) {
	if i := indexOf(nodes, id); i >= 0 {
		if len(nodes) == 1 {
			return nil, true
		}
		return slices.Delete(slices.Clone(nodes), i, i+1), true
	}
	for i := range nodes {
		direct := indexOf(nodes[i].Replies, id) >= 0
		replies, ok := remove(nodes[i].Replies, id)
		if !ok {
			continue
		}
		out := slices.Clone(nodes)
		out[i].Replies = replies
		if direct && out[i].ReplyCount > 0 {
			out[i].ReplyCount--
		}
		return out, true
	}
	return nodes, false
}

// Prepend добавляет корневой комментарий в начало списка.
func Prepend(roots []domain.Comment, node domain.Comment) []domain.Comment {
	out := make([]domain.Comment, 0, len(roots)+1)
	out = append(out, node)
	return append(out, roots...)
}

// AppendRoots дописывает страницу корневых комментариев, пропуская уже известные id.
func AppendRoots(roots []domain.Comment, items []domain.Comment) []domain.Comment {
	return appendUnique(roots, items)
}

// AddReply добавляет новый ответ в конец Replies родителя и увеличивает ReplyCount.
func AddReply(roots []domain.Comment, parentID string, node domain.Comment) []domain.Comment {
	return Update(roots, parentID, func(p domain.Comment) domain.Comment {
		p.Replies = append(slices.Clone(p.Replies), node)
		p.ReplyCount++
		return p
	})
}

// AppendReplies дописывает загруженную страницу ответов. total - число ответов
// по данным сервера; ReplyCount не опускается ниже числа загруженных ответов.
// Ответы идут от старых к новым, как их отдает сервер: локально добавленный
// до загрузки страницы ответ оказывается после загруженных.
func AppendReplies(roots []domain.Comment, parentID string, items []domain.Comment, total int) []domain.Comment {
	return Update(roots, parentID, func(p domain.Comment) domain.Comment {
		p.Replies = appendUnique(p.Replies, items)
		slices.SortStableFunc(p.Replies, func(a, b domain.Comment) int {
			return a.CreatedAt.Compare(b.CreatedAt)
		})
		p.ReplyCount = max(total, len(p.Replies))
		return p
	})
}

// Insert вставляет узел на позицию index среди детей parentID (nil - корни).
// Используется для отката удаления, поэтому ReplyCount родителя увеличивается.
func Insert(roots []domain.Comment, parentID *string, index int, node domain.Comment) []domain.Comment {
	if parentID == nil {
		return insertAt(roots, index, node)
	}
	return Update(roots, *parentID, func(p domain.Comment) domain.Comment {
		p.Replies = insertAt(p.Replies, index, node)
		p.ReplyCount++
		return p
	})
}

// ToggleLike переключает членство userID в LikedBy.
func ToggleLike(roots []domain.Comment, id, userID string) []domain.Comment {
	return Update(roots, id, func(c domain.Comment) domain.Comment {
		return withLike(c, userID, !c.IsLikedBy(userID))
	})
}

// SetLiked приводит членство userID в LikedBy к значению liked.
func SetLiked(roots []domain.Comment, id, userID string, liked bool) []domain.Comment {
	c, ok := Find(roots, id)
	if !ok || c.IsLikedBy(userID) == liked {
		return roots
	}
	return Update(roots, id, func(c domain.Comment) domain.Comment {
		return withLike(c, userID, liked)
	})
}

// Walk обходит дерево в глубину. Если fn возвращает false, поддерево узла пропускается.
func Walk(roots []domain.Comment, fn func(c domain.Comment, depth int) bool) {
	walk(roots, 0, fn)
}

func walk(nodes []domain.Comment, depth int, fn func(domain.Comment, int) bool) {
	for _, c := range nodes {
		if fn(c, depth) {
			walk(c.Replies, depth+1, fn)
		}
	}
}

// Count - число загруженных узлов.
func Count(roots []domain.Comment) int {
	n := 0
	Walk(roots, func(domain.Comment, int) bool {
		n++
		return true
	})
	return n
}

func withLike(c domain.Comment, userID string, liked bool) domain.Comment {
	if liked {
		c.LikedBy = append(slices.Clone(c.LikedBy), userID)
		return c
	}
	c.LikedBy = slices.DeleteFunc(slices.Clone(c.LikedBy), func(id string) bool { return id == userID })
	return c
}

func insertAt(nodes []domain.Comment, index int, node domain.Comment) []domain.Comment {
	index = min(max(index, 0), len(nodes))
	return slices.Insert(slices.Clone(nodes), index, node)
}

func appendUnique(nodes, items []domain.Comment) []domain.Comment {
	out := slices.Clone(nodes)
	seen := make(map[string]struct{}, len(nodes)+len(items))
	for _, c := range nodes {
		seen[c.ID] = struct{}{}
	}
	for _, c := range items {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

func indexOf(nodes []domain.Comment, id string) int {
	return slices.IndexFunc(nodes, func(c domain.Comment) bool { return c.ID == id })
}
