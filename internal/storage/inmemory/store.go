package inmemory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/UkralStul/commentsync/internal/domain"
	"github.com/UkralStul/commentsync/internal/storage"
	"github.com/google/uuid"
)

// Store реализует интерфейс Storage в памяти.
type Store struct {
	mu               sync.RWMutex
	now              func() time.Time
	posts            map[string]*domain.Post
	comments         map[string]*domain.Comment
	commentsByPost   map[string][]string // map[postID][]commentID (только корневые)
	commentsByParent map[string][]string // map[parentID][]commentID
	likes            map[string][]string // map[commentID][]userID
}

// New создает новый экземпляр in-memory хранилища.
func New() *Store {
	return &Store{
		now:              func() time.Time { return time.Now().UTC() },
		posts:            make(map[string]*domain.Post),
		comments:         make(map[string]*domain.Comment),
		commentsByPost:   make(map[string][]string),
		commentsByParent: make(map[string][]string),
		likes:            make(map[string][]string),
	}
}

var _ storage.Storage = (*Store)(nil)

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post.ID = uuid.NewString()
	post.CreatedAt = s.now()
	s.posts[post.ID] = post
	return clonePost(post), nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, fmt.Errorf("post with id %s: %w", id, domain.ErrNotFound)
	}
	return clonePost(post), nil
}

func (s *Store) GetPosts(ctx context.Context, limit, offset int) ([]*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	allPosts := make([]*domain.Post, 0, len(s.posts))
	for _, p := range s.posts {
		allPosts = append(allPosts, clonePost(p))
	}

	sort.Slice(allPosts, func(i, j int) bool {
		return allPosts[i].CreatedAt.After(allPosts[j].CreatedAt)
	})

	return window(allPosts, offset, limit), nil
}

func (s *Store) ToggleComments(ctx context.Context, postID string, enable bool) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[postID]
	if !ok {
		return nil, fmt.Errorf("post with id %s: %w", postID, domain.ErrNotFound)
	}
	post.CommentsEnabled = enable
	return clonePost(post), nil
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	content, err := domain.NormalizeContent(comment.Content)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Проверка поста
	post, ok := s.posts[comment.PostID]
	if !ok {
		return nil, fmt.Errorf("post with id %s: %w", comment.PostID, domain.ErrNotFound)
	}
	if !post.CommentsEnabled {
		return nil, storage.ErrCommentsDisabled
	}

	// Проверка родительского комментария
	if comment.ParentID != nil {
		parent, ok := s.comments[*comment.ParentID]
		if !ok || parent.PostID != comment.PostID {
			return nil, fmt.Errorf("parent comment %s: %w", *comment.ParentID, domain.ErrNotFound)
		}
	}

	created := *comment
	created.ID = uuid.NewString()
	created.Content = content
	created.CreatedAt = s.now()
	created.UpdatedAt = created.CreatedAt
	created.LikedBy = nil
	created.Replies = nil
	created.ReplyCount = 0
	s.comments[created.ID] = &created

	// Обновление индексов для иерархии
	if created.ParentID == nil {
		s.commentsByPost[created.PostID] = append(s.commentsByPost[created.PostID], created.ID)
	} else {
		s.commentsByParent[*created.ParentID] = append(s.commentsByParent[*created.ParentID], created.ID)
	}

	return cloneComment(&created), nil
}

func (s *Store) GetCommentByID(ctx context.Context, id string) (*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	comment, ok := s.comments[id]
	if !ok {
		return nil, fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}
	return cloneComment(comment), nil
}

func (s *Store) UpdateComment(ctx context.Context, id, authorID, content string) (*domain.Comment, error) {
	content, err := domain.NormalizeContent(content)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	comment, err := s.ownComment(id, authorID)
	if err != nil {
		return nil, err
	}
	comment.Content = content
	comment.UpdatedAt = s.now()
	return cloneComment(comment), nil
}

func (s *Store) DeleteComment(ctx context.Context, id, authorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment, err := s.ownComment(id, authorID)
	if err != nil {
		return err
	}

	if comment.ParentID == nil {
		s.commentsByPost[comment.PostID] = without(s.commentsByPost[comment.PostID], id)
	} else {
		s.commentsByParent[*comment.ParentID] = without(s.commentsByParent[*comment.ParentID], id)
	}
	s.dropSubtree(id)
	return nil
}

// dropSubtree удаляет комментарий и всех его потомков.
func (s *Store) dropSubtree(id string) {
	for _, childID := range s.commentsByParent[id] {
		s.dropSubtree(childID)
	}
	delete(s.commentsByParent, id)
	delete(s.likes, id)
	delete(s.comments, id)
}

func (s *Store) ToggleLike(ctx context.Context, commentID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[commentID]; !ok {
		return false, fmt.Errorf("comment %s: %w", commentID, domain.ErrNotFound)
	}

	likers := s.likes[commentID]
	if slices.Contains(likers, userID) {
		s.likes[commentID] = without(likers, userID)
		return false, nil
	}
	s.likes[commentID] = append(likers, userID)
	return true, nil
}

func (s *Store) ownComment(id, authorID string) (*domain.Comment, error) {
	comment, ok := s.comments[id]
	if !ok {
		return nil, fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}
	if comment.AuthorID != authorID {
		return nil, fmt.Errorf("comment %s: %w", id, domain.ErrForbidden)
	}
	return comment, nil
}

// === Pagination Methods ===

func (s *Store) GetCommentsByPostID(ctx context.Context, postID string, args storage.PageArgs) ([]*domain.Comment, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.posts[postID]; !ok {
		return nil, 0, fmt.Errorf("post with id %s: %w", postID, domain.ErrNotFound)
	}

	comments := s.sorted(s.commentsByPost[postID], true)
	return window(comments, args.Offset(), args.PageSize), len(comments), nil
}

func (s *Store) GetCommentsByParentID(ctx context.Context, parentID string, args storage.PageArgs) ([]*domain.Comment, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.comments[parentID]; !ok {
		return nil, 0, fmt.Errorf("comment %s: %w", parentID, domain.ErrNotFound)
	}

	comments := s.sorted(s.commentsByParent[parentID], false)
	return window(comments, args.Offset(), args.PageSize), len(comments), nil
}

// sorted - копии комментариев по времени создания, чтобы пагинация была консистентной.
func (s *Store) sorted(ids []string, newestFirst bool) []*domain.Comment {
	allComments := make([]*domain.Comment, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.comments[id]; ok {
			allComments = append(allComments, cloneComment(c))
		}
	}
	if newestFirst {
		// при равном времени создания порядок вставки тоже разворачивается
		slices.Reverse(allComments)
	}
	sort.SliceStable(allComments, func(i, j int) bool {
		if newestFirst {
			return allComments[i].CreatedAt.After(allComments[j].CreatedAt)
		}
		return allComments[i].CreatedAt.Before(allComments[j].CreatedAt)
	})
	return allComments
}

// === Dataloader Methods ===

func (s *Store) CountRepliesByParentIDs(ctx context.Context, parentIDs []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make(map[string]int, len(parentIDs))
	for _, pID := range parentIDs {
		results[pID] = len(s.commentsByParent[pID])
	}
	return results, nil
}

func (s *Store) GetLikersByCommentIDs(ctx context.Context, commentIDs []string) (map[string][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make(map[string][]string, len(commentIDs))
	for _, cID := range commentIDs {
		if likers := s.likes[cID]; len(likers) > 0 {
			results[cID] = slices.Clone(likers)
		}
	}
	return results, nil
}

func window[T any](items []T, offset, limit int) []T {
	if offset < 0 || offset >= len(items) || limit <= 0 {
		return []T{}
	}
	return items[offset:min(offset+limit, len(items))]
}

func without(ids []string, id string) []string {
	return slices.DeleteFunc(slices.Clone(ids), func(v string) bool { return v == id })
}

func clonePost(p *domain.Post) *domain.Post {
	cp := *p
	return &cp
}

func cloneComment(c *domain.Comment) *domain.Comment {
	cp := *c
	return &cp
}
