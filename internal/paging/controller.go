// Package paging ведет курсоры страниц для корневых комментариев поста
// и для ответов каждого раскрытого комментария.
package paging

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/UkralStul/commentsync/internal/domain"
	"github.com/UkralStul/commentsync/internal/tree"
)

const (
	DefaultPageSize      = 10
	DefaultReplyPageSize = 5
)

// Lister - часть транспорта, нужная для пагинации.
type Lister interface {
	ListRoots(ctx context.Context, postID string, page, pageSize int) (domain.Page, error)
	ListReplies(ctx context.Context, parentID string, page, pageSize int) (domain.Page, error)
}

// Cursor - состояние пагинации одного списка. Page - последняя загруженная страница.
type Cursor struct {
	Page       int  `json:"page"`
	TotalPages int  `json:"totalPages"`
	PageSize   int  `json:"pageSize"`
	Loaded     bool `json:"loaded"`
}

// HasMore истинно, пока список не загружался или сервер сообщил о следующих страницах.
func (c Cursor) HasMore() bool {
	return !c.Loaded || c.Page < c.TotalPages
}

type state struct {
	Cursor
	loading bool
}

// Controller загружает страницы в tree.Store.
// Каждый Refresh начинает новое поколение: ответы прошлых поколений отбрасываются.
type Controller struct {
	lister        Lister
	store         *tree.Store
	logger        *zap.Logger
	pageSize      int
	replyPageSize int

	mu      sync.Mutex
	gen     atomic.Uint64
	roots   state
	replies map[string]*state
}

// NewController создает контроллер для поста, которым владеет store.
func NewController(lister Lister, store *tree.Store, pageSize, replyPageSize int, logger *zap.Logger) *Controller {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if replyPageSize <= 0 {
		replyPageSize = DefaultReplyPageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		lister:        lister,
		store:         store,
		logger:        logger,
		pageSize:      pageSize,
		replyPageSize: replyPageSize,
		roots:         state{Cursor: Cursor{PageSize: pageSize}},
		replies:       make(map[string]*state),
	}
}

// Refresh загружает первую страницу и заменяет ею список корневых комментариев.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	gen := c.gen.Add(1)
	c.roots = state{Cursor: Cursor{PageSize: c.pageSize}, loading: true}
	c.replies = make(map[string]*state)
	c.mu.Unlock()

	_, err := c.loadRoots(ctx, gen, 1, func(_, items []domain.Comment) []domain.Comment {
		return items
	})
	return err
}

// LoadNextRootPage дописывает следующую страницу корневых комментариев.
// Ничего не делает, пока идет загрузка или страниц больше нет.
func (c *Controller) LoadNextRootPage(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.roots.loading || !c.roots.HasMore() {
		c.mu.Unlock()
		return false, nil
	}
	c.roots.loading = true
	next := c.roots.Page + 1
	gen := c.gen.Load()
	c.mu.Unlock()

	return c.loadRoots(ctx, gen, next, tree.AppendRoots)
}

func (c *Controller) loadRoots(ctx context.Context, gen uint64, pageNum int, merge func(roots, items []domain.Comment) []domain.Comment) (bool, error) {
	page, err := c.lister.ListRoots(ctx, c.store.PostID(), pageNum, c.pageSize)
	if err != nil {
		c.mu.Lock()
		if c.current(gen) {
			c.roots.loading = false
		}
		c.mu.Unlock()
		return false, err
	}

	applied := false
	c.store.Apply(func(roots []domain.Comment) []domain.Comment {
		if !c.current(gen) {
			return roots
		}
		applied = true
		return merge(roots, page.Items)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.current(gen) || !applied {
		c.logger.Debug("discarding stale root page",
			zap.String("post_id", c.store.PostID()), zap.Int("page", pageNum))
		if c.current(gen) {
			c.roots.loading = false
		}
		return false, nil
	}
	c.roots = state{Cursor: Cursor{
		Page:       pageNum,
		TotalPages: page.TotalPages,
		PageSize:   c.pageSize,
		Loaded:     true,
	}}
	return true, nil
}

// ExpandReplies загружает следующую страницу ответов parentID (первый вызов - страницу 1).
func (c *Controller) ExpandReplies(ctx context.Context, parentID string) (bool, error) {
	c.mu.Lock()
	st, ok := c.replies[parentID]
	if !ok {
		st = &state{Cursor: Cursor{PageSize: c.replyPageSize}}
		c.replies[parentID] = st
	}
	if st.loading || !st.HasMore() {
		c.mu.Unlock()
		return false, nil
	}
	st.loading = true
	next := st.Page + 1
	gen := c.gen.Load()
	c.mu.Unlock()

	page, err := c.lister.ListReplies(ctx, parentID, next, c.replyPageSize)
	if err != nil {
		c.mu.Lock()
		st.loading = false
		c.mu.Unlock()
		return false, err
	}

	applied := false
	c.store.Apply(func(roots []domain.Comment) []domain.Comment {
		if !c.current(gen) || !tree.Contains(roots, parentID) {
			return roots
		}
		applied = true
		return tree.AppendReplies(roots, parentID, page.Items, page.TotalItems)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	st.loading = false
	if !applied {
		c.logger.Debug("discarding reply page",
			zap.String("parent_id", parentID), zap.Int("page", next))
		return false, nil
	}
	st.Cursor = Cursor{
		Page:       next,
		TotalPages: page.TotalPages,
		PageSize:   c.replyPageSize,
		Loaded:     true,
	}
	return true, nil
}

// Restore выставляет курсор корневого списка без обращения к сети.
func (c *Controller) Restore(cursor Cursor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen.Add(1)
	c.roots = state{Cursor: cursor}
	c.replies = make(map[string]*state)
}

func (c *Controller) RootCursor() Cursor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roots.Cursor
}

func (c *Controller) ReplyCursor(parentID string) (Cursor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.replies[parentID]
	if !ok {
		return Cursor{}, false
	}
	return st.Cursor, true
}

func (c *Controller) HasMoreRoots() bool {
	return c.RootCursor().HasMore()
}

func (c *Controller) current(gen uint64) bool {
	return c.gen.Load() == gen
}
