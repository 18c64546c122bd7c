// Package session связывает дерево комментариев, пагинацию и транспорт:
// изменения применяются к дереву сразу и откатываются, если сервер их отклонил.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/UkralStul/commentsync/internal/cache"
	"github.com/UkralStul/commentsync/internal/domain"
	"github.com/UkralStul/commentsync/internal/paging"
	"github.com/UkralStul/commentsync/internal/transport"
	"github.com/UkralStul/commentsync/internal/tree"
)

var (
	// ErrInFlight - такая же операция над комментарием еще выполняется.
	ErrInFlight = errors.New("operation already in progress")
	// ErrNoPost - комментарии поста еще не загружались.
	ErrNoPost = errors.New("no post is open")
)

// Notifier показывает пользователю итог операции.
type Notifier interface {
	Error(message string)
	Success(message string)
}

// UserProvider возвращает текущего пользователя.
type UserProvider interface {
	CurrentUser(ctx context.Context) (domain.User, error)
}

type Option func(*Session)

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithCache включает кэш деревьев между открытиями поста.
func WithCache(m cache.Manager) Option {
	return func(s *Session) { s.cache = m }
}

func WithPageSizes(roots, replies int) Option {
	return func(s *Session) {
		s.pageSize = roots
		s.replyPageSize = replies
	}
}

// Session управляет комментариями одного открытого поста.
type Session struct {
	transport     transport.Transport
	users         UserProvider
	notifier      Notifier
	cache         cache.Manager
	logger        *zap.Logger
	pageSize      int
	replyPageSize int
	now           func() time.Time

	mu        sync.Mutex
	store     *tree.Store
	pager     *paging.Controller
	inflight  map[inflightKey]struct{}
	nextSubID int
	subs      map[int]func([]domain.Comment)

	// notifyMu упорядочивает доставку снимков подписчикам сессии.
	notifyMu sync.Mutex
}

// NewSession создает сессию. Посты открываются через LoadComments.
func NewSession(t transport.Transport, users UserProvider, notifier Notifier, opts ...Option) *Session {
	s := &Session{
		transport: t,
		users:     users,
		notifier:  notifier,
		logger:    zap.NewNop(),
		now:       time.Now,
		inflight:  make(map[inflightKey]struct{}),
		subs:      make(map[int]func([]domain.Comment)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadComments открывает пост: предыдущий пост закрывается, дерево берется
// из кэша или загружается первой страницей.
func (s *Session) LoadComments(ctx context.Context, postID string) error {
	if err := s.Close(ctx); err != nil {
		s.logger.Warn("failed to cache comments", zap.Error(err))
	}

	store := tree.NewStore(postID)
	pager := paging.NewController(s.transport, store, s.pageSize, s.replyPageSize, s.logger)
	store.Subscribe(func(roots []domain.Comment) { s.broadcast(store, roots) })

	s.mu.Lock()
	s.store, s.pager = store, pager
	s.mu.Unlock()

	if s.restore(ctx, store, pager) {
		return nil
	}
	if err := pager.Refresh(ctx); err != nil {
		return s.fail("load comments", postID, err)
	}
	return nil
}

func (s *Session) restore(ctx context.Context, store *tree.Store, pager *paging.Controller) bool {
	if s.cache == nil {
		return false
	}
	entry, ok, err := s.cache.Get(ctx, store.PostID())
	if err != nil {
		s.logger.Warn("failed to read comment cache", zap.String("post_id", store.PostID()), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	pager.Restore(entry.Cursor)
	store.Reset(entry.Roots)
	s.logger.Debug("comments restored from cache",
		zap.String("post_id", store.PostID()), zap.Time("stored_at", entry.StoredAt))
	return true
}

// LoadMoreRootComments дописывает следующую страницу корневых комментариев.
func (s *Session) LoadMoreRootComments(ctx context.Context) (bool, error) {
	store, pager, err := s.current()
	if err != nil {
		return false, err
	}
	loaded, err := pager.LoadNextRootPage(ctx)
	if err != nil {
		return false, s.fail("load more comments", store.PostID(), err)
	}
	return loaded, nil
}

// ExpandReplies загружает следующую страницу ответов на комментарий.
func (s *Session) ExpandReplies(ctx context.Context, parentID string) (bool, error) {
	_, pager, err := s.current()
	if err != nil {
		return false, err
	}
	loaded, err := pager.ExpandReplies(ctx, parentID)
	if err != nil {
		return false, s.fail("load replies", parentID, err)
	}
	return loaded, nil
}

// Refresh сбрасывает кэш поста и перезагружает первую страницу.
func (s *Session) Refresh(ctx context.Context) error {
	store, pager, err := s.current()
	if err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, store.PostID()); err != nil {
			s.logger.Warn("failed to invalidate comment cache", zap.String("post_id", store.PostID()), zap.Error(err))
		}
	}
	if err := pager.Refresh(ctx); err != nil {
		return s.fail("refresh comments", store.PostID(), err)
	}
	return nil
}

// Comments - текущий снимок дерева.
func (s *Session) Comments() []domain.Comment {
	store, _, err := s.current()
	if err != nil {
		return nil
	}
	return store.Roots()
}

func (s *Session) PostID() string {
	store, _, err := s.current()
	if err != nil {
		return ""
	}
	return store.PostID()
}

func (s *Session) HasMoreRoots() bool {
	_, pager, err := s.current()
	if err != nil {
		return false
	}
	return pager.HasMoreRoots()
}

// Subscribe регистрирует слушателя снимков дерева, в том числе после смены поста.
// Слушатель не должен синхронно вызывать методы, меняющие дерево.
func (s *Session) Subscribe(fn func([]domain.Comment)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// broadcast передает подписчикам снимок дерева from, если from - открытый пост.
// Порядок снимков одного хранилища гарантирует tree.Store.
func (s *Session) broadcast(from *tree.Store, roots []domain.Comment) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.store != from {
		s.mu.Unlock()
		return
	}
	subs := make([]func([]domain.Comment), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(roots)
	}
}

// Close закрывает открытый пост и сохраняет его дерево в кэш.
// Ответы сервера, пришедшие после Close, игнорируются. Если правка, удаление
// или лайк еще ждут ответа, дерево не кэшируется: откатить их будет уже нельзя.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	store, pager := s.store, s.pager
	s.store, s.pager = nil, nil
	unsettled := s.unsettled()
	s.mu.Unlock()

	if store == nil {
		return nil
	}
	roots := store.Roots()
	store.Dispose()

	if s.cache == nil {
		return nil
	}
	if unsettled {
		s.logger.Debug("skipping comment cache, mutations in flight", zap.String("post_id", store.PostID()))
		return s.cache.Invalidate(ctx, store.PostID())
	}
	cursor := pager.RootCursor()
	if !cursor.Loaded {
		return nil
	}
	return s.cache.Set(ctx, cache.Entry{
		PostID:   store.PostID(),
		Roots:    withoutPending(roots),
		Cursor:   cursor,
		StoredAt: s.now(),
	})
}

// unsettled сообщает, что есть незавершенные изменения существующих комментариев.
// Созданные, но не подтвержденные узлы отбрасывает withoutPending. Вызывается под s.mu.
func (s *Session) unsettled() bool {
	for key := range s.inflight {
		if key.kind != opCreate {
			return true
		}
	}
	return false
}

func (s *Session) current() (*tree.Store, *paging.Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return nil, nil, ErrNoPost
	}
	return s.store, s.pager, nil
}

// fail сообщает об ошибке загрузки пользователю и в лог.
func (s *Session) fail(op, id string, err error) error {
	s.logger.Error("comment request failed",
		zap.String("op", op), zap.String("id", id), zap.Error(err))
	s.notifier.Error(userMessage(err))
	return err
}

// withoutPending убирает из дерева узлы, еще не подтвержденные сервером.
func withoutPending(roots []domain.Comment) []domain.Comment {
	var pending []string
	tree.Walk(roots, func(c domain.Comment, _ int) bool {
		if isTemp(c.ID) {
			pending = append(pending, c.ID)
			return false
		}
		return true
	})
	for _, id := range pending {
		roots = tree.Remove(roots, id)
	}
	return roots
}
