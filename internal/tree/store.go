package tree

import (
	"sync"

	"github.com/UkralStul/commentsync/internal/domain"
)

// Store хранит дерево комментариев открытого поста.
// Снимки, отдаваемые наружу, неизменяемы: любое изменение строит новое дерево.
type Store struct {
	mu        sync.RWMutex
	postID    string
	roots     []domain.Comment
	version   uint64
	disposed  bool
	nextSubID int
	subs      map[int]func([]domain.Comment)

	// notifyMu упорядочивает доставку снимков слушателям.
	notifyMu  sync.Mutex
	delivered uint64
}

// NewStore создает пустое хранилище для поста postID.
func NewStore(postID string) *Store {
	return &Store{
		postID: postID,
		subs:   make(map[int]func([]domain.Comment)),
	}
}

func (s *Store) PostID() string {
	return s.postID
}

// Roots возвращает текущий снимок корневых комментариев.
func (s *Store) Roots() []domain.Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roots
}

// Apply атомарно заменяет дерево результатом fn.
// После Dispose ничего не делает и возвращает false.
//
// Слушатели вызываются по очереди и никогда не получают снимок старше уже
// доставленного. Слушатель не должен синхронно вызывать Apply.
func (s *Store) Apply(fn func([]domain.Comment) []domain.Comment) bool {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return false
	}
	s.roots = fn(s.roots)
	s.version++
	version, snapshot := s.version, s.roots
	s.mu.Unlock()

	s.notify(version, snapshot)
	return true
}

func (s *Store) notify(version uint64, snapshot []domain.Comment) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if version <= s.delivered {
		// более новый снимок уже доставлен
		return
	}
	s.delivered = version

	s.mu.RLock()
	subs := s.listeners()
	s.mu.RUnlock()
	for _, fn := range subs {
		fn(snapshot)
	}
}

// Reset заменяет дерево целиком.
func (s *Store) Reset(roots []domain.Comment) bool {
	return s.Apply(func([]domain.Comment) []domain.Comment { return roots })
}

// Live сообщает, что хранилище еще не закрыто.
func (s *Store) Live() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.disposed
}

// Dispose закрывает хранилище: последующие изменения игнорируются.
func (s *Store) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
	s.subs = make(map[int]func([]domain.Comment))
}

// Subscribe регистрирует слушателя изменений. Возвращает функцию отписки.
func (s *Store) Subscribe(fn func([]domain.Comment)) func() {
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

func (s *Store) listeners() []func([]domain.Comment) {
	out := make([]func([]domain.Comment), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}
