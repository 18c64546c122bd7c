package tree

import (
	"sync"
	"testing"
	"time"

	"github.com/UkralStul/commentsync/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestStore_ApplyNotifiesSubscribers(t *testing.T) {
	store := NewStore("42")

	var seen [][]domain.Comment
	unsubscribe := store.Subscribe(func(roots []domain.Comment) {
		seen = append(seen, roots)
	})

	assert.True(t, store.Reset(newTestTree()))
	assert.True(t, store.Apply(func(r []domain.Comment) []domain.Comment { return Remove(r, "5") }))

	assert.Len(t, seen, 2)
	assert.Len(t, seen[1], 1)
	assert.Equal(t, "42", store.PostID())

	unsubscribe()
	store.Apply(func(r []domain.Comment) []domain.Comment { return Remove(r, "1") })
	assert.Len(t, seen, 2)
}

func TestStore_DisposedIgnoresUpdates(t *testing.T) {
	store := NewStore("42")
	store.Reset(newTestTree())
	store.Dispose()

	assert.False(t, store.Live())
	assert.False(t, store.Apply(func(r []domain.Comment) []domain.Comment { return nil }))
	assert.Len(t, store.Roots(), 2)
}

func TestStore_DeliversSnapshotsInOrder(t *testing.T) {
	store := NewStore("42")

	entered := make(chan struct{})
	unblock := make(chan struct{})
	var (
		mu    sync.Mutex
		calls int
		last  []domain.Comment
	)
	store.Subscribe(func(roots []domain.Comment) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			close(entered)
			<-unblock
		}
		mu.Lock()
		last = roots
		mu.Unlock()
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		store.Apply(func(r []domain.Comment) []domain.Comment { return AppendRoots(r, []domain.Comment{{ID: "1"}}) })
	}()
	<-entered
	go func() {
		defer wg.Done()
		store.Apply(func(r []domain.Comment) []domain.Comment { return AppendRoots(r, []domain.Comment{{ID: "2"}}) })
	}()

	// второе изменение уже в дереве, пока первый слушатель занят
	assert.Eventually(t, func() bool { return len(store.Roots()) == 2 }, time.Second, 5*time.Millisecond)
	close(unblock)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls)
	assert.Len(t, last, 2)
}
