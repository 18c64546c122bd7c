package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

const subscriberBuffer = 16

// Hub рассылает события подписчикам поста.
type Hub struct {
	mu sync.RWMutex
	//          map[postID] map[subscriberID] channel
	subs map[string]map[string]chan Event
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[string]chan Event),
	}
}

// Subscribe возвращает канал событий поста. Канал закрывается после отмены ctx.
func (h *Hub) Subscribe(ctx context.Context, postID string) <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	subID := uuid.NewString()

	h.mu.Lock()
	if h.subs[postID] == nil {
		h.subs[postID] = make(map[string]chan Event)
	}
	h.subs[postID][subID] = ch
	h.mu.Unlock()

	// Горутина для очистки при отключении клиента
	go func() {
		<-ctx.Done()
		h.mu.Lock()
		if postSubs, ok := h.subs[postID]; ok {
			delete(postSubs, subID)
			if len(postSubs) == 0 {
				delete(h.subs, postID)
			}
		}
		h.mu.Unlock()
		close(ch)
	}()

	return ch
}

// Publish не блокируется: подписчик с заполненным буфером пропускает событие.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[ev.PostID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers - число подписчиков поста.
func (h *Hub) Subscribers(postID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[postID])
}
