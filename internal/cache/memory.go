package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultSize = 64
	DefaultTTL  = 5 * time.Minute
)

// Memory держит последние size деревьев в процессе, каждое не дольше ttl.
type Memory struct {
	lru *expirable.LRU[string, Entry]
}

func NewMemory(size int, ttl time.Duration) *Memory {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{lru: expirable.NewLRU[string, Entry](size, nil, ttl)}
}

var _ Manager = (*Memory)(nil)

func (m *Memory) Get(_ context.Context, postID string) (Entry, bool, error) {
	entry, ok := m.lru.Get(postID)
	return entry, ok, nil
}

func (m *Memory) Set(_ context.Context, entry Entry) error {
	m.lru.Add(entry.PostID, entry)
	return nil
}

func (m *Memory) Invalidate(_ context.Context, postID string) error {
	m.lru.Remove(postID)
	return nil
}

func (m *Memory) Len() int {
	return m.lru.Len()
}
