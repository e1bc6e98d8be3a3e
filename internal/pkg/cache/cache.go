package cache

import (
	"strconv"
	"sync"
)

// Key 复合缓存键，如 ("messages", 会话ID)
type Key struct {
	Kind string
	ID   string
}

func MessagesKey(convID uint64) Key {
	return Key{Kind: "messages", ID: strconv.FormatUint(convID, 10)}
}

func ConversationsKey(userID uint64) Key {
	return Key{Kind: "conversations", ID: strconv.FormatUint(userID, 10)}
}

// Store 进程级键值缓存
// 所有写入方（发送、实时事件、已读回执）都通过 Invalidate/Set 维护一致性，
// 缓存不作为事实来源，读方随时可回源重建
type Store interface {
	Get(key Key) (interface{}, bool)
	Set(key Key, value interface{})
	// Update 持锁执行读改写，多个写入方并发合并同一个键时不丢更新
	// fn 第二个返回值为 false 表示放弃本次写入
	Update(key Key, fn func(value interface{}, ok bool) (interface{}, bool))
	Invalidate(key Key)
}

type memoryStore struct {
	mu      sync.RWMutex
	entries map[Key]interface{}
}

func NewMemoryStore() Store {
	return &memoryStore{entries: make(map[Key]interface{})}
}

func (s *memoryStore) Get(key Key) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok
}

func (s *memoryStore) Set(key Key, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
}

func (s *memoryStore) Update(key Key, fn func(value interface{}, ok bool) (interface{}, bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	next, write := fn(v, ok)
	if write {
		s.entries[key] = next
	}
}

func (s *memoryStore) Invalidate(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}
