package localstore

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore 进程内存储
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get 读取
func (s *MemoryStore) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	key, err := validateKey(key)
	if err != nil {
		return false, err
	}
	s.mu.RLock()
	raw, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set 写入
func (s *MemoryStore) Set(_ context.Context, key string, value interface{}) error {
	key, err := validateKey(key)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[key] = raw
	s.mu.Unlock()
	return nil
}

// Delete 删除
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	key, err := validateKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

// Keys 当前所有键（测试用）
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}
