// Package state 显式状态容器：GetState / Subscribe / Dispatch。
package state

import (
	"sync"
)

// Listener 状态变更监听，收到的是提交后的快照
type Listener[S any] func(action string, snapshot S)

// Store 泛型状态容器
// 所有修改都通过 Dispatch 完成，reducer 作用在副本上，返回错误时不提交。
type Store[S any] struct {
	mu        sync.RWMutex
	notifyMu  sync.Mutex
	state     S
	clone     func(S) S
	listeners map[uint64]Listener[S]
	nextID    uint64
}

// New 创建容器，clone 用于生成对外快照与 reducer 副本
func New[S any](initial S, clone func(S) S) *Store[S] {
	if clone == nil {
		clone = func(s S) S { return s }
	}
	return &Store[S]{
		state:     clone(initial),
		clone:     clone,
		listeners: make(map[uint64]Listener[S]),
	}
}

// GetState 当前状态快照
func (s *Store[S]) GetState() S {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clone(s.state)
}

// Subscribe 订阅变更，返回取消函数
// 监听函数在提交后按序调用，不可在其中再次 Dispatch。
func (s *Store[S]) Subscribe(listener Listener[S]) func() {
	if listener == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Dispatch 执行不会失败的 reducer
func (s *Store[S]) Dispatch(action string, reducer func(*S)) {
	_ = s.DispatchE(action, func(st *S) error {
		reducer(st)
		return nil
	})
}

// DispatchE 执行可能失败的 reducer，失败时状态保持不变且不通知
func (s *Store[S]) DispatchE(action string, reducer func(*S) error) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	next := s.clone(s.state)
	if err := reducer(&next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = next
	snapshot := s.clone(next)
	listeners := make([]Listener[S], 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(action, snapshot)
	}
	return nil
}
