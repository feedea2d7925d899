// Package events 一对多、发后即忘的事件总线。
package events

import (
	"sync"

	"github.com/dujiao-next/storefront/internal/logger"

	"go.uber.org/zap"
)

// Bus 观察者列表
// Publish 只投递给发布时已订阅的监听者，不回放历史事件。
type Bus[T any] struct {
	name   string
	mu     sync.RWMutex
	subs   map[uint64]func(T)
	nextID uint64
	log    *zap.SugaredLogger
}

// NewBus 创建事件总线
func NewBus[T any](name string, log *zap.SugaredLogger) *Bus[T] {
	if log == nil {
		log = logger.S()
	}
	return &Bus[T]{name: name, subs: make(map[uint64]func(T)), log: log}
}

// Subscribe 订阅，返回取消函数（可重复调用）
func (b *Bus[T]) Subscribe(fn func(T)) func() {
	if fn == nil {
		return func() {}
	}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish 同步投递，单个监听者 panic 不影响其他监听者
func (b *Bus[T]) Publish(event T) {
	b.mu.RLock()
	subs := make([]func(T), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		b.deliver(fn, event)
	}
}

// Len 当前订阅数
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus[T]) deliver(fn func(T), event T) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Errorw("event_subscriber_panic", "bus", b.name, "panic", r)
		}
	}()
	fn(event)
}
