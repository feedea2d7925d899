// Package notify 面向用户的提示消息。
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Level 提示级别
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

const defaultCapacity = 50

// Notice 一条提示
type Notice struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Notifier 服务层上报用户可见结果
type Notifier interface {
	Success(message string)
	Warning(message string)
	Error(message string)
}

// Recorder 写日志并保留最近的提示（环形缓冲）
type Recorder struct {
	mu    sync.Mutex
	ring  []Notice
	next  int
	full  bool
	log   *zap.SugaredLogger
	clock func() time.Time
}

// NewRecorder 创建提示记录器，capacity <= 0 时使用默认容量
func NewRecorder(capacity int, log *zap.SugaredLogger) *Recorder {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Recorder{ring: make([]Notice, capacity), log: log, clock: time.Now}
}

// Success 成功提示
func (r *Recorder) Success(message string) { r.push(LevelSuccess, message) }

// Warning 警告提示
func (r *Recorder) Warning(message string) { r.push(LevelWarning, message) }

// Error 错误提示
func (r *Recorder) Error(message string) { r.push(LevelError, message) }

// Recent 按时间先后返回保留的提示
func (r *Recorder) Recent() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]Notice(nil), r.ring[:r.next]...)
	}
	out := make([]Notice, 0, len(r.ring))
	out = append(out, r.ring[r.next:]...)
	return append(out, r.ring[:r.next]...)
}

// Last 最近一条提示
func (r *Recorder) Last() (Notice, bool) {
	recent := r.Recent()
	if len(recent) == 0 {
		return Notice{}, false
	}
	return recent[len(recent)-1], true
}

func (r *Recorder) push(level Level, message string) {
	switch level {
	case LevelError:
		r.log.Warnw("notice_error", "message", message)
	case LevelWarning:
		r.log.Infow("notice_warning", "message", message)
	default:
		r.log.Debugw("notice_success", "message", message)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.ring[r.next] = Notice{Level: level, Message: message, Time: r.clock()}
	r.next++
	if r.next == len(r.ring) {
		r.next = 0
		r.full = true
	}
}
