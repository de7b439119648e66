// Package notify はユーザー向けの成功/エラーメッセージを受け付ける通知キューを提供する。
package notify

import (
	"sync"
	"time"
)

// Level は通知の種別を表す。
type Level string

const (
	// LevelSuccess は成功メッセージ。
	LevelSuccess Level = "success"
	// LevelError はエラーメッセージ。
	LevelError Level = "error"
)

// Message は表示待ちの通知1件を表す。
type Message struct {
	Level  Level     `json:"level"`
	Text   string    `json:"text"`
	Queued time.Time `json:"queued_at"`
}

// Sink は通知の受け口。呼び出し元をブロックしない。
type Sink interface {
	Success(message string)
	Error(message string)
}

// Queue はSinkの実装。上限なしのFIFOキューで、表示側がDrainで取り出す。
type Queue struct {
	mu       sync.Mutex
	messages []Message
	ready    chan struct{}
	now      func() time.Time
}

// NewQueue は空のQueueを生成する。
func NewQueue() *Queue {
	return &Queue{
		ready: make(chan struct{}, 1),
		now:   time.Now,
	}
}

// Success は成功メッセージをキューに追加する。
func (q *Queue) Success(message string) {
	q.push(LevelSuccess, message)
}

// Error はエラーメッセージをキューに追加する。
func (q *Queue) Error(message string) {
	q.push(LevelError, message)
}

func (q *Queue) push(level Level, text string) {
	q.mu.Lock()
	q.messages = append(q.messages, Message{Level: level, Text: text, Queued: q.now()})
	q.mu.Unlock()

	// 受信側が待っていなくてもブロックしない
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Drain はキュー内の全メッセージを追加順に取り出す。
func (q *Queue) Drain() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.messages
	q.messages = nil
	return out
}

// Len はキュー内のメッセージ数を返す。
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// Ready はメッセージが追加されたことを通知するチャネルを返す。
// 複数回のpushは1回の通知にまとめられる。
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}
