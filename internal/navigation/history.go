// Package navigation は画面遷移の履歴を管理する。
package navigation

import "sync"

// 定義済みルート
const (
	// RouteLanding はログアウト後に遷移するランディングルート。
	RouteLanding = "/"
	// RouteLogin はログイン画面のルート。
	RouteLogin = "/login"
)

// History はスタック形式の遷移履歴。
// 複数のgoroutineから安全に利用できる。
type History struct {
	mu    sync.Mutex
	stack []string
}

// NewHistory は初期ルートを1件持つHistoryを生成する。
// initialが空の場合はRouteLandingを使用する。
func NewHistory(initial string) *History {
	if initial == "" {
		initial = RouteLanding
	}
	return &History{stack: []string{initial}}
}

// NavigateTo は指定ルートへ遷移し、履歴に積む。
func (h *History) NavigateTo(route string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stack = append(h.stack, route)
}

// Back は1つ前のルートへ戻る。
// 履歴が1件しかない場合は何もしない。
func (h *History) Back() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.stack) > 1 {
		h.stack = h.stack[:len(h.stack)-1]
	}
}

// Current は現在のルートを返す。
func (h *History) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stack[len(h.stack)-1]
}

// Entries は履歴全体のコピーを返す。
func (h *History) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.stack))
	copy(out, h.stack)
	return out
}
