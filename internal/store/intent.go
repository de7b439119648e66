package store

import (
	"github.com/hitoshi/tzkeeper/internal/notify"
)

// Intent は状態遷移が要求する副作用。
type Intent interface {
	intent()
}

// NavigateBack は直前の画面へ戻る。
type NavigateBack struct{}

// NavigateTo は指定ルートへ遷移する。
type NavigateTo struct {
	Route string
}

// Notify はユーザー向けメッセージを通知する。
type Notify struct {
	Level   notify.Level
	Message string
}

func (NavigateBack) intent() {}
func (NavigateTo) intent()   {}
func (Notify) intent()       {}

func notifySuccess(msg string) Intent { return Notify{Level: notify.LevelSuccess, Message: msg} }
func notifyError(msg string) Intent   { return Notify{Level: notify.LevelError, Message: msg} }

// Navigator は画面遷移を実行する。
type Navigator interface {
	NavigateTo(route string)
	Back()
}

// Coordinator はIntentを実行する。
// 通知は遷移完了後に表示されるよう、遷移をすべて実行してから通知する。
type Coordinator struct {
	nav  Navigator
	sink notify.Sink
}

// NewCoordinator はCoordinatorを生成する。navとsinkはnilでもよく、その場合は該当Intentを無視する。
func NewCoordinator(nav Navigator, sink notify.Sink) *Coordinator {
	return &Coordinator{nav: nav, sink: sink}
}

// Execute はIntentを実行する。
func (c *Coordinator) Execute(intents []Intent) {
	if c == nil || len(intents) == 0 {
		return
	}

	var notices []Notify
	for _, in := range intents {
		switch v := in.(type) {
		case NavigateBack:
			if c.nav != nil {
				c.nav.Back()
			}
		case NavigateTo:
			if c.nav != nil {
				c.nav.NavigateTo(v.Route)
			}
		case Notify:
			notices = append(notices, v)
		}
	}

	if c.sink == nil {
		return
	}
	for _, n := range notices {
		switch n.Level {
		case notify.LevelError:
			c.sink.Error(n.Message)
		default:
			c.sink.Success(n.Message)
		}
	}
}

// TransitionRecorder はストアの状態遷移を記録する。
type TransitionRecorder interface {
	RecordStoreTransition(store, kind, phase string)
}

func recordTransition(r TransitionRecorder, store string, s Status) {
	if r == nil || s.Phase == PhaseIdle {
		return
	}
	r.RecordStoreTransition(store, string(s.Kind), s.Phase.String())
}
