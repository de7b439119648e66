package store

import (
	"bytes"
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/tzkeeper/internal/apiclient"
	"github.com/hitoshi/tzkeeper/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// fixedSession は固定のセッションを返すSessionSource。
type fixedSession struct {
	sess *model.Session
}

func (f fixedSession) Current() (model.Session, bool) {
	if f.sess == nil {
		return model.Session{}, false
	}
	return *f.sess, true
}

func bobSession() fixedSession {
	return fixedSession{sess: &model.Session{AccessToken: "abc", Username: "bob"}}
}

// mockTimezoneAPI はTimezoneAPIのテスト用実装。
type mockTimezoneAPI struct {
	listFn        func(ctx context.Context) ([]model.Timezone, error)
	listByOwnerFn func(ctx context.Context, owner string) ([]model.Timezone, error)
	createFn      func(ctx context.Context, owner string, tz model.Timezone) (*model.Timezone, error)
	updateFn      func(ctx context.Context, owner, name string, patch model.TimezonePatch) error
	deleteFn      func(ctx context.Context, owner, name string) error
}

func (m *mockTimezoneAPI) List(ctx context.Context, _ ...apiclient.CallOption) ([]model.Timezone, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []model.Timezone{}, nil
}

func (m *mockTimezoneAPI) ListByOwner(ctx context.Context, owner string, _ ...apiclient.CallOption) ([]model.Timezone, error) {
	if m.listByOwnerFn != nil {
		return m.listByOwnerFn(ctx, owner)
	}
	return []model.Timezone{}, nil
}

func (m *mockTimezoneAPI) Create(ctx context.Context, owner string, tz model.Timezone, _ ...apiclient.CallOption) (*model.Timezone, error) {
	if m.createFn != nil {
		return m.createFn(ctx, owner, tz)
	}
	return &tz, nil
}

func (m *mockTimezoneAPI) Update(ctx context.Context, owner, name string, patch model.TimezonePatch, _ ...apiclient.CallOption) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, owner, name, patch)
	}
	return nil
}

func (m *mockTimezoneAPI) Delete(ctx context.Context, owner, name string, _ ...apiclient.CallOption) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, owner, name)
	}
	return nil
}

// recordingNavigator は遷移を記録する。通知との順序確認のため共有ログへも書き込む。
type recordingNavigator struct {
	mu     sync.Mutex
	log    *[]string
	routes []string
	backs  int
}

func (n *recordingNavigator) NavigateTo(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
	if n.log != nil {
		*n.log = append(*n.log, "navigate:"+route)
	}
}

func (n *recordingNavigator) Back() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.backs++
	if n.log != nil {
		*n.log = append(*n.log, "back")
	}
}

// recordingSink は通知を記録する。
type recordingSink struct {
	mu        sync.Mutex
	log       *[]string
	successes []string
	errors    []string
}

func (s *recordingSink) Success(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.successes = append(s.successes, msg)
	if s.log != nil {
		*s.log = append(*s.log, "success:"+msg)
	}
}

func (s *recordingSink) Error(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, msg)
	if s.log != nil {
		*s.log = append(*s.log, "error:"+msg)
	}
}

// recordingTransitions はストア遷移を記録する。
type recordingTransitions struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingTransitions) RecordStoreTransition(store, kind, phase string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, store+"/"+kind+"/"+phase)
}
