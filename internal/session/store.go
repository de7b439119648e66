package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/tzkeeper/internal/model"
	"github.com/hitoshi/tzkeeper/internal/navigation"
)

// Navigator はログアウト時の画面遷移先を受け取るインターフェース。
type Navigator interface {
	NavigateTo(route string)
}

// Store は現在の認証状態を保持する。
// 状態はAnonymousとAuthenticated(Session)の2つのみで、
// LoginとLogout（401による自動ログアウトを含む）以外では変化しない。
type Store struct {
	mu        sync.RWMutex
	current   *model.Session
	persister Persister
	navigator Navigator
	logger    *slog.Logger
}

// NewStore はAnonymous状態のStoreを生成する。navigatorはnilでもよい。
// loggerがnilの場合はslog.Default()を使う。
func NewStore(persister Persister, navigator Navigator, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		persister: persister,
		navigator: navigator,
		logger:    logger,
	}
}

// Restore は起動時に永続化済みのセッションを読み込む。
// 保存されていない場合はAnonymousのまま。
func (s *Store) Restore(ctx context.Context) error {
	sess, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	if sess != nil {
		s.logger.Info("session restored", slog.String("username", sess.Username))
	}
	return nil
}

// Current は現在のセッションを返す。Anonymousの場合はfalseを返す。
func (s *Store) Current() (model.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return model.Session{}, false
	}
	return *s.current, true
}

// Authenticated は認証済みかどうかを返す。
func (s *Store) Authenticated() bool {
	_, ok := s.Current()
	return ok
}

// Login はAuthenticated状態へ遷移する。永続化に失敗した場合は状態を変えない。
func (s *Store) Login(ctx context.Context, sess model.Session) error {
	if !sess.Valid() {
		return model.NewInvalidArgumentError("session requires access token and username")
	}

	if err := s.persister.Save(ctx, sess); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()

	s.logger.Info("logged in", slog.String("username", sess.Username))
	return nil
}

// Logout はAnonymous状態へ遷移し、永続化データを削除してランディングへ遷移する。
// 直前のセッションを返す（Anonymousだった場合はnil）。
// Anonymous状態で呼んでも遷移以外は何もしない。
func (s *Store) Logout(ctx context.Context) (*model.Session, error) {
	s.mu.Lock()
	prev := s.current
	s.current = nil
	s.mu.Unlock()

	var err error
	if prev != nil {
		if clearErr := s.persister.Clear(ctx); clearErr != nil {
			err = fmt.Errorf("clear persisted session: %w", clearErr)
		}
		s.logger.Info("logged out", slog.String("username", prev.Username))
	}

	if s.navigator != nil {
		s.navigator.NavigateTo(navigation.RouteLanding)
	}
	return prev, err
}

// Expire は401応答を受けた際の自動ログアウト。
// API クライアントの失敗処理から呼ばれ、呼び出し元へエラーが返る前に完了する。
func (s *Store) Expire(ctx context.Context) {
	prev, err := s.Logout(ctx)
	if err != nil {
		s.logger.Error("failed to clear expired session", slog.String("error", err.Error()))
	}
	if prev != nil {
		s.logger.Warn("session expired", slog.String("username", prev.Username))
	}
}
