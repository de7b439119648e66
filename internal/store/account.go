package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/hitoshi/tzkeeper/internal/apiclient"
	"github.com/hitoshi/tzkeeper/internal/model"
	"github.com/hitoshi/tzkeeper/internal/navigation"
)

const msgRegistered = "Registration successful"

// AccountState はログイン・登録操作の状態。セッションそのものはsession.Storeが保持する。
type AccountState struct {
	Status Status `json:"status"`
}

// AccountEvent はアカウントストアへの入力イベント。
type AccountEvent interface {
	accountEvent()
}

type (
	LoginRequested    struct{ Username string }
	LoggedIn          struct{ Username string }
	LoginFailed       struct{ Err error }
	LoggedOut         struct{}
	RegisterRequested struct{}
	Registered        struct{ User model.User }
	RegisterFailed    struct{ Err error }
)

func (LoginRequested) accountEvent()    {}
func (LoggedIn) accountEvent()          {}
func (LoginFailed) accountEvent()       {}
func (LoggedOut) accountEvent()         {}
func (RegisterRequested) accountEvent() {}
func (Registered) accountEvent()        {}
func (RegisterFailed) accountEvent()    {}

// ReduceAccount はイベントを適用した新しい状態と、実行すべきIntentを返す。
func ReduceAccount(s AccountState, ev AccountEvent) (AccountState, []Intent) {
	next := s

	switch e := ev.(type) {
	case LoginRequested:
		next.Status = Pending(OpLogin)
	case LoggedIn:
		next.Status = Succeeded(OpLogin)
		return next, []Intent{NavigateTo{Route: navigation.RouteLanding}}
	case LoginFailed:
		next.Status = Failed(OpLogin, e.Err)
		return next, []Intent{notifyError(errorText(e.Err))}
	case LoggedOut:
		next.Status = Succeeded(OpLogout)
	case RegisterRequested:
		next.Status = Pending(OpRegister)
	case Registered:
		next.Status = Succeeded(OpRegister)
		return next, []Intent{NavigateTo{Route: navigation.RouteLogin}, notifySuccess(msgRegistered)}
	case RegisterFailed:
		next.Status = Failed(OpRegister, e.Err)
		return next, []Intent{notifyError(errorText(e.Err))}
	}
	return next, nil
}

// AccountAPI はAccountStoreが利用するAPI操作。
type AccountAPI interface {
	Login(ctx context.Context, username, password string) (*model.LoginResponse, error)
	Logout(ctx context.Context, token string, opts ...apiclient.CallOption) error
	Register(ctx context.Context, reg model.Registration) (*model.User, error)
}

// SessionManager はセッションの遷移を担う。session.Storeが実装する。
type SessionManager interface {
	Current() (model.Session, bool)
	Login(ctx context.Context, sess model.Session) error
	Logout(ctx context.Context) (*model.Session, error)
	Expire(ctx context.Context)
}

// Resetter はログアウト時に状態を破棄するストア。
type Resetter interface {
	Reset()
}

// AccountStore はログイン、ログアウト、ユーザー登録を扱う。
type AccountStore struct {
	mu        sync.Mutex
	state     AccountState
	api       AccountAPI
	sessions  SessionManager
	effects   *Coordinator
	recorder  TransitionRecorder
	logger    *slog.Logger
	resetters []Resetter
}

// NewAccountStore はAccountStoreを生成する。resettersはログアウト時に初期化される。
func NewAccountStore(api AccountAPI, sessions SessionManager, effects *Coordinator, recorder TransitionRecorder, logger *slog.Logger, resetters ...Resetter) *AccountStore {
	return &AccountStore{
		api:       api,
		sessions:  sessions,
		effects:   effects,
		recorder:  recorder,
		logger:    logger,
		resetters: resetters,
	}
}

func (s *AccountStore) dispatch(ev AccountEvent) {
	s.mu.Lock()
	next, intents := ReduceAccount(s.state, ev)
	s.state = next
	s.mu.Unlock()

	recordTransition(s.recorder, "account", next.Status)
	s.effects.Execute(intents)
}

// Snapshot は現在の状態のコピーを返す。
func (s *AccountStore) Snapshot() AccountState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Login はログインし、成功したらセッションを永続化してランディングへ遷移する。
// サーバーのレスポンスボディをそのまま返す。
func (s *AccountStore) Login(ctx context.Context, username, password string) (*model.LoginResponse, error) {
	s.dispatch(LoginRequested{Username: username})

	resp, err := s.api.Login(ctx, username, password)
	if err == nil && resp.AccessToken == "" {
		err = &model.ParseError{Op: "user.login", Err: errors.New("response has no access_token")}
	}
	if err == nil {
		err = s.sessions.Login(ctx, model.Session{AccessToken: resp.AccessToken, Username: username})
	}
	if err != nil {
		s.dispatch(LoginFailed{Err: err})
		return nil, err
	}

	s.dispatch(LoggedIn{Username: username})
	return resp, nil
}

// Logout はローカルのセッションを破棄した後、取得済みのトークンでサーバー側のログアウトを試みる。
// サーバー側の失敗はログに残すのみ。
func (s *AccountStore) Logout(ctx context.Context) error {
	prev, err := s.sessions.Logout(ctx)
	s.discard()

	if prev != nil && s.api != nil {
		if apiErr := s.api.Logout(ctx, prev.AccessToken); apiErr != nil && s.logger != nil {
			s.logger.Warn("server logout failed",
				slog.String("username", prev.Username),
				slog.String("error", apiErr.Error()),
			)
		}
	}
	return err
}

// Expire は401応答による自動ログアウト。apiclient.SessionTerminatorを満たす。
// セッションを破棄した後、明示的なログアウトと同じく各ストアを初期化する。
func (s *AccountStore) Expire(ctx context.Context) {
	s.sessions.Expire(ctx)
	s.discard()
}

// discard はログアウト後に前ユーザーのデータを各ストアから取り除く。
func (s *AccountStore) discard() {
	for _, r := range s.resetters {
		r.Reset()
	}
	s.dispatch(LoggedOut{})
}

// Register はユーザーを登録し、成功したらログイン画面へ遷移する。
func (s *AccountStore) Register(ctx context.Context, reg model.Registration) (*model.User, error) {
	s.dispatch(RegisterRequested{})

	u, err := s.api.Register(ctx, reg)
	if err != nil {
		s.dispatch(RegisterFailed{Err: err})
		return nil, err
	}
	s.dispatch(Registered{User: *u})
	return u, nil
}
