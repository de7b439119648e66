package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/tzkeeper/internal/apiclient"
	"github.com/hitoshi/tzkeeper/internal/model"
)

var userKey = keyed[model.User]{key: func(u model.User) string { return u.Username }}

// DirectoryState はユーザー一覧（管理者向け）の状態。
type DirectoryState struct {
	Users  []Entry[model.User] `json:"users"`
	Status Status              `json:"status"`
}

// Clone は独立したコピーを返す。
func (s DirectoryState) Clone() DirectoryState {
	return DirectoryState{Users: cloneSlice(s.Users), Status: s.Status}
}

// DirectoryEvent はユーザー一覧ストアへの入力イベント。
type DirectoryEvent interface {
	directoryEvent()
}

type (
	UsersRequested      struct{}
	UsersLoaded         struct{ Users []model.User }
	UsersFailed         struct{ Err error }
	UserDeleteRequested struct{ Username string }
	UserDeleted         struct{ Username string }
	UserDeleteFailed    struct {
		Username string
		Err      error
	}
	UserToggleRequested struct{ Username string }
	UserToggled         struct {
		Username string
		Enabled  bool
	}
	UserToggleFailed struct {
		Username string
		Err      error
	}
)

func (UsersRequested) directoryEvent()      {}
func (UsersLoaded) directoryEvent()         {}
func (UsersFailed) directoryEvent()         {}
func (UserDeleteRequested) directoryEvent() {}
func (UserDeleted) directoryEvent()         {}
func (UserDeleteFailed) directoryEvent()    {}
func (UserToggleRequested) directoryEvent() {}
func (UserToggled) directoryEvent()         {}
func (UserToggleFailed) directoryEvent()    {}

// ReduceDirectory はイベントを適用した新しい状態と、実行すべきIntentを返す。
func ReduceDirectory(s DirectoryState, ev DirectoryEvent) (DirectoryState, []Intent) {
	next := s.Clone()

	switch e := ev.(type) {
	case UsersRequested:
		next.Status = Pending(OpFetchUsers)
	case UsersLoaded:
		next.Users = userKey.replace(s.Users, e.Users)
		next.Status = Succeeded(OpFetchUsers)
	case UsersFailed:
		next.Users = []Entry[model.User]{}
		next.Status = Failed(OpFetchUsers, e.Err)

	case UserDeleteRequested:
		next.Users = userKey.update(next.Users, e.Username, func(en Entry[model.User]) Entry[model.User] {
			return en.beginDelete()
		})
		next.Status = Pending(OpDeleteUser)
	case UserDeleted:
		next.Users = userKey.removeFirst(next.Users, e.Username)
		next.Status = Succeeded(OpDeleteUser)
	case UserDeleteFailed:
		next.Users = userKey.update(next.Users, e.Username, func(en Entry[model.User]) Entry[model.User] {
			en = en.endDelete()
			en.DeleteError = errorText(e.Err)
			return en
		})
		next.Status = Failed(OpDeleteUser, e.Err)

	case UserToggleRequested:
		next.Users = userKey.update(next.Users, e.Username, func(en Entry[model.User]) Entry[model.User] {
			return en.beginUpdate()
		})
		next.Status = Pending(OpSetEnabled)
	case UserToggled:
		next.Users = userKey.update(next.Users, e.Username, func(en Entry[model.User]) Entry[model.User] {
			en.Value.Enabled = e.Enabled
			return en.endUpdate()
		})
		next.Status = Succeeded(OpSetEnabled)
	case UserToggleFailed:
		next.Users = userKey.update(next.Users, e.Username, func(en Entry[model.User]) Entry[model.User] {
			en = en.endUpdate()
			en.UpdateError = errorText(e.Err)
			return en
		})
		next.Status = Failed(OpSetEnabled, e.Err)
	}

	return next, nil
}

// DirectoryAPI はDirectoryStoreが利用するAPI操作。
type DirectoryAPI interface {
	List(ctx context.Context, opts ...apiclient.CallOption) ([]model.User, error)
	Delete(ctx context.Context, username string, opts ...apiclient.CallOption) error
	Enable(ctx context.Context, username string, opts ...apiclient.CallOption) error
	Disable(ctx context.Context, username string, opts ...apiclient.CallOption) error
}

// DirectoryStore は全ユーザーの一覧を保持する。
type DirectoryStore struct {
	mu       sync.Mutex
	state    DirectoryState
	api      DirectoryAPI
	effects  *Coordinator
	recorder TransitionRecorder
	logger   *slog.Logger
}

// NewDirectoryStore はDirectoryStoreを生成する。
func NewDirectoryStore(api DirectoryAPI, effects *Coordinator, recorder TransitionRecorder, logger *slog.Logger) *DirectoryStore {
	return &DirectoryStore{
		state:    DirectoryState{Users: []Entry[model.User]{}},
		api:      api,
		effects:  effects,
		recorder: recorder,
		logger:   logger,
	}
}

func (s *DirectoryStore) dispatch(ev DirectoryEvent) {
	s.mu.Lock()
	next, intents := ReduceDirectory(s.state, ev)
	s.state = next
	s.mu.Unlock()

	recordTransition(s.recorder, "users", next.Status)
	s.effects.Execute(intents)
}

// Snapshot は現在の状態のコピーを返す。
func (s *DirectoryStore) Snapshot() DirectoryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Reset は状態を初期化する。
func (s *DirectoryStore) Reset() {
	s.mu.Lock()
	s.state = DirectoryState{Users: []Entry[model.User]{}}
	s.mu.Unlock()
}

// Fetch はユーザー一覧を取得する。
func (s *DirectoryStore) Fetch(ctx context.Context) error {
	s.dispatch(UsersRequested{})
	users, err := s.api.List(ctx)
	if err != nil {
		s.dispatch(UsersFailed{Err: err})
		return err
	}
	s.dispatch(UsersLoaded{Users: users})
	return nil
}

// Delete はユーザーを削除する。処理中は対象レコードのDeletingが立つ。
func (s *DirectoryStore) Delete(ctx context.Context, username string) error {
	s.dispatch(UserDeleteRequested{Username: username})
	if err := s.api.Delete(ctx, username); err != nil {
		s.dispatch(UserDeleteFailed{Username: username, Err: err})
		return err
	}
	s.dispatch(UserDeleted{Username: username})
	return nil
}

// SetEnabled はアカウントの有効/無効を切り替える。処理中は対象レコードのUpdatingが立つ。
func (s *DirectoryStore) SetEnabled(ctx context.Context, username string, enabled bool) error {
	s.dispatch(UserToggleRequested{Username: username})

	var err error
	if enabled {
		err = s.api.Enable(ctx, username)
	} else {
		err = s.api.Disable(ctx, username)
	}
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("toggle user failed",
				slog.String("username", username),
				slog.Bool("enabled", enabled),
				slog.String("error", err.Error()),
			)
		}
		s.dispatch(UserToggleFailed{Username: username, Err: err})
		return err
	}
	s.dispatch(UserToggled{Username: username, Enabled: enabled})
	return nil
}
