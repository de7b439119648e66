package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/tzkeeper/internal/apiclient"
	"github.com/hitoshi/tzkeeper/internal/auth"
	"github.com/hitoshi/tzkeeper/internal/model"
)

const msgProfileUpdated = "Profile updated successfully"

// ProfileState は現在のユーザーのプロフィール状態。
type ProfileState struct {
	User   *model.User `json:"user,omitempty"`
	Status Status      `json:"status"`
}

// ProfileEvent はプロフィールストアへの入力イベント。
type ProfileEvent interface {
	profileEvent()
}

type (
	ProfileRequested       struct{}
	ProfileLoaded          struct{ User model.User }
	ProfileFailed          struct{ Err error }
	ProfileUpdateRequested struct{}
	ProfileUpdated         struct{ Patch model.UserPatch }
	ProfileUpdateFailed    struct{ Err error }
)

func (ProfileRequested) profileEvent()       {}
func (ProfileLoaded) profileEvent()          {}
func (ProfileFailed) profileEvent()          {}
func (ProfileUpdateRequested) profileEvent() {}
func (ProfileUpdated) profileEvent()         {}
func (ProfileUpdateFailed) profileEvent()    {}

// ReduceProfile はイベントを適用した新しい状態と、実行すべきIntentを返す。
func ReduceProfile(s ProfileState, ev ProfileEvent) (ProfileState, []Intent) {
	next := ProfileState{User: cloneUser(s.User), Status: s.Status}

	switch e := ev.(type) {
	case ProfileRequested:
		next.Status = Pending(OpFetchProfile)
	case ProfileLoaded:
		u := e.User
		next.User = &u
		next.Status = Succeeded(OpFetchProfile)
	case ProfileFailed:
		next.Status = Failed(OpFetchProfile, e.Err)
	case ProfileUpdateRequested:
		next.Status = Pending(OpUpdateProfile)
	case ProfileUpdated:
		base := model.User{}
		if next.User != nil {
			base = *next.User
		}
		merged := e.Patch.Apply(base)
		next.User = &merged
		next.Status = Succeeded(OpUpdateProfile)
		return next, []Intent{notifySuccess(msgProfileUpdated)}
	case ProfileUpdateFailed:
		next.Status = Failed(OpUpdateProfile, e.Err)
		return next, []Intent{notifyError(errorText(e.Err))}
	}
	return next, nil
}

func cloneUser(u *model.User) *model.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// ProfileAPI はProfileStoreが利用するAPI操作。
type ProfileAPI interface {
	GetByUsername(ctx context.Context, username string, opts ...apiclient.CallOption) (*model.User, error)
	Update(ctx context.Context, username string, patch model.UserPatch, opts ...apiclient.CallOption) error
}

// ProfileStore はログインユーザーのプロフィールを保持する。
type ProfileStore struct {
	mu       sync.Mutex
	state    ProfileState
	api      ProfileAPI
	sessions auth.SessionSource
	effects  *Coordinator
	recorder TransitionRecorder
	logger   *slog.Logger
}

// NewProfileStore はProfileStoreを生成する。
func NewProfileStore(api ProfileAPI, sessions auth.SessionSource, effects *Coordinator, recorder TransitionRecorder, logger *slog.Logger) *ProfileStore {
	return &ProfileStore{
		api:      api,
		sessions: sessions,
		effects:  effects,
		recorder: recorder,
		logger:   logger,
	}
}

func (s *ProfileStore) dispatch(ev ProfileEvent) {
	s.mu.Lock()
	next, intents := ReduceProfile(s.state, ev)
	s.state = next
	s.mu.Unlock()

	recordTransition(s.recorder, "profile", next.Status)
	s.effects.Execute(intents)
}

// Snapshot は現在の状態のコピーを返す。
func (s *ProfileStore) Snapshot() ProfileState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ProfileState{User: cloneUser(s.state.User), Status: s.state.Status}
}

// Reset は状態を初期化する。
func (s *ProfileStore) Reset() {
	s.mu.Lock()
	s.state = ProfileState{}
	s.mu.Unlock()
}

func (s *ProfileStore) username() (string, error) {
	if s.sessions == nil {
		return "", model.ErrNotAuthenticated
	}
	sess, ok := s.sessions.Current()
	if !ok {
		return "", model.ErrNotAuthenticated
	}
	return sess.Username, nil
}

// Fetch はログインユーザーのプロフィールを取得する。
func (s *ProfileStore) Fetch(ctx context.Context) (*model.User, error) {
	username, err := s.username()
	if err != nil {
		return nil, err
	}

	s.dispatch(ProfileRequested{})
	u, err := s.api.GetByUsername(ctx, username)
	if err != nil {
		s.dispatch(ProfileFailed{Err: err})
		return nil, err
	}
	s.dispatch(ProfileLoaded{User: *u})
	return u, nil
}

// Update はプロフィールを部分更新し、成功時は既存の値へマージする。
func (s *ProfileStore) Update(ctx context.Context, patch model.UserPatch) error {
	username, err := s.username()
	if err != nil {
		return err
	}

	s.dispatch(ProfileUpdateRequested{})
	if err := s.api.Update(ctx, username, patch); err != nil {
		if s.logger != nil {
			s.logger.Warn("update profile failed",
				slog.String("error", err.Error()),
				slog.String("category", model.Category(err)),
			)
		}
		s.dispatch(ProfileUpdateFailed{Err: err})
		return err
	}
	s.dispatch(ProfileUpdated{Patch: patch})
	return nil
}
