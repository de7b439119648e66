package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/hitoshi/tzkeeper/internal/apiclient"
	"github.com/hitoshi/tzkeeper/internal/auth"
	"github.com/hitoshi/tzkeeper/internal/model"
)

const (
	msgTimezoneCreated = "Timezone added successfully"
	msgTimezoneUpdated = "Timezone updated successfully"
)

var timezoneKey = keyed[model.Timezone]{key: func(tz model.Timezone) string { return tz.Name }}

// TimezoneState はタイムゾーンストアの状態。
type TimezoneState struct {
	// Own はログインユーザーのタイムゾーン。Nameがキー。
	Own []Entry[model.Timezone] `json:"user_timezones"`
	// Catalog は選択可能なタイムゾーンの一覧。
	Catalog []model.Timezone `json:"timezones"`
	Status  Status           `json:"status"`
}

// Clone は独立したコピーを返す。
func (s TimezoneState) Clone() TimezoneState {
	return TimezoneState{
		Own:     cloneSlice(s.Own),
		Catalog: cloneSlice(s.Catalog),
		Status:  s.Status,
	}
}

// TimezoneEvent はタイムゾーンストアへの入力イベント。
type TimezoneEvent interface {
	timezoneEvent()
}

type (
	FetchOwnRequested struct{}
	OwnLoaded         struct{ Timezones []model.Timezone }
	FetchOwnFailed    struct{ Err error }

	FetchAllRequested struct{}
	CatalogLoaded     struct{ Timezones []model.Timezone }
	FetchAllFailed    struct{ Err error }

	CreateRequested struct{ Timezone model.Timezone }
	Created         struct{ Timezone model.Timezone }
	CreateFailed    struct{ Err error }

	UpdateRequested struct{ Name string }
	Updated         struct {
		Name  string
		Patch model.TimezonePatch
	}
	UpdateFailed struct {
		Name string
		Err  error
	}

	DeleteRequested struct{ Name string }
	Deleted         struct{ Name string }
	DeleteFailed    struct {
		Name string
		Err  error
	}
)

func (FetchOwnRequested) timezoneEvent() {}
func (OwnLoaded) timezoneEvent()         {}
func (FetchOwnFailed) timezoneEvent()    {}
func (FetchAllRequested) timezoneEvent() {}
func (CatalogLoaded) timezoneEvent()     {}
func (FetchAllFailed) timezoneEvent()    {}
func (CreateRequested) timezoneEvent()   {}
func (Created) timezoneEvent()           {}
func (CreateFailed) timezoneEvent()      {}
func (UpdateRequested) timezoneEvent()   {}
func (Updated) timezoneEvent()           {}
func (UpdateFailed) timezoneEvent()      {}
func (DeleteRequested) timezoneEvent()   {}
func (Deleted) timezoneEvent()           {}
func (DeleteFailed) timezoneEvent()      {}

// ReduceTimezones はイベントを適用した新しい状態と、実行すべきIntentを返す。
// 引数の状態は変更しない。
func ReduceTimezones(s TimezoneState, ev TimezoneEvent) (TimezoneState, []Intent) {
	next := s.Clone()

	switch e := ev.(type) {
	case FetchOwnRequested:
		next.Status = Pending(OpFetchOwn)
	case OwnLoaded:
		next.Own = timezoneKey.replace(s.Own, e.Timezones)
		next.Status = Succeeded(OpFetchOwn)
	case FetchOwnFailed:
		next.Own = []Entry[model.Timezone]{}
		next.Status = Failed(OpFetchOwn, e.Err)

	case FetchAllRequested:
		next.Status = Pending(OpFetchAll)
	case CatalogLoaded:
		next.Catalog = append([]model.Timezone{}, e.Timezones...)
		next.Status = Succeeded(OpFetchAll)
	case FetchAllFailed:
		next.Catalog = nil
		next.Status = Failed(OpFetchAll, e.Err)

	case CreateRequested:
		next.Status = Pending(OpCreate)
	case Created:
		next.Own = append(next.Own, Entry[model.Timezone]{Value: e.Timezone})
		next.Status = Succeeded(OpCreate)
		return next, []Intent{NavigateBack{}, notifySuccess(msgTimezoneCreated)}
	case CreateFailed:
		next.Status = Failed(OpCreate, e.Err)
		return next, []Intent{notifyError(errorText(e.Err))}

	case UpdateRequested:
		next.Own = timezoneKey.update(next.Own, e.Name, func(en Entry[model.Timezone]) Entry[model.Timezone] {
			return en.beginUpdate()
		})
		next.Status = Pending(OpUpdate)
	case Updated:
		next.Own = timezoneKey.update(next.Own, e.Name, func(en Entry[model.Timezone]) Entry[model.Timezone] {
			en.Value = e.Patch.Apply(en.Value)
			return en.endUpdate()
		})
		next.Status = Succeeded(OpUpdate)
		return next, []Intent{NavigateBack{}, notifySuccess(msgTimezoneUpdated)}
	case UpdateFailed:
		next.Own = timezoneKey.update(next.Own, e.Name, func(en Entry[model.Timezone]) Entry[model.Timezone] {
			en = en.endUpdate()
			en.UpdateError = errorText(e.Err)
			return en
		})
		next.Status = Failed(OpUpdate, e.Err)

	case DeleteRequested:
		next.Own = timezoneKey.update(next.Own, e.Name, func(en Entry[model.Timezone]) Entry[model.Timezone] {
			return en.beginDelete()
		})
		next.Status = Pending(OpDelete)
	case Deleted:
		next.Own = timezoneKey.removeFirst(next.Own, e.Name)
		next.Status = Succeeded(OpDelete)
	case DeleteFailed:
		next.Own = timezoneKey.update(next.Own, e.Name, func(en Entry[model.Timezone]) Entry[model.Timezone] {
			en = en.endDelete()
			en.DeleteError = errorText(e.Err)
			return en
		})
		next.Status = Failed(OpDelete, e.Err)
	}

	return next, nil
}

// errorText はUI表示用のエラー文字列を返す。
func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// TimezoneAPI はTimezoneStoreが利用するAPI操作。
type TimezoneAPI interface {
	List(ctx context.Context, opts ...apiclient.CallOption) ([]model.Timezone, error)
	ListByOwner(ctx context.Context, owner string, opts ...apiclient.CallOption) ([]model.Timezone, error)
	Create(ctx context.Context, owner string, tz model.Timezone, opts ...apiclient.CallOption) (*model.Timezone, error)
	Update(ctx context.Context, owner, name string, patch model.TimezonePatch, opts ...apiclient.CallOption) error
	Delete(ctx context.Context, owner, name string, opts ...apiclient.CallOption) error
}

// TimezoneStore はログインユーザーのタイムゾーンとカタログを保持する。
// 操作はキー単位で独立しており、異なるレコードへの操作は並行して実行できる。
type TimezoneStore struct {
	mu       sync.Mutex
	state    TimezoneState
	api      TimezoneAPI
	sessions auth.SessionSource
	effects  *Coordinator
	recorder TransitionRecorder
	logger   *slog.Logger
}

// NewTimezoneStore はTimezoneStoreを生成する。
func NewTimezoneStore(api TimezoneAPI, sessions auth.SessionSource, effects *Coordinator, recorder TransitionRecorder, logger *slog.Logger) *TimezoneStore {
	return &TimezoneStore{
		state:    TimezoneState{Own: []Entry[model.Timezone]{}},
		api:      api,
		sessions: sessions,
		effects:  effects,
		recorder: recorder,
		logger:   logger,
	}
}

func (s *TimezoneStore) dispatch(ev TimezoneEvent) {
	s.mu.Lock()
	next, intents := ReduceTimezones(s.state, ev)
	s.state = next
	s.mu.Unlock()

	recordTransition(s.recorder, "timezones", next.Status)
	s.effects.Execute(intents)
}

// Snapshot は現在の状態のコピーを返す。
func (s *TimezoneStore) Snapshot() TimezoneState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Reset は状態を初期化する。ログアウト後に前ユーザーのデータを残さないために使う。
func (s *TimezoneStore) Reset() {
	s.mu.Lock()
	s.state = TimezoneState{Own: []Entry[model.Timezone]{}}
	s.mu.Unlock()
}

func (s *TimezoneStore) owner() (string, error) {
	if s.sessions == nil {
		return "", model.ErrNotAuthenticated
	}
	sess, ok := s.sessions.Current()
	if !ok {
		return "", model.ErrNotAuthenticated
	}
	return sess.Username, nil
}

// FetchOwn はログインユーザーのタイムゾーン一覧を取得する。
// 未認証の場合は状態を変えずにErrNotAuthenticatedを返す。
func (s *TimezoneStore) FetchOwn(ctx context.Context) error {
	owner, err := s.owner()
	if err != nil {
		return err
	}

	s.dispatch(FetchOwnRequested{})
	list, err := s.api.ListByOwner(ctx, owner)
	if err != nil {
		s.logFailure("fetch own timezones", err)
		s.dispatch(FetchOwnFailed{Err: err})
		return err
	}
	s.dispatch(OwnLoaded{Timezones: list})
	return nil
}

// FetchAll はタイムゾーンカタログを取得する。
func (s *TimezoneStore) FetchAll(ctx context.Context) error {
	s.dispatch(FetchAllRequested{})
	list, err := s.api.List(ctx)
	if err != nil {
		s.logFailure("fetch timezone catalog", err)
		s.dispatch(FetchAllFailed{Err: err})
		return err
	}
	s.dispatch(CatalogLoaded{Timezones: list})
	return nil
}

// Create はタイムゾーンを追加する。成功すると一覧の末尾に追加される。
func (s *TimezoneStore) Create(ctx context.Context, tz model.Timezone) error {
	owner, err := s.owner()
	if err != nil {
		return err
	}

	s.dispatch(CreateRequested{Timezone: tz})
	created, err := s.api.Create(ctx, owner, tz)
	if err != nil {
		s.logFailure("create timezone", err)
		s.dispatch(CreateFailed{Err: err})
		return err
	}
	s.dispatch(Created{Timezone: *created})
	return nil
}

// Update はタイムゾーンを部分更新する。処理中は対象レコードのUpdatingが立つ。
func (s *TimezoneStore) Update(ctx context.Context, name string, patch model.TimezonePatch) error {
	owner, err := s.owner()
	if err != nil {
		return err
	}

	s.dispatch(UpdateRequested{Name: name})
	if err := s.api.Update(ctx, owner, name, patch); err != nil {
		s.logFailure("update timezone", err)
		s.dispatch(UpdateFailed{Name: name, Err: err})
		return err
	}
	s.dispatch(Updated{Name: name, Patch: patch})
	return nil
}

// Delete はタイムゾーンを削除する。処理中は対象レコードのDeletingが立つ。
func (s *TimezoneStore) Delete(ctx context.Context, name string) error {
	owner, err := s.owner()
	if err != nil {
		return err
	}

	s.dispatch(DeleteRequested{Name: name})
	if err := s.api.Delete(ctx, owner, name); err != nil {
		s.logFailure("delete timezone", err)
		s.dispatch(DeleteFailed{Name: name, Err: err})
		return err
	}
	s.dispatch(Deleted{Name: name})
	return nil
}

func (s *TimezoneStore) logFailure(op string, err error) {
	if s.logger == nil {
		return
	}
	level := slog.LevelWarn
	if errors.Is(err, model.ErrAuthExpired) {
		level = slog.LevelInfo
	}
	s.logger.Log(context.Background(), level, op+" failed",
		slog.String("error", err.Error()),
		slog.String("category", model.Category(err)),
	)
}
