// Package store はAPI操作のリクエストライフサイクル（要求→成功/失敗）を保持する状態コンテナを提供する。
//
// 各ストアの状態遷移は純粋関数（ReduceXxx）として定義され、
// 画面遷移や通知といった副作用はIntentとして返される。
// ストアはロックを解放した後、Coordinatorを通じてIntentを実行する。
package store

import (
	"encoding/json"
	"fmt"
)

// Phase は操作の進行段階を表す。
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseSucceeded
	PhaseFailed
)

// String はPhaseの文字列表現を返す。
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText はJSON出力用にPhaseを文字列化する。
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// OpKind は追跡対象の操作種別。
type OpKind string

const (
	OpNone          OpKind = ""
	OpFetchOwn      OpKind = "fetch_own"
	OpFetchAll      OpKind = "fetch_all"
	OpCreate        OpKind = "create"
	OpUpdate        OpKind = "update"
	OpDelete        OpKind = "delete"
	OpFetchProfile  OpKind = "fetch_profile"
	OpUpdateProfile OpKind = "update_profile"
	OpFetchUsers    OpKind = "fetch_users"
	OpDeleteUser    OpKind = "delete_user"
	OpSetEnabled    OpKind = "set_enabled"
	OpLogin         OpKind = "login"
	OpLogout        OpKind = "logout"
	OpRegister      OpKind = "register"
)

// Status はストア単位のリクエスト状態。
// idle, pending(kind), succeeded(kind), failed(kind, error) のいずれか1つだけを表す。
type Status struct {
	Phase Phase
	Kind  OpKind
	Err   string
}

// Idle は初期状態を返す。
func Idle() Status { return Status{} }

// Pending は操作中の状態を返す。
func Pending(kind OpKind) Status { return Status{Phase: PhasePending, Kind: kind} }

// Succeeded は成功状態を返す。
func Succeeded(kind OpKind) Status { return Status{Phase: PhaseSucceeded, Kind: kind} }

// Failed は失敗状態を返す。errがnilの場合はメッセージを空にする。
func Failed(kind OpKind, err error) Status {
	s := Status{Phase: PhaseFailed, Kind: kind}
	if err != nil {
		s.Err = err.Error()
	}
	return s
}

// Is は指定の段階と種別に一致するかを返す。
func (s Status) Is(phase Phase, kind OpKind) bool {
	return s.Phase == phase && s.Kind == kind
}

// MarshalJSON はStatusを {"phase":..., "kind":..., "error":...} 形式で出力する。
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Phase Phase  `json:"phase"`
		Kind  OpKind `json:"kind,omitempty"`
		Err   string `json:"error,omitempty"`
	}{s.Phase, s.Kind, s.Err})
}
