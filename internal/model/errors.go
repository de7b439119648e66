package model

import (
	"errors"
	"fmt"
	"net/http"
)

// エラーカテゴリ
const (
	CategoryNetwork    = "network"
	CategoryHTTP       = "http"
	CategoryAuth       = "auth"
	CategoryParse      = "parse"
	CategoryValidation = "validation"
)

var (
	// ErrAuthExpired は401応答を表す。errors.Isで*HTTPErrorと照合できる。
	ErrAuthExpired = errors.New("authentication expired")

	// ErrNotAuthenticated はセッションが存在しない状態で認証が必要な操作を行った場合のエラー。
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrInvalidArgument はクライアント側の入力検証エラー。
	ErrInvalidArgument = errors.New("invalid argument")
)

// NetworkError はレスポンスを受信できなかったトランスポート障害を表す。
type NetworkError struct {
	Op  string // 操作名（例: timezone.list）
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

// Unwrap は元のエラーを返す。context.Canceledなどの判定に使う。
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPError は2xx以外のHTTPレスポンスを表す。
// Messageはサーバーのmessageフィールド、なければステータステキスト。
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error はerrorインターフェースを実装する。
// UIにそのまま表示できるよう、メッセージのみを返す。
func (e *HTTPError) Error() string {
	return e.Message
}

// Is は401応答をErrAuthExpiredとして扱う。
func (e *HTTPError) Is(target error) bool {
	return target == ErrAuthExpired && e.AuthExpired()
}

// AuthExpired は401応答かどうかを返す。
func (e *HTTPError) AuthExpired() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// ParseError はJSONを期待したレスポンスボディの解析失敗を表す。
type ParseError struct {
	Op  string
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse response of %s: %v", e.Op, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewInvalidArgumentError は入力検証エラーを生成する。
func NewInvalidArgumentError(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, reason)
}

// Category はエラーのカテゴリを返す。分類できない場合は空文字列。
func Category(err error) string {
	var netErr *NetworkError
	var httpErr *HTTPError
	var parseErr *ParseError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &httpErr):
		if httpErr.AuthExpired() {
			return CategoryAuth
		}
		return CategoryHTTP
	case errors.As(err, &netErr):
		return CategoryNetwork
	case errors.As(err, &parseErr):
		return CategoryParse
	case errors.Is(err, ErrNotAuthenticated):
		return CategoryAuth
	case errors.Is(err, ErrInvalidArgument):
		return CategoryValidation
	default:
		return ""
	}
}
