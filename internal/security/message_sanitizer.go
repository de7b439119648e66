// Package security はAPIクライアントのセキュリティ機能を提供する。
//
// MessageSanitizer はサーバーから受け取ったエラーメッセージをプレーンテキスト化し、
// 状態や通知に埋め込まれたHTMLがそのまま表示されることを防ぐ。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MessageSanitizer はbluemondayのStrictPolicyで全タグを除去する。
// bluemonday.Policyはスレッドセーフなため、複数goroutineから共有できる。
type MessageSanitizer struct {
	policy *bluemonday.Policy
}

// NewMessageSanitizer はMessageSanitizerを生成する。
func NewMessageSanitizer() *MessageSanitizer {
	return &MessageSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeMessage はタグを除去し、エスケープされた実体参照を元に戻したテキストを返す。
// 前後の空白は取り除く。
func (s *MessageSanitizer) SanitizeMessage(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}
