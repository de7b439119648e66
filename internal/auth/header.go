// Package auth は認証済みリクエストに付与するヘッダーを提供する。
package auth

import "github.com/hitoshi/tzkeeper/internal/model"

// HeaderAuthorization は認証トークンを運ぶヘッダー名。
const HeaderAuthorization = "Authorization"

// SessionSource は現在のセッションを参照するためのインターフェース。
type SessionSource interface {
	// Current は現在のセッションを返す。未認証の場合はfalseを返す。
	Current() (model.Session, bool)
}

// HeaderProvider はセッションストアの状態から認証ヘッダーを生成する。
// 副作用を持たない。
type HeaderProvider struct {
	sessions SessionSource
}

// NewHeaderProvider はHeaderProviderを生成する。
func NewHeaderProvider(sessions SessionSource) *HeaderProvider {
	return &HeaderProvider{sessions: sessions}
}

// Headers はセッションが存在すればBearerトークンを含むヘッダーを返す。
// 未認証の場合は空のマップを返す。
func (p *HeaderProvider) Headers() map[string]string {
	headers := make(map[string]string, 1)
	if p.sessions == nil {
		return headers
	}

	sess, ok := p.sessions.Current()
	if !ok || sess.AccessToken == "" {
		return headers
	}

	headers[HeaderAuthorization] = BearerToken(sess.AccessToken)
	return headers
}

// BearerToken はAuthorizationヘッダーの値を組み立てる。
func BearerToken(token string) string {
	return "Bearer " + token
}
