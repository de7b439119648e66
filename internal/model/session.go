package model

// Session は認証済みユーザーのセッションを表す。
// ログイン成功時に生成され、ログアウトまたは401応答で破棄される。
type Session struct {
	AccessToken string `json:"access_token"`
	Username    string `json:"username"`
}

// Valid はトークンとユーザー名の両方が設定されているかを返す。
func (s Session) Valid() bool {
	return s.AccessToken != "" && s.Username != ""
}
