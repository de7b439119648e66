// Package model はドメインモデルを定義する。
package model

// User はAPIが返すユーザープロフィールを表す。
type User struct {
	ID        string `json:"id,omitempty"`
	Username  string `json:"username"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	Enabled   bool   `json:"enabled"`
}

// Registration はユーザー登録リクエストのペイロード。
type Registration struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// Credentials はログインリクエストのペイロード。
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse はログイン成功時のレスポンスボディ。
type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

// UserPatch はユーザー更新の部分ペイロード。
// nilフィールドは変更せず、既存の値を維持する。
type UserPatch struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Email     *string `json:"email,omitempty"`
	Password  *string `json:"password,omitempty"`
	Role      *string `json:"role,omitempty"`
}

// IsEmpty は変更対象のフィールドが1つもないかを返す。
func (p UserPatch) IsEmpty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Email == nil &&
		p.Password == nil && p.Role == nil
}

// Apply はパッチの非nilフィールドのみをuへ反映したコピーを返す。
// Passwordはプロフィールに保持しないため反映対象外。
func (p UserPatch) Apply(u User) User {
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	return u
}
