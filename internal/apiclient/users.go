package apiclient

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/tzkeeper/internal/auth"
	"github.com/hitoshi/tzkeeper/internal/model"
)

// UserClient は認証とユーザー管理のエンドポイントを扱う。
type UserClient struct {
	c *Client
}

// NewUserClient はUserClientを生成する。
func NewUserClient(c *Client) *UserClient {
	return &UserClient{c: c}
}

// Login は資格情報を送信し、アクセストークンを含むレスポンスを返す。
// 認証ヘッダーは付与しないため、401でも自動ログアウトは起きない。
func (u *UserClient) Login(ctx context.Context, username, password string) (*model.LoginResponse, error) {
	if strings.TrimSpace(username) == "" {
		return nil, model.NewInvalidArgumentError("username is required")
	}
	if password == "" {
		return nil, model.NewInvalidArgumentError("password is required")
	}

	var out model.LoginResponse
	err := u.c.do(ctx, request{
		operation: "user.login",
		method:    http.MethodPost,
		segments:  []string{"auth", "login"},
		body:      model.Credentials{Username: username, Password: password},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout はサーバー側のセッションを破棄する。
// ローカルのセッションは既に破棄されている前提で、トークンは明示的に渡す。
func (u *UserClient) Logout(ctx context.Context, token string, opts ...CallOption) error {
	header := http.Header{}
	if token != "" {
		header.Set(auth.HeaderAuthorization, auth.BearerToken(token))
	}
	return u.c.do(ctx, request{
		operation: "user.logout",
		method:    http.MethodPost,
		segments:  []string{"auth", "logout"},
		header:    header,
	}, nil, append([]CallOption{WithoutAutoLogout()}, opts...)...)
}

// Register はユーザーを新規登録する。
func (u *UserClient) Register(ctx context.Context, reg model.Registration) (*model.User, error) {
	if strings.TrimSpace(reg.Username) == "" {
		return nil, model.NewInvalidArgumentError("username is required")
	}
	if reg.Password == "" {
		return nil, model.NewInvalidArgumentError("password is required")
	}

	var out model.User
	err := u.c.do(ctx, request{
		operation: "user.register",
		method:    http.MethodPost,
		segments:  []string{"user"},
		body:      reg,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Username == "" {
		out = model.User{
			Username:  reg.Username,
			FirstName: reg.FirstName,
			LastName:  reg.LastName,
			Email:     reg.Email,
		}
	}
	return &out, nil
}

// List は全ユーザーを返す。
func (u *UserClient) List(ctx context.Context, opts ...CallOption) ([]model.User, error) {
	var out model.ListEnvelope[model.User]
	err := u.c.do(ctx, request{
		operation:     "user.list",
		method:        http.MethodGet,
		segments:      []string{"user"},
		authenticated: true,
	}, &out, opts...)
	if err != nil {
		return nil, err
	}
	if out.Data == nil {
		return []model.User{}, nil
	}
	return out.Data, nil
}

// GetByID はIDでユーザーを取得する。
func (u *UserClient) GetByID(ctx context.Context, id string, opts ...CallOption) (*model.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, model.NewInvalidArgumentError("user id is required")
	}
	return u.get(ctx, "user.get_by_id", id, opts)
}

// GetByUsername はユーザー名でユーザーを取得する。現在のユーザーのプロフィール取得に使う。
func (u *UserClient) GetByUsername(ctx context.Context, username string, opts ...CallOption) (*model.User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, model.NewInvalidArgumentError("username is required")
	}
	return u.get(ctx, "user.get", username, opts)
}

func (u *UserClient) get(ctx context.Context, operation, key string, opts []CallOption) (*model.User, error) {
	var out model.User
	err := u.c.do(ctx, request{
		operation:     operation,
		method:        http.MethodGet,
		segments:      []string{"user", key},
		authenticated: true,
	}, &out, opts...)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Update はユーザー情報を部分更新する。
func (u *UserClient) Update(ctx context.Context, username string, patch model.UserPatch, opts ...CallOption) error {
	if strings.TrimSpace(username) == "" {
		return model.NewInvalidArgumentError("username is required")
	}
	if patch.IsEmpty() {
		return model.NewInvalidArgumentError("nothing to update")
	}
	return u.c.do(ctx, request{
		operation:     "user.update",
		method:        http.MethodPut,
		segments:      []string{"user", username},
		body:          patch,
		authenticated: true,
	}, nil, opts...)
}

// Delete はユーザーを削除する。
func (u *UserClient) Delete(ctx context.Context, username string, opts ...CallOption) error {
	if strings.TrimSpace(username) == "" {
		return model.NewInvalidArgumentError("username is required")
	}
	return u.c.do(ctx, request{
		operation:     "user.delete",
		method:        http.MethodDelete,
		segments:      []string{"user", username},
		authenticated: true,
	}, nil, opts...)
}

// Enable はアカウントを有効化する。
func (u *UserClient) Enable(ctx context.Context, username string, opts ...CallOption) error {
	return u.toggle(ctx, "user.enable", username, "enable", opts)
}

// Disable はアカウントを無効化する。
func (u *UserClient) Disable(ctx context.Context, username string, opts ...CallOption) error {
	return u.toggle(ctx, "user.disable", username, "disable", opts)
}

func (u *UserClient) toggle(ctx context.Context, operation, username, action string, opts []CallOption) error {
	if strings.TrimSpace(username) == "" {
		return model.NewInvalidArgumentError("username is required")
	}
	return u.c.do(ctx, request{
		operation:     operation,
		method:        http.MethodPost,
		segments:      []string{"user", username, action},
		authenticated: true,
	}, nil, opts...)
}
