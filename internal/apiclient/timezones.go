package apiclient

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/tzkeeper/internal/model"
)

// TimezoneClient はタイムゾーンのエンドポイントを扱う。
// 全てのリクエストは認証ヘッダーを付与する。
type TimezoneClient struct {
	c *Client
}

// NewTimezoneClient はTimezoneClientを生成する。
func NewTimezoneClient(c *Client) *TimezoneClient {
	return &TimezoneClient{c: c}
}

// List はタイムゾーンカタログ全体を返す。
func (t *TimezoneClient) List(ctx context.Context, opts ...CallOption) ([]model.Timezone, error) {
	return t.list(ctx, "timezone.list", []string{"timezone"}, opts)
}

// ListByOwner はユーザーが所有するタイムゾーンを返す。
func (t *TimezoneClient) ListByOwner(ctx context.Context, owner string, opts ...CallOption) ([]model.Timezone, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	return t.list(ctx, "timezone.list_own", []string{"timezone", owner}, opts)
}

func (t *TimezoneClient) list(ctx context.Context, operation string, segments []string, opts []CallOption) ([]model.Timezone, error) {
	var out model.ListEnvelope[model.Timezone]
	err := t.c.do(ctx, request{
		operation:     operation,
		method:        http.MethodGet,
		segments:      segments,
		authenticated: true,
	}, &out, opts...)
	if err != nil {
		return nil, err
	}
	if out.Data == nil {
		return []model.Timezone{}, nil
	}
	return out.Data, nil
}

// Get はユーザーのタイムゾーンを名前で取得する。
func (t *TimezoneClient) Get(ctx context.Context, owner, name string, opts ...CallOption) (*model.Timezone, error) {
	if err := requireOwnerAndName(owner, name); err != nil {
		return nil, err
	}
	var out model.Timezone
	err := t.c.do(ctx, request{
		operation:     "timezone.get",
		method:        http.MethodGet,
		segments:      []string{"timezone", owner, name},
		authenticated: true,
	}, &out, opts...)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Create はユーザーにタイムゾーンを追加する。
// サーバーがボディを返さない場合は送信した値を返す。
func (t *TimezoneClient) Create(ctx context.Context, owner string, tz model.Timezone, opts ...CallOption) (*model.Timezone, error) {
	if err := requireOwnerAndName(owner, tz.Name); err != nil {
		return nil, err
	}
	var out model.Timezone
	err := t.c.do(ctx, request{
		operation:     "timezone.create",
		method:        http.MethodPost,
		segments:      []string{"timezone", owner},
		body:          tz,
		authenticated: true,
	}, &out, opts...)
	if err != nil {
		return nil, err
	}
	if out.Name == "" {
		out = tz
	}
	return &out, nil
}

// Update はユーザーのタイムゾーンを部分更新する。
func (t *TimezoneClient) Update(ctx context.Context, owner, name string, patch model.TimezonePatch, opts ...CallOption) error {
	if err := requireOwnerAndName(owner, name); err != nil {
		return err
	}
	if patch.IsEmpty() {
		return model.NewInvalidArgumentError("nothing to update")
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return model.NewInvalidArgumentError("timezone name must not be empty")
	}
	return t.c.do(ctx, request{
		operation:     "timezone.update",
		method:        http.MethodPut,
		segments:      []string{"timezone", owner, name},
		body:          patch,
		authenticated: true,
	}, nil, opts...)
}

// Delete はユーザーのタイムゾーンを削除する。
func (t *TimezoneClient) Delete(ctx context.Context, owner, name string, opts ...CallOption) error {
	if err := requireOwnerAndName(owner, name); err != nil {
		return err
	}
	return t.c.do(ctx, request{
		operation:     "timezone.delete",
		method:        http.MethodDelete,
		segments:      []string{"timezone", owner, name},
		authenticated: true,
	}, nil, opts...)
}

func requireOwner(owner string) error {
	if strings.TrimSpace(owner) == "" {
		return model.NewInvalidArgumentError("owner username is required")
	}
	return nil
}

func requireOwnerAndName(owner, name string) error {
	if err := requireOwner(owner); err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return model.NewInvalidArgumentError("timezone name is required")
	}
	return nil
}
