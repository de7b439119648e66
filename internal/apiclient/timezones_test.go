package apiclient

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/tzkeeper/internal/model"
)

func newTimezoneTestClient(t *testing.T, api *fakeAPI, opts ...Option) *TimezoneClient {
	t.Helper()
	opts = append([]Option{WithHeaderSource(staticHeaders{"Authorization": "Bearer abc"})}, opts...)
	c, _ := newTestClient(t, api.router(), opts...)
	return NewTimezoneClient(c)
}

func TestTimezoneClient_List_Catalog(t *testing.T) {
	tc := newTimezoneTestClient(t, newFakeAPI())

	catalog, err := tc.List(context.Background())
	if err != nil {
		t.Fatalf("List がエラーを返した: %v", err)
	}
	if len(catalog) != 2 || catalog[0].City != "Tokyo" {
		t.Errorf("catalog = %+v", catalog)
	}
}

func TestTimezoneClient_ListByOwner_EmptyIsNonNil(t *testing.T) {
	tc := newTimezoneTestClient(t, newFakeAPI())

	got, err := tc.ListByOwner(context.Background(), "bob")
	if err != nil {
		t.Fatalf("ListByOwner がエラーを返した: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got = %#v, want empty slice", got)
	}
}

// 作成したレコードを一覧で取得すると送信した値と一致する。
func TestTimezoneClient_CreateThenList_RoundTrip(t *testing.T) {
	tc := newTimezoneTestClient(t, newFakeAPI())
	ctx := context.Background()
	sent := model.Timezone{Name: "tz1", TimezoneID: 2}

	created, err := tc.Create(ctx, "bob", sent)
	if err != nil {
		t.Fatalf("Create がエラーを返した: %v", err)
	}
	if *created != sent {
		t.Errorf("created = %+v, want %+v", created, sent)
	}

	list, err := tc.ListByOwner(ctx, "bob")
	if err != nil {
		t.Fatalf("ListByOwner がエラーを返した: %v", err)
	}
	if len(list) != 1 || list[0] != sent {
		t.Errorf("list = %+v, want [%+v]", list, sent)
	}

	one, err := tc.Get(ctx, "bob", "tz1")
	if err != nil {
		t.Fatalf("Get がエラーを返した: %v", err)
	}
	if *one != sent {
		t.Errorf("Get = %+v", one)
	}
}

func TestTimezoneClient_UpdateAndDelete(t *testing.T) {
	api := newFakeAPI()
	api.timezones["bob"] = []model.Timezone{{Name: "tz1", TimezoneID: 1}, {Name: "tz2", TimezoneID: 2}}
	tc := newTimezoneTestClient(t, api)
	ctx := context.Background()

	newID := 5
	if err := tc.Update(ctx, "bob", "tz1", model.TimezonePatch{TimezoneID: &newID}); err != nil {
		t.Fatalf("Update がエラーを返した: %v", err)
	}
	if got := api.timezones["bob"][0]; got.Name != "tz1" || got.TimezoneID != 5 {
		t.Errorf("updated = %+v", got)
	}

	if err := tc.Delete(ctx, "bob", "tz1"); err != nil {
		t.Fatalf("Delete がエラーを返した: %v", err)
	}
	if len(api.timezones["bob"]) != 1 || api.timezones["bob"][0].Name != "tz2" {
		t.Errorf("timezones = %+v", api.timezones["bob"])
	}

	err := tc.Delete(ctx, "bob", "missing")
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 404 {
		t.Errorf("存在しない削除: error = %v", err)
	}
}

func TestTimezoneClient_ValidatesInput(t *testing.T) {
	tc := newTimezoneTestClient(t, newFakeAPI())
	ctx := context.Background()
	empty := ""

	checks := map[string]error{
		"ListByOwner empty owner": func() error { _, err := tc.ListByOwner(ctx, ""); return err }(),
		"Get empty name":          func() error { _, err := tc.Get(ctx, "bob", ""); return err }(),
		"Create empty name":       func() error { _, err := tc.Create(ctx, "bob", model.Timezone{}); return err }(),
		"Update empty patch":      tc.Update(ctx, "bob", "tz1", model.TimezonePatch{}),
		"Update blank new name":   tc.Update(ctx, "bob", "tz1", model.TimezonePatch{Name: &empty}),
		"Delete empty owner":      tc.Delete(ctx, "", "tz1"),
	}
	for name, err := range checks {
		if !errors.Is(err, model.ErrInvalidArgument) {
			t.Errorf("%s: error = %v, want ErrInvalidArgument", name, err)
		}
	}
}

func TestTimezoneClient_401_TriggersTerminator(t *testing.T) {
	api := newFakeAPI()
	api.token = "rotated"
	term := &mockTerminator{}
	tc := newTimezoneTestClient(t, api, WithSessionTerminator(term))

	_, err := tc.ListByOwner(context.Background(), "bob")
	if !errors.Is(err, model.ErrAuthExpired) {
		t.Fatalf("error = %v, want ErrAuthExpired", err)
	}
	if term.count() != 1 {
		t.Errorf("Expire 呼び出し回数 = %d, want 1", term.count())
	}
}
