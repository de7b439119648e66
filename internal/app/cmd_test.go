package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hitoshi/tzkeeper/internal/model"
	"github.com/hitoshi/tzkeeper/internal/session"
)

// setTestEnv はfakeAPIに向けた設定を環境変数に入れ、セッションファイルのパスを返す。
func setTestEnv(t *testing.T, apiURL string) string {
	t.Helper()
	sessionFile := filepath.Join(t.TempDir(), "session.json")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("API_BASE_URL", apiURL)
	t.Setenv("SESSION_BACKEND", "file")
	t.Setenv("SESSION_FILE", sessionFile)
	t.Setenv("SESSION_KEY", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("API_BLOCK_PRIVATE_NETWORKS", "")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv(EnvPassword, "")
	return sessionFile
}

// run はコマンドを実行し、標準出力とログを返す。
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	err := Run(&out, &logs, args)
	return out.String(), logs.String(), err
}

func loginAsBob(t *testing.T) {
	t.Helper()
	if _, _, err := run(t, "login", "bob", "--password", "pw"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
}

func TestRun_Login_PersistsSession(t *testing.T) {
	_, srv := newFakeAPI(t)
	sessionFile := setTestEnv(t, srv.URL)

	out, logs, err := run(t, "login", "bob", "--password", "pw")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !strings.Contains(out, "logged in as bob") {
		t.Errorf("out = %q", out)
	}
	if strings.Contains(logs, "access_token") || strings.Contains(logs, "password") {
		t.Errorf("パスワードやトークンがログに出力されている: %s", logs)
	}

	sess, err := session.NewFilePersister(sessionFile, "").Load(context.Background())
	if err != nil || sess == nil || sess.Username != "bob" || sess.AccessToken != "abc" {
		t.Fatalf("永続化されたセッション = %+v, err = %v", sess, err)
	}

	out, _, err = run(t, "whoami")
	if err != nil {
		t.Fatalf("whoami failed: %v", err)
	}
	if !strings.Contains(out, "username: bob") || !strings.Contains(out, "email: bob@example.com") {
		t.Errorf("whoami out = %q", out)
	}
}

func TestRun_Login_PasswordFromEnv(t *testing.T) {
	_, srv := newFakeAPI(t)
	setTestEnv(t, srv.URL)
	t.Setenv(EnvPassword, "pw")

	out, _, err := run(t, "login", "bob")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !strings.Contains(out, "logged in as bob") {
		t.Errorf("out = %q", out)
	}
}

func TestRun_Login_MissingPassword(t *testing.T) {
	_, srv := newFakeAPI(t)
	setTestEnv(t, srv.URL)

	_, _, err := run(t, "login", "bob")
	if err == nil || !strings.Contains(err.Error(), EnvPassword) {
		t.Errorf("err = %v, want password hint", err)
	}
}

func TestRun_Login_InvalidCredentials_PrintsNotification(t *testing.T) {
	_, srv := newFakeAPI(t)
	setTestEnv(t, srv.URL)

	out, _, err := run(t, "login", "bob", "--password", "wrong")
	if err == nil {
		t.Fatal("誤ったパスワードではエラーを返すべき")
	}
	if !strings.Contains(out, "ERROR: Invalid credentials") {
		t.Errorf("通知が出力されていない: %q", out)
	}
}

func TestRun_Whoami_Anonymous(t *testing.T) {
	_, srv := newFakeAPI(t)
	setTestEnv(t, srv.URL)

	out, _, err := run(t, "whoami")
	if err != nil {
		t.Fatalf("whoami failed: %v", err)
	}
	if !strings.Contains(out, "not logged in") {
		t.Errorf("out = %q", out)
	}
}

func TestRun_Logout_SendsCapturedTokenAndClearsSession(t *testing.T) {
	api, srv := newFakeAPI(t)
	sessionFile := setTestEnv(t, srv.URL)
	loginAsBob(t)

	out, _, err := run(t, "logout")
	if err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if !strings.Contains(out, "logged out") {
		t.Errorf("out = %q", out)
	}
	if len(api.logouts) != 1 || api.logouts[0] != "Bearer abc" {
		t.Errorf("サーバーへのログアウトはクリア前のトークンで送るべき: %v", api.logouts)
	}
	if _, err := os.Stat(sessionFile); !os.IsNotExist(err) {
		t.Errorf("セッションファイルが削除されていない: %v", err)
	}
}

func TestRun_Register(t *testing.T) {
	_, srv := newFakeAPI(t)
	setTestEnv(t, srv.URL)

	out, _, err := run(t, "register", "carol", "--password", "pw", "--email", "carol@example.com")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if !strings.Contains(out, "registered carol") || !strings.Contains(out, "OK: Registration successful") {
		t.Errorf("out = %q", out)
	}

	out, _, err = run(t, "register", "bob", "--password", "pw")
	if err == nil {
		t.Fatal("重複登録はエラーを返すべき")
	}
	if !strings.Contains(out, "ERROR: User already exists") {
		t.Errorf("out = %q", out)
	}
}

func TestRun_Timezone_CreateListGetDelete(t *testing.T) {
	_, srv := newFakeAPI(t)
	setTestEnv(t, srv.URL)
	loginAsBob(t)

	out, _, err := run(t, "tz", "create", "--name", "home", "--timezone-id", "1")
	if err != nil {
		t.Fatalf("tz create failed: %v", err)
	}
	if !strings.Contains(out, "OK: Timezone added successfully") {
		t.Errorf("create out = %q", out)
	}

	out, _, err = run(t, "tz", "list")
	if err != nil {
		t.Fatalf("tz list failed: %v", err)
	}
	if !strings.Contains(out, "home\t1\tAsia\tTokyo\t+09:00") {
		t.Errorf("list out = %q", out)
	}

	out, _, err = run(t, "tz", "get", "home")
	if err != nil {
		t.Fatalf("tz get failed: %v", err)
	}
	if !strings.HasPrefix(out, "home\t") {
		t.Errorf("get out = %q", out)
	}

	out, _, err = run(t, "tz", "delete", "home")
	if err != nil {
		t.Fatalf("tz delete failed: %v", err)
	}
	if !strings.Contains(out, "deleted home") {
		t.Errorf("delete out = %q", out)
	}

	out, _, _ = run(t, "tz", "list")
	if !strings.Contains(out, "no timezones") {
		t.Errorf("削除後は空であるべき: %q", out)
	}
}

func TestRun_Timezone_ListCatalog(t *testing.T) {
	_, srv := newFakeAPI(t)
	setTestEnv(t, srv.URL)
	loginAsBob(t)

	out, _, err := run(t, "tz", "list", "--all")
	if err != nil {
		t.Fatalf("tz list --all failed: %v", err)
	}
	if !strings.Contains(out, "1\tAsia\tTokyo\t+09:00") {
		t.Errorf("out = %q", out)
	}
}

func TestRun_Timezone_Update_RequiresField(t *testing.T) {
	_, srv := newFakeAPI(t)
	setTestEnv(t, srv.URL)
	loginAsBob(t)

	_, _, err := run(t, "tz", "update", "home")
	if err == nil || !strings.Contains(err.Error(), "nothing to update") {
		t.Errorf("err = %v", err)
	}
}

func TestRun_Timezone_NotAuthenticated(t *testing.T) {
	_, srv := newFakeAPI(t)
	setTestEnv(t, srv.URL)

	_, _, err := run(t, "tz", "list")
	if !errors.Is(err, model.ErrNotAuthenticated) {
		t.Errorf("err = %v, want ErrNotAuthenticated", err)
	}
}

func TestRun_StaleToken_LogsOutAutomatically(t *testing.T) {
	_, srv := newFakeAPI(t)
	sessionFile := setTestEnv(t, srv.URL)

	stale := session.NewFilePersister(sessionFile, "")
	if err := stale.Save(context.Background(), model.Session{AccessToken: "stale", Username: "bob"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	_, logs, err := run(t, "tz", "list")
	if !errors.Is(err, model.ErrAuthExpired) {
		t.Fatalf("err = %v, want ErrAuthExpired", err)
	}
	if !strings.Contains(logs, "session expired") {
		t.Errorf("自動ログアウトがログに記録されていない: %s", logs)
	}
	if strings.Contains(logs, "stale") {
		t.Errorf("トークンがログに出力されている: %s", logs)
	}

	sess, err := stale.Load(context.Background())
	if err != nil || sess != nil {
		t.Errorf("401後は永続化セッションが消えるべき: %+v, %v", sess, err)
	}
}

func TestRun_ProfileUpdate(t *testing.T) {
	api, srv := newFakeAPI(t)
	setTestEnv(t, srv.URL)
	loginAsBob(t)

	out, _, err := run(t, "profile", "update", "--email", "new@example.com")
	if err != nil {
		t.Fatalf("profile update failed: %v", err)
	}
	if !strings.Contains(out, "OK: Profile updated successfully") {
		t.Errorf("out = %q", out)
	}
	if got := api.users["bob"]; got.Email != "new@example.com" || got.FirstName != "Bob" {
		t.Errorf("指定フィールドのみ更新されるべき: %+v", got)
	}

	if _, _, err := run(t, "profile", "update"); err == nil {
		t.Error("フィールド未指定はエラーを返すべき")
	}
}

func TestRun_UserListGetDisable(t *testing.T) {
	api, srv := newFakeAPI(t)
	setTestEnv(t, srv.URL)
	loginAsBob(t)

	out, _, err := run(t, "user", "list")
	if err != nil {
		t.Fatalf("user list failed: %v", err)
	}
	if !strings.Contains(out, "alice\tadmin\tenabled") || !strings.Contains(out, "bob\tuser\tenabled") {
		t.Errorf("list out = %q", out)
	}

	out, _, err = run(t, "user", "get", "alice")
	if err != nil {
		t.Fatalf("user get failed: %v", err)
	}
	if !strings.Contains(out, "role: admin") {
		t.Errorf("get out = %q", out)
	}

	if _, _, err := run(t, "user", "disable", "alice"); err != nil {
		t.Fatalf("user disable failed: %v", err)
	}
	if api.users["alice"].Enabled {
		t.Error("alice は無効化されるべき")
	}
}

func TestRun_MissingAPIBaseURL(t *testing.T) {
	setTestEnv(t, "")

	_, _, err := run(t, "whoami")
	if err == nil || !strings.Contains(err.Error(), "API_BASE_URL") {
		t.Errorf("err = %v, want missing API_BASE_URL", err)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	if _, _, err := run(t, "unknown"); err == nil {
		t.Error("未知のコマンドはエラーを返すべき")
	}
}
