package model

import "testing"

func TestTimezonePatch_Apply_OnlyReplacesSetFields(t *testing.T) {
	original := Timezone{Name: "tz1", TimezoneID: 2, Location: "Europe", City: "London", RelativeToGMT: "0:00"}

	newID := 7
	got := TimezonePatch{TimezoneID: &newID}.Apply(original)

	if got.TimezoneID != 7 {
		t.Errorf("TimezoneID = %d, want 7", got.TimezoneID)
	}
	if got.Name != "tz1" || got.Location != "Europe" || got.City != "London" || got.RelativeToGMT != "0:00" {
		t.Errorf("パッチ対象外のフィールドが変更された: %+v", got)
	}
	if original.TimezoneID != 2 {
		t.Error("Apply は元の値を変更してはならない")
	}
}

func TestTimezonePatch_IsEmpty(t *testing.T) {
	if !(TimezonePatch{}).IsEmpty() {
		t.Error("空のパッチは IsEmpty() == true になるべき")
	}
	name := "renamed"
	if (TimezonePatch{Name: &name}).IsEmpty() {
		t.Error("Name 指定ありのパッチは IsEmpty() == false になるべき")
	}
}

func TestUserPatch_Apply_IgnoresPassword(t *testing.T) {
	u := User{Username: "bob", FirstName: "Bob", Email: "bob@example.com"}
	email := "new@example.com"
	pw := "secret"

	got := UserPatch{Email: &email, Password: &pw}.Apply(u)

	if got.Email != "new@example.com" {
		t.Errorf("Email = %q, want %q", got.Email, "new@example.com")
	}
	if got.FirstName != "Bob" || got.Username != "bob" {
		t.Errorf("パッチ対象外のフィールドが変更された: %+v", got)
	}
}

func TestSession_Valid(t *testing.T) {
	if (Session{AccessToken: "abc"}).Valid() {
		t.Error("ユーザー名なしのセッションは無効であるべき")
	}
	if !(Session{AccessToken: "abc", Username: "bob"}).Valid() {
		t.Error("トークンとユーザー名があるセッションは有効であるべき")
	}
}
