package store

import (
	"github.com/hitoshi/tzkeeper/internal/auth"
)

// SessionView は公開可能なセッション情報。トークンは含めない。
type SessionView struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

// State は全ストアのスナップショット。
type State struct {
	Session   SessionView    `json:"session"`
	Account   AccountState   `json:"account"`
	Timezones TimezoneState  `json:"timezones"`
	Profile   ProfileState   `json:"profile"`
	Users     DirectoryState `json:"users"`
}

// Hub はアプリケーションの全ストアを束ねる。
type Hub struct {
	Sessions  auth.SessionSource
	Account   *AccountStore
	Timezones *TimezoneStore
	Profile   *ProfileStore
	Users     *DirectoryStore
}

// Snapshot は全ストアの現在の状態を返す。nilのストアはゼロ値になる。
func (h *Hub) Snapshot() State {
	var st State
	if h.Sessions != nil {
		if sess, ok := h.Sessions.Current(); ok {
			st.Session = SessionView{Authenticated: true, Username: sess.Username}
		}
	}
	if h.Account != nil {
		st.Account = h.Account.Snapshot()
	}
	if h.Timezones != nil {
		st.Timezones = h.Timezones.Snapshot()
	}
	if h.Profile != nil {
		st.Profile = h.Profile.Snapshot()
	}
	if h.Users != nil {
		st.Users = h.Users.Snapshot()
	}
	return st
}
