package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tzkeeper/internal/model"
)

// fakeAPI はCLIの結合テスト用のタイムゾーン管理API。
type fakeAPI struct {
	mu        sync.Mutex
	timezones []model.Timezone
	users     map[string]model.User
	logouts   []string
	// revoked がtrueの間は認証付きリクエストをすべて401で拒否する。
	revoked bool
}

func (f *fakeAPI) revoke() {
	f.mu.Lock()
	f.revoked = true
	f.mu.Unlock()
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{
		users: map[string]model.User{
			"bob":   {Username: "bob", FirstName: "Bob", Email: "bob@example.com", Role: "user", Enabled: true},
			"alice": {Username: "alice", Role: "admin", Enabled: true},
		},
	}
	srv := httptest.NewServer(f.router())
	t.Cleanup(srv.Close)
	return f, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (f *fakeAPI) router() http.Handler {
	r := chi.NewRouter()
	r.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds model.Credentials
		json.NewDecoder(r.Body).Decode(&creds)
		if creds.Username != "bob" || creds.Password != "pw" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, model.LoginResponse{AccessToken: "abc"})
	})
	r.Post("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.logouts = append(f.logouts, r.Header.Get("Authorization"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post("/user", func(w http.ResponseWriter, r *http.Request) {
		var reg model.Registration
		json.NewDecoder(r.Body).Decode(&reg)
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.users[reg.Username]; ok {
			writeJSON(w, http.StatusConflict, map[string]string{"message": "User already exists"})
			return
		}
		f.users[reg.Username] = model.User{Username: reg.Username, Email: reg.Email, Enabled: true}
		w.WriteHeader(http.StatusCreated)
	})

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				f.mu.Lock()
				revoked := f.revoked
				f.mu.Unlock()
				if revoked || r.Header.Get("Authorization") != "Bearer abc" {
					writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Authentication required"})
					return
				}
				next.ServeHTTP(w, r)
			})
		})
		r.Get("/user", func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()
			users := []model.User{f.users["alice"], f.users["bob"]}
			writeJSON(w, http.StatusOK, model.ListEnvelope[model.User]{Data: users})
		})
		r.Get("/user/{username}", func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()
			u, ok := f.users[chi.URLParam(r, "username")]
			if !ok {
				writeJSON(w, http.StatusNotFound, map[string]string{"message": "User not found"})
				return
			}
			writeJSON(w, http.StatusOK, u)
		})
		r.Put("/user/{username}", func(w http.ResponseWriter, r *http.Request) {
			var patch model.UserPatch
			json.NewDecoder(r.Body).Decode(&patch)
			f.mu.Lock()
			defer f.mu.Unlock()
			name := chi.URLParam(r, "username")
			f.users[name] = patch.Apply(f.users[name])
			w.WriteHeader(http.StatusNoContent)
		})
		r.Post("/user/{username}/disable", func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()
			u := f.users[chi.URLParam(r, "username")]
			u.Enabled = false
			f.users[u.Username] = u
			w.WriteHeader(http.StatusNoContent)
		})
		r.Get("/timezone", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, model.ListEnvelope[model.Timezone]{Data: []model.Timezone{
				{ID: 1, Location: "Asia", City: "Tokyo", RelativeToGMT: "+09:00"},
			}})
		})
		r.Get("/timezone/{username}", func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()
			writeJSON(w, http.StatusOK, model.ListEnvelope[model.Timezone]{Data: f.timezones})
		})
		r.Post("/timezone/{username}", func(w http.ResponseWriter, r *http.Request) {
			var tz model.Timezone
			json.NewDecoder(r.Body).Decode(&tz)
			tz.Location, tz.City, tz.RelativeToGMT = "Asia", "Tokyo", "+09:00"
			f.mu.Lock()
			f.timezones = append(f.timezones, tz)
			f.mu.Unlock()
			writeJSON(w, http.StatusCreated, tz)
		})
		r.Get("/timezone/{username}/{name}", func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()
			for _, tz := range f.timezones {
				if tz.Name == chi.URLParam(r, "name") {
					writeJSON(w, http.StatusOK, tz)
					return
				}
			}
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Timezone not found"})
		})
		r.Delete("/timezone/{username}/{name}", func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()
			for i, tz := range f.timezones {
				if tz.Name == chi.URLParam(r, "name") {
					f.timezones = append(f.timezones[:i], f.timezones[i+1:]...)
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Timezone not found"})
		})
	})
	return r
}
