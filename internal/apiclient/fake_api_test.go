package apiclient

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tzkeeper/internal/model"
)

// fakeAPI はタイムゾーン管理APIのインメモリ実装。
type fakeAPI struct {
	mu        sync.Mutex
	token     string
	users     map[string]model.User
	timezones map[string][]model.Timezone
	catalog   []model.Timezone
	loggedOut []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		token: "abc",
		users: map[string]model.User{
			"bob": {ID: "1", Username: "bob", FirstName: "Bob", Email: "bob@example.com", Role: "user", Enabled: true},
		},
		timezones: map[string][]model.Timezone{},
		catalog: []model.Timezone{
			{ID: 1, Location: "Asia", City: "Tokyo", RelativeToGMT: "+09:00"},
			{ID: 2, Location: "Europe", City: "Paris", RelativeToGMT: "+01:00"},
		},
	}
}

func (f *fakeAPI) router() http.Handler {
	r := chi.NewRouter()
	r.Post("/auth/login", f.login)
	r.Post("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.loggedOut = append(f.loggedOut, r.Header.Get("Authorization"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post("/user", f.register)

	r.Group(func(r chi.Router) {
		r.Use(f.requireToken)
		r.Get("/user", func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()
			users := make([]model.User, 0, len(f.users))
			for _, u := range f.users {
				users = append(users, u)
			}
			writeJSON(w, http.StatusOK, model.ListEnvelope[model.User]{Data: users})
		})
		r.Get("/user/{username}", f.getUser)
		r.Put("/user/{username}", f.updateUser)
		r.Delete("/user/{username}", func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.users, chi.URLParam(r, "username"))
			w.WriteHeader(http.StatusNoContent)
		})
		r.Post("/user/{username}/{action}", f.toggleUser)

		r.Get("/timezone", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, model.ListEnvelope[model.Timezone]{Data: f.catalog})
		})
		r.Get("/timezone/{username}", func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()
			writeJSON(w, http.StatusOK, model.ListEnvelope[model.Timezone]{Data: f.timezones[chi.URLParam(r, "username")]})
		})
		r.Post("/timezone/{username}", f.createTimezone)
		r.Get("/timezone/{username}/{name}", f.getTimezone)
		r.Put("/timezone/{username}/{name}", f.updateTimezone)
		r.Delete("/timezone/{username}/{name}", f.deleteTimezone)
	})
	return r
}

func (f *fakeAPI) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+f.token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Authentication required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *fakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad request"})
		return
	}
	if creds.Username != "bob" || creds.Password != "pw" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, model.LoginResponse{AccessToken: f.token})
}

func (f *fakeAPI) register(w http.ResponseWriter, r *http.Request) {
	var reg model.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad request"})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[reg.Username]; exists {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "User already exists"})
		return
	}
	u := model.User{Username: reg.Username, FirstName: reg.FirstName, LastName: reg.LastName, Email: reg.Email, Enabled: true}
	f.users[reg.Username] = u
	w.WriteHeader(http.StatusCreated)
}

func (f *fakeAPI) getUser(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "username")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == key || u.ID == key {
			writeJSON(w, http.StatusOK, u)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "User not found"})
}

func (f *fakeAPI) updateUser(w http.ResponseWriter, r *http.Request) {
	var patch model.UserPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad request"})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	name := chi.URLParam(r, "username")
	u, ok := f.users[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "User not found"})
		return
	}
	f.users[name] = patch.Apply(u)
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeAPI) toggleUser(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := chi.URLParam(r, "username")
	u, ok := f.users[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "User not found"})
		return
	}
	switch chi.URLParam(r, "action") {
	case "enable":
		u.Enabled = true
	case "disable":
		u.Enabled = false
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	f.users[name] = u
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeAPI) createTimezone(w http.ResponseWriter, r *http.Request) {
	var tz model.Timezone
	if err := json.NewDecoder(r.Body).Decode(&tz); err != nil || strings.TrimSpace(tz.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "name is required"})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	owner := chi.URLParam(r, "username")
	for _, existing := range f.timezones[owner] {
		if existing.Name == tz.Name {
			writeJSON(w, http.StatusConflict, map[string]string{"message": "Timezone already exists"})
			return
		}
	}
	f.timezones[owner] = append(f.timezones[owner], tz)
	writeJSON(w, http.StatusCreated, tz)
}

func (f *fakeAPI) findTimezone(owner, name string) int {
	for i, tz := range f.timezones[owner] {
		if tz.Name == name {
			return i
		}
	}
	return -1
}

func (f *fakeAPI) getTimezone(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner := chi.URLParam(r, "username")
	i := f.findTimezone(owner, chi.URLParam(r, "name"))
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Timezone not found"})
		return
	}
	writeJSON(w, http.StatusOK, f.timezones[owner][i])
}

func (f *fakeAPI) updateTimezone(w http.ResponseWriter, r *http.Request) {
	var patch model.TimezonePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad request"})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	owner := chi.URLParam(r, "username")
	i := f.findTimezone(owner, chi.URLParam(r, "name"))
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Timezone not found"})
		return
	}
	f.timezones[owner][i] = patch.Apply(f.timezones[owner][i])
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeAPI) deleteTimezone(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner := chi.URLParam(r, "username")
	i := f.findTimezone(owner, chi.URLParam(r, "name"))
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Timezone not found"})
		return
	}
	f.timezones[owner] = append(f.timezones[owner][:i], f.timezones[owner][i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}
