package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"kyri56xcaesar/tasktracker/internal/authmw"
	"kyri56xcaesar/tasktracker/internal/config"
	"kyri56xcaesar/tasktracker/internal/metrics"
	"kyri56xcaesar/tasktracker/internal/store"
	"kyri56xcaesar/tasktracker/internal/store/memstore"
	"kyri56xcaesar/tasktracker/internal/tracker"
)

type downStore struct {
	store.Store
}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func testConfig() config.Config {
	return config.Config{
		Profile:        "test",
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowedHeaders: []string{"Origin", "Content-Type", "Authorization"},
		SessionSecret:  "0123456789abcdef0123456789abcdef",
	}
}

func newTestServer(t *testing.T, st store.Store) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, _ := test.NewNullLogger()
	m := metrics.New()
	issuer := authmw.NewIssuer("0123456789abcdef", "tasktracker", time.Hour)

	svc := tracker.New(tracker.Deps{
		Store:      st,
		Issuer:     issuer,
		Metrics:    m,
		Log:        log,
		BcryptCost: bcrypt.MinCost,
	})
	_, err := svc.SeedAdmin(context.Background(), "Root", "root@example.com", "rootpass")
	require.NoError(t, err)

	gate := &authmw.Gate{Issuer: issuer, Users: st, Revocations: authmw.NopRevocations{}, Metrics: m, Log: log}
	srv, err := NewServer(testConfig(), svc, gate, m, log)
	require.NoError(t, err)
	return srv
}

type reply struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Count   *int            `json:"count"`
}

func call(t *testing.T, h http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, reply) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var out reply
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

type session struct {
	Token string `json:"token"`
	User  struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	} `json:"user"`
}

func register(t *testing.T, h http.Handler, name, email, role string) session {
	t.Helper()
	w, out := call(t, h, http.MethodPost, "/api/auth/register", "", gin.H{
		"name": name, "email": email, "password": "secret1", "role": role,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[session](t, out.Data)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(t, memstore.New()).Handler()

	w, _ := call(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alive")

	w, _ = call(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tasktracker_http_requests_total")
}

func TestHealthReportsStoreOutage(t *testing.T) {
	h := newTestServer(t, downStore{Store: memstore.New()}).Handler()

	w, _ := call(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestProjectLifecycle(t *testing.T) {
	h := newTestServer(t, memstore.New()).Handler()

	bob := register(t, h, "Bob", "bob@example.com", "project_manager")
	alice := register(t, h, "Alice", "alice@example.com", "team_member")
	assert.Equal(t, "team_member", alice.User.Role)

	w, out := call(t, h, http.MethodPost, "/api/projects", bob.Token, gin.H{"name": "Apollo", "description": "Moon"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	proj := decode[struct {
		ID      string   `json:"id"`
		Manager string   `json:"manager"`
		Status  string   `json:"status"`
		Team    []string `json:"team"`
	}](t, out.Data)
	assert.Equal(t, bob.User.ID, proj.Manager)
	assert.Equal(t, "planning", proj.Status)

	w, out = call(t, h, http.MethodGet, "/api/projects", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, out.Count)
	assert.Equal(t, 0, *out.Count)
	assert.JSONEq(t, `[]`, string(out.Data))

	w, _ = call(t, h, http.MethodGet, "/api/projects/"+proj.ID, alice.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = call(t, h, http.MethodPost, "/api/projects/"+proj.ID+"/team", bob.Token, gin.H{"userId": alice.User.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = call(t, h, http.MethodPost, "/api/projects/"+proj.ID+"/team", bob.Token, gin.H{"userId": alice.User.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, out = call(t, h, http.MethodPost, "/api/tasks", bob.Token, gin.H{
		"title": "Launch", "description": "Go up", "project": proj.ID, "assignedTo": alice.User.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	task := decode[struct {
		ID       string `json:"id"`
		Priority string `json:"priority"`
		Status   string `json:"status"`
	}](t, out.Data)
	assert.Equal(t, "medium", task.Priority)
	assert.Equal(t, "to_do", task.Status)

	w, out = call(t, h, http.MethodPatch, "/api/tasks/"+task.ID+"/status", alice.Token, gin.H{"status": "completed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	done := decode[struct {
		CompletedAt *time.Time `json:"completedAt"`
	}](t, out.Data)
	assert.NotNil(t, done.CompletedAt)

	w, out = call(t, h, http.MethodPost, "/api/tasks/"+task.ID+"/comments", alice.Token, gin.H{"text": "  done  "})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	commented := decode[struct {
		Comments []struct {
			Text string `json:"text"`
		} `json:"comments"`
	}](t, out.Data)
	require.Len(t, commented.Comments, 1)
	assert.Equal(t, "done", commented.Comments[0].Text)

	w, out = call(t, h, http.MethodGet, "/api/projects/"+proj.ID+"/stats", bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[struct {
		TotalTasks           int `json:"totalTasks"`
		CompletionPercentage int `json:"completionPercentage"`
	}](t, out.Data)
	assert.Equal(t, 1, st.TotalTasks)
	assert.Equal(t, 100, st.CompletionPercentage)

	w, out = call(t, h, http.MethodDelete, "/api/projects/"+proj.ID, bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, out.Success)

	w, out = call(t, h, http.MethodPost, "/api/auth/login", "", gin.H{"email": "root@example.com", "password": "rootpass"})
	require.Equal(t, http.StatusOK, w.Code)
	root := decode[session](t, out.Data)

	w, _ = call(t, h, http.MethodDelete, "/api/projects/"+proj.ID, root.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, out = call(t, h, http.MethodGet, "/api/tasks/"+task.ID, root.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Task not found", out.Message)
}

func TestAuthEndpoints(t *testing.T) {
	h := newTestServer(t, memstore.New()).Handler()

	w, out := call(t, h, http.MethodGet, "/api/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, out.Success)

	w, out = call(t, h, http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Eve", "email": "eve@example.com", "password": "secret1", "role": "admin",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, out.Success)

	w, out = call(t, h, http.MethodPost, "/api/auth/register", "", gin.H{"name": "Eve"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid input", out.Message)

	register(t, h, "Eve", "eve@example.com", "")
	w, out = call(t, h, http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Eve", "email": "EVE@example.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "User already exists with that email", out.Message)

	w, out = call(t, h, http.MethodPost, "/api/auth/login", "", gin.H{"email": "eve@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid credentials", out.Message)

	w, _ = call(t, h, http.MethodPost, "/api/auth/login", "", gin.H{"email": "eve@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	var cookie *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == authmw.CookieName {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "eve@example.com")
	assert.NotContains(t, rec.Body.String(), "password")

	w, out = call(t, h, http.MethodGet, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Logged out successfully", out.Message)
}

func TestUserAdministration(t *testing.T) {
	h := newTestServer(t, memstore.New()).Handler()
	dev := register(t, h, "Dev", "dev@example.com", "team_member")

	w, _ := call(t, h, http.MethodGet, "/api/users", dev.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	_, out := call(t, h, http.MethodPost, "/api/auth/login", "", gin.H{"email": "root@example.com", "password": "rootpass"})
	root := decode[session](t, out.Data)

	w, out = call(t, h, http.MethodGet, "/api/users", root.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, *out.Count)

	w, out = call(t, h, http.MethodPut, "/api/users/"+dev.User.ID, root.Token, gin.H{"role": "project_manager"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	promoted := decode[struct {
		Role string `json:"role"`
	}](t, out.Data)
	assert.Equal(t, "project_manager", promoted.Role)

	w, _ = call(t, h, http.MethodDelete, "/api/users/"+root.User.ID, root.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = call(t, h, http.MethodDelete, "/api/users/"+dev.User.ID, root.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = call(t, h, http.MethodGet, "/api/auth/me", dev.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTaskQueryValidation(t *testing.T) {
	h := newTestServer(t, memstore.New()).Handler()
	dev := register(t, h, "Dev", "dev@example.com", "team_member")

	w, out := call(t, h, http.MethodGet, "/api/tasks?status=nope", dev.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, out.Success)

	w, out = call(t, h, http.MethodGet, "/api/tasks/stats", dev.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(out.Data), `"assignedToMe":0`)
}

func TestUnknownAPIRoute(t *testing.T) {
	h := newTestServer(t, memstore.New()).Handler()

	w, out := call(t, h, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, out.Success)
}
