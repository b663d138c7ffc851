package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/itdesk-io/itdesk/internal/auth"
	"github.com/itdesk-io/itdesk/internal/cache"
	"github.com/itdesk-io/itdesk/internal/metrics"
	"github.com/itdesk-io/itdesk/internal/models"
	"github.com/itdesk-io/itdesk/internal/render"
	"github.com/itdesk-io/itdesk/internal/repository"
	"github.com/itdesk-io/itdesk/internal/repository/memory"
	"github.com/itdesk-io/itdesk/internal/service"
	"github.com/itdesk-io/itdesk/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testPassword = "correct-horse"

type testEnv struct {
	repos    *repository.Repositories
	counters *cache.LocalCounterStore
	authSvc  *service.AuthService
	metrics  *metrics.Metrics
	router   *gin.Engine

	customer *models.User
	agentA   *models.User
	agentB   *models.User
	admin    *models.User
}

type envOption func(*Deps)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	backend, err := storage.NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	repos := memory.NewStore().Repositories()
	policy := auth.NewPolicy()
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	files := storage.NewService(backend, storage.DefaultUploadPolicy())
	counters := cache.NewLocalCounterStore()

	env := &testEnv{repos: repos, counters: counters, metrics: metrics.New()}
	limiter := auth.NewLoginRateLimiter(counters, 5, time.Hour)
	env.authSvc = service.NewAuthService(
		auth.NewAuthenticator(repos.Users, hasher),
		auth.NewSessionManager("api-test-secret", "itdesk-test"),
		limiter,
		repos.Users,
		policy,
		0, 0,
	)

	deps := Deps{
		Users:       service.NewUserService(repos.Users, hasher, policy),
		Auth:        env.authSvc,
		Tickets:     service.NewTicketService(repos, policy, files, render.NewMarkdown()),
		Dashboards:  service.NewDashboardService(repos.Tickets, policy),
		Limiter:     limiter,
		Quota:       storage.NewUploadQuota(counters, 50, 24*time.Hour),
		Metrics:     env.metrics,
		MetricsPath: "/metrics",
		// httptest requests arrive from 192.0.2.1, standing in for the reverse proxy.
		TrustedProxies: []string{"192.0.2.1"},
	}
	for _, opt := range opts {
		opt(&deps)
	}
	env.router = NewServer(deps).Router()

	seed := func(mobile, first, last string, group models.Group) *models.User {
		hash, err := hasher.HashPassword(testPassword)
		require.NoError(t, err)
		u := &models.User{
			Mobile:       mobile,
			FirstName:    first,
			LastName:     last,
			PasswordHash: hash,
			IsActive:     true,
			Groups:       []models.Group{group},
		}
		require.NoError(t, repos.Users.Create(context.Background(), u))
		return u
	}
	env.customer = seed("0711000001", "Carol", "Customer", models.GroupCustomers)
	env.agentA = seed("0722000001", "Alice", "Agent", models.GroupAgents)
	env.agentB = seed("0722000002", "Bob", "Agent", models.GroupAgents)
	env.admin = seed("0733000001", "Ada", "Admin", models.GroupAdmins)
	return env
}

func (e *testEnv) token(t *testing.T, user *models.User) string {
	t.Helper()
	res, err := e.authSvc.IssueSession(user, time.Hour)
	require.NoError(t, err)
	return res.Token
}

// request describes one call against the router.
type request struct {
	method  string
	path    string
	as      *models.User
	form    url.Values
	json    any
	body    io.Reader
	ctype   string
	browser bool
	headers map[string]string
	cookies []*http.Cookie
	remote  string
}

func (e *testEnv) do(t *testing.T, r request) *httptest.ResponseRecorder {
	t.Helper()
	body := r.body
	ctype := r.ctype
	switch {
	case r.form != nil:
		body = strings.NewReader(r.form.Encode())
		ctype = "application/x-www-form-urlencoded"
	case r.json != nil:
		raw, err := json.Marshal(r.json)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
		ctype = "application/json"
	}
	req := httptest.NewRequest(r.method, r.path, body)
	if r.remote != "" {
		req.RemoteAddr = r.remote
	}
	if ctype != "" {
		req.Header.Set("Content-Type", ctype)
	}
	if !r.browser {
		req.Header.Set("Accept", "application/json")
	}
	if r.as != nil {
		req.Header.Set("Authorization", "Bearer "+e.token(t, r.as))
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	for _, c := range r.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// outcomeBody is the JSON shape of an action result.
type outcomeBody struct {
	Success  bool              `json:"success"`
	Level    string            `json:"level"`
	Message  string            `json:"message"`
	Redirect string            `json:"redirect"`
	Error    string            `json:"error"`
	Fields   map[string]string `json:"fields"`
	Ticket   *models.Ticket    `json:"ticket"`
	User     *models.User      `json:"user"`
	Token    string            `json:"token"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type upload struct {
	field, name string
	data        []byte
}

func multipartForm(t *testing.T, fields map[string]string, files ...upload) (io.Reader, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func (e *testEnv) createTicket(t *testing.T, title string) *models.Ticket {
	t.Helper()
	w := e.do(t, request{
		method: http.MethodPost, path: "/tickets", as: e.customer,
		form: url.Values{"title": {title}, "description": {title + " details"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode[outcomeBody](t, w)
	require.True(t, out.Success)
	require.NotNil(t, out.Ticket)
	return out.Ticket
}

func cookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
