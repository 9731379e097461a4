package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/cvewatch/cve-dashboard/internal/config"
	"github.com/cvewatch/cve-dashboard/internal/handler"
	"github.com/cvewatch/cve-dashboard/internal/queue"
	"github.com/cvewatch/cve-dashboard/internal/repository"
	"github.com/cvewatch/cve-dashboard/internal/router"
	"github.com/cvewatch/cve-dashboard/internal/service"
	"github.com/cvewatch/cve-dashboard/internal/session"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.VulnerabilityEvent
	ch     chan queue.VulnerabilityEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.VulnerabilityEvent) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	p.ch <- ev
	return nil
}

func (p *recordingPublisher) next(t *testing.T) queue.VulnerabilityEvent {
	t.Helper()
	select {
	case ev := <-p.ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
		return queue.VulnerabilityEvent{}
	}
}

type testEnv struct {
	e        *echo.Echo
	mock     sqlmock.Sqlmock
	sessions *session.Manager
	events   *recordingPublisher
}

type envSettings struct {
	gemini  config.GeminiConfig
	cache   config.CacheConfig
	origins []string
}

type envOption func(*envSettings)

func withGemini(url string) envOption {
	return func(s *envSettings) {
		s.gemini.APIKey = "test-key"
		s.gemini.BaseURL = url
	}
}

func withCache() envOption {
	return func(s *envSettings) { s.cache.Enabled = true }
}

func withOrigins(origins ...string) envOption {
	return func(s *envSettings) { s.origins = origins }
}

func newEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	set := envSettings{
		gemini:  config.GeminiConfig{Model: "gemini-2.5-flash", Timeout: time.Second},
		cache:   config.CacheConfig{Methods: map[string]bool{"GET": true}, TTL: time.Minute, KeyStrategy: "route_query", Prefix: "cvecache", MaxBodyBytes: 1 << 20},
		origins: []string{"*"},
	}
	for _, o := range opts {
		o(&set)
	}
	gem := set.gemini

	log := zap.NewNop()
	scfg := config.SessionConfig{Secret: "test-secret", TTL: time.Hour, CookieName: "cve_session"}
	sessions := session.NewManager(session.NewStore(rdb, scfg.TTL), scfg)

	users := repository.NewUserRepo(db)
	alerts := repository.NewAlertRepo(db)
	events := &recordingPublisher{ch: make(chan queue.VulnerabilityEvent, 8)}
	gc, err := service.NewGeminiClient(context.Background(), gem)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gc.Close() })
	assistant := service.NewAssistant(alerts, gc, gem.APIKey != "")

	e := router.New(router.Handlers{
		Health:    handler.NewHealthHandler(db, log),
		Auth:      handler.NewAuthHandler(users, sessions, bcrypt.MinCost, log),
		Dashboard: handler.NewDashboardHandler(alerts, repository.NewStatsRepo(db), log),
		Saved:     handler.NewSavedHandler(alerts, repository.NewSavedRepo(db), events, log),
		Chat:      handler.NewChatHandler(assistant, log),
	}, router.Deps{
		Sessions:  sessions,
		Redis:     rdb,
		Cache:     set.cache,
		RateLimit: config.RateLimitConfig{Enabled: false},
		Log:       log,
	}, set.origins)

	return &testEnv{e: e, mock: mock, sessions: sessions, events: events}
}

// loginAs starts a session directly and returns its cookie.
func (env *testEnv) loginAs(t *testing.T, uid uint64, email string) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	c := env.e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	require.NoError(t, env.sessions.Start(c, session.Data{UserID: uid, Email: email}))
	return rec.Result().Cookies()[0]
}

func (env *testEnv) do(method, target, body string, ck *http.Cookie) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if ck != nil {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "cve_session" {
			return c
		}
	}
	return nil
}
