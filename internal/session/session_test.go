package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvewatch/cve-dashboard/internal/config"
)

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cfg := config.SessionConfig{Secret: "test-secret", TTL: time.Hour, CookieName: "cve_session"}
	return NewManager(NewStore(rdb, cfg.TTL), cfg), mr
}

func startSession(t *testing.T, m *Manager, d Data) *http.Cookie {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	require.NoError(t, m.Start(c, d))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func requestWith(ck *http.Cookie) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if ck != nil {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func TestManager_StartLoadClear(t *testing.T) {
	m, mr := newTestManager(t)

	ck := startSession(t, m, Data{UserID: 7, Email: "a@example.com"})
	assert.Equal(t, "cve_session", ck.Name)
	assert.True(t, ck.HttpOnly)
	assert.Len(t, mr.Keys(), 1)

	c, _ := requestWith(ck)
	d, err := m.Load(c)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), d.UserID)
	assert.Equal(t, "a@example.com", d.Email)
	assert.False(t, d.CreatedAt.IsZero())

	c, rec := requestWith(ck)
	require.NoError(t, m.Clear(c))
	assert.Empty(t, mr.Keys())
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)

	c, _ = requestWith(ck)
	_, err = m.Load(c)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestManager_LoadWithoutCookie(t *testing.T) {
	m, _ := newTestManager(t)
	c, _ := requestWith(nil)
	_, err := m.Load(c)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestManager_RejectsTamperedCookie(t *testing.T) {
	m, _ := newTestManager(t)
	ck := startSession(t, m, Data{UserID: 1, Email: "x@example.com"})

	forged := *ck
	suffix := "xx"
	if ck.Value[len(ck.Value)-2:] == suffix {
		suffix = "yy"
	}
	forged.Value = ck.Value[:len(ck.Value)-2] + suffix
	c, _ := requestWith(&forged)
	_, err := m.Load(c)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestManager_RejectsCookieSignedWithOtherSecret(t *testing.T) {
	m, _ := newTestManager(t)
	ck := startSession(t, m, Data{UserID: 1, Email: "x@example.com"})

	other := NewManager(m.store, config.SessionConfig{Secret: "other", TTL: time.Hour, CookieName: "cve_session"})
	_, err := other.Lookup(context.Background(), ck.Value)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestManager_ExpiredRecord(t *testing.T) {
	m, mr := newTestManager(t)
	ck := startSession(t, m, Data{UserID: 3, Email: "e@example.com"})

	mr.FastForward(2 * time.Hour)

	_, err := m.Lookup(context.Background(), ck.Value)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestManager_ClearWithoutSessionStillExpiresCookie(t *testing.T) {
	m, _ := newTestManager(t)
	c, rec := requestWith(nil)
	require.NoError(t, m.Clear(c))
	require.Len(t, rec.Result().Cookies(), 1)
}

func TestParseID_RequiresExpiry(t *testing.T) {
	secret := []byte("s")
	raw, _, err := signID(secret, "abc", time.Minute)
	require.NoError(t, err)

	id, err := parseID(secret, raw)
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	expired, _, err := signID(secret, "abc", -time.Minute)
	require.NoError(t, err)
	_, err = parseID(secret, expired)
	assert.ErrorIs(t, err, ErrNoSession)
}
