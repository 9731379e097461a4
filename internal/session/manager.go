package session

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cvewatch/cve-dashboard/internal/config"
)

// Manager ties the Redis store to the request cookie.
type Manager struct {
	store  *Store
	secret []byte
	cfg    config.SessionConfig
}

func NewManager(store *Store, cfg config.SessionConfig) *Manager {
	return &Manager{store: store, secret: []byte(cfg.Secret), cfg: cfg}
}

// Start creates a session for d and sets the cookie on the response.
func (m *Manager) Start(c echo.Context, d Data) error {
	ctx := c.Request().Context()
	id, err := m.store.Create(ctx, d)
	if err != nil {
		return err
	}
	value, exp, err := signID(m.secret, id, m.cfg.TTL)
	if err != nil {
		_ = m.store.Delete(ctx, id)
		return err
	}
	c.SetCookie(m.cookie(value, exp, int(m.cfg.TTL/time.Second)))
	return nil
}

// Load returns the session attached to the request, or ErrNoSession.
func (m *Manager) Load(c echo.Context) (Data, error) {
	id, err := m.id(c)
	if err != nil {
		return Data{}, err
	}
	return m.store.Get(c.Request().Context(), id)
}

// Clear destroys the request's session, if any, and expires the cookie.
func (m *Manager) Clear(c echo.Context) error {
	var err error
	if id, idErr := m.id(c); idErr == nil {
		err = m.store.Delete(c.Request().Context(), id)
	}
	c.SetCookie(m.cookie("", time.Unix(0, 0), -1))
	return err
}

// Lookup resolves a raw cookie value outside of a request, for tooling and
// tests.
func (m *Manager) Lookup(ctx context.Context, cookieValue string) (Data, error) {
	id, err := parseID(m.secret, cookieValue)
	if err != nil {
		return Data{}, err
	}
	return m.store.Get(ctx, id)
}

// CookieName is the name of the session cookie.
func (m *Manager) CookieName() string { return m.cfg.CookieName }

func (m *Manager) id(c echo.Context) (string, error) {
	ck, err := c.Cookie(m.cfg.CookieName)
	if err != nil || ck.Value == "" {
		return "", ErrNoSession
	}
	return parseID(m.secret, ck.Value)
}

func (m *Manager) cookie(value string, exp time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  exp,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
