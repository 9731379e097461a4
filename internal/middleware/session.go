package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/cvewatch/cve-dashboard/internal/session"
)

// RequireSession rejects requests without a live session with 401 and
// otherwise exposes the session's user to handlers via UserID and Email.
func RequireSession(m *session.Manager, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d, err := m.Load(c)
			if errors.Is(err, session.ErrNoSession) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
			}
			if err != nil {
				log.Error("session lookup failed", zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Internal server error"})
			}
			c.Set(keyUserID, d.UserID)
			c.Set(keyEmail, d.Email)
			return next(c)
		}
	}
}
