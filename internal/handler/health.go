package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// HealthHandler reports liveness for load balancers, including whether
// MySQL answers.
type HealthHandler struct {
	DB  *sql.DB
	Log *zap.Logger
}

func NewHealthHandler(db *sql.DB, log *zap.Logger) *HealthHandler {
	return &HealthHandler{DB: db, Log: log}
}

func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := h.DB.PingContext(ctx); err != nil {
		h.Log.Warn("health check: database ping failed", zap.Error(err))
		return c.String(http.StatusServiceUnavailable, "db unavailable")
	}
	return c.String(http.StatusOK, "ok")
}
