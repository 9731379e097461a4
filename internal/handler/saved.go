package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/cvewatch/cve-dashboard/internal/middleware"
	"github.com/cvewatch/cve-dashboard/internal/queue"
	"github.com/cvewatch/cve-dashboard/internal/repository"
	"github.com/cvewatch/cve-dashboard/internal/service"
)

const publishTimeout = 10 * time.Second

// SavedHandler manages the caller's saved vulnerabilities.  Every query is
// scoped to the session's user.
type SavedHandler struct {
	Alerts *repository.AlertRepo
	Saved  *repository.SavedRepo
	Events service.EventPublisher
	Log    *zap.Logger
}

func NewSavedHandler(a *repository.AlertRepo, s *repository.SavedRepo, ev service.EventPublisher, log *zap.Logger) *SavedHandler {
	return &SavedHandler{Alerts: a, Saved: s, Events: ev, Log: log}
}

type saveReq struct {
	CVEID string `json:"cve_id"`
	Notes string `json:"notes"`
}

type deleteReq struct {
	ID uint64 `json:"id"`
}

// Save copies the alert's descriptive fields into the caller's list.
func (h *SavedHandler) Save(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return jsonError(c, http.StatusUnauthorized, "Unauthorized")
	}
	var req saveReq
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request body")
	}
	req.CVEID = strings.TrimSpace(req.CVEID)
	if req.CVEID == "" {
		return jsonError(c, http.StatusBadRequest, "CVE ID required")
	}

	ctx, cancel := dbContext(c)
	defer cancel()

	alert, err := h.Alerts.GetByCVE(ctx, req.CVEID)
	if errors.Is(err, repository.ErrNotFound) {
		return jsonError(c, http.StatusNotFound, "CVE not found")
	}
	if err != nil {
		return serverError(c, h.Log, "loading alert failed", err)
	}

	id, err := h.Saved.Save(ctx, uid, alert, req.Notes)
	if errors.Is(err, repository.ErrAlreadySaved) {
		return jsonError(c, http.StatusBadRequest, "Already saved")
	}
	if err != nil {
		return serverError(c, h.Log, "saving vulnerability failed", err)
	}

	h.publish(c, queue.NewVulnerabilityEvent(queue.EventSaved, uid, middleware.Email(c), id, alert.CVEID, req.Notes))
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

func (h *SavedHandler) List(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return jsonError(c, http.StatusUnauthorized, "Unauthorized")
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	saved, err := h.Saved.ListByUser(ctx, uid)
	if err != nil {
		return serverError(c, h.Log, "listing saved vulnerabilities failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"saved": saved})
}

// Delete removes one of the caller's rows.  Ids belonging to someone else
// are silently ignored.
func (h *SavedHandler) Delete(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return jsonError(c, http.StatusUnauthorized, "Unauthorized")
	}
	var req deleteReq
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.ID == 0 {
		return jsonError(c, http.StatusBadRequest, "ID required")
	}

	ctx, cancel := dbContext(c)
	defer cancel()
	removed, err := h.Saved.Delete(ctx, uid, req.ID)
	if err != nil {
		return serverError(c, h.Log, "deleting saved vulnerability failed", err)
	}
	if removed {
		h.publish(c, queue.NewVulnerabilityEvent(queue.EventRemoved, uid, middleware.Email(c), req.ID, "", ""))
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// publish hands the event to the broker in the background; the response
// never waits for it.
func (h *SavedHandler) publish(c echo.Context, ev queue.VulnerabilityEvent) {
	ctx := context.WithoutCancel(c.Request().Context())
	go func() {
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		if err := h.Events.Publish(ctx, ev); err != nil {
			h.Log.Warn("publishing event failed",
				zap.String("type", string(ev.Type)),
				zap.String("event_id", ev.ID),
				zap.Error(err))
		}
	}()
}
