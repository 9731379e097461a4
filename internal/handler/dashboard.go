package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/cvewatch/cve-dashboard/internal/repository"
)

const dbTimeout = 5 * time.Second

func dbContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

// DashboardHandler serves the read-only views over the alert feed.
type DashboardHandler struct {
	Alerts *repository.AlertRepo
	Stats  *repository.StatsRepo
	Log    *zap.Logger
}

func NewDashboardHandler(a *repository.AlertRepo, s *repository.StatsRepo, log *zap.Logger) *DashboardHandler {
	return &DashboardHandler{Alerts: a, Stats: s, Log: log}
}

func (h *DashboardHandler) GetStats(c echo.Context) error {
	ctx, cancel := dbContext(c)
	defer cancel()
	st, err := h.Stats.Collect(ctx)
	if err != nil {
		return serverError(c, h.Log, "collecting stats failed", err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *DashboardHandler) GetFilterOptions(c echo.Context) error {
	ctx, cancel := dbContext(c)
	defer cancel()
	opts, err := h.Alerts.FilterOptions(ctx)
	if err != nil {
		return serverError(c, h.Log, "loading filter options failed", err)
	}
	return c.JSON(http.StatusOK, opts)
}

// GetAlerts returns one page of the filtered alert feed.
//
// date_from and date_to accept YYYY-MM-DD, "YYYY-MM-DD HH:MM:SS" or
// RFC3339.  A date-only date_to covers the whole day.
func (h *DashboardHandler) GetAlerts(c echo.Context) error {
	q, err := parseAlertQuery(c)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, err.Error())
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	page, err := h.Alerts.Search(ctx, q)
	if err != nil {
		return serverError(c, h.Log, "alert search failed", err)
	}
	return c.JSON(http.StatusOK, page)
}

func parseAlertQuery(c echo.Context) (repository.AlertSearchQuery, error) {
	q := repository.AlertSearchQuery{
		Vendor:       strings.TrimSpace(c.QueryParam("vendor")),
		Product:      strings.TrimSpace(c.QueryParam("product")),
		BioRelevance: strings.TrimSpace(c.QueryParam("bio_relevance")),
		KEVOnly:      c.QueryParam("kev_only") == "true",
		Search:       strings.TrimSpace(c.QueryParam("search")),
	}

	var err error
	if q.Page, err = intParam(c, "page", 1); err != nil {
		return q, err
	}
	if q.PerPage, err = intParam(c, "per_page", repository.DefaultPerPage); err != nil {
		return q, err
	}

	if v := strings.TrimSpace(c.QueryParam("date_from")); v != "" {
		t, _, err := parseDate(v)
		if err != nil {
			return q, paramError("date_from")
		}
		q.PublishedFrom = &t
	}
	if v := strings.TrimSpace(c.QueryParam("date_to")); v != "" {
		t, dateOnly, err := parseDate(v)
		if err != nil {
			return q, paramError("date_to")
		}
		if dateOnly {
			next := t.AddDate(0, 0, 1)
			q.PublishedBefore = &next
		} else {
			q.PublishedTo = &t
		}
	}
	n := q.Normalize()
	if q.Page > repository.MaxPage(n.PerPage) {
		return q, paramError("page")
	}
	return n, nil
}

// paramError names a query parameter that could not be parsed.
type paramError string

func (e paramError) Error() string { return "Invalid " + string(e) }

func intParam(c echo.Context, name string, def int) (int, error) {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, paramError(name)
	}
	return n, nil
}

// parseDate reports whether v carried only a date.  Values without a zone
// are read as UTC, matching how the store's DATETIME columns are decoded.
func parseDate(v string) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(time.DateOnly, v, time.UTC); err == nil {
		return t, true, nil
	}
	if t, err := time.ParseInLocation(time.DateTime, v, time.UTC); err == nil {
		return t, false, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), false, nil
}
