package repository

import (
	"context"
	"database/sql"
	"math"
	"strings"
	"time"

	"github.com/cvewatch/cve-dashboard/internal/model"
)

const (
	DefaultPerPage = 50
	MaxPerPage     = 500
)

// AlertSearchQuery defines filters & pagination for the alert feed.  Empty
// strings and nil times impose no constraint.  Published bounds come in two
// flavours so a date-only upper bound can cover its whole day:
// PublishedTo is inclusive, PublishedBefore is exclusive.
type AlertSearchQuery struct {
	Vendor          string
	Product         string
	BioRelevance    string
	KEVOnly         bool
	Search          string
	PublishedFrom   *time.Time
	PublishedTo     *time.Time
	PublishedBefore *time.Time
	Page            int
	PerPage         int
}

// AlertPage is one page of the filtered feed plus the totals the client
// needs to paginate.
type AlertPage struct {
	Alerts     []model.Alert `json:"alerts"`
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	PerPage    int           `json:"per_page"`
	TotalPages int64         `json:"total_pages"`
}

// Normalize applies the paging defaults and the per_page ceiling.  Page is
// capped at MaxPage so Offset never overflows.
func (q AlertSearchQuery) Normalize() AlertSearchQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = DefaultPerPage
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
	if limit := MaxPage(q.PerPage); q.Page > limit {
		q.Page = limit
	}
	return q
}

// MaxPage is the largest page number whose offset fits in an int.
func MaxPage(perPage int) int {
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	return math.MaxInt / perPage
}

// Offset is the number of rows skipped before the current page.
func (q AlertSearchQuery) Offset() int { return (q.Page - 1) * q.PerPage }

// where renders the conjunction of the present filters.  The returned SQL
// only ever contains fixed fragments; every value travels in args.
func (q AlertSearchQuery) where() (string, []any) {
	where := []string{}
	args := []any{}

	if q.Vendor != "" {
		where = append(where, "vendor = ?")
		args = append(args, q.Vendor)
	}
	if q.Product != "" {
		where = append(where, "product = ?")
		args = append(args, q.Product)
	}
	if q.BioRelevance != "" {
		where = append(where, "bio_relevance = ?")
		args = append(args, q.BioRelevance)
	}
	if q.KEVOnly {
		where = append(where, "kev_flag = 1")
	}
	if q.Search != "" {
		like := likePattern(q.Search)
		where = append(where, "(cve_id LIKE ? OR title LIKE ? OR summary LIKE ?)")
		args = append(args, like, like, like)
	}
	if q.PublishedFrom != nil {
		where = append(where, "published_at >= ?")
		args = append(args, *q.PublishedFrom)
	}
	if q.PublishedTo != nil {
		where = append(where, "published_at <= ?")
		args = append(args, *q.PublishedTo)
	}
	if q.PublishedBefore != nil {
		where = append(where, "published_at < ?")
		args = append(args, *q.PublishedBefore)
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}
	return cond, args
}

// likePattern wraps s for a substring LIKE match, escaping the wildcard
// characters so user input matches literally.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// AlertRepo reads the externally populated alerts table.
type AlertRepo struct{ db *sql.DB }

func NewAlertRepo(db *sql.DB) *AlertRepo { return &AlertRepo{db: db} }

const alertColumns = `id, cve_id, COALESCE(title, ''), COALESCE(summary, ''),
		COALESCE(vendor, ''), COALESCE(product, ''), COALESCE(severity, ''),
		bio_relevance, kev_flag, COALESCE(bio_impact, ''), published_at`

// Search returns the total number of alerts matching q and the requested
// page, newest first.
func (r *AlertRepo) Search(ctx context.Context, q AlertSearchQuery) (AlertPage, error) {
	q = q.Normalize()
	cond, args := q.where()

	var total int64
	countSQL := `SELECT COUNT(*) FROM alerts WHERE ` + cond
	if err := r.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return AlertPage{}, err
	}

	dataSQL := `SELECT ` + alertColumns + `
		FROM alerts
		WHERE ` + cond + `
		ORDER BY published_at DESC, id DESC
		LIMIT ? OFFSET ?`

	argsData := append(append([]any{}, args...), q.PerPage, q.Offset())

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return AlertPage{}, err
	}
	defer rows.Close()

	out := make([]model.Alert, 0, q.PerPage)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return AlertPage{}, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return AlertPage{}, err
	}

	return AlertPage{
		Alerts:     out,
		Total:      total,
		Page:       q.Page,
		PerPage:    q.PerPage,
		TotalPages: (total + int64(q.PerPage) - 1) / int64(q.PerPage),
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(s rowScanner) (model.Alert, error) {
	var (
		a         model.Alert
		bio       sql.NullString
		published sql.NullTime
	)
	if err := s.Scan(
		&a.ID,
		&a.CVEID,
		&a.Title,
		&a.Summary,
		&a.Vendor,
		&a.Product,
		&a.Severity,
		&bio,
		&a.KEVFlag,
		&a.BioImpact,
		&published,
	); err != nil {
		return model.Alert{}, err
	}
	if bio.Valid {
		a.BioRelevance = &bio.String
	}
	if published.Valid {
		a.PublishedAt = &published.Time
	}
	return a, nil
}
