package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/cvewatch/cve-dashboard/internal/model"
)

// Stats is the dashboard summary bundle.
type Stats struct {
	Total        int64                 `json:"total"`
	KEVCount     int64                 `json:"kev_count"`
	BioCount     int64                 `json:"bio_count"`
	MonthCount   int64                 `json:"month_count"`
	BioBreakdown map[string]int64      `json:"bio_breakdown"`
	TopVendors   []VendorCount         `json:"top_vendors"`
	TopProducts  []ProductCount        `json:"top_products"`
	Timeline     []MonthCount          `json:"timeline"`
	RecentAlerts []model.CriticalAlert `json:"recent_alerts"`
}

type VendorCount struct {
	Vendor string `json:"vendor"`
	Count  int64  `json:"count"`
}

type ProductCount struct {
	Product string `json:"product"`
	Count   int64  `json:"count"`
}

// MonthCount is one point of the publication timeline; Month is "YYYY-MM".
type MonthCount struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

const (
	topN           = 5
	timelineMonths = 6
	recentCritical = 10
)

// StatsRepo runs the fixed set of aggregate queries behind the dashboard.
type StatsRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewStatsRepo(db *sql.DB) *StatsRepo {
	return &StatsRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Collect runs every aggregate inside one read-only transaction so the
// figures describe the same snapshot even while ingestion is writing.
func (r *StatsRepo) Collect(ctx context.Context) (Stats, error) {
	now := r.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	nextMonth := monthStart.AddDate(0, 1, 0)
	timelineStart := now.AddDate(0, -timelineMonths, 0)

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return Stats{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var s Stats
	counts := []struct {
		dst   *int64
		query string
		args  []any
	}{
		{&s.Total, "SELECT COUNT(*) FROM alerts", nil},
		{&s.KEVCount, "SELECT COUNT(*) FROM alerts WHERE kev_flag = 1", nil},
		{&s.BioCount, "SELECT COUNT(*) FROM alerts WHERE bio_relevance IN ('HIGH', 'MEDIUM')", nil},
		{&s.MonthCount, "SELECT COUNT(*) FROM alerts WHERE published_at >= ? AND published_at < ?", []any{monthStart, nextMonth}},
	}
	for _, c := range counts {
		if err := tx.QueryRowContext(ctx, c.query, c.args...).Scan(c.dst); err != nil {
			return Stats{}, err
		}
	}

	if s.BioBreakdown, err = bioBreakdown(ctx, tx); err != nil {
		return Stats{}, err
	}

	s.TopVendors = []VendorCount{}
	err = eachRow(ctx, tx, `SELECT vendor, COUNT(*) AS count FROM alerts
		WHERE vendor IS NOT NULL AND vendor != ''
		GROUP BY vendor
		ORDER BY count DESC, vendor ASC
		LIMIT ?`, []any{topN}, func(rows *sql.Rows) error {
		var v VendorCount
		if err := rows.Scan(&v.Vendor, &v.Count); err != nil {
			return err
		}
		s.TopVendors = append(s.TopVendors, v)
		return nil
	})
	if err != nil {
		return Stats{}, err
	}

	s.TopProducts = []ProductCount{}
	err = eachRow(ctx, tx, `SELECT product, COUNT(*) AS count FROM alerts
		WHERE product IS NOT NULL AND product != ''
		GROUP BY product
		ORDER BY count DESC, product ASC
		LIMIT ?`, []any{topN}, func(rows *sql.Rows) error {
		var p ProductCount
		if err := rows.Scan(&p.Product, &p.Count); err != nil {
			return err
		}
		s.TopProducts = append(s.TopProducts, p)
		return nil
	})
	if err != nil {
		return Stats{}, err
	}

	// Months without alerts produce no group and are left out.
	s.Timeline = []MonthCount{}
	err = eachRow(ctx, tx, `SELECT DATE_FORMAT(published_at, '%Y-%m') AS month, COUNT(*) AS count
		FROM alerts
		WHERE published_at >= ?
		GROUP BY month
		ORDER BY month DESC`, []any{timelineStart}, func(rows *sql.Rows) error {
		var m MonthCount
		if err := rows.Scan(&m.Month, &m.Count); err != nil {
			return err
		}
		s.Timeline = append(s.Timeline, m)
		return nil
	})
	if err != nil {
		return Stats{}, err
	}

	s.RecentAlerts = []model.CriticalAlert{}
	err = eachRow(ctx, tx, `SELECT cve_id, COALESCE(title, ''), COALESCE(vendor, ''), COALESCE(product, ''), published_at
		FROM alerts
		WHERE severity = ?
		ORDER BY published_at DESC
		LIMIT ?`, []any{model.SeverityCritical, recentCritical}, func(rows *sql.Rows) error {
		var (
			a         model.CriticalAlert
			published sql.NullTime
		)
		if err := rows.Scan(&a.CVEID, &a.Title, &a.Vendor, &a.Product, &published); err != nil {
			return err
		}
		if published.Valid {
			a.PublishedAt = &published.Time
		}
		s.RecentAlerts = append(s.RecentAlerts, a)
		return nil
	})
	if err != nil {
		return Stats{}, err
	}

	return s, tx.Commit()
}

func bioBreakdown(ctx context.Context, tx *sql.Tx) (map[string]int64, error) {
	out := map[string]int64{}
	err := eachRow(ctx, tx, `SELECT bio_relevance, COUNT(*) AS count FROM alerts
		WHERE bio_relevance IS NOT NULL
		GROUP BY bio_relevance`, nil, func(rows *sql.Rows) error {
		var (
			level string
			n     int64
		)
		if err := rows.Scan(&level, &n); err != nil {
			return err
		}
		out[level] = n
		return nil
	})
	return out, err
}

// eachRow runs query and calls fn for every row, closing the cursor on all
// paths.
func eachRow(ctx context.Context, tx *sql.Tx, query string, args []any, fn func(*sql.Rows) error) error {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
