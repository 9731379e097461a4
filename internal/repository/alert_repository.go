package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cvewatch/cve-dashboard/internal/model"
)

// FilterOptions lists the distinct values the alert filters accept.
type FilterOptions struct {
	Vendors      []string `json:"vendors"`
	Products     []string `json:"products"`
	BioRelevance []string `json:"bio_relevance"`
}

// GetByCVE fetches one alert by its CVE identifier.
func (r *AlertRepo) GetByCVE(ctx context.Context, cveID string) (model.Alert, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE cve_id = ? LIMIT 1`, cveID)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Alert{}, ErrNotFound
	}
	return a, err
}

// FilterOptions returns the sorted distinct non-empty vendors and products
// together with the fixed bio-relevance levels.
func (r *AlertRepo) FilterOptions(ctx context.Context) (FilterOptions, error) {
	vendors, err := r.distinct(ctx,
		"SELECT DISTINCT vendor FROM alerts WHERE vendor IS NOT NULL AND vendor != '' ORDER BY vendor")
	if err != nil {
		return FilterOptions{}, err
	}
	products, err := r.distinct(ctx,
		"SELECT DISTINCT product FROM alerts WHERE product IS NOT NULL AND product != '' ORDER BY product")
	if err != nil {
		return FilterOptions{}, err
	}
	return FilterOptions{
		Vendors:      vendors,
		Products:     products,
		BioRelevance: append([]string(nil), model.BioRelevanceLevels...),
	}, nil
}

func (r *AlertRepo) distinct(ctx context.Context, query string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// MatchText returns up to limit alerts whose CVE identifier, title, summary
// or vendor contains text.  It feeds the chatbot's grounding context.
func (r *AlertRepo) MatchText(ctx context.Context, text string, limit int) ([]model.RelatedCVE, error) {
	like := likePattern(text)
	rows, err := r.db.QueryContext(ctx, `SELECT cve_id, COALESCE(title, ''), COALESCE(summary, ''),
			COALESCE(vendor, ''), COALESCE(product, ''), COALESCE(severity, ''), bio_relevance
		FROM alerts
		WHERE cve_id LIKE ? OR title LIKE ? OR summary LIKE ? OR vendor LIKE ?
		LIMIT ?`, like, like, like, like, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.RelatedCVE{}
	for rows.Next() {
		var (
			c   model.RelatedCVE
			bio sql.NullString
		)
		if err := rows.Scan(&c.CVEID, &c.Title, &c.Summary, &c.Vendor, &c.Product, &c.Severity, &bio); err != nil {
			return nil, err
		}
		if bio.Valid {
			c.BioRelevance = &bio.String
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
