package repository

import (
	"context"
	"database/sql"

	"github.com/cvewatch/cve-dashboard/internal/model"
)

// SavedRepo persists the vulnerabilities users bookmark.
type SavedRepo struct{ db *sql.DB }

func NewSavedRepo(db *sql.DB) *SavedRepo { return &SavedRepo{db: db} }

// Save bookmarks alert for userID, copying its descriptive fields.  The
// (cve_id, user_id) unique key arbitrates concurrent attempts: the loser
// gets ErrAlreadySaved.
func (r *SavedRepo) Save(ctx context.Context, userID uint64, alert model.Alert, notes string) (uint64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO vulnerabilities
		(cve_id, vendor_project, product, vulnerability_name, date_added, short_description,
		 required_action, due_date, notes, user_id, analyzed_at)
		VALUES (?, ?, ?, ?, NOW(), ?, ?, NULL, ?, ?, NULL)`,
		alert.CVEID,
		alert.Vendor,
		alert.Product,
		alert.Title,
		alert.Summary,
		alert.BioImpact,
		notes,
		userID,
	)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrAlreadySaved
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// ListByUser returns userID's saved rows, newest first, with the current
// severity and bio relevance of each alert.
func (r *SavedRepo) ListByUser(ctx context.Context, userID uint64) ([]model.SavedVulnerability, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT
			v.id,
			v.user_id,
			v.cve_id,
			COALESCE(v.vendor_project, ''),
			COALESCE(v.product, ''),
			COALESCE(v.vulnerability_name, ''),
			v.date_added,
			COALESCE(v.short_description, ''),
			COALESCE(v.required_action, ''),
			v.due_date,
			COALESCE(v.notes, ''),
			v.analyzed_at,
			a.severity,
			a.bio_relevance
		FROM vulnerabilities v
		LEFT JOIN alerts a ON v.cve_id = a.cve_id
		WHERE v.user_id = ?
		ORDER BY v.date_added DESC, v.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.SavedVulnerability{}
	for rows.Next() {
		var (
			v                  model.SavedVulnerability
			due, analyzed      sql.NullTime
			severity, bioLevel sql.NullString
		)
		if err := rows.Scan(
			&v.ID,
			&v.UserID,
			&v.CVEID,
			&v.VendorProject,
			&v.Product,
			&v.VulnerabilityName,
			&v.DateAdded,
			&v.ShortDescription,
			&v.RequiredAction,
			&due,
			&v.Notes,
			&analyzed,
			&severity,
			&bioLevel,
		); err != nil {
			return nil, err
		}
		if due.Valid {
			v.DueDate = &due.Time
		}
		if analyzed.Valid {
			v.AnalyzedAt = &analyzed.Time
		}
		if severity.Valid {
			v.Severity = &severity.String
		}
		if bioLevel.Valid {
			v.BioRelevance = &bioLevel.String
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Delete removes saved row id when it belongs to userID.  Rows owned by
// someone else are left alone; the boolean reports whether a row went.
func (r *SavedRepo) Delete(ctx context.Context, userID, id uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM vulnerabilities WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
