package model

import "time"

// SavedVulnerability models a row of the `vulnerabilities` table: an alert a
// user bookmarked, with copies of the alert's descriptive fields taken at
// save time.  Column names follow the CISA KEV catalog layout the table was
// created for, hence vendor_project and vulnerability_name.
//
// Severity and BioRelevance are not stored; listings join them from the
// current alert row and they are nil when the alert no longer exists.
type SavedVulnerability struct {
	ID                uint64     `json:"id"`
	UserID            uint64     `json:"user_id"`
	CVEID             string     `json:"cve_id"`
	VendorProject     string     `json:"vendor_project"`
	Product           string     `json:"product"`
	VulnerabilityName string     `json:"vulnerability_name"`
	DateAdded         time.Time  `json:"date_added"`
	ShortDescription  string     `json:"short_description"`
	RequiredAction    string     `json:"required_action"`
	DueDate           *time.Time `json:"due_date"`
	Notes             string     `json:"notes"`
	AnalyzedAt        *time.Time `json:"analyzed_at"`
	Severity          *string    `json:"severity"`
	BioRelevance      *string    `json:"bio_relevance"`
}
