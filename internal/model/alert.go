package model

import "time"

// Alert mirrors a row of the `alerts` table populated by the external
// ingestion process.  Nullable text columns are read through COALESCE so
// they surface as empty strings; bio_relevance and published_at stay
// nullable because their absence is meaningful to the dashboard.
type Alert struct {
	ID           uint64     `json:"id"`
	CVEID        string     `json:"cve_id"`
	Title        string     `json:"title"`
	Summary      string     `json:"summary"`
	Vendor       string     `json:"vendor"`
	Product      string     `json:"product"`
	Severity     string     `json:"severity"`
	BioRelevance *string    `json:"bio_relevance"`
	KEVFlag      bool       `json:"kev_flag"`
	BioImpact    string     `json:"bio_impact"`
	PublishedAt  *time.Time `json:"published_at"`
}

// CriticalAlert is the trimmed projection used by the dashboard's recent
// critical list.
type CriticalAlert struct {
	CVEID       string     `json:"cve_id"`
	Title       string     `json:"title"`
	Vendor      string     `json:"vendor"`
	Product     string     `json:"product"`
	PublishedAt *time.Time `json:"published_at"`
}

// RelatedCVE is the projection handed to the chatbot as grounding context
// and echoed back to the client as related_cves.
type RelatedCVE struct {
	CVEID        string  `json:"cve_id"`
	Title        string  `json:"title"`
	Summary      string  `json:"summary"`
	Vendor       string  `json:"vendor"`
	Product      string  `json:"product"`
	Severity     string  `json:"severity"`
	BioRelevance *string `json:"bio_relevance"`
}

// Bio-relevance levels offered as filter options, highest first.
var BioRelevanceLevels = []string{"HIGH", "MEDIUM", "LOW", "NONE"}

// SeverityCritical is the severity value listed on the dashboard.
const SeverityCritical = "CRITICAL"
