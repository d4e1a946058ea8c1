package domain

import "time"

// Severity classifies a finding.
type Severity string

const (
	SeverityPass    Severity = "PASS"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// Stage names, in pipeline order.
const (
	StageTerms      = "terms"
	StageCharacters = "characters"
	StageACL        = "acl"
	StageURLs       = "urls"
	StageGUIDs      = "guids"
)

// Finding is one entry of the reconciliation report.
type Finding struct {
	Severity Severity `json:"severity"`
	Stage    string   `json:"stage"`
	Node     string   `json:"node,omitempty"`
	Property string   `json:"property,omitempty"`
	Row      int      `json:"row,omitempty"` // 1-based; 0 when not row specific
	Message  string   `json:"message"`
}

// GUIDAssignment records one identifier minted for a (url, md5sum) group.
type GUIDAssignment struct {
	Node    string `json:"node"`
	FileURL string `json:"file_url_in_cds"`
	MD5Sum  string `json:"md5sum"`
	GUID    string `json:"guid"`
	Rows    int    `json:"rows"`
}

// Run is a persisted reconciliation run.
type Run struct {
	ID         string    `json:"id"`
	Submission string    `json:"submission"`
	Strategy   string    `json:"strategy"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Passes     int       `json:"passes"`
	Warnings   int       `json:"warnings"`
	Errors     int       `json:"errors"`
}
