package model

import "time"

// Severity orders alert urgency from low to critical.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "CRITICAL"
	case SeverityHigh:
		return "HIGH"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityLow:
		return "LOW"
	default:
		return "UNKNOWN"
	}
}

// Alert is an actionable notification about a company. Co-occurring
// triggers are merged into a single alert with combined reasons.
type Alert struct {
	ID           string    `json:"id"`
	CompanyID    string    `json:"company_id"`
	Severity     Severity  `json:"severity"`
	Reasons      []string  `json:"reasons"`
	DedupKey     string    `json:"dedup_key"`
	CreatedAt    time.Time `json:"created_at"`
	Acknowledged bool      `json:"acknowledged"`
}
