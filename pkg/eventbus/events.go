package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// Subjects
const (
	SubjectReportSubmitted = "reports.submitted"
)

// Event types
const (
	TypeReportSubmitted = "report.submitted"
)

// ReportSubmittedData is published once a report is durably stored.
type ReportSubmittedData struct {
	ReportID    uuid.UUID  `json:"report_id"`
	SubmitterID *uuid.UUID `json:"submitter_id,omitempty"`
	Category    string     `json:"category"`
	Status      string     `json:"status"`
	Severity    int        `json:"severity"`
	Confidence  float64    `json:"confidence"`
	FraudScore  float64    `json:"fraud_score"`
	GeoCell     string     `json:"geo_cell,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
