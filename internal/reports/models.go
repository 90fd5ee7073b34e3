package reports

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/civic-reports/internal/fraud"
)

// Status is the review state a report leaves the pipeline in.
type Status string

const (
	StatusVerified      Status = "verified"
	StatusReviewPending Status = "review_pending"
	StatusRejected      Status = "rejected"
	StatusRejectedFraud Status = "rejected_fraud"
)

// AIVerificationStatus is the coarse status shown to the submitter.
func (s Status) AIVerificationStatus() string {
	if s == StatusVerified {
		return "verified"
	}
	return "pending"
}

// Location is a reported position.
type Location struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
}

// Point converts the location for fraud scoring.
func (l Location) Point() fraud.Point {
	return fraud.Point{Latitude: l.Latitude, Longitude: l.Longitude}
}

// Submission is one incoming report. It is never persisted as is.
type Submission struct {
	Media     []byte
	MediaType string
	Category  string
	// Location is the raw location payload, {"latitude","longitude","accuracy?"}.
	Location    json.RawMessage
	Description string
	// Contact is an email address or E.164 phone number to notify.
	Contact     string
	SubmitterID *uuid.UUID
	SubmittedAt time.Time
}

// Report is the persisted outcome of a submission.
type Report struct {
	ID               uuid.UUID  `json:"id"`
	SubmitterID      *uuid.UUID `json:"submitter_id,omitempty"`
	Category         string     `json:"category"`
	Description      string     `json:"description,omitempty"`
	Location         Location   `json:"location"`
	GeoCell          string     `json:"geo_cell,omitempty"`
	Status           Status     `json:"status"`
	Severity         int        `json:"severity"`
	MediaURLs        []string   `json:"media_urls"`
	Confidence       float64    `json:"ai_confidence"`
	FraudScore       float64    `json:"fraud_score"`
	VerificationNote string     `json:"verification_note,omitempty"`
	SubmittedAt      time.Time  `json:"submitted_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

// SubmitResult is what a submitter gets back.
type SubmitResult struct {
	ID                   uuid.UUID `json:"id"`
	Status               Status    `json:"status"`
	AIVerificationStatus string    `json:"ai_verification_status"`
	CreatedAt            time.Time `json:"created_at"`
}

// Result summarises the report for the submitter.
func (r *Report) Result() SubmitResult {
	return SubmitResult{
		ID:                   r.ID,
		Status:               r.Status,
		AIVerificationStatus: r.Status.AIVerificationStatus(),
		CreatedAt:            r.CreatedAt,
	}
}
