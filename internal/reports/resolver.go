package reports

import "github.com/richxcame/civic-reports/internal/verification"

const (
	DefaultFraudThreshold      = 0.7
	DefaultConfidenceThreshold = 0.7
)

// Policy holds the thresholds the status decision uses.
type Policy struct {
	// FraudThreshold: scores strictly above it are rejected as fraud.
	FraudThreshold float64
	// ConfidenceThreshold: relevant verdicts strictly above it are verified.
	ConfidenceThreshold float64
}

// DefaultPolicy returns the production thresholds.
func DefaultPolicy() Policy {
	return Policy{
		FraudThreshold:      DefaultFraudThreshold,
		ConfidenceThreshold: DefaultConfidenceThreshold,
	}
}

// Resolve maps a verification result and fraud score to a status.
// The fraud check dominates every verification outcome.
func (p Policy) Resolve(v verification.Result, fraudScore float64) Status {
	switch {
	case fraudScore > p.FraudThreshold:
		return StatusRejectedFraud
	case v.IsRelevant && v.Confidence > p.ConfidenceThreshold:
		return StatusVerified
	case !v.IsRelevant:
		return StatusRejected
	default:
		return StatusReviewPending
	}
}
