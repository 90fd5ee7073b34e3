// Package verification classifies whether submitted media shows the civic
// issue it claims to, using an external multimodal model.
package verification

import "math"

const (
	MinSeverity = 1
	MaxSeverity = 10
	// UnscoredSeverity marks a result that never reached the classifier.
	UnscoredSeverity = 0
)

// Result is the outcome of verifying one piece of media.
type Result struct {
	IsRelevant  bool    `json:"is_relevant"`
	Severity    int     `json:"severity"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
	Error       string  `json:"error,omitempty"`
}

// Failed reports whether the result is a fail-closed default.
func (r Result) Failed() bool {
	return r.Error != ""
}

// FailClosed is the result used whenever verification could not be completed.
func FailClosed(reason string) Result {
	return Result{
		IsRelevant:  false,
		Severity:    UnscoredSeverity,
		Confidence:  0.0,
		Description: "Automated verification failed: " + reason,
		Error:       reason,
	}
}

func clampConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func clampSeverity(s float64) int {
	if math.IsNaN(s) || s < MinSeverity {
		return MinSeverity
	}
	if s > MaxSeverity {
		return MaxSeverity
	}
	return int(math.Round(s))
}
