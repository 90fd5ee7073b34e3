package verification

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoJSONObject   = errors.New("no JSON object in classifier reply")
	ErrMissingVerdict = errors.New("classifier reply is missing is_relevant or confidence")
)

// Decoded is the tagged outcome of decoding a classifier reply: either a
// Result, or the reason the reply could not be understood.
type Decoded struct {
	Result Result
	Err    error
}

// OK reports whether the reply decoded into a usable Result.
func (d Decoded) OK() bool {
	return d.Err == nil
}

type verdict struct {
	IsRelevant  *bool    `json:"is_relevant"`
	Severity    *float64 `json:"severity"`
	Description string   `json:"description"`
	Confidence  *float64 `json:"confidence"`
}

// DecodeVerdict extracts the JSON object from free-form model text, ignoring
// markdown fences or prose around it. It never panics; anything unusable comes
// back with Err set.
func DecodeVerdict(raw string) Decoded {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return Decoded{Err: ErrNoJSONObject}
	}

	var v verdict
	if err := json.Unmarshal([]byte(raw[start:end+1]), &v); err != nil {
		return Decoded{Err: fmt.Errorf("malformed classifier reply: %w", err)}
	}
	if v.IsRelevant == nil || v.Confidence == nil {
		return Decoded{Err: ErrMissingVerdict}
	}

	severity := float64(MinSeverity)
	if v.Severity != nil {
		severity = *v.Severity
	}

	return Decoded{Result: Result{
		IsRelevant:  *v.IsRelevant,
		Severity:    clampSeverity(severity),
		Confidence:  clampConfidence(*v.Confidence),
		Description: strings.TrimSpace(v.Description),
	}}
}
