package reports

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/richxcame/civic-reports/pkg/validation"
)

// DefaultMaxMediaBytes caps the size of an uploaded image.
const DefaultMaxMediaBytes = 10 << 20

type locationPayload struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
	Accuracy  *float64 `json:"accuracy" validate:"omitempty,gte=0"`
}

type submissionFields struct {
	Category    string `json:"category" validate:"required,category"`
	Description string `json:"description" validate:"max=1000"`
	Contact     string `json:"contact" validate:"omitempty,email|e164"`
}

// ParseLocation decodes and validates a raw location payload.
func ParseLocation(raw []byte) (Location, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Location{}, &InvalidInputError{Field: "location", Reason: "location is required"}
	}

	var p locationPayload
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&p); err != nil {
		return Location{}, &InvalidInputError{Field: "location", Reason: "location must be a JSON object with latitude and longitude", Err: err}
	}

	if err := validation.ValidateStruct(p); err != nil {
		return Location{}, fieldError("location", err)
	}

	return Location{Latitude: *p.Latitude, Longitude: *p.Longitude, Accuracy: p.Accuracy}, nil
}

// NormalizeCategory lowercases and trims a category name.
func NormalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// validated is the normalized form of a Submission that passed validation.
type validated struct {
	location Location
	category string
	contact  string
}

func validateSubmission(sub *Submission, maxMediaBytes int) (validated, error) {
	if sub == nil {
		return validated{}, &InvalidInputError{Field: "submission", Reason: "submission is required"}
	}

	loc, err := ParseLocation(sub.Location)
	if err != nil {
		return validated{}, err
	}

	fields := submissionFields{
		Category:    NormalizeCategory(sub.Category),
		Description: sub.Description,
		Contact:     strings.TrimSpace(sub.Contact),
	}
	if err := validation.ValidateStruct(fields); err != nil {
		return validated{}, fieldError("submission", err)
	}

	switch {
	case len(sub.Media) == 0:
		return validated{}, &InvalidInputError{Field: "image", Reason: "image is required"}
	case len(sub.Media) > maxMediaBytes:
		return validated{}, &InvalidInputError{Field: "image", Reason: fmt.Sprintf("image exceeds %d bytes", maxMediaBytes)}
	case !strings.HasPrefix(strings.ToLower(sub.MediaType), "image/"):
		return validated{}, &InvalidInputError{Field: "image", Reason: fmt.Sprintf("unsupported media type %q", sub.MediaType)}
	}

	return validated{location: loc, category: fields.Category, contact: fields.Contact}, nil
}

func fieldError(fallback string, err error) *InvalidInputError {
	var valErr *validation.ValidationError
	if errors.As(err, &valErr) {
		field, msg := valErr.Field()
		if fallback == "location" {
			field = "location." + field
		}
		return &InvalidInputError{Field: field, Reason: msg, Err: err}
	}
	return &InvalidInputError{Field: fallback, Reason: err.Error(), Err: err}
}
