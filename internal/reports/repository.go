package reports

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrReportNotFound is returned when no report has the requested id.
var ErrReportNotFound = errors.New("report not found")

// DB is the subset of pgxpool.Pool the repository uses.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository stores reports in PostgreSQL/PostGIS.
type Repository struct {
	db DB
}

// NewRepository creates a new reports repository
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// Insert stores a report and fills in its creation timestamp.
func (r *Repository) Insert(ctx context.Context, report *Report) (*Report, error) {
	query := `
		INSERT INTO reports (
			id, submitter_id, category, description, location, location_accuracy, geo_cell,
			status, severity, media_urls, ai_confidence, fraud_score, verification_note, submitted_at
		)
		VALUES (
			$1, $2, $3, NULLIF($4, ''), ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography, $7, NULLIF($8, ''),
			$9, $10, $11, $12, $13, NULLIF($14, ''), $15
		)
		RETURNING created_at
	`

	saved := *report
	err := r.db.QueryRow(ctx, query,
		report.ID,
		report.SubmitterID,
		report.Category,
		report.Description,
		report.Location.Longitude,
		report.Location.Latitude,
		report.Location.Accuracy,
		report.GeoCell,
		string(report.Status),
		report.Severity,
		report.MediaURLs,
		report.Confidence,
		report.FraudScore,
		report.VerificationNote,
		report.SubmittedAt,
	).Scan(&saved.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert report: %w", err)
	}

	return &saved, nil
}

// GetByID retrieves a report by id
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	query := `
		SELECT id, submitter_id, category, COALESCE(description, ''),
			ST_Y(location::geometry), ST_X(location::geometry), location_accuracy, COALESCE(geo_cell, ''),
			status, severity, media_urls, ai_confidence, fraud_score, COALESCE(verification_note, ''),
			submitted_at, created_at
		FROM reports
		WHERE id = $1
	`

	var (
		report Report
		status string
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&report.ID,
		&report.SubmitterID,
		&report.Category,
		&report.Description,
		&report.Location.Latitude,
		&report.Location.Longitude,
		&report.Location.Accuracy,
		&report.GeoCell,
		&status,
		&report.Severity,
		&report.MediaURLs,
		&report.Confidence,
		&report.FraudScore,
		&report.VerificationNote,
		&report.SubmittedAt,
		&report.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	report.Status = Status(status)
	return &report, nil
}
