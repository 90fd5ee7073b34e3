package reputation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresStore keeps the ledger in PostgreSQL. Awards serialize per user on
// the profile row lock.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEvent(ctx context.Context, db execer, event *Event) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO reputation_events (id, user_id, delta, reason, report_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.UserID, event.Delta, event.Reason, event.ReportID, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reputation event: %w", err)
	}
	return nil
}

// AppendEvent implements Store
func (s *PostgresStore) AppendEvent(ctx context.Context, event *Event) error {
	return insertEvent(ctx, s.db, event)
}

// ApplyAward implements Store
func (s *PostgresStore) ApplyAward(ctx context.Context, event *Event, createMissing bool) (*Profile, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertEvent(ctx, tx, event); err != nil {
		return nil, false, err
	}

	if createMissing {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO profiles (user_id, xp, rank, updated_at)
			VALUES ($1, 0, $2, $3)
			ON CONFLICT (user_id) DO NOTHING`,
			event.UserID, string(RankCitizen), event.CreatedAt,
		)
		if err != nil {
			return nil, false, fmt.Errorf("failed to create profile: %w", err)
		}
	}

	var xp int64
	err = tx.QueryRowContext(ctx, `SELECT xp FROM profiles WHERE user_id = $1 FOR UPDATE`, event.UserID).Scan(&xp)
	if errors.Is(err, sql.ErrNoRows) {
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("failed to commit reputation event: %w", err)
		}
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to lock profile: %w", err)
	}

	profile := &Profile{
		UserID:    event.UserID,
		XP:        xp + int64(event.Delta),
		UpdatedAt: event.CreatedAt,
	}
	profile.Rank = RankForXP(profile.XP)

	_, err = tx.ExecContext(ctx, `
		UPDATE profiles SET xp = $2, rank = $3, updated_at = $4
		WHERE user_id = $1`,
		profile.UserID, profile.XP, string(profile.Rank), profile.UpdatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to update profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit award: %w", err)
	}
	return profile, true, nil
}

// GetProfile implements Store
func (s *PostgresStore) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	var (
		profile = Profile{UserID: userID}
		rank    string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT xp, rank, updated_at FROM profiles WHERE user_id = $1`, userID,
	).Scan(&profile.XP, &rank, &profile.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	profile.Rank = Rank(rank)
	return &profile, nil
}

// TopProfiles implements Store
func (s *PostgresStore) TopProfiles(ctx context.Context, limit int) ([]Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, xp, rank, updated_at
		FROM profiles
		ORDER BY xp DESC, user_id DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list top profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]Profile, 0, limit)
	for rows.Next() {
		var (
			p    Profile
			rank string
		)
		if err := rows.Scan(&p.UserID, &p.XP, &rank, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		p.Rank = Rank(rank)
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}
	return profiles, nil
}

// ListEvents implements Store
func (s *PostgresStore) ListEvents(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Event, int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reputation_events WHERE user_id = $1`, userID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count reputation events: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, delta, reason, report_id, created_at
		FROM reputation_events
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reputation events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var (
			e         = Event{UserID: userID}
			reportRef uuid.NullUUID
			createdAt time.Time
		)
		if err := rows.Scan(&e.ID, &e.Delta, &e.Reason, &reportRef, &createdAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan reputation event: %w", err)
		}
		if reportRef.Valid {
			ref := reportRef.UUID
			e.ReportID = &ref
		}
		e.CreatedAt = createdAt
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate reputation events: %w", err)
	}

	return events, total, nil
}
