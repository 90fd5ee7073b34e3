package reputation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/civic-reports/pkg/logger"
	"go.uber.org/zap"
)

// Ledger records reputation events and keeps profiles in step with them.
type Ledger struct {
	store   Store
	missing MissingProfilePolicy
	now     func() time.Time
}

// NewLedger creates a ledger. An unknown policy falls back to MissingProfileCreate.
func NewLedger(store Store, missing MissingProfilePolicy) *Ledger {
	if missing != MissingProfileSkip {
		missing = MissingProfileCreate
	}
	return &Ledger{store: store, missing: missing, now: time.Now}
}

func (l *Ledger) newEvent(userID uuid.UUID, delta int, reason string, reportRef *uuid.UUID) *Event {
	return &Event{
		ID:        uuid.New(),
		UserID:    userID,
		Delta:     delta,
		Reason:    reason,
		ReportID:  reportRef,
		CreatedAt: l.now().UTC(),
	}
}

// RecordEvent appends an event to the log without changing the profile.
func (l *Ledger) RecordEvent(ctx context.Context, userID uuid.UUID, delta int, reason string, reportRef *uuid.UUID) (*Event, error) {
	event := l.newEvent(userID, delta, reason, reportRef)
	if err := l.store.AppendEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to record reputation event: %w", err)
	}
	return event, nil
}

// AwardXP records a positive award and applies it to the user's profile.
func (l *Ledger) AwardXP(ctx context.Context, userID uuid.UUID, amount int, reason string, reportRef *uuid.UUID) (*AwardResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	event := l.newEvent(userID, amount, reason, reportRef)
	profile, applied, err := l.store.ApplyAward(ctx, event, l.missing == MissingProfileCreate)
	if err != nil {
		return nil, fmt.Errorf("failed to award xp: %w", err)
	}

	log := logger.WithContext(ctx).With(zap.String("user_id", userID.String()), zap.Int("amount", amount))
	if !applied {
		log.Warn("xp event logged without a profile to update", zap.String("reason", reason))
		return &AwardResult{Event: *event, ProfileApplied: false}, nil
	}

	log.Info("xp awarded", zap.Int64("xp", profile.XP), zap.String("rank", string(profile.Rank)))
	return &AwardResult{Event: *event, Profile: profile, ProfileApplied: true}, nil
}

// Profile returns a user's profile.
func (l *Ledger) Profile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	return l.store.GetProfile(ctx, userID)
}

// Leaderboard returns the limit highest-XP profiles, best first.
func (l *Ledger) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	profiles, err := l.store.TopProfiles(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}

	entries := make([]LeaderboardEntry, 0, len(profiles))
	for i, p := range profiles {
		entries = append(entries, LeaderboardEntry{
			Position: i + 1,
			UserID:   p.UserID,
			XP:       p.XP,
			Rank:     p.Rank,
		})
	}
	return entries, nil
}

// Events returns a page of a user's events, newest first, and the total count.
func (l *Ledger) Events(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Event, int64, error) {
	return l.store.ListEvents(ctx, userID, limit, offset)
}
