package reputation

import (
	"context"

	"github.com/google/uuid"
)

// Store persists the event log and profiles.
type Store interface {
	// AppendEvent appends an event without touching the profile.
	AppendEvent(ctx context.Context, event *Event) error

	// ApplyAward appends event and adds its delta to the user's profile,
	// recomputing the rank, as one atomic step. Without a profile the event is
	// still appended; the profile is created only when createMissing is set.
	// applied reports whether a profile was updated.
	ApplyAward(ctx context.Context, event *Event, createMissing bool) (profile *Profile, applied bool, err error)

	GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error)
	ListEvents(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Event, int64, error)

	// TopProfiles returns up to limit profiles by XP, highest first. Ties are
	// ordered by user id, descending.
	TopProfiles(ctx context.Context, limit int) ([]Profile, error)
}
