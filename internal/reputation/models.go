package reputation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Rank is the civic rank derived from a user's XP.
type Rank string

const (
	RankCitizen   Rank = "Citizen"
	RankVolunteer Rank = "Volunteer"
	RankGuardian  Rank = "Guardian"
	RankChampion  Rank = "Champion"
)

// Reason codes
const (
	ReasonReportVerified  = "report_verified"
	ReasonReportSubmitted = "report_submitted"
)

var (
	ErrProfileNotFound = errors.New("reputation profile not found")
	ErrInvalidAmount   = errors.New("xp award must be positive")
	ErrInvalidLimit    = errors.New("leaderboard limit must be positive")
)

// Event is one entry of the append-only reputation log.
type Event struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Delta     int        `json:"delta"`
	Reason    string     `json:"reason"`
	ReportID  *uuid.UUID `json:"report_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Profile is the aggregate of a user's events.
type Profile struct {
	UserID    uuid.UUID `json:"user_id"`
	XP        int64     `json:"xp"`
	Rank      Rank      `json:"rank"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AwardResult is the outcome of AwardXP. ProfileApplied is false when the
// event was logged but no profile existed to update.
type AwardResult struct {
	Event          Event    `json:"event"`
	Profile        *Profile `json:"profile,omitempty"`
	ProfileApplied bool     `json:"profile_applied"`
}

// LeaderboardEntry is one row of the leaderboard. Position starts at 1.
type LeaderboardEntry struct {
	Position int       `json:"position"`
	UserID   uuid.UUID `json:"user_id"`
	XP       int64     `json:"xp"`
	Rank     Rank      `json:"rank"`
}

// MissingProfilePolicy decides what an award does for a user without a profile.
type MissingProfilePolicy string

const (
	// MissingProfileCreate creates the profile as part of the award.
	MissingProfileCreate MissingProfilePolicy = "create"
	// MissingProfileSkip logs the event and leaves the aggregate alone.
	MissingProfileSkip MissingProfilePolicy = "skip"
)
