package reputation

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwardXP_CreatesMissingProfile(t *testing.T) {
	store := NewMemoryStore()
	ledger := NewLedger(store, MissingProfileCreate)
	userID := uuid.New()
	reportID := uuid.New()

	result, err := ledger.AwardXP(context.Background(), userID, 150, ReasonReportVerified, &reportID)
	require.NoError(t, err)

	assert.True(t, result.ProfileApplied)
	assert.Equal(t, int64(150), result.Profile.XP)
	assert.Equal(t, RankVolunteer, result.Profile.Rank)
	assert.Equal(t, 150, result.Event.Delta)
	assert.Equal(t, &reportID, result.Event.ReportID)

	profile, err := ledger.Profile(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), profile.XP)
}

func TestAwardXP_SkipPolicyLogsEventOnly(t *testing.T) {
	store := NewMemoryStore()
	ledger := NewLedger(store, MissingProfileSkip)
	userID := uuid.New()

	result, err := ledger.AwardXP(context.Background(), userID, 50, ReasonReportVerified, nil)
	require.NoError(t, err)

	assert.False(t, result.ProfileApplied)
	assert.Nil(t, result.Profile)

	_, err = ledger.Profile(context.Background(), userID)
	assert.ErrorIs(t, err, ErrProfileNotFound)

	events, total, err := ledger.Events(context.Background(), userID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, 50, events[0].Delta)
}

func TestAwardXP_SkipPolicyUpdatesExistingProfile(t *testing.T) {
	store := NewMemoryStore()
	ledger := NewLedger(store, MissingProfileSkip)
	userID := uuid.New()
	store.CreateProfile(userID)

	result, err := ledger.AwardXP(context.Background(), userID, 600, ReasonReportVerified, nil)
	require.NoError(t, err)

	assert.True(t, result.ProfileApplied)
	assert.Equal(t, RankGuardian, result.Profile.Rank)
}

func TestAwardXP_RejectsNonPositive(t *testing.T) {
	ledger := NewLedger(NewMemoryStore(), MissingProfileCreate)

	for _, amount := range []int{0, -5} {
		_, err := ledger.AwardXP(context.Background(), uuid.New(), amount, "x", nil)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}
}

func TestAwardXP_ConcurrentAwardsAreNotLost(t *testing.T) {
	ledger := NewLedger(NewMemoryStore(), MissingProfileCreate)
	userID := uuid.New()

	var wg sync.WaitGroup
	for _, amount := range []int{50, 70} {
		wg.Add(1)
		go func(amount int) {
			defer wg.Done()
			_, err := ledger.AwardXP(context.Background(), userID, amount, ReasonReportVerified, nil)
			assert.NoError(t, err)
		}(amount)
	}
	wg.Wait()

	profile, err := ledger.Profile(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(120), profile.XP)
	assert.Equal(t, RankVolunteer, profile.Rank)
}

func TestAwardXP_ManyConcurrentAwardsKeepRankConsistent(t *testing.T) {
	ledger := NewLedger(NewMemoryStore(), MissingProfileCreate)
	userID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = ledger.AwardXP(context.Background(), userID, 11, ReasonReportSubmitted, nil)
		}()
	}
	wg.Wait()

	profile, err := ledger.Profile(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1100), profile.XP)
	assert.Equal(t, RankForXP(profile.XP), profile.Rank)

	_, total, err := ledger.Events(context.Background(), userID, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(100), total)
}

func TestRecordEvent_LeavesProfileAlone(t *testing.T) {
	store := NewMemoryStore()
	ledger := NewLedger(store, MissingProfileCreate)
	userID := uuid.New()
	store.CreateProfile(userID)

	event, err := ledger.RecordEvent(context.Background(), userID, -20, "moderation_penalty", nil)
	require.NoError(t, err)
	assert.Equal(t, -20, event.Delta)

	profile, err := ledger.Profile(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), profile.XP)
}

func TestMemoryStore_ListEventsPaging(t *testing.T) {
	ledger := NewLedger(NewMemoryStore(), MissingProfileCreate)
	userID := uuid.New()
	for i := 1; i <= 5; i++ {
		_, err := ledger.AwardXP(context.Background(), userID, i, ReasonReportSubmitted, nil)
		require.NoError(t, err)
	}
	_, err := ledger.AwardXP(context.Background(), uuid.New(), 99, ReasonReportSubmitted, nil)
	require.NoError(t, err)

	events, total, err := ledger.Events(context.Background(), userID, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, events, 2)
	// newest first
	assert.Equal(t, 4, events[0].Delta)
	assert.Equal(t, 3, events[1].Delta)

	events, _, err = ledger.Events(context.Background(), userID, 10, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestLeaderboard_OrdersByXP(t *testing.T) {
	ledger := NewLedger(NewMemoryStore(), MissingProfileCreate)
	low := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	tieA := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	tieB := uuid.MustParse("00000000-0000-0000-0000-000000000003")
	top := uuid.MustParse("00000000-0000-0000-0000-000000000004")

	for userID, xp := range map[uuid.UUID]int{low: 10, tieA: 200, tieB: 200, top: 1500} {
		_, err := ledger.AwardXP(context.Background(), userID, xp, ReasonReportVerified, nil)
		require.NoError(t, err)
	}

	entries, err := ledger.Leaderboard(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, []LeaderboardEntry{
		{Position: 1, UserID: top, XP: 1500, Rank: RankChampion},
		{Position: 2, UserID: tieB, XP: 200, Rank: RankVolunteer},
		{Position: 3, UserID: tieA, XP: 200, Rank: RankVolunteer},
	}, entries)
}

func TestLeaderboard_Empty(t *testing.T) {
	entries, err := NewLedger(NewMemoryStore(), MissingProfileCreate).Leaderboard(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLeaderboard_RejectsNonPositiveLimit(t *testing.T) {
	_, err := NewLedger(NewMemoryStore(), MissingProfileCreate).Leaderboard(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}
