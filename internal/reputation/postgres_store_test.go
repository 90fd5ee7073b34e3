package reputation

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	insertEventSQL   = regexp.QuoteMeta("INSERT INTO reputation_events")
	createProfileSQL = regexp.QuoteMeta("INSERT INTO profiles")
	lockProfileSQL   = regexp.QuoteMeta("SELECT xp FROM profiles WHERE user_id = $1 FOR UPDATE")
	updateProfileSQL = regexp.QuoteMeta("UPDATE profiles SET xp = $2, rank = $3, updated_at = $4")
)

func newEvent(userID uuid.UUID, delta int) *Event {
	return &Event{
		ID:        uuid.New(),
		UserID:    userID,
		Delta:     delta,
		Reason:    ReasonReportVerified,
		CreatedAt: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}
}

func setupPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(db), mock
}

func TestPostgresStore_ApplyAward(t *testing.T) {
	store, mock := setupPostgresStore(t)
	event := newEvent(uuid.New(), 50)

	mock.ExpectBegin()
	mock.ExpectExec(insertEventSQL).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 50, ReasonReportVerified, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(createProfileSQL).
		WithArgs(sqlmock.AnyArg(), "Citizen", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(lockProfileSQL).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"xp"}).AddRow(80))
	mock.ExpectExec(updateProfileSQL).
		WithArgs(sqlmock.AnyArg(), int64(130), "Volunteer", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	profile, applied, err := store.ApplyAward(context.Background(), event, true)
	require.NoError(t, err)

	assert.True(t, applied)
	assert.Equal(t, int64(130), profile.XP)
	assert.Equal(t, RankVolunteer, profile.Rank)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ApplyAwardSkipsMissingProfile(t *testing.T) {
	store, mock := setupPostgresStore(t)
	event := newEvent(uuid.New(), 50)

	mock.ExpectBegin()
	mock.ExpectExec(insertEventSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(lockProfileSQL).WillReturnRows(sqlmock.NewRows([]string{"xp"}))
	mock.ExpectCommit()

	profile, applied, err := store.ApplyAward(context.Background(), event, false)
	require.NoError(t, err)

	assert.False(t, applied)
	assert.Nil(t, profile)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ApplyAwardRollsBack(t *testing.T) {
	store, mock := setupPostgresStore(t)
	event := newEvent(uuid.New(), 50)

	mock.ExpectBegin()
	mock.ExpectExec(insertEventSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(createProfileSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(lockProfileSQL).WillReturnRows(sqlmock.NewRows([]string{"xp"}).AddRow(0))
	mock.ExpectExec(updateProfileSQL).WillReturnError(errors.New("serialization failure"))
	mock.ExpectRollback()

	_, _, err := store.ApplyAward(context.Background(), event, true)
	assert.ErrorContains(t, err, "failed to update profile")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendEvent(t *testing.T) {
	store, mock := setupPostgresStore(t)
	reportID := uuid.New()
	event := newEvent(uuid.New(), -10)
	event.ReportID = &reportID

	mock.ExpectExec(insertEventSQL).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), -10, ReasonReportVerified, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.AppendEvent(context.Background(), event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProfile(t *testing.T) {
	store, mock := setupPostgresStore(t)
	userID := uuid.New()
	updated := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT xp, rank, updated_at FROM profiles")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"xp", "rank", "updated_at"}).AddRow(int64(640), "Guardian", updated))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT xp, rank, updated_at FROM profiles")).
		WillReturnRows(sqlmock.NewRows([]string{"xp", "rank", "updated_at"}))

	profile, err := store.GetProfile(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, &Profile{UserID: userID, XP: 640, Rank: RankGuardian, UpdatedAt: updated}, profile)

	_, err = store.GetProfile(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrProfileNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListEvents(t *testing.T) {
	store, mock := setupPostgresStore(t)
	userID := uuid.New()
	eventID := uuid.New()
	reportID := uuid.New()
	at := time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM reputation_events")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, delta, reason, report_id, created_at")).
		WithArgs(sqlmock.AnyArg(), 2, 4).
		WillReturnRows(sqlmock.NewRows([]string{"id", "delta", "reason", "report_id", "created_at"}).
			AddRow(eventID.String(), 25, ReasonReportVerified, reportID.String(), at).
			AddRow(uuid.New().String(), 5, ReasonReportSubmitted, nil, at))

	events, total, err := store.ListEvents(context.Background(), userID, 2, 4)
	require.NoError(t, err)

	assert.Equal(t, int64(7), total)
	require.Len(t, events, 2)
	assert.Equal(t, eventID, events[0].ID)
	assert.Equal(t, userID, events[0].UserID)
	require.NotNil(t, events[0].ReportID)
	assert.Equal(t, reportID, *events[0].ReportID)
	assert.Nil(t, events[1].ReportID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_TopProfiles(t *testing.T) {
	store, mock := setupPostgresStore(t)
	first, second := uuid.New(), uuid.New()
	at := time.Date(2026, 4, 4, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY xp DESC, user_id DESC")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "xp", "rank", "updated_at"}).
			AddRow(first.String(), int64(900), "Guardian", at).
			AddRow(second.String(), int64(40), "Citizen", at))

	profiles, err := store.TopProfiles(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, []Profile{
		{UserID: first, XP: 900, Rank: RankGuardian, UpdatedAt: at},
		{UserID: second, XP: 40, Rank: RankCitizen, UpdatedAt: at},
	}, profiles)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_TopProfilesError(t *testing.T) {
	store, mock := setupPostgresStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM profiles")).WillReturnError(errors.New("connection reset"))

	_, err := store.TopProfiles(context.Background(), 5)
	assert.ErrorContains(t, err, "failed to list top profiles")
}
