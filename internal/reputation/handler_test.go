package reputation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richxcame/civic-reports/pkg/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    *struct {
		Limit      int   `json:"limit"`
		Offset     int   `json:"offset"`
		Total      int64 `json:"total"`
		TotalPages int   `json:"total_pages"`
	} `json:"meta"`
}

func setupRouter(ledger *Ledger) *gin.Engine {
	r := gin.New()
	NewHandler(ledger).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func get(t *testing.T, r *gin.Engine, path string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var resp response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestHandler_GetProfile(t *testing.T) {
	ledger := NewLedger(NewMemoryStore(), MissingProfileCreate)
	userID := uuid.New()
	_, err := ledger.AwardXP(context.Background(), userID, 520, ReasonReportVerified, nil)
	require.NoError(t, err)
	r := setupRouter(ledger)

	w, resp := get(t, r, "/api/v1/users/"+userID.String()+"/reputation")
	assert.Equal(t, http.StatusOK, w.Code)
	var profile Profile
	require.NoError(t, json.Unmarshal(resp.Data, &profile))
	assert.Equal(t, int64(520), profile.XP)
	assert.Equal(t, RankGuardian, profile.Rank)

	w, _ = get(t, r, "/api/v1/users/"+uuid.New().String()+"/reputation")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = get(t, r, "/api/v1/users/nope/reputation")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_ListEvents(t *testing.T) {
	ledger := NewLedger(NewMemoryStore(), MissingProfileCreate)
	userID := uuid.New()
	for i := 0; i < 3; i++ {
		_, err := ledger.AwardXP(context.Background(), userID, 10, ReasonReportSubmitted, nil)
		require.NoError(t, err)
	}
	r := setupRouter(ledger)

	w, resp := get(t, r, "/api/v1/users/"+userID.String()+"/reputation/events?limit=2")
	assert.Equal(t, http.StatusOK, w.Code)

	var events []Event
	require.NoError(t, json.Unmarshal(resp.Data, &events))
	assert.Len(t, events, 2)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(3), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.TotalPages)
}

// limitRecorder remembers the limits the leaderboard was asked for.
type limitRecorder struct {
	*MemoryStore
	limits []int
}

func (s *limitRecorder) TopProfiles(ctx context.Context, limit int) ([]Profile, error) {
	s.limits = append(s.limits, limit)
	return s.MemoryStore.TopProfiles(ctx, limit)
}

func TestHandler_Leaderboard(t *testing.T) {
	store := &limitRecorder{MemoryStore: NewMemoryStore()}
	ledger := NewLedger(store, MissingProfileCreate)
	leader := uuid.New()
	_, err := ledger.AwardXP(context.Background(), leader, 700, ReasonReportVerified, nil)
	require.NoError(t, err)
	_, err = ledger.AwardXP(context.Background(), uuid.New(), 30, ReasonReportVerified, nil)
	require.NoError(t, err)
	r := setupRouter(ledger)

	w, resp := get(t, r, "/api/v1/leaderboard?limit=1")
	assert.Equal(t, http.StatusOK, w.Code)
	var entries []LeaderboardEntry
	require.NoError(t, json.Unmarshal(resp.Data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Position)
	assert.Equal(t, leader, entries[0].UserID)
	assert.Equal(t, RankGuardian, entries[0].Rank)

	get(t, r, "/api/v1/leaderboard")
	get(t, r, "/api/v1/leaderboard?limit=5000")
	get(t, r, "/api/v1/leaderboard?limit=-3")

	assert.Equal(t, []int{1, pagination.DefaultLimit, pagination.MaxLimit, pagination.DefaultLimit}, store.limits)
}
