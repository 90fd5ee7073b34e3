package reputation

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richxcame/civic-reports/pkg/common"
	"github.com/richxcame/civic-reports/pkg/pagination"
)

// Handler handles HTTP requests for reputation
type Handler struct {
	ledger *Ledger
}

// NewHandler creates a new reputation handler
func NewHandler(ledger *Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// RegisterRoutes mounts the reputation routes on rg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	users := rg.Group("/users/:id/reputation")
	users.GET("", h.GetProfile)
	users.GET("/events", h.ListEvents)
	rg.GET("/leaderboard", h.Leaderboard)
}

// GetProfile returns a user's XP and rank
func (h *Handler) GetProfile(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid user ID")
		return
	}

	profile, err := h.ledger.Profile(c.Request.Context(), userID)
	if errors.Is(err, ErrProfileNotFound) {
		common.ErrorResponse(c, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to get profile")
		return
	}

	common.SuccessResponse(c, profile)
}

// ListEvents returns a page of a user's reputation events
func (h *Handler) ListEvents(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid user ID")
		return
	}

	params := pagination.ParseParams(c)
	events, total, err := h.ledger.Events(c.Request.Context(), userID, params.Limit, params.Offset)
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to list reputation events")
		return
	}

	common.SuccessResponseWithMeta(c, events, pagination.BuildMeta(params.Limit, params.Offset, total))
}

// Leaderboard returns the highest-XP users. limit follows the pagination
// defaults and cap.
func (h *Handler) Leaderboard(c *gin.Context) {
	params := pagination.ParseParams(c)
	entries, err := h.ledger.Leaderboard(c.Request.Context(), params.Limit)
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}

	common.SuccessResponse(c, entries)
}
