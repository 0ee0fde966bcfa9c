package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/healthmesh/agent-coordination/internal/models"
)

// ProfileStore is the write side of the user profile snapshot.
type ProfileStore interface {
	UpsertProfile(ctx context.Context, profile *models.UserProfile) error
}

// ProfileHandler serves the profile upsert endpoint.
type ProfileHandler struct {
	store ProfileStore
}

func NewProfileHandler(store ProfileStore) *ProfileHandler {
	return &ProfileHandler{store: store}
}

// Upsert stores or replaces the user's profile. The recalculation engine
// reads this snapshot for its calorie target on the next event.
func (h *ProfileHandler) Upsert(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		respondError(c, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	var req models.ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	profile := &models.UserProfile{
		UserID:        userID,
		DailyTarget:   req.DailyTarget,
		ActivityLevel: req.ActivityLevel,
		Goal:          req.Goal,
	}
	if err := h.store.UpsertProfile(c, profile); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to save profile", err)
		return
	}
	respondSuccess(c, http.StatusOK, "profile saved", profile)
}
