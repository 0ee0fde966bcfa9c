package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/healthmesh/agent-coordination/internal/models"
)

// RecommendationStore is the read side the endpoints serve from.
type RecommendationStore interface {
	LatestRecommendation(ctx context.Context, userID string) (*models.Recommendation, error)
	ListNotifications(ctx context.Context, userID string, limit int64) ([]models.Notification, error)
}

// RecommendationHandler serves the derived-recommendation read endpoints.
type RecommendationHandler struct {
	store RecommendationStore
}

func NewRecommendationHandler(store RecommendationStore) *RecommendationHandler {
	return &RecommendationHandler{store: store}
}

// Latest returns the newest recommendation for a user.
func (h *RecommendationHandler) Latest(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		respondError(c, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	rec, err := h.store.LatestRecommendation(c, userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to fetch recommendation", err)
		return
	}
	if rec == nil {
		respondError(c, http.StatusNotFound, "no recommendation for user", nil)
		return
	}
	respondSuccess(c, http.StatusOK, "latest recommendation", rec)
}

// Notifications lists the newest notifications for a user.
func (h *RecommendationHandler) Notifications(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		respondError(c, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	items, err := h.store.ListNotifications(c, userID, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list notifications", err)
		return
	}
	respondSuccess(c, http.StatusOK, "notifications", items)
}
