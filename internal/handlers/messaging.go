package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/healthmesh/agent-coordination/internal/models"
	"github.com/healthmesh/agent-coordination/pkg/rabbitmq"
)

// EventPublisher is the subset of publisher behavior the handlers need.
type EventPublisher interface {
	Publish(eventName, userID string, card interface{}, priority uint8) (string, error)
	PublishCrisis(userID string, card *models.CrisisCard) (string, error)
	Exchange() string
	QueueFor(eventName, userID string) string
}

// IdempotencyGuard deduplicates trigger requests by request id. A claim made
// for a request that then fails must be released so a client retry is
// processed instead of reported as a duplicate.
type IdempotencyGuard interface {
	IsDuplicate(ctx context.Context, requestID string) (bool, error)
	Release(ctx context.Context, requestID string) error
}

// DomainStore is the domain-write side the trigger endpoints commit to
// before publishing. The publish outcome never rolls these writes back.
type DomainStore interface {
	SaveMealLog(ctx context.Context, log *models.MealLog) error
	SaveWorkoutLog(ctx context.Context, log *models.WorkoutLog) error
}

// NutritionLookup resolves food name and portion into macro totals.
type NutritionLookup interface {
	Lookup(ctx context.Context, food string, portion float64) (*models.NutritionFacts, error)
}

// ConnectionReporter exposes consumer liveness for the status endpoint.
type ConnectionReporter interface {
	Connected() bool
	State() string
	Topology() rabbitmq.TopologySpec
}

// MessagingHandler owns the HTTP triggers that feed the publisher.
type MessagingHandler struct {
	idempotency IdempotencyGuard
	publisher   EventPublisher
	store       DomainStore
	nutrition   NutritionLookup
	consumer    ConnectionReporter
	logger      *slog.Logger
}

func NewMessagingHandler(
	idempotency IdempotencyGuard,
	publisher EventPublisher,
	store DomainStore,
	nutrition NutritionLookup,
	consumer ConnectionReporter,
	logger *slog.Logger,
) *MessagingHandler {
	return &MessagingHandler{
		idempotency: idempotency,
		publisher:   publisher,
		store:       store,
		nutrition:   nutrition,
		consumer:    consumer,
		logger:      logger,
	}
}

// MealLogged persists the meal log, then publishes a meal_logged event for
// the fitness agent. A publish failure surfaces as 502 but the meal log
// stays committed.
func (h *MessagingHandler) MealLogged(c *gin.Context) {
	var req models.MealLoggedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	if err := req.Normalize(); err != nil {
		respondValidationError(c, err)
		return
	}

	if isDuplicate, err := h.idempotency.IsDuplicate(c, req.RequestID); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to check idempotency", err)
		return
	} else if isDuplicate {
		respondSuccess(c, http.StatusOK, "duplicate request", gin.H{
			"request_id": req.RequestID,
		})
		return
	}

	// Enrich macros from the nutrition service when the caller only sent a
	// food name. Best effort; the meal is still logged with what we have.
	if req.Calories == 0 && h.nutrition != nil {
		if facts, err := h.nutrition.Lookup(c, req.Name, req.Portion); err == nil {
			req.Calories = facts.Calories
			req.Protein = facts.Protein
			req.Carbs = facts.Carbs
			req.Fat = facts.Fat
		} else {
			h.logger.Warn("nutrition lookup failed",
				slog.String("food", req.Name),
				slog.Any("error", err))
		}
	}

	mealLog := &models.MealLog{
		ID:       uuid.NewString(),
		UserID:   req.UserID,
		Name:     req.Name,
		Calories: req.Calories,
		Protein:  req.Protein,
		Carbs:    req.Carbs,
		Fat:      req.Fat,
		MealTime: req.MealTime,
		LoggedAt: time.Now().UTC(),
	}
	if err := h.store.SaveMealLog(c, mealLog); err != nil {
		h.releaseClaim(c, req.RequestID)
		respondError(c, http.StatusInternalServerError, "failed to save meal log", err)
		return
	}

	card := &models.MealCard{
		CalorieCount: req.Calories,
		Protein:      req.Protein,
		Carbs:        req.Carbs,
		Fat:          req.Fat,
		MealTime:     req.MealTime,
		Name:         req.Name,
	}
	messageID, err := h.publisher.Publish(models.EventMealLogged, req.UserID, card, 0)
	if err != nil {
		// The meal log is already committed; only the cross-agent event is
		// lost. Releasing the claim lets the client retry with the same id.
		h.releaseClaim(c, req.RequestID)
		respondError(c, http.StatusBadGateway, "meal logged but event publish failed", err)
		return
	}

	respondSuccess(c, http.StatusAccepted, "meal logged and event published", models.PublishResult{
		MessageID: messageID,
		Queue:     h.publisher.QueueFor(models.EventMealLogged, req.UserID),
		Exchange:  h.publisher.Exchange(),
	})
}

// WorkoutCompleted persists the workout log, then publishes a
// workout_completed event for the diet agent.
func (h *MessagingHandler) WorkoutCompleted(c *gin.Context) {
	var req models.WorkoutCompletedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	if err := req.Normalize(); err != nil {
		respondValidationError(c, err)
		return
	}

	if isDuplicate, err := h.idempotency.IsDuplicate(c, req.RequestID); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to check idempotency", err)
		return
	} else if isDuplicate {
		respondSuccess(c, http.StatusOK, "duplicate request", gin.H{
			"request_id": req.RequestID,
		})
		return
	}

	workoutLog := &models.WorkoutLog{
		ID:            uuid.NewString(),
		UserID:        req.UserID,
		WorkoutType:   req.WorkoutType,
		CaloriesBurnt: req.CaloriesBurnt,
		DurationMin:   req.DurationMin,
		Intensity:     req.Intensity,
		CompletedAt:   time.Now().UTC(),
	}
	if err := h.store.SaveWorkoutLog(c, workoutLog); err != nil {
		h.releaseClaim(c, req.RequestID)
		respondError(c, http.StatusInternalServerError, "failed to save workout log", err)
		return
	}

	card := &models.WorkoutCard{
		CaloriesBurnt:    req.CaloriesBurnt,
		ExerciseDuration: req.DurationMin,
		WorkoutType:      req.WorkoutType,
		Intensity:        req.Intensity,
	}
	messageID, err := h.publisher.Publish(models.EventWorkoutCompleted, req.UserID, card, 0)
	if err != nil {
		h.releaseClaim(c, req.RequestID)
		respondError(c, http.StatusBadGateway, "workout logged but event publish failed", err)
		return
	}

	respondSuccess(c, http.StatusAccepted, "workout logged and event published", models.PublishResult{
		MessageID: messageID,
		Queue:     h.publisher.QueueFor(models.EventWorkoutCompleted, req.UserID),
		Exchange:  h.publisher.Exchange(),
	})
}

// CrisisAlert publishes a crisis_alert event at maximum priority. No domain
// record is written here; the receiving agent owns the downstream handling.
func (h *MessagingHandler) CrisisAlert(c *gin.Context) {
	var req models.CrisisAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	if isDuplicate, err := h.idempotency.IsDuplicate(c, req.RequestID); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to check idempotency", err)
		return
	} else if isDuplicate {
		respondSuccess(c, http.StatusOK, "duplicate request", gin.H{
			"request_id": req.RequestID,
		})
		return
	}

	card := &models.CrisisCard{
		RiskLevel:        req.RiskLevel,
		DetectedKeywords: req.DetectedKeywords,
	}
	messageID, err := h.publisher.PublishCrisis(req.UserID, card)
	if err != nil {
		h.releaseClaim(c, req.RequestID)
		respondError(c, http.StatusBadGateway, "crisis event publish failed", err)
		return
	}

	respondSuccess(c, http.StatusAccepted, "crisis event published", models.PublishResult{
		MessageID: messageID,
		Queue:     h.publisher.QueueFor(models.EventCrisisAlert, req.UserID),
		Exchange:  h.publisher.Exchange(),
	})
}

// releaseClaim frees the idempotency claim after a failed trigger so the
// client's retry is processed instead of reported as a duplicate.
func (h *MessagingHandler) releaseClaim(c *gin.Context, requestID string) {
	if requestID == "" {
		return
	}
	if err := h.idempotency.Release(c, requestID); err != nil {
		h.logger.Warn("failed to release idempotency claim",
			slog.String("request_id", requestID),
			slog.Any("error", err))
	}
}

// ConnectionStatus reports broker connectivity and the topology in use.
func (h *MessagingHandler) ConnectionStatus(c *gin.Context) {
	topology := h.consumer.Topology()
	respondSuccess(c, http.StatusOK, "connection status", models.ConnectionStatus{
		Connected: h.consumer.Connected(),
		State:     h.consumer.State(),
		Exchange:  h.publisher.Exchange(),
		Queues:    topology.QueueNames(),
	})
}
