package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/healthmesh/agent-coordination/internal/messaging"
	"github.com/healthmesh/agent-coordination/internal/models"
)

// defaultDailyTarget is the baseline calorie budget used when a user has no
// stored profile; a missing profile never fails the handler.
const defaultDailyTarget = 2000

// Protein guidance factors per workout intensity (grams derived from the
// calorie share at 4 kcal per gram).
var proteinFactors = map[string]float64{
	IntensityHigh:     0.4,
	IntensityModerate: 0.3,
}

const proteinFactorDefault = 0.2

// ProfileStore is the read side of the user document store the engine
// consults at handler-invocation time.
type ProfileStore interface {
	// GetProfile returns nil without error when the user has no profile.
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	// GetDailyTotals returns zero totals without error when no document exists.
	GetDailyTotals(ctx context.Context, userID, date string) (*models.DailyTotals, error)
	// AddIntake and AddBurn apply a non-empty eventID at most once, so a
	// redelivered event does not inflate the day's totals.
	AddIntake(ctx context.Context, userID, date, eventID string, card *models.MealCard) error
	AddBurn(ctx context.Context, userID, date, eventID string, card *models.WorkoutCard) error
}

// RecommendationStore persists engine output. Records are insert-only.
type RecommendationStore interface {
	SaveRecommendation(ctx context.Context, rec *models.Recommendation) error
}

// Notifier turns a recommendation into a user-facing notification. Best
// effort: a false return is logged, never propagated.
type Notifier interface {
	Notify(ctx context.Context, n *models.Notification) bool
}

// AdvicePort is the black-box LLM advice collaborator. Optional and best
// effort; a failure leaves the recommendation's guidance empty.
type AdvicePort interface {
	GenerateAdvice(ctx context.Context, topic string, facts map[string]string) (string, error)
}

// Engine converts incoming cross-agent events into derived recommendations.
// All computation is parameterized by a read-only profile snapshot; shared
// daily totals are updated with atomic increments at the store.
type Engine struct {
	profiles ProfileStore
	recs     RecommendationStore
	notifier Notifier
	advice   AdvicePort
	logger   *slog.Logger
	now      func() time.Time
}

func New(profiles ProfileStore, recs RecommendationStore, notifier Notifier, advice AdvicePort, logger *slog.Logger) *Engine {
	return &Engine{
		profiles: profiles,
		recs:     recs,
		notifier: notifier,
		advice:   advice,
		logger:   logger,
		now:      time.Now,
	}
}

// OnMealLogged recomputes the workout recommendation after a meal. The
// remaining calorie budget selects an intensity bucket, and a template from
// that bucket is scaled so its estimated burn approximates the remainder.
func (e *Engine) OnMealLogged(ctx context.Context, env *models.Envelope) error {
	card, err := env.MealCard()
	if err != nil {
		return fmt.Errorf("decode meal card: %w", err)
	}

	date := e.today()
	eventID := messaging.MessageIDFrom(ctx)
	target := e.dailyTarget(ctx, env.UserID)
	totals, err := e.profiles.GetDailyTotals(ctx, env.UserID, date)
	if err != nil {
		return fmt.Errorf("fetch daily totals: %w", err)
	}
	var before float64
	if totals != nil {
		before = totals.IntakeCalories
	}

	intake := clampNonNegative(card.CalorieCount)
	if err := e.profiles.AddIntake(ctx, env.UserID, date, eventID, card); err != nil {
		return fmt.Errorf("update daily totals: %w", err)
	}

	remaining := target - (before + intake)
	bucket := bucketFor(remaining)
	tpl := pickTemplate(bucket, env.UserID, date)
	duration := scaleDuration(clampNonNegative(remaining), tpl.CaloriesPerMinute)

	rec := &models.Recommendation{
		ID:            uuid.NewString(),
		TargetUserID:  env.UserID,
		SourceEventID: eventID,
		Type:          models.RecommendationWorkout,
		Payload: models.RecommendationPayload{
			WorkoutType:     tpl.WorkoutType,
			Intensity:       tpl.Intensity,
			DurationMinutes: duration,
			EstimatedBurn:   float64(duration) * tpl.CaloriesPerMinute,
			CalorieTarget:   clampNonNegative(remaining),
		},
		GeneratedAt: e.now().UTC(),
	}
	e.enrichGuidance(ctx, rec, map[string]string{
		"meal":      card.Name,
		"remaining": fmt.Sprintf("%.0f", clampNonNegative(remaining)),
		"workout":   tpl.WorkoutType,
	})

	if err := e.recs.SaveRecommendation(ctx, rec); err != nil {
		return fmt.Errorf("persist recommendation: %w", err)
	}
	e.dispatch(ctx, rec, "Workout suggestion",
		fmt.Sprintf("After %s you have %.0f kcal left today. Try %d min of %s.",
			card.Name, clampNonNegative(remaining), duration, tpl.WorkoutType), 0)
	return nil
}

// OnWorkoutCompleted recomputes nutrition guidance after a workout: a raised
// calorie allowance plus protein and hydration targets scaled by the burn.
func (e *Engine) OnWorkoutCompleted(ctx context.Context, env *models.Envelope) error {
	card, err := env.WorkoutCard()
	if err != nil {
		return fmt.Errorf("decode workout card: %w", err)
	}

	date := e.today()
	eventID := messaging.MessageIDFrom(ctx)
	if err := e.profiles.AddBurn(ctx, env.UserID, date, eventID, card); err != nil {
		return fmt.Errorf("update daily totals: %w", err)
	}

	burnt := clampNonNegative(card.CaloriesBurnt)
	base := e.dailyTarget(ctx, env.UserID)
	factor, ok := proteinFactors[card.Intensity]
	if !ok {
		factor = proteinFactorDefault
	}

	rec := &models.Recommendation{
		ID:            uuid.NewString(),
		TargetUserID:  env.UserID,
		SourceEventID: eventID,
		Type:          models.RecommendationNutrition,
		Payload: models.RecommendationPayload{
			CalorieTarget: base + burnt,
			ProteinG:      factor * burnt / 4,
			WaterML:       1.5 * burnt,
			Intensity:     card.Intensity,
		},
		GeneratedAt: e.now().UTC(),
	}
	e.enrichGuidance(ctx, rec, map[string]string{
		"workout":   card.WorkoutType,
		"burnt":     fmt.Sprintf("%.0f", burnt),
		"intensity": card.Intensity,
	})

	if err := e.recs.SaveRecommendation(ctx, rec); err != nil {
		return fmt.Errorf("persist recommendation: %w", err)
	}
	e.dispatch(ctx, rec, "Refuel guidance",
		fmt.Sprintf("Nice %s session. Aim for %.0f g protein and %.0f ml water; today's allowance is now %.0f kcal.",
			card.WorkoutType, rec.Payload.ProteinG, rec.Payload.WaterML, rec.Payload.CalorieTarget), 0)
	return nil
}

// OnMoodAnalyzed turns a mood event into light wellness guidance. High risk
// levels get a gentler activity suggestion rather than a training push.
func (e *Engine) OnMoodAnalyzed(ctx context.Context, env *models.Envelope) error {
	card, err := env.MoodCard()
	if err != nil {
		return fmt.Errorf("decode mood card: %w", err)
	}

	guidance := "A short walk or stretch can help keep the momentum going."
	if card.RiskLevel == "high" {
		guidance = "Take it easy today. Gentle movement and rest come first."
	}
	rec := &models.Recommendation{
		ID:            uuid.NewString(),
		TargetUserID:  env.UserID,
		SourceEventID: messaging.MessageIDFrom(ctx),
		Type:          models.RecommendationWellness,
		Payload: models.RecommendationPayload{
			Guidance:  guidance,
			Intensity: IntensityLight,
		},
		GeneratedAt: e.now().UTC(),
	}
	if err := e.recs.SaveRecommendation(ctx, rec); err != nil {
		return fmt.Errorf("persist recommendation: %w", err)
	}
	e.dispatch(ctx, rec, "Wellness check-in", guidance, 0)
	return nil
}

// OnCrisisAlert dispatches a maximum-priority notification. No
// recommendation is derived from a crisis event.
func (e *Engine) OnCrisisAlert(ctx context.Context, env *models.Envelope) error {
	card, err := env.CrisisCard()
	if err != nil {
		return fmt.Errorf("decode crisis card: %w", err)
	}

	n := &models.Notification{
		UserID:    env.UserID,
		Title:     "Support available",
		Message:   "We noticed you might be struggling. Reaching out to someone you trust can help.",
		Type:      "crisis_alert",
		Priority:  models.CrisisPriority,
		Data:      map[string]string{"risk_level": card.RiskLevel},
		CreatedAt: e.now().UTC(),
	}
	if !e.notifier.Notify(ctx, n) {
		return fmt.Errorf("crisis notification not delivered for user %s", env.UserID)
	}
	return nil
}

func (e *Engine) dailyTarget(ctx context.Context, userID string) float64 {
	profile, err := e.profiles.GetProfile(ctx, userID)
	if err != nil {
		e.logger.Warn("profile lookup failed, using defaults",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return defaultDailyTarget
	}
	if profile == nil || profile.DailyTarget <= 0 {
		return defaultDailyTarget
	}
	return profile.DailyTarget
}

// dispatch sends the user-facing notification for a persisted
// recommendation. Failures are logged; the recommendation record is already
// authoritative.
func (e *Engine) dispatch(ctx context.Context, rec *models.Recommendation, title, message string, priority uint8) {
	n := &models.Notification{
		UserID:    rec.TargetUserID,
		Title:     title,
		Message:   message,
		Type:      rec.Type,
		Priority:  priority,
		Data:      map[string]string{"recommendation_id": rec.ID},
		CreatedAt: e.now().UTC(),
	}
	if !e.notifier.Notify(ctx, n) {
		e.logger.Warn("notification dispatch failed",
			slog.String("user_id", rec.TargetUserID),
			slog.String("recommendation_id", rec.ID))
	}
}

func (e *Engine) enrichGuidance(ctx context.Context, rec *models.Recommendation, facts map[string]string) {
	if e.advice == nil {
		return
	}
	text, err := e.advice.GenerateAdvice(ctx, rec.Type, facts)
	if err != nil {
		e.logger.Debug("advice generation unavailable", slog.Any("error", err))
		return
	}
	rec.Payload.Guidance = text
}

func (e *Engine) today() string {
	return e.now().UTC().Format("2006-01-02")
}
