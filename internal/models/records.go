package models

import "time"

// Recommendation types produced by the recalculation engine.
const (
	RecommendationWorkout   = "workout_suggestion"
	RecommendationNutrition = "nutrition_suggestion"
	RecommendationWellness  = "wellness_suggestion"
)

// RecommendationPayload carries the derived targets. All values are clamped
// to zero or above before the record is persisted.
type RecommendationPayload struct {
	WorkoutType     string  `bson:"workout_type,omitempty" json:"workout_type,omitempty"`
	Intensity       string  `bson:"intensity,omitempty" json:"intensity,omitempty"`
	DurationMinutes int     `bson:"duration_minutes,omitempty" json:"duration_minutes,omitempty"`
	EstimatedBurn   float64 `bson:"estimated_burn,omitempty" json:"estimated_burn,omitempty"`
	CalorieTarget   float64 `bson:"calorie_target,omitempty" json:"calorie_target,omitempty"`
	ProteinG        float64 `bson:"protein_g,omitempty" json:"protein_g,omitempty"`
	WaterML         float64 `bson:"water_ml,omitempty" json:"water_ml,omitempty"`
	Guidance        string  `bson:"guidance,omitempty" json:"guidance,omitempty"`
}

// Recommendation is immutable once created; a later recommendation for the
// same user supersedes it instead of mutating it.
type Recommendation struct {
	ID            string                `bson:"_id" json:"id"`
	TargetUserID  string                `bson:"target_user_id" json:"target_user_id"`
	SourceEventID string                `bson:"source_event_id" json:"source_event_id"`
	Type          string                `bson:"recommendation_type" json:"recommendation_type"`
	Payload       RecommendationPayload `bson:"payload" json:"payload"`
	GeneratedAt   time.Time             `bson:"generated_at" json:"generated_at"`
}

// Notification is a user-facing record appended to the per-user log.
type Notification struct {
	UserID    string            `bson:"user_id" json:"user_id"`
	Title     string            `bson:"title" json:"title"`
	Message   string            `bson:"message" json:"message"`
	Type      string            `bson:"type" json:"type"`
	Priority  uint8             `bson:"priority,omitempty" json:"priority,omitempty"`
	Data      map[string]string `bson:"data,omitempty" json:"data,omitempty"`
	CreatedAt time.Time         `bson:"created_at" json:"created_at"`
}

// UserProfile is the read-only snapshot the engine works from.
type UserProfile struct {
	UserID        string  `bson:"user_id" json:"user_id"`
	DailyTarget   float64 `bson:"daily_target" json:"daily_target"`
	ActivityLevel string  `bson:"activity_level" json:"activity_level"`
	Goal          string  `bson:"goal" json:"goal"`
}

// DailyTotals is the per-user per-day cumulative intake/burn document.
// Concurrent updates are resolved with atomic increments at the store.
type DailyTotals struct {
	UserID         string   `bson:"user_id" json:"user_id"`
	Date           string   `bson:"date" json:"date"`
	IntakeCalories float64  `bson:"intake_calories" json:"intake_calories"`
	BurntCalories  float64  `bson:"burnt_calories" json:"burnt_calories"`
	ProteinG       float64  `bson:"protein_g" json:"protein_g"`
	CarbsG         float64  `bson:"carbs_g" json:"carbs_g"`
	FatG           float64  `bson:"fat_g" json:"fat_g"`
	AppliedEvents  []string `bson:"applied_events,omitempty" json:"applied_events,omitempty"`
}

// MealLog is the domain record written before the meal_logged event is published.
type MealLog struct {
	ID       string    `bson:"_id" json:"id"`
	UserID   string    `bson:"user_id" json:"user_id"`
	Name     string    `bson:"name" json:"name"`
	Calories float64   `bson:"calories" json:"calories"`
	Protein  float64   `bson:"protein" json:"protein"`
	Carbs    float64   `bson:"carbs" json:"carbs"`
	Fat      float64   `bson:"fat" json:"fat"`
	MealTime string    `bson:"meal_time" json:"meal_time"`
	LoggedAt time.Time `bson:"logged_at" json:"logged_at"`
}

// WorkoutLog is the domain record written before workout_completed is published.
type WorkoutLog struct {
	ID            string    `bson:"_id" json:"id"`
	UserID        string    `bson:"user_id" json:"user_id"`
	WorkoutType   string    `bson:"workout_type" json:"workout_type"`
	CaloriesBurnt float64   `bson:"calories_burnt" json:"calories_burnt"`
	DurationMin   float64   `bson:"duration_min" json:"duration_min"`
	Intensity     string    `bson:"intensity" json:"intensity"`
	CompletedAt   time.Time `bson:"completed_at" json:"completed_at"`
}
