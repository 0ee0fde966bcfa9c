package models

import "errors"

// MealLoggedRequest is the HTTP trigger for publishing a meal_logged event.
type MealLoggedRequest struct {
	RequestID string  `json:"request_id" binding:"omitempty,uuid4"`
	UserID    string  `json:"user_id" binding:"required"`
	Name      string  `json:"name" binding:"required"`
	Calories  float64 `json:"calorie_count"`
	Protein   float64 `json:"protein"`
	Carbs     float64 `json:"carbs"`
	Fat       float64 `json:"fat"`
	MealTime  string  `json:"meal_time"`
	Portion   float64 `json:"portion,omitempty"`
}

// Normalize fills defaults and rejects inputs the publisher cannot use.
func (r *MealLoggedRequest) Normalize() error {
	if r.UserID == "" {
		return errors.New("user_id is required")
	}
	if r.MealTime == "" {
		r.MealTime = "unspecified"
	}
	if r.Calories < 0 {
		return errors.New("calorie_count cannot be negative")
	}
	return nil
}

// CrisisAlertRequest is the HTTP trigger for publishing a crisis_alert event.
type CrisisAlertRequest struct {
	RequestID        string   `json:"request_id" binding:"omitempty,uuid4"`
	UserID           string   `json:"user_id" binding:"required"`
	RiskLevel        string   `json:"risk_level" binding:"required,oneof=low moderate high"`
	DetectedKeywords []string `json:"detected_keywords"`
}

// ProfileRequest updates the profile snapshot the recalculation engine
// reads its calorie target from.
type ProfileRequest struct {
	DailyTarget   float64 `json:"daily_target" binding:"required,gt=0"`
	ActivityLevel string  `json:"activity_level"`
	Goal          string  `json:"goal"`
}

// WorkoutCompletedRequest is the HTTP trigger for publishing a workout_completed event.
type WorkoutCompletedRequest struct {
	RequestID     string  `json:"request_id" binding:"omitempty,uuid4"`
	UserID        string  `json:"user_id" binding:"required"`
	WorkoutType   string  `json:"workout_type" binding:"required"`
	CaloriesBurnt float64 `json:"calories_burnt"`
	DurationMin   float64 `json:"exercise_duration"`
	Intensity     string  `json:"intensity" binding:"omitempty,oneof=low moderate high"`
}

// Normalize fills defaults and rejects inputs the publisher cannot use.
func (r *WorkoutCompletedRequest) Normalize() error {
	if r.UserID == "" {
		return errors.New("user_id is required")
	}
	if r.Intensity == "" {
		r.Intensity = "moderate"
	}
	if r.CaloriesBurnt < 0 {
		return errors.New("calories_burnt cannot be negative")
	}
	return nil
}
