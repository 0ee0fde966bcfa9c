package models

import "encoding/json"

// Event names carried in the envelope. Routing keys are derived from these.
const (
	EventMealLogged       = "meal_logged"
	EventMealPlanned      = "meal_planned"
	EventWorkoutCompleted = "workout_completed"
	EventMoodAnalyzed     = "mood_analyzed"
	EventCrisisAlert      = "crisis_alert"
	EventNutritionUpdated = "nutrition_updated"
	EventBMICalculated    = "bmi_calculated"
	EventDailySummary     = "daily_summary"
)

// CrisisPriority is the AMQP message priority used for crisis alerts so they
// jump queue ordering on priority-capable queues.
const CrisisPriority = 255

// Envelope is the canonical wire-format wrapper around every published event.
// SummaryCard stays raw at decode time; handlers decode the event-specific
// shape themselves so new fields never break older consumers.
type Envelope struct {
	EventName   string          `json:"event_name"`
	UserID      string          `json:"user_id"`
	Timestamp   string          `json:"timestamp"`
	Source      string          `json:"source,omitempty"`
	SummaryCard json.RawMessage `json:"summary_card"`
	Priority    uint8           `json:"priority"`
}

// MealCard is the summary card for meal_logged / meal_planned events.
type MealCard struct {
	CalorieCount float64 `json:"calorieCount"`
	Protein      float64 `json:"protein"`
	Carbs        float64 `json:"carbs"`
	Fat          float64 `json:"fat"`
	MealTime     string  `json:"mealTime"`
	Name         string  `json:"name"`
}

// WorkoutCard is the summary card for workout_completed events.
type WorkoutCard struct {
	CaloriesBurnt    float64 `json:"caloriesBurnt"`
	ExerciseDuration float64 `json:"exerciseDuration"`
	WorkoutType      string  `json:"workoutType"`
	Intensity        string  `json:"intensity"`
}

// MoodCard is the summary card for mood_analyzed events.
type MoodCard struct {
	Mood       string  `json:"mood"`
	Confidence float64 `json:"confidence"`
	RiskLevel  string  `json:"riskLevel"`
}

// CrisisCard is the summary card for crisis_alert events.
type CrisisCard struct {
	RiskLevel        string   `json:"riskLevel"`
	DetectedKeywords []string `json:"detectedKeywords"`
}

// MealCard decodes the summary card as a meal card.
func (e *Envelope) MealCard() (*MealCard, error) {
	var card MealCard
	if err := json.Unmarshal(e.SummaryCard, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// WorkoutCard decodes the summary card as a workout card.
func (e *Envelope) WorkoutCard() (*WorkoutCard, error) {
	var card WorkoutCard
	if err := json.Unmarshal(e.SummaryCard, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// MoodCard decodes the summary card as a mood card.
func (e *Envelope) MoodCard() (*MoodCard, error) {
	var card MoodCard
	if err := json.Unmarshal(e.SummaryCard, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// CrisisCard decodes the summary card as a crisis card.
func (e *Envelope) CrisisCard() (*CrisisCard, error) {
	var card CrisisCard
	if err := json.Unmarshal(e.SummaryCard, &card); err != nil {
		return nil, err
	}
	return &card, nil
}
