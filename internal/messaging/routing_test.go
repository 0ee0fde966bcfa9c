package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/healthmesh/agent-coordination/internal/models"
)

func TestRoutingKeyFor(t *testing.T) {
	cases := []struct {
		event string
		want  string
	}{
		{models.EventMealLogged, "meal.logged"},
		{models.EventMealPlanned, "meal.planned"},
		{models.EventWorkoutCompleted, "workout.completed"},
		{models.EventMoodAnalyzed, "mood.analyzed"},
		{models.EventNutritionUpdated, "nutrition.updated"},
		{models.EventBMICalculated, "bmi.calculated"},
		{models.EventDailySummary, "summary.daily"},
		{"hydration_reminder", "hydration.reminder"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RoutingKeyFor(tc.event, "u1"), tc.event)
	}
}

func TestRoutingKeyForCrisisCarriesUserSuffix(t *testing.T) {
	assert.Equal(t, "crisis.alert.user42", RoutingKeyFor(models.EventCrisisAlert, "user42"))
}
