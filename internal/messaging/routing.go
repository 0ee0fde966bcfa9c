package messaging

import (
	"strings"

	"github.com/healthmesh/agent-coordination/internal/models"
)

// RoutingKeyFor maps an event name to its topic routing key. Crisis alerts
// carry a per-user suffix for targeted bindings.
func RoutingKeyFor(eventName, userID string) string {
	switch eventName {
	case models.EventMealLogged:
		return "meal.logged"
	case models.EventMealPlanned:
		return "meal.planned"
	case models.EventWorkoutCompleted:
		return "workout.completed"
	case models.EventMoodAnalyzed:
		return "mood.analyzed"
	case models.EventCrisisAlert:
		return "crisis.alert." + userID
	case models.EventNutritionUpdated:
		return "nutrition.updated"
	case models.EventBMICalculated:
		return "bmi.calculated"
	case models.EventDailySummary:
		return "summary.daily"
	default:
		// Fallback keeps unknown events routable under their own family.
		return strings.ReplaceAll(eventName, "_", ".")
	}
}
