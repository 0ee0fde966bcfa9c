package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"

	"github.com/healthmesh/agent-coordination/internal/handlers"
	"github.com/healthmesh/agent-coordination/internal/middleware"
	"github.com/healthmesh/agent-coordination/internal/repository"
)

// SetupRoutes configures the HTTP surface for one agent service. The
// messaging triggers sit behind auth, rate limiting, and a circuit breaker;
// health and connection-status stay open for probes. Each agent mounts only
// the triggers whose events its outbound exchange can route.
func SetupRoutes(
	router *gin.Engine,
	serviceName string,
	messagingHandler *handlers.MessagingHandler,
	recommendationHandler *handlers.RecommendationHandler,
	profileHandler *handlers.ProfileHandler,
	store handlers.StorePinger,
	redisRepo *repository.RedisRepository,
) {
	router.Use(middleware.CorrelationIDMiddleware())

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{})

	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware())
	api.Use(middleware.RateLimitMiddleware(redisRepo, 100, time.Minute))
	api.Use(middleware.CircuitBreakerMiddleware(cb))
	{
		msg := api.Group("/messaging")
		{
			switch serviceName {
			case "fitness":
				msg.POST("/fitness/workout-completed", messagingHandler.WorkoutCompleted)
			default: // diet
				msg.POST("/diet/meal-logged", messagingHandler.MealLogged)
				msg.POST("/diet/crisis-alert", messagingHandler.CrisisAlert)
			}
		}

		api.PUT("/profiles/:user_id", profileHandler.Upsert)
		api.GET("/recommendations/:user_id/latest", recommendationHandler.Latest)
		api.GET("/notifications/:user_id", recommendationHandler.Notifications)
	}

	// Status endpoints stay outside the auth chain for probes and dashboards.
	router.GET("/api/messaging/connection-status", messagingHandler.ConnectionStatus)
	router.GET("/health", handlers.HealthCheck(serviceName+"-agent", store))
}
