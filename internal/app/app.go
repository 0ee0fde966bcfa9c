package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/healthmesh/agent-coordination/internal/config"
	"github.com/healthmesh/agent-coordination/internal/engine"
	"github.com/healthmesh/agent-coordination/internal/handlers"
	"github.com/healthmesh/agent-coordination/internal/messaging"
	"github.com/healthmesh/agent-coordination/internal/models"
	"github.com/healthmesh/agent-coordination/internal/repository"
	"github.com/healthmesh/agent-coordination/internal/routes"
	"github.com/healthmesh/agent-coordination/internal/services"
	"github.com/healthmesh/agent-coordination/pkg/logger"
	"github.com/healthmesh/agent-coordination/pkg/metrics"
	"github.com/healthmesh/agent-coordination/pkg/rabbitmq"
)

// Run is the shared composition root for the mirrored agent services. All
// clients are owned here and passed down by injection; nothing holds global
// connection state.
func Run(serviceName string) {
	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logr := logger.New(cfg.LogLevel).With(slog.String("service", serviceName))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Document store
	store, mongoClient, err := repository.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		logr.Error("failed to connect to MongoDB", slog.Any("error", err))
		os.Exit(1)
	}
	defer mongoClient.Disconnect(context.Background())
	if err := store.EnsureIndexes(ctx); err != nil {
		logr.Error("failed to ensure indexes", slog.Any("error", err))
		os.Exit(1)
	}

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
	})
	defer redisClient.Close()
	redisRepo := repository.NewRedisRepository(redisClient)

	metricsCollector := metrics.New()

	// RabbitMQ connection and topology. A conflicting re-declare is a fatal
	// startup error, never retried.
	mqManager, err := rabbitmq.NewManager(cfg.RabbitMQURL, logr)
	if err != nil {
		logr.Error("failed to connect to RabbitMQ", slog.Any("error", err))
		os.Exit(1)
	}
	defer mqManager.Close()

	publishTopology, consumeTopology := Topologies(cfg)
	for _, spec := range []rabbitmq.TopologySpec{publishTopology, consumeTopology} {
		if err := mqManager.DeclareEventTopology(spec); err != nil {
			logr.Error("failed to declare rabbitmq topology",
				slog.String("exchange", spec.Exchange),
				slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Messaging components
	codec := messaging.NewCodec(serviceName + "-agent")
	publisher := messaging.NewPublisher(mqManager, codec, publishTopology, logr, metricsCollector)
	dispatcher := messaging.NewDispatcher(mqManager, codec, consumeTopology, logr, metricsCollector)

	// Collaborators and engine
	var advice engine.AdvicePort
	if cfg.AdviceServiceURL != "" {
		advice = services.NewAdviceClient(cfg.AdviceServiceURL)
	}
	notifier := services.NewNotifier(store, logr)
	recalc := engine.New(store, store, notifier, advice, logr)

	registerHandlers(serviceName, dispatcher, recalc)

	// Supervised background consumption: Run reconnects with backoff until
	// the context is canceled, and its state feeds the status endpoint.
	go dispatcher.Run(ctx)

	// HTTP surface
	idempotencyService := services.NewIdempotencyService(redisRepo)
	var nutrition handlers.NutritionLookup
	if cfg.NutritionServiceURL != "" {
		nutrition = services.NewNutritionClient(cfg.NutritionServiceURL, redisRepo, cfg.NutritionCacheTTL)
	}
	messagingHandler := handlers.NewMessagingHandler(idempotencyService, publisher, store, nutrition, dispatcher, logr)
	recommendationHandler := handlers.NewRecommendationHandler(store)
	profileHandler := handlers.NewProfileHandler(store)

	router := gin.Default()
	router.Use(metricsCollector.GinMiddleware())
	router.GET("/metrics", gin.WrapH(metricsCollector.Handler()))
	routes.SetupRoutes(router, serviceName, messagingHandler, recommendationHandler, profileHandler, store, redisRepo)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Error("server listen failed", slog.Any("error", err))
		}
	}()
	logr.Info("agent started",
		slog.String("port", cfg.Port),
		slog.String("publish_exchange", publishTopology.Exchange),
		slog.String("consume_exchange", consumeTopology.Exchange))

	<-ctx.Done()
	logr.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server forced to shutdown", slog.Any("error", err))
	}

	logr.Info("server exiting")
}

// registerHandlers wires the inbound event handlers for one direction of
// the mirror. The registry is resolved once at startup.
func registerHandlers(serviceName string, dispatcher *messaging.Dispatcher, recalc *engine.Engine) {
	switch serviceName {
	case "fitness":
		dispatcher.Register(models.EventMealLogged, recalc.OnMealLogged)
		dispatcher.Register(models.EventMoodAnalyzed, recalc.OnMoodAnalyzed)
		dispatcher.Register(models.EventCrisisAlert, recalc.OnCrisisAlert)
	default: // diet
		dispatcher.Register(models.EventWorkoutCompleted, recalc.OnWorkoutCompleted)
	}
}
