package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthmesh/agent-coordination/internal/handlers"
	"github.com/healthmesh/agent-coordination/internal/models"
	"github.com/healthmesh/agent-coordination/pkg/logger"
	"github.com/healthmesh/agent-coordination/pkg/rabbitmq"
)

const testRequestID = "aa97b177-9383-4934-8543-0f91a7a02836"

type fakeGuard struct {
	duplicate bool
	released  []string
}

func (f *fakeGuard) IsDuplicate(ctx context.Context, requestID string) (bool, error) {
	return f.duplicate && requestID != "", nil
}

func (f *fakeGuard) Release(ctx context.Context, requestID string) error {
	f.released = append(f.released, requestID)
	return nil
}

type fakePublisher struct {
	err       error
	published []string
}

func (f *fakePublisher) Publish(eventName, userID string, card interface{}, priority uint8) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.published = append(f.published, eventName)
	return "msg-123", nil
}

func (f *fakePublisher) PublishCrisis(userID string, card *models.CrisisCard) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.published = append(f.published, models.EventCrisisAlert)
	return "msg-123", nil
}

func (f *fakePublisher) Exchange() string { return "diet_to_fitness" }

func (f *fakePublisher) QueueFor(eventName, userID string) string { return "fitness.meal.queue" }

type fakeDomainStore struct {
	meals    []*models.MealLog
	workouts []*models.WorkoutLog
	err      error
}

func (f *fakeDomainStore) SaveMealLog(ctx context.Context, log *models.MealLog) error {
	if f.err != nil {
		return f.err
	}
	f.meals = append(f.meals, log)
	return nil
}

func (f *fakeDomainStore) SaveWorkoutLog(ctx context.Context, log *models.WorkoutLog) error {
	if f.err != nil {
		return f.err
	}
	f.workouts = append(f.workouts, log)
	return nil
}

type fakeReporter struct{ connected bool }

func (f *fakeReporter) Connected() bool { return f.connected }
func (f *fakeReporter) State() string {
	if f.connected {
		return "subscribed"
	}
	return "disconnected"
}
func (f *fakeReporter) Topology() rabbitmq.TopologySpec {
	return rabbitmq.TopologySpec{
		Exchange: "fitness_to_diet",
		Queues:   []rabbitmq.QueueSpec{{Name: "diet.workout.queue", BindingKey: "workout.#"}},
	}
}

func newTestRouter(guard *fakeGuard, publisher *fakePublisher, store *fakeDomainStore, reporter *fakeReporter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := handlers.NewMessagingHandler(guard, publisher, store, nil, reporter, logger.Discard())
	router := gin.New()
	router.POST("/api/messaging/diet/meal-logged", h.MealLogged)
	router.POST("/api/messaging/diet/crisis-alert", h.CrisisAlert)
	router.POST("/api/messaging/fitness/workout-completed", h.WorkoutCompleted)
	router.GET("/api/messaging/connection-status", h.ConnectionStatus)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, models.ResponseEnvelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var envelope models.ResponseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return w, envelope
}

func TestMealLoggedPublishes(t *testing.T) {
	publisher := &fakePublisher{}
	store := &fakeDomainStore{}
	router := newTestRouter(&fakeGuard{}, publisher, store, &fakeReporter{connected: true})

	w, envelope := doJSON(t, router, http.MethodPost, "/api/messaging/diet/meal-logged",
		`{"user_id":"u1","name":"Oatmeal Bowl","calorie_count":520,"protein":28,"carbs":65,"fat":18,"meal_time":"breakfast"}`)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, envelope.Success)

	data := envelope.Data.(map[string]interface{})
	assert.Equal(t, "msg-123", data["message_id"])
	assert.Equal(t, "fitness.meal.queue", data["queue"])
	assert.Equal(t, "diet_to_fitness", data["exchange"])

	require.Len(t, store.meals, 1)
	assert.Equal(t, 520.0, store.meals[0].Calories)
	assert.Equal(t, []string{models.EventMealLogged}, publisher.published)
}

func TestMealLoggedDuplicateRequest(t *testing.T) {
	guard := &fakeGuard{duplicate: true}
	publisher := &fakePublisher{}
	store := &fakeDomainStore{}
	router := newTestRouter(guard, publisher, store, &fakeReporter{})

	w, envelope := doJSON(t, router, http.MethodPost, "/api/messaging/diet/meal-logged",
		`{"request_id":"`+testRequestID+`","user_id":"u1","name":"Toast","calorie_count":200}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "duplicate request", envelope.Message)
	assert.Empty(t, store.meals)
	assert.Empty(t, publisher.published)
}

func TestMealLoggedPublishFailureKeepsDomainWrite(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("broker unreachable")}
	store := &fakeDomainStore{}
	router := newTestRouter(&fakeGuard{}, publisher, store, &fakeReporter{})

	w, envelope := doJSON(t, router, http.MethodPost, "/api/messaging/diet/meal-logged",
		`{"user_id":"u1","name":"Toast","calorie_count":200}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.False(t, envelope.Success)
	// The meal log was committed before the publish attempt and stays committed.
	assert.Len(t, store.meals, 1)
}

func TestMealLoggedPublishFailureReleasesClaim(t *testing.T) {
	guard := &fakeGuard{}
	publisher := &fakePublisher{err: errors.New("broker unreachable")}
	router := newTestRouter(guard, publisher, &fakeDomainStore{}, &fakeReporter{})

	w, _ := doJSON(t, router, http.MethodPost, "/api/messaging/diet/meal-logged",
		`{"request_id":"`+testRequestID+`","user_id":"u1","name":"Toast","calorie_count":200}`)

	// The claim must be freed so the retry with the same request id is
	// processed, not answered as a duplicate.
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, []string{testRequestID}, guard.released)
}

func TestMealLoggedStoreFailureReleasesClaim(t *testing.T) {
	guard := &fakeGuard{}
	publisher := &fakePublisher{}
	store := &fakeDomainStore{err: errors.New("mongo down")}
	router := newTestRouter(guard, publisher, store, &fakeReporter{})

	w, _ := doJSON(t, router, http.MethodPost, "/api/messaging/diet/meal-logged",
		`{"request_id":"`+testRequestID+`","user_id":"u1","name":"Toast","calorie_count":200}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, publisher.published)
	assert.Equal(t, []string{testRequestID}, guard.released)
}

func TestMealLoggedSuccessKeepsClaim(t *testing.T) {
	guard := &fakeGuard{}
	router := newTestRouter(guard, &fakePublisher{}, &fakeDomainStore{}, &fakeReporter{})

	w, _ := doJSON(t, router, http.MethodPost, "/api/messaging/diet/meal-logged",
		`{"request_id":"`+testRequestID+`","user_id":"u1","name":"Toast","calorie_count":200}`)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Empty(t, guard.released)
}

func TestMealLoggedValidation(t *testing.T) {
	router := newTestRouter(&fakeGuard{}, &fakePublisher{}, &fakeDomainStore{}, &fakeReporter{})

	w, envelope := doJSON(t, router, http.MethodPost, "/api/messaging/diet/meal-logged",
		`{"name":"Mystery"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, envelope.Success)
}

func TestWorkoutCompletedPublishes(t *testing.T) {
	publisher := &fakePublisher{}
	store := &fakeDomainStore{}
	router := newTestRouter(&fakeGuard{}, publisher, store, &fakeReporter{connected: true})

	w, envelope := doJSON(t, router, http.MethodPost, "/api/messaging/fitness/workout-completed",
		`{"user_id":"u2","workout_type":"running","calories_burnt":480,"exercise_duration":45,"intensity":"high"}`)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, envelope.Success)
	require.Len(t, store.workouts, 1)
	assert.Equal(t, "running", store.workouts[0].WorkoutType)
	assert.Equal(t, []string{models.EventWorkoutCompleted}, publisher.published)
}

func TestWorkoutCompletedPublishFailureReleasesClaim(t *testing.T) {
	guard := &fakeGuard{}
	publisher := &fakePublisher{err: errors.New("broker unreachable")}
	router := newTestRouter(guard, publisher, &fakeDomainStore{}, &fakeReporter{})

	w, _ := doJSON(t, router, http.MethodPost, "/api/messaging/fitness/workout-completed",
		`{"request_id":"`+testRequestID+`","user_id":"u2","workout_type":"running","calories_burnt":480}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, []string{testRequestID}, guard.released)
}

func TestWorkoutCompletedRejectsNegativeBurn(t *testing.T) {
	router := newTestRouter(&fakeGuard{}, &fakePublisher{}, &fakeDomainStore{}, &fakeReporter{})

	w, _ := doJSON(t, router, http.MethodPost, "/api/messaging/fitness/workout-completed",
		`{"user_id":"u2","workout_type":"running","calories_burnt":-10}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCrisisAlertPublishes(t *testing.T) {
	publisher := &fakePublisher{}
	router := newTestRouter(&fakeGuard{}, publisher, &fakeDomainStore{}, &fakeReporter{})

	w, envelope := doJSON(t, router, http.MethodPost, "/api/messaging/diet/crisis-alert",
		`{"user_id":"u5","risk_level":"high","detected_keywords":["hopeless"]}`)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, envelope.Success)
	assert.Equal(t, []string{models.EventCrisisAlert}, publisher.published)
}

func TestCrisisAlertRejectsUnknownRiskLevel(t *testing.T) {
	router := newTestRouter(&fakeGuard{}, &fakePublisher{}, &fakeDomainStore{}, &fakeReporter{})

	w, _ := doJSON(t, router, http.MethodPost, "/api/messaging/diet/crisis-alert",
		`{"user_id":"u5","risk_level":"catastrophic"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCrisisAlertPublishFailureReleasesClaim(t *testing.T) {
	guard := &fakeGuard{}
	publisher := &fakePublisher{err: errors.New("broker unreachable")}
	router := newTestRouter(guard, publisher, &fakeDomainStore{}, &fakeReporter{})

	w, _ := doJSON(t, router, http.MethodPost, "/api/messaging/diet/crisis-alert",
		`{"request_id":"`+testRequestID+`","user_id":"u5","risk_level":"high"}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, []string{testRequestID}, guard.released)
}

func TestConnectionStatus(t *testing.T) {
	router := newTestRouter(&fakeGuard{}, &fakePublisher{}, &fakeDomainStore{}, &fakeReporter{connected: true})

	w, envelope := doJSON(t, router, http.MethodGet, "/api/messaging/connection-status", "")

	assert.Equal(t, http.StatusOK, w.Code)
	data := envelope.Data.(map[string]interface{})
	assert.Equal(t, true, data["connected"])
	assert.Equal(t, "subscribed", data["state"])
	assert.Equal(t, "diet_to_fitness", data["exchange"])
	assert.Equal(t, []interface{}{"diet.workout.queue"}, data["queues"])
}
