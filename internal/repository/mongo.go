package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/healthmesh/agent-coordination/internal/models"
)

// Collection names shared across the agent services. Each service only
// writes documents scoped to its own domain plus the shared notifications
// and recommendations collections.
const (
	collProfiles        = "profiles"
	collDailyTotals     = "daily_totals"
	collMealLogs        = "meal_logs"
	collWorkoutLogs     = "workout_logs"
	collRecommendations = "recommendations"
	collNotifications   = "notifications"
)

// Store wraps the MongoDB document store. Every write is an independently
// committed single-document operation; cross-event races on daily totals are
// resolved with $inc at the store, not with application locks.
type Store struct {
	db *mongo.Database
}

func NewStore(db *mongo.Database) *Store {
	return &Store{db: db}
}

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, uri, database string) (*Store, *mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, err
	}
	return NewStore(client.Database(database)), client, nil
}

// GetProfile returns nil when the user has no stored profile; the engine
// substitutes defaults instead of failing.
func (s *Store) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := s.db.Collection(collProfiles).FindOne(ctx, bson.M{"user_id": userID}).Decode(&profile)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpsertProfile stores or replaces the user's profile snapshot.
func (s *Store) UpsertProfile(ctx context.Context, profile *models.UserProfile) error {
	_, err := s.db.Collection(collProfiles).UpdateOne(ctx,
		bson.M{"user_id": profile.UserID},
		bson.M{"$set": profile},
		options.Update().SetUpsert(true))
	return err
}

// GetDailyTotals returns nil when no totals document exists for the day.
func (s *Store) GetDailyTotals(ctx context.Context, userID, date string) (*models.DailyTotals, error) {
	var totals models.DailyTotals
	err := s.db.Collection(collDailyTotals).
		FindOne(ctx, bson.M{"user_id": userID, "date": date}).Decode(&totals)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &totals, nil
}

// AddIntake atomically increments the day's intake totals, creating the
// document on first write. A non-empty eventID is applied at most once, so
// broker redeliveries of the same message do not inflate the totals.
func (s *Store) AddIntake(ctx context.Context, userID, date, eventID string, card *models.MealCard) error {
	return s.applyDailyDelta(ctx, userID, date, eventID, bson.M{
		"intake_calories": nonNegative(card.CalorieCount),
		"protein_g":       nonNegative(card.Protein),
		"carbs_g":         nonNegative(card.Carbs),
		"fat_g":           nonNegative(card.Fat),
	})
}

// AddBurn atomically increments the day's burnt calories, at most once per
// source event.
func (s *Store) AddBurn(ctx context.Context, userID, date, eventID string, card *models.WorkoutCard) error {
	return s.applyDailyDelta(ctx, userID, date, eventID, bson.M{
		"burnt_calories": nonNegative(card.CaloriesBurnt),
	})
}

// applyDailyDelta increments the totals document, recording the source event
// id so the same event never counts twice. When the event was already
// applied the filter excludes the existing document and the upsert collides
// with the unique user+date index; that duplicate-key error is the
// already-applied signal, not a failure.
func (s *Store) applyDailyDelta(ctx context.Context, userID, date, eventID string, inc bson.M) error {
	filter := bson.M{"user_id": userID, "date": date}
	update := bson.M{"$inc": inc}
	if eventID != "" {
		filter["applied_events"] = bson.M{"$ne": eventID}
		update["$push"] = bson.M{"applied_events": eventID}
	}
	_, err := s.db.Collection(collDailyTotals).UpdateOne(ctx, filter, update,
		options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

// SaveMealLog records the domain write that precedes a meal_logged publish.
func (s *Store) SaveMealLog(ctx context.Context, log *models.MealLog) error {
	_, err := s.db.Collection(collMealLogs).InsertOne(ctx, log)
	return err
}

// SaveWorkoutLog records the domain write that precedes a workout_completed publish.
func (s *Store) SaveWorkoutLog(ctx context.Context, log *models.WorkoutLog) error {
	_, err := s.db.Collection(collWorkoutLogs).InsertOne(ctx, log)
	return err
}

// SaveRecommendation inserts an immutable recommendation record. Later
// recommendations supersede earlier ones by generated_at ordering.
func (s *Store) SaveRecommendation(ctx context.Context, rec *models.Recommendation) error {
	_, err := s.db.Collection(collRecommendations).InsertOne(ctx, rec)
	return err
}

// LatestRecommendation returns the newest recommendation for a user, nil
// when none exists.
func (s *Store) LatestRecommendation(ctx context.Context, userID string) (*models.Recommendation, error) {
	var rec models.Recommendation
	err := s.db.Collection(collRecommendations).FindOne(ctx,
		bson.M{"target_user_id": userID},
		options.FindOne().SetSort(bson.D{{Key: "generated_at", Value: -1}}),
	).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// AppendNotification appends to the per-user notification log.
func (s *Store) AppendNotification(ctx context.Context, n *models.Notification) error {
	_, err := s.db.Collection(collNotifications).InsertOne(ctx, n)
	return err
}

// ListNotifications returns the newest notifications for a user.
func (s *Store) ListNotifications(ctx context.Context, userID string, limit int64) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	cur, err := s.db.Collection(collNotifications).Find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var items []models.Notification
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// EnsureIndexes creates the lookup indexes the stores rely on. Idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(collDailyTotals).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}
	_, err = s.db.Collection(collRecommendations).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "target_user_id", Value: 1}, {Key: "generated_at", Value: -1}},
	})
	if err != nil {
		return err
	}
	_, err = s.db.Collection(collNotifications).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return err
	}
	_, err = s.db.Collection(collProfiles).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// Ping verifies store liveness within the given timeout.
func (s *Store) Ping(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.db.Client().Ping(ctx, nil)
}
