package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fleet-alerts/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrAlertNotFound  = errors.New("alert not found")
	ErrInvalidAlertID = errors.New("invalid alert ID")
)

const queryTimeout = 10 * time.Second

type AlertRepository struct {
	collection *mongo.Collection
	counters   *CounterRepository
}

func NewAlertRepository(db *mongo.Database) *AlertRepository {
	return &AlertRepository{
		collection: db.Collection("alerts"),
		counters:   NewCounterRepository(db),
	}
}

// Find lists alerts newest first.
func (r *AlertRepository) Find(ctx context.Context, filter models.AlertFilter) ([]*models.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := bson.M{}
	if filter.Type != nil {
		query["alert_type"] = *filter.Type
	}
	switch {
	case filter.Status != nil:
		query["status"] = *filter.Status
	case filter.OpenOnly:
		query["status"] = bson.M{"$ne": models.AlertStatusResolved}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	alerts := []*models.Alert{}
	for cursor.Next(ctx) {
		var alert models.Alert
		if err := cursor.Decode(&alert); err != nil {
			return nil, err
		}
		alerts = append(alerts, &alert)
	}

	return alerts, cursor.Err()
}

func (r *AlertRepository) FindByID(ctx context.Context, id int64) (*models.Alert, error) {
	if id <= 0 {
		return nil, ErrInvalidAlertID
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var alert models.Alert
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&alert)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}

	return &alert, nil
}

// FindOpenByType returns the ACTIVE and ACKNOWLEDGED alerts of one type, oldest first.
func (r *AlertRepository) FindOpenByType(ctx context.Context, alertType models.AlertType) ([]*models.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{
		"alert_type": alertType,
		"status":     bson.M{"$ne": models.AlertStatusResolved},
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var alerts []*models.Alert
	for cursor.Next(ctx) {
		var alert models.Alert
		if err := cursor.Decode(&alert); err != nil {
			return nil, err
		}
		alerts = append(alerts, &alert)
	}

	return alerts, cursor.Err()
}

// Save inserts the alert under a fresh sequential ID when ID is zero and
// replaces the stored document otherwise.
func (r *AlertRepository) Save(ctx context.Context, alert *models.Alert) (*models.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	saved := *alert
	if saved.ID == 0 {
		id, err := r.counters.Next(ctx, "alerts")
		if err != nil {
			return nil, fmt.Errorf("allocate alert ID: %w", err)
		}
		saved.ID = id
		if _, err := r.collection.InsertOne(ctx, &saved); err != nil {
			return nil, err
		}
		return &saved, nil
	}

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": saved.ID}, &saved)
	if err != nil {
		return nil, err
	}
	if result.MatchedCount == 0 {
		return nil, ErrAlertNotFound
	}
	return &saved, nil
}

func (r *AlertRepository) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{
		"status":      models.AlertStatusResolved,
		"resolved_at": bson.M{"$lt": cutoff},
	}

	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

type statusSeverityCount struct {
	ID struct {
		Status   models.AlertStatus `bson:"status"`
		Severity models.Severity    `bson:"severity"`
	} `bson:"_id"`
	Count int `bson:"count"`
}

// Stats counts alerts by status. Critical counts open CRITICAL alerts only.
func (r *AlertRepository) Stats(ctx context.Context) (*models.AlertStats, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"status": "$status", "severity": "$severity"},
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var stats models.AlertStats
	for cursor.Next(ctx) {
		var row statusSeverityCount
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		addStatusCount(&stats, row.ID.Status, row.ID.Severity, row.Count)
	}

	return &stats, cursor.Err()
}

// CountOpenByType counts ACTIVE and ACKNOWLEDGED alerts per type.
func (r *AlertRepository) CountOpenByType(ctx context.Context) (map[models.AlertType]int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": bson.M{"$ne": models.AlertStatusResolved}}}},
		{{Key: "$group", Value: bson.M{"_id": "$alert_type", "count": bson.M{"$sum": 1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	counts := make(map[models.AlertType]int)
	for cursor.Next(ctx) {
		var row struct {
			Type  models.AlertType `bson:"_id"`
			Count int              `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		counts[row.Type] = row.Count
	}

	return counts, cursor.Err()
}

func addStatusCount(stats *models.AlertStats, status models.AlertStatus, severity models.Severity, n int) {
	switch status {
	case models.AlertStatusActive:
		stats.Active += n
	case models.AlertStatusAcknowledged:
		stats.Acknowledged += n
	case models.AlertStatusResolved:
		stats.Resolved += n
	}
	if status != models.AlertStatusResolved && severity.IsCritical() {
		stats.Critical += n
	}
	stats.Total += n
}
