package repository

import (
	"context"
	"time"

	"fleet-alerts/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MaintenanceRepository struct {
	collection *mongo.Collection
}

func NewMaintenanceRepository(db *mongo.Database) *MaintenanceRepository {
	return &MaintenanceRepository{
		collection: db.Collection("maintenances"),
	}
}

// FindPlannedBetween returns planned maintenances with from <= date_planned <= to.
func (r *MaintenanceRepository) FindPlannedBetween(ctx context.Context, from, to time.Time) ([]*models.Maintenance, error) {
	return r.findPlanned(ctx, bson.M{"$gte": from, "$lte": to})
}

// FindPlannedUntil returns planned maintenances with date_planned <= until.
func (r *MaintenanceRepository) FindPlannedUntil(ctx context.Context, until time.Time) ([]*models.Maintenance, error) {
	return r.findPlanned(ctx, bson.M{"$lte": until})
}

func (r *MaintenanceRepository) findPlanned(ctx context.Context, dateRange bson.M) ([]*models.Maintenance, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{
		"status":       models.MaintenanceStatusPlanned,
		"date_planned": dateRange,
	}
	opts := options.Find().SetSort(bson.D{{Key: "date_planned", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*models.Maintenance
	for cursor.Next(ctx) {
		var record models.Maintenance
		if err := cursor.Decode(&record); err != nil {
			return nil, err
		}
		records = append(records, &record)
	}

	return records, cursor.Err()
}
