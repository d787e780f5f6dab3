package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"go.uber.org/zap"
)

const defaultDatabase = "fleet_management"

// Connect opens the Mongo database named in the URI and makes sure the indexes
// the alert checks rely on exist.
func Connect(ctx context.Context, mongoURI string, logger *zap.Logger) (*mongo.Database, error) {
	cs, err := connstring.ParseAndValidate(mongoURI)
	if err != nil {
		return nil, fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dbName := cs.Database
	if dbName == "" {
		dbName = defaultDatabase
	}
	logger.Info("connected to MongoDB", zap.String("database", dbName))

	db := client.Database(dbName)
	if err := createIndexes(ctx, db); err != nil {
		logger.Warn("failed to create indexes", zap.Error(err))
	}

	return db, nil
}

func createIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		"alerts": {
			{Keys: bson.D{{Key: "alert_type", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "reference_type", Value: 1}, {Key: "reference_id", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "resolved_at", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		"trucks": {
			{Keys: bson.D{{Key: "active", Value: 1}}},
			{Keys: bson.D{{Key: "registration", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		"drivers": {
			{Keys: bson.D{{Key: "active", Value: 1}}},
		},
		"parts": {
			{Keys: bson.D{{Key: "active", Value: 1}}},
		},
		"stock_entries": {
			{Keys: bson.D{{Key: "part_id", Value: 1}}},
		},
		"maintenances": {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "date_planned", Value: 1}}},
		},
		"users": {
			{Keys: bson.D{{Key: "role", Value: 1}, {Key: "active", Value: 1}}},
		},
	}

	var firstErr error
	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s indexes: %w", name, err)
		}
	}
	return firstErr
}

func Disconnect(ctx context.Context, client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	return nil
}

func Health(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return db.Client().Ping(ctx, nil)
}
