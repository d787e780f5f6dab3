package repository

import (
	"context"

	"fleet-alerts/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type PartRepository struct {
	collection *mongo.Collection
}

func NewPartRepository(db *mongo.Database) *PartRepository {
	return &PartRepository{
		collection: db.Collection("parts"),
	}
}

func (r *PartRepository) FindActive(ctx context.Context) ([]*models.Part, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "reference", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"active": true}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var parts []*models.Part
	for cursor.Next(ctx) {
		var part models.Part
		if err := cursor.Decode(&part); err != nil {
			return nil, err
		}
		parts = append(parts, &part)
	}

	return parts, cursor.Err()
}

type StockRepository struct {
	collection *mongo.Collection
}

func NewStockRepository(db *mongo.Database) *StockRepository {
	return &StockRepository{
		collection: db.Collection("stock_entries"),
	}
}

// FindByParts returns the stock entries of the given parts across all locations.
func (r *StockRepository) FindByParts(ctx context.Context, partIDs []int64) ([]*models.StockEntry, error) {
	if len(partIDs) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{"part_id": bson.M{"$in": partIDs}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []*models.StockEntry
	for cursor.Next(ctx) {
		var entry models.StockEntry
		if err := cursor.Decode(&entry); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}

	return entries, cursor.Err()
}
