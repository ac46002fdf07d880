package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/mamadbah2/fruitstock/internal/domain/models"
)

var batchSort = bson.D{{Key: "fruit", Value: 1}, {Key: "arrival", Value: 1}}

// ListBatches returns every batch grouped by fruit.
func (r *MongoDBRepository) ListBatches(ctx context.Context) ([]models.FruitBatch, error) {
	return findAll[models.FruitBatch](ctx, r.db.Collection(batchesColl), bson.D{}, batchSort)
}

// ListBatchesByFruit returns the batches of one fruit.
func (r *MongoDBRepository) ListBatchesByFruit(ctx context.Context, fruitID primitive.ObjectID) ([]models.FruitBatch, error) {
	return findAll[models.FruitBatch](ctx, r.db.Collection(batchesColl), bson.M{"fruit": fruitID}, batchSort)
}

// GetBatch loads one batch.
func (r *MongoDBRepository) GetBatch(ctx context.Context, id primitive.ObjectID) (models.FruitBatch, error) {
	return findByID[models.FruitBatch](ctx, r.db.Collection(batchesColl), "fruit instance", id)
}

// InsertBatch stores a new batch at version 1. The caller has already recomputed its stock.
func (r *MongoDBRepository) InsertBatch(ctx context.Context, b *models.FruitBatch) error {
	now := time.Now().UTC()
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	b.Version = 1
	b.CreatedAt = now
	b.UpdatedAt = now

	if _, err := r.db.Collection(batchesColl).InsertOne(ctx, b); err != nil {
		return fmt.Errorf("insert fruit instance: %w", err)
	}
	return nil
}

// SaveBatch performs a version-conditional replace.
func (r *MongoDBRepository) SaveBatch(ctx context.Context, b *models.FruitBatch) error {
	expected := b.Version
	b.Version = expected + 1
	b.UpdatedAt = time.Now().UTC()

	coll := r.db.Collection(batchesColl)
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": b.ID, "version": expected}, b)
	if err != nil {
		b.Version = expected
		return fmt.Errorf("save fruit instance %s: %w", b.ID.Hex(), err)
	}

	if res.MatchedCount == 0 {
		b.Version = expected
		n, err := coll.CountDocuments(ctx, bson.M{"_id": b.ID})
		if err != nil {
			return fmt.Errorf("save fruit instance %s: %w", b.ID.Hex(), err)
		}
		if n == 0 {
			return models.NewNotFound("fruit instance", b.ID.Hex())
		}
		r.logger.Warn("fruit instance version conflict", zap.String("batch_id", b.ID.Hex()), zap.Int64("expected_version", expected))
		return models.ErrVersionConflict
	}
	return nil
}

// DeleteBatch removes a batch.
func (r *MongoDBRepository) DeleteBatch(ctx context.Context, id primitive.ObjectID) error {
	return deleteByID(ctx, r.db.Collection(batchesColl), "fruit instance", id)
}
