package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mamadbah2/fruitstock/internal/domain/models"
)

// ListSales returns every sale, newest first.
func (r *MongoDBRepository) ListSales(ctx context.Context) ([]models.Sale, error) {
	return findAll[models.Sale](ctx, r.db.Collection(salesColl), bson.D{}, bson.D{{Key: "date", Value: -1}})
}

// ListSalesByBatch returns the sales referencing a batch.
func (r *MongoDBRepository) ListSalesByBatch(ctx context.Context, batchID primitive.ObjectID) ([]models.Sale, error) {
	return findAll[models.Sale](ctx, r.db.Collection(salesColl), bson.M{"fruit_instance": batchID}, bson.D{{Key: "date", Value: -1}})
}

// GetSale loads one sale.
func (r *MongoDBRepository) GetSale(ctx context.Context, id primitive.ObjectID) (models.Sale, error) {
	return findByID[models.Sale](ctx, r.db.Collection(salesColl), "sale", id)
}

// InsertSale stores a sale and assigns its id.
func (r *MongoDBRepository) InsertSale(ctx context.Context, s *models.Sale) error {
	if s.ID.IsZero() {
		s.ID = primitive.NewObjectID()
	}
	if _, err := r.db.Collection(salesColl).InsertOne(ctx, s); err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

// UpdateSale replaces a sale.
func (r *MongoDBRepository) UpdateSale(ctx context.Context, s models.Sale) error {
	return replaceByID(ctx, r.db.Collection(salesColl), "sale", s.ID, s)
}

// DeleteSale removes a sale.
func (r *MongoDBRepository) DeleteSale(ctx context.Context, id primitive.ObjectID) error {
	return deleteByID(ctx, r.db.Collection(salesColl), "sale", id)
}

// ListSpoilages returns every spoilage, oldest first.
func (r *MongoDBRepository) ListSpoilages(ctx context.Context) ([]models.Spoilage, error) {
	return findAll[models.Spoilage](ctx, r.db.Collection(spoilagesColl), bson.D{}, bson.D{{Key: "date", Value: 1}})
}

// ListSpoilagesByBatch returns the spoilages referencing a batch.
func (r *MongoDBRepository) ListSpoilagesByBatch(ctx context.Context, batchID primitive.ObjectID) ([]models.Spoilage, error) {
	return findAll[models.Spoilage](ctx, r.db.Collection(spoilagesColl), bson.M{"fruit_instance": batchID}, bson.D{{Key: "date", Value: 1}})
}

// GetSpoilage loads one spoilage.
func (r *MongoDBRepository) GetSpoilage(ctx context.Context, id primitive.ObjectID) (models.Spoilage, error) {
	return findByID[models.Spoilage](ctx, r.db.Collection(spoilagesColl), "spoilage", id)
}

// InsertSpoilage stores a spoilage and assigns its id.
func (r *MongoDBRepository) InsertSpoilage(ctx context.Context, s *models.Spoilage) error {
	if s.ID.IsZero() {
		s.ID = primitive.NewObjectID()
	}
	if _, err := r.db.Collection(spoilagesColl).InsertOne(ctx, s); err != nil {
		return fmt.Errorf("insert spoilage: %w", err)
	}
	return nil
}

// UpdateSpoilage replaces a spoilage.
func (r *MongoDBRepository) UpdateSpoilage(ctx context.Context, s models.Spoilage) error {
	return replaceByID(ctx, r.db.Collection(spoilagesColl), "spoilage", s.ID, s)
}

// DeleteSpoilage removes a spoilage.
func (r *MongoDBRepository) DeleteSpoilage(ctx context.Context, id primitive.ObjectID) error {
	return deleteByID(ctx, r.db.Collection(spoilagesColl), "spoilage", id)
}
