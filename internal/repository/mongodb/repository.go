package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mamadbah2/fruitstock/internal/domain/models"
	"github.com/mamadbah2/fruitstock/internal/repository"
)

const (
	categoriesColl = "categories"
	fruitsColl     = "fruits"
	batchesColl    = "fruit_instances"
	salesColl      = "sales"
	spoilagesColl  = "spoilages"
)

// MongoDBRepository implements repository.Store on top of MongoDB.
type MongoDBRepository struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

var _ repository.Store = (*MongoDBRepository)(nil)

// NewMongoDBRepository connects, pings and prepares the indexes of the inventory database.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string, logger *zap.Logger) (*MongoDBRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	repo := &MongoDBRepository{
		client: client,
		db:     client.Database(dbName),
		logger: logger,
	}

	if err := repo.ensureIndexes(ctx); err != nil {
		return nil, err
	}

	return repo, nil
}

func (r *MongoDBRepository) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		categoriesColl: {{Keys: bson.D{{Key: "name_key", Value: 1}}, Options: options.Index().SetUnique(true)}},
		fruitsColl:     {{Keys: bson.D{{Key: "category", Value: 1}}}, {Keys: bson.D{{Key: "name", Value: 1}}}},
		batchesColl:    {{Keys: bson.D{{Key: "fruit", Value: 1}, {Key: "arrival", Value: 1}}}},
		salesColl:      {{Keys: bson.D{{Key: "fruit_instance", Value: 1}}}, {Keys: bson.D{{Key: "date", Value: -1}}}},
		spoilagesColl:  {{Keys: bson.D{{Key: "fruit_instance", Value: 1}}}, {Keys: bson.D{{Key: "date", Value: 1}}}},
	}

	for coll, idx := range indexes {
		if _, err := r.db.Collection(coll).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}

	r.logger.Debug("mongodb indexes ensured")
	return nil
}

// Counts returns the number of documents per collection.
func (r *MongoDBRepository) Counts(ctx context.Context) (models.Counts, error) {
	var counts models.Counts
	targets := []struct {
		coll string
		dst  *int64
	}{
		{fruitsColl, &counts.Fruits},
		{categoriesColl, &counts.Categories},
		{batchesColl, &counts.Batches},
		{salesColl, &counts.Sales},
		{spoilagesColl, &counts.Spoilages},
	}

	for _, t := range targets {
		n, err := r.db.Collection(t.coll).CountDocuments(ctx, bson.D{})
		if err != nil {
			return models.Counts{}, fmt.Errorf("count %s: %w", t.coll, err)
		}
		*t.dst = n
	}
	return counts, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter interface{}, sort bson.D) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", coll.Name(), err)
	}

	out := make([]T, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", coll.Name(), err)
	}
	return out, nil
}

func findByID[T any](ctx context.Context, coll *mongo.Collection, kind string, id primitive.ObjectID) (T, error) {
	var out T
	err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return out, models.NewNotFound(kind, id.Hex())
	}
	if err != nil {
		return out, fmt.Errorf("find %s %s: %w", kind, id.Hex(), err)
	}
	return out, nil
}

func replaceByID(ctx context.Context, coll *mongo.Collection, kind string, id primitive.ObjectID, doc interface{}) error {
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return fmt.Errorf("replace %s %s: %w", kind, id.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFound(kind, id.Hex())
	}
	return nil
}

func deleteByID(ctx context.Context, coll *mongo.Collection, kind string, id primitive.ObjectID) error {
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id.Hex(), err)
	}
	if res.DeletedCount == 0 {
		return models.NewNotFound(kind, id.Hex())
	}
	return nil
}
