// Package repository declares the persistence contract of the inventory.
package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mamadbah2/fruitstock/internal/domain/models"
)

// Store is implemented by the MongoDB adapter and the in-memory adapter.
// Lookups of missing documents return a models.NotFoundError.
type Store interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategory(ctx context.Context, id primitive.ObjectID) (models.Category, error)
	// FindCategoryByName matches case-insensitively and returns nil when no category matches.
	FindCategoryByName(ctx context.Context, name string) (*models.Category, error)
	InsertCategory(ctx context.Context, c *models.Category) error
	UpdateCategory(ctx context.Context, c models.Category) error
	DeleteCategory(ctx context.Context, id primitive.ObjectID) error

	ListFruits(ctx context.Context) ([]models.Fruit, error)
	ListFruitsByCategory(ctx context.Context, categoryID primitive.ObjectID) ([]models.Fruit, error)
	GetFruit(ctx context.Context, id primitive.ObjectID) (models.Fruit, error)
	InsertFruit(ctx context.Context, f *models.Fruit) error
	UpdateFruit(ctx context.Context, f models.Fruit) error
	DeleteFruit(ctx context.Context, id primitive.ObjectID) error

	ListBatches(ctx context.Context) ([]models.FruitBatch, error)
	ListBatchesByFruit(ctx context.Context, fruitID primitive.ObjectID) ([]models.FruitBatch, error)
	GetBatch(ctx context.Context, id primitive.ObjectID) (models.FruitBatch, error)
	InsertBatch(ctx context.Context, b *models.FruitBatch) error
	// SaveBatch replaces the batch when its stored version still equals b.Version
	// and bumps b.Version; otherwise it returns models.ErrVersionConflict.
	SaveBatch(ctx context.Context, b *models.FruitBatch) error
	DeleteBatch(ctx context.Context, id primitive.ObjectID) error

	ListSales(ctx context.Context) ([]models.Sale, error)
	ListSalesByBatch(ctx context.Context, batchID primitive.ObjectID) ([]models.Sale, error)
	GetSale(ctx context.Context, id primitive.ObjectID) (models.Sale, error)
	InsertSale(ctx context.Context, s *models.Sale) error
	UpdateSale(ctx context.Context, s models.Sale) error
	DeleteSale(ctx context.Context, id primitive.ObjectID) error

	ListSpoilages(ctx context.Context) ([]models.Spoilage, error)
	ListSpoilagesByBatch(ctx context.Context, batchID primitive.ObjectID) ([]models.Spoilage, error)
	GetSpoilage(ctx context.Context, id primitive.ObjectID) (models.Spoilage, error)
	InsertSpoilage(ctx context.Context, s *models.Spoilage) error
	UpdateSpoilage(ctx context.Context, s models.Spoilage) error
	DeleteSpoilage(ctx context.Context, id primitive.ObjectID) error

	Counts(ctx context.Context) (models.Counts, error)
}
