package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mamadbah2/fruitstock/internal/domain/models"
)

// ListCategories returns all categories sorted by name.
func (r *MongoDBRepository) ListCategories(ctx context.Context) ([]models.Category, error) {
	return findAll[models.Category](ctx, r.db.Collection(categoriesColl), bson.D{}, bson.D{{Key: "name", Value: 1}})
}

// GetCategory loads one category.
func (r *MongoDBRepository) GetCategory(ctx context.Context, id primitive.ObjectID) (models.Category, error) {
	return findByID[models.Category](ctx, r.db.Collection(categoriesColl), "category", id)
}

// FindCategoryByName looks a category up by its case-folded name.
func (r *MongoDBRepository) FindCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	var c models.Category
	err := r.db.Collection(categoriesColl).FindOne(ctx, bson.M{"name_key": nameKey(name)}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find category by name: %w", err)
	}
	return &c, nil
}

// InsertCategory stores a new category and assigns its id.
func (r *MongoDBRepository) InsertCategory(ctx context.Context, c *models.Category) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	c.NameKey = nameKey(c.Name)

	if _, err := r.db.Collection(categoriesColl).InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.NewValidationError("name", "Category already exists.")
		}
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

// UpdateCategory replaces a category.
func (r *MongoDBRepository) UpdateCategory(ctx context.Context, c models.Category) error {
	c.NameKey = nameKey(c.Name)
	err := replaceByID(ctx, r.db.Collection(categoriesColl), "category", c.ID, c)
	if mongo.IsDuplicateKeyError(err) {
		return models.NewValidationError("name", "Category already exists.")
	}
	return err
}

// DeleteCategory removes a category.
func (r *MongoDBRepository) DeleteCategory(ctx context.Context, id primitive.ObjectID) error {
	return deleteByID(ctx, r.db.Collection(categoriesColl), "category", id)
}

// ListFruits returns all fruits sorted by name.
func (r *MongoDBRepository) ListFruits(ctx context.Context) ([]models.Fruit, error) {
	return findAll[models.Fruit](ctx, r.db.Collection(fruitsColl), bson.D{}, bson.D{{Key: "name", Value: 1}})
}

// ListFruitsByCategory returns the fruits of one category.
func (r *MongoDBRepository) ListFruitsByCategory(ctx context.Context, categoryID primitive.ObjectID) ([]models.Fruit, error) {
	return findAll[models.Fruit](ctx, r.db.Collection(fruitsColl), bson.M{"category": categoryID}, bson.D{{Key: "name", Value: 1}})
}

// GetFruit loads one fruit.
func (r *MongoDBRepository) GetFruit(ctx context.Context, id primitive.ObjectID) (models.Fruit, error) {
	return findByID[models.Fruit](ctx, r.db.Collection(fruitsColl), "fruit", id)
}

// InsertFruit stores a new fruit and assigns its id.
func (r *MongoDBRepository) InsertFruit(ctx context.Context, f *models.Fruit) error {
	if f.ID.IsZero() {
		f.ID = primitive.NewObjectID()
	}
	if _, err := r.db.Collection(fruitsColl).InsertOne(ctx, f); err != nil {
		return fmt.Errorf("insert fruit: %w", err)
	}
	return nil
}

// UpdateFruit replaces a fruit.
func (r *MongoDBRepository) UpdateFruit(ctx context.Context, f models.Fruit) error {
	return replaceByID(ctx, r.db.Collection(fruitsColl), "fruit", f.ID, f)
}

// DeleteFruit removes a fruit.
func (r *MongoDBRepository) DeleteFruit(ctx context.Context, id primitive.ObjectID) error {
	return deleteByID(ctx, r.db.Collection(fruitsColl), "fruit", id)
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
