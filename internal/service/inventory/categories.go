package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/mamadbah2/fruitstock/internal/domain/models"
)

const kindCategory = "category"

// CategoryDetail is a category with the fruits filed under it.
type CategoryDetail struct {
	Category models.Category
	Fruits   []models.Fruit
}

// ListCategories returns all categories sorted by name.
func (s *Service) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.store.ListCategories(ctx)
}

// GetCategory loads a category and its fruits.
func (s *Service) GetCategory(ctx context.Context, rawID string) (CategoryDetail, error) {
	id, err := parseID(kindCategory, rawID)
	if err != nil {
		return CategoryDetail{}, err
	}

	category, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return CategoryDetail{}, err
	}

	fruits, err := s.store.ListFruitsByCategory(ctx, id)
	if err != nil {
		return CategoryDetail{}, fmt.Errorf("list fruits of category: %w", err)
	}
	return CategoryDetail{Category: category, Fruits: fruits}, nil
}

// CreateCategory stores a new category. When a category with the same name
// (ignoring case) exists it is returned instead.
func (s *Service) CreateCategory(ctx context.Context, form CategoryForm) (models.Category, error) {
	in, err := form.Parse()
	if err != nil {
		return models.Category{}, err
	}

	existing, err := s.store.FindCategoryByName(ctx, in.Name)
	if err != nil {
		return models.Category{}, fmt.Errorf("lookup category: %w", err)
	}
	if existing != nil {
		return *existing, nil
	}

	category := models.Category{ID: primitive.NewObjectID(), Name: in.Name, NameKey: nameKey(in.Name)}
	if err := s.store.InsertCategory(ctx, &category); err != nil {
		return models.Category{}, err
	}

	s.invalidateCounts(ctx)
	s.logger.Info("category created", zap.String("category_id", category.ID.Hex()), zap.String("name", category.Name))
	return category, nil
}

// UpdateCategory renames a category.
func (s *Service) UpdateCategory(ctx context.Context, rawID string, form CategoryForm) (models.Category, error) {
	id, err := parseID(kindCategory, rawID)
	if err != nil {
		return models.Category{}, err
	}

	category, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return models.Category{}, err
	}

	in, err := form.Parse()
	if err != nil {
		return models.Category{}, err
	}

	existing, err := s.store.FindCategoryByName(ctx, in.Name)
	if err != nil {
		return models.Category{}, fmt.Errorf("lookup category: %w", err)
	}
	if existing != nil && existing.ID != id {
		return models.Category{}, models.NewValidationError("name", "Category already exists.")
	}

	category.Name = in.Name
	category.NameKey = nameKey(in.Name)
	if err := s.store.UpdateCategory(ctx, category); err != nil {
		return models.Category{}, err
	}
	return category, nil
}

// DeleteCategory removes a category unless fruits are still filed under it.
func (s *Service) DeleteCategory(ctx context.Context, rawID string) (DeleteOutcome, error) {
	detail, err := s.GetCategory(ctx, rawID)
	if err != nil {
		return DeleteOutcome{}, err
	}

	if refs := detail.References(); len(refs) > 0 {
		return DeleteOutcome{Blocked: true, References: refs}, nil
	}

	if err := s.store.DeleteCategory(ctx, detail.Category.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return DeleteOutcome{}, nil
		}
		return DeleteOutcome{}, err
	}

	s.invalidateCounts(ctx)
	s.logger.Info("category deleted", zap.String("category_id", rawID))
	return DeleteOutcome{}, nil
}

// References lists the fruits that block deleting the category.
func (d CategoryDetail) References() []Reference {
	refs := make([]Reference, 0, len(d.Fruits))
	for _, fruit := range d.Fruits {
		refs = append(refs, Reference{Label: fruit.Name, URL: fruit.URL()})
	}
	return refs
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
