package inventory

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/mamadbah2/fruitstock/internal/domain/models"
)

const kindFruit = "fruit"

// FruitDetail is a fruit with its category and batches.
type FruitDetail struct {
	Fruit    models.Fruit
	Category *models.Category
	Batches  []models.FruitBatch
}

// ListFruits returns all fruits sorted by name.
func (s *Service) ListFruits(ctx context.Context) ([]models.Fruit, error) {
	return s.store.ListFruits(ctx)
}

// GetFruit loads a fruit with its category and batches.
func (s *Service) GetFruit(ctx context.Context, rawID string) (FruitDetail, error) {
	id, err := parseID(kindFruit, rawID)
	if err != nil {
		return FruitDetail{}, err
	}

	fruit, err := s.store.GetFruit(ctx, id)
	if err != nil {
		return FruitDetail{}, err
	}

	detail := FruitDetail{Fruit: fruit}
	if fruit.CategoryID != nil {
		category, err := s.store.GetCategory(ctx, *fruit.CategoryID)
		switch {
		case err == nil:
			detail.Category = &category
		case errors.Is(err, models.ErrNotFound):
			s.logger.Warn("fruit points at a missing category", zap.String("fruit_id", rawID))
		default:
			return FruitDetail{}, err
		}
	}

	detail.Batches, err = s.store.ListBatchesByFruit(ctx, id)
	if err != nil {
		return FruitDetail{}, fmt.Errorf("list batches of fruit: %w", err)
	}
	return detail, nil
}

// CreateFruit stores a new fruit.
func (s *Service) CreateFruit(ctx context.Context, form FruitForm) (models.Fruit, error) {
	in, err := form.Parse()
	if err != nil {
		return models.Fruit{}, err
	}
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return models.Fruit{}, err
	}

	fruit := models.Fruit{
		ID:          primitive.NewObjectID(),
		Name:        in.Name,
		Origin:      in.Origin,
		Description: in.Description,
		CategoryID:  in.CategoryID,
	}
	if err := s.store.InsertFruit(ctx, &fruit); err != nil {
		return models.Fruit{}, err
	}

	s.invalidateCounts(ctx)
	s.logger.Info("fruit created", zap.String("fruit_id", fruit.ID.Hex()), zap.String("name", fruit.Name))
	return fruit, nil
}

// UpdateFruit replaces the catalog fields of a fruit.
func (s *Service) UpdateFruit(ctx context.Context, rawID string, form FruitForm) (models.Fruit, error) {
	id, err := parseID(kindFruit, rawID)
	if err != nil {
		return models.Fruit{}, err
	}

	fruit, err := s.store.GetFruit(ctx, id)
	if err != nil {
		return models.Fruit{}, err
	}

	in, err := form.Parse()
	if err != nil {
		return models.Fruit{}, err
	}
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return models.Fruit{}, err
	}

	fruit.Name = in.Name
	fruit.Origin = in.Origin
	fruit.Description = in.Description
	fruit.CategoryID = in.CategoryID
	if err := s.store.UpdateFruit(ctx, fruit); err != nil {
		return models.Fruit{}, err
	}
	return fruit, nil
}

// DeleteFruit removes a fruit unless batches of it exist.
func (s *Service) DeleteFruit(ctx context.Context, rawID string) (DeleteOutcome, error) {
	detail, err := s.GetFruit(ctx, rawID)
	if err != nil {
		return DeleteOutcome{}, err
	}

	if refs := detail.References(); len(refs) > 0 {
		return DeleteOutcome{Blocked: true, References: refs}, nil
	}

	if err := s.store.DeleteFruit(ctx, detail.Fruit.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
		return DeleteOutcome{}, err
	}

	s.invalidateCounts(ctx)
	s.logger.Info("fruit deleted", zap.String("fruit_id", rawID))
	return DeleteOutcome{}, nil
}

// References lists the fruit instances that block deleting the fruit.
func (d FruitDetail) References() []Reference {
	refs := make([]Reference, 0, len(d.Batches))
	for _, b := range d.Batches {
		refs = append(refs, Reference{
			Label: fmt.Sprintf("%s batch of %s", d.Fruit.Name, b.ArrivalFormatted()),
			URL:   b.URL(),
		})
	}
	return refs
}

func (s *Service) checkCategory(ctx context.Context, id *primitive.ObjectID) error {
	if id == nil {
		return nil
	}
	_, err := s.store.GetCategory(ctx, *id)
	if errors.Is(err, models.ErrNotFound) {
		return models.NewValidationError("category", "Category does not exist.")
	}
	return err
}
