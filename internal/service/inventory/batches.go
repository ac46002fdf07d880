package inventory

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/mamadbah2/fruitstock/internal/domain/models"
)

const kindBatch = "fruit instance"

// BatchView pairs a batch with its fruit for listings.
type BatchView struct {
	Batch models.FruitBatch
	Fruit models.Fruit
}

// Label names the batch by fruit and arrival date.
func (v BatchView) Label() string {
	name := v.Fruit.Name
	if name == "" {
		name = "Unknown fruit"
	}
	return fmt.Sprintf("%s - %s", name, v.Batch.ArrivalFormatted())
}

// BatchDetail is a batch with the events drawn against it.
type BatchDetail struct {
	BatchView
	Sales     []models.Sale
	Spoilages []models.Spoilage
}

// ListBatches returns every batch with its fruit, grouped by fruit and ordered by arrival.
func (s *Service) ListBatches(ctx context.Context) ([]BatchView, error) {
	batches, err := s.store.ListBatches(ctx)
	if err != nil {
		return nil, err
	}

	fruits, err := s.fruitIndex(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]BatchView, 0, len(batches))
	for _, b := range batches {
		views = append(views, BatchView{Batch: b, Fruit: fruits[b.FruitID]})
	}
	return views, nil
}

// GetBatch loads a batch with its fruit, sales and spoilages.
func (s *Service) GetBatch(ctx context.Context, rawID string) (BatchDetail, error) {
	id, err := parseID(kindBatch, rawID)
	if err != nil {
		return BatchDetail{}, err
	}

	view, err := s.batchView(ctx, id)
	if err != nil {
		return BatchDetail{}, err
	}

	detail := BatchDetail{BatchView: view}
	if detail.Sales, err = s.store.ListSalesByBatch(ctx, id); err != nil {
		return BatchDetail{}, fmt.Errorf("list sales of fruit instance: %w", err)
	}
	if detail.Spoilages, err = s.store.ListSpoilagesByBatch(ctx, id); err != nil {
		return BatchDetail{}, fmt.Errorf("list spoilages of fruit instance: %w", err)
	}
	return detail, nil
}

// CreateBatch records the intake of a new batch with an empty ledger.
func (s *Service) CreateBatch(ctx context.Context, form BatchForm) (models.FruitBatch, error) {
	in, err := form.Parse()
	if err != nil {
		return models.FruitBatch{}, err
	}
	if err := s.checkFruit(ctx, in.FruitID); err != nil {
		return models.FruitBatch{}, err
	}

	batch := models.FruitBatch{
		ID:         primitive.NewObjectID(),
		FruitID:    in.FruitID,
		Arrival:    in.Arrival,
		Unit:       in.Unit,
		Size:       in.Size,
		PriceCents: in.PriceCents,
		Stock: models.Ledger{
			QuantityReceived: in.QuantityReceived,
			Sales:            []models.Deduction{},
			Spoilages:        []models.Deduction{},
		},
	}
	if err := models.RecomputeAvailable(&batch); err != nil {
		return models.FruitBatch{}, err
	}
	if err := s.store.InsertBatch(ctx, &batch); err != nil {
		return models.FruitBatch{}, err
	}

	s.invalidateCounts(ctx)
	s.logger.Info("fruit instance received",
		zap.String("batch_id", batch.ID.Hex()),
		zap.String("fruit_id", batch.FruitID.Hex()),
		zap.Int64("available", batch.Stock.Available),
	)
	return batch, nil
}

// UpdateBatch edits the intake fields of a batch. Recorded deductions are kept
// and the available quantity is recomputed from the new values.
func (s *Service) UpdateBatch(ctx context.Context, rawID string, form BatchForm) (models.FruitBatch, error) {
	id, err := parseID(kindBatch, rawID)
	if err != nil {
		return models.FruitBatch{}, err
	}

	unlock := s.lockBatch(id)
	defer unlock()

	batch, err := s.store.GetBatch(ctx, id)
	if err != nil {
		return models.FruitBatch{}, err
	}

	in, err := form.Parse()
	if err != nil {
		return models.FruitBatch{}, err
	}
	if err := s.checkFruit(ctx, in.FruitID); err != nil {
		return models.FruitBatch{}, err
	}

	batch.FruitID = in.FruitID
	batch.Arrival = in.Arrival
	batch.Unit = in.Unit
	batch.Size = in.Size
	batch.PriceCents = in.PriceCents
	batch.Stock.QuantityReceived = in.QuantityReceived

	if err := models.RecomputeAvailable(&batch); err != nil {
		return models.FruitBatch{}, err
	}
	if err := s.store.SaveBatch(ctx, &batch); err != nil {
		return models.FruitBatch{}, err
	}

	if batch.Overallocated() {
		s.logger.Warn("fruit instance over-allocated after edit",
			zap.String("batch_id", rawID),
			zap.Int64("available", batch.Stock.Available),
		)
	}
	return batch, nil
}

// DeleteBatch removes a batch unless sales or spoilages reference it.
func (s *Service) DeleteBatch(ctx context.Context, rawID string) (DeleteOutcome, error) {
	id, err := parseID(kindBatch, rawID)
	if err != nil {
		return DeleteOutcome{}, err
	}

	unlock := s.lockBatch(id)
	defer unlock()

	detail, err := s.GetBatch(ctx, rawID)
	if err != nil {
		return DeleteOutcome{}, err
	}

	refs := detail.References()
	if len(refs) > 0 {
		return DeleteOutcome{Blocked: true, References: refs}, nil
	}

	if err := s.store.DeleteBatch(ctx, id); err != nil && !errors.Is(err, models.ErrNotFound) {
		return DeleteOutcome{}, err
	}

	s.invalidateCounts(ctx)
	s.logger.Info("fruit instance deleted", zap.String("batch_id", rawID))
	return DeleteOutcome{}, nil
}

// References lists the sales, spoilages and dangling ledger entries that
// block deleting the batch.
func (d BatchDetail) References() []Reference {
	refs := make([]Reference, 0, len(d.Sales)+len(d.Spoilages))
	for _, sale := range d.Sales {
		refs = append(refs, Reference{Label: "Sale of " + sale.DateFormatted(), URL: sale.URL()})
	}
	for _, sp := range d.Spoilages {
		refs = append(refs, Reference{Label: "Spoilage of " + sp.DateFormatted(), URL: sp.URL()})
	}

	// Ledger entries whose event document is gone still count as references.
	seen := make(map[string]bool, len(refs))
	for _, sale := range d.Sales {
		seen[sale.ID.Hex()] = true
	}
	for _, sp := range d.Spoilages {
		seen[sp.ID.Hex()] = true
	}
	for _, list := range [][]models.Deduction{d.Batch.Stock.Sales, d.Batch.Stock.Spoilages} {
		for _, entry := range list {
			if !seen[entry.Ref] {
				refs = append(refs, Reference{Label: "Ledger entry " + entry.Ref})
			}
		}
	}
	return refs
}

func (s *Service) batchView(ctx context.Context, id primitive.ObjectID) (BatchView, error) {
	batch, err := s.store.GetBatch(ctx, id)
	if err != nil {
		return BatchView{}, err
	}

	fruit, err := s.store.GetFruit(ctx, batch.FruitID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return BatchView{}, err
	}
	return BatchView{Batch: batch, Fruit: fruit}, nil
}

func (s *Service) fruitIndex(ctx context.Context) (map[primitive.ObjectID]models.Fruit, error) {
	fruits, err := s.store.ListFruits(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fruits: %w", err)
	}
	index := make(map[primitive.ObjectID]models.Fruit, len(fruits))
	for _, f := range fruits {
		index[f.ID] = f
	}
	return index, nil
}

func (s *Service) checkFruit(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.store.GetFruit(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return models.NewValidationError("fruit", "Fruit does not exist.")
	}
	return err
}
