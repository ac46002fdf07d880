package inventory

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/mamadbah2/fruitstock/internal/domain/models"
)

const kindSale = "sale"

// SaleDetail is a sale with the batch it was drawn from.
type SaleDetail struct {
	Sale  models.Sale
	Batch BatchView
}

// ListSales returns all sales, newest first.
func (s *Service) ListSales(ctx context.Context) ([]SaleDetail, error) {
	sales, err := s.store.ListSales(ctx)
	if err != nil {
		return nil, err
	}

	batches, err := s.batchIndex(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]SaleDetail, 0, len(sales))
	for _, sale := range sales {
		out = append(out, SaleDetail{Sale: sale, Batch: batches[sale.BatchID]})
	}
	return out, nil
}

// GetSale loads a sale with its batch.
func (s *Service) GetSale(ctx context.Context, rawID string) (SaleDetail, error) {
	id, err := parseID(kindSale, rawID)
	if err != nil {
		return SaleDetail{}, err
	}

	sale, err := s.store.GetSale(ctx, id)
	if err != nil {
		return SaleDetail{}, err
	}

	view, err := s.batchView(ctx, sale.BatchID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return SaleDetail{}, err
	}
	return SaleDetail{Sale: sale, Batch: view}, nil
}

// RecordSale deducts a sale from a batch. The amount is checked against the
// stored available quantity before anything is written.
func (s *Service) RecordSale(ctx context.Context, rawBatchID string, form SaleForm) (models.Sale, error) {
	batchID, err := parseID(kindBatch, rawBatchID)
	if err != nil {
		return models.Sale{}, err
	}

	unlock := s.lockBatch(batchID)
	defer unlock()

	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return models.Sale{}, err
	}

	in, err := form.Parse()
	if err != nil {
		return models.Sale{}, err
	}
	if err := batch.Stock.ProposeDeduction(in.Amount); err != nil {
		return models.Sale{}, err
	}

	sale := models.Sale{
		ID:         primitive.NewObjectID(),
		BatchID:    batchID,
		Date:       in.Date,
		Amount:     in.Amount,
		PriceCents: in.PriceCents,
	}

	batch.Stock.AppendSale(sale.ID.Hex(), sale.Amount)
	if err := models.RecomputeAvailable(&batch); err != nil {
		return models.Sale{}, err
	}

	if err := s.store.InsertSale(ctx, &sale); err != nil {
		return models.Sale{}, err
	}
	if err := s.store.SaveBatch(ctx, &batch); err != nil {
		s.compensate(ctx, "delete sale "+sale.ID.Hex(), func(ctx context.Context) error {
			return s.store.DeleteSale(ctx, sale.ID)
		})
		return models.Sale{}, fmt.Errorf("save fruit instance after sale: %w", err)
	}

	s.invalidateCounts(ctx)
	s.logger.Info("sale recorded",
		zap.String("sale_id", sale.ID.Hex()),
		zap.String("batch_id", rawBatchID),
		zap.Int64("amount", sale.Amount),
		zap.Int64("available", batch.Stock.Available),
	)
	return sale, nil
}

// UpdateSale revises a sale. The new amount may use the stock freed by the
// old one, so capacity is checked against available plus the old amount.
func (s *Service) UpdateSale(ctx context.Context, rawID string, form SaleForm) (models.Sale, error) {
	id, err := parseID(kindSale, rawID)
	if err != nil {
		return models.Sale{}, err
	}

	previous, err := s.store.GetSale(ctx, id)
	if err != nil {
		return models.Sale{}, err
	}

	in, err := form.Parse()
	if err != nil {
		return models.Sale{}, err
	}

	unlock := s.lockBatch(previous.BatchID)
	defer unlock()

	// Re-read under the lock so a failed save restores the latest revision.
	if previous, err = s.store.GetSale(ctx, id); err != nil {
		return models.Sale{}, err
	}

	batch, err := s.store.GetBatch(ctx, previous.BatchID)
	if err != nil {
		return models.Sale{}, err
	}

	ref := previous.ID.Hex()
	old, tracked := batch.Stock.AmountFor(ref)
	headroom := models.Ledger{Available: batch.Stock.Available + old}
	if err := headroom.ProposeDeduction(in.Amount); err != nil {
		return models.Sale{}, err
	}

	if tracked {
		batch.Stock.ReviseSale(ref, in.Amount)
	} else {
		batch.Stock.AppendSale(ref, in.Amount)
	}
	if err := models.RecomputeAvailable(&batch); err != nil {
		return models.Sale{}, err
	}

	sale := previous
	sale.Date = in.Date
	sale.Amount = in.Amount
	sale.PriceCents = in.PriceCents

	if err := s.store.UpdateSale(ctx, sale); err != nil {
		return models.Sale{}, err
	}
	if err := s.store.SaveBatch(ctx, &batch); err != nil {
		s.compensate(ctx, "restore sale "+ref, func(ctx context.Context) error {
			return s.store.UpdateSale(ctx, previous)
		})
		return models.Sale{}, fmt.Errorf("save fruit instance after sale update: %w", err)
	}
	return sale, nil
}

// DeleteSale removes a sale and returns its amount to the batch.
func (s *Service) DeleteSale(ctx context.Context, rawID string) error {
	id, err := parseID(kindSale, rawID)
	if err != nil {
		return err
	}

	sale, err := s.store.GetSale(ctx, id)
	if err != nil {
		return err
	}

	unlock := s.lockBatch(sale.BatchID)
	defer unlock()

	if sale, err = s.store.GetSale(ctx, id); err != nil {
		return err
	}

	batch, err := s.store.GetBatch(ctx, sale.BatchID)
	if errors.Is(err, models.ErrNotFound) {
		s.logger.Warn("sale points at a missing fruit instance", zap.String("sale_id", rawID))
		if err := s.store.DeleteSale(ctx, id); err != nil {
			return err
		}
		s.invalidateCounts(ctx)
		return nil
	}
	if err != nil {
		return err
	}

	batch.Stock.RemoveSale(sale.ID.Hex())
	if err := models.RecomputeAvailable(&batch); err != nil {
		return err
	}

	if err := s.store.DeleteSale(ctx, id); err != nil {
		return err
	}
	if err := s.store.SaveBatch(ctx, &batch); err != nil {
		s.compensate(ctx, "reinsert sale "+rawID, func(ctx context.Context) error {
			return s.store.InsertSale(ctx, &sale)
		})
		return fmt.Errorf("save fruit instance after sale delete: %w", err)
	}

	s.invalidateCounts(ctx)
	s.logger.Info("sale deleted", zap.String("sale_id", rawID), zap.Int64("available", batch.Stock.Available))
	return nil
}
