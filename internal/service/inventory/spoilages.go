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

const kindSpoilage = "spoilage"

// SpoilageDetail is a spoilage with the batch it was drawn from.
type SpoilageDetail struct {
	Spoilage models.Spoilage
	Batch    BatchView
}

// ListSpoilages returns all spoilages, oldest first.
func (s *Service) ListSpoilages(ctx context.Context) ([]SpoilageDetail, error) {
	spoilages, err := s.store.ListSpoilages(ctx)
	if err != nil {
		return nil, err
	}

	batches, err := s.batchIndex(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]SpoilageDetail, 0, len(spoilages))
	for _, sp := range spoilages {
		out = append(out, SpoilageDetail{Spoilage: sp, Batch: batches[sp.BatchID]})
	}
	return out, nil
}

// GetSpoilage loads a spoilage with its batch.
func (s *Service) GetSpoilage(ctx context.Context, rawID string) (SpoilageDetail, error) {
	id, err := parseID(kindSpoilage, rawID)
	if err != nil {
		return SpoilageDetail{}, err
	}

	sp, err := s.store.GetSpoilage(ctx, id)
	if err != nil {
		return SpoilageDetail{}, err
	}

	view, err := s.batchView(ctx, sp.BatchID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return SpoilageDetail{}, err
	}
	return SpoilageDetail{Spoilage: sp, Batch: view}, nil
}

// RecordSpoilage deducts spoilt stock from a batch and stores the evidence images.
func (s *Service) RecordSpoilage(ctx context.Context, rawBatchID string, form SpoilageForm, images []Image) (models.Spoilage, error) {
	batchID, err := parseID(kindBatch, rawBatchID)
	if err != nil {
		return models.Spoilage{}, err
	}

	unlock := s.lockBatch(batchID)
	defer unlock()

	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return models.Spoilage{}, err
	}

	in, err := form.Parse()
	if err != nil {
		return models.Spoilage{}, err
	}
	if err := checkImages(images, s.images != nil); err != nil {
		return models.Spoilage{}, err
	}
	if err := batch.Stock.ProposeDeduction(in.Amount); err != nil {
		return models.Spoilage{}, err
	}

	sp := models.Spoilage{
		ID:      primitive.NewObjectID(),
		BatchID: batchID,
		Date:    in.Date,
		Amount:  in.Amount,
	}

	batch.Stock.AppendSpoilage(sp.ID.Hex(), sp.Amount)
	if err := models.RecomputeAvailable(&batch); err != nil {
		return models.Spoilage{}, err
	}

	if sp.ImageURLs, err = s.uploadImages(ctx, images); err != nil {
		return models.Spoilage{}, err
	}

	if err := s.store.InsertSpoilage(ctx, &sp); err != nil {
		return models.Spoilage{}, err
	}
	if err := s.store.SaveBatch(ctx, &batch); err != nil {
		s.compensate(ctx, "delete spoilage "+sp.ID.Hex(), func(ctx context.Context) error {
			return s.store.DeleteSpoilage(ctx, sp.ID)
		})
		return models.Spoilage{}, fmt.Errorf("save fruit instance after spoilage: %w", err)
	}

	s.invalidateCounts(ctx)
	s.logger.Info("spoilage recorded",
		zap.String("spoilage_id", sp.ID.Hex()),
		zap.String("batch_id", rawBatchID),
		zap.Int64("amount", sp.Amount),
		zap.Int("images", len(sp.ImageURLs)),
		zap.Int64("available", batch.Stock.Available),
	)
	return sp, nil
}

// UpdateSpoilage revises a spoilage. Previously stored images listed in the
// form are kept and new uploads are appended.
func (s *Service) UpdateSpoilage(ctx context.Context, rawID string, form SpoilageForm, images []Image) (models.Spoilage, error) {
	id, err := parseID(kindSpoilage, rawID)
	if err != nil {
		return models.Spoilage{}, err
	}

	previous, err := s.store.GetSpoilage(ctx, id)
	if err != nil {
		return models.Spoilage{}, err
	}

	in, err := form.Parse()
	if err != nil {
		return models.Spoilage{}, err
	}
	if err := checkImages(images, s.images != nil); err != nil {
		return models.Spoilage{}, err
	}

	unlock := s.lockBatch(previous.BatchID)
	defer unlock()

	// Re-read under the lock so a failed save restores the latest revision.
	if previous, err = s.store.GetSpoilage(ctx, id); err != nil {
		return models.Spoilage{}, err
	}

	batch, err := s.store.GetBatch(ctx, previous.BatchID)
	if err != nil {
		return models.Spoilage{}, err
	}

	ref := previous.ID.Hex()
	old, tracked := batch.Stock.AmountFor(ref)
	headroom := models.Ledger{Available: batch.Stock.Available + old}
	if err := headroom.ProposeDeduction(in.Amount); err != nil {
		return models.Spoilage{}, err
	}

	if tracked {
		batch.Stock.ReviseSpoilage(ref, in.Amount)
	} else {
		batch.Stock.AppendSpoilage(ref, in.Amount)
	}
	if err := models.RecomputeAvailable(&batch); err != nil {
		return models.Spoilage{}, err
	}

	uploaded, err := s.uploadImages(ctx, images)
	if err != nil {
		return models.Spoilage{}, err
	}

	sp := previous
	sp.Date = in.Date
	sp.Amount = in.Amount
	sp.ImageURLs = append(keptImages(previous.ImageURLs, in.ExistingImages), uploaded...)

	if err := s.store.UpdateSpoilage(ctx, sp); err != nil {
		return models.Spoilage{}, err
	}
	if err := s.store.SaveBatch(ctx, &batch); err != nil {
		s.compensate(ctx, "restore spoilage "+ref, func(ctx context.Context) error {
			return s.store.UpdateSpoilage(ctx, previous)
		})
		return models.Spoilage{}, fmt.Errorf("save fruit instance after spoilage update: %w", err)
	}
	return sp, nil
}

// DeleteSpoilage removes a spoilage and returns its amount to the batch.
func (s *Service) DeleteSpoilage(ctx context.Context, rawID string) error {
	id, err := parseID(kindSpoilage, rawID)
	if err != nil {
		return err
	}

	sp, err := s.store.GetSpoilage(ctx, id)
	if err != nil {
		return err
	}

	unlock := s.lockBatch(sp.BatchID)
	defer unlock()

	if sp, err = s.store.GetSpoilage(ctx, id); err != nil {
		return err
	}

	batch, err := s.store.GetBatch(ctx, sp.BatchID)
	if errors.Is(err, models.ErrNotFound) {
		s.logger.Warn("spoilage points at a missing fruit instance", zap.String("spoilage_id", rawID))
		if err := s.store.DeleteSpoilage(ctx, id); err != nil {
			return err
		}
		s.invalidateCounts(ctx)
		return nil
	}
	if err != nil {
		return err
	}

	batch.Stock.RemoveSpoilage(sp.ID.Hex())
	if err := models.RecomputeAvailable(&batch); err != nil {
		return err
	}

	if err := s.store.DeleteSpoilage(ctx, id); err != nil {
		return err
	}
	if err := s.store.SaveBatch(ctx, &batch); err != nil {
		s.compensate(ctx, "reinsert spoilage "+rawID, func(ctx context.Context) error {
			return s.store.InsertSpoilage(ctx, &sp)
		})
		return fmt.Errorf("save fruit instance after spoilage delete: %w", err)
	}

	s.invalidateCounts(ctx)
	s.logger.Info("spoilage deleted", zap.String("spoilage_id", rawID), zap.Int64("available", batch.Stock.Available))
	return nil
}

func checkImages(images []Image, enabled bool) error {
	if len(images) == 0 {
		return nil
	}
	if len(images) > MaxSpoilageImages {
		return models.NewValidationError("images", fmt.Sprintf("At most %d images can be uploaded at once.", MaxSpoilageImages))
	}
	if !enabled {
		return models.NewValidationError("images", "Image uploads are not configured.")
	}
	for _, img := range images {
		if !strings.HasPrefix(img.ContentType, "image/") {
			return models.NewValidationError("images", "Only image files can be uploaded.")
		}
	}
	return nil
}

func (s *Service) uploadImages(ctx context.Context, images []Image) ([]string, error) {
	urls := make([]string, 0, len(images))
	for _, img := range images {
		url, err := s.images.Upload(ctx, img.Filename, img.Body, img.ContentType)
		if err != nil {
			return nil, fmt.Errorf("upload image %s: %w", img.Filename, err)
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// keptImages filters stored URLs down to those the form still lists. An empty
// form list keeps everything.
func keptImages(stored, listed []string) []string {
	if len(listed) == 0 {
		return append([]string(nil), stored...)
	}

	want := make(map[string]bool, len(listed))
	for _, url := range listed {
		want[url] = true
	}

	kept := make([]string, 0, len(stored))
	for _, url := range stored {
		if want[url] {
			kept = append(kept, url)
		}
	}
	return kept
}
