// Package inventory implements the catalog and stock operations of the
// fruit inventory: categories, fruits, batches and the sale and spoilage
// events that draw down each batch ledger.
package inventory

import (
	"context"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/mamadbah2/fruitstock/internal/domain/models"
	"github.com/mamadbah2/fruitstock/internal/repository"
)

// CountsCache stores the dashboard counts between writes.
type CountsCache interface {
	GetCounts(ctx context.Context) (models.Counts, bool, error)
	SetCounts(ctx context.Context, counts models.Counts) error
	Invalidate(ctx context.Context) error
}

// ImageStore uploads spoilage evidence and returns its public URL.
type ImageStore interface {
	Upload(ctx context.Context, name string, body io.Reader, contentType string) (string, error)
}

// Image is one uploaded file waiting to be stored.
type Image struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// Service coordinates the inventory operations over a Store.
type Service struct {
	store  repository.Store
	images ImageStore
	cache  CountsCache
	logger *zap.Logger
	now    func() time.Time
	locks  *keyedMutex
}

// Option customizes a Service.
type Option func(*Service)

// WithImageStore enables spoilage image uploads.
func WithImageStore(images ImageStore) Option {
	return func(s *Service) { s.images = images }
}

// WithCountsCache serves Counts from cache.
func WithCountsCache(cache CountsCache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires a new inventory service instance.
func NewService(store repository.Store, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
		locks:  newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reference points at a document that blocks a deletion.
type Reference struct {
	Label string
	URL   string
}

// DeleteOutcome tells whether a delete went through or was refused because
// other documents still reference the target.
type DeleteOutcome struct {
	Blocked    bool
	References []Reference
}

// Counts returns the dashboard counters.
func (s *Service) Counts(ctx context.Context) (models.Counts, error) {
	if s.cache != nil {
		counts, ok, err := s.cache.GetCounts(ctx)
		if err != nil {
			s.logger.Warn("counts cache read failed", zap.Error(err))
		} else if ok {
			return counts, nil
		}
	}

	counts, err := s.store.Counts(ctx)
	if err != nil {
		return models.Counts{}, err
	}

	if s.cache != nil {
		if err := s.cache.SetCounts(ctx, counts); err != nil {
			s.logger.Warn("counts cache write failed", zap.Error(err))
		}
	}
	return counts, nil
}

func (s *Service) invalidateCounts(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("counts cache invalidation failed", zap.Error(err))
	}
}

func parseID(kind, raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, models.NewNotFound(kind, raw)
	}
	return id, nil
}

func (s *Service) lockBatch(id primitive.ObjectID) func() {
	return s.locks.Lock(id.Hex())
}

// compensate undoes an event write whose batch save failed. It runs detached
// from request cancellation so an aborted request still gets cleaned up.
func (s *Service) compensate(ctx context.Context, action string, undo func(context.Context) error) {
	if err := undo(context.WithoutCancel(ctx)); err != nil {
		s.logger.Error("compensation failed", zap.String("action", action), zap.Error(err))
		return
	}
	s.logger.Warn("event write compensated", zap.String("action", action))
}

func (s *Service) batchIndex(ctx context.Context) (map[primitive.ObjectID]BatchView, error) {
	views, err := s.ListBatches(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[primitive.ObjectID]BatchView, len(views))
	for _, v := range views {
		index[v.Batch.ID] = v
	}
	return index, nil
}
