package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/fruitstock/internal/domain/models"
	"github.com/mamadbah2/fruitstock/pkg/clients/whatsapp"
)

// Reporter builds and exports the stock report.
type Reporter interface {
	BuildStockReport(ctx context.Context) (models.StockReport, error)
	ExportReport(ctx context.Context, report models.StockReport) (bool, error)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron      *cron.Cron
	schedule  string
	reporter  Reporter
	messenger whatsapp.Client
	recipient string
	digest    func(models.StockReport) string
	logger    *zap.Logger
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithDigestRecipient sends the text digest of every report to recipient.
func WithDigestRecipient(client whatsapp.Client, recipient string, digest func(models.StockReport) string) Option {
	return func(s *Scheduler) {
		s.messenger = client
		s.recipient = recipient
		s.digest = digest
	}
}

// NewScheduler creates a new scheduler instance running the daily stock
// report on schedule (standard 5 field cron) in loc.
func NewScheduler(schedule string, loc *time.Location, reporter Reporter, logger *zap.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}

	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		schedule: schedule,
		reporter: reporter,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the report job and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("schedule", s.schedule))

	if _, err := s.cron.AddFunc(s.schedule, s.runDailyReport); err != nil {
		return fmt.Errorf("schedule daily stock report: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runDailyReport() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := s.RunDailyReport(ctx); err != nil {
		s.logger.Error("daily stock report failed", zap.Error(err))
	}
}

// RunDailyReport builds the stock report, exports it and sends the digest.
// Export and delivery are attempted independently.
func (s *Scheduler) RunDailyReport(ctx context.Context) error {
	s.logger.Info("generating daily stock report")

	report, err := s.reporter.BuildStockReport(ctx)
	if err != nil {
		return fmt.Errorf("build stock report: %w", err)
	}
	if report.Overallocated > 0 || report.Broken > 0 {
		s.logger.Warn("stock report has inconsistent batches",
			zap.Int("overallocated", report.Overallocated),
			zap.Int("broken", report.Broken),
		)
	}

	var errs []error
	if _, err := s.reporter.ExportReport(ctx, report); err != nil {
		errs = append(errs, err)
	}

	if s.messenger != nil && s.recipient != "" {
		if err := whatsapp.SendLongText(ctx, s.messenger, s.recipient, s.digest(report)); err != nil {
			errs = append(errs, fmt.Errorf("send stock digest: %w", err))
		} else {
			s.logger.Info("stock digest sent successfully")
		}
	}

	return errors.Join(errs...)
}
