package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/mamadbah2/fruitstock/internal/domain/models"
	repo "github.com/mamadbah2/fruitstock/internal/repository/sheets"
)

const dateLayout = "2006-01-02"

// Source lists the documents a stock report is built from.
type Source interface {
	ListBatches(ctx context.Context) ([]models.FruitBatch, error)
	ListFruits(ctx context.Context) ([]models.Fruit, error)
}

// Service builds stock reports, their text digest and the spreadsheet export.
type Service struct {
	source     Source
	sheets     repo.Repository
	sheetRange string
	location   *time.Location
	logger     *zap.Logger
	now        func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithSheetsExport enables ExportReport into sheetRange.
func WithSheetsExport(sheets repo.Repository, sheetRange string) Option {
	return func(s *Service) {
		s.sheets = sheets
		s.sheetRange = sheetRange
	}
}

// WithLocation sets the timezone used for report dates.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.location = loc }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires a new reporting service instance.
func NewService(source Source, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{source: source, logger: logger, location: time.UTC, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BuildStockReport summarises every batch ledger. A batch whose ledger cannot
// be summed is reported as broken instead of failing the whole report.
func (s *Service) BuildStockReport(ctx context.Context) (models.StockReport, error) {
	batches, err := s.source.ListBatches(ctx)
	if err != nil {
		return models.StockReport{}, fmt.Errorf("load fruit instances: %w", err)
	}

	fruits, err := s.source.ListFruits(ctx)
	if err != nil {
		return models.StockReport{}, fmt.Errorf("load fruits: %w", err)
	}
	names := make(map[primitive.ObjectID]string, len(fruits))
	for _, f := range fruits {
		names[f.ID] = f.Name
	}

	report := models.StockReport{
		GeneratedAt: s.now().In(s.location),
		Lines:       make([]models.StockLine, 0, len(batches)),
	}

	for _, b := range batches {
		line := models.StockLine{
			BatchID:   b.ID.Hex(),
			Fruit:     names[b.FruitID],
			Arrival:   b.Arrival,
			Unit:      b.Unit,
			Available: b.Stock.Available,
		}
		if line.Fruit == "" {
			line.Fruit = "Unknown fruit"
		}

		gross, grossErr := b.Gross()
		sold, soldErr := b.Stock.TotalSales()
		spoiled, spoiledErr := b.Stock.TotalSpoilages()
		if err := errors.Join(grossErr, soldErr, spoiledErr); err != nil {
			s.logger.Warn("skip unreadable ledger in stock report", zap.String("batch_id", line.BatchID), zap.Error(err))
			line.Broken = true
			report.Broken++
			report.Lines = append(report.Lines, line)
			continue
		}

		line.Gross = gross
		line.Sold = sold
		line.Spoiled = spoiled
		line.Overallocated = b.Overallocated()
		if line.Overallocated {
			report.Overallocated++
		}

		if b.Unit == models.UnitMass {
			report.SoldGrams += sold
			report.SpoiledGrams += spoiled
		} else {
			report.SoldPieces += sold
			report.SpoiledPieces += spoiled
		}
		report.Lines = append(report.Lines, line)
	}

	sort.SliceStable(report.Lines, func(i, j int) bool {
		a, b := report.Lines[i], report.Lines[j]
		if a.Fruit != b.Fruit {
			return a.Fruit < b.Fruit
		}
		return a.Arrival.Before(b.Arrival)
	})

	return report, nil
}

// Digest renders the report as a short text message.
func Digest(report models.StockReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Stock report %s\n", report.GeneratedAt.Format(dateLayout))
	if report.Batches() == 0 {
		b.WriteString("No fruit instances in stock yet.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Batches: %d (%d over-allocated, %d unreadable)\n", report.Batches(), report.Overallocated, report.Broken)
	fmt.Fprintf(&b, "Sold: %s, %s\n",
		models.FormatQuantity(models.UnitMass, report.SoldGrams),
		models.FormatQuantity(models.UnitCount, report.SoldPieces))
	fmt.Fprintf(&b, "Spoiled: %s, %s\n",
		models.FormatQuantity(models.UnitMass, report.SpoiledGrams),
		models.FormatQuantity(models.UnitCount, report.SpoiledPieces))
	b.WriteString("\n")

	for _, line := range report.Lines {
		fmt.Fprintf(&b, "- %s (%s): ", line.Fruit, line.ArrivalFormatted())
		if line.Broken {
			b.WriteString("ledger unreadable\n")
			continue
		}
		fmt.Fprintf(&b, "%s available of %s", line.Format(line.Available), line.Format(line.Gross))
		if line.Overallocated {
			b.WriteString(" OVER-ALLOCATED")
		}
		b.WriteString("\n")
	}

	return b.String()
}

// ExportReport appends one row per line to the configured sheet. A report
// date already present in the first column is not exported twice. It
// reports whether rows were written.
func (s *Service) ExportReport(ctx context.Context, report models.StockReport) (bool, error) {
	if s.sheets == nil {
		return false, nil
	}

	day := report.GeneratedAt.Format(dateLayout)

	rows, err := s.sheets.ReadRange(ctx, s.sheetRange)
	if err != nil {
		return false, fmt.Errorf("load exported reports: %w", err)
	}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		exported, err := parseDate(row[0])
		if err != nil {
			continue
		}
		if exported.Format(dateLayout) == day {
			s.logger.Info("stock report already exported", zap.String("date", day))
			return false, nil
		}
	}

	out := make([][]interface{}, 0, len(report.Lines))
	for _, line := range report.Lines {
		out = append(out, []interface{}{
			day,
			line.BatchID,
			line.Fruit,
			string(line.Unit),
			line.Gross,
			line.Sold,
			line.Spoiled,
			line.Available,
			line.Overallocated,
			line.Broken,
		})
	}

	if err := s.sheets.AppendRows(ctx, s.sheetRange, out); err != nil {
		return false, fmt.Errorf("export stock report: %w", err)
	}

	s.logger.Info("stock report exported", zap.String("date", day), zap.Int("rows", len(out)))
	return len(out) > 0, nil
}

func parseDate(value interface{}) (time.Time, error) {
	str, ok := value.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("unexpected date type %T", value)
	}
	return time.Parse(dateLayout, strings.TrimSpace(str))
}
