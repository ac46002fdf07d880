package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/mamadbah2/fruitstock/internal/domain/models"
	"github.com/mamadbah2/fruitstock/internal/repository/memory"
)

var reportTime = time.Date(2024, 3, 9, 20, 0, 0, 0, time.UTC)

func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	mango := models.Fruit{Name: "Mango", Origin: "Guinea"}
	require.NoError(t, store.InsertFruit(ctx, &mango))
	apple := models.Fruit{Name: "Apple", Origin: "France"}
	require.NoError(t, store.InsertFruit(ctx, &apple))

	mangoes := models.FruitBatch{FruitID: mango.ID, Unit: models.UnitMass, Size: 10, Arrival: reportTime.AddDate(0, 0, -8)}
	mangoes.Stock.QuantityReceived = 30
	mangoes.Stock.AppendSale("s1", 1500)
	mangoes.Stock.AppendSpoilage("p1", 300)
	require.NoError(t, models.RecomputeAvailable(&mangoes))
	require.NoError(t, store.InsertBatch(ctx, &mangoes))

	apples := models.FruitBatch{FruitID: apple.ID, Unit: models.UnitCount, Size: 1, Arrival: reportTime.AddDate(0, 0, -2)}
	apples.Stock.QuantityReceived = 5
	apples.Stock.AppendSale("s2", 4)
	apples.Stock.AppendSale("s3", 4)
	require.NoError(t, models.RecomputeAvailable(&apples))
	require.NoError(t, store.InsertBatch(ctx, &apples))

	return store
}

func newTestService(store Source, opts ...Option) *Service {
	opts = append([]Option{WithClock(func() time.Time { return reportTime })}, opts...)
	return NewService(store, zap.NewNop(), opts...)
}

func TestBuildStockReport(t *testing.T) {
	svc := newTestService(seedStore(t))

	report, err := svc.BuildStockReport(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, report.Batches())
	assert.Equal(t, 1, report.Overallocated)
	assert.Equal(t, 0, report.Broken)
	assert.Equal(t, int64(1500), report.SoldGrams)
	assert.Equal(t, int64(300), report.SpoiledGrams)
	assert.Equal(t, int64(8), report.SoldPieces)

	apples := report.Lines[0]
	assert.Equal(t, "Apple", apples.Fruit)
	assert.Equal(t, int64(-3), apples.Available)
	assert.True(t, apples.Overallocated)

	mangoes := report.Lines[1]
	assert.Equal(t, int64(300000), mangoes.Gross)
	assert.Equal(t, int64(298200), mangoes.Available)
	assert.False(t, mangoes.Overallocated)
}

func TestBuildStockReport_FlagsBrokenLedger(t *testing.T) {
	store := memory.NewStore()
	data, err := bson.Marshal(bson.M{
		"unit": "count", "size": 1,
		"stock": bson.M{"quantity_received": 3, "sales": bson.A{bson.M{"ref": "x", "amount": "two"}}, "available": 1},
	})
	require.NoError(t, err)
	var batch models.FruitBatch
	require.NoError(t, bson.Unmarshal(data, &batch))
	require.NoError(t, store.InsertBatch(context.Background(), &batch))

	report, err := newTestService(store).BuildStockReport(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Lines, 1)
	assert.True(t, report.Lines[0].Broken)
	assert.Equal(t, "Unknown fruit", report.Lines[0].Fruit)
	assert.Equal(t, 1, report.Broken)
	assert.Contains(t, Digest(report), "ledger unreadable")
}

func TestDigest(t *testing.T) {
	report, err := newTestService(seedStore(t)).BuildStockReport(context.Background())
	require.NoError(t, err)

	digest := Digest(report)
	assert.Contains(t, digest, "Stock report 2024-03-09")
	assert.Contains(t, digest, "Batches: 2 (1 over-allocated, 0 unreadable)")
	assert.Contains(t, digest, "Sold: 1.5 kg, 8 pieces")
	assert.Contains(t, digest, "- Mango (Mar 1, 2024): 298.2 kg available of 300 kg")
	assert.Contains(t, digest, "- Apple (Mar 7, 2024): -3 pieces available of 5 pieces OVER-ALLOCATED")

	empty := Digest(models.StockReport{GeneratedAt: reportTime})
	assert.Contains(t, empty, "No fruit instances in stock yet.")
}

type fakeSheets struct {
	existing [][]interface{}
	appended [][]interface{}
	readErr  error
}

func (f *fakeSheets) AppendRows(_ context.Context, _ string, rows [][]interface{}) error {
	f.appended = append(f.appended, rows...)
	return nil
}

func (f *fakeSheets) ReadRange(context.Context, string) ([][]interface{}, error) {
	return f.existing, f.readErr
}

func TestExportReport(t *testing.T) {
	sheets := &fakeSheets{existing: [][]interface{}{{"date", "batch"}, {"2024-03-08", "abc"}}}
	svc := newTestService(seedStore(t), WithSheetsExport(sheets, "Stock!A:J"))

	report, err := svc.BuildStockReport(context.Background())
	require.NoError(t, err)

	exported, err := svc.ExportReport(context.Background(), report)
	require.NoError(t, err)
	assert.True(t, exported)
	require.Len(t, sheets.appended, 2)
	assert.Equal(t, "2024-03-09", sheets.appended[0][0])
	assert.Equal(t, "Apple", sheets.appended[0][2])
	assert.Equal(t, true, sheets.appended[0][8])

	sheets.existing = append(sheets.existing, sheets.appended...)
	exported, err = svc.ExportReport(context.Background(), report)
	require.NoError(t, err)
	assert.False(t, exported)
	assert.Len(t, sheets.appended, 2)
}

func TestExportReport_Disabled(t *testing.T) {
	exported, err := newTestService(memory.NewStore()).ExportReport(context.Background(), models.StockReport{})
	require.NoError(t, err)
	assert.False(t, exported)
}

func TestExportReport_ReadFailure(t *testing.T) {
	sheets := &fakeSheets{readErr: errors.New("quota exceeded")}
	svc := newTestService(memory.NewStore(), WithSheetsExport(sheets, "Stock!A:J"))

	_, err := svc.ExportReport(context.Background(), models.StockReport{GeneratedAt: reportTime})
	assert.ErrorContains(t, err, "quota exceeded")
}
