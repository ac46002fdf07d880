package inventory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/mamadbah2/fruitstock/internal/domain/models"
	"github.com/mamadbah2/fruitstock/internal/repository/memory"
)

func newTestService(t *testing.T, opts ...Option) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewService(store, zap.NewNop(), opts...), store
}

func seedFruit(t *testing.T, svc *Service) models.Fruit {
	t.Helper()
	fruit, err := svc.CreateFruit(context.Background(), FruitForm{Name: "Mango", Origin: "Guinea"})
	require.NoError(t, err)
	return fruit
}

func seedBatch(t *testing.T, svc *Service, fruit models.Fruit, unit, size, qty string) models.FruitBatch {
	t.Helper()
	batch, err := svc.CreateBatch(context.Background(), BatchForm{
		Fruit:            fruit.ID.Hex(),
		Arrival:          "2024-03-01",
		Unit:             unit,
		Size:             size,
		QuantityReceived: qty,
	})
	require.NoError(t, err)
	return batch
}

func available(t *testing.T, svc *Service, batch models.FruitBatch) int64 {
	t.Helper()
	detail, err := svc.GetBatch(context.Background(), batch.ID.Hex())
	require.NoError(t, err)
	return detail.Batch.Stock.Available
}

func TestService_CountBatchScenario(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	batch := seedBatch(t, svc, seedFruit(t, svc), "count", "24", "30")
	assert.Equal(t, int64(720), batch.Stock.Available)

	_, err := svc.RecordSale(ctx, batch.ID.Hex(), SaleForm{Date: "2024-03-02", Amount: "1", Price: "0.50"})
	require.NoError(t, err)
	assert.Equal(t, int64(719), available(t, svc, batch))

	_, err = svc.RecordSpoilage(ctx, batch.ID.Hex(), SpoilageForm{Date: "2024-03-03", Amount: "2"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(717), available(t, svc, batch))

	detail, err := svc.GetBatch(ctx, batch.ID.Hex())
	require.NoError(t, err)
	assert.Len(t, detail.Sales, 1)
	assert.Len(t, detail.Spoilages, 1)
	assert.Equal(t, "Mango", detail.Fruit.Name)
}

func TestService_MassBatchSpoilage(t *testing.T) {
	svc, _ := newTestService(t)

	batch := seedBatch(t, svc, seedFruit(t, svc), "mass", "10", "30")
	assert.Equal(t, int64(300000), batch.Stock.Available)

	_, err := svc.RecordSpoilage(context.Background(), batch.ID.Hex(), SpoilageForm{Date: "2024-03-02", Amount: "300"}, nil)
	require.NoError(t, err)

	detail, err := svc.GetBatch(context.Background(), batch.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, int64(299700), detail.Batch.Stock.Available)
	assert.Equal(t, "299.7 kg", detail.Batch.AvailableFormatted())
}

func TestService_RecordSaleRejectsOverCapacity(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	batch := seedBatch(t, svc, seedFruit(t, svc), "mass", "0.5", "1")
	require.Equal(t, int64(500), batch.Stock.Available)

	_, err := svc.RecordSale(ctx, batch.ID.Hex(), SaleForm{Date: "2024-03-02", Amount: "1000", Price: "2"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrCapacityExceeded))

	sales, err := store.ListSales(ctx)
	require.NoError(t, err)
	assert.Empty(t, sales)
	assert.Equal(t, int64(500), available(t, svc, batch))

	_, err = svc.RecordSale(ctx, batch.ID.Hex(), SaleForm{Date: "2024-03-02", Amount: "500", Price: "2"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), available(t, svc, batch))
}

func TestService_UpdateSaleChecksAgainstFreedStock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	batch := seedBatch(t, svc, seedFruit(t, svc), "count", "10", "1")
	sale, err := svc.RecordSale(ctx, batch.ID.Hex(), SaleForm{Date: "2024-03-02", Amount: "8", Price: "1"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), available(t, svc, batch))

	updated, err := svc.UpdateSale(ctx, sale.ID.Hex(), SaleForm{Date: "2024-03-02", Amount: "10", Price: "1.25"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), updated.Amount)
	assert.Equal(t, int64(125), updated.PriceCents)
	assert.Equal(t, int64(0), available(t, svc, batch))

	_, err = svc.UpdateSale(ctx, sale.ID.Hex(), SaleForm{Date: "2024-03-02", Amount: "11", Price: "1"})
	assert.True(t, errors.Is(err, models.ErrCapacityExceeded))

	var capErr *models.CapacityExceededError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, int64(10), capErr.Available)
}

func TestService_DeleteSaleRestoresStock(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	batch := seedBatch(t, svc, seedFruit(t, svc), "count", "24", "30")
	sale, err := svc.RecordSale(ctx, batch.ID.Hex(), SaleForm{Date: "2024-03-02", Amount: "20", Price: "1"})
	require.NoError(t, err)
	assert.Equal(t, int64(700), available(t, svc, batch))

	require.NoError(t, svc.DeleteSale(ctx, sale.ID.Hex()))
	assert.Equal(t, int64(720), available(t, svc, batch))

	stored, err := store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Stock.Sales)

	err = svc.DeleteSale(ctx, sale.ID.Hex())
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestService_UpdateBatchPreservesDeductions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	fruit := seedFruit(t, svc)
	batch := seedBatch(t, svc, fruit, "count", "24", "30")
	_, err := svc.RecordSale(ctx, batch.ID.Hex(), SaleForm{Date: "2024-03-02", Amount: "20", Price: "1"})
	require.NoError(t, err)

	updated, err := svc.UpdateBatch(ctx, batch.ID.Hex(), BatchForm{
		Fruit:            fruit.ID.Hex(),
		Arrival:          "2024-03-01",
		Unit:             "mass",
		Size:             "1",
		QuantityReceived: "2",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1980), updated.Stock.Available)
	assert.Len(t, updated.Stock.Sales, 1)
}

func TestService_DeleteBatchBlockedThenAllowed(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	batch := seedBatch(t, svc, seedFruit(t, svc), "count", "6", "2")
	sale, err := svc.RecordSale(ctx, batch.ID.Hex(), SaleForm{Date: "2024-03-02", Amount: "3", Price: "1"})
	require.NoError(t, err)

	outcome, err := svc.DeleteBatch(ctx, batch.ID.Hex())
	require.NoError(t, err)
	assert.True(t, outcome.Blocked)
	require.Len(t, outcome.References, 1)
	assert.Equal(t, sale.URL(), outcome.References[0].URL)

	_, err = svc.GetBatch(ctx, batch.ID.Hex())
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSale(ctx, sale.ID.Hex()))

	outcome, err = svc.DeleteBatch(ctx, batch.ID.Hex())
	require.NoError(t, err)
	assert.False(t, outcome.Blocked)

	_, err = svc.GetBatch(ctx, batch.ID.Hex())
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestService_CatalogDeleteGuards(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	category, err := svc.CreateCategory(ctx, CategoryForm{Name: "Tropical"})
	require.NoError(t, err)

	fruit, err := svc.CreateFruit(ctx, FruitForm{Name: "Papaya", Origin: "Senegal", Category: category.ID.Hex()})
	require.NoError(t, err)
	batch := seedBatch(t, svc, fruit, "count", "1", "1")

	outcome, err := svc.DeleteCategory(ctx, category.ID.Hex())
	require.NoError(t, err)
	assert.True(t, outcome.Blocked)

	outcome, err = svc.DeleteFruit(ctx, fruit.ID.Hex())
	require.NoError(t, err)
	assert.True(t, outcome.Blocked)

	_, err = svc.DeleteBatch(ctx, batch.ID.Hex())
	require.NoError(t, err)

	outcome, err = svc.DeleteFruit(ctx, fruit.ID.Hex())
	require.NoError(t, err)
	assert.False(t, outcome.Blocked)

	outcome, err = svc.DeleteCategory(ctx, category.ID.Hex())
	require.NoError(t, err)
	assert.False(t, outcome.Blocked)
}

func TestService_CategoryNamesAreCaseInsensitive(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateCategory(ctx, CategoryForm{Name: "Citrus"})
	require.NoError(t, err)

	again, err := svc.CreateCategory(ctx, CategoryForm{Name: "  citrus "})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	other, err := svc.CreateCategory(ctx, CategoryForm{Name: "Berries"})
	require.NoError(t, err)

	_, err = svc.UpdateCategory(ctx, other.ID.Hex(), CategoryForm{Name: "CITRUS"})
	require.Error(t, err)
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Category already exists.", verr.Fields["name"])

	renamed, err := svc.UpdateCategory(ctx, first.ID.Hex(), CategoryForm{Name: "CITRUS"})
	require.NoError(t, err)
	assert.Equal(t, "CITRUS", renamed.Name)
}

func TestService_CreateFruitRejectsUnknownCategory(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateFruit(context.Background(), FruitForm{
		Name:     "Guava",
		Origin:   "Mali",
		Category: "65f000000000000000000000",
	})
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "category")
}

func TestService_InvalidIDIsNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetBatch(ctx, "not-an-id")
	assert.True(t, errors.Is(err, models.ErrNotFound))

	_, err = svc.RecordSale(ctx, "not-an-id", SaleForm{})
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestService_RecordSaleRefusesBrokenLedger(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	fruit := seedFruit(t, svc)

	data, err := bson.Marshal(bson.M{
		"fruit": fruit.ID,
		"unit":  "count",
		"size":  10,
		"stock": bson.M{
			"quantity_received": 5,
			"sales":             bson.A{bson.M{"ref": "legacy"}},
			"spoilages":         bson.A{},
			"available":         50,
		},
	})
	require.NoError(t, err)

	var batch models.FruitBatch
	require.NoError(t, bson.Unmarshal(data, &batch))
	require.NoError(t, store.InsertBatch(ctx, &batch))

	_, err = svc.RecordSale(ctx, batch.ID.Hex(), SaleForm{Date: "2024-03-02", Amount: "1", Price: "1"})
	assert.True(t, errors.Is(err, models.ErrDataIntegrity))

	sales, err := store.ListSales(ctx)
	require.NoError(t, err)
	assert.Empty(t, sales)

	stored, err := store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), stored.Stock.Available)
}

type conflictingStore struct {
	*memory.Store
}

func (s conflictingStore) SaveBatch(context.Context, *models.FruitBatch) error {
	return models.ErrVersionConflict
}

func TestService_RecordSaleCompensatesOnConflict(t *testing.T) {
	store := memory.NewStore()
	seeder := NewService(store, zap.NewNop())
	batch := seedBatch(t, seeder, seedFruit(t, seeder), "count", "5", "2")

	svc := NewService(conflictingStore{store}, zap.NewNop())
	_, err := svc.RecordSale(context.Background(), batch.ID.Hex(), SaleForm{Date: "2024-03-02", Amount: "1", Price: "1"})
	assert.True(t, errors.Is(err, models.ErrVersionConflict))

	sales, err := store.ListSales(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sales)
}

// interleavingStore runs edit right after the first event read, standing in
// for a concurrent request that commits before the batch lock is taken.
// Every batch save conflicts.
type interleavingStore struct {
	*memory.Store
	once sync.Once
	edit func()
}

func (s *interleavingStore) GetSale(ctx context.Context, id primitive.ObjectID) (models.Sale, error) {
	sale, err := s.Store.GetSale(ctx, id)
	s.once.Do(s.edit)
	return sale, err
}

func (s *interleavingStore) GetSpoilage(ctx context.Context, id primitive.ObjectID) (models.Spoilage, error) {
	sp, err := s.Store.GetSpoilage(ctx, id)
	s.once.Do(s.edit)
	return sp, err
}

func (s *interleavingStore) SaveBatch(context.Context, *models.FruitBatch) error {
	return models.ErrVersionConflict
}

func TestService_UpdateSaleCompensatesWithLatestRevision(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seeder := NewService(store, zap.NewNop())
	batch := seedBatch(t, seeder, seedFruit(t, seeder), "count", "10", "10")
	sale, err := seeder.RecordSale(ctx, batch.ID.Hex(), SaleForm{Date: "2024-03-02", Amount: "1", Price: "1"})
	require.NoError(t, err)

	racing := &interleavingStore{Store: store, edit: func() {
		concurrent := sale
		concurrent.Amount = 3
		require.NoError(t, store.UpdateSale(ctx, concurrent))
	}}
	svc := NewService(racing, zap.NewNop())

	_, err = svc.UpdateSale(ctx, sale.ID.Hex(), SaleForm{Date: "2024-03-04", Amount: "4", Price: "2"})
	assert.True(t, errors.Is(err, models.ErrVersionConflict))

	stored, err := store.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.Amount)
}

func TestService_UpdateSpoilageCompensatesWithLatestRevision(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seeder := NewService(store, zap.NewNop())
	batch := seedBatch(t, seeder, seedFruit(t, seeder), "count", "10", "10")
	sp, err := seeder.RecordSpoilage(ctx, batch.ID.Hex(), SpoilageForm{Date: "2024-03-02", Amount: "1"}, nil)
	require.NoError(t, err)

	racing := &interleavingStore{Store: store, edit: func() {
		concurrent := sp
		concurrent.Amount = 2
		require.NoError(t, store.UpdateSpoilage(ctx, concurrent))
	}}
	svc := NewService(racing, zap.NewNop())

	_, err = svc.UpdateSpoilage(ctx, sp.ID.Hex(), SpoilageForm{Date: "2024-03-04", Amount: "5"}, nil)
	assert.True(t, errors.Is(err, models.ErrVersionConflict))

	stored, err := store.GetSpoilage(ctx, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Amount)
}

func TestService_ConcurrentSalesNeverOverdraw(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	batch := seedBatch(t, svc, seedFruit(t, svc), "count", "1", "20")

	var wg sync.WaitGroup
	var mu sync.Mutex
	var accepted, rejected int
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordSale(ctx, batch.ID.Hex(), SaleForm{Date: "2024-03-02", Amount: "1", Price: "1"})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.True(t, errors.Is(err, models.ErrCapacityExceeded))
				rejected++
				return
			}
			accepted++
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, accepted)
	assert.Equal(t, 20, rejected)
	assert.Equal(t, int64(0), available(t, svc, batch))

	sales, err := store.ListSales(ctx)
	require.NoError(t, err)
	assert.Len(t, sales, 20)
	assert.Equal(t, 0, svc.locks.size())
}

type recordingImages struct {
	uploads []string
}

func (r *recordingImages) Upload(_ context.Context, name string, body io.Reader, _ string) (string, error) {
	if _, err := io.ReadAll(body); err != nil {
		return "", err
	}
	r.uploads = append(r.uploads, name)
	return "https://img.example/" + name, nil
}

func images(n int) []Image {
	out := make([]Image, n)
	for i := range out {
		out[i] = Image{Filename: fmt.Sprintf("photo-%d.jpg", i), ContentType: "image/jpeg", Body: strings.NewReader("jpeg")}
	}
	return out
}

func TestService_SpoilageImages(t *testing.T) {
	imgs := &recordingImages{}
	svc, _ := newTestService(t, WithImageStore(imgs))
	ctx := context.Background()
	batch := seedBatch(t, svc, seedFruit(t, svc), "count", "10", "10")

	_, err := svc.RecordSpoilage(ctx, batch.ID.Hex(), SpoilageForm{Date: "2024-03-02", Amount: "1"}, images(MaxSpoilageImages+1))
	assert.True(t, errors.Is(err, models.ErrValidation))
	assert.Empty(t, imgs.uploads)

	sp, err := svc.RecordSpoilage(ctx, batch.ID.Hex(), SpoilageForm{Date: "2024-03-02", Amount: "4"}, images(2))
	require.NoError(t, err)
	assert.Len(t, sp.ImageURLs, 2)

	updated, err := svc.UpdateSpoilage(ctx, sp.ID.Hex(), SpoilageForm{
		Date:           "2024-03-03",
		Amount:         "6",
		ExistingImages: []string{sp.ImageURLs[1]},
	}, images(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img.example/photo-1.jpg", "https://img.example/photo-0.jpg"}, updated.ImageURLs)
	assert.Equal(t, int64(94), available(t, svc, batch))
}

func TestService_SpoilageImagesRequireStore(t *testing.T) {
	svc, _ := newTestService(t)
	batch := seedBatch(t, svc, seedFruit(t, svc), "count", "10", "10")

	_, err := svc.RecordSpoilage(context.Background(), batch.ID.Hex(), SpoilageForm{Date: "2024-03-02", Amount: "1"}, images(1))
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "images")
}

type mockCountsCache struct {
	mock.Mock
}

func (m *mockCountsCache) GetCounts(ctx context.Context) (models.Counts, bool, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.Counts), args.Bool(1), args.Error(2)
}

func (m *mockCountsCache) SetCounts(ctx context.Context, counts models.Counts) error {
	return m.Called(ctx, counts).Error(0)
}

func (m *mockCountsCache) Invalidate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestService_CountsUsesCache(t *testing.T) {
	cache := &mockCountsCache{}
	svc, _ := newTestService(t, WithCountsCache(cache))
	ctx := context.Background()

	cache.On("Invalidate", ctx).Return(nil)
	seedFruit(t, svc)

	cache.On("GetCounts", ctx).Return(models.Counts{}, false, nil).Once()
	cache.On("SetCounts", ctx, models.Counts{Fruits: 1}).Return(nil).Once()

	counts, err := svc.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Fruits)

	cache.On("GetCounts", ctx).Return(models.Counts{Fruits: 42}, true, nil).Once()
	counts, err = svc.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), counts.Fruits)

	cache.AssertExpectations(t)
}
