// Package memory is an in-process repository.Store used by tests and by local
// runs without a MongoDB deployment. It mirrors the MongoDB adapter semantics:
// not found errors, version-guarded batch saves, sort orders.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mamadbah2/fruitstock/internal/domain/models"
	"github.com/mamadbah2/fruitstock/internal/repository"
)

// Store keeps every collection in maps guarded by a single RWMutex.
type Store struct {
	mu         sync.RWMutex
	categories map[primitive.ObjectID]models.Category
	fruits     map[primitive.ObjectID]models.Fruit
	batches    map[primitive.ObjectID]models.FruitBatch
	sales      map[primitive.ObjectID]models.Sale
	spoilages  map[primitive.ObjectID]models.Spoilage
	now        func() time.Time
}

var _ repository.Store = (*Store)(nil)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		categories: make(map[primitive.ObjectID]models.Category),
		fruits:     make(map[primitive.ObjectID]models.Fruit),
		batches:    make(map[primitive.ObjectID]models.FruitBatch),
		sales:      make(map[primitive.ObjectID]models.Sale),
		spoilages:  make(map[primitive.ObjectID]models.Spoilage),
		now:        time.Now,
	}
}

func (s *Store) ListCategories(_ context.Context) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := values(s.categories, nil)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, id primitive.ObjectID) (models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return models.Category{}, models.NewNotFound("category", id.Hex())
	}
	return c, nil
}

func (s *Store) FindCategoryByName(_ context.Context, name string) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := nameKey(name)
	for _, c := range s.categories {
		if c.NameKey == key {
			found := c
			return &found, nil
		}
	}
	return nil, nil
}

func (s *Store) InsertCategory(_ context.Context, c *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.NameKey = nameKey(c.Name)
	for _, existing := range s.categories {
		if existing.NameKey == c.NameKey {
			return models.NewValidationError("name", "Category already exists.")
		}
	}
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	s.categories[c.ID] = *c
	return nil
}

func (s *Store) UpdateCategory(_ context.Context, c models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[c.ID]; !ok {
		return models.NewNotFound("category", c.ID.Hex())
	}
	c.NameKey = nameKey(c.Name)
	for id, existing := range s.categories {
		if id != c.ID && existing.NameKey == c.NameKey {
			return models.NewValidationError("name", "Category already exists.")
		}
	}
	s.categories[c.ID] = c
	return nil
}

func (s *Store) DeleteCategory(_ context.Context, id primitive.ObjectID) error {
	return remove(&s.mu, s.categories, "category", id)
}

func (s *Store) ListFruits(_ context.Context) ([]models.Fruit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortFruits(values(s.fruits, nil)), nil
}

func (s *Store) ListFruitsByCategory(_ context.Context, categoryID primitive.ObjectID) ([]models.Fruit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortFruits(values(s.fruits, func(f models.Fruit) bool { return f.HasCategory(categoryID) })), nil
}

func (s *Store) GetFruit(_ context.Context, id primitive.ObjectID) (models.Fruit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.fruits[id]
	if !ok {
		return models.Fruit{}, models.NewNotFound("fruit", id.Hex())
	}
	return f, nil
}

func (s *Store) InsertFruit(_ context.Context, f *models.Fruit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.ID.IsZero() {
		f.ID = primitive.NewObjectID()
	}
	s.fruits[f.ID] = *f
	return nil
}

func (s *Store) UpdateFruit(_ context.Context, f models.Fruit) error {
	return replace(&s.mu, s.fruits, "fruit", f.ID, f)
}

func (s *Store) DeleteFruit(_ context.Context, id primitive.ObjectID) error {
	return remove(&s.mu, s.fruits, "fruit", id)
}

func (s *Store) ListBatches(_ context.Context) ([]models.FruitBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortBatches(cloneBatches(values(s.batches, nil))), nil
}

func (s *Store) ListBatchesByFruit(_ context.Context, fruitID primitive.ObjectID) ([]models.FruitBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := values(s.batches, func(b models.FruitBatch) bool { return b.FruitID == fruitID })
	return sortBatches(cloneBatches(out)), nil
}

func (s *Store) GetBatch(_ context.Context, id primitive.ObjectID) (models.FruitBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[id]
	if !ok {
		return models.FruitBatch{}, models.NewNotFound("fruit instance", id.Hex())
	}
	return cloneBatch(b), nil
}

func (s *Store) InsertBatch(_ context.Context, b *models.FruitBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	b.Version = 1
	b.CreatedAt = now
	b.UpdatedAt = now
	s.batches[b.ID] = cloneBatch(*b)
	return nil
}

func (s *Store) SaveBatch(_ context.Context, b *models.FruitBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.batches[b.ID]
	if !ok {
		return models.NewNotFound("fruit instance", b.ID.Hex())
	}
	if stored.Version != b.Version {
		return models.ErrVersionConflict
	}

	b.Version++
	b.UpdatedAt = s.now().UTC()
	s.batches[b.ID] = cloneBatch(*b)
	return nil
}

func (s *Store) DeleteBatch(_ context.Context, id primitive.ObjectID) error {
	return remove(&s.mu, s.batches, "fruit instance", id)
}

func (s *Store) ListSales(_ context.Context) ([]models.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortSales(values(s.sales, nil)), nil
}

func (s *Store) ListSalesByBatch(_ context.Context, batchID primitive.ObjectID) ([]models.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortSales(values(s.sales, func(sale models.Sale) bool { return sale.BatchID == batchID })), nil
}

func (s *Store) GetSale(_ context.Context, id primitive.ObjectID) (models.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return models.Sale{}, models.NewNotFound("sale", id.Hex())
	}
	return sale, nil
}

func (s *Store) InsertSale(_ context.Context, sale *models.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.ID.IsZero() {
		sale.ID = primitive.NewObjectID()
	}
	s.sales[sale.ID] = *sale
	return nil
}

func (s *Store) UpdateSale(_ context.Context, sale models.Sale) error {
	return replace(&s.mu, s.sales, "sale", sale.ID, sale)
}

func (s *Store) DeleteSale(_ context.Context, id primitive.ObjectID) error {
	return remove(&s.mu, s.sales, "sale", id)
}

func (s *Store) ListSpoilages(_ context.Context) ([]models.Spoilage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortSpoilages(values(s.spoilages, nil)), nil
}

func (s *Store) ListSpoilagesByBatch(_ context.Context, batchID primitive.ObjectID) ([]models.Spoilage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortSpoilages(values(s.spoilages, func(sp models.Spoilage) bool { return sp.BatchID == batchID })), nil
}

func (s *Store) GetSpoilage(_ context.Context, id primitive.ObjectID) (models.Spoilage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sp, ok := s.spoilages[id]
	if !ok {
		return models.Spoilage{}, models.NewNotFound("spoilage", id.Hex())
	}
	sp.ImageURLs = append([]string(nil), sp.ImageURLs...)
	return sp, nil
}

func (s *Store) InsertSpoilage(_ context.Context, sp *models.Spoilage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sp.ID.IsZero() {
		sp.ID = primitive.NewObjectID()
	}
	stored := *sp
	stored.ImageURLs = append([]string(nil), sp.ImageURLs...)
	s.spoilages[sp.ID] = stored
	return nil
}

func (s *Store) UpdateSpoilage(_ context.Context, sp models.Spoilage) error {
	sp.ImageURLs = append([]string(nil), sp.ImageURLs...)
	return replace(&s.mu, s.spoilages, "spoilage", sp.ID, sp)
}

func (s *Store) DeleteSpoilage(_ context.Context, id primitive.ObjectID) error {
	return remove(&s.mu, s.spoilages, "spoilage", id)
}

func (s *Store) Counts(_ context.Context) (models.Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return models.Counts{
		Fruits:     int64(len(s.fruits)),
		Categories: int64(len(s.categories)),
		Batches:    int64(len(s.batches)),
		Sales:      int64(len(s.sales)),
		Spoilages:  int64(len(s.spoilages)),
	}, nil
}

func values[T any](m map[primitive.ObjectID]T, keep func(T) bool) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func replace[T any](mu *sync.RWMutex, m map[primitive.ObjectID]T, kind string, id primitive.ObjectID, v T) error {
	mu.Lock()
	defer mu.Unlock()

	if _, ok := m[id]; !ok {
		return models.NewNotFound(kind, id.Hex())
	}
	m[id] = v
	return nil
}

func remove[T any](mu *sync.RWMutex, m map[primitive.ObjectID]T, kind string, id primitive.ObjectID) error {
	mu.Lock()
	defer mu.Unlock()

	if _, ok := m[id]; !ok {
		return models.NewNotFound(kind, id.Hex())
	}
	delete(m, id)
	return nil
}

func cloneBatch(b models.FruitBatch) models.FruitBatch {
	b.Stock.Sales = append([]models.Deduction(nil), b.Stock.Sales...)
	b.Stock.Spoilages = append([]models.Deduction(nil), b.Stock.Spoilages...)
	return b
}

func cloneBatches(in []models.FruitBatch) []models.FruitBatch {
	for i := range in {
		in[i] = cloneBatch(in[i])
	}
	return in
}

func sortFruits(in []models.Fruit) []models.Fruit {
	sort.Slice(in, func(i, j int) bool { return in[i].Name < in[j].Name })
	return in
}

func sortBatches(in []models.FruitBatch) []models.FruitBatch {
	sort.Slice(in, func(i, j int) bool {
		if in[i].FruitID != in[j].FruitID {
			return in[i].FruitID.Hex() < in[j].FruitID.Hex()
		}
		return in[i].Arrival.Before(in[j].Arrival)
	})
	return in
}

func sortSales(in []models.Sale) []models.Sale {
	sort.Slice(in, func(i, j int) bool { return in[i].Date.After(in[j].Date) })
	return in
}

func sortSpoilages(in []models.Spoilage) []models.Spoilage {
	sort.Slice(in, func(i, j int) bool { return in[i].Date.Before(in[j].Date) })
	for i := range in {
		in[i].ImageURLs = append([]string(nil), in[i].ImageURLs...)
	}
	return in
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
