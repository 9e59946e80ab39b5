package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"catalog-service/internal/attr"
	"catalog-service/internal/cache"
	"catalog-service/internal/models"
)

// memoryCache is an in-memory Cache used to observe cache-aside behavior.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	sets    int
	gets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if data, ok := c.entries[key]; ok {
		return data, nil
	}
	return nil, cache.ErrMiss
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[key] = value
	return nil
}

func (c *memoryCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

func (c *memoryCache) DelPattern(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

func (c *memoryCache) put(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

// fakeStore backs the fake repositories with shared in-memory state.
type fakeStore struct {
	mu         sync.Mutex
	categories map[uuid.UUID]models.Category
	products   map[uuid.UUID]models.Product
	variations map[uuid.UUID]models.Variation
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		categories: make(map[uuid.UUID]models.Category),
		products:   make(map[uuid.UUID]models.Product),
		variations: make(map[uuid.UUID]models.Variation),
	}
}

type fakeCategoriesRepo struct{ store *fakeStore }

func (r *fakeCategoriesRepo) Create(_ context.Context, category *models.Category) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	category.CreatedAt = time.Now()
	category.UpdatedAt = category.CreatedAt
	r.store.categories[category.ID] = *category
	return nil
}

func (r *fakeCategoriesRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Category, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	category, ok := r.store.categories[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &category, nil
}

func (r *fakeCategoriesRepo) Update(_ context.Context, category *models.Category) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.categories[category.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	category.UpdatedAt = time.Now()
	r.store.categories[category.ID] = *category
	return nil
}

func (r *fakeCategoriesRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.categories, id)
	return nil
}

func (r *fakeCategoriesRepo) List(_ context.Context) ([]models.Category, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]models.Category, 0, len(r.store.categories))
	for _, category := range r.store.categories {
		out = append(out, category)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type fakeProductsRepo struct{ store *fakeStore }

func (r *fakeProductsRepo) Create(_ context.Context, product *models.Product, variations []models.Variation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now
	stored := *product
	stored.Category = nil
	r.store.products[product.ID] = stored
	for i := range variations {
		variations[i].CreatedAt = now
		variations[i].UpdatedAt = now
		r.store.variations[variations[i].ID] = variations[i]
	}
	return nil
}

func (r *fakeProductsRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	product, ok := r.store.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if category, ok := r.store.categories[product.CategoryID]; ok {
		product.Category = &category
	}
	return &product, nil
}

func (r *fakeProductsRepo) Update(_ context.Context, product *models.Product) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.products[product.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	product.UpdatedAt = time.Now()
	stored := *product
	stored.Category = nil
	r.store.products[product.ID] = stored
	return nil
}

func (r *fakeProductsRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.products, id)
	for vid, variation := range r.store.variations {
		if variation.ProductID == id {
			delete(r.store.variations, vid)
		}
	}
	return nil
}

func (r *fakeProductsRepo) Search(_ context.Context, req *models.SearchProductsRequest) ([]models.Product, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var matched []models.Product
	for _, product := range r.store.products {
		if req.Query != "" {
			needle := strings.ToLower(req.Query)
			haystack := strings.ToLower(product.Name)
			if product.Description != nil {
				haystack += " " + strings.ToLower(*product.Description)
			}
			if !strings.Contains(haystack, needle) {
				continue
			}
		}
		if req.CategoryID != "" && product.CategoryID.String() != req.CategoryID {
			continue
		}
		if req.MinPrice != nil && product.Price.LessThan(*req.MinPrice) {
			continue
		}
		if req.MaxPrice != nil && product.Price.GreaterThan(*req.MaxPrice) {
			continue
		}
		if len(req.Attributes) > 0 {
			stored := attr.Decode(product.AttributeValues)
			ok := true
			for name, want := range req.Attributes {
				if stored[name] != want {
					ok = false
					break
				}
			}
			if !ok {
				continue
			}
		}
		matched = append(matched, product)
	}

	sort.Slice(matched, func(i, j int) bool {
		var less bool
		switch req.SortBy {
		case "price":
			less = matched[i].Price.LessThan(matched[j].Price)
		case "name":
			less = matched[i].Name < matched[j].Name
		default:
			less = matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		if req.SortOrder == "desc" {
			return !less
		}
		return less
	})

	total := int64(len(matched))
	start := (req.Page - 1) * req.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + req.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *fakeProductsRepo) Count(_ context.Context) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return int64(len(r.store.products)), nil
}

func (r *fakeProductsRepo) CountByCategory(_ context.Context, categoryID uuid.UUID) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var count int64
	for _, product := range r.store.products {
		if product.CategoryID == categoryID {
			count++
		}
	}
	return count, nil
}

func (r *fakeProductsRepo) Suggestions(_ context.Context, prefix string, limit int) ([]string, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var names []string
	lowered := strings.ToLower(prefix)
	for _, product := range r.store.products {
		if strings.HasPrefix(strings.ToLower(product.Name), lowered) {
			names = append(names, product.Name)
		}
	}
	sort.Strings(names)
	if len(names) > limit {
		names = names[:limit]
	}
	return names, nil
}

type fakeVariationsRepo struct{ store *fakeStore }

func (r *fakeVariationsRepo) ListByProduct(_ context.Context, productID uuid.UUID) ([]models.Variation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.Variation
	for _, variation := range r.store.variations {
		if variation.ProductID == productID {
			out = append(out, variation)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *fakeVariationsRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Variation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	variation, ok := r.store.variations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &variation, nil
}

func (r *fakeVariationsRepo) Create(_ context.Context, variation *models.Variation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if variation.ID == uuid.Nil {
		variation.ID = uuid.New()
	}
	variation.CreatedAt = time.Now()
	variation.UpdatedAt = variation.CreatedAt
	r.store.variations[variation.ID] = *variation
	return nil
}

func (r *fakeVariationsRepo) Update(_ context.Context, variation *models.Variation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.variations[variation.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	variation.UpdatedAt = time.Now()
	r.store.variations[variation.ID] = *variation
	return nil
}

func (r *fakeVariationsRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.variations, id)
	return nil
}

func (r *fakeVariationsRepo) CountByProduct(_ context.Context, productID uuid.UUID) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var count int64
	for _, variation := range r.store.variations {
		if variation.ProductID == productID {
			count++
		}
	}
	return count, nil
}
