package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"catalog-service/internal/attr"
	"catalog-service/internal/cache"
	"catalog-service/internal/events"
	"catalog-service/internal/models"
	"catalog-service/internal/repository"
)

const productListCachePattern = "products:list:*"

func productCacheKey(id uuid.UUID) string {
	return "product:" + id.String()
}

func productListCacheKey(req *models.SearchProductsRequest) string {
	return cache.QueryKey("products:list", req)
}

// ProductService is the product validation and persistence engine together
// with the cache-aside read path. All I/O runs under the caller's context;
// validation happens entirely before any store mutation, and a failed
// persist leaves the cache untouched.
type ProductService struct {
	products   repository.ProductsRepository
	variations repository.VariationsRepository
	categories repository.CategoriesRepository
	cache      cache.Cache
	logger     *logrus.Logger
	publisher  *events.Publisher
}

func NewProductService(
	products repository.ProductsRepository,
	variations repository.VariationsRepository,
	categories repository.CategoriesRepository,
	c cache.Cache,
	logger *logrus.Logger,
	publisher *events.Publisher,
) *ProductService {
	return &ProductService{
		products:   products,
		variations: variations,
		categories: categories,
		cache:      c,
		logger:     logger,
		publisher:  publisher,
	}
}

// fieldLookup indexes a category's field definitions by name.
func fieldLookup(category *models.Category) map[string]models.FieldDefinition {
	lookup := make(map[string]models.FieldDefinition, len(category.Fields))
	for _, field := range category.Fields {
		lookup[field.Name] = field
	}
	return lookup
}

// sortedNames returns the attribute names in stable order so accumulated
// violations come back deterministically.
func sortedNames(m attr.Map) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// validateAttributes checks a submitted attribute map against the category
// schema: undefined names and type mismatches are accumulated, never
// fail-fast. requireAll additionally demands every required field.
func validateAttributes(collector *violationCollector, category *models.Category, fields attr.Map, requireAll bool) {
	lookup := fieldLookup(category)

	if requireAll {
		for _, def := range category.Fields {
			if !def.Required {
				continue
			}
			if value, ok := fields[def.Name]; !ok || value == nil {
				collector.missingRequired(def.Name)
			}
		}
	}

	for _, name := range sortedNames(fields) {
		def, ok := lookup[name]
		if !ok {
			collector.undefined(name)
			continue
		}
		if err := attr.Validate(fields[name], def.Type); err != nil {
			collector.typeMismatch(name, def.Type, err)
		}
	}
}

// resolveCategory parses and loads the referenced category.
func (s *ProductService) resolveCategory(ctx context.Context, ref models.IDRef) (*models.Category, error) {
	categoryID, err := uuid.Parse(ref.ID)
	if err != nil {
		return nil, ErrInvalidID
	}
	category, err := s.categories.GetByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return category, nil
}

// buildView converts the stored shape into the client shape: the persisted
// pair list becomes the flattened fields object and never leaks.
func buildView(product *models.Product, variations []models.Variation) *models.ProductView {
	return &models.ProductView{
		ID:            product.ID,
		Name:          product.Name,
		Description:   product.Description,
		Price:         product.Price.StringFixed(2),
		CategoryID:    product.CategoryID,
		Category:      product.Category,
		Fields:        attr.Decode(product.AttributeValues),
		Images:        product.Images,
		HasVariations: product.HasVariations,
		Variations:    variations,
		CreatedBy:     product.CreatedBy,
		CreatedAt:     product.CreatedAt,
		UpdatedAt:     product.UpdatedAt,
	}
}

// generateSKU derives a readable SKU from the product id.
func generateSKU(productID uuid.UUID, ordinal int) string {
	compact := strings.ToUpper(strings.ReplaceAll(productID.String(), "-", ""))
	if ordinal == 0 {
		return "SKU-" + compact[:8]
	}
	return "SKU-" + compact[:8] + "-" + strings.ToUpper(uuid.New().String()[:4])
}

// Create validates the submitted product against its category schema and persists the
// product together with its variations in one transaction. When no
// variations are submitted, one default variation carrying the base price
// and a generated SKU is synthesized.
func (s *ProductService) Create(ctx context.Context, actor models.Actor, req *models.CreateProductRequest) (*models.ProductView, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	collector := &violationCollector{}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		collector.invalid("name", "product name must not be empty")
	} else if len(name) > 200 {
		collector.invalid("name", "product name too long")
	}
	if req.Description != nil && len(*req.Description) > 5000 {
		collector.invalid("description", "description too long")
	}
	if !req.Price.IsPositive() {
		collector.invalid("price", "price must be positive")
	}
	if err := collector.err(); err != nil {
		return nil, err
	}

	if req.Category.IsZero() {
		return nil, ErrInvalidID
	}
	category, err := s.resolveCategory(ctx, req.Category)
	if err != nil {
		return nil, err
	}

	fields := req.Fields
	if fields == nil {
		fields = attr.Map{}
	}
	validateAttributes(collector, category, fields, true)
	if err := collector.err(); err != nil {
		return nil, err
	}

	price := req.Price.Round(2)
	product := &models.Product{
		ID:              uuid.New(),
		Name:            name,
		Description:     req.Description,
		Price:           price,
		CategoryID:      category.ID,
		AttributeValues: models.AttributePairs(attr.Encode(fields)),
		Images:          models.StringArray(req.Images),
		HasVariations:   true,
		CreatedBy:       actor.ID,
	}
	if product.Images == nil {
		product.Images = models.StringArray{}
	}

	variations := s.buildVariations(product, price, req.Variations)

	if err := s.products.Create(ctx, product, variations); err != nil {
		return nil, err
	}

	s.invalidateLists(ctx)
	product.Category = category
	view := buildView(product, variations)
	s.publisher.Publish(ctx, events.ProductCreated, actor.ID, product.ID.String(), product.Name, view)
	return view, nil
}

// buildVariations materializes the submitted variations, or the synthesized
// default when none were given. Exactly one variation ends up marked
// default.
func (s *ProductService) buildVariations(product *models.Product, price decimal.Decimal, inputs []models.VariationInput) []models.Variation {
	if len(inputs) == 0 {
		return []models.Variation{{
			ID:        uuid.New(),
			ProductID: product.ID,
			Name:      "Default",
			Price:     price,
			SKU:       generateSKU(product.ID, 0),
			IsDefault: true,
			Stock:     0,
		}}
	}

	variations := make([]models.Variation, 0, len(inputs))
	hasDefault := false
	for i, input := range inputs {
		v := models.Variation{
			ID:        uuid.New(),
			ProductID: product.ID,
			Name:      input.Name,
			Price:     input.Price.Round(2),
			SKU:       input.SKU,
			IsDefault: input.IsDefault,
			Stock:     input.Stock,
		}
		if v.Name == "" {
			v.Name = "Default"
		}
		if !v.Price.IsPositive() {
			v.Price = price
		}
		if v.SKU == "" {
			v.SKU = generateSKU(product.ID, i)
		}
		if v.IsDefault {
			hasDefault = true
		}
		variations = append(variations, v)
	}
	if !hasDefault {
		variations[0].IsDefault = true
	}
	return variations
}

// GetByID serves a product in client shape. Reads go through the cache
// unless skipCache is set; misses load from the store, format through the
// codec and repopulate the cache with the detail TTL.
func (s *ProductService) GetByID(ctx context.Context, id string, skipCache bool) (*models.ProductView, error) {
	productID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidID
	}

	key := productCacheKey(productID)
	if !skipCache {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var view models.ProductView
			if err := json.Unmarshal(data, &view); err == nil {
				return &view, nil
			}
		} else if !errors.Is(err, cache.ErrMiss) {
			s.logger.WithError(err).Warn("Product cache read failed, falling back to store")
		}
	}

	view, err := s.loadView(ctx, productID)
	if err != nil {
		return nil, err
	}

	if !skipCache {
		s.cacheSet(ctx, key, view, detailCacheTTL)
	}
	return view, nil
}

// loadView reads a product and its variations from the store and formats
// the client shape.
func (s *ProductService) loadView(ctx context.Context, productID uuid.UUID) (*models.ProductView, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	variations, err := s.variations.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return buildView(product, variations), nil
}

// List serves a filtered, sorted, paginated product page. Whole pages are
// cached, pagination metadata included, under a deterministic digest of the
// full parameter set.
func (s *ProductService) List(ctx context.Context, req *models.SearchProductsRequest) (*models.ProductPage, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = 10
	}
	if req.CategoryID != "" {
		if _, err := uuid.Parse(req.CategoryID); err != nil {
			return nil, ErrInvalidID
		}
	}

	key := productListCacheKey(req)
	if !req.SkipCache {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var page models.ProductPage
			if err := json.Unmarshal(data, &page); err == nil {
				return &page, nil
			}
		} else if !errors.Is(err, cache.ErrMiss) {
			s.logger.WithError(err).Warn("Product list cache read failed, falling back to store")
		}
	}

	products, total, err := s.products.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	views := make([]models.ProductView, 0, len(products))
	for i := range products {
		views = append(views, *buildView(&products[i], nil))
	}

	totalPages := int((total + int64(req.Limit) - 1) / int64(req.Limit))
	page := &models.ProductPage{
		Products: views,
		Pagination: models.PaginationInfo{
			Page:        req.Page,
			Limit:       req.Limit,
			Total:       total,
			TotalPages:  totalPages,
			HasNext:     req.Page < totalPages,
			HasPrevious: req.Page > 1,
		},
	}

	if !req.SkipCache {
		s.cacheSet(ctx, key, page, listCacheTTL)
	}
	return page, nil
}

// Count returns the total number of products.
func (s *ProductService) Count(ctx context.Context) (int64, error) {
	return s.products.Count(ctx)
}

// Suggestions returns product name completions for a prefix.
func (s *ProductService) Suggestions(ctx context.Context, prefix string, limit int) ([]string, error) {
	if strings.TrimSpace(prefix) == "" {
		return []string{}, nil
	}
	return s.products.Suggestions(ctx, prefix, limit)
}

// Update applies a partial update. Attribute merge is additive-overwrite:
// stored attributes are decoded to a map, submitted non-null values overlay
// it and omitted names are preserved. Null or empty-string values are
// no-ops; UnsetFields removes optional attributes explicitly. Only the
// touched subset is re-validated against the effective category schema.
// The cache entry is refreshed write-through after a successful persist.
func (s *ProductService) Update(ctx context.Context, actor models.Actor, id string, req *models.UpdateProductRequest) (*models.ProductView, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	productID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	collector := &violationCollector{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		switch {
		case name == "":
			collector.invalid("name", "product name must not be empty")
		case len(name) > 200:
			collector.invalid("name", "product name too long")
		default:
			product.Name = name
		}
	}
	if req.Description != nil {
		if len(*req.Description) > 5000 {
			collector.invalid("description", "description too long")
		} else {
			product.Description = req.Description
		}
	}
	if req.Price != nil {
		if !req.Price.IsPositive() {
			collector.invalid("price", "price must be positive")
		} else {
			product.Price = req.Price.Round(2)
		}
	}
	if err := collector.err(); err != nil {
		return nil, err
	}

	category := product.Category
	if req.Category != nil {
		category, err = s.resolveCategory(ctx, *req.Category)
		if err != nil {
			return nil, err
		}
		product.CategoryID = category.ID
	}
	if category == nil {
		category, err = s.categories.GetByID(ctx, product.CategoryID)
		if err != nil {
			return nil, err
		}
	}

	if len(req.Fields) > 0 || len(req.UnsetFields) > 0 {
		merged := attr.Decode(product.AttributeValues)
		lookup := fieldLookup(category)

		touched := attr.Map{}
		for _, name := range sortedNames(req.Fields) {
			value := req.Fields[name]
			if value == nil {
				continue
			}
			if str, ok := value.(string); ok && str == "" {
				continue
			}
			touched[name] = value
			merged[name] = value
		}

		validateAttributes(collector, category, touched, false)

		for _, name := range req.UnsetFields {
			if def, ok := lookup[name]; ok && def.Required {
				collector.invalid(name, "cannot unset a required field")
				continue
			}
			delete(merged, name)
		}

		for _, def := range category.Fields {
			if !def.Required {
				continue
			}
			if value, ok := merged[def.Name]; !ok || value == nil {
				collector.missingRequired(def.Name)
			}
		}

		if err := collector.err(); err != nil {
			return nil, err
		}
		product.AttributeValues = models.AttributePairs(attr.Encode(merged))
	}

	if req.Images != nil {
		product.Images = models.StringArray(*req.Images)
	}

	if err := s.products.Update(ctx, product); err != nil {
		return nil, err
	}

	product.Category = category
	view, err := s.refreshDetail(ctx, product)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, events.ProductUpdated, actor.ID, product.ID.String(), product.Name, view)
	return view, nil
}

// Delete hard-deletes a product and synchronously drops its cache entry so
// a follow-up read cannot resurrect it.
func (s *ProductService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}

	productID, err := uuid.Parse(id)
	if err != nil {
		return ErrInvalidID
	}
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		return err
	}

	if err := s.products.Delete(ctx, productID); err != nil {
		return err
	}

	s.invalidate(ctx, productCacheKey(productID))
	s.invalidateLists(ctx)
	s.publisher.Publish(ctx, events.ProductDeleted, actor.ID, productID.String(), product.Name, nil)
	return nil
}

// AddImages appends image URLs to a product and refreshes its cache entry.
func (s *ProductService) AddImages(ctx context.Context, actor models.Actor, id string, urls []string) (*models.ProductView, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	productID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	product.Images = append(product.Images, urls...)
	if err := s.products.Update(ctx, product); err != nil {
		return nil, err
	}
	return s.refreshDetail(ctx, product)
}

// RemoveImage removes every image whose URL contains imageID (the storage
// collaborator's public id is embedded in the URL).
func (s *ProductService) RemoveImage(ctx context.Context, actor models.Actor, id, imageID string) (*models.ProductView, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	productID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	kept := make(models.StringArray, 0, len(product.Images))
	for _, img := range product.Images {
		if !strings.Contains(img, imageID) {
			kept = append(kept, img)
		}
	}
	product.Images = kept

	if err := s.products.Update(ctx, product); err != nil {
		return nil, err
	}
	return s.refreshDetail(ctx, product)
}

// refreshDetail rebuilds the client view from the just-persisted state,
// writes it through to the detail cache and drops the list caches. Product
// reads far outnumber writes, so eager repopulation avoids a miss storm
// right after every edit.
func (s *ProductService) refreshDetail(ctx context.Context, product *models.Product) (*models.ProductView, error) {
	variations, err := s.variations.ListByProduct(ctx, product.ID)
	if err != nil {
		return nil, err
	}
	view := buildView(product, variations)
	s.cacheSet(ctx, productCacheKey(product.ID), view, detailCacheTTL)
	s.invalidateLists(ctx)
	return view, nil
}

// ListVariations returns the variations of a product, default first.
func (s *ProductService) ListVariations(ctx context.Context, productID string) ([]models.Variation, error) {
	id, err := uuid.Parse(productID)
	if err != nil {
		return nil, ErrInvalidID
	}
	if _, err := s.products.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return s.variations.ListByProduct(ctx, id)
}

// CreateVariation adds a variation to an existing product.
func (s *ProductService) CreateVariation(ctx context.Context, actor models.Actor, productID string, input *models.VariationInput) (*models.Variation, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	id, err := uuid.Parse(productID)
	if err != nil {
		return nil, ErrInvalidID
	}
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	collector := &violationCollector{}
	if strings.TrimSpace(input.Name) == "" {
		collector.invalid("name", "variation name must not be empty")
	}
	if !input.Price.IsPositive() {
		collector.invalid("price", "price must be positive")
	}
	if err := collector.err(); err != nil {
		return nil, err
	}

	variation := &models.Variation{
		ID:        uuid.New(),
		ProductID: id,
		Name:      strings.TrimSpace(input.Name),
		Price:     input.Price.Round(2),
		SKU:       input.SKU,
		IsDefault: input.IsDefault,
		Stock:     input.Stock,
	}
	if variation.SKU == "" {
		variation.SKU = generateSKU(id, 1)
	}

	if err := s.variations.Create(ctx, variation); err != nil {
		return nil, err
	}

	if _, err := s.refreshDetail(ctx, product); err != nil {
		return nil, err
	}
	return variation, nil
}

// UpdateVariation applies a partial update to one variation.
func (s *ProductService) UpdateVariation(ctx context.Context, actor models.Actor, productID, variationID string, req *models.UpdateVariationRequest) (*models.Variation, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	pid, err := uuid.Parse(productID)
	if err != nil {
		return nil, ErrInvalidID
	}
	vid, err := uuid.Parse(variationID)
	if err != nil {
		return nil, ErrInvalidID
	}
	product, err := s.products.GetByID(ctx, pid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	variation, err := s.variations.GetByID(ctx, vid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVariationNotFound
		}
		return nil, err
	}
	if variation.ProductID != pid {
		return nil, ErrVariationNotFound
	}

	collector := &violationCollector{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			collector.invalid("name", "variation name must not be empty")
		} else {
			variation.Name = name
		}
	}
	if req.Price != nil {
		if !req.Price.IsPositive() {
			collector.invalid("price", "price must be positive")
		} else {
			variation.Price = req.Price.Round(2)
		}
	}
	if err := collector.err(); err != nil {
		return nil, err
	}

	if req.SKU != nil {
		variation.SKU = *req.SKU
	}
	if req.IsDefault != nil {
		variation.IsDefault = *req.IsDefault
	}
	if req.Stock != nil {
		variation.Stock = *req.Stock
	}

	if err := s.variations.Update(ctx, variation); err != nil {
		return nil, err
	}

	if _, err := s.refreshDetail(ctx, product); err != nil {
		return nil, err
	}
	return variation, nil
}

// DeleteVariation removes one variation. The last remaining variation of a
// product cannot be removed; every product keeps at least one.
func (s *ProductService) DeleteVariation(ctx context.Context, actor models.Actor, productID, variationID string) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}

	pid, err := uuid.Parse(productID)
	if err != nil {
		return ErrInvalidID
	}
	vid, err := uuid.Parse(variationID)
	if err != nil {
		return ErrInvalidID
	}
	product, err := s.products.GetByID(ctx, pid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		return err
	}
	variation, err := s.variations.GetByID(ctx, vid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrVariationNotFound
		}
		return err
	}
	if variation.ProductID != pid {
		return ErrVariationNotFound
	}

	count, err := s.variations.CountByProduct(ctx, pid)
	if err != nil {
		return err
	}
	if count <= 1 {
		return ErrLastVariation
	}

	if err := s.variations.Delete(ctx, vid); err != nil {
		return err
	}

	_, err = s.refreshDetail(ctx, product)
	return err
}

func (s *ProductService) cacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, ttl); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
	}
}

func (s *ProductService) invalidateLists(ctx context.Context) {
	if err := s.cache.DelPattern(ctx, productListCachePattern); err != nil {
		s.logger.WithError(err).Warn("List cache invalidation failed")
	}
}

func (s *ProductService) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Del(ctx, keys...); err != nil {
		s.logger.WithError(err).Warn("Cache invalidation failed")
	}
}
