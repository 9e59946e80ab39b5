package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"catalog-service/internal/attr"
	"catalog-service/internal/cache"
	"catalog-service/internal/events"
	"catalog-service/internal/models"
	"catalog-service/internal/repository"
)

// Cache TTLs. Detail views tolerate less staleness than they cost to
// rebuild; list views change more often and get the shorter TTL.
const (
	detailCacheTTL = 30 * time.Minute
	listCacheTTL   = 5 * time.Minute
)

const categoryListCacheKey = "categories:list"

func categoryCacheKey(id uuid.UUID) string {
	return "category:" + id.String()
}

// CategoryService is the category schema registry: it stores and serves the
// attribute schemas products are validated against.
type CategoryService struct {
	repo      repository.CategoriesRepository
	products  repository.ProductsRepository
	cache     cache.Cache
	logger    *logrus.Logger
	publisher *events.Publisher
}

func NewCategoryService(
	repo repository.CategoriesRepository,
	products repository.ProductsRepository,
	c cache.Cache,
	logger *logrus.Logger,
	publisher *events.Publisher,
) *CategoryService {
	return &CategoryService{
		repo:      repo,
		products:  products,
		cache:     c,
		logger:    logger,
		publisher: publisher,
	}
}

// validateFieldDefinitions checks a submitted field list: names must be
// non-empty and unique within the category, and every type tag must be one
// of the recognized tags. All violations are accumulated.
func validateFieldDefinitions(c *violationCollector, fields []models.FieldDefinition) {
	seen := make(map[string]bool, len(fields))
	for _, field := range fields {
		name := strings.TrimSpace(field.Name)
		if name == "" {
			c.invalid("fields", "field definition name must not be empty")
			continue
		}
		if seen[name] {
			c.invalid(name, "duplicate field name in category definition")
			continue
		}
		seen[name] = true
		if !attr.ValidTypeTag(field.Type) {
			c.invalid(name, "unrecognized field type "+string(field.Type))
		}
	}
}

// GetByID serves a category, cache-aside with the detail TTL.
func (s *CategoryService) GetByID(ctx context.Context, id string) (*models.Category, error) {
	categoryID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidID
	}

	key := categoryCacheKey(categoryID)
	if data, err := s.cache.Get(ctx, key); err == nil {
		var category models.Category
		if err := json.Unmarshal(data, &category); err == nil {
			return &category, nil
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.WithError(err).Warn("Category cache read failed, falling back to store")
	}

	category, err := s.repo.GetByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}

	s.cacheSet(ctx, key, category, detailCacheTTL)
	return category, nil
}

// List serves all categories, cached as one page.
func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	if data, err := s.cache.Get(ctx, categoryListCacheKey); err == nil {
		var categories []models.Category
		if err := json.Unmarshal(data, &categories); err == nil {
			return categories, nil
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.WithError(err).Warn("Category list cache read failed, falling back to store")
	}

	categories, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, categoryListCacheKey, categories, listCacheTTL)
	return categories, nil
}

// Create validates and persists a new category schema.
func (s *CategoryService) Create(ctx context.Context, actor models.Actor, req *models.CreateCategoryRequest) (*models.Category, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	collector := &violationCollector{}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		collector.invalid("name", "category name must not be empty")
	}
	if len(req.Fields) > 50 {
		collector.invalid("fields", "too many field definitions")
	}
	validateFieldDefinitions(collector, req.Fields)
	if err := collector.err(); err != nil {
		return nil, err
	}

	category := &models.Category{
		Name:        name,
		Description: req.Description,
		Fields:      models.FieldDefinitions(req.Fields),
		CreatedBy:   actor.ID,
	}
	if category.Fields == nil {
		category.Fields = models.FieldDefinitions{}
	}

	if err := s.repo.Create(ctx, category); err != nil {
		return nil, err
	}

	s.invalidate(ctx, categoryListCacheKey)
	s.publisher.Publish(ctx, events.CategoryCreated, actor.ID, category.ID.String(), category.Name, category)
	return category, nil
}

// Update applies a partial update to a category. Replacing the field list
// does not re-validate products already created against the old list; that
// gap is part of the documented consistency model.
func (s *CategoryService) Update(ctx context.Context, actor models.Actor, id string, req *models.UpdateCategoryRequest) (*models.Category, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	categoryID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidID
	}

	category, err := s.repo.GetByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}

	collector := &violationCollector{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			collector.invalid("name", "category name must not be empty")
		} else {
			category.Name = name
		}
	}
	if req.Description != nil {
		category.Description = req.Description
	}
	if req.Fields != nil {
		validateFieldDefinitions(collector, *req.Fields)
		category.Fields = models.FieldDefinitions(*req.Fields)
	}
	if err := collector.err(); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, category); err != nil {
		return nil, err
	}

	// Write-through refresh of the detail entry, drop the list.
	s.cacheSet(ctx, categoryCacheKey(categoryID), category, detailCacheTTL)
	s.invalidate(ctx, categoryListCacheKey)
	s.publisher.Publish(ctx, events.CategoryUpdated, actor.ID, category.ID.String(), category.Name, category)
	return category, nil
}

// Delete removes a category. Deletion is restricted while any product still
// references the category, so products can never orphan their schema.
func (s *CategoryService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}

	categoryID, err := uuid.Parse(id)
	if err != nil {
		return ErrInvalidID
	}

	category, err := s.repo.GetByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCategoryNotFound
		}
		return err
	}

	referencing, err := s.products.CountByCategory(ctx, categoryID)
	if err != nil {
		return err
	}
	if referencing > 0 {
		return ErrCategoryInUse
	}

	if err := s.repo.Delete(ctx, categoryID); err != nil {
		return err
	}

	s.invalidate(ctx, categoryCacheKey(categoryID), categoryListCacheKey)
	s.publisher.Publish(ctx, events.CategoryDeleted, actor.ID, categoryID.String(), category.Name, nil)
	return nil
}

func (s *CategoryService) cacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, ttl); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
	}
}

func (s *CategoryService) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Del(ctx, keys...); err != nil {
		s.logger.WithError(err).Warn("Cache invalidation failed")
	}
}
