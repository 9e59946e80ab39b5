package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"catalog-service/internal/attr"
	"catalog-service/internal/models"
)

// ProductsRepository is the product store. Creation persists the product and
// its variations in one transaction so a product can never be observed
// without its default variation.
type ProductsRepository interface {
	Create(ctx context.Context, product *models.Product, variations []models.Variation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, req *models.SearchProductsRequest) ([]models.Product, int64, error)
	Count(ctx context.Context) (int64, error)
	CountByCategory(ctx context.Context, categoryID uuid.UUID) (int64, error)
	Suggestions(ctx context.Context, prefix string, limit int) ([]string, error)
}

type productsRepository struct {
	db *gorm.DB
}

func NewProductsRepository(db *gorm.DB) ProductsRepository {
	return &productsRepository{db: db}
}

func (r *productsRepository) Create(ctx context.Context, product *models.Product, variations []models.Variation) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(product).Error; err != nil {
			return err
		}
		for i := range variations {
			variations[i].ProductID = product.ID
			if variations[i].ID == uuid.Nil {
				variations[i].ID = uuid.New()
			}
			variations[i].CreatedAt = now
			variations[i].UpdatedAt = now
		}
		if len(variations) > 0 {
			if err := tx.Create(&variations).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *productsRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Preload("Category").First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productsRepository) Update(ctx context.Context, product *models.Product) error {
	product.UpdatedAt = time.Now()
	// Save writes the full row; the service computes the complete new state
	// (merged attributes included) before persisting.
	return r.db.WithContext(ctx).Omit("Category").Save(product).Error
}

func (r *productsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Variation{}, "product_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Product{}, "id = ?", id).Error
	})
}

// sortColumns whitelists client sort fields against their columns.
var sortColumns = map[string]string{
	"name":      "name",
	"price":     "price",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

func (r *productsRepository) Search(ctx context.Context, req *models.SearchProductsRequest) ([]models.Product, int64, error) {
	var products []models.Product
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Product{})
	query = r.applyFilters(query, req)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := sortColumns[req.SortBy]
	if !ok {
		column = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(req.SortOrder, "asc") {
		order = "ASC"
	}
	query = query.Order(fmt.Sprintf("%s %s", column, order))

	offset := (req.Page - 1) * req.Limit
	if err := query.Offset(offset).Limit(req.Limit).Find(&products).Error; err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

func (r *productsRepository) applyFilters(query *gorm.DB, req *models.SearchProductsRequest) *gorm.DB {
	if q := strings.TrimSpace(req.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	if req.CategoryID != "" {
		query = query.Where("category_id = ?", req.CategoryID)
	}

	if req.MinPrice != nil {
		query = query.Where("price >= ?", req.MinPrice)
	}
	if req.MaxPrice != nil {
		query = query.Where("price <= ?", req.MaxPrice)
	}

	// Attribute equality matches against the stored pair list via JSONB
	// containment: one [{name,value}] element per filter.
	for name, value := range req.Attributes {
		needle, err := json.Marshal([]attr.Pair{{Name: name, Value: value}})
		if err != nil {
			continue
		}
		query = query.Where("attribute_values @> ?", string(needle))
	}

	return query
}

func (r *productsRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Count(&count).Error
	return count, err
}

func (r *productsRepository) CountByCategory(ctx context.Context, categoryID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("category_id = ?", categoryID).
		Count(&count).Error
	return count, err
}

func (r *productsRepository) Suggestions(ctx context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 5
	}
	var names []string
	err := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("LOWER(name) LIKE ?", strings.ToLower(strings.TrimSpace(prefix))+"%").
		Order("name ASC").
		Limit(limit).
		Distinct().
		Pluck("name", &names).Error
	return names, err
}
