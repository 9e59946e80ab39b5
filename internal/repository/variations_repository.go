package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"catalog-service/internal/models"
)

// VariationsRepository stores the purchasable variations of a product.
type VariationsRepository interface {
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.Variation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Variation, error)
	Create(ctx context.Context, variation *models.Variation) error
	Update(ctx context.Context, variation *models.Variation) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountByProduct(ctx context.Context, productID uuid.UUID) (int64, error)
}

type variationsRepository struct {
	db *gorm.DB
}

func NewVariationsRepository(db *gorm.DB) VariationsRepository {
	return &variationsRepository{db: db}
}

func (r *variationsRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.Variation, error) {
	var variations []models.Variation
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("is_default DESC, created_at ASC").
		Find(&variations).Error
	return variations, err
}

func (r *variationsRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Variation, error) {
	var variation models.Variation
	if err := r.db.WithContext(ctx).First(&variation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &variation, nil
}

func (r *variationsRepository) Create(ctx context.Context, variation *models.Variation) error {
	if variation.ID == uuid.Nil {
		variation.ID = uuid.New()
	}
	variation.CreatedAt = time.Now()
	variation.UpdatedAt = variation.CreatedAt
	return r.db.WithContext(ctx).Create(variation).Error
}

func (r *variationsRepository) Update(ctx context.Context, variation *models.Variation) error {
	variation.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(variation).Error
}

func (r *variationsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Variation{}, "id = ?", id).Error
}

func (r *variationsRepository) CountByProduct(ctx context.Context, productID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Variation{}).
		Where("product_id = ?", productID).
		Count(&count).Error
	return count, err
}
