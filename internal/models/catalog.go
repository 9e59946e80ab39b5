package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"catalog-service/internal/attr"
)

// FieldDefinition declares one dynamic attribute a category's products may
// carry: its name, declared type and whether products must provide it.
// Identity is by name; names are unique within one category's field list.
type FieldDefinition struct {
	Name     string       `json:"name"`
	Type     attr.TypeTag `json:"type"`
	Required bool         `json:"required"`
}

// FieldDefinitions persists a category's ordered field list as JSONB.
type FieldDefinitions []FieldDefinition

func (f FieldDefinitions) Value() (driver.Value, error) {
	return json.Marshal(f)
}

func (f *FieldDefinitions) Scan(value interface{}) error {
	if value == nil {
		*f = make(FieldDefinitions, 0)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return nil
		}
	}
	return json.Unmarshal(bytes, f)
}

// AttributePairs persists a product's dynamic attributes as the ordered
// name/value pair list. The store never holds the flattened map form.
type AttributePairs []attr.Pair

func (a AttributePairs) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *AttributePairs) Scan(value interface{}) error {
	if value == nil {
		*a = make(AttributePairs, 0)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return nil
		}
	}
	return json.Unmarshal(bytes, a)
}

// StringArray persists a flat string list (image URLs) as JSONB.
type StringArray []string

func (s StringArray) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = make(StringArray, 0)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if str, ok := value.(string); ok {
			bytes = []byte(str)
		} else {
			return nil
		}
	}
	return json.Unmarshal(bytes, s)
}

// Category declares the attribute schema its products must satisfy.
// Mutating the field list does not re-validate existing products; that
// consistency gap is documented behavior, not a bug.
type Category struct {
	ID          uuid.UUID        `json:"id" gorm:"type:uuid;primary_key"`
	Name        string           `json:"name" gorm:"not null;index"`
	Description *string          `json:"description,omitempty"`
	Fields      FieldDefinitions `json:"fields" gorm:"type:jsonb"`
	CreatedBy   string           `json:"createdBy,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// Product is the stored shape. AttributeValues is the persisted pair list;
// the client-facing view exposes the flattened map instead.
type Product struct {
	ID              uuid.UUID       `json:"id" gorm:"type:uuid;primary_key"`
	Name            string          `json:"name" gorm:"not null;index"`
	Description     *string         `json:"description,omitempty"`
	Price           decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	CategoryID      uuid.UUID       `json:"categoryId" gorm:"type:uuid;not null;index"`
	Category        *Category       `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	AttributeValues AttributePairs  `json:"attributeValues" gorm:"type:jsonb"`
	Images          StringArray     `json:"images" gorm:"type:jsonb"`
	HasVariations   bool            `json:"hasVariations" gorm:"not null;default:false"`
	CreatedBy       string          `json:"createdBy,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Variation is a purchasable sub-entity of a product carrying its own price
// and stock. Every product keeps at least one variation.
type Variation struct {
	ID        uuid.UUID       `json:"id" gorm:"type:uuid;primary_key"`
	ProductID uuid.UUID       `json:"productId" gorm:"type:uuid;not null;index"`
	Name      string          `json:"name" gorm:"not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	SKU       string          `json:"sku" gorm:"not null;index"`
	IsDefault bool            `json:"isDefault" gorm:"not null;default:false"`
	Stock     int             `json:"stock" gorm:"not null;default:0"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (Category) TableName() string  { return "categories" }
func (Product) TableName() string   { return "products" }
func (Variation) TableName() string { return "variations" }

// Actor is the authenticated caller, supplied by the auth collaborator.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// IsAdmin reports whether the actor holds the elevated role required for
// catalog writes.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// IDRef accepts a category reference as either a raw id string or an object
// carrying one ("id" or the legacy "_id" key).
type IDRef struct {
	ID string
}

func (r *IDRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		r.ID = s
		return nil
	}
	var obj struct {
		ID      string `json:"id"`
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.New("category reference must be an id string or an object with an id")
	}
	if obj.ID != "" {
		r.ID = obj.ID
	} else {
		r.ID = obj.MongoID
	}
	return nil
}

func (r IDRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ID)
}

func (r IDRef) IsZero() bool { return r.ID == "" }

// Request shapes

// CreateCategoryRequest creates a category with its field definitions.
type CreateCategoryRequest struct {
	Name        string            `json:"name" validate:"required"`
	Description *string           `json:"description,omitempty" validate:"omitempty,max=5000"`
	Fields      []FieldDefinition `json:"fields" validate:"max=50"`
}

// UpdateCategoryRequest partially updates a category. A nil Fields slice
// leaves the field list untouched; a non-nil one replaces it.
type UpdateCategoryRequest struct {
	Name        *string            `json:"name,omitempty"`
	Description *string            `json:"description,omitempty" validate:"omitempty,max=5000"`
	Fields      *[]FieldDefinition `json:"fields,omitempty"`
}

// VariationInput is a variation submitted alongside a product create.
type VariationInput struct {
	Name      string          `json:"name" validate:"required"`
	Price     decimal.Decimal `json:"price"`
	SKU       string          `json:"sku"`
	IsDefault bool            `json:"isDefault"`
	Stock     int             `json:"stock" validate:"min=0"`
}

// UpdateVariationRequest partially updates a variation.
type UpdateVariationRequest struct {
	Name      *string          `json:"name,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	SKU       *string          `json:"sku,omitempty"`
	IsDefault *bool            `json:"isDefault,omitempty"`
	Stock     *int             `json:"stock,omitempty" validate:"omitempty,min=0"`
}

// CreateProductRequest creates a product. Fields is the client-shaped
// attribute map, validated against the referenced category's schema.
type CreateProductRequest struct {
	Name        string           `json:"name" validate:"required,max=200"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=5000"`
	Price       decimal.Decimal  `json:"price"`
	Category    IDRef            `json:"category"`
	Fields      attr.Map         `json:"fields,omitempty"`
	Images      []string         `json:"images,omitempty"`
	Variations  []VariationInput `json:"variations,omitempty"`
}

// UpdateProductRequest partially updates a product. Attribute merge is
// additive-overwrite: submitted non-null values overlay the stored map and
// omitted names are preserved. Null or empty-string values are no-ops; use
// UnsetFields to remove an optional attribute explicitly.
type UpdateProductRequest struct {
	Name        *string          `json:"name,omitempty" validate:"omitempty,max=200"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=5000"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Category    *IDRef           `json:"category,omitempty"`
	Fields      attr.Map         `json:"fields,omitempty"`
	UnsetFields []string         `json:"unsetFields,omitempty"`
	Images      *[]string        `json:"images,omitempty"`
}

// SearchProductsRequest filters, sorts and paginates the product listing.
type SearchProductsRequest struct {
	Query      string                 `json:"query,omitempty"`
	CategoryID string                 `json:"categoryId,omitempty"`
	MinPrice   *decimal.Decimal       `json:"minPrice,omitempty"`
	MaxPrice   *decimal.Decimal       `json:"maxPrice,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	SortBy     string                 `json:"sortBy,omitempty"`
	SortOrder  string                 `json:"sortOrder,omitempty"`
	Page       int                    `json:"page"`
	Limit      int                    `json:"limit"`
	SkipCache  bool                   `json:"-"`
}

// ExportProductsRequest exports the filtered product set as a workbook.
type ExportProductsRequest struct {
	Format  string                 `json:"format" validate:"required,oneof=xlsx csv"`
	Filters *SearchProductsRequest `json:"filters,omitempty"`
}

// AddImagesRequest appends image URLs to a product.
type AddImagesRequest struct {
	Images []string `json:"images" validate:"required,min=1,dive,required"`
}

// Client-facing views

// ProductView is the client shape of a product: attributes are exposed as
// the flattened fields object, never the stored pair array.
type ProductView struct {
	ID            uuid.UUID   `json:"id"`
	Name          string      `json:"name"`
	Description   *string     `json:"description,omitempty"`
	Price         string      `json:"price"`
	CategoryID    uuid.UUID   `json:"categoryId"`
	Category      *Category   `json:"category,omitempty"`
	Fields        attr.Map    `json:"fields"`
	Images        []string    `json:"images"`
	HasVariations bool        `json:"hasVariations"`
	Variations    []Variation `json:"variations,omitempty"`
	CreatedBy     string      `json:"createdBy,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// PaginationInfo carries page metadata alongside list results.
type PaginationInfo struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	HasNext     bool  `json:"hasNext"`
	HasPrevious bool  `json:"hasPrevious"`
}

// ProductPage is a full cached listing page, pagination metadata included.
type ProductPage struct {
	Products   []ProductView  `json:"products"`
	Pagination PaginationInfo `json:"pagination"`
}

// Response envelopes

type ProductResponse struct {
	Success bool         `json:"success"`
	Data    *ProductView `json:"data"`
	Message *string      `json:"message,omitempty"`
}

type ProductListResponse struct {
	Success    bool            `json:"success"`
	Data       []ProductView   `json:"data"`
	Pagination *PaginationInfo `json:"pagination"`
}

type CategoryResponse struct {
	Success bool      `json:"success"`
	Data    *Category `json:"data"`
	Message *string   `json:"message,omitempty"`
}

type CategoryListResponse struct {
	Success bool       `json:"success"`
	Data    []Category `json:"data"`
}

type VariationResponse struct {
	Success bool       `json:"success"`
	Data    *Variation `json:"data"`
	Message *string    `json:"message,omitempty"`
}

type VariationListResponse struct {
	Success bool        `json:"success"`
	Data    []Variation `json:"data"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message *string     `json:"message,omitempty"`
}

type ErrorResponse struct {
	Success bool  `json:"success"`
	Error   Error `json:"error"`
}

type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Field   string      `json:"field,omitempty"`
	Details interface{} `json:"details,omitempty"`
}
