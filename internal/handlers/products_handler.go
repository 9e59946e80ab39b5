package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"catalog-service/internal/middleware"
	"catalog-service/internal/models"
	"catalog-service/internal/service"
	"catalog-service/pkg/validator"
)

type ProductsHandler struct {
	service *service.ProductService
}

func NewProductsHandler(s *service.ProductService) *ProductsHandler {
	return &ProductsHandler{service: s}
}

// searchRequestFromQuery builds the listing request from query parameters.
// Dynamic attribute filters arrive as attr.<name>=<value> pairs and match
// exactly against the stored attribute values. A malformed price bound is an
// error rather than a silently dropped filter.
func searchRequestFromQuery(c *gin.Context) (*models.SearchProductsRequest, error) {
	req := &models.SearchProductsRequest{
		Query:      c.DefaultQuery("search", c.Query("query")),
		CategoryID: c.Query("categoryId"),
		SortBy:     c.DefaultQuery("sortBy", "createdAt"),
		SortOrder:  c.DefaultQuery("sortOrder", "desc"),
	}

	req.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	req.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "10"))
	req.SkipCache = c.Query("skipCache") == "true"

	if raw := c.Query("minPrice"); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("minPrice %q is not a valid number", raw)
		}
		req.MinPrice = &price
	}
	if raw := c.Query("maxPrice"); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("maxPrice %q is not a valid number", raw)
		}
		req.MaxPrice = &price
	}

	for key, values := range c.Request.URL.Query() {
		name, ok := strings.CutPrefix(key, "attr.")
		if !ok || name == "" || len(values) == 0 {
			continue
		}
		if req.Attributes == nil {
			req.Attributes = make(map[string]interface{})
		}
		req.Attributes[name] = values[0]
	}

	return req, nil
}

// ListProducts serves the filtered, sorted, paginated product listing.
func (h *ProductsHandler) ListProducts(c *gin.Context) {
	req, err := searchRequestFromQuery(c)
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	page, err := h.service.List(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ProductListResponse{
		Success:    true,
		Data:       page.Products,
		Pagination: &page.Pagination,
	})
}

// SearchProducts serves the listing from a JSON request body, for filter
// combinations too rich for query strings (typed attribute values).
func (h *ProductsHandler) SearchProducts(c *gin.Context) {
	var req models.SearchProductsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	req.SkipCache = c.Query("skipCache") == "true"

	page, err := h.service.List(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ProductListResponse{
		Success:    true,
		Data:       page.Products,
		Pagination: &page.Pagination,
	})
}

// GetProduct returns one product in client shape. skipCache=true bypasses
// the cache for read-your-own-write scenarios.
func (h *ProductsHandler) GetProduct(c *gin.Context) {
	skipCache := c.Query("skipCache") == "true"
	view, err := h.service.GetByID(c.Request.Context(), c.Param("id"), skipCache)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ProductResponse{
		Success: true,
		Data:    view,
	})
}

// CreateProduct validates a product against its category schema and
// persists it with its variations.
func (h *ProductsHandler) CreateProduct(c *gin.Context) {
	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	view, err := h.service.Create(c.Request.Context(), middleware.GetActor(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.ProductResponse{
		Success: true,
		Data:    view,
	})
}

// UpdateProduct applies a partial update with additive-overwrite attribute
// merge.
func (h *ProductsHandler) UpdateProduct(c *gin.Context) {
	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	view, err := h.service.Update(c.Request.Context(), middleware.GetActor(c), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ProductResponse{
		Success: true,
		Data:    view,
	})
}

// DeleteProduct removes a product and its variations.
func (h *ProductsHandler) DeleteProduct(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), middleware.GetActor(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	message := "Product deleted successfully"
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Message: &message,
	})
}

// CountProducts returns the total product count.
func (h *ProductsHandler) CountProducts(c *gin.Context) {
	count, err := h.service.Count(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    gin.H{"count": count},
	})
}

// GetSuggestions returns product name completions for a prefix.
func (h *ProductsHandler) GetSuggestions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit < 1 || limit > 25 {
		limit = 10
	}

	suggestions, err := h.service.Suggestions(c.Request.Context(), c.DefaultQuery("q", c.Query("query")), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    gin.H{"suggestions": suggestions},
	})
}

// AddProductImages appends image URLs to a product.
func (h *ProductsHandler) AddProductImages(c *gin.Context) {
	var req models.AddImagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: "Request validation failed",
				Details: errs,
			},
		})
		return
	}

	view, err := h.service.AddImages(c.Request.Context(), middleware.GetActor(c), c.Param("id"), req.Images)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ProductResponse{
		Success: true,
		Data:    view,
	})
}

// RemoveProductImage removes the images matching the given image id.
func (h *ProductsHandler) RemoveProductImage(c *gin.Context) {
	view, err := h.service.RemoveImage(c.Request.Context(), middleware.GetActor(c), c.Param("id"), c.Param("imageId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ProductResponse{
		Success: true,
		Data:    view,
	})
}

// ListVariations returns a product's variations, default first.
func (h *ProductsHandler) ListVariations(c *gin.Context) {
	variations, err := h.service.ListVariations(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.VariationListResponse{
		Success: true,
		Data:    variations,
	})
}

// CreateVariation adds a variation to an existing product.
func (h *ProductsHandler) CreateVariation(c *gin.Context) {
	var req models.VariationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	variation, err := h.service.CreateVariation(c.Request.Context(), middleware.GetActor(c), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.VariationResponse{
		Success: true,
		Data:    variation,
	})
}

// UpdateVariation partially updates one variation.
func (h *ProductsHandler) UpdateVariation(c *gin.Context) {
	var req models.UpdateVariationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	variation, err := h.service.UpdateVariation(c.Request.Context(), middleware.GetActor(c), c.Param("id"), c.Param("variationId"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.VariationResponse{
		Success: true,
		Data:    variation,
	})
}

// DeleteVariation removes one variation, keeping at least one per product.
func (h *ProductsHandler) DeleteVariation(c *gin.Context) {
	if err := h.service.DeleteVariation(c.Request.Context(), middleware.GetActor(c), c.Param("id"), c.Param("variationId")); err != nil {
		respondError(c, err)
		return
	}
	message := "Variation deleted successfully"
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Message: &message,
	})
}
