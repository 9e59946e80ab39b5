package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"catalog-service/internal/middleware"
	"catalog-service/internal/models"
	"catalog-service/internal/service"
	"catalog-service/pkg/validator"
)

type CategoriesHandler struct {
	service *service.CategoryService
}

func NewCategoriesHandler(s *service.CategoryService) *CategoriesHandler {
	return &CategoriesHandler{service: s}
}

// ListCategories returns every category with its field definitions.
func (h *CategoriesHandler) ListCategories(c *gin.Context) {
	categories, err := h.service.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.CategoryListResponse{
		Success: true,
		Data:    categories,
	})
}

// GetCategory returns one category by id.
func (h *CategoriesHandler) GetCategory(c *gin.Context) {
	category, err := h.service.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.CategoryResponse{
		Success: true,
		Data:    category,
	})
}

// CreateCategory creates a category with its attribute schema.
func (h *CategoriesHandler) CreateCategory(c *gin.Context) {
	var req models.CreateCategoryRequest
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

	category, err := h.service.Create(c.Request.Context(), middleware.GetActor(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.CategoryResponse{
		Success: true,
		Data:    category,
	})
}

// UpdateCategory partially updates a category.
func (h *CategoriesHandler) UpdateCategory(c *gin.Context) {
	var req models.UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	category, err := h.service.Update(c.Request.Context(), middleware.GetActor(c), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.CategoryResponse{
		Success: true,
		Data:    category,
	})
}

// DeleteCategory removes a category. Deletion is rejected while products
// still reference it.
func (h *CategoriesHandler) DeleteCategory(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), middleware.GetActor(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	message := "Category deleted successfully"
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Message: &message,
	})
}
