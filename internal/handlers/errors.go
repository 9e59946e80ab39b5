package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"catalog-service/internal/models"
	"catalog-service/internal/service"
)

// respondError maps service errors onto HTTP responses. Validation failures
// carry the full accumulated violation list in the error details so clients
// get every problem in one round trip.
func respondError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: validationErr.Error(),
				Details: validationErr.Violations,
			},
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidID):
		respond(c, http.StatusBadRequest, "INVALID_ID", "Invalid identifier format")
	case errors.Is(err, service.ErrProductNotFound):
		respond(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found")
	case errors.Is(err, service.ErrCategoryNotFound):
		respond(c, http.StatusNotFound, "CATEGORY_NOT_FOUND", "Category not found")
	case errors.Is(err, service.ErrVariationNotFound):
		respond(c, http.StatusNotFound, "VARIATION_NOT_FOUND", "Variation not found")
	case errors.Is(err, service.ErrCategoryInUse):
		respond(c, http.StatusConflict, "CATEGORY_IN_USE", "Category is referenced by existing products")
	case errors.Is(err, service.ErrLastVariation):
		respond(c, http.StatusConflict, "LAST_VARIATION", "A product must keep at least one variation")
	case errors.Is(err, service.ErrForbidden):
		respond(c, http.StatusForbidden, "FORBIDDEN", "Admin role required")
	default:
		respond(c, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
	}
}

func respond(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    code,
			Message: message,
		},
	})
}

// respondBadRequest reports a malformed request body.
func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    "VALIDATION_ERROR",
			Message: err.Error(),
		},
	})
}
