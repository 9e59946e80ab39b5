package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"catalog-service/internal/cache"
	"catalog-service/internal/middleware"
	"catalog-service/internal/models"
	"catalog-service/internal/repository"
	"catalog-service/internal/service"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+uuid.New().String()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Category{}, &models.Product{}, &models.Variation{}))

	log := logrus.New()
	log.SetOutput(io.Discard)

	categoriesRepo := repository.NewCategoriesRepository(db)
	productsRepo := repository.NewProductsRepository(db)
	variationsRepo := repository.NewVariationsRepository(db)

	categoryService := service.NewCategoryService(categoriesRepo, productsRepo, cache.Disabled{}, log, nil)
	productService := service.NewProductService(productsRepo, variationsRepo, categoriesRepo, cache.Disabled{}, log, nil)

	categoriesHandler := NewCategoriesHandler(categoryService)
	productsHandler := NewProductsHandler(productService)

	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(middleware.ActorContext())

	products := api.Group("/products")
	products.GET("", productsHandler.ListProducts)
	products.GET("/:id", productsHandler.GetProduct)
	products.GET("/:id/variations", productsHandler.ListVariations)

	productsAdmin := products.Group("")
	productsAdmin.Use(middleware.RequireAdmin())
	productsAdmin.POST("", productsHandler.CreateProduct)
	productsAdmin.PUT("/:id", productsHandler.UpdateProduct)
	productsAdmin.DELETE("/:id", productsHandler.DeleteProduct)

	categories := api.Group("/categories")
	categories.GET("", categoriesHandler.ListCategories)
	categories.GET("/:id", categoriesHandler.GetCategory)

	categoriesAdmin := categories.Group("")
	categoriesAdmin.Use(middleware.RequireAdmin())
	categoriesAdmin.POST("", categoriesHandler.CreateCategory)
	categoriesAdmin.DELETE("/:id", categoriesHandler.DeleteCategory)

	return router
}

func doRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("X-User-ID", uuid.New().String())
		req.Header.Set("X-User-Role", "admin")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createTestCategory(t *testing.T, router *gin.Engine) string {
	t.Helper()
	w := doRequest(t, router, http.MethodPost, "/api/v1/categories", gin.H{
		"name": "Apparel",
		"fields": []gin.H{
			{"name": "sku", "type": "String", "required": true},
			{"name": "color", "type": "String"},
			{"name": "quantity", "type": "Number"},
		},
	}, true)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp models.CategoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data.ID.String()
}

func createTestProduct(t *testing.T, router *gin.Engine, categoryID string) *models.ProductView {
	t.Helper()
	w := doRequest(t, router, http.MethodPost, "/api/v1/products", gin.H{
		"name":     "Hoodie",
		"price":    "49.90",
		"category": categoryID,
		"fields":   gin.H{"sku": "HD-001", "color": "red"},
	}, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp models.ProductResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data
}

func TestCreateAndGetProduct(t *testing.T) {
	router := newTestRouter(t)
	categoryID := createTestCategory(t, router)
	created := createTestProduct(t, router, categoryID)

	assert.Equal(t, "49.90", created.Price)
	assert.Equal(t, "red", created.Fields["color"])

	w := doRequest(t, router, http.MethodGet, "/api/v1/products/"+created.ID.String(), nil, false)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.ProductResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Hoodie", resp.Data.Name)
	assert.Equal(t, "HD-001", resp.Data.Fields["sku"])
}

func TestCreateProductValidationErrorCarriesViolations(t *testing.T) {
	router := newTestRouter(t)
	categoryID := createTestCategory(t, router)

	w := doRequest(t, router, http.MethodPost, "/api/v1/products", gin.H{
		"name":     "Broken",
		"price":    "10.00",
		"category": categoryID,
		"fields":   gin.H{"quantity": "lots"},
	}, true)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)

	// Both the missing sku and the mistyped quantity are reported at once.
	details, ok := resp.Error.Details.([]interface{})
	require.True(t, ok)
	assert.Len(t, details, 2)
}

func TestCreateProductForbiddenWithoutAdmin(t *testing.T) {
	router := newTestRouter(t)
	categoryID := createTestCategory(t, router)

	w := doRequest(t, router, http.MethodPost, "/api/v1/products", gin.H{
		"name":     "Hoodie",
		"price":    "49.90",
		"category": categoryID,
		"fields":   gin.H{"sku": "HD-001"},
	}, false)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetProductInvalidAndMissingIDs(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/api/v1/products/not-a-uuid", nil, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/v1/products/"+uuid.New().String(), nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateProductMergesFields(t *testing.T) {
	router := newTestRouter(t)
	categoryID := createTestCategory(t, router)
	created := createTestProduct(t, router, categoryID)

	w := doRequest(t, router, http.MethodPut, "/api/v1/products/"+created.ID.String(), gin.H{
		"fields": gin.H{"color": "blue"},
	}, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.ProductResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "blue", resp.Data.Fields["color"])
	assert.Equal(t, "HD-001", resp.Data.Fields["sku"])
}

func TestListProductsPagination(t *testing.T) {
	router := newTestRouter(t)
	categoryID := createTestCategory(t, router)

	for i := 0; i < 12; i++ {
		w := doRequest(t, router, http.MethodPost, "/api/v1/products", gin.H{
			"name":     fmt.Sprintf("Product %02d", i),
			"price":    "10.00",
			"category": categoryID,
			"fields":   gin.H{"sku": fmt.Sprintf("SKU-%02d", i)},
		}, true)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doRequest(t, router, http.MethodGet, "/api/v1/products?page=2&limit=10", nil, false)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.ProductListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
	require.NotNil(t, resp.Pagination)
	assert.Equal(t, int64(12), resp.Pagination.Total)
	assert.Equal(t, 2, resp.Pagination.TotalPages)
	assert.False(t, resp.Pagination.HasNext)
	assert.True(t, resp.Pagination.HasPrevious)
}

func queryContext(t *testing.T, rawQuery string) *gin.Context {
	t.Helper()
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/products?"+rawQuery, nil)
	return c
}

func TestSearchRequestParsesAttributeFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := queryContext(t, "attr.color=red&attr.size=M&search=hoodie&page=3&limit=5&minPrice=10&maxPrice=99.50")

	req, err := searchRequestFromQuery(c)

	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"color": "red", "size": "M"}, req.Attributes)
	assert.Equal(t, "hoodie", req.Query)
	assert.Equal(t, 3, req.Page)
	assert.Equal(t, 5, req.Limit)
	require.NotNil(t, req.MinPrice)
	assert.Equal(t, "10", req.MinPrice.String())
	require.NotNil(t, req.MaxPrice)
	assert.Equal(t, "99.5", req.MaxPrice.String())
}

func TestSearchRequestIgnoresBareAttrPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := queryContext(t, "attr.=red&color=blue")

	req, err := searchRequestFromQuery(c)

	require.NoError(t, err)
	assert.Nil(t, req.Attributes)
}

func TestSearchRequestRejectsMalformedPriceBounds(t *testing.T) {
	gin.SetMode(gin.TestMode)

	_, err := searchRequestFromQuery(queryContext(t, "minPrice=cheap"))
	assert.Error(t, err)

	_, err = searchRequestFromQuery(queryContext(t, "maxPrice=12..5"))
	assert.Error(t, err)
}

func TestListProductsMalformedPriceReturns400(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/api/v1/products?minPrice=cheap", nil, false)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

func TestDeleteCategoryInUseConflicts(t *testing.T) {
	router := newTestRouter(t)
	categoryID := createTestCategory(t, router)
	createTestProduct(t, router, categoryID)

	w := doRequest(t, router, http.MethodDelete, "/api/v1/categories/"+categoryID, nil, true)

	require.Equal(t, http.StatusConflict, w.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "CATEGORY_IN_USE", resp.Error.Code)
}

func TestProductVariationsEndpoint(t *testing.T) {
	router := newTestRouter(t)
	categoryID := createTestCategory(t, router)
	created := createTestProduct(t, router, categoryID)

	w := doRequest(t, router, http.MethodGet, "/api/v1/products/"+created.ID.String()+"/variations", nil, false)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.VariationListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.True(t, resp.Data[0].IsDefault)
}

func TestDeleteProduct(t *testing.T) {
	router := newTestRouter(t)
	categoryID := createTestCategory(t, router)
	created := createTestProduct(t, router, categoryID)

	w := doRequest(t, router, http.MethodDelete, "/api/v1/products/"+created.ID.String(), nil, true)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/v1/products/"+created.ID.String(), nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
