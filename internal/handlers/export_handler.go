package handlers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"catalog-service/internal/models"
	"catalog-service/internal/service"
	"catalog-service/pkg/validator"
)

// exportPageSize is the page size used when draining the filtered set.
const exportPageSize = 100

// exportMaxPages caps a single export at 10k products.
const exportMaxPages = 100

type ExportHandler struct {
	service *service.ProductService
}

func NewExportHandler(s *service.ProductService) *ExportHandler {
	return &ExportHandler{service: s}
}

var exportColumns = []string{"ID", "Name", "Description", "Price", "Category", "Attributes", "Images", "Created At"}

// ExportProducts streams the filtered product set as an xlsx workbook or a
// csv file. Export always reads fresh from the store.
func (h *ExportHandler) ExportProducts(c *gin.Context) {
	var req models.ExportProductsRequest
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

	products, err := h.collect(c, req.Filters)
	if err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("products-%s.%s", time.Now().UTC().Format("20060102-150405"), req.Format)
	switch req.Format {
	case "csv":
		h.writeCSV(c, filename, products)
	default:
		h.writeXLSX(c, filename, products)
	}
}

// collect drains every page of the filtered set, bypassing the cache.
func (h *ExportHandler) collect(c *gin.Context, filters *models.SearchProductsRequest) ([]models.ProductView, error) {
	req := models.SearchProductsRequest{}
	if filters != nil {
		req = *filters
	}
	req.Limit = exportPageSize
	req.SkipCache = true

	var products []models.ProductView
	for page := 1; page <= exportMaxPages; page++ {
		req.Page = page
		result, err := h.service.List(c.Request.Context(), &req)
		if err != nil {
			return nil, err
		}
		products = append(products, result.Products...)
		if !result.Pagination.HasNext {
			break
		}
	}
	return products, nil
}

func exportRow(p *models.ProductView) []interface{} {
	description := ""
	if p.Description != nil {
		description = *p.Description
	}
	categoryName := p.CategoryID.String()
	if p.Category != nil {
		categoryName = p.Category.Name
	}
	attributes, _ := json.Marshal(p.Fields)
	return []interface{}{
		p.ID.String(),
		p.Name,
		description,
		p.Price,
		categoryName,
		string(attributes),
		strings.Join(p.Images, ", "),
		p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *ExportHandler) writeXLSX(c *gin.Context, filename string, products []models.ProductView) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Products"
	f.SetSheetName("Sheet1", sheet)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	for i, column := range exportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, column)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	for rowIdx := range products {
		row := exportRow(&products[rowIdx])
		for colIdx, value := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheet, cell, value)
		}
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		respondError(c, err)
	}
}

func (h *ExportHandler) writeCSV(c *gin.Context, filename string, products []models.ProductView) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "text/csv")

	w := csv.NewWriter(c.Writer)
	_ = w.Write(exportColumns)
	for i := range products {
		row := exportRow(&products[i])
		record := make([]string, len(row))
		for j, value := range row {
			record[j] = fmt.Sprint(value)
		}
		_ = w.Write(record)
	}
	w.Flush()
}
