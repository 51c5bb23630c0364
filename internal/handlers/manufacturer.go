// internal/handlers/manufacturer.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/njcabinets/sales-backend/internal/services"
	"github.com/njcabinets/sales-backend/internal/utils"
)

type ManufacturerHandler struct {
	manufacturerService *services.ManufacturerService
}

func NewManufacturerHandler(manufacturerService *services.ManufacturerService) *ManufacturerHandler {
	return &ManufacturerHandler{
		manufacturerService: manufacturerService,
	}
}

// POST /manufacturers (admin)
func (h *ManufacturerHandler) CreateManufacturer(c *gin.Context) {
	var req services.CreateManufacturerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	manufacturer, err := h.manufacturerService.CreateManufacturer(&req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, manufacturer)
}

// GET /manufacturers/:id
func (h *ManufacturerHandler) GetManufacturer(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid manufacturer ID", nil)
		return
	}

	manufacturer, err := h.manufacturerService.GetManufacturer(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, manufacturer)
}

// GET /manufacturers
func (h *ManufacturerHandler) ListManufacturers(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	manufacturers, total, err := h.manufacturerService.ListManufacturers(params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(manufacturers, total, params)
	utils.PaginatedResponse(c, result)
}

// PUT /manufacturers/:id (admin)
func (h *ManufacturerHandler) UpdateManufacturer(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid manufacturer ID", nil)
		return
	}

	var req services.UpdateManufacturerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	manufacturer, err := h.manufacturerService.UpdateManufacturer(c.Request.Context(), id, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, manufacturer)
}

// DELETE /manufacturers/:id (admin)
func (h *ManufacturerHandler) DeleteManufacturer(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid manufacturer ID", nil)
		return
	}

	if err := h.manufacturerService.DeleteManufacturer(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"deleted": true})
}

// POST /manufacturers/:id/catalog (admin)
func (h *ManufacturerHandler) CreateCatalogItem(c *gin.Context) {
	manufacturerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid manufacturer ID", nil)
		return
	}

	var req services.CreateCatalogItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	item, err := h.manufacturerService.CreateCatalogItem(c.Request.Context(), manufacturerID, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, item)
}

// GET /manufacturers/:id/catalog
func (h *ManufacturerHandler) ListCatalogItems(c *gin.Context) {
	manufacturerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid manufacturer ID", nil)
		return
	}

	params := utils.GetPaginationParams(c)

	items, total, err := h.manufacturerService.ListCatalogItems(manufacturerID, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(items, total, params)
	utils.PaginatedResponse(c, result)
}
