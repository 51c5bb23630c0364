// internal/services/manufacturer_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/njcabinets/sales-backend/internal/cache"
	"github.com/njcabinets/sales-backend/internal/models"
	"github.com/njcabinets/sales-backend/internal/utils"
)

type ManufacturerService struct {
	db    *gorm.DB
	cache *cache.Store
}

type CreateManufacturerRequest struct {
	Name             string   `json:"name" validate:"required,max=255"`
	Email            string   `json:"email" validate:"omitempty,email"`
	Phone            string   `json:"phone,omitempty"`
	Address          string   `json:"address,omitempty"`
	Website          string   `json:"website,omitempty"`
	CostMultiplier   string   `json:"cost_multiplier" validate:"required"`
	DeliveryFeeCents int64    `json:"delivery_fee_cents" validate:"gte=0"`
	AssembledETA     string   `json:"assembled_eta,omitempty" validate:"max=100"`
	UnassembledETA   string   `json:"unassembled_eta,omitempty" validate:"max=100"`
	Styles           []string `json:"styles,omitempty"`
}

type UpdateManufacturerRequest struct {
	Name             *string  `json:"name,omitempty" validate:"omitempty,max=255"`
	Email            *string  `json:"email,omitempty" validate:"omitempty,email"`
	Phone            *string  `json:"phone,omitempty"`
	Address          *string  `json:"address,omitempty"`
	Website          *string  `json:"website,omitempty"`
	CostMultiplier   *string  `json:"cost_multiplier,omitempty"`
	DeliveryFeeCents *int64   `json:"delivery_fee_cents,omitempty" validate:"omitempty,gte=0"`
	AssembledETA     *string  `json:"assembled_eta,omitempty" validate:"omitempty,max=100"`
	UnassembledETA   *string  `json:"unassembled_eta,omitempty" validate:"omitempty,max=100"`
	Enabled          *bool    `json:"enabled,omitempty"`
	Styles           []string `json:"styles,omitempty"`
}

type CreateCatalogItemRequest struct {
	Code                string `json:"code" validate:"required,max=50"`
	Description         string `json:"description,omitempty"`
	Style               string `json:"style,omitempty" validate:"max=100"`
	Type                string `json:"type,omitempty" validate:"max=50"`
	BasePriceCents      int64  `json:"base_price_cents" validate:"gte=0"`
	RequiresHingeSide   bool   `json:"requires_hinge_side,omitempty"`
	RequiresExposedSide bool   `json:"requires_exposed_side,omitempty"`
}

func NewManufacturerService(db *gorm.DB, cacheStore *cache.Store) *ManufacturerService {
	return &ManufacturerService{
		db:    db,
		cache: cacheStore,
	}
}

func manufacturerCacheKey(id uuid.UUID) string {
	return "manufacturer:" + id.String()
}

func (s *ManufacturerService) CreateManufacturer(req *CreateManufacturerRequest) (*models.Manufacturer, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	multiplier, err := decimal.NewFromString(req.CostMultiplier)
	if err != nil || multiplier.IsNegative() || multiplier.IsZero() {
		return nil, errors.New("cost multiplier must be a positive decimal")
	}

	manufacturer := &models.Manufacturer{
		Name:             req.Name,
		Email:            req.Email,
		Phone:            req.Phone,
		Address:          req.Address,
		Website:          req.Website,
		CostMultiplier:   multiplier,
		DeliveryFeeCents: req.DeliveryFeeCents,
		AssembledETA:     req.AssembledETA,
		UnassembledETA:   req.UnassembledETA,
		Enabled:          true,
		Styles:           req.Styles,
	}

	if err := s.db.Create(manufacturer).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: manufacturer %q already exists", ErrConflict, req.Name)
		}
		return nil, fmt.Errorf("failed to create manufacturer: %w", err)
	}

	return manufacturer, nil
}

// GetManufacturer serves reads through the cache. Pricing-critical callers
// (the lock manager) bypass this and read inside their own transaction.
func (s *ManufacturerService) GetManufacturer(ctx context.Context, id uuid.UUID) (*models.Manufacturer, error) {
	var cached models.Manufacturer
	if err := s.cache.GetJSON(ctx, manufacturerCacheKey(id), &cached); err == nil {
		return &cached, nil
	}

	var manufacturer models.Manufacturer
	if err := s.db.Preload("CatalogItems").First(&manufacturer, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: manufacturer %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if err := s.cache.SetJSON(ctx, manufacturerCacheKey(id), &manufacturer); err != nil {
		logrus.WithError(err).WithField("manufacturer_id", id).Warn("Failed to cache manufacturer")
	}

	return &manufacturer, nil
}

func (s *ManufacturerService) ListManufacturers(params utils.PaginationParams) ([]models.Manufacturer, int64, error) {
	query := s.db.Model(&models.Manufacturer{})

	if params.Search != "" {
		query = query.Where("name ILIKE ?", "%"+params.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count manufacturers: %w", err)
	}

	allowedSortFields := []string{"created_at", "name"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var manufacturers []models.Manufacturer
	if err := query.Find(&manufacturers).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch manufacturers: %w", err)
	}

	return manufacturers, total, nil
}

func (s *ManufacturerService) UpdateManufacturer(ctx context.Context, id uuid.UUID, req *UpdateManufacturerRequest) (*models.Manufacturer, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var manufacturer models.Manufacturer
	if err := s.db.First(&manufacturer, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: manufacturer %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if req.Name != nil {
		manufacturer.Name = *req.Name
	}
	if req.Email != nil {
		manufacturer.Email = *req.Email
	}
	if req.Phone != nil {
		manufacturer.Phone = *req.Phone
	}
	if req.Address != nil {
		manufacturer.Address = *req.Address
	}
	if req.Website != nil {
		manufacturer.Website = *req.Website
	}
	if req.CostMultiplier != nil {
		multiplier, err := decimal.NewFromString(*req.CostMultiplier)
		if err != nil || multiplier.IsNegative() || multiplier.IsZero() {
			return nil, errors.New("cost multiplier must be a positive decimal")
		}
		manufacturer.CostMultiplier = multiplier
	}
	if req.DeliveryFeeCents != nil {
		manufacturer.DeliveryFeeCents = *req.DeliveryFeeCents
	}
	if req.AssembledETA != nil {
		manufacturer.AssembledETA = *req.AssembledETA
	}
	if req.UnassembledETA != nil {
		manufacturer.UnassembledETA = *req.UnassembledETA
	}
	if req.Enabled != nil {
		manufacturer.Enabled = *req.Enabled
	}
	if req.Styles != nil {
		manufacturer.Styles = req.Styles
	}

	if err := s.db.Save(&manufacturer).Error; err != nil {
		return nil, fmt.Errorf("failed to update manufacturer: %w", err)
	}

	// Locked proposals and orders are unaffected by design; only the cache
	// needs refreshing.
	if err := s.cache.Delete(ctx, manufacturerCacheKey(id)); err != nil {
		logrus.WithError(err).WithField("manufacturer_id", id).Warn("Failed to invalidate manufacturer cache")
	}

	return &manufacturer, nil
}

func (s *ManufacturerService) DeleteManufacturer(ctx context.Context, id uuid.UUID) error {
	res := s.db.Delete(&models.Manufacturer{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete manufacturer: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: manufacturer %s", ErrNotFound, id)
	}

	if err := s.cache.Delete(ctx, manufacturerCacheKey(id)); err != nil {
		logrus.WithError(err).WithField("manufacturer_id", id).Warn("Failed to invalidate manufacturer cache")
	}

	return nil
}

func (s *ManufacturerService) CreateCatalogItem(ctx context.Context, manufacturerID uuid.UUID, req *CreateCatalogItemRequest) (*models.CatalogItem, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var manufacturer models.Manufacturer
	if err := s.db.First(&manufacturer, "id = ?", manufacturerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: manufacturer %s", ErrNotFound, manufacturerID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	item := &models.CatalogItem{
		ManufacturerID:      manufacturerID,
		Code:                req.Code,
		Description:         req.Description,
		Style:               req.Style,
		Type:                req.Type,
		BasePriceCents:      req.BasePriceCents,
		RequiresHingeSide:   req.RequiresHingeSide,
		RequiresExposedSide: req.RequiresExposedSide,
	}

	if err := s.db.Create(item).Error; err != nil {
		return nil, fmt.Errorf("failed to create catalog item: %w", err)
	}

	if err := s.cache.Delete(ctx, manufacturerCacheKey(manufacturerID)); err != nil {
		logrus.WithError(err).WithField("manufacturer_id", manufacturerID).Warn("Failed to invalidate manufacturer cache")
	}

	return item, nil
}

func (s *ManufacturerService) GetCatalogItem(id uuid.UUID) (*models.CatalogItem, error) {
	var item models.CatalogItem
	if err := s.db.First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: catalog item %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &item, nil
}

func (s *ManufacturerService) ListCatalogItems(manufacturerID uuid.UUID, params utils.PaginationParams) ([]models.CatalogItem, int64, error) {
	query := s.db.Model(&models.CatalogItem{}).Where("manufacturer_id = ?", manufacturerID)

	if params.Search != "" {
		query = query.Where("code ILIKE ? OR description ILIKE ?", "%"+params.Search+"%", "%"+params.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count catalog items: %w", err)
	}

	allowedSortFields := []string{"created_at", "code", "base_price_cents"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var items []models.CatalogItem
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch catalog items: %w", err)
	}

	return items, total, nil
}
