// internal/models/manufacturer.go
package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Manufacturer holds the live pricing inputs for a catalog vendor. Edits here
// must never leak into proposals or orders that were locked earlier; locking
// captures these values into the snapshot by value.
type Manufacturer struct {
	BaseModel
	Name             string          `json:"name" gorm:"size:255;not null;uniqueIndex"`
	Email            string          `json:"email" gorm:"size:255"`
	Phone            string          `json:"phone" gorm:"size:50"`
	Address          string          `json:"address" gorm:"type:text"`
	Website          string          `json:"website" gorm:"size:255"`
	CostMultiplier   decimal.Decimal `json:"cost_multiplier" gorm:"type:decimal(10,4);not null;default:1"`
	DeliveryFeeCents int64           `json:"delivery_fee_cents" gorm:"not null;default:0"`
	// ETAs are free text ("7-8 days") so vendors can express ranges.
	AssembledETA   string         `json:"assembled_eta" gorm:"size:100"`
	UnassembledETA string         `json:"unassembled_eta" gorm:"size:100"`
	Enabled        bool           `json:"enabled" gorm:"default:true;index"`
	Styles         pq.StringArray `json:"styles" gorm:"type:text[]"`

	// Relationships
	CatalogItems []CatalogItem `json:"catalog_items,omitempty" gorm:"foreignKey:ManufacturerID"`
}

// PricingContext copies the fields the calculator and the lock snapshot need.
func (m *Manufacturer) PricingContext() ManufacturerContext {
	id := m.ID
	return ManufacturerContext{
		ManufacturerID:   &id,
		Name:             m.Name,
		Multiplier:       m.CostMultiplier,
		DeliveryFeeCents: m.DeliveryFeeCents,
		AssembledETA:     m.AssembledETA,
		UnassembledETA:   m.UnassembledETA,
	}
}

type CatalogItem struct {
	BaseModel
	ManufacturerID uuid.UUID `json:"manufacturer_id" gorm:"type:uuid;not null;index"`
	Code           string    `json:"code" gorm:"size:50;not null;index"`
	Description    string    `json:"description" gorm:"type:text"`
	Style          string    `json:"style" gorm:"size:100"`
	Type           string    `json:"type" gorm:"size:50"`
	BasePriceCents int64     `json:"base_price_cents" gorm:"not null"`
	// Sub-type constraints validated against line items at compute time.
	RequiresHingeSide   bool `json:"requires_hinge_side" gorm:"default:false"`
	RequiresExposedSide bool `json:"requires_exposed_side" gorm:"default:false"`

	// Relationships
	Manufacturer *Manufacturer `json:"manufacturer,omitempty" gorm:"foreignKey:ManufacturerID"`
}
