// internal/models/snapshot.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SnapshotSchemaVersion tags every freshly written snapshot. Version 1 blobs
// (pre order-number rollout) lack info.order_number; readers must accept both.
const SnapshotSchemaVersion = 2

// ManufacturerContext is the by-value copy of manufacturer pricing data used
// for a computation. Locked snapshots carry it so later multiplier or fee
// edits cannot reach frozen records.
type ManufacturerContext struct {
	ManufacturerID   *uuid.UUID      `json:"manufacturer_id,omitempty"`
	Name             string          `json:"name,omitempty"`
	Multiplier       decimal.Decimal `json:"multiplier"`
	DeliveryFeeCents int64           `json:"delivery_fee_cents"`
	AssembledETA     string          `json:"assembled_eta,omitempty"`
	UnassembledETA   string          `json:"unassembled_eta,omitempty"`
}

type ComputedItem struct {
	CatalogItemID     *uuid.UUID `json:"catalog_item_id,omitempty"`
	Code              string     `json:"code,omitempty"`
	Description       string     `json:"description,omitempty"`
	BasePriceCents    int64      `json:"base_price_cents"`
	Quantity          int        `json:"quantity"`
	ModificationCents int64      `json:"modification_cents,omitempty"`
	ExtendedCents     int64      `json:"extended_cents"`
	// UnverifiedPricing marks items whose catalog reference no longer
	// resolves; the last persisted price was used instead.
	UnverifiedPricing bool     `json:"unverified_pricing,omitempty"`
	Warnings          []string `json:"warnings,omitempty"`
}

type ComputedSection struct {
	Name          string         `json:"name"`
	Items         []ComputedItem `json:"items"`
	SubtotalCents int64          `json:"subtotal_cents"`
}

// ComputedTree is the full output of a pricing run: sections, per-item
// extended prices and the aggregate totals, all in integer cents.
type ComputedTree struct {
	Sections             []ComputedSection `json:"sections"`
	PartsCents           int64             `json:"parts_cents"`
	ModsCents            int64             `json:"mods_cents"`
	DeliveryFeeCents     int64             `json:"delivery_fee_cents"`
	GrandTotalCents      int64             `json:"grand_total_cents"`
	HasUnverifiedPricing bool              `json:"has_unverified_pricing,omitempty"`
}

// SnapshotInfo carries the order-relevant context captured at lock time.
type SnapshotInfo struct {
	ProposalID      uuid.UUID  `json:"proposal_id"`
	OrderNumber     string     `json:"order_number,omitempty"`
	CustomerID      *uuid.UUID `json:"customer_id,omitempty"`
	CustomerName    string     `json:"customer_name,omitempty"`
	OwnerGroupID    *uuid.UUID `json:"owner_group_id,omitempty"`
	CreatedByUserID *uuid.UUID `json:"created_by_user_id,omitempty"`
	AcceptedByLabel string     `json:"accepted_by_label,omitempty"`
	AcceptedAt      *time.Time `json:"accepted_at,omitempty"`
}

// PricingSnapshot is the versioned, self-contained blob persisted on locked
// proposals and copied onto orders. It stores as JSONB.
type PricingSnapshot struct {
	SchemaVersion int                 `json:"schema_version"`
	ComputedAt    time.Time           `json:"computed_at"`
	Manufacturer  ManufacturerContext `json:"manufacturer"`
	Tree          ComputedTree        `json:"tree"`
	Info          SnapshotInfo        `json:"info"`
}

func (s PricingSnapshot) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *PricingSnapshot) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("unsupported snapshot column type")
	}

	return json.Unmarshal(bytes, s)
}

// Clone returns a deep, independent copy. Orders must never alias the
// proposal's snapshot.
func (s *PricingSnapshot) Clone() (*PricingSnapshot, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	out := &PricingSnapshot{}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}
