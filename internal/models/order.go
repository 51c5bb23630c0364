// internal/models/order.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Order is the immutable materialization of an accepted, locked proposal.
// Snapshot and GrandTotalCents are copied from the proposal's lock record at
// creation and never written again, regardless of later catalog, manufacturer
// or proposal edits. The unique index on ProposalID is the concurrency guard
// that makes conversion idempotent.
type Order struct {
	BaseModel
	ProposalID uuid.UUID `json:"proposal_id" gorm:"type:uuid;not null;uniqueIndex:idx_orders_proposal"`

	// OrderNumber is ORD-NNN-MMDDYY where NNN is OrderNumberSeq, a per-day
	// counter keyed by OrderNumberDate.
	OrderNumber     string `json:"order_number" gorm:"size:20;uniqueIndex"`
	OrderNumberDate string `json:"-" gorm:"size:10;index"`
	OrderNumberSeq  int    `json:"-"`
	OwnerGroupID   *uuid.UUID `json:"owner_group_id" gorm:"type:uuid;index"`
	CustomerID     *uuid.UUID `json:"customer_id" gorm:"type:uuid;index"`
	ManufacturerID *uuid.UUID `json:"manufacturer_id" gorm:"type:uuid;index"`
	StyleName      string     `json:"style_name" gorm:"size:100"`

	Status OrderStatus `json:"status" gorm:"type:varchar(20);not null;default:'new';index"`

	AcceptedAt       *time.Time `json:"accepted_at"`
	AcceptedByUserID *uuid.UUID `json:"accepted_by_user_id" gorm:"type:uuid"`
	AcceptedByLabel  string     `json:"accepted_by_label" gorm:"size:255"`

	GrandTotalCents  int64           `json:"grand_total_cents" gorm:"not null"`
	PartsCents       int64           `json:"parts_cents"`
	ModsCents        int64           `json:"mods_cents"`
	DeliveryFeeCents int64           `json:"delivery_fee_cents"`
	Currency         string          `json:"currency" gorm:"size:3;default:'USD'"`
	Snapshot         PricingSnapshot `json:"snapshot" gorm:"type:jsonb;not null"`

	CreatedByUserID *uuid.UUID `json:"created_by_user_id" gorm:"type:uuid;index"`

	// Relationships
	Proposal     *Proposal     `json:"proposal,omitempty" gorm:"foreignKey:ProposalID"`
	Customer     *Customer     `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	Manufacturer *Manufacturer `json:"manufacturer,omitempty" gorm:"foreignKey:ManufacturerID"`
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusNew:        {OrderStatusProcessing, OrderStatusCanceled},
	OrderStatusProcessing: {OrderStatusCompleted, OrderStatusCanceled},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
