// internal/models/proposal.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

type LineItemModification struct {
	Description    string `json:"description"`
	SurchargeCents int64  `json:"surcharge_cents"`
	Quantity       int    `json:"quantity,omitempty"`
}

// LineItem is one priceable row inside a proposal section. BasePriceCents is
// the last persisted price; when the catalog reference still resolves the
// catalog's current base price wins.
type LineItem struct {
	CatalogItemID  *uuid.UUID             `json:"catalog_item_id,omitempty"`
	Code           string                 `json:"code"`
	Description    string                 `json:"description,omitempty"`
	BasePriceCents int64                  `json:"base_price_cents"`
	Quantity       int                    `json:"quantity"`
	Assembled      bool                   `json:"assembled,omitempty"`
	HingeSide      string                 `json:"hinge_side,omitempty"`
	ExposedSide    string                 `json:"exposed_side,omitempty"`
	Modifications  []LineItemModification `json:"modifications,omitempty"`
}

type ProposalSection struct {
	Name     string     `json:"name"`
	Position int        `json:"position"`
	Items    []LineItem `json:"items"`
}

// ProposalSections stores the ordered section/item tree as a JSONB column,
// replacing the legacy flat item list (see MigratedToSections).
type ProposalSections []ProposalSection

func (s ProposalSections) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func (s *ProposalSections) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("unsupported sections column type")
	}

	return json.Unmarshal(bytes, s)
}

type Proposal struct {
	BaseModel
	CustomerID     *uuid.UUID     `json:"customer_id" gorm:"type:uuid;index"`
	ManufacturerID *uuid.UUID     `json:"manufacturer_id" gorm:"type:uuid;index"`
	OwnerGroupID   *uuid.UUID     `json:"owner_group_id" gorm:"type:uuid;index"`
	Status         ProposalStatus `json:"status" gorm:"type:varchar(20);not null;default:'draft';index"`
	Description    string         `json:"description" gorm:"type:text"`
	StyleName      string         `json:"style_name" gorm:"size:100"`

	Sections ProposalSections `json:"sections" gorm:"type:jsonb"`
	// GrandTotalCents is advisory while unlocked; the snapshot is
	// authoritative once the proposal locks.
	GrandTotalCents int64 `json:"grand_total_cents"`

	LockedPricing  bool             `json:"locked_pricing" gorm:"not null;default:false;index"`
	LockedAt       *time.Time       `json:"locked_at"`
	LockedByUserID *uuid.UUID       `json:"locked_by_user_id" gorm:"type:uuid"`
	OrderSnapshot  *PricingSnapshot `json:"order_snapshot" gorm:"type:jsonb"`

	MigratedToSections bool `json:"migrated_to_sections" gorm:"default:false"`

	CreatedByUserID *uuid.UUID `json:"created_by_user_id" gorm:"type:uuid;index"`
	SentAt          *time.Time `json:"sent_at"`
	AcceptedAt      *time.Time `json:"accepted_at"`
	AcceptedByLabel string     `json:"accepted_by_label" gorm:"size:255"`

	// Relationships
	Customer     *Customer     `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	Manufacturer *Manufacturer `json:"manufacturer,omitempty" gorm:"foreignKey:ManufacturerID"`
	CreatedBy    *User         `json:"created_by,omitempty" gorm:"foreignKey:CreatedByUserID"`
}

// Locked reports whether pricing has been frozen. Invariant: LockedPricing,
// LockedAt and OrderSnapshot are set together or not at all.
func (p *Proposal) Locked() bool {
	return p.LockedPricing
}

var proposalTransitions = map[ProposalStatus][]ProposalStatus{
	ProposalStatusDraft: {ProposalStatusSent, ProposalStatusRejected, ProposalStatusExpired},
	ProposalStatusSent:  {ProposalStatusAccepted, ProposalStatusRejected, ProposalStatusExpired},
}

// CanTransitionTo implements the proposal lifecycle. accepted, rejected and
// expired are terminal for pricing; nothing resumes editing of totals.
func (s ProposalStatus) CanTransitionTo(next ProposalStatus) bool {
	for _, allowed := range proposalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TerminalForPricing reports statuses from which pricing can never be
// recomputed or locked.
func (s ProposalStatus) TerminalForPricing() bool {
	return s == ProposalStatusRejected || s == ProposalStatusExpired
}

// Lockable reports whether the lock manager may freeze pricing in this status.
func (s ProposalStatus) Lockable() bool {
	switch s {
	case ProposalStatusDraft, ProposalStatusSent, ProposalStatusAccepted:
		return true
	}
	return false
}
