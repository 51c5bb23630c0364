// internal/pricing/calculator.go
package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/njcabinets/sales-backend/internal/models"
)

// CatalogLookup resolves a catalog item id against a point-in-time view of
// the catalog. Returning false means the reference no longer resolves; the
// item then falls back to its last persisted price and is flagged unverified.
type CatalogLookup func(id uuid.UUID) (*models.CatalogItem, bool)

// NoCatalog is a lookup that resolves nothing. Useful for ad-hoc items.
func NoCatalog(uuid.UUID) (*models.CatalogItem, bool) { return nil, false }

// Compute derives the full priced tree for a proposal's sections against the
// given manufacturer context. It is a pure function: it never mutates its
// inputs, touches no storage, and yields identical output for identical
// input, so callers may run it concurrently and repeatedly.
//
// All money is integer cents. Each item's extended price is
// basePriceCents x multiplier x quantity rounded half-up at the cents
// boundary exactly once; modification surcharges are already cents and are
// added after that single rounding. Section subtotals and the grand total
// are sums of already-rounded values and are never re-rounded.
func Compute(sections models.ProposalSections, mfr models.ManufacturerContext, lookup CatalogLookup) *models.ComputedTree {
	if lookup == nil {
		lookup = NoCatalog
	}

	tree := &models.ComputedTree{
		Sections:         make([]models.ComputedSection, 0, len(sections)),
		DeliveryFeeCents: mfr.DeliveryFeeCents,
	}

	for _, section := range sections {
		computed := models.ComputedSection{
			Name:  section.Name,
			Items: make([]models.ComputedItem, 0, len(section.Items)),
		}

		for _, item := range section.Items {
			ci := computeItem(item, mfr.Multiplier, lookup)
			computed.SubtotalCents += ci.ExtendedCents
			tree.PartsCents += ci.ExtendedCents - ci.ModificationCents
			tree.ModsCents += ci.ModificationCents
			if ci.UnverifiedPricing {
				tree.HasUnverifiedPricing = true
			}
			computed.Items = append(computed.Items, ci)
		}

		tree.Sections = append(tree.Sections, computed)
		tree.GrandTotalCents += computed.SubtotalCents
	}

	tree.GrandTotalCents += mfr.DeliveryFeeCents
	return tree
}

func computeItem(item models.LineItem, multiplier decimal.Decimal, lookup CatalogLookup) models.ComputedItem {
	out := models.ComputedItem{
		CatalogItemID:  item.CatalogItemID,
		Code:           item.Code,
		Description:    item.Description,
		BasePriceCents: item.BasePriceCents,
		Quantity:       item.Quantity,
	}

	if item.CatalogItemID != nil {
		entry, ok := lookup(*item.CatalogItemID)
		if ok {
			out.BasePriceCents = entry.BasePriceCents
			if entry.RequiresHingeSide && item.HingeSide == "" {
				out.Warnings = append(out.Warnings, "missing hinge side selection")
			}
			if entry.RequiresExposedSide && item.ExposedSide == "" {
				out.Warnings = append(out.Warnings, "missing exposed side selection")
			}
		} else {
			// Catalog entry deleted or renamed: price from the last
			// persisted value, never fail the computation.
			out.UnverifiedPricing = true
		}
	}

	qty := item.Quantity
	if qty < 0 {
		qty = 0
		out.Quantity = 0
	}

	extended := decimal.NewFromInt(out.BasePriceCents).
		Mul(multiplier).
		Mul(decimal.NewFromInt(int64(qty))).
		Round(0).
		IntPart()

	for _, mod := range item.Modifications {
		modQty := mod.Quantity
		if modQty <= 0 {
			modQty = 1
		}
		out.ModificationCents += mod.SurchargeCents * int64(modQty)
	}

	out.ExtendedCents = extended + out.ModificationCents
	return out
}

// NewSnapshot wraps a computed tree into a versioned, self-contained snapshot
// carrying the manufacturer context by value.
func NewSnapshot(tree *models.ComputedTree, mfr models.ManufacturerContext, info models.SnapshotInfo, at time.Time) *models.PricingSnapshot {
	return &models.PricingSnapshot{
		SchemaVersion: models.SnapshotSchemaVersion,
		ComputedAt:    at,
		Manufacturer:  mfr,
		Tree:          *tree,
		Info:          info,
	}
}
