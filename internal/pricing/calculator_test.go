// internal/pricing/calculator_test.go
package pricing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njcabinets/sales-backend/internal/models"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func catalogOf(items ...*models.CatalogItem) CatalogLookup {
	byID := make(map[uuid.UUID]*models.CatalogItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	return func(id uuid.UUID) (*models.CatalogItem, bool) {
		item, ok := byID[id]
		return item, ok
	}
}

func TestComputeBasicScenario(t *testing.T) {
	itemID := uuid.New()
	catalog := catalogOf(&models.CatalogItem{
		BaseModel:      models.BaseModel{ID: itemID},
		Code:           "B30",
		BasePriceCents: 10000,
	})

	sections := models.ProposalSections{
		{
			Name: "Kitchen",
			Items: []models.LineItem{
				{
					CatalogItemID: &itemID,
					Code:          "B30",
					Quantity:      2,
				},
			},
		},
	}

	mfr := models.ManufacturerContext{
		Multiplier:       mustDecimal(t, "1.5"),
		DeliveryFeeCents: 500,
	}

	tree := Compute(sections, mfr, catalog)

	// $100.00 x 1.5 x 2 + $5.00 delivery = $305.00
	assert.Equal(t, int64(30500), tree.GrandTotalCents)
	assert.Equal(t, int64(30000), tree.PartsCents)
	assert.Equal(t, int64(0), tree.ModsCents)
	assert.Equal(t, int64(500), tree.DeliveryFeeCents)
	assert.False(t, tree.HasUnverifiedPricing)

	require.Len(t, tree.Sections, 1)
	require.Len(t, tree.Sections[0].Items, 1)
	assert.Equal(t, int64(30000), tree.Sections[0].SubtotalCents)
	assert.Equal(t, int64(30000), tree.Sections[0].Items[0].ExtendedCents)
}

func TestComputeRoundsHalfUpOnce(t *testing.T) {
	itemID := uuid.New()
	catalog := catalogOf(&models.CatalogItem{
		BaseModel:      models.BaseModel{ID: itemID},
		BasePriceCents: 333,
	})

	sections := models.ProposalSections{
		{
			Name: "Main",
			Items: []models.LineItem{
				{CatalogItemID: &itemID, Quantity: 1},
			},
		},
	}

	// 333 x 1.115 = 371.295, rounds half-up to 371
	tree := Compute(sections, models.ManufacturerContext{Multiplier: mustDecimal(t, "1.115")}, catalog)
	assert.Equal(t, int64(371), tree.GrandTotalCents)

	// 250 x 1.111 x 3 = 833.25 rounds to 833; per-unit rounding first would
	// give 278 x 3 = 834
	item2 := uuid.New()
	catalog2 := catalogOf(&models.CatalogItem{
		BaseModel:      models.BaseModel{ID: item2},
		BasePriceCents: 250,
	})
	tree2 := Compute(models.ProposalSections{
		{Items: []models.LineItem{{CatalogItemID: &item2, Quantity: 3}}},
	}, models.ManufacturerContext{Multiplier: mustDecimal(t, "1.111")}, catalog2)
	assert.Equal(t, int64(833), tree2.GrandTotalCents)

	// exact half: 110 x 1.25 = 137.5 rounds up to 138
	item3 := uuid.New()
	catalog3 := catalogOf(&models.CatalogItem{
		BaseModel:      models.BaseModel{ID: item3},
		BasePriceCents: 110,
	})
	tree3 := Compute(models.ProposalSections{
		{Items: []models.LineItem{{CatalogItemID: &item3, Quantity: 1}}},
	}, models.ManufacturerContext{Multiplier: mustDecimal(t, "1.25")}, catalog3)
	assert.Equal(t, int64(138), tree3.GrandTotalCents)
}

func TestComputeModificationsAddedAfterRounding(t *testing.T) {
	itemID := uuid.New()
	catalog := catalogOf(&models.CatalogItem{
		BaseModel:      models.BaseModel{ID: itemID},
		BasePriceCents: 10000,
	})

	sections := models.ProposalSections{
		{
			Name: "Kitchen",
			Items: []models.LineItem{
				{
					CatalogItemID: &itemID,
					Quantity:      1,
					Modifications: []models.LineItemModification{
						{Description: "Cut down depth", SurchargeCents: 2500},
						{Description: "Extra shelf", SurchargeCents: 1000, Quantity: 2},
					},
				},
			},
		},
	}

	tree := Compute(sections, models.ManufacturerContext{Multiplier: mustDecimal(t, "1.5")}, catalog)

	// 10000 x 1.5 = 15000 parts, mods 2500 + 1000x2 = 4500
	assert.Equal(t, int64(15000), tree.PartsCents)
	assert.Equal(t, int64(4500), tree.ModsCents)
	assert.Equal(t, int64(19500), tree.GrandTotalCents)
	assert.Equal(t, int64(4500), tree.Sections[0].Items[0].ModificationCents)
}

func TestComputeUnresolvedCatalogFallsBackUnverified(t *testing.T) {
	missingID := uuid.New()
	sections := models.ProposalSections{
		{
			Name: "Kitchen",
			Items: []models.LineItem{
				{
					CatalogItemID:  &missingID,
					Code:           "W2430",
					BasePriceCents: 8000,
					Quantity:       1,
				},
			},
		},
	}

	tree := Compute(sections, models.ManufacturerContext{Multiplier: mustDecimal(t, "2")}, NoCatalog)

	require.Len(t, tree.Sections[0].Items, 1)
	item := tree.Sections[0].Items[0]
	assert.True(t, item.UnverifiedPricing)
	assert.True(t, tree.HasUnverifiedPricing)
	// Falls back to the persisted price, never zero
	assert.Equal(t, int64(16000), item.ExtendedCents)
	assert.Equal(t, int64(16000), tree.GrandTotalCents)
}

func TestComputeCatalogPriceWinsOverPersisted(t *testing.T) {
	itemID := uuid.New()
	catalog := catalogOf(&models.CatalogItem{
		BaseModel:      models.BaseModel{ID: itemID},
		BasePriceCents: 12000,
	})

	sections := models.ProposalSections{
		{
			Items: []models.LineItem{
				{
					CatalogItemID:  &itemID,
					BasePriceCents: 9999, // stale persisted value
					Quantity:       1,
				},
			},
		},
	}

	tree := Compute(sections, models.ManufacturerContext{Multiplier: decimal.NewFromInt(1)}, catalog)
	assert.Equal(t, int64(12000), tree.GrandTotalCents)
	assert.False(t, tree.HasUnverifiedPricing)
}

func TestComputeSelectionWarnings(t *testing.T) {
	itemID := uuid.New()
	catalog := catalogOf(&models.CatalogItem{
		BaseModel:           models.BaseModel{ID: itemID},
		BasePriceCents:      5000,
		RequiresHingeSide:   true,
		RequiresExposedSide: true,
	})

	sections := models.ProposalSections{
		{
			Items: []models.LineItem{
				{CatalogItemID: &itemID, Quantity: 1, HingeSide: "L"},
			},
		},
	}

	tree := Compute(sections, models.ManufacturerContext{Multiplier: decimal.NewFromInt(1)}, catalog)

	item := tree.Sections[0].Items[0]
	require.Len(t, item.Warnings, 1)
	assert.Contains(t, item.Warnings[0], "exposed side")
	// Warnings never affect pricing
	assert.Equal(t, int64(5000), tree.GrandTotalCents)
}

func TestComputeZeroAndNegativeQuantities(t *testing.T) {
	itemID := uuid.New()
	catalog := catalogOf(&models.CatalogItem{
		BaseModel:      models.BaseModel{ID: itemID},
		BasePriceCents: 10000,
	})

	sections := models.ProposalSections{
		{
			Items: []models.LineItem{
				{CatalogItemID: &itemID, Quantity: 0},
				{CatalogItemID: &itemID, Quantity: -3},
			},
		},
	}

	tree := Compute(sections, models.ManufacturerContext{Multiplier: mustDecimal(t, "1.5")}, catalog)
	assert.Equal(t, int64(0), tree.GrandTotalCents)
	assert.Equal(t, 0, tree.Sections[0].Items[1].Quantity)
}

func TestComputeEmptySections(t *testing.T) {
	tree := Compute(nil, models.ManufacturerContext{
		Multiplier:       decimal.NewFromInt(1),
		DeliveryFeeCents: 500,
	}, nil)

	assert.Equal(t, int64(500), tree.GrandTotalCents)
	assert.Empty(t, tree.Sections)
}

func TestComputeIsPureAndDeterministic(t *testing.T) {
	itemID := uuid.New()
	catalog := catalogOf(&models.CatalogItem{
		BaseModel:      models.BaseModel{ID: itemID},
		BasePriceCents: 7777,
	})

	sections := models.ProposalSections{
		{
			Name: "Bath",
			Items: []models.LineItem{
				{CatalogItemID: &itemID, Quantity: 3, Modifications: []models.LineItemModification{
					{SurchargeCents: 150},
				}},
			},
		},
	}
	mfr := models.ManufacturerContext{Multiplier: mustDecimal(t, "1.33"), DeliveryFeeCents: 900}

	first := Compute(sections, mfr, catalog)
	for i := 0; i < 5; i++ {
		again := Compute(sections, mfr, catalog)
		assert.Equal(t, first, again)
	}

	// Inputs untouched
	assert.Equal(t, 3, sections[0].Items[0].Quantity)
	assert.Equal(t, int64(0), sections[0].Items[0].BasePriceCents)
}

func TestNewSnapshotCarriesVersionAndContext(t *testing.T) {
	mfr := models.ManufacturerContext{
		Name:             "Fabuwood",
		Multiplier:       mustDecimal(t, "1.5"),
		DeliveryFeeCents: 500,
	}
	tree := Compute(nil, mfr, nil)

	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	snap := NewSnapshot(tree, mfr, models.SnapshotInfo{CustomerName: "Jane"}, at)

	assert.Equal(t, at, snap.ComputedAt)
	assert.Equal(t, models.SnapshotSchemaVersion, snap.SchemaVersion)
	assert.Equal(t, "Fabuwood", snap.Manufacturer.Name)
	assert.Equal(t, int64(500), snap.Tree.GrandTotalCents)
	assert.Equal(t, "Jane", snap.Info.CustomerName)
}
