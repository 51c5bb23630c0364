// internal/services/testutil_test.go
package services

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/njcabinets/sales-backend/internal/models"
)

// newTestDB opens an isolated in-memory database with the full schema. The
// shared cache keeps all pooled connections on the same store.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.UserGroup{},
		&models.User{},
		&models.Customer{},
		&models.Manufacturer{},
		&models.CatalogItem{},
		&models.Proposal{},
		&models.Order{},
		&models.AuditLog{},
	))

	return db
}

func createTestUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()

	user := &models.User{
		Name:    name,
		Email:   fmt.Sprintf("%s-%s@test.local", name, uuid.NewString()[:8]),
		Enabled: true,
	}
	require.NoError(t, user.SetPassword("secret-password-1"))
	require.NoError(t, db.Create(user).Error)
	return user
}

// createTestManufacturer seeds a manufacturer with a 1.5 multiplier, a $5.00
// delivery fee and one $100.00 catalog item.
func createTestManufacturer(t *testing.T, db *gorm.DB) (*models.Manufacturer, *models.CatalogItem) {
	t.Helper()

	manufacturer := &models.Manufacturer{
		Name:             fmt.Sprintf("Fabuwood-%s", uuid.NewString()[:8]),
		CostMultiplier:   decimal.RequireFromString("1.5"),
		DeliveryFeeCents: 500,
		AssembledETA:     "7-10 days",
		UnassembledETA:   "3-5 days",
		Enabled:          true,
	}
	require.NoError(t, db.Create(manufacturer).Error)

	item := &models.CatalogItem{
		ManufacturerID: manufacturer.ID,
		Code:           "B30",
		Description:    "Base cabinet 30in",
		BasePriceCents: 10000,
	}
	require.NoError(t, db.Create(item).Error)

	return manufacturer, item
}

func createTestProposal(t *testing.T, db *gorm.DB, mfr *models.Manufacturer, item *models.CatalogItem, creator *models.User, status models.ProposalStatus) *models.Proposal {
	t.Helper()

	proposal := &models.Proposal{
		ManufacturerID: &mfr.ID,
		Status:         status,
		Sections: models.ProposalSections{
			{
				Name:     "Kitchen",
				Position: 1,
				Items: []models.LineItem{
					{
						CatalogItemID: &item.ID,
						Code:          item.Code,
						Quantity:      2,
					},
				},
			},
		},
		MigratedToSections: true,
		CreatedByUserID:    &creator.ID,
	}
	require.NoError(t, db.Create(proposal).Error)
	return proposal
}

func newProposalService(db *gorm.DB) *ProposalService {
	return NewProposalService(db, NewCustomerService(db))
}
