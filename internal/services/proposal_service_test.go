// internal/services/proposal_service_test.go
package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njcabinets/sales-backend/internal/models"
)

func TestComputeTotalsAgainstCurrentCatalog(t *testing.T) {
	db := newTestDB(t)
	svc := newProposalService(db)
	user := createTestUser(t, db, "estimator")
	mfr, item := createTestManufacturer(t, db)
	proposal := createTestProposal(t, db, mfr, item, user, models.ProposalStatusDraft)

	tree, err := svc.ComputeTotals(proposal.ID)
	require.NoError(t, err)

	// $100.00 x 1.5 x 2 + $5.00 delivery
	assert.Equal(t, int64(30500), tree.GrandTotalCents)
	assert.False(t, tree.HasUnverifiedPricing)
}

func TestComputeTotalsNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := newProposalService(db)

	_, err := svc.ComputeTotals(uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLockFreezesSnapshot(t *testing.T) {
	db := newTestDB(t)
	svc := newProposalService(db)
	user := createTestUser(t, db, "locker")
	mfr, item := createTestManufacturer(t, db)
	proposal := createTestProposal(t, db, mfr, item, user, models.ProposalStatusSent)

	result, err := svc.Lock(proposal.ID, user.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Snapshot)

	assert.False(t, result.AlreadyHad)
	assert.Equal(t, user.ID, result.LockedBy)
	assert.Equal(t, models.SnapshotSchemaVersion, result.Snapshot.SchemaVersion)
	assert.Equal(t, int64(30500), result.Snapshot.Tree.GrandTotalCents)
	assert.Equal(t, "1.5", result.Snapshot.Manufacturer.Multiplier.String())

	var stored models.Proposal
	require.NoError(t, db.First(&stored, "id = ?", proposal.ID).Error)
	assert.True(t, stored.LockedPricing)
	require.NotNil(t, stored.LockedAt)
	require.NotNil(t, stored.LockedByUserID)
	require.NotNil(t, stored.OrderSnapshot)
	assert.Equal(t, int64(30500), stored.GrandTotalCents)
}

func TestLockIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := newProposalService(db)
	user := createTestUser(t, db, "locker")
	mfr, item := createTestManufacturer(t, db)
	proposal := createTestProposal(t, db, mfr, item, user, models.ProposalStatusSent)

	first, err := svc.Lock(proposal.ID, user.ID)
	require.NoError(t, err)

	second, err := svc.Lock(proposal.ID, user.ID)
	require.NoError(t, err)

	assert.True(t, second.AlreadyHad)
	assert.Equal(t, first.LockedBy, second.LockedBy)
	assert.True(t, first.LockedAt.Equal(second.LockedAt))
	assert.Equal(t, first.Snapshot.Tree.GrandTotalCents, second.Snapshot.Tree.GrandTotalCents)
}

func TestLockSecondActorGetsFirstActorsLock(t *testing.T) {
	db := newTestDB(t)
	svc := newProposalService(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	mfr, item := createTestManufacturer(t, db)
	proposal := createTestProposal(t, db, mfr, item, alice, models.ProposalStatusSent)

	first, err := svc.Lock(proposal.ID, alice.ID)
	require.NoError(t, err)

	second, err := svc.Lock(proposal.ID, bob.ID)
	require.NoError(t, err)

	assert.Equal(t, alice.ID, first.LockedBy)
	assert.Equal(t, alice.ID, second.LockedBy)
	assert.True(t, second.AlreadyHad)
}

func TestLockRefusedOnTerminalStatus(t *testing.T) {
	db := newTestDB(t)
	svc := newProposalService(db)
	user := createTestUser(t, db, "locker")
	mfr, item := createTestManufacturer(t, db)

	for _, status := range []models.ProposalStatus{models.ProposalStatusRejected, models.ProposalStatusExpired} {
		proposal := createTestProposal(t, db, mfr, item, user, status)

		_, err := svc.Lock(proposal.ID, user.ID)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConflict)

		var stored models.Proposal
		require.NoError(t, db.First(&stored, "id = ?", proposal.ID).Error)
		assert.False(t, stored.LockedPricing)
	}
}

func TestLockNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := newProposalService(db)
	user := createTestUser(t, db, "locker")

	_, err := svc.Lock(uuid.New(), user.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLockWithoutManufacturerUsesPassthroughPricing(t *testing.T) {
	db := newTestDB(t)
	svc := newProposalService(db)
	user := createTestUser(t, db, "locker")

	proposal := &models.Proposal{
		Status: models.ProposalStatusSent,
		Sections: models.ProposalSections{
			{Name: "Misc", Items: []models.LineItem{
				{Code: "CUSTOM", BasePriceCents: 2000, Quantity: 3},
			}},
		},
		CreatedByUserID: &user.ID,
	}
	require.NoError(t, db.Create(proposal).Error)

	result, err := svc.Lock(proposal.ID, user.ID)
	require.NoError(t, err)

	// Multiplier 1, no delivery fee
	assert.Equal(t, int64(6000), result.Snapshot.Tree.GrandTotalCents)
}

func TestLockCarriesUnverifiedPricingFlag(t *testing.T) {
	db := newTestDB(t)
	svc := newProposalService(db)
	user := createTestUser(t, db, "locker")
	mfr, _ := createTestManufacturer(t, db)

	danglingID := uuid.New()
	proposal := &models.Proposal{
		ManufacturerID: &mfr.ID,
		Status:         models.ProposalStatusSent,
		Sections: models.ProposalSections{
			{Name: "Kitchen", Items: []models.LineItem{
				{CatalogItemID: &danglingID, Code: "GONE", BasePriceCents: 4000, Quantity: 1},
			}},
		},
		CreatedByUserID: &user.ID,
	}
	require.NoError(t, db.Create(proposal).Error)

	result, err := svc.Lock(proposal.ID, user.ID)
	require.NoError(t, err)

	assert.True(t, result.Snapshot.Tree.HasUnverifiedPricing)
	// 4000 x 1.5 + 500 delivery; the dangling reference never blocks the lock
	assert.Equal(t, int64(6500), result.Snapshot.Tree.GrandTotalCents)
}

func TestMultiplierChangeAfterLockDoesNotMoveTotals(t *testing.T) {
	db := newTestDB(t)
	svc := newProposalService(db)
	user := createTestUser(t, db, "locker")
	mfr, item := createTestManufacturer(t, db)
	proposal := createTestProposal(t, db, mfr, item, user, models.ProposalStatusSent)

	locked, err := svc.Lock(proposal.ID, user.ID)
	require.NoError(t, err)
	require.Equal(t, int64(30500), locked.Snapshot.Tree.GrandTotalCents)

	require.NoError(t, db.Model(&models.Manufacturer{}).
		Where("id = ?", mfr.ID).
		Updates(map[string]interface{}{
			"cost_multiplier":    decimal.RequireFromString("9.99"),
			"delivery_fee_cents": 99999,
		}).Error)
	require.NoError(t, db.Model(&models.CatalogItem{}).
		Where("id = ?", item.ID).
		Update("base_price_cents", 77777).Error)

	tree, err := svc.ComputeTotals(proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30500), tree.GrandTotalCents)

	again, err := svc.Lock(proposal.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30500), again.Snapshot.Tree.GrandTotalCents)
}

func TestAcceptLocksAndTransitions(t *testing.T) {
	db := newTestDB(t)
	svc := newProposalService(db)
	user := createTestUser(t, db, "closer")
	mfr, item := createTestManufacturer(t, db)
	proposal := createTestProposal(t, db, mfr, item, user, models.ProposalStatusSent)

	accepted, lock, err := svc.Accept(proposal.ID, user.ID, "Jane Homeowner")
	require.NoError(t, err)

	assert.Equal(t, models.ProposalStatusAccepted, accepted.Status)
	require.NotNil(t, lock.Snapshot)
	assert.Equal(t, int64(30500), lock.Snapshot.Tree.GrandTotalCents)

	var stored models.Proposal
	require.NoError(t, db.First(&stored, "id = ?", proposal.ID).Error)
	assert.Equal(t, models.ProposalStatusAccepted, stored.Status)
	assert.True(t, stored.LockedPricing)
	assert.Equal(t, "Jane Homeowner", stored.AcceptedByLabel)
	require.NotNil(t, stored.AcceptedAt)
}

func TestAcceptFromDraftIsConflict(t *testing.T) {
	db := newTestDB(t)
	svc := newProposalService(db)
	user := createTestUser(t, db, "closer")
	mfr, item := createTestManufacturer(t, db)
	proposal := createTestProposal(t, db, mfr, item, user, models.ProposalStatusDraft)

	_, _, err := svc.Accept(proposal.ID, user.ID, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)

	// Nothing committed: neither status nor lock moved
	var stored models.Proposal
	require.NoError(t, db.First(&stored, "id = ?", proposal.ID).Error)
	assert.Equal(t, models.ProposalStatusDraft, stored.Status)
	assert.False(t, stored.LockedPricing)
}

func TestAcceptIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := newProposalService(db)
	user := createTestUser(t, db, "closer")
	mfr, item := createTestManufacturer(t, db)
	proposal := createTestProposal(t, db, mfr, item, user, models.ProposalStatusSent)

	_, firstLock, err := svc.Accept(proposal.ID, user.ID, "Jane")
	require.NoError(t, err)

	again, secondLock, err := svc.Accept(proposal.ID, user.ID, "Jane")
	require.NoError(t, err)

	assert.Equal(t, models.ProposalStatusAccepted, again.Status)
	assert.True(t, secondLock.AlreadyHad)
	assert.True(t, firstLock.LockedAt.Equal(secondLock.LockedAt))
}

func TestUpdateRefusedOnceLocked(t *testing.T) {
	db := newTestDB(t)
	svc := newProposalService(db)
	user := createTestUser(t, db, "editor")
	mfr, item := createTestManufacturer(t, db)
	proposal := createTestProposal(t, db, mfr, item, user, models.ProposalStatusSent)

	_, err := svc.Lock(proposal.ID, user.ID)
	require.NoError(t, err)

	newSections := models.ProposalSections{{Name: "Changed"}}
	_, err = svc.UpdateProposal(proposal.ID, &UpdateProposalRequest{Sections: &newSections})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpdateRefreshesAdvisoryTotal(t *testing.T) {
	db := newTestDB(t)
	svc := newProposalService(db)
	user := createTestUser(t, db, "editor")
	mfr, item := createTestManufacturer(t, db)
	proposal := createTestProposal(t, db, mfr, item, user, models.ProposalStatusDraft)

	newSections := models.ProposalSections{
		{
			Name: "Kitchen",
			Items: []models.LineItem{
				{CatalogItemID: &item.ID, Code: item.Code, Quantity: 4},
			},
		},
	}
	updated, err := svc.UpdateProposal(proposal.ID, &UpdateProposalRequest{Sections: &newSections})
	require.NoError(t, err)

	// 10000 x 1.5 x 4 + 500
	assert.Equal(t, int64(60500), updated.GrandTotalCents)
}

func TestCreateProposalFindsOrCreatesCustomer(t *testing.T) {
	db := newTestDB(t)
	svc := newProposalService(db)
	user := createTestUser(t, db, "seller")

	first, err := svc.CreateProposal(user.ID, nil, &CreateProposalRequest{
		CustomerName:  "Jane Homeowner",
		CustomerEmail: "jane@example.com",
	})
	require.NoError(t, err)
	require.NotNil(t, first.CustomerID)

	second, err := svc.CreateProposal(user.ID, nil, &CreateProposalRequest{
		CustomerName:  "Jane Homeowner",
		CustomerEmail: "jane@example.com",
	})
	require.NoError(t, err)
	require.NotNil(t, second.CustomerID)

	assert.Equal(t, *first.CustomerID, *second.CustomerID)

	var count int64
	require.NoError(t, db.Model(&models.Customer{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDeleteProposalRefusedOnceLocked(t *testing.T) {
	db := newTestDB(t)
	svc := newProposalService(db)
	user := createTestUser(t, db, "editor")
	mfr, item := createTestManufacturer(t, db)

	unlocked := createTestProposal(t, db, mfr, item, user, models.ProposalStatusDraft)
	require.NoError(t, svc.DeleteProposal(unlocked.ID))
	_, err := svc.GetProposal(unlocked.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	locked := createTestProposal(t, db, mfr, item, user, models.ProposalStatusSent)
	_, err = svc.Lock(locked.ID, user.ID)
	require.NoError(t, err)

	err = svc.DeleteProposal(locked.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSendRejectExpireTransitions(t *testing.T) {
	db := newTestDB(t)
	svc := newProposalService(db)
	user := createTestUser(t, db, "seller")
	mfr, item := createTestManufacturer(t, db)

	p1 := createTestProposal(t, db, mfr, item, user, models.ProposalStatusDraft)
	sent, err := svc.Send(p1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusSent, sent.Status)
	require.NotNil(t, sent.SentAt)

	rejected, err := svc.Reject(p1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusRejected, rejected.Status)

	// Terminal: no way back
	_, err = svc.Send(p1.ID)
	assert.ErrorIs(t, err, ErrConflict)

	p2 := createTestProposal(t, db, mfr, item, user, models.ProposalStatusSent)
	expired, err := svc.Expire(p2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusExpired, expired.Status)
}
