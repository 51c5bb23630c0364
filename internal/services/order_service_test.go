// internal/services/order_service_test.go
package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njcabinets/sales-backend/internal/models"
)

func setupAcceptedProposal(t *testing.T) (*OrderService, *ProposalService, *models.Proposal, *models.User, *models.Manufacturer) {
	t.Helper()

	db := newTestDB(t)
	proposals := newProposalService(db)
	orders := NewOrderService(db)
	user := createTestUser(t, db, "closer")
	mfr, item := createTestManufacturer(t, db)
	proposal := createTestProposal(t, db, mfr, item, user, models.ProposalStatusSent)

	_, _, err := proposals.Accept(proposal.ID, user.ID, "Jane Homeowner")
	require.NoError(t, err)

	return orders, proposals, proposal, user, mfr
}

func TestConvertRequiresAcceptedStatus(t *testing.T) {
	db := newTestDB(t)
	orders := NewOrderService(db)
	user := createTestUser(t, db, "closer")
	mfr, item := createTestManufacturer(t, db)

	for _, status := range []models.ProposalStatus{models.ProposalStatusDraft, models.ProposalStatusSent} {
		proposal := createTestProposal(t, db, mfr, item, user, status)

		_, err := orders.ConvertToOrder(proposal.ID, &user.ID)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrPrecondition)
	}
}

func TestConvertRequiresLockedSnapshot(t *testing.T) {
	db := newTestDB(t)
	orders := NewOrderService(db)
	user := createTestUser(t, db, "closer")
	mfr, item := createTestManufacturer(t, db)

	// Accepted status but no lock record: inconsistent data must be refused,
	// not silently priced.
	proposal := createTestProposal(t, db, mfr, item, user, models.ProposalStatusAccepted)

	_, err := orders.ConvertToOrder(proposal.ID, &user.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestConvertMissingProposal(t *testing.T) {
	db := newTestDB(t)
	orders := NewOrderService(db)
	user := createTestUser(t, db, "closer")

	_, err := orders.ConvertToOrder(uuid.New(), &user.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConvertCopiesSnapshotTotals(t *testing.T) {
	orders, _, proposal, user, _ := setupAcceptedProposal(t)

	order, err := orders.ConvertToOrder(proposal.ID, &user.ID)
	require.NoError(t, err)

	assert.Equal(t, proposal.ID, order.ProposalID)
	assert.Equal(t, models.OrderStatusNew, order.Status)
	assert.Equal(t, int64(30500), order.GrandTotalCents)
	assert.Equal(t, int64(30000), order.PartsCents)
	assert.Equal(t, int64(500), order.DeliveryFeeCents)
	assert.Equal(t, "USD", order.Currency)
	assert.Equal(t, "Jane Homeowner", order.AcceptedByLabel)
	assert.Equal(t, int64(30500), order.Snapshot.Tree.GrandTotalCents)
	assert.Equal(t, order.OrderNumber, order.Snapshot.Info.OrderNumber)

	expectedSuffix := time.Now().UTC().Format("010206")
	assert.Equal(t, fmt.Sprintf("ORD-001-%s", expectedSuffix), order.OrderNumber)
}

func TestConvertIsIdempotent(t *testing.T) {
	orders, _, proposal, user, _ := setupAcceptedProposal(t)

	first, err := orders.ConvertToOrder(proposal.ID, &user.ID)
	require.NoError(t, err)

	second, err := orders.ConvertToOrder(proposal.ID, &user.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.OrderNumber, second.OrderNumber)

	var count int64
	require.NoError(t, orders.db.Model(&models.Order{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestOrderImmuneToLaterCatalogChanges(t *testing.T) {
	orders, proposals, proposal, user, mfr := setupAcceptedProposal(t)

	order, err := orders.ConvertToOrder(proposal.ID, &user.ID)
	require.NoError(t, err)

	require.NoError(t, orders.db.Model(&models.Manufacturer{}).
		Where("id = ?", mfr.ID).
		Update("cost_multiplier", decimal.RequireFromString("3.0")).Error)

	reloaded, err := orders.GetOrder(order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30500), reloaded.GrandTotalCents)
	assert.Equal(t, int64(30500), reloaded.Snapshot.Tree.GrandTotalCents)
	assert.Equal(t, "1.5", reloaded.Snapshot.Manufacturer.Multiplier.String())

	// The proposal's own totals stay frozen too
	tree, err := proposals.ComputeTotals(proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30500), tree.GrandTotalCents)
}

func TestOrderNumbersSequencePerDay(t *testing.T) {
	db := newTestDB(t)
	proposals := newProposalService(db)
	orders := NewOrderService(db)
	user := createTestUser(t, db, "closer")
	mfr, item := createTestManufacturer(t, db)

	for i := 1; i <= 3; i++ {
		proposal := createTestProposal(t, db, mfr, item, user, models.ProposalStatusSent)
		_, _, err := proposals.Accept(proposal.ID, user.ID, "")
		require.NoError(t, err)

		order, err := orders.ConvertToOrder(proposal.ID, &user.ID)
		require.NoError(t, err)
		assert.Equal(t, i, order.OrderNumberSeq)
		assert.Contains(t, order.OrderNumber, fmt.Sprintf("ORD-%03d-", i))
	}
}

func TestOrderStatusLifecycle(t *testing.T) {
	orders, _, proposal, user, _ := setupAcceptedProposal(t)

	order, err := orders.ConvertToOrder(proposal.ID, &user.ID)
	require.NoError(t, err)

	processing, err := orders.UpdateStatus(order.ID, models.OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, processing.Status)

	completed, err := orders.UpdateStatus(order.ID, models.OrderStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, completed.Status)

	_, err = orders.UpdateStatus(order.ID, models.OrderStatusCanceled)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestGetOrderByProposal(t *testing.T) {
	orders, _, proposal, user, _ := setupAcceptedProposal(t)

	_, err := orders.GetOrderByProposal(proposal.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	created, err := orders.ConvertToOrder(proposal.ID, &user.ID)
	require.NoError(t, err)

	found, err := orders.GetOrderByProposal(proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
}
