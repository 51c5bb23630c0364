// internal/services/order_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/njcabinets/sales-backend/internal/models"
	"github.com/njcabinets/sales-backend/internal/utils"
)

// OrderService converts accepted, locked proposals into orders and manages
// the order lifecycle afterwards.
type OrderService struct {
	db *gorm.DB
}

type OrderSearchParams struct {
	utils.PaginationParams
	Status       *models.OrderStatus
	OwnerGroupID *uuid.UUID
}

func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{db: db}
}

// ConvertToOrder creates the order for a proposal, or returns the existing
// one. The unique index on orders.proposal_id makes this idempotent under
// concurrency: of two racing converters exactly one insert commits and the
// loser reads the winner's row back. Both callers see the same order id.
func (s *OrderService) ConvertToOrder(proposalID uuid.UUID, actorID *uuid.UUID) (*models.Order, error) {
	if existing, err := s.findByProposal(proposalID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	var order *models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var proposal models.Proposal
		if err := tx.First(&proposal, "id = ?", proposalID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: proposal %s", ErrNotFound, proposalID)
			}
			return fmt.Errorf("database error: %w", err)
		}

		if proposal.Status != models.ProposalStatusAccepted {
			return fmt.Errorf("%w: proposal %s is %s, only accepted proposals convert", ErrPrecondition, proposalID, proposal.Status)
		}
		if !proposal.Locked() || proposal.OrderSnapshot == nil {
			return fmt.Errorf("%w: proposal %s has no locked pricing snapshot", ErrPrecondition, proposalID)
		}

		// Deep copy so later snapshot migrations or repairs on the proposal
		// side can never reach the order's record.
		snapshot, err := proposal.OrderSnapshot.Clone()
		if err != nil {
			return fmt.Errorf("failed to copy pricing snapshot: %w", err)
		}

		number, dateKey, seq, err := s.nextOrderNumber(tx, time.Now().UTC())
		if err != nil {
			return err
		}

		snapshot.Info.OrderNumber = number

		order = &models.Order{
			ProposalID:       proposal.ID,
			OrderNumber:      number,
			OrderNumberDate:  dateKey,
			OrderNumberSeq:   seq,
			OwnerGroupID:     proposal.OwnerGroupID,
			CustomerID:       proposal.CustomerID,
			ManufacturerID:   proposal.ManufacturerID,
			StyleName:        proposal.StyleName,
			Status:           models.OrderStatusNew,
			AcceptedAt:       proposal.AcceptedAt,
			AcceptedByUserID: proposal.LockedByUserID,
			AcceptedByLabel:  proposal.AcceptedByLabel,
			GrandTotalCents:  snapshot.Tree.GrandTotalCents,
			PartsCents:       snapshot.Tree.PartsCents,
			ModsCents:        snapshot.Tree.ModsCents,
			DeliveryFeeCents: snapshot.Tree.DeliveryFeeCents,
			Currency:         "USD",
			Snapshot:         *snapshot,
			CreatedByUserID:  actorID,
		}

		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		logrus.WithFields(logrus.Fields{
			"order_id":          order.ID,
			"order_number":      order.OrderNumber,
			"proposal_id":       proposal.ID,
			"grand_total_cents": order.GrandTotalCents,
		}).Info("Proposal converted to order")

		return nil
	})
	if err == nil {
		return order, nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrPrecondition) {
		return nil, err
	}

	// Any create failure may be the idempotency guard firing. If an order for
	// this proposal exists now, return it; otherwise surface the real error.
	if existing, findErr := s.findByProposal(proposalID); findErr == nil {
		return existing, nil
	}
	return nil, err
}

// GetOrderByProposal resolves the converted order for a proposal, if any.
func (s *OrderService) GetOrderByProposal(proposalID uuid.UUID) (*models.Order, error) {
	return s.findByProposal(proposalID)
}

func (s *OrderService) findByProposal(proposalID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.First(&order, "proposal_id = ?", proposalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no order for proposal %s", ErrNotFound, proposalID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &order, nil
}

func (s *OrderService) GetOrder(id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.Preload("Customer").Preload("Manufacturer").Preload("Proposal").
		First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &order, nil
}

func (s *OrderService) SearchOrders(params OrderSearchParams) ([]models.Order, int64, error) {
	query := s.db.Model(&models.Order{}).Preload("Customer").Preload("Manufacturer")

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.OwnerGroupID != nil {
		query = query.Where("owner_group_id = ?", *params.OwnerGroupID)
	}
	if params.Search != "" {
		query = query.Where("order_number ILIKE ?", "%"+params.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	allowedSortFields := []string{"created_at", "order_number", "status", "grand_total_cents"}
	query = utils.ApplySort(query, params.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, params.PaginationParams)

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch orders: %w", err)
	}

	return orders, total, nil
}

// UpdateStatus advances the order lifecycle. Pricing fields and the snapshot
// are never writable through this path.
func (s *OrderService) UpdateStatus(id uuid.UUID, next models.OrderStatus) (*models.Order, error) {
	var order *models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var o models.Order
		if err := tx.First(&o, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order %s", ErrNotFound, id)
			}
			return fmt.Errorf("database error: %w", err)
		}

		if !o.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: order %s cannot move from %s to %s", ErrConflict, id, o.Status, next)
		}

		if err := tx.Model(&models.Order{}).Where("id = ?", id).
			Update("status", next).Error; err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		o.Status = next
		order = &o
		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// nextOrderNumber allocates ORD-NNN-MMDDYY with a per-day sequence. The max
// read and the insert share the caller's transaction; a collision on the
// unique order_number index aborts the conversion, which then resolves via
// the fetch-existing path or a retry by the caller.
func (s *OrderService) nextOrderNumber(tx *gorm.DB, now time.Time) (string, string, int, error) {
	dateKey := now.Format("010206")

	var maxSeq int
	row := tx.Model(&models.Order{}).
		Where("order_number_date = ?", dateKey).
		Select("COALESCE(MAX(order_number_seq), 0)").
		Row()
	if err := row.Scan(&maxSeq); err != nil {
		return "", "", 0, fmt.Errorf("failed to read order number sequence: %w", err)
	}

	seq := maxSeq + 1
	return fmt.Sprintf("ORD-%03d-%s", seq, dateKey), dateKey, seq, nil
}
