// internal/services/proposal_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/njcabinets/sales-backend/internal/models"
	"github.com/njcabinets/sales-backend/internal/pricing"
	"github.com/njcabinets/sales-backend/internal/utils"
)

// ProposalService owns the proposal lifecycle: draft editing with advisory
// totals, the state machine, and the lock manager that freezes pricing into
// an immutable snapshot at acceptance.
type ProposalService struct {
	db              *gorm.DB
	customerService *CustomerService
}

type CreateProposalRequest struct {
	CustomerID     *uuid.UUID              `json:"customer_id,omitempty"`
	CustomerName   string                  `json:"customer_name,omitempty" validate:"max=255"`
	CustomerEmail  string                  `json:"customer_email,omitempty" validate:"omitempty,email"`
	ManufacturerID *uuid.UUID              `json:"manufacturer_id,omitempty"`
	Description    string                  `json:"description,omitempty"`
	StyleName      string                  `json:"style_name,omitempty" validate:"max=100"`
	Sections       models.ProposalSections `json:"sections,omitempty"`
}

type UpdateProposalRequest struct {
	CustomerID     *uuid.UUID               `json:"customer_id,omitempty"`
	ManufacturerID *uuid.UUID               `json:"manufacturer_id,omitempty"`
	Description    *string                  `json:"description,omitempty"`
	StyleName      *string                  `json:"style_name,omitempty" validate:"omitempty,max=100"`
	Sections       *models.ProposalSections `json:"sections,omitempty"`
}

// LockResult reports the lock metadata. Repeat calls on a locked proposal
// return the original lock, never a new one.
type LockResult struct {
	LockedAt   time.Time               `json:"locked_at"`
	LockedBy   uuid.UUID               `json:"locked_by"`
	Snapshot   *models.PricingSnapshot `json:"snapshot"`
	AlreadyHad bool                    `json:"already_locked"`
}

type ProposalSearchParams struct {
	utils.PaginationParams
	Status       *models.ProposalStatus
	CustomerID   *uuid.UUID
	OwnerGroupID *uuid.UUID
}

func NewProposalService(db *gorm.DB, customerService *CustomerService) *ProposalService {
	return &ProposalService{
		db:              db,
		customerService: customerService,
	}
}

func (s *ProposalService) CreateProposal(actorID uuid.UUID, ownerGroupID *uuid.UUID, req *CreateProposalRequest) (*models.Proposal, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var proposal *models.Proposal
	err := s.db.Transaction(func(tx *gorm.DB) error {
		customerID := req.CustomerID
		if customerID == nil && req.CustomerName != "" && req.CustomerEmail != "" {
			customer, err := s.customerService.FindOrCreateByEmail(tx, req.CustomerName, req.CustomerEmail, ownerGroupID)
			if err != nil {
				return err
			}
			customerID = &customer.ID
		}

		proposal = &models.Proposal{
			CustomerID:         customerID,
			ManufacturerID:     req.ManufacturerID,
			OwnerGroupID:       ownerGroupID,
			Status:             models.ProposalStatusDraft,
			Description:        req.Description,
			StyleName:          req.StyleName,
			Sections:           req.Sections,
			MigratedToSections: true,
			CreatedByUserID:    &actorID,
		}

		if err := tx.Create(proposal).Error; err != nil {
			return fmt.Errorf("failed to create proposal: %w", err)
		}

		return s.refreshAdvisoryTotals(tx, proposal)
	})
	if err != nil {
		return nil, err
	}

	return proposal, nil
}

// UpdateProposal edits line items and references while the proposal is
// unlocked. Once locked, only status may change; any attempt to touch
// priced content is a conflict.
func (s *ProposalService) UpdateProposal(id uuid.UUID, req *UpdateProposalRequest) (*models.Proposal, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var proposal *models.Proposal
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var p models.Proposal
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: proposal %s", ErrNotFound, id)
			}
			return fmt.Errorf("database error: %w", err)
		}

		if p.Locked() {
			return fmt.Errorf("%w: proposal %s has locked pricing", ErrConflict, id)
		}
		if p.Status.TerminalForPricing() {
			return fmt.Errorf("%w: proposal %s is %s", ErrConflict, id, p.Status)
		}

		if req.CustomerID != nil {
			p.CustomerID = req.CustomerID
		}
		if req.ManufacturerID != nil {
			p.ManufacturerID = req.ManufacturerID
		}
		if req.Description != nil {
			p.Description = *req.Description
		}
		if req.StyleName != nil {
			p.StyleName = *req.StyleName
		}
		if req.Sections != nil {
			p.Sections = *req.Sections
		}

		if err := tx.Save(&p).Error; err != nil {
			return fmt.Errorf("failed to update proposal: %w", err)
		}

		if err := s.refreshAdvisoryTotals(tx, &p); err != nil {
			return err
		}

		proposal = &p
		return nil
	})
	if err != nil {
		return nil, err
	}

	return proposal, nil
}

func (s *ProposalService) GetProposal(id uuid.UUID) (*models.Proposal, error) {
	var proposal models.Proposal
	if err := s.db.Preload("Customer").Preload("Manufacturer").Preload("CreatedBy").
		First(&proposal, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: proposal %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &proposal, nil
}

func (s *ProposalService) SearchProposals(params ProposalSearchParams) ([]models.Proposal, int64, error) {
	query := s.db.Model(&models.Proposal{}).Preload("Customer").Preload("Manufacturer")

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.CustomerID != nil {
		query = query.Where("customer_id = ?", *params.CustomerID)
	}
	if params.OwnerGroupID != nil {
		query = query.Where("owner_group_id = ?", *params.OwnerGroupID)
	}
	if params.Search != "" {
		query = query.Where("description ILIKE ?", "%"+params.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count proposals: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "status"}
	query = utils.ApplySort(query, params.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, params.PaginationParams)

	var proposals []models.Proposal
	if err := query.Find(&proposals).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch proposals: %w", err)
	}

	return proposals, total, nil
}

// ComputeTotals prices the proposal against current catalog and manufacturer
// data. Safe to call any number of times pre-lock; once locked it returns
// the frozen tree from the snapshot without recomputing.
func (s *ProposalService) ComputeTotals(id uuid.UUID) (*models.ComputedTree, error) {
	var proposal models.Proposal
	if err := s.db.First(&proposal, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: proposal %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if proposal.Locked() && proposal.OrderSnapshot != nil {
		tree := proposal.OrderSnapshot.Tree
		return &tree, nil
	}

	mfrCtx, lookup, err := s.loadPricingInputs(s.db, &proposal)
	if err != nil {
		return nil, err
	}

	return pricing.Compute(proposal.Sections, mfrCtx, lookup), nil
}

// Lock freezes the proposal's pricing. At-most-once: exactly one caller
// performs the lock, all later or concurrent callers get the recorded
// metadata back as a no-op. The conditional update on locked_pricing is the
// exclusivity guard; all lock fields commit together or not at all.
func (s *ProposalService) Lock(proposalID, actingUserID uuid.UUID) (*LockResult, error) {
	var result *LockResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var p models.Proposal
		if err := tx.Preload("Customer").First(&p, "id = ?", proposalID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: proposal %s", ErrNotFound, proposalID)
			}
			return fmt.Errorf("database error: %w", err)
		}

		res, err := s.lockTx(tx, &p, actingUserID)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *ProposalService) lockTx(tx *gorm.DB, p *models.Proposal, actingUserID uuid.UUID) (*LockResult, error) {
	if p.Locked() {
		return existingLock(p), nil
	}

	if p.Status.TerminalForPricing() {
		return nil, fmt.Errorf("%w: proposal %s is %s and cannot be locked", ErrConflict, p.ID, p.Status)
	}
	if !p.Status.Lockable() {
		return nil, fmt.Errorf("%w: proposal %s in status %s is not lockable", ErrConflict, p.ID, p.Status)
	}

	mfrCtx, lookup, err := s.loadPricingInputs(tx, p)
	if err != nil {
		return nil, err
	}

	// Unverified pricing never blocks the lock: a frozen imperfect price
	// beats an unbounded negotiation window. The flag rides in the snapshot.
	tree := pricing.Compute(p.Sections, mfrCtx, lookup)

	now := time.Now().UTC()
	info := models.SnapshotInfo{
		ProposalID:      p.ID,
		CustomerID:      p.CustomerID,
		OwnerGroupID:    p.OwnerGroupID,
		CreatedByUserID: p.CreatedByUserID,
		AcceptedByLabel: p.AcceptedByLabel,
		AcceptedAt:      p.AcceptedAt,
	}
	if p.Customer != nil {
		info.CustomerName = p.Customer.Name
	}

	snapshot := pricing.NewSnapshot(tree, mfrCtx, info, now)

	res := tx.Model(&models.Proposal{}).
		Where("id = ? AND locked_pricing = ?", p.ID, false).
		Updates(map[string]interface{}{
			"locked_pricing":    true,
			"locked_at":         now,
			"locked_by_user_id": actingUserID,
			"order_snapshot":    snapshot,
			"grand_total_cents": tree.GrandTotalCents,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to lock proposal: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		// Lost the race: another caller locked between our read and the
		// conditional update. Report their lock, do not recompute.
		var current models.Proposal
		if err := tx.First(&current, "id = ?", p.ID).Error; err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		*p = current
		return existingLock(&current), nil
	}

	p.LockedPricing = true
	p.LockedAt = &now
	p.LockedByUserID = &actingUserID
	p.OrderSnapshot = snapshot
	p.GrandTotalCents = tree.GrandTotalCents

	logrus.WithFields(logrus.Fields{
		"proposal_id":       p.ID,
		"locked_by":         actingUserID,
		"grand_total_cents": tree.GrandTotalCents,
		"unverified":        tree.HasUnverifiedPricing,
	}).Info("Proposal pricing locked")

	return &LockResult{LockedAt: now, LockedBy: actingUserID, Snapshot: snapshot}, nil
}

func existingLock(p *models.Proposal) *LockResult {
	result := &LockResult{Snapshot: p.OrderSnapshot, AlreadyHad: true}
	if p.LockedAt != nil {
		result.LockedAt = *p.LockedAt
	}
	if p.LockedByUserID != nil {
		result.LockedBy = *p.LockedByUserID
	}
	return result
}

// Send moves a draft out for customer review.
func (s *ProposalService) Send(id uuid.UUID) (*models.Proposal, error) {
	return s.transition(id, models.ProposalStatusSent, func(p *models.Proposal, now time.Time) {
		p.SentAt = &now
	})
}

// Accept locks pricing and transitions to accepted as one unit of work. If
// the lock cannot be acquired the status change rolls back with it.
func (s *ProposalService) Accept(id, actingUserID uuid.UUID, acceptedByLabel string) (*models.Proposal, *LockResult, error) {
	var proposal *models.Proposal
	var lock *LockResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var p models.Proposal
		if err := tx.Preload("Customer").First(&p, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: proposal %s", ErrNotFound, id)
			}
			return fmt.Errorf("database error: %w", err)
		}

		// Re-accepting an accepted, locked proposal is a no-op so the
		// downstream conversion path stays idempotent end to end.
		if p.Status == models.ProposalStatusAccepted && p.Locked() {
			proposal = &p
			lock = existingLock(&p)
			return nil
		}

		if !p.Status.CanTransitionTo(models.ProposalStatusAccepted) {
			return fmt.Errorf("%w: proposal %s cannot move from %s to accepted", ErrConflict, id, p.Status)
		}

		now := time.Now().UTC()
		p.AcceptedAt = &now
		p.AcceptedByLabel = acceptedByLabel

		res, err := s.lockTx(tx, &p, actingUserID)
		if err != nil {
			return err
		}
		lock = res

		if err := tx.Model(&models.Proposal{}).Where("id = ?", p.ID).
			Updates(map[string]interface{}{
				"status":            models.ProposalStatusAccepted,
				"accepted_at":       now,
				"accepted_by_label": acceptedByLabel,
			}).Error; err != nil {
			return fmt.Errorf("failed to accept proposal: %w", err)
		}

		p.Status = models.ProposalStatusAccepted
		proposal = &p
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return proposal, lock, nil
}

// Reject cancels the proposal. Allowed from draft or sent; a locked snapshot
// (if any) is retained untouched for audit.
func (s *ProposalService) Reject(id uuid.UUID) (*models.Proposal, error) {
	return s.transition(id, models.ProposalStatusRejected, nil)
}

// Expire marks a stale proposal. Same rules as Reject.
func (s *ProposalService) Expire(id uuid.UUID) (*models.Proposal, error) {
	return s.transition(id, models.ProposalStatusExpired, nil)
}

func (s *ProposalService) transition(id uuid.UUID, next models.ProposalStatus, apply func(*models.Proposal, time.Time)) (*models.Proposal, error) {
	var proposal *models.Proposal
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var p models.Proposal
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: proposal %s", ErrNotFound, id)
			}
			return fmt.Errorf("database error: %w", err)
		}

		if !p.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: proposal %s cannot move from %s to %s", ErrConflict, id, p.Status, next)
		}

		now := time.Now().UTC()
		p.Status = next
		if apply != nil {
			apply(&p, now)
		}

		if err := tx.Save(&p).Error; err != nil {
			return fmt.Errorf("failed to update proposal status: %w", err)
		}

		proposal = &p
		return nil
	})
	if err != nil {
		return nil, err
	}

	return proposal, nil
}

// DeleteProposal soft-deletes an unlocked proposal. A locked proposal is an
// audit record and cannot be removed.
func (s *ProposalService) DeleteProposal(id uuid.UUID) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var p models.Proposal
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: proposal %s", ErrNotFound, id)
			}
			return fmt.Errorf("database error: %w", err)
		}

		if p.Locked() {
			return fmt.Errorf("%w: proposal %s has locked pricing and cannot be deleted", ErrConflict, id)
		}

		if err := tx.Delete(&p).Error; err != nil {
			return fmt.Errorf("failed to delete proposal: %w", err)
		}
		return nil
	})
}

// GetCounts powers the dashboard: open proposals vs converted orders.
func (s *ProposalService) GetCounts() (map[string]int64, error) {
	counts := make(map[string]int64)

	var activeProposals int64
	if err := s.db.Model(&models.Proposal{}).
		Where("status IN ?", []models.ProposalStatus{models.ProposalStatusDraft, models.ProposalStatusSent}).
		Count(&activeProposals).Error; err != nil {
		return nil, fmt.Errorf("failed to count proposals: %w", err)
	}

	var activeOrders int64
	if err := s.db.Model(&models.Order{}).
		Where("status IN ?", []models.OrderStatus{models.OrderStatusNew, models.OrderStatusProcessing}).
		Count(&activeOrders).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	counts["active_proposals"] = activeProposals
	counts["active_orders"] = activeOrders
	return counts, nil
}

func (s *ProposalService) GetLatestProposals(limit int) ([]models.Proposal, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	var proposals []models.Proposal
	if err := s.db.Preload("Customer").
		Order("updated_at DESC").
		Limit(limit).
		Find(&proposals).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch latest proposals: %w", err)
	}

	return proposals, nil
}

// loadPricingInputs reads the manufacturer context and a point-in-time
// catalog lookup inside the caller's transaction so the computation and the
// lock observe the same data.
func (s *ProposalService) loadPricingInputs(tx *gorm.DB, p *models.Proposal) (models.ManufacturerContext, pricing.CatalogLookup, error) {
	if p.ManufacturerID == nil {
		// Ad-hoc proposal: prices pass through unmultiplied.
		return models.ManufacturerContext{Multiplier: decimal.NewFromInt(1)}, pricing.NoCatalog, nil
	}

	var manufacturer models.Manufacturer
	if err := tx.Preload("CatalogItems").First(&manufacturer, "id = ?", *p.ManufacturerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ManufacturerContext{}, nil, fmt.Errorf("%w: manufacturer %s", ErrNotFound, *p.ManufacturerID)
		}
		return models.ManufacturerContext{}, nil, fmt.Errorf("database error: %w", err)
	}

	catalog := make(map[uuid.UUID]*models.CatalogItem, len(manufacturer.CatalogItems))
	for i := range manufacturer.CatalogItems {
		item := manufacturer.CatalogItems[i]
		catalog[item.ID] = &item
	}

	lookup := func(id uuid.UUID) (*models.CatalogItem, bool) {
		item, ok := catalog[id]
		return item, ok
	}

	return manufacturer.PricingContext(), lookup, nil
}

// refreshAdvisoryTotals keeps the denormalized grand total current while the
// proposal is editable. It is display-only; the snapshot is authoritative
// after locking.
func (s *ProposalService) refreshAdvisoryTotals(tx *gorm.DB, p *models.Proposal) error {
	mfrCtx, lookup, err := s.loadPricingInputs(tx, p)
	if err != nil {
		// A dangling manufacturer reference must not block saving a draft.
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	tree := pricing.Compute(p.Sections, mfrCtx, lookup)
	if tree.GrandTotalCents == p.GrandTotalCents {
		return nil
	}

	p.GrandTotalCents = tree.GrandTotalCents
	return tx.Model(&models.Proposal{}).Where("id = ?", p.ID).
		Update("grand_total_cents", tree.GrandTotalCents).Error
}
