// internal/handlers/proposal.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/njcabinets/sales-backend/internal/models"
	"github.com/njcabinets/sales-backend/internal/services"
	"github.com/njcabinets/sales-backend/internal/utils"
)

type ProposalHandler struct {
	proposalService     *services.ProposalService
	orderService        *services.OrderService
	notificationService *services.NotificationService
}

func NewProposalHandler(proposalService *services.ProposalService, orderService *services.OrderService, notificationService *services.NotificationService) *ProposalHandler {
	return &ProposalHandler{
		proposalService:     proposalService,
		orderService:        orderService,
		notificationService: notificationService,
	}
}

type acceptRequest struct {
	AcceptedBy string `json:"accepted_by,omitempty"`
}

// POST /proposals
func (h *ProposalHandler) CreateProposal(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}

	var req services.CreateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	proposal, err := h.proposalService.CreateProposal(actorID, nil, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, proposal)
}

// GET /proposals/:id
func (h *ProposalHandler) GetProposal(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid proposal ID", nil)
		return
	}

	proposal, err := h.proposalService.GetProposal(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, proposal)
}

// GET /proposals
func (h *ProposalHandler) ListProposals(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	searchParams := services.ProposalSearchParams{
		PaginationParams: params,
	}

	if status := c.Query("status"); status != "" {
		propStatus := models.ProposalStatus(status)
		searchParams.Status = &propStatus
	}
	if customerIDStr := c.Query("customer_id"); customerIDStr != "" {
		if customerID, err := uuid.Parse(customerIDStr); err == nil {
			searchParams.CustomerID = &customerID
		}
	}

	proposals, total, err := h.proposalService.SearchProposals(searchParams)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(proposals, total, params)
	utils.PaginatedResponse(c, result)
}

// PUT /proposals/:id
func (h *ProposalHandler) UpdateProposal(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid proposal ID", nil)
		return
	}

	var req services.UpdateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	proposal, err := h.proposalService.UpdateProposal(id, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, proposal)
}

// DELETE /proposals/:id (admin)
func (h *ProposalHandler) DeleteProposal(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid proposal ID", nil)
		return
	}

	if err := h.proposalService.DeleteProposal(id); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"deleted": true})
}

// GET /proposals/:id/totals
func (h *ProposalHandler) GetTotals(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid proposal ID", nil)
		return
	}

	tree, err := h.proposalService.ComputeTotals(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, tree)
}

// POST /proposals/:id/send
func (h *ProposalHandler) SendProposal(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid proposal ID", nil)
		return
	}

	proposal, err := h.proposalService.Send(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if full, err := h.proposalService.GetProposal(id); err == nil {
		if err := h.notificationService.NotifyProposalSent(full); err != nil {
			logrus.WithError(err).WithField("proposal_id", id).Warn("Failed to send proposal email")
		}
	}

	utils.SuccessResponse(c, proposal)
}

// POST /proposals/:id/accept
//
// Acceptance locks pricing, flips the status and converts to an order, all
// observable as one step to the caller. The conversion is idempotent, so a
// retried accept returns the same order.
func (h *ProposalHandler) AcceptProposal(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid proposal ID", nil)
		return
	}

	var req acceptRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request body", err.Error())
			return
		}
	}

	proposal, lock, err := h.proposalService.Accept(id, actorID, req.AcceptedBy)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	order, err := h.orderService.ConvertToOrder(id, &actorID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.notificationService.NotifyProposalAcceptedAsync(proposal, order)

	utils.SuccessResponse(c, gin.H{
		"proposal": proposal,
		"lock":     lock,
		"order":    order,
	})
}

// POST /proposals/:id/reject
func (h *ProposalHandler) RejectProposal(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid proposal ID", nil)
		return
	}

	proposal, err := h.proposalService.Reject(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, proposal)
}

// POST /proposals/:id/expire
func (h *ProposalHandler) ExpireProposal(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid proposal ID", nil)
		return
	}

	proposal, err := h.proposalService.Expire(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, proposal)
}

// POST /proposals/:id/lock
func (h *ProposalHandler) LockProposal(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid proposal ID", nil)
		return
	}

	lock, err := h.proposalService.Lock(id, actorID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, lock)
}

// GET /dashboard/counts
func (h *ProposalHandler) GetCounts(c *gin.Context) {
	counts, err := h.proposalService.GetCounts()
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, counts)
}

// GET /dashboard/latest
func (h *ProposalHandler) GetLatestProposals(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	proposals, err := h.proposalService.GetLatestProposals(limit)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, proposals)
}

func requireActor(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}

	actorID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return uuid.Nil, false
	}

	return actorID, true
}
