package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appaccount "github.com/vetpms/backend/internal/application/account"
	"github.com/vetpms/backend/internal/interfaces/http/dto"
	"github.com/vetpms/backend/internal/interfaces/http/middleware"
)

// AllocationUseCase is the part of the allocation service the API exposes
type AllocationUseCase interface {
	AllocateCredit(ctx context.Context, creditID uuid.UUID) (*appaccount.AllocationResult, error)
	PreviewCreditAllocation(ctx context.Context, creditID uuid.UUID) (*appaccount.AllocationResult, error)
	AllocateCreditTo(ctx context.Context, creditID uuid.UUID, debitIDs []uuid.UUID) (*appaccount.AllocationResult, error)
}

// BalanceUseCase is the part of the balance service the API exposes
type BalanceUseCase interface {
	GetSummary(ctx context.Context, customerID uuid.UUID, asOf time.Time) (*appaccount.BalanceSummary, error)
	RebalanceCustomer(ctx context.Context, customerID uuid.UUID) (*appaccount.RebalanceResult, error)
}

// AccountHandler serves credit allocation and customer balance endpoints
type AccountHandler struct {
	BaseHandler
	allocation AllocationUseCase
	balances   BalanceUseCase
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(allocation AllocationUseCase, balances BalanceUseCase) *AccountHandler {
	return &AccountHandler{allocation: allocation, balances: balances}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *AccountHandler) RegisterRoutes(rg *gin.RouterGroup) {
	credits := rg.Group("/credits")
	credits.POST("/:id/allocate", h.AllocateCredit)
	credits.GET("/:id/allocation-preview", h.PreviewAllocation)
	credits.POST("/:id/allocate-to", h.AllocateCreditTo)

	customers := rg.Group("/customers")
	customers.GET("/:id/balance", h.GetBalance)
	customers.POST("/:id/rebalance", h.Rebalance)
}

// AllocateCredit runs and persists default allocation for a credit
//
//	POST /credits/:id/allocate
func (h *AccountHandler) AllocateCredit(c *gin.Context) {
	creditID, ok := h.parseID(c, "credit")
	if !ok {
		return
	}

	result, err := h.allocation.AllocateCredit(c.Request.Context(), creditID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// PreviewAllocation computes default allocation without saving it
//
//	GET /credits/:id/allocation-preview
func (h *AccountHandler) PreviewAllocation(c *gin.Context) {
	creditID, ok := h.parseID(c, "credit")
	if !ok {
		return
	}

	result, err := h.allocation.PreviewCreditAllocation(c.Request.Context(), creditID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// AllocateCreditTo allocates a credit to the listed debits in order
//
//	POST /credits/:id/allocate-to {"debit_ids": [...]}
func (h *AccountHandler) AllocateCreditTo(c *gin.Context) {
	creditID, ok := h.parseID(c, "credit")
	if !ok {
		return
	}

	var req dto.AllocateToRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	debitIDs := make([]uuid.UUID, 0, len(req.DebitIDs))
	for _, raw := range req.DebitIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid debit ID format: "+raw)
			return
		}
		debitIDs = append(debitIDs, id)
	}

	result, err := h.allocation.AllocateCreditTo(c.Request.Context(), creditID, debitIDs)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// GetBalance returns the customer's balance summary
//
//	GET /customers/:id/balance?as_of=2024-06-01
func (h *AccountHandler) GetBalance(c *gin.Context) {
	customerID, ok := h.parseID(c, "customer")
	if !ok {
		return
	}

	var query dto.BalanceQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	asOf, err := parseAsOf(query.AsOf)
	if err != nil {
		h.BadRequest(c, "as_of must be an RFC 3339 timestamp or a YYYY-MM-DD date")
		return
	}

	summary, err := h.balances.GetSummary(c.Request.Context(), customerID, asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// Rebalance applies every unallocated credit of the customer
//
//	POST /customers/:id/rebalance
func (h *AccountHandler) Rebalance(c *gin.Context) {
	customerID, ok := h.parseID(c, "customer")
	if !ok {
		return
	}

	result, err := h.balances.RebalanceCustomer(c.Request.Context(), customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// parseAsOf accepts RFC 3339 or a plain date. Empty means now, left to the service.
func parseAsOf(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, raw)
}
