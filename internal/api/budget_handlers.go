package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NgigiN/fintrack/internal/budget"
	"github.com/NgigiN/fintrack/internal/domain"
	"github.com/NgigiN/fintrack/internal/money"
)

// GetBudget evaluates the budget against accountId, or the default account when omitted.
func (h *Handler) GetBudget(c *gin.Context) {
	ctx := c.Request.Context()
	accountID := c.Query("accountId")
	if accountID == "" {
		account, err := h.ledger.DefaultAccount(ctx, userID(c))
		if err != nil {
			h.respondError(c, err)
			return
		}
		accountID = account.ID
	}

	status, err := h.budgets.Evaluate(ctx, userID(c), accountID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

type upsertBudgetRequest struct {
	Amount *money.Money `json:"amount"`
}

func (h *Handler) UpsertBudget(c *gin.Context) {
	var req upsertBudgetRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if req.Amount == nil {
		h.respondError(c, fmt.Errorf("%w: amount is required", domain.ErrInvalidInput))
		return
	}
	b, err := h.budgets.UpsertBudget(c.Request.Context(), userID(c), *req.Amount)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) GetReport(c *gin.Context) {
	month, err := budget.ParseMonth(c.Param("month"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	report, err := h.budgets.Report(c.Request.Context(), userID(c), month)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// SendReport delivers the month's report through the configured notifier.
func (h *Handler) SendReport(c *gin.Context) {
	month, err := budget.ParseMonth(c.Param("month"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	report, err := h.budgets.SendReport(c.Request.Context(), userID(c), month)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ProcessRecurring materializes the caller's recurring template now if it is due.
func (h *Handler) ProcessRecurring(c *gin.Context) {
	child, err := h.recurrence.Process(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, child)
}

func (h *Handler) RunRecurring(c *gin.Context) {
	result, err := h.recurrence.Scan(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) RunBudgetAlerts(c *gin.Context) {
	result, err := h.budgets.ScanAlerts(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
