package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NgigiN/fintrack/internal/domain"
	"github.com/NgigiN/fintrack/internal/ledger"
	"github.com/NgigiN/fintrack/internal/money"
)

func (h *Handler) CreateAccount(c *gin.Context) {
	var in ledger.AccountInput
	if !h.bindJSON(c, &in) {
		return
	}
	account, err := h.ledger.CreateAccount(c.Request.Context(), userID(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

func (h *Handler) ListAccounts(c *gin.Context) {
	accounts, err := h.ledger.ListAccounts(c.Request.Context(), userID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

type setDefaultRequest struct {
	AccountID string `json:"accountId"`
}

func (h *Handler) SetDefaultAccount(c *gin.Context) {
	var req setDefaultRequest
	if !h.bindJSON(c, &req) {
		return
	}
	account, err := h.ledger.SetDefaultAccount(c.Request.Context(), userID(c), req.AccountID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// transactionRequest makes amount mandatory; a zero value is only accepted when sent.
type transactionRequest struct {
	ledger.TransactionInput
	Amount *money.Money `json:"amount"`
}

func (h *Handler) bindTransaction(c *gin.Context) (ledger.TransactionInput, bool) {
	var req transactionRequest
	if !h.bindJSON(c, &req) {
		return ledger.TransactionInput{}, false
	}
	if req.Amount == nil {
		h.respondError(c, fmt.Errorf("%w: amount is required", domain.ErrInvalidInput))
		return ledger.TransactionInput{}, false
	}
	in := req.TransactionInput
	in.Amount = *req.Amount
	return in, true
}

func (h *Handler) CreateTransaction(c *gin.Context) {
	in, ok := h.bindTransaction(c)
	if !ok {
		return
	}
	txn, err := h.ledger.CreateTransaction(c.Request.Context(), userID(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

func (h *Handler) ListTransactions(c *gin.Context) {
	txns, err := h.ledger.ListTransactions(c.Request.Context(), userID(c), c.Query("accountId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txns)
}

func (h *Handler) GetTransaction(c *gin.Context) {
	txn, err := h.ledger.GetTransaction(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}

func (h *Handler) UpdateTransaction(c *gin.Context) {
	in, ok := h.bindTransaction(c)
	if !ok {
		return
	}
	txn, err := h.ledger.UpdateTransaction(c.Request.Context(), userID(c), c.Param("id"), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}

type bulkDeleteRequest struct {
	TransactionIDs []string `json:"transactionIds"`
}

func (h *Handler) BulkDeleteTransactions(c *gin.Context) {
	var req bulkDeleteRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.ledger.BulkDeleteTransactions(c.Request.Context(), userID(c), req.TransactionIDs)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": result.Deleted, "balanceChanges": result.BalanceChanges})
}
