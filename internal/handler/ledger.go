package handler

import (
	"net/http"

	"cashledger/internal/apierror"
	"cashledger/internal/dto"
	"cashledger/internal/middleware"
	"cashledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LedgerHandler exposes the cash-affecting operations. All of them are refused
// with 423 while the register is closed for the day.
type LedgerHandler struct {
	contexts *service.ContextFactory
	svc      service.LedgerService
}

func NewLedgerHandler(contexts *service.ContextFactory, svc service.LedgerService) *LedgerHandler {
	return &LedgerHandler{contexts: contexts, svc: svc}
}

// RecordSale godoc
// @Summary Records a sale and, when paid, its cash movement
// @Tags ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Param body body dto.RecordTransactionRequest true "Sale"
// @Success 201 {object} dto.TransactionResponse
// @Failure 423 {object} apierror.APIError
// @Router /v1/registers/{id}/sales [post]
func (h *LedgerHandler) RecordSale(c *gin.Context) {
	var req dto.RecordTransactionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	rc, ok := registerContext(c, h.contexts)
	if !ok {
		return
	}
	resp, err := h.svc.RecordSale(c.Request.Context(), rc, middleware.GetClaims(c).ActingAs(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// RecordPurchase godoc
// @Summary Records a purchase and, when paid, its cash movement
// @Tags ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Param body body dto.RecordTransactionRequest true "Purchase"
// @Success 201 {object} dto.TransactionResponse
// @Failure 423 {object} apierror.APIError
// @Router /v1/registers/{id}/purchases [post]
func (h *LedgerHandler) RecordPurchase(c *gin.Context) {
	var req dto.RecordTransactionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	rc, ok := registerContext(c, h.contexts)
	if !ok {
		return
	}
	resp, err := h.svc.RecordPurchase(c.Request.Context(), rc, middleware.GetClaims(c).ActingAs(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// RecordMovement godoc
// @Summary Manual deposit, withdrawal or bank deposit
// @Tags ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Param body body dto.ManualMovementRequest true "Movement"
// @Success 201 {object} dto.MovementResponse
// @Failure 423 {object} apierror.APIError
// @Router /v1/registers/{id}/movements [post]
func (h *LedgerHandler) RecordMovement(c *gin.Context) {
	var req dto.ManualMovementRequest
	if !bindAndValidate(c, &req) {
		return
	}
	rc, ok := registerContext(c, h.contexts)
	if !ok {
		return
	}
	resp, err := h.svc.RecordMovement(c.Request.Context(), rc, middleware.GetClaims(c).ActingAs(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// RecordExpense godoc
// @Summary Records an expense with its cash movement
// @Tags ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Param body body dto.RecordExpenseRequest true "Expense"
// @Success 201 {object} dto.ExpenseResponse
// @Failure 423 {object} apierror.APIError
// @Router /v1/registers/{id}/expenses [post]
func (h *LedgerHandler) RecordExpense(c *gin.Context) {
	var req dto.RecordExpenseRequest
	if !bindAndValidate(c, &req) {
		return
	}
	rc, ok := registerContext(c, h.contexts)
	if !ok {
		return
	}
	resp, err := h.svc.RecordExpense(c.Request.Context(), rc, middleware.GetClaims(c).ActingAs(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// DeleteExpense godoc
// @Summary Deletes an expense and its movement while its day is open
// @Tags ledger
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Param expenseId path string true "Expense ID"
// @Success 204
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/registers/{id}/expenses/{expenseId} [delete]
func (h *LedgerHandler) DeleteExpense(c *gin.Context) {
	id, err := uuid.Parse(c.Param("expenseId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid expense ID"))
		return
	}
	rc, ok := registerContext(c, h.contexts)
	if !ok {
		return
	}
	if err := h.svc.DeleteExpense(c.Request.Context(), rc, id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Settle godoc
// @Summary Pays (part of) the outstanding amount of a sale or purchase
// @Tags ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Param txId path string true "Transaction ID"
// @Param body body dto.SettlementRequest true "Payment"
// @Success 200 {object} dto.TransactionResponse
// @Failure 409 {object} apierror.APIError
// @Failure 423 {object} apierror.APIError
// @Router /v1/registers/{id}/transactions/{txId}/settlements [post]
func (h *LedgerHandler) Settle(c *gin.Context) {
	txID, err := uuid.Parse(c.Param("txId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid transaction ID"))
		return
	}
	var req dto.SettlementRequest
	if !bindAndValidate(c, &req) {
		return
	}
	rc, ok := registerContext(c, h.contexts)
	if !ok {
		return
	}
	resp, err := h.svc.Settle(c.Request.Context(), rc, middleware.GetClaims(c).ActingAs(), txID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
