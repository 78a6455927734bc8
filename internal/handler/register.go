package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"cashledger/internal/apierror"
	"cashledger/internal/dto"
	"cashledger/internal/infra"
	"cashledger/internal/middleware"
	"cashledger/internal/model"
	"cashledger/internal/repository"
	"cashledger/internal/service"

	"github.com/gin-gonic/gin"
)

// EventSubscriber is satisfied by *infra.Notifier.
type EventSubscriber interface {
	Subscribe(ctx context.Context, tenantID, registerID string) (<-chan infra.LedgerEvent, func() error)
}

type RegisterHandler struct {
	contexts   *service.ContextFactory
	lock       service.LockService
	aggregator service.AggregatorService
	registers  repository.RegisterRepository
	events     EventSubscriber
}

func NewRegisterHandler(
	contexts *service.ContextFactory,
	lock service.LockService,
	aggregator service.AggregatorService,
	registers repository.RegisterRepository,
	events EventSubscriber,
) *RegisterHandler {
	return &RegisterHandler{contexts: contexts, lock: lock, aggregator: aggregator, registers: registers, events: events}
}

// Lock godoc
// @Summary Lock status of the register for the current business day
// @Tags registers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Success 200 {object} dto.LockStatusResponse
// @Router /v1/registers/{id}/lock [get]
func (h *RegisterHandler) Lock(c *gin.Context) {
	rc, ok := registerContext(c, h.contexts)
	if !ok {
		return
	}
	st, err := h.lock.Status(c.Request.Context(), rc)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.LockStatusResponse(st, rc))
}

// Summary godoc
// @Summary All-time and today balances plus today's sales breakdown
// @Tags registers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Success 200 {object} dto.SessionSummaryResponse
// @Router /v1/registers/{id}/summary [get]
func (h *RegisterHandler) Summary(c *gin.Context) {
	rc, ok := registerContext(c, h.contexts)
	if !ok {
		return
	}
	resp, err := h.aggregator.Summary(c.Request.Context(), rc)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func scopeOf(c *gin.Context) (service.Scope, bool) {
	switch c.DefaultQuery("scope", string(service.ScopeToday)) {
	case string(service.ScopeToday):
		return service.ScopeToday, true
	case string(service.ScopeAllTime):
		return service.ScopeAllTime, true
	}
	c.JSON(http.StatusBadRequest, apierror.New("scope must be today or all-time"))
	return "", false
}

// Movements godoc
// @Summary Cash movements of the register
// @Tags registers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Param scope query string false "today (default) or all-time"
// @Success 200 {array} dto.MovementResponse
// @Router /v1/registers/{id}/movements [get]
func (h *RegisterHandler) Movements(c *gin.Context) {
	rc, ok := registerContext(c, h.contexts)
	if !ok {
		return
	}
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	resp, err := h.aggregator.Movements(c.Request.Context(), rc, scope)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Transactions godoc
// @Summary Sales and purchases of the register
// @Tags registers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Param scope query string false "today (default) or all-time"
// @Success 200 {array} dto.TransactionResponse
// @Router /v1/registers/{id}/transactions [get]
func (h *RegisterHandler) Transactions(c *gin.Context) {
	rc, ok := registerContext(c, h.contexts)
	if !ok {
		return
	}
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	resp, err := h.aggregator.Transactions(c.Request.Context(), rc, scope)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Upsert godoc
// @Summary Create or rename a register and set its time zone
// @Tags registers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Param body body dto.UpsertRegisterRequest true "Register"
// @Success 200 {object} dto.RegisterResponse
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/registers/{id} [put]
func (h *RegisterHandler) Upsert(c *gin.Context) {
	var req dto.UpsertRegisterRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	reg := &model.Register{
		ID:       c.Param("id"),
		TenantID: claims.TenantID,
		Name:     req.Name,
		TimeZone: req.TimeZone,
		Active:   true,
	}
	if err := h.registers.Upsert(c.Request.Context(), reg); err != nil {
		writeError(c, &service.PersistenceError{Op: "upsert register", Err: err})
		return
	}
	c.JSON(http.StatusOK, dto.RegisterResponse{ID: reg.ID, Name: reg.Name, TimeZone: reg.TimeZone, Active: reg.Active})
}

// Get godoc
// @Summary Register details
// @Tags registers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Success 200 {object} dto.RegisterResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/registers/{id} [get]
func (h *RegisterHandler) Get(c *gin.Context) {
	claims := middleware.GetClaims(c)
	reg, err := h.registers.FindByID(c.Request.Context(), claims.TenantID, c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		writeError(c, service.ErrNotFound)
		return
	}
	if err != nil {
		writeError(c, &service.PersistenceError{Op: "load register", Err: err})
		return
	}
	c.JSON(http.StatusOK, dto.RegisterResponse{ID: reg.ID, Name: reg.Name, TimeZone: reg.TimeZone, Active: reg.Active})
}

// Events godoc
// @Summary Server-sent stream of ledger changes for the register
// @Tags registers
// @Produce text/event-stream
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Router /v1/registers/{id}/events [get]
func (h *RegisterHandler) Events(c *gin.Context) {
	claims := middleware.GetClaims(c)
	ctx := c.Request.Context()
	events, closeSub := h.events.Subscribe(ctx, claims.TenantID, c.Param("id"))
	defer func() { _ = closeSub() }()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(ev.Type, ev)
			return true
		}
	})
}
