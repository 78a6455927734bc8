package handler

import (
	"net/http"

	"cashledger/internal/dto"
	"cashledger/internal/middleware"
	"cashledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// SweepTrigger is satisfied by *worker.SweepScheduler.
type SweepTrigger interface {
	Schedule(rc service.RegisterContext, triggeredBy string) bool
}

type AuthHandler struct {
	svc      service.AuthService
	contexts *service.ContextFactory
	sweeps   SweepTrigger
}

func NewAuthHandler(svc service.AuthService, contexts *service.ContextFactory, sweeps SweepTrigger) *AuthHandler {
	return &AuthHandler{svc: svc, contexts: contexts, sweeps: sweeps}
}

// Login godoc
// @Summary Operator login; supervisors may act on behalf of a cashier
// @Description A successful login schedules the auto-closing of forgotten days
// @Description for the session's register.
// @Tags auth
// @Accept json
// @Produce json
// @Param body body dto.LoginRequest true "Credentials"
// @Success 200 {object} dto.LoginResponse
// @Failure 401 {object} apierror.APIError
// @Failure 403 {object} apierror.APIError
// @Router /v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	h.scheduleSweep(c, resp)
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) scheduleSweep(c *gin.Context, resp *dto.LoginResponse) {
	if h.sweeps == nil {
		return
	}
	rc, err := h.contexts.Resolve(c.Request.Context(), resp.User.TenantID, resp.RegisterID)
	if err != nil {
		log.Warn().Err(err).Str("register_id", resp.RegisterID).Msg("sweep not scheduled")
		return
	}
	by := resp.User.Name
	if resp.ActingAs != nil {
		by = resp.ActingAs.Display
	}
	h.sweeps.Schedule(rc, by)
}

// Refresh godoc
// @Summary Exchanges a refresh token for a new token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param body body dto.RefreshRequest true "Refresh token"
// @Success 200 {object} dto.LoginResponse
// @Failure 401 {object} apierror.APIError
// @Router /v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CreateOperator godoc
// @Summary Creates an operator in the caller's tenant
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CreateOperatorRequest true "Operator"
// @Success 201 {object} dto.OperatorResponse
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/operators [post]
func (h *AuthHandler) CreateOperator(c *gin.Context) {
	var req dto.CreateOperatorRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CreateOperator(c.Request.Context(), middleware.GetClaims(c).TenantID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}
