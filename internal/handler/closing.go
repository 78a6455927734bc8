package handler

import (
	"errors"
	"io"
	"net/http"

	"cashledger/internal/apierror"
	"cashledger/internal/dto"
	"cashledger/internal/infra"
	"cashledger/internal/middleware"
	"cashledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type ClosingHandler struct {
	contexts *service.ContextFactory
	closing  service.ClosingService
	sweeper  service.SweeperService
	reports  infra.ReportStore
}

func NewClosingHandler(contexts *service.ContextFactory, closing service.ClosingService, sweeper service.SweeperService, reports infra.ReportStore) *ClosingHandler {
	return &ClosingHandler{contexts: contexts, closing: closing, sweeper: sweeper, reports: reports}
}

// State godoc
// @Summary Closing state of the register: OPEN, CLOSING_IN_PROGRESS or CLOSED
// @Tags closing
// @Produce json
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Success 200 {object} dto.ClosingStateResponse
// @Router /v1/registers/{id}/closing/state [get]
func (h *ClosingHandler) State(c *gin.Context) {
	rc, ok := registerContext(c, h.contexts)
	if !ok {
		return
	}
	state, st, err := h.closing.State(c.Request.Context(), rc)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := dto.ClosingStateResponse{State: string(state)}
	if st != nil && st.Locked {
		id := st.ClosingID
		resp.ClosingID = &id
	}
	c.JSON(http.StatusOK, resp)
}

// Prepare godoc
// @Summary Step 1: expected cash and today's figures; marks the count as started
// @Tags closing
// @Produce json
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Success 200 {object} dto.ClosingPreviewResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/registers/{id}/closing/prepare [post]
func (h *ClosingHandler) Prepare(c *gin.Context) {
	rc, ok := registerContext(c, h.contexts)
	if !ok {
		return
	}
	resp, err := h.closing.Prepare(c.Request.Context(), rc)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Review godoc
// @Summary Step 2: difference between counted and expected cash
// @Tags closing
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Param body body dto.CashCountRequest true "Counted cash"
// @Success 200 {object} dto.ClosingReviewResponse
// @Failure 422 {object} apierror.APIError
// @Router /v1/registers/{id}/closing/review [post]
func (h *ClosingHandler) Review(c *gin.Context) {
	var req dto.CashCountRequest
	if !bindAndValidate(c, &req) {
		return
	}
	rc, ok := registerContext(c, h.contexts)
	if !ok {
		return
	}
	resp, err := h.closing.Review(c.Request.Context(), rc, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Cancel godoc
// @Summary Abandons a started count
// @Tags closing
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Success 204
// @Router /v1/registers/{id}/closing/prepare [delete]
func (h *ClosingHandler) Cancel(c *gin.Context) {
	rc, ok := registerContext(c, h.contexts)
	if !ok {
		return
	}
	if err := h.closing.Cancel(c.Request.Context(), rc); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Execute godoc
// @Summary Step 3: closes the current business day. Cannot be undone.
// @Description Unclosed earlier days with activity are auto-closed first so
// @Description closings stay in day order.
// @Tags closing
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Param body body dto.ExecuteClosingRequest true "Count and confirmation"
// @Success 201 {object} dto.ClosingResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Failure 428 {object} apierror.APIError
// @Router /v1/registers/{id}/closing [post]
func (h *ClosingHandler) Execute(c *gin.Context) {
	var req dto.ExecuteClosingRequest
	if !bindAndValidate(c, &req) {
		return
	}
	rc, ok := registerContext(c, h.contexts)
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)
	actor := claims.ActingAs()

	if _, err := service.ValidateCount(req.CashReal); err != nil {
		writeError(c, err)
		return
	}
	// earlier forgotten days are closed first; today waits until they are
	if req.Confirmed {
		if n, err := h.sweeper.Sweep(c.Request.Context(), rc, actor.DisplayName()); err != nil {
			log.Warn().Err(err).Str("register_id", rc.RegisterID).Int("days_closed", n).Msg("catch-up sweep before closing failed")
			writeError(c, err)
			return
		}
	}

	resp, err := h.closing.Execute(c.Request.Context(), rc, actor, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// List godoc
// @Summary Closings of the register, newest first
// @Tags closing
// @Produce json
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Param page query int false "Page (default 1)"
// @Param limit query int false "Page size (default 20, max 100)"
// @Success 200 {object} dto.ClosingListResponse
// @Router /v1/registers/{id}/closings [get]
func (h *ClosingHandler) List(c *gin.Context) {
	rc, ok := registerContext(c, h.contexts)
	if !ok {
		return
	}
	resp, err := h.closing.List(c.Request.Context(), rc, queryInt(c, "page", 1), queryInt(c, "limit", 20))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary A closing by id
// @Tags closing
// @Produce json
// @Security BearerAuth
// @Param closingId path string true "Closing ID (YYYY-MM-DD_registerId)"
// @Success 200 {object} dto.ClosingResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/closings/{closingId} [get]
func (h *ClosingHandler) Get(c *gin.Context) {
	claims := middleware.GetClaims(c)
	resp, err := h.closing.Get(c.Request.Context(), claims.TenantID, c.Param("closingId"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !canReach(claims, resp.RegisterID) {
		writeError(c, service.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Report godoc
// @Summary Downloads the PDF report of a closing
// @Tags closing
// @Produce application/pdf
// @Security BearerAuth
// @Param closingId path string true "Closing ID"
// @Success 200 {file} binary
// @Failure 404 {object} apierror.APIError
// @Router /v1/closings/{closingId}/report [get]
func (h *ClosingHandler) Report(c *gin.Context) {
	claims := middleware.GetClaims(c)
	closing, err := h.closing.Get(c.Request.Context(), claims.TenantID, c.Param("closingId"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !canReach(claims, closing.RegisterID) {
		writeError(c, service.ErrNotFound)
		return
	}

	name := infra.ReportFileName(closing.ID)
	rc, err := h.reports.Open(c.Request.Context(), name)
	if errors.Is(err, infra.ErrReportNotFound) {
		c.JSON(http.StatusNotFound, apierror.New("Report is not ready yet"))
		return
	}
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Header("Content-Type", "application/pdf")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		log.Warn().Err(err).Str("closing_id", closing.ID).Msg("report download interrupted")
	}
}

// Sweep godoc
// @Summary Auto-closes every past day with activity that has no closing
// @Tags closing
// @Produce json
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Success 200 {object} dto.SweepResponse
// @Router /v1/registers/{id}/sweep [post]
func (h *ClosingHandler) Sweep(c *gin.Context) {
	rc, ok := registerContext(c, h.contexts)
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)
	n, err := h.sweeper.Sweep(c.Request.Context(), rc, claims.ActingAs().DisplayName())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SweepResponse{DaysClosed: n})
}

// canReach applies the register access rule to routes addressed by closing id.
func canReach(claims *middleware.JWTClaims, registerID string) bool {
	return claims.Role != service.RoleCashier || claims.RegisterID == registerID
}
