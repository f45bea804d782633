package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tryout-api/internal/models"
	"github.com/noah-isme/tryout-api/internal/service"
	appErrors "github.com/noah-isme/tryout-api/pkg/errors"
	"github.com/noah-isme/tryout-api/pkg/response"
)

type reservationService interface {
	Open(ctx context.Context, req service.OpenAttemptRequest) (*models.Attempt, error)
	Cancel(ctx context.Context, reservationID string, at time.Time) (*models.Attempt, error)
}

type submissionService interface {
	Submit(ctx context.Context, submissionID string, req service.SubmitAttemptRequest, at time.Time) (*models.AttemptStatus, error)
	GetStatus(ctx context.Context, submissionID string, now time.Time) (*models.AttemptStatus, error)
}

type exportService interface {
	ExportChallengeAttempts(ctx context.Context, challengeID, format string) (*service.ExportResult, error)
}

// CancelAttemptRequest optionally pins the cancellation instant.
type CancelAttemptRequest struct {
	CancelledAt *time.Time `json:"cancelled_at"`
}

// SubmitAttemptPayload wraps the submit request with an optional explicit
// submission instant, for collaborators that record receipt time upstream.
type SubmitAttemptPayload struct {
	service.SubmitAttemptRequest
	SubmittedAt *time.Time `json:"submitted_at"`
}

// AttemptHandler exposes the attempt lifecycle endpoints.
type AttemptHandler struct {
	reservations reservationService
	submissions  submissionService
	exports      exportService
}

// NewAttemptHandler constructs AttemptHandler.
func NewAttemptHandler(reservations reservationService, submissions submissionService, exports exportService) *AttemptHandler {
	return &AttemptHandler{reservations: reservations, submissions: submissions, exports: exports}
}

// Open godoc
// @Summary Open an attempt with an exclusive time window
// @Tags Attempts
// @Accept json
// @Produce json
// @Param payload body service.OpenAttemptRequest true "Attempt payload"
// @Success 201 {object} response.Envelope
// @Router /attempts [post]
func (h *AttemptHandler) Open(c *gin.Context) {
	var req service.OpenAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	attempt, err := h.reservations.Open(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, attempt)
}

// Cancel godoc
// @Summary Cancel an open reservation
// @Tags Attempts
// @Accept json
// @Produce json
// @Param id path string true "Reservation ID"
// @Param payload body CancelAttemptRequest false "Cancel payload"
// @Success 200 {object} response.Envelope
// @Router /reservations/{id}/cancel [post]
func (h *AttemptHandler) Cancel(c *gin.Context) {
	var req CancelAttemptRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	at := time.Time{}
	if req.CancelledAt != nil {
		at = *req.CancelledAt
	}
	attempt, err := h.reservations.Cancel(c.Request.Context(), c.Param("id"), at)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, attempt, nil)
}

// Submit godoc
// @Summary Submit work for an attempt
// @Tags Attempts
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body SubmitAttemptPayload true "Submit payload"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/submit [post]
func (h *AttemptHandler) Submit(c *gin.Context) {
	var payload SubmitAttemptPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	at := time.Time{}
	if payload.SubmittedAt != nil {
		at = *payload.SubmittedAt
	}
	status, err := h.submissions.Submit(c.Request.Context(), c.Param("id"), payload.SubmitAttemptRequest, at)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Status godoc
// @Summary Get effective attempt status
// @Tags Attempts
// @Produce json
// @Param id path string true "Submission ID"
// @Param at query string false "Evaluation instant (RFC3339)"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/status [get]
func (h *AttemptHandler) Status(c *gin.Context) {
	now := time.Time{}
	if raw := c.Query("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid at parameter, expected RFC3339"))
			return
		}
		now = parsed
	}
	status, err := h.submissions.GetStatus(c.Request.Context(), c.Param("id"), now)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Export godoc
// @Summary Export a challenge's attempts as CSV or PDF
// @Tags Attempts
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Challenge ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} byte
// @Router /challenges/{id}/attempts/export [get]
func (h *AttemptHandler) Export(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports disabled"))
		return
	}
	result, err := h.exports.ExportChallengeAttempts(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
