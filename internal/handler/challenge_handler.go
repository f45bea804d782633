package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tryout-api/internal/models"
	"github.com/noah-isme/tryout-api/internal/service"
	appErrors "github.com/noah-isme/tryout-api/pkg/errors"
	"github.com/noah-isme/tryout-api/pkg/response"
)

type catalogService interface {
	Register(ctx context.Context, req service.RegisterChallengeRequest) (*models.Challenge, error)
	Lookup(ctx context.Context, id string) (*models.Challenge, error)
	List(ctx context.Context, filter models.ChallengeFilter) ([]models.Challenge, *models.Pagination, error)
}

type assignmentService interface {
	AssignMarker(ctx context.Context, challengeID string, req service.AssignMarkerRequest) error
	ListMarkers(ctx context.Context, challengeID string) ([]models.MarkerAssignment, error)
	ListSubmissionLinks(ctx context.Context, challengeID string) ([]models.ChallengeSubmissionLink, error)
}

// ChallengeHandler exposes catalog and marker-assignment endpoints.
type ChallengeHandler struct {
	catalog     catalogService
	assignments assignmentService
}

// NewChallengeHandler constructs ChallengeHandler.
func NewChallengeHandler(catalog catalogService, assignments assignmentService) *ChallengeHandler {
	return &ChallengeHandler{catalog: catalog, assignments: assignments}
}

// Create godoc
// @Summary Register a challenge
// @Tags Challenges
// @Accept json
// @Produce json
// @Param payload body service.RegisterChallengeRequest true "Challenge payload"
// @Success 201 {object} response.Envelope
// @Router /challenges [post]
func (h *ChallengeHandler) Create(c *gin.Context) {
	var req service.RegisterChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	challenge, err := h.catalog.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, challenge)
}

// Get godoc
// @Summary Get a challenge
// @Tags Challenges
// @Produce json
// @Param id path string true "Challenge ID"
// @Success 200 {object} response.Envelope
// @Router /challenges/{id} [get]
func (h *ChallengeHandler) Get(c *gin.Context) {
	challenge, err := h.catalog.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, challenge, nil)
}

// List godoc
// @Summary List challenges
// @Tags Challenges
// @Produce json
// @Param search query string false "Filter by name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /challenges [get]
func (h *ChallengeHandler) List(c *gin.Context) {
	var filter models.ChallengeFilter
	filter.Search = c.Query("search")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	challenges, pagination, err := h.catalog.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, challenges, pagination)
}

// AssignMarker godoc
// @Summary Assign a marker to a challenge
// @Tags Challenges
// @Accept json
// @Produce json
// @Param id path string true "Challenge ID"
// @Param payload body service.AssignMarkerRequest true "Marker payload"
// @Success 204
// @Router /challenges/{id}/markers [post]
func (h *ChallengeHandler) AssignMarker(c *gin.Context) {
	var req service.AssignMarkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.assignments.AssignMarker(c.Request.Context(), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListMarkers godoc
// @Summary List markers assigned to a challenge
// @Tags Challenges
// @Produce json
// @Param id path string true "Challenge ID"
// @Success 200 {object} response.Envelope
// @Router /challenges/{id}/markers [get]
func (h *ChallengeHandler) ListMarkers(c *gin.Context) {
	assignments, err := h.assignments.ListMarkers(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// ListSubmissionLinks godoc
// @Summary List submission grouping rows for a challenge
// @Tags Challenges
// @Produce json
// @Param id path string true "Challenge ID"
// @Success 200 {object} response.Envelope
// @Router /challenges/{id}/submissions [get]
func (h *ChallengeHandler) ListSubmissionLinks(c *gin.Context) {
	links, err := h.assignments.ListSubmissionLinks(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, links, nil)
}
