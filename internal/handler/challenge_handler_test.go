package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/tryout-api/internal/models"
	"github.com/noah-isme/tryout-api/internal/service"
	appErrors "github.com/noah-isme/tryout-api/pkg/errors"
)

type mockCatalogService struct {
	registerFn func(ctx context.Context, req service.RegisterChallengeRequest) (*models.Challenge, error)
	lookupFn   func(ctx context.Context, id string) (*models.Challenge, error)
	listFn     func(ctx context.Context, filter models.ChallengeFilter) ([]models.Challenge, *models.Pagination, error)
}

func (m *mockCatalogService) Register(ctx context.Context, req service.RegisterChallengeRequest) (*models.Challenge, error) {
	return m.registerFn(ctx, req)
}

func (m *mockCatalogService) Lookup(ctx context.Context, id string) (*models.Challenge, error) {
	return m.lookupFn(ctx, id)
}

func (m *mockCatalogService) List(ctx context.Context, filter models.ChallengeFilter) ([]models.Challenge, *models.Pagination, error) {
	return m.listFn(ctx, filter)
}

type mockAssignmentService struct {
	assignFn      func(ctx context.Context, challengeID string, req service.AssignMarkerRequest) error
	listMarkersFn func(ctx context.Context, challengeID string) ([]models.MarkerAssignment, error)
	listLinksFn   func(ctx context.Context, challengeID string) ([]models.ChallengeSubmissionLink, error)
}

func (m *mockAssignmentService) AssignMarker(ctx context.Context, challengeID string, req service.AssignMarkerRequest) error {
	return m.assignFn(ctx, challengeID, req)
}

func (m *mockAssignmentService) ListMarkers(ctx context.Context, challengeID string) ([]models.MarkerAssignment, error) {
	return m.listMarkersFn(ctx, challengeID)
}

func (m *mockAssignmentService) ListSubmissionLinks(ctx context.Context, challengeID string) ([]models.ChallengeSubmissionLink, error) {
	return m.listLinksFn(ctx, challengeID)
}

func TestChallengeHandlerCreate(t *testing.T) {
	catalog := &mockCatalogService{
		registerFn: func(_ context.Context, req service.RegisterChallengeRequest) (*models.Challenge, error) {
			return &models.Challenge{
				ID:         "chal-1",
				Name:       req.Name,
				Repository: req.Repository,
				CreatedAt:  time.Now().UTC(),
			}, nil
		},
	}
	h := NewChallengeHandler(catalog, &mockAssignmentService{})

	w := performRequest(t, h.Create, http.MethodPost, "/challenges", nil, service.RegisterChallengeRequest{
		Name:       "Two Sum",
		Repository: "git@challenges:two-sum.git",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "chal-1")
}

func TestChallengeHandlerCreateConflict(t *testing.T) {
	catalog := &mockCatalogService{
		registerFn: func(_ context.Context, _ service.RegisterChallengeRequest) (*models.Challenge, error) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "challenge repository already registered")
		},
	}
	h := NewChallengeHandler(catalog, &mockAssignmentService{})

	w := performRequest(t, h.Create, http.MethodPost, "/challenges", nil, service.RegisterChallengeRequest{
		Name:       "Two Sum",
		Repository: "git@challenges:two-sum.git",
	})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestChallengeHandlerGet(t *testing.T) {
	catalog := &mockCatalogService{
		lookupFn: func(_ context.Context, id string) (*models.Challenge, error) {
			assert.Equal(t, "chal-1", id)
			return &models.Challenge{ID: id, Name: "Two Sum"}, nil
		},
	}
	h := NewChallengeHandler(catalog, &mockAssignmentService{})

	w := performRequest(t, h.Get, http.MethodGet, "/challenges/chal-1",
		gin.Params{{Key: "id", Value: "chal-1"}}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Two Sum")
}

func TestChallengeHandlerGetNotFound(t *testing.T) {
	catalog := &mockCatalogService{
		lookupFn: func(_ context.Context, _ string) (*models.Challenge, error) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "challenge not found")
		},
	}
	h := NewChallengeHandler(catalog, &mockAssignmentService{})

	w := performRequest(t, h.Get, http.MethodGet, "/challenges/missing",
		gin.Params{{Key: "id", Value: "missing"}}, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChallengeHandlerList(t *testing.T) {
	catalog := &mockCatalogService{
		listFn: func(_ context.Context, filter models.ChallengeFilter) ([]models.Challenge, *models.Pagination, error) {
			assert.Equal(t, "graph", filter.Search)
			assert.Equal(t, 2, filter.Page)
			return []models.Challenge{{ID: "chal-2", Name: "Graph Paths"}},
				&models.Pagination{Page: 2, PageSize: 20, TotalCount: 21}, nil
		},
	}
	h := NewChallengeHandler(catalog, &mockAssignmentService{})

	w := performRequest(t, h.List, http.MethodGet, "/challenges?search=graph&page=2", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Graph Paths")
	assert.Contains(t, w.Body.String(), "pagination")
}

func TestChallengeHandlerAssignMarker(t *testing.T) {
	assignments := &mockAssignmentService{
		assignFn: func(_ context.Context, challengeID string, req service.AssignMarkerRequest) error {
			assert.Equal(t, "chal-1", challengeID)
			assert.Equal(t, "marker@example.com", req.MarkerEmail)
			return nil
		},
	}
	h := NewChallengeHandler(&mockCatalogService{}, assignments)

	w := performRequest(t, h.AssignMarker, http.MethodPost, "/challenges/chal-1/markers",
		gin.Params{{Key: "id", Value: "chal-1"}},
		service.AssignMarkerRequest{MarkerEmail: "marker@example.com"})

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestChallengeHandlerListMarkers(t *testing.T) {
	assignments := &mockAssignmentService{
		listMarkersFn: func(_ context.Context, challengeID string) ([]models.MarkerAssignment, error) {
			return []models.MarkerAssignment{{MarkerEmail: "marker@example.com", ChallengeID: challengeID}}, nil
		},
	}
	h := NewChallengeHandler(&mockCatalogService{}, assignments)

	w := performRequest(t, h.ListMarkers, http.MethodGet, "/challenges/chal-1/markers",
		gin.Params{{Key: "id", Value: "chal-1"}}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "marker@example.com")
}

func TestChallengeHandlerListSubmissionLinks(t *testing.T) {
	assignments := &mockAssignmentService{
		listLinksFn: func(_ context.Context, challengeID string) ([]models.ChallengeSubmissionLink, error) {
			return []models.ChallengeSubmissionLink{{ChallengeID: challengeID, SubmissionID: "sub-1"}}, nil
		},
	}
	h := NewChallengeHandler(&mockCatalogService{}, assignments)

	w := performRequest(t, h.ListSubmissionLinks, http.MethodGet, "/challenges/chal-1/submissions",
		gin.Params{{Key: "id", Value: "chal-1"}}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sub-1")
}
