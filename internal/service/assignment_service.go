package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tryout-api/internal/models"
	appErrors "github.com/noah-isme/tryout-api/pkg/errors"
)

type assignmentRepository interface {
	AssignMarker(ctx context.Context, markerEmail, challengeID string) error
	ListMarkers(ctx context.Context, challengeID string) ([]models.MarkerAssignment, error)
	ListSubmissionLinks(ctx context.Context, challengeID string) ([]models.ChallengeSubmissionLink, error)
}

// AssignMarkerRequest describes the marker assignment payload.
type AssignMarkerRequest struct {
	MarkerEmail string `json:"marker_email" validate:"required,email"`
}

// AssignmentService maintains the pass-through association rows owned by the
// grading and reporting layers. It validates challenge existence and nothing
// else; the rows' meaning belongs to their owners.
type AssignmentService struct {
	repo      assignmentRepository
	catalog   challengeFinder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentService constructs AssignmentService.
func NewAssignmentService(repo assignmentRepository, catalog challengeFinder, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{repo: repo, catalog: catalog, validator: validate, logger: logger}
}

// AssignMarker links a marker to a challenge. Repeated assignment is a no-op.
func (s *AssignmentService) AssignMarker(ctx context.Context, challengeID string, req AssignMarkerRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid marker payload")
	}
	if _, err := s.catalog.Lookup(ctx, challengeID); err != nil {
		return err
	}
	if err := s.repo.AssignMarker(ctx, req.MarkerEmail, challengeID); err != nil {
		return appErrors.FromError(err)
	}
	s.logger.Info("marker assigned", zap.String("challenge_id", challengeID), zap.String("marker_email", req.MarkerEmail))
	return nil
}

// ListMarkers returns the markers assigned to a challenge.
func (s *AssignmentService) ListMarkers(ctx context.Context, challengeID string) ([]models.MarkerAssignment, error) {
	if _, err := s.catalog.Lookup(ctx, challengeID); err != nil {
		return nil, err
	}
	assignments, err := s.repo.ListMarkers(ctx, challengeID)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return assignments, nil
}

// ListSubmissionLinks returns the submission grouping rows for a challenge.
func (s *AssignmentService) ListSubmissionLinks(ctx context.Context, challengeID string) ([]models.ChallengeSubmissionLink, error) {
	if _, err := s.catalog.Lookup(ctx, challengeID); err != nil {
		return nil, err
	}
	links, err := s.repo.ListSubmissionLinks(ctx, challengeID)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return links, nil
}
