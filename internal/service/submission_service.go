package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tryout-api/internal/models"
	appErrors "github.com/noah-isme/tryout-api/pkg/errors"
)

type submissionStore interface {
	FindBySubmissionID(ctx context.Context, submissionID string) (*models.Attempt, error)
	FinalizeSubmitted(ctx context.Context, submissionID, payloadRef string, at time.Time, late bool) (bool, error)
	MarkLate(ctx context.Context, submissionID string) (bool, error)
}

// SubmitAttemptRequest describes the submit payload.
type SubmitAttemptRequest struct {
	PayloadRef string `json:"payload_ref" validate:"required"`
}

// SubmissionService owns the submission state machine. in_progress advances
// to submitted (explicit, lateness flagged) or late (passive, sweeper) and
// never reverses; whichever transition commits first wins.
type SubmissionService struct {
	store     submissionStore
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewSubmissionService constructs SubmissionService.
func NewSubmissionService(store submissionStore, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, now func() time.Time) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &SubmissionService{store: store, metrics: metrics, validator: validate, logger: logger, now: now}
}

// Submit finalizes a submission. Arriving inside the window yields
// submitted/on-time and closes the reservation; after the window it is
// accepted as submitted/late. A cancelled reservation or an already-terminal
// submission yields AlreadyFinalized with the winning state attached.
func (s *SubmissionService) Submit(ctx context.Context, submissionID string, req SubmitAttemptRequest, at time.Time) (*models.AttemptStatus, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submit payload")
	}
	if at.IsZero() {
		at = s.now()
	}

	attempt, err := s.store.FindBySubmissionID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.FromError(err)
	}

	if attempt.Cancelled {
		return nil, appErrors.WithDetails(appErrors.ErrFinalized, "reservation was cancelled", s.statusOf(attempt, at))
	}
	if attempt.Status.Terminal() {
		return nil, appErrors.WithDetails(appErrors.ErrFinalized, "submission already finalized", s.statusOf(attempt, at))
	}

	late := !at.Before(attempt.ClosesAt)
	committed, err := s.store.FinalizeSubmitted(ctx, submissionID, req.PayloadRef, at, late)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	if !committed {
		// Another writer finalized first; report its result instead of
		// failing hard.
		attempt, err = s.store.FindBySubmissionID(ctx, submissionID)
		if err != nil {
			return nil, appErrors.FromError(err)
		}
		return nil, appErrors.WithDetails(appErrors.ErrFinalized, "submission already finalized", s.statusOf(attempt, at))
	}

	s.metrics.SubmissionFinalized(late)
	s.logger.Info("submission finalized",
		zap.String("submission_id", submissionID),
		zap.Bool("late", late),
		zap.Time("submitted_at", at),
	)

	return &models.AttemptStatus{
		SubmissionID:      attempt.Submission.ID,
		ReservationID:     attempt.ReservationID,
		ReservationStatus: models.ReservationStatusClosed,
		SubmissionStatus:  models.SubmissionStatusSubmitted,
		Late:              late,
		StartsAt:          attempt.StartsAt,
		ClosesAt:          attempt.ClosesAt,
	}, nil
}

// MarkLateIfExpired commits the passive late transition when the window has
// elapsed with no submit. Any other state is a no-op; the committed status is
// returned either way.
func (s *SubmissionService) MarkLateIfExpired(ctx context.Context, submissionID string, now time.Time) (models.SubmissionStatus, error) {
	if now.IsZero() {
		now = s.now()
	}

	attempt, err := s.store.FindBySubmissionID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return "", appErrors.FromError(err)
	}

	if attempt.Status != models.SubmissionStatusInProgress || attempt.Cancelled || now.Before(attempt.ClosesAt) {
		return attempt.Status, nil
	}

	committed, err := s.store.MarkLate(ctx, submissionID)
	if err != nil {
		return "", appErrors.FromError(err)
	}
	if !committed {
		// A submit beat us to it; its terminal status stands.
		attempt, err = s.store.FindBySubmissionID(ctx, submissionID)
		if err != nil {
			return "", appErrors.FromError(err)
		}
		return attempt.Status, nil
	}

	s.metrics.SweeperMarkedLate()
	s.logger.Info("submission marked late", zap.String("submission_id", submissionID))
	return models.SubmissionStatusLate, nil
}

// GetStatus returns the effective attempt status at the given instant.
// Derivation never writes; the sweeper keeps stored status converging.
func (s *SubmissionService) GetStatus(ctx context.Context, submissionID string, now time.Time) (*models.AttemptStatus, error) {
	if now.IsZero() {
		now = s.now()
	}
	attempt, err := s.store.FindBySubmissionID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.FromError(err)
	}
	return s.statusOf(attempt, now), nil
}

func (s *SubmissionService) statusOf(attempt *models.Attempt, now time.Time) *models.AttemptStatus {
	submissionStatus := attempt.EffectiveSubmissionStatus(now)
	return &models.AttemptStatus{
		SubmissionID:      attempt.Submission.ID,
		ReservationID:     attempt.ReservationID,
		ReservationStatus: attempt.Reservation().EffectiveStatus(submissionStatus, now),
		SubmissionStatus:  submissionStatus,
		Late:              attempt.Late || submissionStatus == models.SubmissionStatusLate,
		StartsAt:          attempt.StartsAt,
		ClosesAt:          attempt.ClosesAt,
	}
}
