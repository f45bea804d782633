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

type reservationStore interface {
	CreateAttempt(ctx context.Context, sub *models.Submission, res *models.Reservation) error
	FindByReservationID(ctx context.Context, reservationID string) (*models.Attempt, error)
	CancelReservation(ctx context.Context, reservationID, submissionID string, at time.Time) (bool, error)
}

type challengeFinder interface {
	Lookup(ctx context.Context, id string) (*models.Challenge, error)
}

// OpenAttemptRequest describes the payload for opening an attempt.
type OpenAttemptRequest struct {
	ContestantID string    `json:"contestant_id" validate:"required"`
	ChallengeID  string    `json:"challenge_id" validate:"required"`
	StartsAt     time.Time `json:"starts_at" validate:"required"`
	ClosesAt     time.Time `json:"closes_at" validate:"required"`
}

// ReservationService owns the reservation window state machine: it opens
// attempts atomically and drives the open -> cancelled transition. The
// open -> closed transition belongs to SubmissionService and the sweeper.
type ReservationService struct {
	store     reservationStore
	catalog   challengeFinder
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewReservationService constructs ReservationService. A nil now falls back
// to UTC wall clock.
func NewReservationService(store reservationStore, catalog challengeFinder, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, now func() time.Time) *ReservationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &ReservationService{store: store, catalog: catalog, metrics: metrics, validator: validate, logger: logger, now: now}
}

// Open reserves an exclusive window and creates the linked submission, both
// or neither. A malformed window is a ValidationError; an existing active
// attempt for the pair is a Conflict.
func (s *ReservationService) Open(ctx context.Context, req OpenAttemptRequest) (*models.Attempt, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attempt payload")
	}
	if !req.StartsAt.Before(req.ClosesAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "window must start before it closes")
	}

	if _, err := s.catalog.Lookup(ctx, req.ChallengeID); err != nil {
		return nil, err
	}

	createdAt := s.now()
	sub := &models.Submission{
		ContestantID: req.ContestantID,
		ChallengeID:  req.ChallengeID,
		Status:       models.SubmissionStatusInProgress,
		Active:       true,
		CreatedAt:    createdAt,
	}
	res := &models.Reservation{
		StartsAt:  req.StartsAt,
		ClosesAt:  req.ClosesAt,
		Status:    models.ReservationStatusOpen,
		CreatedAt: createdAt,
	}

	if err := s.store.CreateAttempt(ctx, sub, res); err != nil {
		appErr := appErrors.FromError(err)
		if appErr.Code == appErrors.ErrConflict.Code {
			s.metrics.AttemptConflict()
		}
		return nil, appErr
	}

	s.metrics.AttemptOpened()
	s.logger.Info("attempt opened",
		zap.String("submission_id", sub.ID),
		zap.String("reservation_id", res.ID),
		zap.String("contestant_id", sub.ContestantID),
		zap.String("challenge_id", sub.ChallengeID),
		zap.Time("closes_at", res.ClosesAt),
	)

	return &models.Attempt{
		Submission:        *sub,
		ReservationID:     res.ID,
		StartsAt:          res.StartsAt,
		ClosesAt:          res.ClosesAt,
		ReservationStatus: res.Status,
	}, nil
}

// Cancel finalizes an open reservation as cancelled, freeing the attempt
// slot. Cancelling an already-cancelled reservation is idempotent; a closed
// reservation is an InvalidTransition.
func (s *ReservationService) Cancel(ctx context.Context, reservationID string, at time.Time) (*models.Attempt, error) {
	if at.IsZero() {
		at = s.now()
	}

	attempt, err := s.store.FindByReservationID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "reservation not found")
		}
		return nil, appErrors.FromError(err)
	}

	if attempt.Cancelled {
		return attempt, nil
	}
	if attempt.Reservation().EffectiveStatus(attempt.Status, at) == models.ReservationStatusClosed {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "reservation already closed")
	}

	committed, err := s.store.CancelReservation(ctx, reservationID, attempt.Submission.ID, at)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	if !committed {
		// Lost a race against a submit or a concurrent cancel; re-read to
		// decide which.
		attempt, err = s.store.FindByReservationID(ctx, reservationID)
		if err != nil {
			return nil, appErrors.FromError(err)
		}
		if attempt.Cancelled {
			return attempt, nil
		}
		submissionStatus := attempt.EffectiveSubmissionStatus(at)
		return nil, appErrors.WithDetails(appErrors.ErrFinalized, "attempt already finalized", &models.AttemptStatus{
			SubmissionID:      attempt.Submission.ID,
			ReservationID:     attempt.ReservationID,
			ReservationStatus: attempt.Reservation().EffectiveStatus(submissionStatus, at),
			SubmissionStatus:  submissionStatus,
			Late:              attempt.Late || submissionStatus == models.SubmissionStatusLate,
			StartsAt:          attempt.StartsAt,
			ClosesAt:          attempt.ClosesAt,
		})
	}

	s.metrics.AttemptCancelled()
	s.logger.Info("reservation cancelled",
		zap.String("reservation_id", reservationID),
		zap.String("submission_id", attempt.Submission.ID),
		zap.Time("cancelled_at", at),
	)

	attempt.Cancelled = true
	attempt.CancelledAt = &at
	attempt.ReservationStatus = models.ReservationStatusCancelled
	attempt.Active = false
	return attempt, nil
}

// EffectiveStatus derives the reservation status at the given instant
// without mutating stored state.
func (s *ReservationService) EffectiveStatus(ctx context.Context, reservationID string, now time.Time) (models.ReservationStatus, error) {
	if now.IsZero() {
		now = s.now()
	}
	attempt, err := s.store.FindByReservationID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "reservation not found")
		}
		return "", appErrors.FromError(err)
	}
	return attempt.Reservation().EffectiveStatus(attempt.Status, now), nil
}
