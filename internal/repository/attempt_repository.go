package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tryout-api/internal/models"
	appErrors "github.com/noah-isme/tryout-api/pkg/errors"
)

const attemptColumns = `s.id, s.contestant_id, s.challenge_id, s.status, s.late, s.payload_ref, s.submitted_at, s.active, s.created_at,
        r.id AS reservation_id, r.starts_at, r.closes_at, r.cancelled, r.cancelled_at, r.status AS reservation_status`

// AttemptRepository persists the paired submission/reservation rows and owns
// every transition that touches both.
type AttemptRepository struct {
	db    *sqlx.DB
	opts  StoreOptions
	guard ConsistencyGuard
}

// NewAttemptRepository constructs the repository.
func NewAttemptRepository(db *sqlx.DB, opts StoreOptions) *AttemptRepository {
	return &AttemptRepository{db: db, opts: opts}
}

// CreateAttempt atomically inserts the submission, its reservation and the
// challenge grouping row. The consistency guard plus the partial unique index
// guarantee that under concurrent opens for the same (contestant, challenge)
// exactly one transaction commits; the rest observe ErrConflict.
func (r *AttemptRepository) CreateAttempt(ctx context.Context, sub *models.Submission, res *models.Reservation) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	res.SubmissionID = sub.ID

	return withRetry(ctx, r.opts, func(ctx context.Context) error {
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin open attempt: %w", err)
		}

		if err := r.guard.Claim(ctx, tx, sub.ContestantID, sub.ChallengeID); err != nil {
			tx.Rollback() //nolint:errcheck
			return err
		}

		const insertSubmission = `INSERT INTO submissions (id, contestant_id, challenge_id, status, late, payload_ref, submitted_at, active, created_at)
            VALUES (:id, :contestant_id, :challenge_id, :status, :late, :payload_ref, :submitted_at, :active, :created_at)`
		if _, err := tx.NamedExecContext(ctx, insertSubmission, sub); err != nil {
			tx.Rollback() //nolint:errcheck
			if isUniqueViolation(err) {
				return appErrors.Clone(appErrors.ErrConflict, "contestant already has an attempt in progress for this challenge")
			}
			return fmt.Errorf("insert submission: %w", err)
		}

		const insertReservation = `INSERT INTO reservations (id, submission_id, starts_at, closes_at, cancelled, cancelled_at, status, created_at)
            VALUES (:id, :submission_id, :starts_at, :closes_at, :cancelled, :cancelled_at, :status, :created_at)`
		if _, err := tx.NamedExecContext(ctx, insertReservation, res); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert reservation: %w", err)
		}

		const insertLink = `INSERT INTO challenges_submissions (challenge_id, submission_id) VALUES ($1, $2)`
		if _, err := tx.ExecContext(ctx, insertLink, sub.ChallengeID, sub.ID); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("link submission to challenge: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit open attempt: %w", err)
		}
		return nil
	})
}

// FindBySubmissionID returns the joined attempt row.
func (r *AttemptRepository) FindBySubmissionID(ctx context.Context, submissionID string) (*models.Attempt, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions s JOIN reservations r ON r.submission_id = s.id WHERE s.id = $1`, attemptColumns)
	var attempt models.Attempt
	err := withRetry(ctx, r.opts, func(ctx context.Context) error {
		return r.db.GetContext(ctx, &attempt, query, submissionID)
	})
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// FindByReservationID returns the joined attempt row looked up by reservation.
func (r *AttemptRepository) FindByReservationID(ctx context.Context, reservationID string) (*models.Attempt, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions s JOIN reservations r ON r.submission_id = s.id WHERE r.id = $1`, attemptColumns)
	var attempt models.Attempt
	err := withRetry(ctx, r.opts, func(ctx context.Context) error {
		return r.db.GetContext(ctx, &attempt, query, reservationID)
	})
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// FinalizeSubmitted commits the submitted terminal status and closes the
// reservation. The optimistic status guard serialises the race against the
// sweeper: when another writer already finalized, no row matches and the
// caller gets committed=false so it can report the winning state.
func (r *AttemptRepository) FinalizeSubmitted(ctx context.Context, submissionID, payloadRef string, at time.Time, late bool) (bool, error) {
	committed := false
	err := withRetry(ctx, r.opts, func(ctx context.Context) error {
		committed = false
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin submit: %w", err)
		}

		const update = `UPDATE submissions SET status = $2, late = $3, payload_ref = $4, submitted_at = $5
            WHERE id = $1 AND status = $6`
		result, err := tx.ExecContext(ctx, update, submissionID, models.SubmissionStatusSubmitted, late, payloadRef, at, models.SubmissionStatusInProgress)
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("finalize submission: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("finalize submission rows: %w", err)
		}
		if rows == 0 {
			tx.Rollback() //nolint:errcheck
			return nil
		}

		const closeReservation = `UPDATE reservations SET status = $2 WHERE submission_id = $1 AND NOT cancelled`
		if _, err := tx.ExecContext(ctx, closeReservation, submissionID, models.ReservationStatusClosed); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("close reservation: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit submit: %w", err)
		}
		committed = true
		return nil
	})
	return committed, err
}

// MarkLate commits the passive late transition for a submission whose window
// elapsed without a submit. No-ops when the submission already reached a
// terminal status, which makes it safe for concurrent sweeper instances.
func (r *AttemptRepository) MarkLate(ctx context.Context, submissionID string) (bool, error) {
	committed := false
	err := withRetry(ctx, r.opts, func(ctx context.Context) error {
		committed = false
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin mark late: %w", err)
		}

		const update = `UPDATE submissions SET status = $2, late = TRUE WHERE id = $1 AND status = $3`
		result, err := tx.ExecContext(ctx, update, submissionID, models.SubmissionStatusLate, models.SubmissionStatusInProgress)
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("mark submission late: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("mark late rows: %w", err)
		}
		if rows == 0 {
			tx.Rollback() //nolint:errcheck
			return nil
		}

		const closeReservation = `UPDATE reservations SET status = $2 WHERE submission_id = $1 AND NOT cancelled AND status = $3`
		if _, err := tx.ExecContext(ctx, closeReservation, submissionID, models.ReservationStatusClosed, models.ReservationStatusOpen); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("close expired reservation: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit mark late: %w", err)
		}
		committed = true
		return nil
	})
	return committed, err
}

// CancelReservation commits the cancelled terminal status and frees the
// attempt slot. The optimistic guard makes repeated cancels no-ops at the
// store level; the service layer decides how to report them.
func (r *AttemptRepository) CancelReservation(ctx context.Context, reservationID, submissionID string, at time.Time) (bool, error) {
	committed := false
	err := withRetry(ctx, r.opts, func(ctx context.Context) error {
		committed = false
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin cancel: %w", err)
		}

		const update = `UPDATE reservations SET cancelled = TRUE, cancelled_at = $2, status = $3
            WHERE id = $1 AND NOT cancelled AND status = $4`
		result, err := tx.ExecContext(ctx, update, reservationID, at, models.ReservationStatusCancelled, models.ReservationStatusOpen)
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("cancel reservation: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("cancel reservation rows: %w", err)
		}
		if rows == 0 {
			tx.Rollback() //nolint:errcheck
			return nil
		}

		const release = `UPDATE submissions SET active = FALSE WHERE id = $1`
		if _, err := tx.ExecContext(ctx, release, submissionID); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("release attempt slot: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit cancel: %w", err)
		}
		committed = true
		return nil
	})
	return committed, err
}

// CloseElapsedReservations bulk-closes open reservations whose window has
// elapsed so reads never see a stale open status for longer than one sweep.
func (r *AttemptRepository) CloseElapsedReservations(ctx context.Context, now time.Time) (int64, error) {
	const query = `UPDATE reservations SET status = $2 WHERE status = $3 AND NOT cancelled AND closes_at <= $1`
	var closed int64
	err := withRetry(ctx, r.opts, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, query, now, models.ReservationStatusClosed, models.ReservationStatusOpen)
		if err != nil {
			return fmt.Errorf("close elapsed reservations: %w", err)
		}
		closed, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("close elapsed rows: %w", err)
		}
		return nil
	})
	return closed, err
}

// ListExpiredInProgress returns attempts still in progress past their close
// time, oldest first, for the sweeper to transition.
func (r *AttemptRepository) ListExpiredInProgress(ctx context.Context, now time.Time, limit int) ([]models.Attempt, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM submissions s JOIN reservations r ON r.submission_id = s.id
        WHERE s.status = $1 AND NOT r.cancelled AND r.closes_at <= $2 ORDER BY r.closes_at ASC LIMIT %d`, attemptColumns, limit)
	var attempts []models.Attempt
	err := withRetry(ctx, r.opts, func(ctx context.Context) error {
		return r.db.SelectContext(ctx, &attempts, query, models.SubmissionStatusInProgress, now)
	})
	if err != nil {
		return nil, fmt.Errorf("list expired attempts: %w", err)
	}
	return attempts, nil
}

// List returns attempts filtered by the provided criteria.
func (r *AttemptRepository) List(ctx context.Context, filter models.AttemptFilter) ([]models.Attempt, int, error) {
	base := `FROM submissions s JOIN reservations r ON r.submission_id = s.id`
	var conditions []string
	var args []interface{}

	if filter.ChallengeID != "" {
		conditions = append(conditions, fmt.Sprintf("s.challenge_id = $%d", len(args)+1))
		args = append(args, filter.ChallengeID)
	}
	if filter.ContestantID != "" {
		conditions = append(conditions, fmt.Sprintf("s.contestant_id = $%d", len(args)+1))
		args = append(args, filter.ContestantID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s ORDER BY s.created_at DESC LIMIT %d OFFSET %d`, attemptColumns, base+clause, size, offset)

	var attempts []models.Attempt
	err := withRetry(ctx, r.opts, func(ctx context.Context) error {
		return r.db.SelectContext(ctx, &attempts, query, args...)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list attempts: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	err = withRetry(ctx, r.opts, func(ctx context.Context) error {
		return r.db.GetContext(ctx, &total, countQuery, args...)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("count attempts: %w", err)
	}
	return attempts, total, nil
}
