package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tryout-api/internal/models"
	appErrors "github.com/noah-isme/tryout-api/pkg/errors"
)

func newAttemptRepoMock(t *testing.T) (*AttemptRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	repo := NewAttemptRepository(sqlx.NewDb(db, "sqlmock"), StoreOptions{})
	return repo, mock, func() { db.Close() }
}

func attemptRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "contestant_id", "challenge_id", "status", "late", "payload_ref", "submitted_at", "active", "created_at",
		"reservation_id", "starts_at", "closes_at", "cancelled", "cancelled_at", "reservation_status",
	})
}

func TestAttemptRepositoryCreateAttempt(t *testing.T) {
	repo, mock, cleanup := newAttemptRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM submissions WHERE contestant_id = $1 AND challenge_id = $2 AND active LIMIT 1")).
		WithArgs("alice@example.com", "chal-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO submissions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO reservations").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO challenges_submissions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sub := &models.Submission{
		ContestantID: "alice@example.com",
		ChallengeID:  "chal-1",
		Status:       models.SubmissionStatusInProgress,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	res := &models.Reservation{
		StartsAt:  time.Now().UTC(),
		ClosesAt:  time.Now().UTC().Add(time.Hour),
		Status:    models.ReservationStatusOpen,
		CreatedAt: time.Now().UTC(),
	}

	require.NoError(t, repo.CreateAttempt(context.Background(), sub, res))
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, sub.ID, res.SubmissionID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepositoryCreateAttemptGuardConflict(t *testing.T) {
	repo, mock, cleanup := newAttemptRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1 FROM submissions").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectRollback()

	sub := &models.Submission{ContestantID: "alice@example.com", ChallengeID: "chal-1"}
	res := &models.Reservation{StartsAt: time.Now(), ClosesAt: time.Now().Add(time.Hour)}

	err := repo.CreateAttempt(context.Background(), sub, res)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepositoryCreateAttemptIndexConflict(t *testing.T) {
	repo, mock, cleanup := newAttemptRepoMock(t)
	defer cleanup()

	// Guard passed but a concurrent insert won the partial unique index.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1 FROM submissions").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO submissions").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uniq_active_attempt"})
	mock.ExpectRollback()

	sub := &models.Submission{ContestantID: "alice@example.com", ChallengeID: "chal-1"}
	res := &models.Reservation{StartsAt: time.Now(), ClosesAt: time.Now().Add(time.Hour)}

	err := repo.CreateAttempt(context.Background(), sub, res)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepositoryFindBySubmissionID(t *testing.T) {
	repo, mock, cleanup := newAttemptRepoMock(t)
	defer cleanup()

	now := time.Now().UTC()
	rows := attemptRows().AddRow(
		"sub-1", "alice@example.com", "chal-1", models.SubmissionStatusInProgress, false, nil, nil, true, now,
		"res-1", now, now.Add(time.Hour), false, nil, models.ReservationStatusOpen,
	)
	mock.ExpectQuery("SELECT (.+) FROM submissions s JOIN reservations r ON r.submission_id = s.id WHERE s.id").
		WithArgs("sub-1").
		WillReturnRows(rows)

	attempt, err := repo.FindBySubmissionID(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "res-1", attempt.ReservationID)
	assert.Equal(t, models.SubmissionStatusInProgress, attempt.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepositoryFindRetriesTransientFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewAttemptRepository(sqlx.NewDb(db, "sqlmock"), StoreOptions{MaxRetries: 2, RetryBackoff: time.Millisecond})

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM submissions s JOIN reservations r").
		WillReturnError(&pq.Error{Code: "40001"})
	mock.ExpectQuery("SELECT (.+) FROM submissions s JOIN reservations r").
		WillReturnRows(attemptRows().AddRow(
			"sub-1", "alice@example.com", "chal-1", models.SubmissionStatusInProgress, false, nil, nil, true, now,
			"res-1", now, now.Add(time.Hour), false, nil, models.ReservationStatusOpen,
		))

	attempt, err := repo.FindBySubmissionID(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", attempt.Submission.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepositoryFinalizeSubmitted(t *testing.T) {
	repo, mock, cleanup := newAttemptRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE submissions SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE reservations SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	committed, err := repo.FinalizeSubmitted(context.Background(), "sub-1", "ref", time.Now().UTC(), false)
	require.NoError(t, err)
	assert.True(t, committed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepositoryFinalizeSubmittedLostRace(t *testing.T) {
	repo, mock, cleanup := newAttemptRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE submissions SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	committed, err := repo.FinalizeSubmitted(context.Background(), "sub-1", "ref", time.Now().UTC(), true)
	require.NoError(t, err)
	assert.False(t, committed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepositoryMarkLate(t *testing.T) {
	repo, mock, cleanup := newAttemptRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE submissions SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE reservations SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	committed, err := repo.MarkLate(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.True(t, committed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepositoryMarkLateNoop(t *testing.T) {
	repo, mock, cleanup := newAttemptRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE submissions SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	committed, err := repo.MarkLate(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.False(t, committed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepositoryCancelReservation(t *testing.T) {
	repo, mock, cleanup := newAttemptRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE reservations SET cancelled").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE submissions SET active").
		WithArgs("sub-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	committed, err := repo.CancelReservation(context.Background(), "res-1", "sub-1", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, committed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepositoryCloseElapsedReservations(t *testing.T) {
	repo, mock, cleanup := newAttemptRepoMock(t)
	defer cleanup()

	mock.ExpectExec("UPDATE reservations SET status").
		WillReturnResult(sqlmock.NewResult(0, 3))

	closed, err := repo.CloseElapsedReservations(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.EqualValues(t, 3, closed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepositoryListExpiredInProgress(t *testing.T) {
	repo, mock, cleanup := newAttemptRepoMock(t)
	defer cleanup()

	now := time.Now().UTC()
	rows := attemptRows().AddRow(
		"sub-1", "alice@example.com", "chal-1", models.SubmissionStatusInProgress, false, nil, nil, true, now.Add(-2*time.Hour),
		"res-1", now.Add(-2*time.Hour), now.Add(-time.Hour), false, nil, models.ReservationStatusOpen,
	)
	mock.ExpectQuery("SELECT (.+) FROM submissions s JOIN reservations r").
		WithArgs(models.SubmissionStatusInProgress, now).
		WillReturnRows(rows)

	attempts, err := repo.ListExpiredInProgress(context.Background(), now, 50)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, "sub-1", attempts[0].Submission.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
