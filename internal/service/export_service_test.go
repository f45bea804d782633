package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tryout-api/internal/models"
	appErrors "github.com/noah-isme/tryout-api/pkg/errors"
)

type fakeAttemptLister struct {
	attempts []models.Attempt
}

func (f *fakeAttemptLister) List(_ context.Context, filter models.AttemptFilter) ([]models.Attempt, int, error) {
	start := (filter.Page - 1) * filter.PageSize
	if start >= len(f.attempts) {
		return nil, len(f.attempts), nil
	}
	end := start + filter.PageSize
	if end > len(f.attempts) {
		end = len(f.attempts)
	}
	return f.attempts[start:end], len(f.attempts), nil
}

func newExportServiceForTest(attempts []models.Attempt, now time.Time) *ExportService {
	catalog := &fakeCatalog{challenges: map[string]*models.Challenge{
		"chal-1": {ID: "chal-1", Name: "Two Sum", Repository: "git@challenges:two-sum.git"},
	}}
	return NewExportService(&fakeAttemptLister{attempts: attempts}, catalog, nil, fixedClock(now))
}

func submittedAttempt(submissionID string, base time.Time, late bool) models.Attempt {
	submittedAt := base.Add(30 * time.Minute)
	payloadRef := "s3://bucket/" + submissionID
	return models.Attempt{
		Submission: models.Submission{
			ID:           submissionID,
			ContestantID: "alice@example.com",
			ChallengeID:  "chal-1",
			Status:       models.SubmissionStatusSubmitted,
			Late:         late,
			PayloadRef:   &payloadRef,
			SubmittedAt:  &submittedAt,
		},
		ReservationID:     "res-" + submissionID,
		StartsAt:          base,
		ClosesAt:          base.Add(time.Hour),
		ReservationStatus: models.ReservationStatusClosed,
	}
}

func TestExportServiceCSV(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := newExportServiceForTest([]models.Attempt{
		submittedAttempt("sub-1", base, false),
		submittedAttempt("sub-2", base, true),
	}, base.Add(2*time.Hour))

	result, err := svc.ExportChallengeAttempts(context.Background(), "chal-1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Equal(t, "attempts-two-sum.csv", result.Filename)

	lines := strings.Split(strings.TrimSpace(string(result.Content)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Contestant")
	assert.Contains(t, lines[1], "alice@example.com")
	assert.Contains(t, lines[1], "submitted")
	assert.Contains(t, lines[2], "true")
}

func TestExportServiceCSVDerivesExpiredState(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	attempt := models.Attempt{
		Submission: models.Submission{
			ID:           "sub-1",
			ContestantID: "alice@example.com",
			ChallengeID:  "chal-1",
			Status:       models.SubmissionStatusInProgress,
			Active:       true,
		},
		ReservationID:     "res-1",
		StartsAt:          base,
		ClosesAt:          base.Add(time.Hour),
		ReservationStatus: models.ReservationStatusOpen,
	}
	svc := newExportServiceForTest([]models.Attempt{attempt}, base.Add(2*time.Hour))

	result, err := svc.ExportChallengeAttempts(context.Background(), "chal-1", "")
	require.NoError(t, err)

	// The stored row still says open and in progress but the report renders
	// the effective state at export time.
	content := string(result.Content)
	assert.Contains(t, content, "closed")
	assert.Contains(t, content, "late")
	assert.NotContains(t, content, "in_progress")
}

func TestExportServicePDF(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := newExportServiceForTest([]models.Attempt{submittedAttempt("sub-1", base, false)}, base.Add(2*time.Hour))

	result, err := svc.ExportChallengeAttempts(context.Background(), "chal-1", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.Equal(t, "attempts-two-sum.pdf", result.Filename)
	assert.True(t, bytes.HasPrefix(result.Content, []byte("%PDF")))
}

func TestExportServiceUnknownFormat(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := newExportServiceForTest(nil, base)

	_, err := svc.ExportChallengeAttempts(context.Background(), "chal-1", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceUnknownChallenge(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := newExportServiceForTest(nil, base)

	_, err := svc.ExportChallengeAttempts(context.Background(), "missing", "csv")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
