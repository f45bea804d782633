package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tryout-api/internal/models"
	appErrors "github.com/noah-isme/tryout-api/pkg/errors"
	"github.com/noah-isme/tryout-api/pkg/export"
)

type attemptLister interface {
	List(ctx context.Context, filter models.AttemptFilter) ([]models.Attempt, int, error)
}

// ExportResult carries rendered report bytes and serving metadata.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ExportService renders tabular attempt reports for a challenge, for the
// marking and reporting layers.
type ExportService struct {
	attempts attemptLister
	catalog  challengeFinder
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService constructs ExportService.
func NewExportService(attempts attemptLister, catalog challengeFinder, logger *zap.Logger, now func() time.Time) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &ExportService{
		attempts: attempts,
		catalog:  catalog,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
		now:      now,
	}
}

var exportHeaders = []string{"Contestant", "Starts At", "Closes At", "Reservation", "Submission", "Late", "Submitted At"}

// ExportChallengeAttempts renders every attempt for the challenge in the
// requested format (csv or pdf). Statuses are derived at render time so the
// report never shows a stale open window.
func (s *ExportService) ExportChallengeAttempts(ctx context.Context, challengeID, format string) (*ExportResult, error) {
	challenge, err := s.catalog.Lookup(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	dataset := export.Dataset{Headers: exportHeaders}
	filter := models.AttemptFilter{ChallengeID: challengeID, Page: 1, PageSize: 100}
	for {
		attempts, total, err := s.attempts.List(ctx, filter)
		if err != nil {
			return nil, appErrors.FromError(err)
		}
		for i := range attempts {
			dataset.Rows = append(dataset.Rows, exportRow(&attempts[i], now))
		}
		if filter.Page*filter.PageSize >= total || len(attempts) == 0 {
			break
		}
		filter.Page++
	}

	switch strings.ToLower(format) {
	case "", "csv":
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv report")
		}
		return &ExportResult{Content: content, ContentType: "text/csv", Filename: exportFilename(challenge, "csv")}, nil
	case "pdf":
		content, err := s.pdf.Render(dataset, fmt.Sprintf("%s attempts", challenge.Name))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
		}
		return &ExportResult{Content: content, ContentType: "application/pdf", Filename: exportFilename(challenge, "pdf")}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

func exportRow(attempt *models.Attempt, now time.Time) map[string]string {
	submissionStatus := attempt.EffectiveSubmissionStatus(now)
	submittedAt := ""
	if attempt.SubmittedAt != nil {
		submittedAt = attempt.SubmittedAt.UTC().Format(time.RFC3339)
	}
	return map[string]string{
		"Contestant":   attempt.ContestantID,
		"Starts At":    attempt.StartsAt.UTC().Format(time.RFC3339),
		"Closes At":    attempt.ClosesAt.UTC().Format(time.RFC3339),
		"Reservation":  string(attempt.Reservation().EffectiveStatus(submissionStatus, now)),
		"Submission":   string(submissionStatus),
		"Late":         fmt.Sprintf("%t", attempt.Late || submissionStatus == models.SubmissionStatusLate),
		"Submitted At": submittedAt,
	}
}

func exportFilename(challenge *models.Challenge, ext string) string {
	name := strings.ToLower(strings.ReplaceAll(challenge.Name, " ", "-"))
	return fmt.Sprintf("attempts-%s.%s", name, ext)
}
