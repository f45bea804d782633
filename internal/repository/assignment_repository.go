package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tryout-api/internal/models"
)

// AssignmentRepository stores the pass-through association rows owned by the
// grading and reporting layers. This core never interprets them.
type AssignmentRepository struct {
	db   *sqlx.DB
	opts StoreOptions
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB, opts StoreOptions) *AssignmentRepository {
	return &AssignmentRepository{db: db, opts: opts}
}

// AssignMarker records a marker-to-challenge association. Re-assigning the
// same pair is a no-op.
func (r *AssignmentRepository) AssignMarker(ctx context.Context, markerEmail, challengeID string) error {
	const query = `INSERT INTO markers_challenges (marker_email, challenge_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	return withRetry(ctx, r.opts, func(ctx context.Context) error {
		if _, err := r.db.ExecContext(ctx, query, markerEmail, challengeID); err != nil {
			return fmt.Errorf("assign marker: %w", err)
		}
		return nil
	})
}

// ListMarkers returns the markers assigned to a challenge.
func (r *AssignmentRepository) ListMarkers(ctx context.Context, challengeID string) ([]models.MarkerAssignment, error) {
	const query = `SELECT marker_email, challenge_id FROM markers_challenges WHERE challenge_id = $1 ORDER BY marker_email`
	var assignments []models.MarkerAssignment
	err := withRetry(ctx, r.opts, func(ctx context.Context) error {
		return r.db.SelectContext(ctx, &assignments, query, challengeID)
	})
	if err != nil {
		return nil, fmt.Errorf("list markers: %w", err)
	}
	return assignments, nil
}

// ListSubmissionLinks returns the submission grouping rows for a challenge.
func (r *AssignmentRepository) ListSubmissionLinks(ctx context.Context, challengeID string) ([]models.ChallengeSubmissionLink, error) {
	const query = `SELECT challenge_id, submission_id FROM challenges_submissions WHERE challenge_id = $1`
	var links []models.ChallengeSubmissionLink
	err := withRetry(ctx, r.opts, func(ctx context.Context) error {
		return r.db.SelectContext(ctx, &links, query, challengeID)
	})
	if err != nil {
		return nil, fmt.Errorf("list submission links: %w", err)
	}
	return links, nil
}
