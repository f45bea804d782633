package models

import "time"

// SubmissionStatus represents the lifecycle of a submission. Transitions are
// monotonic: IN_PROGRESS advances to LATE or SUBMITTED and never reverses.
type SubmissionStatus string

// Possible submission statuses.
const (
	SubmissionStatusInProgress SubmissionStatus = "in_progress"
	SubmissionStatusLate       SubmissionStatus = "late"
	SubmissionStatusSubmitted  SubmissionStatus = "submitted"
)

// Terminal reports whether the status admits no further transitions.
func (s SubmissionStatus) Terminal() bool {
	return s == SubmissionStatusLate || s == SubmissionStatusSubmitted
}

// Submission records a contestant's attempt at a challenge. At most one
// active submission exists per (contestant, challenge) pair; the slot is
// freed when the owning reservation is cancelled.
type Submission struct {
	ID           string           `db:"id" json:"id"`
	ContestantID string           `db:"contestant_id" json:"contestant_id"`
	ChallengeID  string           `db:"challenge_id" json:"challenge_id"`
	Status       SubmissionStatus `db:"status" json:"status"`
	Late         bool             `db:"late" json:"late"`
	PayloadRef   *string          `db:"payload_ref" json:"payload_ref,omitempty"`
	SubmittedAt  *time.Time       `db:"submitted_at" json:"submitted_at,omitempty"`
	Active       bool             `db:"active" json:"-"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}
