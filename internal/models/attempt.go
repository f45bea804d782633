package models

import "time"

// Attempt is the paired (submission, reservation) for one contestant on one
// challenge, read back as a single joined row.
type Attempt struct {
	Submission
	ReservationID     string            `db:"reservation_id" json:"reservation_id"`
	StartsAt          time.Time         `db:"starts_at" json:"starts_at"`
	ClosesAt          time.Time         `db:"closes_at" json:"closes_at"`
	Cancelled         bool              `db:"cancelled" json:"cancelled"`
	CancelledAt       *time.Time        `db:"cancelled_at" json:"cancelled_at,omitempty"`
	ReservationStatus ReservationStatus `db:"reservation_status" json:"reservation_status"`
}

// Reservation reconstructs the reservation view of the attempt.
func (a *Attempt) Reservation() Reservation {
	return Reservation{
		ID:           a.ReservationID,
		SubmissionID: a.Submission.ID,
		StartsAt:     a.StartsAt,
		ClosesAt:     a.ClosesAt,
		Cancelled:    a.Cancelled,
		CancelledAt:  a.CancelledAt,
		Status:       a.ReservationStatus,
	}
}

// EffectiveSubmissionStatus derives the submission status at the given
// instant. A stored terminal status always stands; an in-progress submission
// whose window elapsed reads as late even before the sweeper persists it.
func (a *Attempt) EffectiveSubmissionStatus(now time.Time) SubmissionStatus {
	if a.Status.Terminal() {
		return a.Status
	}
	if !a.Cancelled && !now.Before(a.ClosesAt) {
		return SubmissionStatusLate
	}
	return a.Status
}

// AttemptStatus is the read model returned by status queries.
type AttemptStatus struct {
	SubmissionID      string            `json:"submission_id"`
	ReservationID     string            `json:"reservation_id"`
	ReservationStatus ReservationStatus `json:"reservation_status"`
	SubmissionStatus  SubmissionStatus  `json:"submission_status"`
	Late              bool              `json:"late"`
	StartsAt          time.Time         `json:"starts_at"`
	ClosesAt          time.Time         `json:"closes_at"`
}

// AttemptFilter provides filters for listing attempts.
type AttemptFilter struct {
	ChallengeID  string
	ContestantID string
	Status       SubmissionStatus
	Page         int
	PageSize     int
}
