package models

import "time"

// ReservationStatus represents the lifecycle of a reservation window.
type ReservationStatus string

// Possible reservation statuses. CLOSED and CANCELLED are terminal.
const (
	ReservationStatusOpen      ReservationStatus = "open"
	ReservationStatusClosed    ReservationStatus = "closed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// Reservation is the exclusive time window owned by a submission (1:1).
// Status is derivable from (now, cancelled, closes_at) but persisted for
// auditability; writers keep the two in agreement.
type Reservation struct {
	ID           string            `db:"id" json:"id"`
	SubmissionID string            `db:"submission_id" json:"submission_id"`
	StartsAt     time.Time         `db:"starts_at" json:"starts_at"`
	ClosesAt     time.Time         `db:"closes_at" json:"closes_at"`
	Cancelled    bool              `db:"cancelled" json:"cancelled"`
	CancelledAt  *time.Time        `db:"cancelled_at" json:"cancelled_at,omitempty"`
	Status       ReservationStatus `db:"status" json:"status"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
}

// EffectiveStatus derives the reservation status at the given instant without
// mutating anything. Cancellation wins, then a terminal submission or an
// elapsed window closes the reservation.
func (r Reservation) EffectiveStatus(submissionStatus SubmissionStatus, now time.Time) ReservationStatus {
	if r.Cancelled {
		return ReservationStatusCancelled
	}
	if submissionStatus.Terminal() || !now.Before(r.ClosesAt) {
		return ReservationStatusClosed
	}
	return ReservationStatusOpen
}
