package models

// MarkerAssignment is a pass-through association row linking a marker to a
// challenge. Ownership of its semantics lies with the grading layer; this
// service only stores and lists the rows.
type MarkerAssignment struct {
	MarkerEmail string `db:"marker_email" json:"marker_email"`
	ChallengeID string `db:"challenge_id" json:"challenge_id"`
}

// ChallengeSubmissionLink is the pass-through grouping row consumed by the
// reporting layer.
type ChallengeSubmissionLink struct {
	ChallengeID  string `db:"challenge_id" json:"challenge_id"`
	SubmissionID string `db:"submission_id" json:"submission_id"`
}
