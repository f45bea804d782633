package models

import "time"

// Challenge is a catalog entry a contestant can attempt. The repository
// reference is unique across the catalog.
type Challenge struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Repository  string    `db:"repository" json:"repository"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ChallengeFilter provides filters for listing challenges.
type ChallengeFilter struct {
	Search   string
	Page     int
	PageSize int
}
