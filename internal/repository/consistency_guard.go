package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/noah-isme/tryout-api/pkg/errors"
)

// ConsistencyGuard claims the (contestant, challenge) attempt slot inside an
// open transaction. The check is a fast path; the authoritative backstop is
// the partial unique index on submissions(contestant_id, challenge_id) WHERE
// active, so two transactions racing past the check still collide on insert
// and exactly one commits. Rolling back the enclosing transaction releases
// the claim, leaving no orphaned state.
type ConsistencyGuard struct{}

// Claim returns ErrConflict when an active attempt already holds the slot.
func (ConsistencyGuard) Claim(ctx context.Context, tx *sqlx.Tx, contestantID, challengeID string) error {
	const query = `SELECT 1 FROM submissions WHERE contestant_id = $1 AND challenge_id = $2 AND active LIMIT 1`
	var exists int
	err := tx.GetContext(ctx, &exists, query, contestantID, challengeID)
	if err == nil {
		return appErrors.Clone(appErrors.ErrConflict, "contestant already has an attempt in progress for this challenge")
	}
	if err == sql.ErrNoRows {
		return nil
	}
	return fmt.Errorf("claim attempt slot: %w", err)
}
