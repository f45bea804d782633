package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tryout-api/internal/models"
	appErrors "github.com/noah-isme/tryout-api/pkg/errors"
)

// ChallengeRepository handles persistence of catalog challenges.
type ChallengeRepository struct {
	db   *sqlx.DB
	opts StoreOptions
}

// NewChallengeRepository constructs the repository.
func NewChallengeRepository(db *sqlx.DB, opts StoreOptions) *ChallengeRepository {
	return &ChallengeRepository{db: db, opts: opts}
}

// Create persists a new challenge. The unique constraint on repository maps
// to ErrConflict.
func (r *ChallengeRepository) Create(ctx context.Context, challenge *models.Challenge) error {
	if challenge.ID == "" {
		challenge.ID = uuid.NewString()
	}
	if challenge.CreatedAt.IsZero() {
		challenge.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO challenges (id, name, description, repository, created_at)
        VALUES (:id, :name, :description, :repository, :created_at)`
	return withRetry(ctx, r.opts, func(ctx context.Context) error {
		if _, err := r.db.NamedExecContext(ctx, query, challenge); err != nil {
			if isUniqueViolation(err) {
				return appErrors.Clone(appErrors.ErrConflict, "challenge repository already registered")
			}
			return fmt.Errorf("create challenge: %w", err)
		}
		return nil
	})
}

// FindByID returns a challenge by its ID.
func (r *ChallengeRepository) FindByID(ctx context.Context, id string) (*models.Challenge, error) {
	const query = `SELECT id, name, description, repository, created_at FROM challenges WHERE id = $1`
	var challenge models.Challenge
	err := withRetry(ctx, r.opts, func(ctx context.Context) error {
		return r.db.GetContext(ctx, &challenge, query, id)
	})
	if err != nil {
		return nil, err
	}
	return &challenge, nil
}

// List returns challenges filtered by the provided criteria.
func (r *ChallengeRepository) List(ctx context.Context, filter models.ChallengeFilter) ([]models.Challenge, int, error) {
	clause := ""
	var args []interface{}
	if filter.Search != "" {
		clause = " WHERE name ILIKE $1"
		args = append(args, "%"+filter.Search+"%")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, name, description, repository, created_at FROM challenges%s ORDER BY created_at DESC LIMIT %d OFFSET %d`, clause, size, offset)

	var challenges []models.Challenge
	err := withRetry(ctx, r.opts, func(ctx context.Context) error {
		return r.db.SelectContext(ctx, &challenges, query, args...)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list challenges: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM challenges" + clause
	var total int
	err = withRetry(ctx, r.opts, func(ctx context.Context) error {
		return r.db.GetContext(ctx, &total, countQuery, args...)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("count challenges: %w", err)
	}
	return challenges, total, nil
}
