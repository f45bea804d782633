package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tryout-api/internal/models"
	appErrors "github.com/noah-isme/tryout-api/pkg/errors"
)

func newChallengeRepoMock(t *testing.T) (*ChallengeRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	repo := NewChallengeRepository(sqlx.NewDb(db, "sqlmock"), StoreOptions{})
	return repo, mock, func() { db.Close() }
}

func TestChallengeRepositoryCreate(t *testing.T) {
	repo, mock, cleanup := newChallengeRepoMock(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO challenges").
		WillReturnResult(sqlmock.NewResult(0, 1))

	challenge := &models.Challenge{
		Name:       "Two Sum",
		Repository: "git@challenges:two-sum.git",
	}
	require.NoError(t, repo.Create(context.Background(), challenge))
	assert.NotEmpty(t, challenge.ID)
	assert.False(t, challenge.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepositoryCreateDuplicateRepository(t *testing.T) {
	repo, mock, cleanup := newChallengeRepoMock(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO challenges").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "challenges_repository_key"})

	err := repo.Create(context.Background(), &models.Challenge{Name: "Two Sum", Repository: "git@challenges:two-sum.git"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepositoryFindByID(t *testing.T) {
	repo, mock, cleanup := newChallengeRepoMock(t)
	defer cleanup()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "name", "description", "repository", "created_at"}).
		AddRow("chal-1", "Two Sum", "", "git@challenges:two-sum.git", now)
	mock.ExpectQuery("SELECT (.+) FROM challenges WHERE id").
		WithArgs("chal-1").
		WillReturnRows(rows)

	challenge, err := repo.FindByID(context.Background(), "chal-1")
	require.NoError(t, err)
	assert.Equal(t, "Two Sum", challenge.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepositoryFindByIDNotFound(t *testing.T) {
	repo, mock, cleanup := newChallengeRepoMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM challenges WHERE id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepositoryList(t *testing.T) {
	repo, mock, cleanup := newChallengeRepoMock(t)
	defer cleanup()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "name", "description", "repository", "created_at"}).
		AddRow("chal-1", "Two Sum", "", "git@challenges:two-sum.git", now).
		AddRow("chal-2", "Graph Paths", "", "git@challenges:graph-paths.git", now)
	mock.ExpectQuery("SELECT (.+) FROM challenges ORDER BY created_at").
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM challenges`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	challenges, total, err := repo.List(context.Background(), models.ChallengeFilter{})
	require.NoError(t, err)
	assert.Len(t, challenges, 2)
	assert.Equal(t, 2, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepositoryListSearch(t *testing.T) {
	repo, mock, cleanup := newChallengeRepoMock(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM challenges WHERE name ILIKE").
		WithArgs("%graph%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "repository", "created_at"}).
			AddRow("chal-2", "Graph Paths", "", "git@challenges:graph-paths.git", now))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM challenges WHERE name ILIKE`).
		WithArgs("%graph%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	challenges, total, err := repo.List(context.Background(), models.ChallengeFilter{Search: "graph", Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, challenges, 1)
	assert.Equal(t, "Graph Paths", challenges[0].Name)
	assert.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
