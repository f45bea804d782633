package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tryout-api/internal/models"
	appErrors "github.com/noah-isme/tryout-api/pkg/errors"
)

type challengeRepository interface {
	Create(ctx context.Context, challenge *models.Challenge) error
	FindByID(ctx context.Context, id string) (*models.Challenge, error)
	List(ctx context.Context, filter models.ChallengeFilter) ([]models.Challenge, int, error)
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// RegisterChallengeRequest describes challenge registration payload.
type RegisterChallengeRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Repository  string `json:"repository" validate:"required"`
}

// CatalogService owns the read-mostly challenge registry.
type CatalogService struct {
	repo      challengeRepository
	cache     catalogCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCatalogService constructs CatalogService. The cache is optional.
func NewCatalogService(repo challengeRepository, cache catalogCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &CatalogService{repo: repo, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// Register adds a challenge to the catalog. The repository reference must be
// unique; duplicates surface as Conflict.
func (s *CatalogService) Register(ctx context.Context, req RegisterChallengeRequest) (*models.Challenge, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid challenge payload")
	}
	challenge := &models.Challenge{Name: req.Name, Description: req.Description, Repository: req.Repository}
	if err := s.repo.Create(ctx, challenge); err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, "catalog:*"); err != nil {
			s.logger.Warn("catalog cache invalidation failed", zap.Error(err))
		}
	}
	s.logger.Info("challenge registered", zap.String("challenge_id", challenge.ID), zap.String("repository", challenge.Repository))
	return challenge, nil
}

// Lookup returns a challenge by ID, serving repeated reads from cache.
func (s *CatalogService) Lookup(ctx context.Context, id string) (*models.Challenge, error) {
	key := fmt.Sprintf("catalog:challenge:%s", id)
	if s.cache != nil {
		var cached models.Challenge
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("catalog cache read failed", zap.Error(err))
		}
	}

	challenge, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "challenge not found")
		}
		return nil, appErrors.FromError(err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, challenge, s.cacheTTL); err != nil {
			s.logger.Warn("catalog cache write failed", zap.Error(err))
		}
	}
	return challenge, nil
}

// List returns challenges with pagination metadata.
func (s *CatalogService) List(ctx context.Context, filter models.ChallengeFilter) ([]models.Challenge, *models.Pagination, error) {
	challenges, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list challenges")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return challenges, pagination, nil
}
