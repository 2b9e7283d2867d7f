package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/psytest-backend/internal/cache"
	"github.com/stemsi/psytest-backend/internal/model"
	"github.com/stemsi/psytest-backend/internal/repository"
	"github.com/stemsi/psytest-backend/internal/response"
)

// TestService manages the test module catalogue. Reads go through Redis first because
// every attempt event needs the test's time limit and question count.
type TestService struct {
	store TestStore
	cache TestCache
	log   zerolog.Logger
}

// NewTestService creates a new TestService.
func NewTestService(store TestStore, cache TestCache, log zerolog.Logger) *TestService {
	return &TestService{
		store: store,
		cache: cache,
		log:   log.With().Str("component", "test_service").Logger(),
	}
}

// Create registers a test module.
func (s *TestService) Create(ctx context.Context, req model.CreateTestRequest) (*model.Test, error) {
	t := &model.Test{
		Name:           strings.TrimSpace(req.Name),
		Category:       strings.ToLower(strings.TrimSpace(req.Category)),
		ModuleType:     model.ModuleType(req.ModuleType),
		TimeLimit:      req.TimeLimit,
		TotalQuestions: req.TotalQuestions,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create test: %w", err)
	}

	if err := s.cache.SetTest(ctx, t); err != nil {
		s.log.Warn().Err(err).Str("test_id", t.ID.String()).Msg("Failed to cache new test")
	}
	return t, nil
}

// Get returns a test, from cache when possible. A miss is filled from PostgreSQL.
func (s *TestService) Get(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	t, err := s.cache.GetTest(ctx, id)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn().Err(err).Str("test_id", id.String()).Msg("Test cache read failed, using database")
	}

	t, err = s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}

	if err := s.cache.SetTest(ctx, t); err != nil {
		s.log.Warn().Err(err).Str("test_id", id.String()).Msg("Failed to refill test cache")
	}
	return t, nil
}

// GetMany returns the tests with the given IDs, keyed by ID.
func (s *TestService) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Test, error) {
	tests, err := s.store.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get tests: %w", err)
	}
	return tests, nil
}

// List retrieves tests with pagination.
func (s *TestService) List(ctx context.Context, page, perPage int) ([]model.Test, *response.Pagination, error) {
	page, perPage, offset := response.NormalizePage(page, perPage)

	tests, total, err := s.store.ListPaginated(ctx, perPage, offset)
	if err != nil {
		return nil, nil, fmt.Errorf("list tests: %w", err)
	}
	if tests == nil {
		tests = []model.Test{}
	}
	return tests, response.NewPagination(page, perPage, total), nil
}
