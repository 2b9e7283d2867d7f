package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/psytest-backend/internal/model"
)

// TestRepository handles test module data access.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

const testColumns = `id, name, category, module_type, time_limit, total_questions, created_at`

func scanTest(row interface{ Scan(...any) error }, t *model.Test) error {
	return row.Scan(&t.ID, &t.Name, &t.Category, &t.ModuleType, &t.TimeLimit, &t.TotalQuestions, &t.CreatedAt)
}

// Create inserts a new test.
func (r *TestRepository) Create(ctx context.Context, t *model.Test) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO tests (name, category, module_type, time_limit, total_questions)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		t.Name, t.Category, t.ModuleType, t.TimeLimit, t.TotalQuestions,
	).Scan(&t.ID, &t.CreatedAt)
}

// GetByID retrieves a test by its UUID.
func (r *TestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	t := &model.Test{}
	err := scanTest(r.pool.QueryRow(ctx, `SELECT `+testColumns+` FROM tests WHERE id = $1`, id), t)
	if err != nil {
		return nil, translate(err)
	}
	return t, nil
}

// GetMany retrieves the tests with the given IDs, keyed by ID. Unknown IDs are absent.
func (r *TestRepository) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Test, error) {
	out := make(map[uuid.UUID]model.Test, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT `+testColumns+` FROM tests WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var t model.Test
		if err := scanTest(rows, &t); err != nil {
			return nil, err
		}
		out[t.ID] = t
	}
	return out, rows.Err()
}

// ListPaginated retrieves tests ordered by name, with the total count.
func (r *TestRepository) ListPaginated(ctx context.Context, limit, offset int) ([]model.Test, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tests`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+testColumns+` FROM tests ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		var t model.Test
		if err := scanTest(rows, &t); err != nil {
			return nil, 0, err
		}
		tests = append(tests, t)
	}
	return tests, total, rows.Err()
}
