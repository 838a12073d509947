package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marketpartner/leadscout/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Runs ---

// CreateRun persists one completed analysis. The result payload is stored
// as JSONB so the schema does not chase every result field.
func (s *PostgresStore) CreateRun(ctx context.Context, run *models.Run) error {
	result, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("encode run result: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, company_name, description, website_url, result, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.CompanyName, run.Description, run.WebsiteURL, result, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	var (
		r      models.Run
		result []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, company_name, description, website_url, result, created_at
		 FROM runs WHERE id = $1`, id,
	).Scan(&r.ID, &r.CompanyName, &r.Description, &r.WebsiteURL, &result, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if err := json.Unmarshal(result, &r.Result); err != nil {
		return nil, fmt.Errorf("decode run result: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]*models.Run, int, error) {
	conditions := []string{"TRUE"}
	args := []any{}
	argIdx := 1

	if filter.CompanyName != "" {
		conditions = append(conditions, fmt.Sprintf("company_name ILIKE $%d", argIdx))
		args = append(args, "%"+filter.CompanyName+"%")
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM runs WHERE " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count runs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	dataQuery := fmt.Sprintf(
		`SELECT id, company_name, description, website_url, result, created_at
		 FROM runs WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		var (
			r      models.Run
			result []byte
		)
		if err := rows.Scan(&r.ID, &r.CompanyName, &r.Description, &r.WebsiteURL, &result, &r.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal(result, &r.Result); err != nil {
			return nil, 0, fmt.Errorf("decode run result: %w", err)
		}
		runs = append(runs, &r)
	}
	return runs, total, rows.Err()
}
