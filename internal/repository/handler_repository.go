package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/domain"
)

// HandlerRepository reads the handler roster. The triage pipeline never
// writes to it.
type HandlerRepository interface {
	// FindActiveByRoleSubstring returns the first active handler whose
	// role, department or expertise contains the query, case-insensitive.
	// Selection is deterministic: oldest handler wins, id breaks ties.
	// Returns nil without error when no handler matches.
	FindActiveByRoleSubstring(ctx context.Context, query string) (*domain.Handler, error)
	ListActive(ctx context.Context) ([]domain.Handler, error)
	GetByID(ctx context.Context, id string) (*domain.Handler, error)
}

type handlerRepository struct {
	pool *pgxpool.Pool
}

// NewHandlerRepository instantiates the repository.
func NewHandlerRepository(pool *pgxpool.Pool) HandlerRepository {
	return &handlerRepository{pool: pool}
}

func (r *handlerRepository) FindActiveByRoleSubstring(ctx context.Context, query string) (*domain.Handler, error) {
	const sqlQuery = `
        SELECT id, name, email, role, department, expertise, active_flag, created_at
        FROM handlers
        WHERE (role ILIKE $1 OR department ILIKE $1 OR expertise ILIKE $1)
          AND active_flag = TRUE
        ORDER BY created_at ASC, id ASC
        LIMIT 1`
	handler, err := r.scanSingle(r.pool.QueryRow(ctx, sqlQuery, "%"+query+"%"))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return handler, nil
}

func (r *handlerRepository) ListActive(ctx context.Context) ([]domain.Handler, error) {
	const query = `
        SELECT id, name, email, role, department, expertise, active_flag, created_at
        FROM handlers WHERE active_flag = TRUE
        ORDER BY name ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Handler
	for rows.Next() {
		var handler domain.Handler
		if err := rows.Scan(
			&handler.ID,
			&handler.Name,
			&handler.Email,
			&handler.Role,
			&handler.Department,
			&handler.Expertise,
			&handler.Active,
			&handler.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, handler)
	}
	return result, rows.Err()
}

func (r *handlerRepository) GetByID(ctx context.Context, id string) (*domain.Handler, error) {
	const query = `
        SELECT id, name, email, role, department, expertise, active_flag, created_at
        FROM handlers WHERE id=$1`
	return r.scanSingle(r.pool.QueryRow(ctx, query, id))
}

func (r *handlerRepository) scanSingle(row pgx.Row) (*domain.Handler, error) {
	var handler domain.Handler
	if err := row.Scan(
		&handler.ID,
		&handler.Name,
		&handler.Email,
		&handler.Role,
		&handler.Department,
		&handler.Expertise,
		&handler.Active,
		&handler.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &handler, nil
}
