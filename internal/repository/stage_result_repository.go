package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/domain"
)

// StageResultRepository stores raw reasoning stage output per ticket run.
type StageResultRepository interface {
	Save(ctx context.Context, result *domain.StageResult) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.StageResult, error)
}

type stageResultRepository struct {
	pool *pgxpool.Pool
}

// NewStageResultRepository builds the repository.
func NewStageResultRepository(pool *pgxpool.Pool) StageResultRepository {
	return &stageResultRepository{pool: pool}
}

func (r *stageResultRepository) Save(ctx context.Context, result *domain.StageResult) error {
	const query = `
        INSERT INTO stage_results (ticket_id, stage_name, result_text)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		result.TicketID,
		result.StageName,
		result.Text,
	).Scan(&result.ID, &result.CreatedAt)
}

func (r *stageResultRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.StageResult, error) {
	const query = `
        SELECT id, ticket_id, stage_name, result_text, created_at
        FROM stage_results WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StageResult
	for rows.Next() {
		var stage domain.StageResult
		if err := rows.Scan(
			&stage.ID,
			&stage.TicketID,
			&stage.StageName,
			&stage.Text,
			&stage.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, stage)
	}
	return result, rows.Err()
}
