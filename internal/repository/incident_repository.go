package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/domain"
)

// IncidentRepository reads historical incidents used as reasoning context.
type IncidentRepository interface {
	// ListRecent returns up to limit incidents ordered newest-first.
	ListRecent(ctx context.Context, limit int) ([]domain.PastIncident, error)
}

type incidentRepository struct {
	pool *pgxpool.Pool
}

// NewIncidentRepository builds the repository.
func NewIncidentRepository(pool *pgxpool.Pool) IncidentRepository {
	return &incidentRepository{pool: pool}
}

func (r *incidentRepository) ListRecent(ctx context.Context, limit int) ([]domain.PastIncident, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT id, incident_date, summary, category, severity, resolution, mitigation_steps, created_at
        FROM past_incidents ORDER BY incident_date DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PastIncident
	for rows.Next() {
		var incident domain.PastIncident
		if err := rows.Scan(
			&incident.ID,
			&incident.Date,
			&incident.Summary,
			&incident.Category,
			&incident.Severity,
			&incident.Resolution,
			&incident.Mitigation,
			&incident.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, incident)
	}
	return result, rows.Err()
}
