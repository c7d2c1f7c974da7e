package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/domain"
)

// TicketUpdate carries the mutable fields a caller may change. Nil fields
// are left untouched.
type TicketUpdate struct {
	Category             *string
	Severity             *domain.TicketSeverity
	Priority             *domain.TicketPriority
	Status               *domain.TicketStatus
	AssignedHandlerID    *string
	AssignedHandlerEmail *string
	AssignmentReason     *string
	Resolution           *string
	MarkResolved         bool
}

// TicketFilter captures listing parameters.
type TicketFilter struct {
	Statuses   []domain.TicketStatus
	Severities []domain.TicketSeverity
	SearchTerm *string
	Limit      int
	Offset     int
}

// TicketMetrics aggregates counts for the reporting endpoint.
type TicketMetrics struct {
	Total             int64
	ByStatus          map[string]int64
	BySeverity        map[string]int64
	AvgResolutionDays float64
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, id string, update TicketUpdate) (*domain.Ticket, error)
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByExternalKey(ctx context.Context, key string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Metrics(ctx context.Context) (*TicketMetrics, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, external_key, requester_name, requester_email, title, description,
               category, severity, priority, status, assigned_handler_id, assigned_handler_email,
               assignment_reason, resolution, created_at, updated_at, resolved_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (external_key, requester_name, requester_email, title, description, category, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ExternalKey,
		ticket.RequesterName,
		ticket.RequesterEmail,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.Status,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, id string, update TicketUpdate) (*domain.Ticket, error) {
	sets := []string{}
	args := []any{}

	appendSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}

	if update.Category != nil {
		appendSet("category", *update.Category)
	}
	if update.Severity != nil {
		appendSet("severity", *update.Severity)
	}
	if update.Priority != nil {
		appendSet("priority", *update.Priority)
	}
	if update.Status != nil {
		appendSet("status", *update.Status)
	}
	if update.AssignedHandlerID != nil {
		appendSet("assigned_handler_id", *update.AssignedHandlerID)
	}
	if update.AssignedHandlerEmail != nil {
		appendSet("assigned_handler_email", *update.AssignedHandlerEmail)
	}
	if update.AssignmentReason != nil {
		appendSet("assignment_reason", *update.AssignmentReason)
	}
	if update.Resolution != nil {
		appendSet("resolution", *update.Resolution)
	}
	if update.MarkResolved {
		sets = append(sets, "resolved_at=NOW()")
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	sets = append(sets, "updated_at=NOW()")

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE id=$%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), ticketColumns)

	return r.scanSingle(r.pool.QueryRow(ctx, query, args...))
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	return r.scanSingle(r.pool.QueryRow(ctx, query, id))
}

func (r *ticketRepository) GetByExternalKey(ctx context.Context, key string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE external_key=$1`, ticketColumns)
	return r.scanSingle(r.pool.QueryRow(ctx, query, key))
}

func (r *ticketRepository) scanSingle(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.RequesterName,
		&ticket.RequesterEmail,
		&ticket.Title,
		&ticket.Description,
		&ticket.Category,
		&ticket.Severity,
		&ticket.Priority,
		&ticket.Status,
		&ticket.AssignedHandlerID,
		&ticket.AssignedHandlerEmail,
		&ticket.AssignmentReason,
		&ticket.Resolution,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Severities) > 0 {
		placeholders := make([]string, len(filter.Severities))
		for i, severity := range filter.Severities {
			args = append(args, severity)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("severity IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Metrics(ctx context.Context) (*TicketMetrics, error) {
	metrics := &TicketMetrics{
		ByStatus:   map[string]int64{},
		BySeverity: map[string]int64{},
	}

	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets`).Scan(&metrics.Total); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM tickets GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		metrics.ByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sevRows, err := r.pool.Query(ctx, `SELECT severity, COUNT(*) FROM tickets WHERE severity IS NOT NULL GROUP BY severity`)
	if err != nil {
		return nil, err
	}
	defer sevRows.Close()
	for sevRows.Next() {
		var severity string
		var count int64
		if err := sevRows.Scan(&severity, &count); err != nil {
			return nil, err
		}
		metrics.BySeverity[severity] = count
	}
	if err := sevRows.Err(); err != nil {
		return nil, err
	}

	const avgQuery = `
        SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (resolved_at - created_at)) / 86400), 0)
        FROM tickets WHERE resolved_at IS NOT NULL`
	if err := r.pool.QueryRow(ctx, avgQuery).Scan(&metrics.AvgResolutionDays); err != nil {
		return nil, err
	}

	return metrics, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.ExternalKey,
			&ticket.RequesterName,
			&ticket.RequesterEmail,
			&ticket.Title,
			&ticket.Description,
			&ticket.Category,
			&ticket.Severity,
			&ticket.Priority,
			&ticket.Status,
			&ticket.AssignedHandlerID,
			&ticket.AssignedHandlerEmail,
			&ticket.AssignmentReason,
			&ticket.Resolution,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
			&ticket.ResolvedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
