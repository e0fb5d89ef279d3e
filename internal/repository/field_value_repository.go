package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-portal/internal/domain"
)

// FieldValueRepository encapsulates stored dynamic field values.
// Writes are append-only: schema changes never rewrite captured values.
type FieldValueRepository interface {
	CreateMany(ctx context.Context, ticketID string, values []domain.FieldValue) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.FieldValue, error)
}

type fieldValueRepository struct {
	pool *pgxpool.Pool
}

// NewFieldValueRepository returns a Postgres-backed implementation.
func NewFieldValueRepository(pool *pgxpool.Pool) FieldValueRepository {
	return &fieldValueRepository{pool: pool}
}

func (r *fieldValueRepository) CreateMany(ctx context.Context, ticketID string, values []domain.FieldValue) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for i := range values {
			values[i].TicketID = ticketID
			if err := insertFieldValue(ctx, tx, &values[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertFieldValue(ctx context.Context, q querier, value *domain.FieldValue) error {
	const query = `
        INSERT INTO field_values (ticket_id, field_id, field_name, value_kind, scalar_value, list_value)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return q.QueryRow(ctx, query,
		value.TicketID,
		value.FieldID,
		value.FieldName,
		value.Kind,
		value.Scalar,
		value.List,
	).Scan(&value.ID, &value.CreatedAt)
}

func (r *fieldValueRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.FieldValue, error) {
	const query = `
        SELECT id, ticket_id, field_id, field_name, value_kind, scalar_value, list_value, created_at
        FROM field_values WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.FieldValue
	for rows.Next() {
		var value domain.FieldValue
		if err := rows.Scan(
			&value.ID,
			&value.TicketID,
			&value.FieldID,
			&value.FieldName,
			&value.Kind,
			&value.Scalar,
			&value.List,
			&value.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, value)
	}
	return result, rows.Err()
}
