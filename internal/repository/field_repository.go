package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-portal/internal/domain"
)

// FieldRepository encapsulates category field schema persistence.
type FieldRepository interface {
	Create(ctx context.Context, field *domain.CategoryField) error
	Update(ctx context.Context, field *domain.CategoryField) error
	GetByID(ctx context.Context, id string) (*domain.CategoryField, error)
	ListByCategory(ctx context.Context, categoryID string, activeOnly bool) ([]domain.CategoryField, error)
	UpdatePositions(ctx context.Context, categoryID string, positions map[string]int) error
	HasValues(ctx context.Context, fieldID string) (bool, error)
	Delete(ctx context.Context, id string) error
}

type fieldRepository struct {
	pool *pgxpool.Pool
}

// NewFieldRepository returns a Postgres-backed implementation.
func NewFieldRepository(pool *pgxpool.Pool) FieldRepository {
	return &fieldRepository{pool: pool}
}

const fieldColumns = `id, category_id, name, label, field_type, required, position, options,
               condition_field_id, condition_equals, is_active, created_at, updated_at`

func (r *fieldRepository) Create(ctx context.Context, field *domain.CategoryField) error {
	const query = `
        INSERT INTO category_fields (category_id, name, label, field_type, required, position, options, condition_field_id, condition_equals, is_active)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`
	conditionField, conditionEquals := conditionColumns(field.Condition)
	return r.pool.QueryRow(ctx, query,
		field.CategoryID,
		field.Name,
		field.Label,
		field.Type,
		field.Required,
		field.Position,
		field.Options,
		conditionField,
		conditionEquals,
		field.IsActive,
	).Scan(&field.ID, &field.CreatedAt, &field.UpdatedAt)
}

func (r *fieldRepository) Update(ctx context.Context, field *domain.CategoryField) error {
	const query = `
        UPDATE category_fields SET label=$1, field_type=$2, required=$3, position=$4, options=$5,
            condition_field_id=$6, condition_equals=$7, is_active=$8, updated_at=NOW()
        WHERE id=$9`
	conditionField, conditionEquals := conditionColumns(field.Condition)
	cmd, err := r.pool.Exec(ctx, query,
		field.Label,
		field.Type,
		field.Required,
		field.Position,
		field.Options,
		conditionField,
		conditionEquals,
		field.IsActive,
		field.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *fieldRepository) GetByID(ctx context.Context, id string) (*domain.CategoryField, error) {
	query := `SELECT ` + fieldColumns + ` FROM category_fields WHERE id=$1`
	var field domain.CategoryField
	if err := scanField(r.pool.QueryRow(ctx, query, id), &field); err != nil {
		return nil, err
	}
	return &field, nil
}

func (r *fieldRepository) ListByCategory(ctx context.Context, categoryID string, activeOnly bool) ([]domain.CategoryField, error) {
	query := `SELECT ` + fieldColumns + ` FROM category_fields WHERE category_id=$1`
	if activeOnly {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY position ASC, created_at ASC`

	rows, err := r.pool.Query(ctx, query, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.CategoryField
	for rows.Next() {
		var field domain.CategoryField
		if err := scanField(rows, &field); err != nil {
			return nil, err
		}
		result = append(result, field)
	}
	return result, rows.Err()
}

// UpdatePositions rewrites positions as one transaction: all rows move or
// none do.
func (r *fieldRepository) UpdatePositions(ctx context.Context, categoryID string, positions map[string]int) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `UPDATE category_fields SET position=$1, updated_at=NOW() WHERE id=$2 AND category_id=$3`
		for fieldID, position := range positions {
			cmd, err := tx.Exec(ctx, query, position, fieldID, categoryID)
			if err != nil {
				return err
			}
			if cmd.RowsAffected() == 0 {
				return pgx.ErrNoRows
			}
		}
		return nil
	})
}

func (r *fieldRepository) HasValues(ctx context.Context, fieldID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM field_values WHERE field_id=$1)`
	if err := r.pool.QueryRow(ctx, query, fieldID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *fieldRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM category_fields WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func conditionColumns(condition *domain.FieldCondition) (*string, *string) {
	if condition == nil {
		return nil, nil
	}
	return &condition.FieldID, &condition.Equals
}

func scanField(row pgx.Row, field *domain.CategoryField) error {
	var conditionField, conditionEquals *string
	if err := row.Scan(
		&field.ID,
		&field.CategoryID,
		&field.Name,
		&field.Label,
		&field.Type,
		&field.Required,
		&field.Position,
		&field.Options,
		&conditionField,
		&conditionEquals,
		&field.IsActive,
		&field.CreatedAt,
		&field.UpdatedAt,
	); err != nil {
		return err
	}
	if conditionField != nil && conditionEquals != nil {
		field.Condition = &domain.FieldCondition{FieldID: *conditionField, Equals: *conditionEquals}
	}
	return nil
}
