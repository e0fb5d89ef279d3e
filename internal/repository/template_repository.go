package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-portal/internal/domain"
)

// TemplateRepository encapsulates response template persistence.
type TemplateRepository interface {
	Create(ctx context.Context, template *domain.Template) error
	Update(ctx context.Context, template *domain.Template) error
	GetByID(ctx context.Context, id string) (*domain.Template, error)
	ListByType(ctx context.Context, templateType domain.TemplateType, activeOnly bool) ([]domain.Template, error)
	Delete(ctx context.Context, id string) error
}

type templateRepository struct {
	pool *pgxpool.Pool
}

// NewTemplateRepository returns a Postgres-backed implementation.
func NewTemplateRepository(pool *pgxpool.Pool) TemplateRepository {
	return &templateRepository{pool: pool}
}

const templateColumns = `id, name, template_type, body, is_active, created_at, updated_at`

func (r *templateRepository) Create(ctx context.Context, template *domain.Template) error {
	const query = `
        INSERT INTO templates (name, template_type, body, is_active)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		template.Name,
		template.Type,
		template.Body,
		template.IsActive,
	).Scan(&template.ID, &template.CreatedAt, &template.UpdatedAt)
}

func (r *templateRepository) Update(ctx context.Context, template *domain.Template) error {
	const query = `
        UPDATE templates SET name=$1, template_type=$2, body=$3, is_active=$4, updated_at=NOW()
        WHERE id=$5`
	cmd, err := r.pool.Exec(ctx, query,
		template.Name,
		template.Type,
		template.Body,
		template.IsActive,
		template.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *templateRepository) GetByID(ctx context.Context, id string) (*domain.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE id=$1`
	var template domain.Template
	if err := scanTemplate(r.pool.QueryRow(ctx, query, id), &template); err != nil {
		return nil, err
	}
	return &template, nil
}

func (r *templateRepository) ListByType(ctx context.Context, templateType domain.TemplateType, activeOnly bool) ([]domain.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE template_type=$1`
	if activeOnly {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY name ASC`

	rows, err := r.pool.Query(ctx, query, templateType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Template
	for rows.Next() {
		var template domain.Template
		if err := scanTemplate(rows, &template); err != nil {
			return nil, err
		}
		result = append(result, template)
	}
	return result, rows.Err()
}

func (r *templateRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM templates WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanTemplate(row pgx.Row, template *domain.Template) error {
	return row.Scan(
		&template.ID,
		&template.Name,
		&template.Type,
		&template.Body,
		&template.IsActive,
		&template.CreatedAt,
		&template.UpdatedAt,
	)
}
