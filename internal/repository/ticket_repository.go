package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-portal/internal/domain"
)

// TicketFilter captures listing/search parameters.
type TicketFilter struct {
	RequesterID *string
	CategoryID  *string
	AssigneeID  *string
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketWithSLA pairs a ticket with its category's SLA window for bulk
// evaluation.
type TicketWithSLA struct {
	Ticket   domain.Ticket
	SLAHours int
}

// TicketRepository encapsulates ticket persistence. Mutations that must be
// serialized per ticket are compare-and-swap updates guarded by the expected
// current status; composite writes run in one transaction.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket, values []domain.FieldValue, attachments []domain.Attachment) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByNumber(ctx context.Context, number string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ListActiveWithSLA(ctx context.Context) ([]TicketWithSLA, error)
	UpdateStatus(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error
	UpdateAssignee(ctx context.Context, ticketID string, assigneeID *string) error
	UpdatePriority(ctx context.Context, ticketID string, priority domain.TicketPriority) error
	CloseWithComment(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus, comment *domain.Comment) error
	SubmitRating(ctx context.Context, ticketID string, rating int, comment *string) error
	CountByCategory(ctx context.Context, categoryID string, nonTerminalOnly bool) (int, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, number, requester_id, category_id, assignee_id, title, description,
               status, priority, source, resolution, satisfaction_rating, satisfaction_comment,
               created_at, updated_at, resolved_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket, values []domain.FieldValue, attachments []domain.Attachment) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		number, err := nextTicketNumber(ctx, tx, time.Now().UTC())
		if err != nil {
			return err
		}
		ticket.Number = number

		const query = `
        INSERT INTO tickets (number, requester_id, category_id, assignee_id, title, description, status, priority, source)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
		if err := tx.QueryRow(ctx, query,
			ticket.Number,
			ticket.RequesterID,
			ticket.CategoryID,
			ticket.AssigneeID,
			ticket.Title,
			ticket.Description,
			ticket.Status,
			ticket.Priority,
			ticket.Source,
		).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
			return err
		}

		for i := range values {
			values[i].TicketID = ticket.ID
			if err := insertFieldValue(ctx, tx, &values[i]); err != nil {
				return err
			}
		}
		for i := range attachments {
			attachments[i].TicketID = ticket.ID
			if err := insertAttachment(ctx, tx, &attachments[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// nextTicketNumber allocates the next per-year sequence value. The upsert
// serializes concurrent creates on the year row, so numbers are never
// reused.
func nextTicketNumber(ctx context.Context, q querier, now time.Time) (string, error) {
	const query = `
        INSERT INTO ticket_sequences (year, last_value) VALUES ($1, 1)
        ON CONFLICT (year) DO UPDATE SET last_value = ticket_sequences.last_value + 1
        RETURNING last_value`
	year := now.Year()
	var seq int64
	if err := q.QueryRow(ctx, query, year).Scan(&seq); err != nil {
		return "", err
	}
	return fmt.Sprintf("T-%d-%03d", year, seq), nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE number=$1`
	return r.fetchSingle(ctx, query, number)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, arg), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		clauses = append(clauses, fmt.Sprintf("category_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s OR number ILIKE %s)", placeholder, placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListActiveWithSLA(ctx context.Context) ([]TicketWithSLA, error) {
	const query = `
        SELECT t.id, t.number, t.requester_id, t.category_id, t.assignee_id, t.title, t.description,
               t.status, t.priority, t.source, t.resolution, t.satisfaction_rating, t.satisfaction_comment,
               t.created_at, t.updated_at, t.resolved_at, c.sla_hours
         FROM tickets t
         JOIN categories c ON c.id = t.category_id
         WHERE t.status NOT IN ('resolved','closed')
         ORDER BY t.created_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TicketWithSLA
	for rows.Next() {
		var item TicketWithSLA
		if err := rows.Scan(
			&item.Ticket.ID,
			&item.Ticket.Number,
			&item.Ticket.RequesterID,
			&item.Ticket.CategoryID,
			&item.Ticket.AssigneeID,
			&item.Ticket.Title,
			&item.Ticket.Description,
			&item.Ticket.Status,
			&item.Ticket.Priority,
			&item.Ticket.Source,
			&item.Ticket.Resolution,
			&item.Ticket.SatisfactionRating,
			&item.Ticket.SatisfactionComment,
			&item.Ticket.CreatedAt,
			&item.Ticket.UpdatedAt,
			&item.Ticket.ResolvedAt,
			&item.SLAHours,
		); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error {
	const query = `
        UPDATE tickets SET status=$1, resolution=$2, resolved_at=$3, updated_at=NOW()
        WHERE id=$4 AND status=$5`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Status,
		ticket.Resolution,
		ticket.ResolvedAt,
		ticket.ID,
		expected,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStaleUpdate
	}
	return nil
}

func (r *ticketRepository) UpdateAssignee(ctx context.Context, ticketID string, assigneeID *string) error {
	const query = `
        UPDATE tickets SET assignee_id=$1, updated_at=NOW()
        WHERE id=$2 AND status <> 'closed'`
	cmd, err := r.pool.Exec(ctx, query, assigneeID, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStaleUpdate
	}
	return nil
}

func (r *ticketRepository) UpdatePriority(ctx context.Context, ticketID string, priority domain.TicketPriority) error {
	const query = `
        UPDATE tickets SET priority=$1, updated_at=NOW()
        WHERE id=$2 AND status <> 'closed'`
	cmd, err := r.pool.Exec(ctx, query, priority, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStaleUpdate
	}
	return nil
}

// CloseWithComment writes the comment and the closing transition as one
// transaction: if either side fails, neither persists.
func (r *ticketRepository) CloseWithComment(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus, comment *domain.Comment) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := insertComment(ctx, tx, comment); err != nil {
			return err
		}
		const query = `
        UPDATE tickets SET status=$1, resolution=$2, resolved_at=$3, updated_at=NOW()
        WHERE id=$4 AND status=$5`
		cmd, err := tx.Exec(ctx, query,
			ticket.Status,
			ticket.Resolution,
			ticket.ResolvedAt,
			ticket.ID,
			expected,
		)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrStaleUpdate
		}
		return nil
	})
}

// SubmitRating sets the rating and forces closure in a single guarded
// update; the predicate rejects re-submission and non-resolved tickets.
func (r *ticketRepository) SubmitRating(ctx context.Context, ticketID string, rating int, comment *string) error {
	const query = `
        UPDATE tickets SET satisfaction_rating=$1, satisfaction_comment=$2, status='closed', updated_at=NOW()
        WHERE id=$3 AND status='resolved' AND satisfaction_rating IS NULL`
	cmd, err := r.pool.Exec(ctx, query, rating, comment, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStaleUpdate
	}
	return nil
}

func (r *ticketRepository) CountByCategory(ctx context.Context, categoryID string, nonTerminalOnly bool) (int, error) {
	query := `SELECT COUNT(*) FROM tickets WHERE category_id=$1`
	if nonTerminalOnly {
		query += ` AND status <> 'closed'`
	}
	var count int
	if err := r.pool.QueryRow(ctx, query, categoryID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.Number,
		&ticket.RequesterID,
		&ticket.CategoryID,
		&ticket.AssigneeID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Source,
		&ticket.Resolution,
		&ticket.SatisfactionRating,
		&ticket.SatisfactionComment,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
