package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/spec-kit/uniticket/internal/domain"
)

const ticketColumns = `id, title, description, category, priority, status, department, location,
               tags, attachments, due_date, resolution, resolved_at, closed_at, created_by,
               assigned_to, is_deleted, created_at, updated_at`

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, category, priority, status, department, location,
            tags, attachments, due_date, resolution, resolved_at, closed_at, created_by, assigned_to)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
        RETURNING id, created_at, updated_at`
	ticket.StampLifecycle(utcNow())
	err := r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		ticket.Department,
		ticket.Location,
		nonNilTags(ticket.Tags),
		nonNilAttachments(ticket.Attachments),
		ticket.DueDate,
		ticket.Resolution,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.CreatedBy,
		ticket.AssignedTo,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	return errors.WithStack(err)
}

// Update persists mutable fields. The lifecycle stamps are merged with
// COALESCE so a stale copy can never clear them.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET category=$1, priority=$2, status=$3, department=$4, location=$5,
            tags=$6, attachments=$7, due_date=$8, resolution=$9, assigned_to=$10,
            resolved_at=COALESCE(resolved_at, $11), closed_at=COALESCE(closed_at, $12),
            updated_at=NOW()
        WHERE id=$13 AND is_deleted=FALSE
        RETURNING resolved_at, closed_at, updated_at`
	if !validID(ticket.ID) {
		return ErrNotFound
	}
	ticket.StampLifecycle(utcNow())
	err := r.pool.QueryRow(ctx, query,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		ticket.Department,
		ticket.Location,
		nonNilTags(ticket.Tags),
		nonNilAttachments(ticket.Attachments),
		ticket.DueDate,
		ticket.Resolution,
		ticket.AssignedTo,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.ID,
	).Scan(&ticket.ResolvedAt, &ticket.ClosedAt, &ticket.UpdatedAt)
	return errors.WithStack(notFoundOr(err))
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1 AND is_deleted=FALSE`, id)
}

func (r *ticketRepository) GetByIDIncludingDeleted(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query, id string) (*domain.Ticket, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, id), &ticket); err != nil {
		return nil, errors.WithStack(notFoundOr(err))
	}
	return &ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	filter = filter.Normalize()
	where, args := buildTicketWhere(filter.Scope, filter)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.WithStack(err)
	}

	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY %s %s NULLS LAST, id %s LIMIT %d OFFSET %d`,
		ticketColumns, where, sortColumns[filter.SortBy], direction, direction, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	defer rows.Close()

	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	return tickets, total, nil
}

// Stats computes every aggregate in a single pass using grouping sets.
func (r *ticketRepository) Stats(ctx context.Context, scope domain.TicketScope) (*domain.TicketStats, error) {
	where, args := buildTicketWhere(scope, TicketFilter{})
	query := `
        SELECT GROUPING(status), GROUPING(priority), GROUPING(category),
               COALESCE(status, ''), COALESCE(priority, ''), COALESCE(category, ''), COUNT(*)
        FROM tickets WHERE ` + where + `
        GROUP BY GROUPING SETS ((status), (priority), (category), ())`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	stats := &domain.TicketStats{
		ByStatus:   []domain.GroupCount{},
		ByPriority: []domain.GroupCount{},
		ByCategory: []domain.GroupCount{},
	}
	for rows.Next() {
		var (
			gStatus, gPriority, gCategory int
			status, priority, category    string
			count                         int
		)
		if err := rows.Scan(&gStatus, &gPriority, &gCategory, &status, &priority, &category, &count); err != nil {
			return nil, errors.WithStack(err)
		}
		switch {
		case gStatus == 0:
			stats.ByStatus = append(stats.ByStatus, domain.GroupCount{Key: status, Count: count})
		case gPriority == 0:
			stats.ByPriority = append(stats.ByPriority, domain.GroupCount{Key: priority, Count: count})
		case gCategory == 0:
			stats.ByCategory = append(stats.ByCategory, domain.GroupCount{Key: category, Count: count})
		default:
			stats.Total = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	SortGroupCounts(stats)
	return stats, nil
}

func (r *ticketRepository) Touch(ctx context.Context, id string) error {
	return r.execOne(ctx, `UPDATE tickets SET updated_at=NOW() WHERE id=$1 AND is_deleted=FALSE`, id)
}

func (r *ticketRepository) SoftDelete(ctx context.Context, id string) error {
	return r.execOne(ctx, `UPDATE tickets SET is_deleted=TRUE, updated_at=NOW() WHERE id=$1 AND is_deleted=FALSE`, id)
}

func (r *ticketRepository) execOne(ctx context.Context, query, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return errors.WithStack(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func buildTicketWhere(scope domain.TicketScope, filter TicketFilter) (string, []any) {
	clauses := []string{"is_deleted=FALSE"}
	args := []any{}

	if scope.CreatedBy != "" {
		args = append(args, scope.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if scope.AssignedTo != "" {
		args = append(args, scope.AssignedTo)
		if scope.IncludeUnassigned {
			clauses = append(clauses, fmt.Sprintf("(assigned_to=$%d OR assigned_to IS NULL)", len(args)))
		} else {
			clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
		}
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority=$%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	if filter.Department != nil {
		args = append(args, *filter.Department)
		clauses = append(clauses, fmt.Sprintf("department=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		if !validID(*filter.AssignedTo) {
			clauses = append(clauses, "FALSE")
		} else {
			args = append(args, *filter.AssignedTo)
			clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
		}
	}
	if filter.CreatedBy != nil {
		if !validID(*filter.CreatedBy) {
			clauses = append(clauses, "FALSE")
		} else {
			args = append(args, *filter.CreatedBy)
			clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
		}
	}
	if term := strings.TrimSpace(filter.SearchTerm); term != "" {
		args = append(args, "%"+escapeLike(strings.ToLower(term))+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}
	return strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Category,
		&ticket.Priority,
		&ticket.Status,
		&ticket.Department,
		&ticket.Location,
		&ticket.Tags,
		&ticket.Attachments,
		&ticket.DueDate,
		&ticket.Resolution,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
		&ticket.CreatedBy,
		&ticket.AssignedTo,
		&ticket.IsDeleted,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

// SortGroupCounts orders every aggregate bucket by key.
func SortGroupCounts(stats *domain.TicketStats) {
	for _, groups := range [][]domain.GroupCount{stats.ByStatus, stats.ByPriority, stats.ByCategory} {
		sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	}
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func nonNilAttachments(attachments []domain.Attachment) []domain.Attachment {
	if attachments == nil {
		return []domain.Attachment{}
	}
	return attachments
}
