package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/itdesk-io/itdesk/internal/database"
	"github.com/itdesk-io/itdesk/internal/models"
)

var ticketColumns = []string{
	"t.id", "t.customer_id", "t.agent_id", "t.title", "t.description", "t.status", "t.priority",
	"t.created_at", "t.updated_at", "c.mobile AS customer_mobile",
}

// TicketRepository is the SQL ticket store.
type TicketRepository struct {
	qb *database.QueryBuilder
}

func NewTicketRepository(qb *database.QueryBuilder) *TicketRepository {
	return &TicketRepository{qb: qb}
}

func (r *TicketRepository) Create(ctx context.Context, t *models.Ticket) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.Before(t.CreatedAt) {
		t.UpdatedAt = t.CreatedAt
	}
	if t.Status == "" {
		t.Status = models.StatusOpen
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}

	id, err := r.qb.InsertID(ctx, nil, `INSERT INTO tickets
		(customer_id, agent_id, title, description, status, priority, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.CustomerID, t.AgentID, t.Title, t.Description, string(t.Status), string(t.Priority), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}
	t.ID = id
	return nil
}

func (r *TicketRepository) GetByID(ctx context.Context, id uint) (*models.Ticket, error) {
	var t models.Ticket
	err := r.qb.NewSelect(ticketColumns...).
		From("tickets t").
		Join("users c ON c.id = t.customer_id").
		Where("t.id = ?", id).
		GetContext(ctx, &t)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ticket %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return &t, nil
}

// Update leaves customer_id and created_at untouched whatever the struct carries.
func (r *TicketRepository) Update(ctx context.Context, t *models.Ticket) error {
	res, err := r.qb.ExecContext(ctx, `UPDATE tickets SET
		agent_id = ?, title = ?, description = ?, status = ?, priority = ?, updated_at = ?
		WHERE id = ?`,
		t.AgentID, t.Title, t.Description, string(t.Status), string(t.Priority), t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update ticket: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("ticket %d: %w", t.ID, models.ErrNotFound)
	}
	return nil
}

func (r *TicketRepository) Touch(ctx context.Context, id uint, at time.Time) error {
	_, err := r.qb.ExecContext(ctx, "UPDATE tickets SET updated_at = ? WHERE id = ? AND updated_at < ?", at, id, at)
	if err != nil {
		return fmt.Errorf("failed to touch ticket: %w", err)
	}
	return nil
}

// Assign is a single conditional UPDATE, so of two agents racing for the same ticket
// exactly one matches the agent_id IS NULL predicate.
func (r *TicketRepository) Assign(ctx context.Context, id, agentID uint, at time.Time) (bool, error) {
	res, err := r.qb.ExecContext(ctx, `UPDATE tickets SET
		agent_id = ?,
		status = CASE WHEN status = ? THEN ? ELSE status END,
		updated_at = CASE WHEN updated_at < ? THEN ? ELSE updated_at END
		WHERE id = ? AND agent_id IS NULL`,
		agentID, string(models.StatusOpen), string(models.StatusInProgress), at, at, id)
	if err != nil {
		return false, fmt.Errorf("failed to assign ticket: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to assign ticket: %w", err)
	}
	return n == 1, nil
}

// Delete relies on ON DELETE CASCADE for dependent rows.
func (r *TicketRepository) Delete(ctx context.Context, id uint) error {
	res, err := r.qb.ExecContext(ctx, "DELETE FROM tickets WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete ticket: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("ticket %d: %w", id, models.ErrNotFound)
	}
	return nil
}

func (r *TicketRepository) Query(ctx context.Context, q models.TicketQuery) ([]*models.Ticket, error) {
	sb := r.qb.NewSelect(ticketColumns...).
		From("tickets t").
		Join("users c ON c.id = t.customer_id")
	r.applyScope(sb, q.Scope)
	r.applyFilter(sb, q.Filter, q.Now)

	switch q.Scope.OrderBy {
	case models.OrderUpdatedDesc:
		sb.OrderBy("t.updated_at DESC", "t.id DESC")
	default:
		sb.OrderBy("t.created_at DESC", "t.id DESC")
	}
	if q.Scope.Limit > 0 {
		sb.Limit(q.Scope.Limit)
	}

	var rows []models.Ticket
	if err := sb.SelectContext(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	tickets := make([]*models.Ticket, len(rows))
	for i := range rows {
		tickets[i] = &rows[i]
	}
	return tickets, nil
}

func (r *TicketRepository) applyScope(sb *database.SelectBuilder, s models.TicketScope) {
	if s.CustomerID != nil {
		sb.Where("t.customer_id = ?", *s.CustomerID)
	}
	if s.AgentID != nil {
		sb.Where("t.agent_id = ?", *s.AgentID)
	}
	if s.Unassigned {
		sb.Where("t.agent_id IS NULL")
	}
	if s.Assigned {
		sb.Where("t.agent_id IS NOT NULL")
	}
	if s.Status != "" {
		sb.Where("t.status = ?", string(s.Status))
	}
	if s.ExcludeStatus != "" {
		sb.Where("t.status <> ?", string(s.ExcludeStatus))
	}
}

// applyFilter mirrors the in-memory matcher: case-insensitive substring search over
// title, description, customer mobile and the ticket number.
func (r *TicketRepository) applyFilter(sb *database.SelectBuilder, f models.TicketFilter, now time.Time) {
	if f.Search != "" {
		p := likePattern(f.Search)
		cols := []string{"LOWER(t.title)", "LOWER(t.description)", "LOWER(c.mobile)", r.qb.CastText("t.id")}
		conds := make([]string, len(cols))
		args := make([]interface{}, len(cols))
		for i, col := range cols {
			conds[i] = col + " LIKE ? ESCAPE '!'"
			args[i] = p
		}
		sb.Where("("+strings.Join(conds, " OR ")+")", args...)
	}
	if f.Status != "" {
		sb.Where("t.status = ?", string(f.Status))
	}
	if f.Priority != "" {
		sb.Where("t.priority = ?", string(f.Priority))
	}
	if now.IsZero() {
		now = time.Now()
	}
	if since, ok := f.DateRange.Since(now); ok {
		sb.Where("t.created_at >= ?", since)
	}
}
