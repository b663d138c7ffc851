package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/itdesk-io/itdesk/internal/database"
	"github.com/itdesk-io/itdesk/internal/models"
)

type MessageRepository struct {
	qb *database.QueryBuilder
}

func NewMessageRepository(qb *database.QueryBuilder) *MessageRepository {
	return &MessageRepository{qb: qb}
}

func (r *MessageRepository) Create(ctx context.Context, m *models.Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	id, err := r.qb.InsertID(ctx, nil,
		"INSERT INTO messages (ticket_id, sender_id, content, created_at) VALUES (?, ?, ?, ?)",
		m.TicketID, m.SenderID, m.Content, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	m.ID = id
	return nil
}

func (r *MessageRepository) ListByTicket(ctx context.Context, ticketID uint) ([]*models.Message, error) {
	var rows []models.Message
	err := r.qb.NewSelect("id", "ticket_id", "sender_id", "content", "created_at").
		From("messages").
		Where("ticket_id = ?", ticketID).
		OrderBy("created_at ASC", "id ASC").
		SelectContext(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	out := make([]*models.Message, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

type InternalCommentRepository struct {
	qb *database.QueryBuilder
}

func NewInternalCommentRepository(qb *database.QueryBuilder) *InternalCommentRepository {
	return &InternalCommentRepository{qb: qb}
}

func (r *InternalCommentRepository) Create(ctx context.Context, c *models.InternalComment) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	id, err := r.qb.InsertID(ctx, nil,
		"INSERT INTO internal_comments (ticket_id, author_id, content, created_at) VALUES (?, ?, ?, ?)",
		c.TicketID, c.AuthorID, c.Content, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create internal comment: %w", err)
	}
	c.ID = id
	return nil
}

func (r *InternalCommentRepository) ListByTicket(ctx context.Context, ticketID uint) ([]*models.InternalComment, error) {
	var rows []models.InternalComment
	err := r.qb.NewSelect("id", "ticket_id", "author_id", "content", "created_at").
		From("internal_comments").
		Where("ticket_id = ?", ticketID).
		OrderBy("created_at ASC", "id ASC").
		SelectContext(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list internal comments: %w", err)
	}
	out := make([]*models.InternalComment, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}
