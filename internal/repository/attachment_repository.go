package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/itdesk-io/itdesk/internal/database"
	"github.com/itdesk-io/itdesk/internal/models"
)

var attachmentColumns = []string{
	"id", "ticket_id", "message_id", "storage_path", "file_name", "content_type", "size",
	"description", "uploaded_by", "uploaded_at",
}

type AttachmentRepository struct {
	qb *database.QueryBuilder
}

func NewAttachmentRepository(qb *database.QueryBuilder) *AttachmentRepository {
	return &AttachmentRepository{qb: qb}
}

func (r *AttachmentRepository) Create(ctx context.Context, a *models.Attachment) error {
	if a.UploadedAt.IsZero() {
		a.UploadedAt = time.Now().UTC()
	}
	id, err := r.qb.InsertID(ctx, nil, `INSERT INTO attachments
		(ticket_id, message_id, storage_path, file_name, content_type, size, description, uploaded_by, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.TicketID, a.MessageID, a.StoragePath, a.FileName, a.ContentType, a.Size, a.Description, a.UploadedBy, a.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to create attachment: %w", err)
	}
	a.ID = id
	return nil
}

func (r *AttachmentRepository) GetByID(ctx context.Context, id uint) (*models.Attachment, error) {
	var a models.Attachment
	err := r.qb.NewSelect(attachmentColumns...).From("attachments").Where("id = ?", id).GetContext(ctx, &a)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("attachment %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	return &a, nil
}

func (r *AttachmentRepository) ListByTicket(ctx context.Context, ticketID uint) ([]*models.Attachment, error) {
	var rows []models.Attachment
	err := r.qb.NewSelect(attachmentColumns...).
		From("attachments").
		Where("ticket_id = ?", ticketID).
		OrderBy("uploaded_at ASC", "id ASC").
		SelectContext(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	out := make([]*models.Attachment, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

// NewSQLRepositories wires every SQL store over one connection.
func NewSQLRepositories(qb *database.QueryBuilder) *Repositories {
	return &Repositories{
		Users:       NewUserRepository(qb),
		Tickets:     NewTicketRepository(qb),
		Messages:    NewMessageRepository(qb),
		Comments:    NewInternalCommentRepository(qb),
		Attachments: NewAttachmentRepository(qb),
	}
}
