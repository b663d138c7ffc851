package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/itdesk-io/itdesk/internal/models"
	"github.com/itdesk-io/itdesk/internal/repository"
)

type MessageRepository struct {
	s *Store
}

var _ repository.IMessageRepository = (*MessageRepository)(nil)

func (r *MessageRepository) Create(_ context.Context, m *models.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tickets[m.TicketID]; !ok {
		return fmt.Errorf("ticket %d: %w", m.TicketID, models.ErrNotFound)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = nowUTC()
	}
	m.ID = r.s.nextMessageID
	r.s.nextMessageID++
	cp := *m
	cp.Attachment = nil
	r.s.messages[m.ID] = &cp
	return nil
}

func (r *MessageRepository) ListByTicket(_ context.Context, ticketID uint) ([]*models.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*models.Message{}
	for _, m := range r.s.messages {
		if m.TicketID == ticketID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type InternalCommentRepository struct {
	s *Store
}

var _ repository.IInternalCommentRepository = (*InternalCommentRepository)(nil)

func (r *InternalCommentRepository) Create(_ context.Context, c *models.InternalComment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tickets[c.TicketID]; !ok {
		return fmt.Errorf("ticket %d: %w", c.TicketID, models.ErrNotFound)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = nowUTC()
	}
	c.ID = r.s.nextCommentID
	r.s.nextCommentID++
	cp := *c
	r.s.comments[c.ID] = &cp
	return nil
}

func (r *InternalCommentRepository) ListByTicket(_ context.Context, ticketID uint) ([]*models.InternalComment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*models.InternalComment{}
	for _, c := range r.s.comments {
		if c.TicketID == ticketID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type AttachmentRepository struct {
	s *Store
}

var _ repository.IAttachmentRepository = (*AttachmentRepository)(nil)

func (r *AttachmentRepository) Create(_ context.Context, a *models.Attachment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tickets[a.TicketID]; !ok {
		return fmt.Errorf("ticket %d: %w", a.TicketID, models.ErrNotFound)
	}
	if a.UploadedAt.IsZero() {
		a.UploadedAt = nowUTC()
	}
	a.ID = r.s.nextAttachmentID
	r.s.nextAttachmentID++
	cp := *a
	r.s.attachments[a.ID] = &cp
	return nil
}

func (r *AttachmentRepository) GetByID(_ context.Context, id uint) (*models.Attachment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.attachments[id]
	if !ok {
		return nil, fmt.Errorf("attachment %d: %w", id, models.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (r *AttachmentRepository) ListByTicket(_ context.Context, ticketID uint) ([]*models.Attachment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*models.Attachment{}
	for _, a := range r.s.attachments {
		if a.TicketID == ticketID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
