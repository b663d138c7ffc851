package repository

import (
	"context"
	"time"

	"github.com/itdesk-io/itdesk/internal/models"
)

// IUserRepository defines the identity store. Lookups return models.ErrNotFound
// (possibly wrapped) when nothing matches; writes that collide with an existing mobile
// or email return a *models.ConflictError.
type IUserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByMobile(ctx context.Context, mobile string) (*models.User, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// GetByMobileOrEmail tries the mobile number first, then the email.
	GetByMobileOrEmail(ctx context.Context, identifier string) (*models.User, error)
	// Update writes profile fields, flags and group memberships.
	Update(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id uint, at time.Time) error
	List(ctx context.Context, opts UserListOptions) ([]*models.User, error)
}

// UserListOptions filters the admin user list.
type UserListOptions struct {
	Search     string
	Group      models.Group
	ActiveOnly bool
	Limit      int
	Offset     int
}

// ITicketRepository defines the ticket store.
type ITicketRepository interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	GetByID(ctx context.Context, id uint) (*models.Ticket, error)
	// Update writes every mutable column. CustomerID and CreatedAt are never written.
	Update(ctx context.Context, ticket *models.Ticket) error
	// Touch moves updated_at forward to at, never backwards.
	Touch(ctx context.Context, id uint, at time.Time) error
	// Assign sets the agent only while the ticket has none, moving an open ticket to
	// in progress. It reports false when another agent got there first.
	Assign(ctx context.Context, id, agentID uint, at time.Time) (bool, error)
	// Delete removes the ticket with its messages, internal comments and attachments.
	Delete(ctx context.Context, id uint) error
	Query(ctx context.Context, q models.TicketQuery) ([]*models.Ticket, error)
}

// IMessageRepository stores ticket replies, oldest first.
type IMessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	ListByTicket(ctx context.Context, ticketID uint) ([]*models.Message, error)
}

// IInternalCommentRepository stores agent-only comments, oldest first.
type IInternalCommentRepository interface {
	Create(ctx context.Context, comment *models.InternalComment) error
	ListByTicket(ctx context.Context, ticketID uint) ([]*models.InternalComment, error)
}

// IAttachmentRepository stores file metadata; the bytes live in a storage backend.
type IAttachmentRepository interface {
	Create(ctx context.Context, att *models.Attachment) error
	GetByID(ctx context.Context, id uint) (*models.Attachment, error)
	ListByTicket(ctx context.Context, ticketID uint) ([]*models.Attachment, error)
}

// Repositories bundles one implementation of every store.
type Repositories struct {
	Users       IUserRepository
	Tickets     ITicketRepository
	Messages    IMessageRepository
	Comments    IInternalCommentRepository
	Attachments IAttachmentRepository
}
