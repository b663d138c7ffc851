package models

import (
	"time"
)

// InternalComment is an agent-only annotation on a ticket. It is never shown to the
// ticket's customer.
type InternalComment struct {
	ID        uint      `json:"id" db:"id"`
	TicketID  uint      `json:"ticket_id" db:"ticket_id"`
	AuthorID  uint      `json:"author_id" db:"author_id"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
