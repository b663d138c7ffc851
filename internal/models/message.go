package models

import "time"

// Message is a reply on a ticket, visible to everyone who may view the ticket.
type Message struct {
	ID         uint        `json:"id" db:"id"`
	TicketID   uint        `json:"ticket_id" db:"ticket_id"`
	SenderID   uint        `json:"sender_id" db:"sender_id"`
	Content    string      `json:"content" db:"content"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
	Attachment *Attachment `json:"attachment,omitempty" db:"-"`
}
