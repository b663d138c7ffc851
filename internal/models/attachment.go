package models

import "time"

// Attachment points at a stored file. It belongs to a ticket and optionally to one of
// the ticket's messages.
type Attachment struct {
	ID          uint      `json:"id" db:"id"`
	TicketID    uint      `json:"ticket_id" db:"ticket_id"`
	MessageID   *uint     `json:"message_id,omitempty" db:"message_id"`
	StoragePath string    `json:"storage_path" db:"storage_path"`
	FileName    string    `json:"file_name" db:"file_name"`
	ContentType string    `json:"content_type" db:"content_type"`
	Size        int64     `json:"size" db:"size"`
	Description string    `json:"description,omitempty" db:"description"`
	UploadedBy  uint      `json:"uploaded_by" db:"uploaded_by"`
	UploadedAt  time.Time `json:"uploaded_at" db:"uploaded_at"`
}
