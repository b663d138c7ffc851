package models

import (
	"fmt"
	"strings"
	"time"
)

type TicketStatus string

const (
	StatusOpen       TicketStatus = "OPEN"
	StatusInProgress TicketStatus = "IN_PROGRESS"
	StatusResolved   TicketStatus = "RESOLVED"
	StatusClosed     TicketStatus = "CLOSED"
)

var ticketStatuses = []TicketStatus{StatusOpen, StatusInProgress, StatusResolved, StatusClosed}

// ParseTicketStatus accepts the stored value ("IN_PROGRESS") case-insensitively.
func ParseTicketStatus(s string) (TicketStatus, error) {
	v := TicketStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range ticketStatuses {
		if st == v {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid ticket status %q", s)
}

// Label is the human readable form of the status.
func (s TicketStatus) Label() string {
	switch s {
	case StatusOpen:
		return "Open"
	case StatusInProgress:
		return "In Progress"
	case StatusResolved:
		return "Resolved"
	case StatusClosed:
		return "Closed"
	}
	return string(s)
}

type TicketPriority string

const (
	PriorityLow    TicketPriority = "LOW"
	PriorityMedium TicketPriority = "MEDIUM"
	PriorityHigh   TicketPriority = "HIGH"
	PriorityUrgent TicketPriority = "URGENT"
)

var ticketPriorities = []TicketPriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

func ParseTicketPriority(s string) (TicketPriority, error) {
	v := TicketPriority(strings.ToUpper(strings.TrimSpace(s)))
	for _, p := range ticketPriorities {
		if p == v {
			return p, nil
		}
	}
	return "", fmt.Errorf("invalid ticket priority %q", s)
}

// Ticket is a customer-reported issue. CustomerID and CreatedAt never change after creation.
type Ticket struct {
	ID          uint           `json:"id" db:"id"`
	CustomerID  uint           `json:"customer_id" db:"customer_id"`
	AgentID     *uint          `json:"agent_id,omitempty" db:"agent_id"`
	Title       string         `json:"title" db:"title"`
	Description string         `json:"description" db:"description"`
	Status      TicketStatus   `json:"status" db:"status"`
	Priority    TicketPriority `json:"priority" db:"priority"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`

	// Populated by list queries for search and display.
	CustomerMobile string `json:"customer_mobile,omitempty" db:"customer_mobile"`
}

// IsAssigned reports whether an agent has claimed the ticket.
func (t *Ticket) IsAssigned() bool {
	return t.AgentID != nil
}

// AssignedTo reports whether userID is the ticket's agent.
func (t *Ticket) AssignedTo(userID uint) bool {
	return t.AgentID != nil && *t.AgentID == userID
}

// Touch bumps UpdatedAt without ever moving it backwards.
func (t *Ticket) Touch(now time.Time) {
	if now.After(t.UpdatedAt) {
		t.UpdatedAt = now
	}
}

func (t *Ticket) String() string {
	return fmt.Sprintf("Ticket #%d - %s", t.ID, t.Title)
}

func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	cp := *t
	if t.AgentID != nil {
		id := *t.AgentID
		cp.AgentID = &id
	}
	return &cp
}

// Status and priority choices accept the stored value or its lower-case form.
type CreateTicketRequest struct {
	Title       string `form:"title" json:"title" binding:"required,max=200"`
	Description string `form:"description" json:"description" binding:"required"`
	Priority    string `form:"priority" json:"priority" binding:"omitempty,oneof=LOW MEDIUM HIGH URGENT low medium high urgent"`
}

type UpdateTicketRequest struct {
	Status   string `form:"status" json:"status" binding:"omitempty,oneof=OPEN IN_PROGRESS RESOLVED CLOSED open in_progress resolved closed"`
	Priority string `form:"priority" json:"priority" binding:"omitempty,oneof=LOW MEDIUM HIGH URGENT low medium high urgent"`
}

// AdminTicketRequest is the admin create/edit form. Nil fields were not submitted.
type AdminTicketRequest struct {
	CustomerID  *uint   `json:"customer"`
	AgentID     *uint   `json:"agent"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
	CreatedAt   *string `json:"created_at"`
	UpdatedAt   *string `json:"updated_at"`
}

// Fields names the submitted form fields.
func (r *AdminTicketRequest) Fields() []string {
	var out []string
	add := func(name string, set bool) {
		if set {
			out = append(out, name)
		}
	}
	add("customer", r.CustomerID != nil)
	add("agent", r.AgentID != nil)
	add("title", r.Title != nil)
	add("description", r.Description != nil)
	add("status", r.Status != nil)
	add("priority", r.Priority != nil)
	add("created_at", r.CreatedAt != nil)
	add("updated_at", r.UpdatedAt != nil)
	return out
}
