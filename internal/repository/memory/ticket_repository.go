package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/itdesk-io/itdesk/internal/models"
	"github.com/itdesk-io/itdesk/internal/repository"
)

// TicketRepository provides an in-memory implementation of repository.ITicketRepository.
type TicketRepository struct {
	s *Store
}

var _ repository.ITicketRepository = (*TicketRepository)(nil)

func (r *TicketRepository) Create(_ context.Context, t *models.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[t.CustomerID]; !ok {
		return fmt.Errorf("customer %d: %w", t.CustomerID, models.ErrNotFound)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = nowUTC()
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
	t.ID = r.s.nextTicketID
	r.s.nextTicketID++
	t.CustomerMobile = r.s.users[t.CustomerID].Mobile
	r.s.tickets[t.ID] = t.Clone()
	return nil
}

func (r *TicketRepository) GetByID(_ context.Context, id uint) (*models.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %d: %w", id, models.ErrNotFound)
	}
	return r.withCustomer(t), nil
}

// withCustomer copies t and fills the joined customer mobile. Caller holds the lock.
func (r *TicketRepository) withCustomer(t *models.Ticket) *models.Ticket {
	cp := t.Clone()
	if u, ok := r.s.users[t.CustomerID]; ok {
		cp.CustomerMobile = u.Mobile
	}
	return cp
}

func (r *TicketRepository) Update(_ context.Context, t *models.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.tickets[t.ID]
	if !ok {
		return fmt.Errorf("ticket %d: %w", t.ID, models.ErrNotFound)
	}
	next := t.Clone()
	next.CustomerID = stored.CustomerID
	next.CreatedAt = stored.CreatedAt
	r.s.tickets[t.ID] = next
	return nil
}

func (r *TicketRepository) Touch(_ context.Context, id uint, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if t, ok := r.s.tickets[id]; ok {
		t.Touch(at)
	}
	return nil
}

func (r *TicketRepository) Assign(_ context.Context, id, agentID uint, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tickets[id]
	if !ok {
		return false, fmt.Errorf("ticket %d: %w", id, models.ErrNotFound)
	}
	if t.IsAssigned() {
		return false, nil
	}
	t.AgentID = &agentID
	if t.Status == models.StatusOpen {
		t.Status = models.StatusInProgress
	}
	t.Touch(at)
	return true, nil
}

// Delete removes the ticket and everything it owns.
func (r *TicketRepository) Delete(_ context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tickets[id]; !ok {
		return fmt.Errorf("ticket %d: %w", id, models.ErrNotFound)
	}
	delete(r.s.tickets, id)
	for mid, m := range r.s.messages {
		if m.TicketID == id {
			delete(r.s.messages, mid)
		}
	}
	for cid, c := range r.s.comments {
		if c.TicketID == id {
			delete(r.s.comments, cid)
		}
	}
	for aid, a := range r.s.attachments {
		if a.TicketID == id {
			delete(r.s.attachments, aid)
		}
	}
	return nil
}

func (r *TicketRepository) Query(_ context.Context, q models.TicketQuery) ([]*models.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	now := q.Now
	if now.IsZero() {
		now = time.Now()
	}
	since, hasSince := q.Filter.DateRange.Since(now)
	needle := fold(q.Filter.Search)

	var out []*models.Ticket
	for _, stored := range r.s.tickets {
		t := r.withCustomer(stored)
		if !matchScope(t, q.Scope) {
			continue
		}
		if needle != "" && !containsFold(t.Title, needle) && !containsFold(t.Description, needle) &&
			!containsFold(t.CustomerMobile, needle) && !containsFold(uintString(t.ID), needle) {
			continue
		}
		if q.Filter.Status != "" && t.Status != q.Filter.Status {
			continue
		}
		if q.Filter.Priority != "" && t.Priority != q.Filter.Priority {
			continue
		}
		if hasSince && t.CreatedAt.Before(since) {
			continue
		}
		out = append(out, t)
	}

	byUpdated := q.Scope.OrderBy == models.OrderUpdatedDesc
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].CreatedAt, out[j].CreatedAt
		if byUpdated {
			a, b = out[i].UpdatedAt, out[j].UpdatedAt
		}
		if !a.Equal(b) {
			return a.After(b)
		}
		return out[i].ID > out[j].ID
	})
	if q.Scope.Limit > 0 && len(out) > q.Scope.Limit {
		out = out[:q.Scope.Limit]
	}
	return out, nil
}

func matchScope(t *models.Ticket, s models.TicketScope) bool {
	if s.CustomerID != nil && t.CustomerID != *s.CustomerID {
		return false
	}
	if s.AgentID != nil && !t.AssignedTo(*s.AgentID) {
		return false
	}
	if s.Unassigned && t.IsAssigned() {
		return false
	}
	if s.Assigned && !t.IsAssigned() {
		return false
	}
	if s.Status != "" && t.Status != s.Status {
		return false
	}
	if s.ExcludeStatus != "" && t.Status == s.ExcludeStatus {
		return false
	}
	return true
}
