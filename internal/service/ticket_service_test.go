package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itdesk-io/itdesk/internal/models"
	"github.com/itdesk-io/itdesk/internal/render"
	"github.com/itdesk-io/itdesk/internal/repository"
	"github.com/itdesk-io/itdesk/internal/storage"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestTicketLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Customer opens a ticket with a screenshot.
	ticket, outcome, err := f.tickets.CreateTicket(ctx, f.customer,
		models.CreateTicketRequest{Title: "Printer broken", Description: "Paper jam on floor 2", Priority: "high"},
		[]Upload{{Name: "jam.png", Reader: bytes.NewReader(pngHeader)}})
	require.NoError(t, err)
	require.True(t, outcome.Success())
	assert.Equal(t, models.TicketRoute(ticket.ID), outcome.Redirect)
	assert.Equal(t, models.StatusOpen, ticket.Status)
	assert.Equal(t, models.PriorityHigh, ticket.Priority)
	assert.Nil(t, ticket.AgentID)
	last := ticket.UpdatedAt

	dash, denied, err := f.dashboard.Agent(ctx, f.agentA, nil)
	require.NoError(t, err)
	require.Nil(t, denied)
	require.Len(t, dash.Unassigned, 1)
	assert.Equal(t, ticket.ID, dash.Unassigned[0].ID)
	assert.Empty(t, dash.Mine)

	// Agent A claims it.
	f.clock.Advance(time.Minute)
	outcome, err = f.tickets.AssignToSelf(ctx, f.agentA, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FlashSuccess, outcome.Level)
	assert.Equal(t, "Ticket #1 has been assigned to you.", outcome.Message)

	stored := f.reload(t, ticket.ID)
	assert.True(t, stored.AssignedTo(f.agentA.ID))
	assert.Equal(t, models.StatusInProgress, stored.Status)
	assert.True(t, stored.UpdatedAt.After(last))
	last = stored.UpdatedAt

	// Agent B is too late and cannot look at it.
	f.clock.Advance(time.Minute)
	outcome, err = f.tickets.AssignToSelf(ctx, f.agentB, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FlashWarning, outcome.Level)
	assert.Equal(t, "Ticket #1 is already assigned to Alice Agent.", outcome.Message)
	assert.True(t, f.reload(t, ticket.ID).AssignedTo(f.agentA.ID))

	_, outcome, err = f.tickets.TicketDetail(ctx, f.agentB, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, models.RouteAgentDashboard, outcome.Redirect)
	assert.Equal(t, "You can only view tickets assigned to you.", outcome.Message)

	// Agent A leaves an internal note and replies.
	f.clock.Advance(time.Minute)
	_, outcome, err = f.tickets.AddInternalComment(ctx, f.agentA, ticket.ID, "Toner cartridge also low")
	require.NoError(t, err)
	require.True(t, outcome.Success())
	stored = f.reload(t, ticket.ID)
	assert.True(t, stored.UpdatedAt.After(last))
	last = stored.UpdatedAt

	f.clock.Advance(time.Minute)
	_, outcome, err = f.tickets.Reply(ctx, f.agentA, ticket.ID, "Technician is on the way.", nil)
	require.NoError(t, err)
	require.True(t, outcome.Success())
	stored = f.reload(t, ticket.ID)
	assert.True(t, stored.UpdatedAt.After(last))
	last = stored.UpdatedAt

	// The customer sees the reply but not the note.
	detail, outcome, err := f.tickets.TicketDetail(ctx, f.customer, ticket.ID)
	require.NoError(t, err)
	require.Nil(t, outcome)
	require.Len(t, detail.Messages, 1)
	assert.Equal(t, "Alice Agent", detail.Messages[0].SenderName)
	assert.Contains(t, detail.Messages[0].HTML, "Technician is on the way.")
	assert.Empty(t, detail.InternalComments)
	require.Len(t, detail.Attachments, 1)
	assert.Equal(t, "jam.png", detail.Attachments[0].FileName)
	assert.Equal(t, "image/png", detail.Attachments[0].ContentType)
	assert.False(t, detail.CanUpdate)
	assert.False(t, detail.CanComment)
	assert.Equal(t, "Alice Agent", detail.AgentName)

	// The agent sees both.
	detail, outcome, err = f.tickets.TicketDetail(ctx, f.agentA, ticket.ID)
	require.NoError(t, err)
	require.Nil(t, outcome)
	require.Len(t, detail.InternalComments, 1)
	assert.Equal(t, "Toner cartridge also low", detail.InternalComments[0].Content)
	assert.True(t, detail.CanUpdate)
	assert.False(t, detail.CanAssign)
	assert.False(t, detail.CanReassign)

	// The customer cannot change the status; the agent resolves it.
	_, outcome, err = f.tickets.UpdateTicket(ctx, f.customer, ticket.ID, models.UpdateTicketRequest{Status: "RESOLVED"})
	require.NoError(t, err)
	assert.Equal(t, models.FlashError, outcome.Level)
	assert.Equal(t, models.StatusInProgress, f.reload(t, ticket.ID).Status)

	f.clock.Advance(time.Minute)
	_, outcome, err = f.tickets.UpdateTicket(ctx, f.agentA, ticket.ID, models.UpdateTicketRequest{Status: "RESOLVED"})
	require.NoError(t, err)
	assert.Equal(t, "Ticket #1 status updated.", outcome.Message)
	stored = f.reload(t, ticket.ID)
	assert.Equal(t, models.StatusResolved, stored.Status)
	assert.True(t, stored.UpdatedAt.After(last))
	assert.Equal(t, ticket.CreatedAt, stored.CreatedAt)
	assert.Equal(t, f.customer.ID, stored.CustomerID)

	dash, _, err = f.dashboard.Agent(ctx, f.agentA, nil)
	require.NoError(t, err)
	assert.Empty(t, dash.Unassigned)
	assert.Empty(t, dash.Mine)
	require.Len(t, dash.Resolved, 1)
	assert.Equal(t, ticket.ID, dash.Resolved[0].ID)

	dash, _, err = f.dashboard.Agent(ctx, f.agentB, nil)
	require.NoError(t, err)
	assert.Empty(t, dash.Resolved)
}

// Follows the customer/agent/admin walkthrough step by step. Once the admin hands the
// ticket to B, A is no longer its assignee, so A loses access and B writes the internal
// note instead.
func TestPrinterBrokenScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ticket, outcome, err := f.tickets.CreateTicket(ctx, f.customer,
		models.CreateTicketRequest{Title: "Printer broken", Description: "Nothing prints", Priority: "MEDIUM"}, nil)
	require.NoError(t, err)
	require.True(t, outcome.Success())
	assert.Equal(t, models.StatusOpen, ticket.Status)
	assert.Equal(t, models.PriorityMedium, ticket.Priority)
	assert.Nil(t, ticket.AgentID)

	f.clock.Advance(time.Minute)
	outcome, err = f.tickets.AssignToSelf(ctx, f.agentA, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FlashSuccess, outcome.Level)
	stored := f.reload(t, ticket.ID)
	assert.Equal(t, models.StatusInProgress, stored.Status)
	assert.True(t, stored.AssignedTo(f.agentA.ID))

	f.clock.Advance(time.Minute)
	outcome, err = f.tickets.AssignToSelf(ctx, f.agentB, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FlashWarning, outcome.Level)
	assert.True(t, f.reload(t, ticket.ID).AssignedTo(f.agentA.ID))

	f.clock.Advance(time.Minute)
	reassigned, outcome, err := f.tickets.Reassign(ctx, f.admin, ticket.ID, f.agentB.ID)
	require.NoError(t, err)
	require.True(t, outcome.Success())
	assert.True(t, reassigned.AssignedTo(f.agentB.ID))
	stored = f.reload(t, ticket.ID)
	assert.True(t, stored.AssignedTo(f.agentB.ID))
	assert.Equal(t, models.StatusInProgress, stored.Status)
	last := stored.UpdatedAt

	f.clock.Advance(time.Minute)
	_, outcome, err = f.tickets.Reply(ctx, f.customer, ticket.ID, "It is still jammed.", nil)
	require.NoError(t, err)
	require.True(t, outcome.Success())
	stored = f.reload(t, ticket.ID)
	assert.True(t, stored.UpdatedAt.After(last))
	last = stored.UpdatedAt

	for _, viewer := range []*models.User{f.customer, f.agentB, f.admin} {
		detail, denied, err := f.tickets.TicketDetail(ctx, viewer, ticket.ID)
		require.NoError(t, err)
		require.Nil(t, denied, viewer.DisplayName())
		require.Len(t, detail.Messages, 1, viewer.DisplayName())
		assert.Contains(t, detail.Messages[0].HTML, "It is still jammed.")
	}

	_, denied, err := f.tickets.TicketDetail(ctx, f.agentA, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, denied, "A stopped being the assignee at the reassignment")
	assert.Equal(t, models.RouteAgentDashboard, denied.Redirect)
	assert.Equal(t, "You can only view tickets assigned to you.", denied.Message)

	f.clock.Advance(time.Minute)
	_, outcome, err = f.tickets.AddInternalComment(ctx, f.agentA, ticket.ID, "Check the fuser")
	require.NoError(t, err)
	assert.Equal(t, models.FlashError, outcome.Level)
	assert.Equal(t, last, f.reload(t, ticket.ID).UpdatedAt, "a refused note does not touch the ticket")

	_, outcome, err = f.tickets.AddInternalComment(ctx, f.agentB, ticket.ID, "Check the fuser")
	require.NoError(t, err)
	require.True(t, outcome.Success())
	assert.True(t, f.reload(t, ticket.ID).UpdatedAt.After(last))

	for _, viewer := range []*models.User{f.agentB, f.admin} {
		detail, denied, err := f.tickets.TicketDetail(ctx, viewer, ticket.ID)
		require.NoError(t, err)
		require.Nil(t, denied)
		require.Len(t, detail.InternalComments, 1, viewer.DisplayName())
		assert.Equal(t, "Check the fuser", detail.InternalComments[0].Content)
	}
	detail, denied, err := f.tickets.TicketDetail(ctx, f.customer, ticket.ID)
	require.NoError(t, err)
	require.Nil(t, denied)
	assert.Empty(t, detail.InternalComments)
	assert.Equal(t, f.customer.ID, f.reload(t, ticket.ID).CustomerID)
}

// gatedTickets holds the first two loads until both have happened, so two agents read
// the ticket as unassigned before either claims it.
type gatedTickets struct {
	repository.ITicketRepository
	mu       sync.Mutex
	arrivals int
	release  chan struct{}
}

func (g *gatedTickets) GetByID(ctx context.Context, id uint) (*models.Ticket, error) {
	t, err := g.ITicketRepository.GetByID(ctx, id)
	g.mu.Lock()
	g.arrivals++
	n := g.arrivals
	if n == 2 {
		close(g.release)
	}
	g.mu.Unlock()
	if n <= 2 {
		<-g.release
	}
	return t, err
}

func TestAssignToSelf_ConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.createTicket(t, "Shared drive offline")

	repos := *f.repos
	repos.Tickets = &gatedTickets{ITicketRepository: f.repos.Tickets, release: make(chan struct{})}
	svc := NewTicketService(&repos, f.policy, f.files, render.NewMarkdown()).WithClock(f.clock.Now)

	agents := []*models.User{f.agentA, f.agentB}
	outcomes := make([]*models.Outcome, len(agents))
	var wg sync.WaitGroup
	for i, agent := range agents {
		wg.Add(1)
		go func(i int, agent *models.User) {
			defer wg.Done()
			out, err := svc.AssignToSelf(ctx, agent, ticket.ID)
			assert.NoError(t, err)
			outcomes[i] = out
		}(i, agent)
	}
	wg.Wait()

	require.NotNil(t, outcomes[0])
	require.NotNil(t, outcomes[1])
	winner, loser := 0, 1
	if outcomes[1].Level == models.FlashSuccess {
		winner, loser = 1, 0
	}
	assert.Equal(t, models.FlashSuccess, outcomes[winner].Level)
	assert.Equal(t, models.FlashWarning, outcomes[loser].Level)
	assert.Equal(t, "Ticket #1 is already assigned to "+agents[winner].DisplayName()+".", outcomes[loser].Message)

	stored := f.reload(t, ticket.ID)
	assert.True(t, stored.AssignedTo(agents[winner].ID))
	assert.Equal(t, models.StatusInProgress, stored.Status)
}

func TestAssignToSelf_AlreadyMine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.createTicket(t, "VPN down")

	_, err := f.tickets.AssignToSelf(ctx, f.agentA, ticket.ID)
	require.NoError(t, err)
	before := f.reload(t, ticket.ID)

	f.clock.Advance(time.Hour)
	outcome, err := f.tickets.AssignToSelf(ctx, f.agentA, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FlashWarning, outcome.Level)
	assert.Equal(t, "Ticket #1 is already assigned to you.", outcome.Message)
	assert.Equal(t, before.UpdatedAt, f.reload(t, ticket.ID).UpdatedAt)
}

func TestAssignToSelf_KeepsNonOpenStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.createTicket(t, "Laptop slow")

	_, _, err := f.tickets.AdminUpdateTicket(ctx, f.admin, ticket.ID, models.AdminTicketRequest{Status: ptr("CLOSED")})
	require.NoError(t, err)

	_, err = f.tickets.AssignToSelf(ctx, f.agentB, ticket.ID)
	require.NoError(t, err)
	stored := f.reload(t, ticket.ID)
	assert.Equal(t, models.StatusClosed, stored.Status)
	assert.True(t, stored.AssignedTo(f.agentB.ID))
}

func TestAssignToSelf_CustomersDenied(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "Mouse")

	outcome, err := f.tickets.AssignToSelf(context.Background(), f.customer, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FlashError, outcome.Level)
	assert.Equal(t, "Access Denied. Only agents can assign tickets.", outcome.Message)
	assert.Nil(t, f.reload(t, ticket.ID).AgentID)
}

func TestCreateTicket(t *testing.T) {
	ctx := context.Background()

	t.Run("agents are sent to their dashboard", func(t *testing.T) {
		f := newFixture(t)
		ticket, outcome, err := f.tickets.CreateTicket(ctx, f.agentA, models.CreateTicketRequest{Title: "x", Description: "y"}, nil)
		require.NoError(t, err)
		assert.Nil(t, ticket)
		assert.Equal(t, models.RouteAgentDashboard, outcome.Redirect)
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.tickets.CreateTicket(ctx, f.customer, models.CreateTicketRequest{Priority: "whenever"}, nil)
		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "title")
		assert.Contains(t, verr.Fields, "description")
		assert.Contains(t, verr.Fields, "priority")
	})

	t.Run("rejected upload creates nothing", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.tickets.CreateTicket(ctx, f.customer,
			models.CreateTicketRequest{Title: "Need help", Description: "See file"},
			[]Upload{
				{Name: "ok.png", Reader: bytes.NewReader(pngHeader)},
				{Name: "setup.exe", Reader: bytes.NewReader([]byte("MZ"))},
			})
		require.Error(t, err)
		assert.True(t, errors.Is(err, storage.ErrFileTypeNotAllowed))

		tickets, err := f.repos.Tickets.Query(ctx, models.TicketQuery{})
		require.NoError(t, err)
		assert.Empty(t, tickets)
	})
}

func TestViewTicket(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.createTicket(t, "Email bounce")
	other := f.seedUser(t, "0711000002", "Olga", "Other", models.GroupCustomers)
	nobody := f.seedUser(t, "0799000001", "No", "Groups")

	tests := []struct {
		name     string
		user     *models.User
		allowed  bool
		redirect string
	}{
		{"owner", f.customer, true, ""},
		{"other customer", other, false, models.RouteCustomerDashboard},
		{"unassigned agent", f.agentA, false, models.RouteAgentDashboard},
		{"admin", f.admin, true, ""},
		{"no groups", nobody, false, models.RouteLogin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detail, outcome, err := f.tickets.TicketDetail(ctx, tt.user, ticket.ID)
			require.NoError(t, err)
			if tt.allowed {
				require.Nil(t, outcome)
				assert.Equal(t, ticket.ID, detail.Ticket.ID)
				return
			}
			require.NotNil(t, outcome)
			assert.Equal(t, tt.redirect, outcome.Redirect)
			assert.Nil(t, detail)
		})
	}

	t.Run("missing ticket", func(t *testing.T) {
		_, _, err := f.tickets.TicketDetail(ctx, f.admin, 999)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("outsider cannot reply", func(t *testing.T) {
		msg, outcome, err := f.tickets.Reply(ctx, other, ticket.ID, "me too", nil)
		require.NoError(t, err)
		assert.Nil(t, msg)
		assert.Equal(t, models.FlashError, outcome.Level)
	})
}

func TestInternalComment_CustomersDenied(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.createTicket(t, "Monitor flicker")

	_, outcome, err := f.tickets.AddInternalComment(ctx, f.customer, ticket.ID, "let me see")
	require.NoError(t, err)
	assert.Equal(t, models.FlashError, outcome.Level)

	comments, err := f.repos.Comments.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestUpdatedAtNeverDecreases(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.createTicket(t, "Clock skew")
	_, err := f.tickets.AssignToSelf(ctx, f.agentA, ticket.ID)
	require.NoError(t, err)
	high := f.reload(t, ticket.ID).UpdatedAt

	f.clock.Advance(-time.Hour)
	_, _, err = f.tickets.Reply(ctx, f.customer, ticket.ID, "any news?", nil)
	require.NoError(t, err)
	assert.Equal(t, high, f.reload(t, ticket.ID).UpdatedAt)

	_, _, err = f.tickets.UpdateTicket(ctx, f.agentA, ticket.ID, models.UpdateTicketRequest{Priority: "URGENT"})
	require.NoError(t, err)
	stored := f.reload(t, ticket.ID)
	assert.Equal(t, high, stored.UpdatedAt)
	assert.Equal(t, models.PriorityUrgent, stored.Priority)
}

func TestReplyWithAttachment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.createTicket(t, "Printer queue")

	msg, outcome, err := f.tickets.Reply(ctx, f.customer, ticket.ID, "", &Upload{Name: "queue.png", Reader: bytes.NewReader(pngHeader)})
	require.NoError(t, err)
	require.True(t, outcome.Success())
	require.NotNil(t, msg.Attachment)

	att, rc, outcome, err := f.tickets.OpenAttachment(ctx, f.customer, msg.Attachment.ID)
	require.NoError(t, err)
	require.Nil(t, outcome)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, body)
	assert.Equal(t, "queue.png", att.FileName)

	_, _, outcome, err = f.tickets.OpenAttachment(ctx, f.agentB, msg.Attachment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FlashError, outcome.Level)

	detail, _, err := f.tickets.TicketDetail(ctx, f.customer, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Attachments)
	require.Len(t, detail.Messages, 1)
	require.NotNil(t, detail.Messages[0].Attachment)
}

func TestReassign(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.createTicket(t, "Server room hot")
	_, err := f.tickets.AssignToSelf(ctx, f.agentA, ticket.ID)
	require.NoError(t, err)

	_, outcome, err := f.tickets.Reassign(ctx, f.agentA, ticket.ID, f.agentB.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FlashError, outcome.Level)
	assert.True(t, f.reload(t, ticket.ID).AssignedTo(f.agentA.ID))

	_, _, err = f.tickets.Reassign(ctx, f.admin, ticket.ID, f.customer.ID)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "agent")

	_, outcome, err = f.tickets.Reassign(ctx, f.admin, ticket.ID, f.agentB.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ticket #1 reassigned to Bob Agent.", outcome.Message)
	assert.True(t, f.reload(t, ticket.ID).AssignedTo(f.agentB.ID))

	detail, _, err := f.tickets.TicketDetail(ctx, f.admin, ticket.ID)
	require.NoError(t, err)
	assert.True(t, detail.CanReassign)
	assert.Len(t, detail.Agents, 3)
}

func TestAdminTickets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("create", func(t *testing.T) {
		ticket, outcome, err := f.tickets.AdminCreateTicket(ctx, f.admin, models.AdminTicketRequest{
			CustomerID:  ptr(f.customer.ID),
			AgentID:     ptr(f.agentA.ID),
			Title:       ptr("Phone setup"),
			Description: ptr("New starter on Monday"),
			Priority:    ptr("LOW"),
		})
		require.NoError(t, err)
		require.True(t, outcome.Success())
		assert.True(t, ticket.AssignedTo(f.agentA.ID))
		assert.Equal(t, models.PriorityLow, ticket.Priority)
	})

	t.Run("timestamps are read-only on create", func(t *testing.T) {
		_, _, err := f.tickets.AdminCreateTicket(ctx, f.admin, models.AdminTicketRequest{
			CustomerID: ptr(f.customer.ID), Title: ptr("t"), Description: ptr("d"), CreatedAt: ptr("2020-01-01"),
		})
		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "This field is read-only.", verr.Fields["created_at"])
	})

	t.Run("customer is read-only on edit", func(t *testing.T) {
		ticket := f.createTicket(t, "Keyboard")
		_, _, err := f.tickets.AdminUpdateTicket(ctx, f.admin, ticket.ID, models.AdminTicketRequest{CustomerID: ptr(f.agentA.ID)})
		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "This field is read-only.", verr.Fields["customer"])
		assert.Equal(t, f.customer.ID, f.reload(t, ticket.ID).CustomerID)
	})

	t.Run("agents are denied", func(t *testing.T) {
		_, outcome, err := f.tickets.AdminCreateTicket(ctx, f.agentA, models.AdminTicketRequest{})
		require.NoError(t, err)
		assert.Equal(t, "Admin access required.", outcome.Message)
	})

	t.Run("delete cascades", func(t *testing.T) {
		ticket, _, err := f.tickets.CreateTicket(ctx, f.customer,
			models.CreateTicketRequest{Title: "Old laptop", Description: "Recycle"},
			[]Upload{{Name: "asset.png", Reader: bytes.NewReader(pngHeader)}})
		require.NoError(t, err)
		_, _, err = f.tickets.Reply(ctx, f.customer, ticket.ID, "bump", nil)
		require.NoError(t, err)
		atts, err := f.repos.Attachments.ListByTicket(ctx, ticket.ID)
		require.NoError(t, err)
		require.Len(t, atts, 1)

		outcome, err := f.tickets.DeleteTicket(ctx, f.admin, ticket.ID)
		require.NoError(t, err)
		require.True(t, outcome.Success())

		_, err = f.repos.Tickets.GetByID(ctx, ticket.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)
		msgs, err := f.repos.Messages.ListByTicket(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Empty(t, msgs)
		_, err = f.files.Open(ctx, atts[0].StoragePath)
		assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	})
}
