package service

import (
	"context"
	"net/url"
	"time"

	"github.com/xeonx/timeago"

	"github.com/itdesk-io/itdesk/internal/auth"
	"github.com/itdesk-io/itdesk/internal/models"
	"github.com/itdesk-io/itdesk/internal/repository"
)

// Values of the agent dashboard "assigned" parameter.
const (
	AssignedUnassigned = "unassigned"
	AssignedToMe       = "assigned_to_me"
	AssignedAll        = "all_assigned"
)

// ResolvedBucketSize caps the recently resolved list on the agent dashboard.
const ResolvedBucketSize = 10

// TicketRow is a dashboard line.
type TicketRow struct {
	*models.Ticket
	StatusLabel string `json:"status_label"`
	UpdatedAgo  string `json:"updated_ago"`
}

type CustomerDashboard struct {
	Filter  models.TicketFilter `json:"filter"`
	Tickets []TicketRow         `json:"tickets"`
}

type AgentDashboard struct {
	Filter     models.TicketFilter `json:"filter"`
	Assigned   string              `json:"assigned"`
	IsAdmin    bool                `json:"is_admin"`
	Unassigned []TicketRow         `json:"unassigned_tickets"`
	Mine       []TicketRow         `json:"assigned_tickets"`
	Resolved   []TicketRow         `json:"resolved_tickets"`
}

// DashboardService builds the role-scoped ticket lists.
type DashboardService struct {
	tickets repository.ITicketRepository
	policy  *auth.Policy
	now     func() time.Time
}

func NewDashboardService(tickets repository.ITicketRepository, policy *auth.Policy) *DashboardService {
	return &DashboardService{tickets: tickets, policy: policy, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (s *DashboardService) WithClock(now func() time.Time) *DashboardService {
	s.now = now
	return s
}

// Home picks the landing route for user; anonymous users and users without a
// dashboard stay on the public page.
func (s *DashboardService) Home(user *models.User) string {
	if route, ok := s.policy.HomeRoute(user); ok {
		return route
	}
	return models.RouteLogin
}

// Customer lists the caller's own tickets, newest first.
func (s *DashboardService) Customer(ctx context.Context, user *models.User, params url.Values) (*CustomerDashboard, *models.Outcome, error) {
	if d := s.policy.CanViewCustomerDashboard(user); !d.Allowed {
		return nil, d.Outcome(), nil
	}
	filter := models.ParseTicketFilter(params)
	now := s.now()
	customerID := user.ID
	tickets, err := s.tickets.Query(ctx, models.TicketQuery{
		Scope:  models.TicketScope{CustomerID: &customerID, OrderBy: models.OrderCreatedDesc},
		Filter: filter,
		Now:    now,
	})
	if err != nil {
		return nil, nil, err
	}
	return &CustomerDashboard{Filter: filter, Tickets: rows(tickets, now)}, nil, nil
}

// Agent builds the three agent buckets: open unassigned tickets, open assigned
// tickets narrowed by the "assigned" parameter, and recently resolved tickets.
func (s *DashboardService) Agent(ctx context.Context, user *models.User, params url.Values) (*AgentDashboard, *models.Outcome, error) {
	if d := s.policy.CanViewAgentDashboard(user); !d.Allowed {
		return nil, d.Outcome(), nil
	}

	filter := models.ParseTicketFilter(params)
	now := s.now()
	isAdmin := s.policy.CanSeeAllAssigned(user)
	viewerID := user.ID
	dash := &AgentDashboard{
		Filter:   filter,
		Assigned: params.Get("assigned"),
		IsAdmin:  isAdmin,
	}

	unassigned, err := s.tickets.Query(ctx, models.TicketQuery{
		Scope: models.TicketScope{
			Unassigned:    true,
			ExcludeStatus: models.StatusResolved,
			OrderBy:       models.OrderCreatedDesc,
		},
		Filter: filter,
		Now:    now,
	})
	if err != nil {
		return nil, nil, err
	}
	dash.Unassigned = rows(unassigned, now)

	dash.Mine = []TicketRow{}
	if dash.Assigned != AssignedUnassigned {
		scope := models.TicketScope{
			Assigned:      true,
			ExcludeStatus: models.StatusResolved,
			OrderBy:       models.OrderCreatedDesc,
		}
		if !(dash.Assigned == AssignedAll && isAdmin) {
			scope.AgentID = &viewerID
		}
		assigned, err := s.tickets.Query(ctx, models.TicketQuery{Scope: scope, Filter: filter, Now: now})
		if err != nil {
			return nil, nil, err
		}
		dash.Mine = rows(assigned, now)
	}

	resolvedScope := models.TicketScope{
		Status:  models.StatusResolved,
		OrderBy: models.OrderUpdatedDesc,
		Limit:   ResolvedBucketSize,
	}
	if !isAdmin {
		resolvedScope.AgentID = &viewerID
	}
	resolved, err := s.tickets.Query(ctx, models.TicketQuery{Scope: resolvedScope, Now: now})
	if err != nil {
		return nil, nil, err
	}
	dash.Resolved = rows(resolved, now)
	return dash, nil, nil
}

func rows(tickets []*models.Ticket, now time.Time) []TicketRow {
	out := make([]TicketRow, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, TicketRow{
			Ticket:      t,
			StatusLabel: t.Status.Label(),
			UpdatedAgo:  timeago.English.FormatReference(t.UpdatedAt, now),
		})
	}
	return out
}
