package auth

import "github.com/itdesk-io/itdesk/internal/models"

// HasRole reports whether user is an active member of group. Admin checks also pass for
// superusers and staff. Membership is read from the user record as loaded for the
// current request; nothing is cached here.
func HasRole(user *models.User, group models.Group) bool {
	if user == nil || !user.IsActive {
		return false
	}
	if user.InGroup(group) {
		return true
	}
	return group == models.GroupAdmins && (user.IsSuperuser || user.IsStaff)
}

// IsAdmin covers the Admins group and the superuser/staff override.
func IsAdmin(user *models.User) bool {
	return HasRole(user, models.GroupAdmins)
}

// IsAgent reports plain Agents membership.
func IsAgent(user *models.User) bool {
	return HasRole(user, models.GroupAgents)
}

// IsCustomer reports plain Customers membership.
func IsCustomer(user *models.User) bool {
	return HasRole(user, models.GroupCustomers)
}

// IsSupportStaff is the agent-side capability: Agents, Admins or superuser.
func IsSupportStaff(user *models.User) bool {
	return IsAgent(user) || IsAdmin(user)
}

type Action string

const (
	ActionViewTicket        Action = "view_ticket"
	ActionCreateTicket      Action = "create_ticket"
	ActionReply             Action = "reply"
	ActionInternalComment   Action = "internal_comment"
	ActionAssignSelf        Action = "assign_self"
	ActionUpdateTicket      Action = "update_ticket"
	ActionReassign          Action = "reassign"
	ActionCustomerDashboard Action = "customer_dashboard"
	ActionAgentDashboard    Action = "agent_dashboard"
	ActionManageUsers       Action = "manage_users"
	ActionManageTickets     Action = "manage_tickets"
)

// Decision is the answer to an authorization question. A denial always carries a route
// to send the user to and a message to show them.
type Decision struct {
	Action   Action
	Allowed  bool
	Redirect string
	Message  string
}

func allow(a Action) Decision { return Decision{Action: a, Allowed: true} }

func deny(a Action, redirect, msg string) Decision {
	return Decision{Action: a, Redirect: redirect, Message: msg}
}

// Outcome converts a denial into the user-visible result.
func (d Decision) Outcome() *models.Outcome {
	return models.Denied(d.Redirect, d.Message)
}

// Policy evaluates the ticket access rules. It is stateless and safe for concurrent use.
type Policy struct{}

func NewPolicy() *Policy {
	return &Policy{}
}

// CanViewTicket applies two gates in order: a Customers member must own the ticket,
// then an Agents member who is not an admin must be its assignee. Anyone left who
// belongs to a support or customer group may view.
func (p *Policy) CanViewTicket(user *models.User, ticket *models.Ticket) Decision {
	a := ActionViewTicket
	if user == nil || !user.IsActive {
		return deny(a, models.RouteLogin, "Please log in to continue.")
	}
	if IsCustomer(user) && ticket.CustomerID != user.ID {
		return deny(a, models.RouteCustomerDashboard, "You are not authorized to view this ticket.")
	}
	if IsAgent(user) && !IsAdmin(user) && !ticket.AssignedTo(user.ID) {
		return deny(a, models.RouteAgentDashboard, "You can only view tickets assigned to you.")
	}
	if !IsCustomer(user) && !IsSupportStaff(user) {
		return deny(a, models.RouteLogin, "You do not have permission to view this page.")
	}
	return allow(a)
}

func (p *Policy) CanCreateTicket(user *models.User) Decision {
	a := ActionCreateTicket
	if IsCustomer(user) {
		return allow(a)
	}
	if IsSupportStaff(user) {
		return deny(a, models.RouteAgentDashboard, "Access Denied. Only customers can create tickets.")
	}
	return deny(a, models.RouteLogin, "Access Denied. Only customers can create tickets.")
}

// CanReply follows the view rule.
func (p *Policy) CanReply(user *models.User, ticket *models.Ticket) Decision {
	d := p.CanViewTicket(user, ticket)
	d.Action = ActionReply
	return d
}

// CanAddInternalComment requires view access and agent-side membership.
func (p *Policy) CanAddInternalComment(user *models.User, ticket *models.Ticket) Decision {
	d := p.CanViewTicket(user, ticket)
	d.Action = ActionInternalComment
	if !d.Allowed {
		return d
	}
	if !IsSupportStaff(user) {
		return deny(ActionInternalComment, models.TicketRoute(ticket.ID), "Only agents can add internal comments.")
	}
	return d
}

// CanSeeInternalComments decides whether internal comments are listed at all.
func (p *Policy) CanSeeInternalComments(user *models.User) bool {
	return IsSupportStaff(user)
}

// CanAssignSelf only checks the role. Whether the ticket is still unassigned is a
// lifecycle question answered by the ticket service.
func (p *Policy) CanAssignSelf(user *models.User) Decision {
	a := ActionAssignSelf
	if IsSupportStaff(user) {
		return allow(a)
	}
	return deny(a, models.RouteAgentDashboard, "Access Denied. Only agents can assign tickets.")
}

// CanUpdateTicket covers status and priority edits: the assigned agent or an admin.
// Agents group membership alone is not enough.
func (p *Policy) CanUpdateTicket(user *models.User, ticket *models.Ticket) Decision {
	a := ActionUpdateTicket
	if user != nil && user.IsActive && (ticket.AssignedTo(user.ID) || IsAdmin(user)) {
		return allow(a)
	}
	return deny(a, models.TicketRoute(ticket.ID), "You can only update tickets assigned to you.")
}

// CanReassign is the admin override for changing an already assigned agent.
func (p *Policy) CanReassign(user *models.User, ticket *models.Ticket) Decision {
	a := ActionReassign
	if IsAdmin(user) {
		return allow(a)
	}
	return deny(a, models.TicketRoute(ticket.ID), "Only administrators can reassign tickets.")
}

// CanBeAssignee reports whether a user may hold tickets.
func (p *Policy) CanBeAssignee(user *models.User) bool {
	return IsSupportStaff(user)
}

func (p *Policy) CanViewCustomerDashboard(user *models.User) Decision {
	a := ActionCustomerDashboard
	if IsCustomer(user) {
		return allow(a)
	}
	if IsAgent(user) {
		return deny(a, models.RouteAgentDashboard, "Access Denied. This dashboard is for customers only.")
	}
	return deny(a, models.RouteLogin, "Access Denied. This dashboard is for customers only.")
}

func (p *Policy) CanViewAgentDashboard(user *models.User) Decision {
	a := ActionAgentDashboard
	if IsSupportStaff(user) {
		return allow(a)
	}
	if IsCustomer(user) {
		return deny(a, models.RouteCustomerDashboard, "Access Denied. This dashboard is for agents and administrators.")
	}
	return deny(a, models.RouteLogin, "Access Denied. This dashboard is for agents and administrators.")
}

// CanSeeAllAssigned unlocks the "all assigned" agent dashboard view.
func (p *Policy) CanSeeAllAssigned(user *models.User) bool {
	return IsAdmin(user)
}

func (p *Policy) CanManageUsers(user *models.User) Decision {
	a := ActionManageUsers
	if IsAdmin(user) {
		return allow(a)
	}
	return deny(a, models.RouteHome, "Admin access required.")
}

// CanManageTickets guards the admin ticket pages (create, edit, delete).
func (p *Policy) CanManageTickets(user *models.User) Decision {
	a := ActionManageTickets
	if IsAdmin(user) {
		return allow(a)
	}
	return deny(a, models.RouteHome, "Admin access required.")
}

// HomeRoute picks the landing page for a signed-in user. ok is false when the user has
// no dashboard and should stay on the public home page.
func (p *Policy) HomeRoute(user *models.User) (string, bool) {
	switch {
	case user == nil:
		return "", false
	case IsSupportStaff(user):
		return models.RouteAgentDashboard, true
	case IsCustomer(user):
		return models.RouteCustomerDashboard, true
	}
	return "", false
}

// LoginRedirect picks where to go right after a successful login. Staff accounts that
// are not also customers land on the agent dashboard.
func (p *Policy) LoginRedirect(user *models.User) string {
	if user.IsSuperuser || (user.IsStaff && !user.InGroup(models.GroupCustomers)) {
		return models.RouteAgentDashboard
	}
	if route, ok := p.HomeRoute(user); ok {
		return route
	}
	return models.RouteHome
}
