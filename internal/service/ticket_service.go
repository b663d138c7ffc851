package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/itdesk-io/itdesk/internal/admin"
	"github.com/itdesk-io/itdesk/internal/auth"
	"github.com/itdesk-io/itdesk/internal/models"
	"github.com/itdesk-io/itdesk/internal/render"
	"github.com/itdesk-io/itdesk/internal/repository"
	"github.com/itdesk-io/itdesk/internal/storage"
)

const maxTitleLength = 200

// Upload is one file from a multipart form.
type Upload struct {
	Name   string
	Reader io.Reader
}

// TicketService runs the ticket lifecycle: creation, conversation, assignment and
// status changes. Every operation asks the policy first; a denial is returned as an
// Outcome with a nil error.
type TicketService struct {
	repos  *repository.Repositories
	policy *auth.Policy
	files  *storage.Service
	md     *render.Markdown
	fields *admin.FieldPolicy
	now    func() time.Time
}

func NewTicketService(repos *repository.Repositories, policy *auth.Policy, files *storage.Service, md *render.Markdown) *TicketService {
	return &TicketService{
		repos:  repos,
		policy: policy,
		files:  files,
		md:     md,
		fields: admin.TicketFieldPolicy(),
		now:    time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (s *TicketService) WithClock(now func() time.Time) *TicketService {
	s.now = now
	return s
}

func (s *TicketService) Fields() *admin.FieldPolicy {
	return s.fields
}

func (s *TicketService) clock() time.Time {
	return s.now().UTC()
}

func (s *TicketService) load(ctx context.Context, id uint) (*models.Ticket, error) {
	return s.repos.Tickets.GetByID(ctx, id)
}

// CreateTicket opens a ticket for a customer. Files are stored before the ticket row
// is written and removed again if anything later fails.
func (s *TicketService) CreateTicket(ctx context.Context, user *models.User, req models.CreateTicketRequest, uploads []Upload) (*models.Ticket, *models.Outcome, error) {
	if d := s.policy.CanCreateTicket(user); !d.Allowed {
		return nil, d.Outcome(), nil
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Priority = strings.TrimSpace(req.Priority)
	verr := models.NewValidationError()
	if err := validateRequest(verr, req); err != nil {
		return nil, nil, err
	}
	if err := verr.OrNil(); err != nil {
		return nil, nil, err
	}
	title, description := req.Title, req.Description
	priority := models.PriorityMedium
	if req.Priority != "" {
		// The binding rule already restricted the choices.
		priority, _ = models.ParseTicketPriority(req.Priority)
	}

	stored, err := s.storeAll(ctx, uploads)
	if err != nil {
		return nil, nil, err
	}

	now := s.clock()
	ticket := &models.Ticket{
		CustomerID:  user.ID,
		Title:       title,
		Description: description,
		Status:      models.StatusOpen,
		Priority:    priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repos.Tickets.Create(ctx, ticket); err != nil {
		s.discard(ctx, stored)
		return nil, nil, err
	}
	for _, f := range stored {
		if err := s.repos.Attachments.Create(ctx, attachmentFor(ticket.ID, nil, user.ID, f, now)); err != nil {
			// The ticket exists; dropping a file is better than failing the whole request.
			log.Printf("Failed to record attachment %s on ticket %d: %v", f.FileName, ticket.ID, err)
			s.discard(ctx, []*storage.StoredFile{f})
		}
	}

	log.Printf("Ticket #%d created by user %d with %d attachment(s)", ticket.ID, user.ID, len(stored))
	return ticket, models.Succeeded(models.TicketRoute(ticket.ID), fmt.Sprintf("Ticket #%d created successfully.", ticket.ID)), nil
}

// MessageView is a message as shown on the detail page.
type MessageView struct {
	*models.Message
	SenderName string `json:"sender_name"`
	HTML       string `json:"html"`
}

// CommentView is an internal comment as shown on the detail page.
type CommentView struct {
	*models.InternalComment
	AuthorName string `json:"author_name"`
	HTML       string `json:"html"`
}

// TicketDetail is everything the detail page needs, already filtered for the viewer.
type TicketDetail struct {
	Ticket           *models.Ticket       `json:"ticket"`
	StatusLabel      string               `json:"status_label"`
	CustomerName     string               `json:"customer_name"`
	AgentName        string               `json:"agent_name,omitempty"`
	Messages         []MessageView        `json:"messages"`
	InternalComments []CommentView        `json:"internal_comments,omitempty"`
	Attachments      []*models.Attachment `json:"attachments"`
	Agents           []*models.User       `json:"agents,omitempty"`
	CanReply         bool                 `json:"can_reply"`
	CanComment       bool                 `json:"can_comment"`
	CanAssign        bool                 `json:"can_assign"`
	CanUpdate        bool                 `json:"can_update"`
	CanReassign      bool                 `json:"can_reassign"`
}

// TicketDetail loads a ticket with its conversation. Internal comments are only
// loaded for agents and admins.
func (s *TicketService) TicketDetail(ctx context.Context, user *models.User, id uint) (*TicketDetail, *models.Outcome, error) {
	ticket, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if d := s.policy.CanViewTicket(user, ticket); !d.Allowed {
		return nil, d.Outcome(), nil
	}

	names := newNameCache(s.repos.Users)
	detail := &TicketDetail{
		Ticket:       ticket,
		StatusLabel:  ticket.Status.Label(),
		CustomerName: names.get(ctx, ticket.CustomerID),
		CanReply:     s.policy.CanReply(user, ticket).Allowed,
		CanComment:   s.policy.CanAddInternalComment(user, ticket).Allowed,
		CanAssign:    s.policy.CanAssignSelf(user).Allowed && !ticket.IsAssigned(),
		CanUpdate:    s.policy.CanUpdateTicket(user, ticket).Allowed,
		CanReassign:  s.policy.CanReassign(user, ticket).Allowed,
	}
	if ticket.AgentID != nil {
		detail.AgentName = names.get(ctx, *ticket.AgentID)
	}

	attachments, err := s.repos.Attachments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, err
	}
	byMessage := make(map[uint]*models.Attachment)
	detail.Attachments = make([]*models.Attachment, 0, len(attachments))
	for _, a := range attachments {
		if a.MessageID != nil {
			byMessage[*a.MessageID] = a
			continue
		}
		detail.Attachments = append(detail.Attachments, a)
	}

	msgs, err := s.repos.Messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, err
	}
	detail.Messages = make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		m.Attachment = byMessage[m.ID]
		detail.Messages = append(detail.Messages, MessageView{
			Message:    m,
			SenderName: names.get(ctx, m.SenderID),
			HTML:       s.md.HTML(m.Content),
		})
	}

	if s.policy.CanSeeInternalComments(user) {
		comments, err := s.repos.Comments.ListByTicket(ctx, ticket.ID)
		if err != nil {
			return nil, nil, err
		}
		detail.InternalComments = make([]CommentView, 0, len(comments))
		for _, c := range comments {
			detail.InternalComments = append(detail.InternalComments, CommentView{
				InternalComment: c,
				AuthorName:      names.get(ctx, c.AuthorID),
				HTML:            s.md.HTML(c.Content),
			})
		}
	}

	if detail.CanReassign {
		agents, err := listAssignees(ctx, s.repos.Users, s.policy)
		if err != nil {
			return nil, nil, err
		}
		detail.Agents = agents
	}
	return detail, nil, nil
}

// Reply posts a message, optionally with one attachment, and bumps the ticket.
func (s *TicketService) Reply(ctx context.Context, user *models.User, id uint, content string, upload *Upload) (*models.Message, *models.Outcome, error) {
	ticket, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if d := s.policy.CanReply(user, ticket); !d.Allowed {
		return nil, d.Outcome(), nil
	}

	content = strings.TrimSpace(content)
	if content == "" && upload == nil {
		verr := models.NewValidationError()
		verr.Add("content", msgRequired)
		return nil, nil, verr
	}

	var stored []*storage.StoredFile
	if upload != nil {
		stored, err = s.storeAll(ctx, []Upload{*upload})
		if err != nil {
			return nil, nil, err
		}
	}

	now := s.clock()
	msg := &models.Message{TicketID: ticket.ID, SenderID: user.ID, Content: content, CreatedAt: now}
	if err := s.repos.Messages.Create(ctx, msg); err != nil {
		s.discard(ctx, stored)
		return nil, nil, err
	}
	for _, f := range stored {
		att := attachmentFor(ticket.ID, &msg.ID, user.ID, f, now)
		if err := s.repos.Attachments.Create(ctx, att); err != nil {
			log.Printf("Failed to record attachment %s on message %d: %v", f.FileName, msg.ID, err)
			s.discard(ctx, []*storage.StoredFile{f})
			continue
		}
		msg.Attachment = att
	}
	if err := s.repos.Tickets.Touch(ctx, ticket.ID, now); err != nil {
		return nil, nil, err
	}
	return msg, models.Succeeded(models.TicketRoute(ticket.ID), "Message posted successfully."), nil
}

// AddInternalComment records an agent-only note and bumps the ticket.
func (s *TicketService) AddInternalComment(ctx context.Context, user *models.User, id uint, content string) (*models.InternalComment, *models.Outcome, error) {
	ticket, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if d := s.policy.CanAddInternalComment(user, ticket); !d.Allowed {
		return nil, d.Outcome(), nil
	}

	content = strings.TrimSpace(content)
	if content == "" {
		verr := models.NewValidationError()
		verr.Add("content", msgRequired)
		return nil, nil, verr
	}

	now := s.clock()
	comment := &models.InternalComment{TicketID: ticket.ID, AuthorID: user.ID, Content: content, CreatedAt: now}
	if err := s.repos.Comments.Create(ctx, comment); err != nil {
		return nil, nil, err
	}
	if err := s.repos.Tickets.Touch(ctx, ticket.ID, now); err != nil {
		return nil, nil, err
	}
	return comment, models.Succeeded(models.TicketRoute(ticket.ID), "Internal comment added successfully."), nil
}

// AssignToSelf claims an unassigned ticket. A ticket that already has an agent is
// left untouched, even when that agent is the caller. Claiming an open ticket moves it
// to in progress. The claim is decided by the store, so two agents racing for the same
// ticket get one success and one warning.
func (s *TicketService) AssignToSelf(ctx context.Context, user *models.User, id uint) (*models.Outcome, error) {
	ticket, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := s.policy.CanAssignSelf(user); !d.Allowed {
		return d.Outcome(), nil
	}

	if !ticket.IsAssigned() {
		claimed, err := s.repos.Tickets.Assign(ctx, ticket.ID, user.ID, s.clock())
		if err != nil {
			return nil, err
		}
		if claimed {
			log.Printf("Ticket #%d assigned to user %d", ticket.ID, user.ID)
			return models.Succeeded(models.TicketRoute(ticket.ID), fmt.Sprintf("Ticket #%d has been assigned to you.", ticket.ID)), nil
		}
		if ticket, err = s.load(ctx, id); err != nil {
			return nil, err
		}
	}
	return s.alreadyAssigned(ctx, user, ticket), nil
}

func (s *TicketService) alreadyAssigned(ctx context.Context, user *models.User, ticket *models.Ticket) *models.Outcome {
	route := models.TicketRoute(ticket.ID)
	if ticket.AssignedTo(user.ID) {
		return models.Warned(route, fmt.Sprintf("Ticket #%d is already assigned to you.", ticket.ID))
	}
	names := newNameCache(s.repos.Users)
	return models.Warned(route, fmt.Sprintf("Ticket #%d is already assigned to %s.", ticket.ID, names.get(ctx, *ticket.AgentID)))
}

// UpdateTicket changes status and priority. Blank fields keep their current value.
func (s *TicketService) UpdateTicket(ctx context.Context, user *models.User, id uint, req models.UpdateTicketRequest) (*models.Ticket, *models.Outcome, error) {
	ticket, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if d := s.policy.CanUpdateTicket(user, ticket); !d.Allowed {
		return nil, d.Outcome(), nil
	}

	req.Status = strings.TrimSpace(req.Status)
	req.Priority = strings.TrimSpace(req.Priority)
	verr := models.NewValidationError()
	if err := validateRequest(verr, req); err != nil {
		return nil, nil, err
	}
	if req.Status != "" {
		if st, err := models.ParseTicketStatus(req.Status); err != nil {
			verr.Add("status", msgInvalidChoice)
		} else {
			ticket.Status = st
		}
	}
	if req.Priority != "" {
		if p, err := models.ParseTicketPriority(req.Priority); err != nil {
			verr.Add("priority", msgInvalidChoice)
		} else {
			ticket.Priority = p
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, nil, err
	}

	ticket.Touch(s.clock())
	if err := s.repos.Tickets.Update(ctx, ticket); err != nil {
		return nil, nil, err
	}
	return ticket, models.Succeeded(models.TicketRoute(ticket.ID), fmt.Sprintf("Ticket #%d status updated.", ticket.ID)), nil
}

// Reassign hands a ticket to another agent. Admin only, and always audited.
func (s *TicketService) Reassign(ctx context.Context, user *models.User, id, agentID uint) (*models.Ticket, *models.Outcome, error) {
	ticket, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if d := s.policy.CanReassign(user, ticket); !d.Allowed {
		return nil, d.Outcome(), nil
	}
	agent, err := s.assignee(ctx, agentID)
	if err != nil {
		return nil, nil, err
	}

	s.setAgent(user, ticket, agent.ID)
	ticket.Touch(s.clock())
	if err := s.repos.Tickets.Update(ctx, ticket); err != nil {
		return nil, nil, err
	}
	return ticket, models.Succeeded(models.TicketRoute(ticket.ID),
		fmt.Sprintf("Ticket #%d reassigned to %s.", ticket.ID, agent.DisplayName())), nil
}

// AdminCreateTicket creates a ticket on behalf of any customer.
func (s *TicketService) AdminCreateTicket(ctx context.Context, actor *models.User, req models.AdminTicketRequest) (*models.Ticket, *models.Outcome, error) {
	if d := s.policy.CanManageTickets(actor); !d.Allowed {
		return nil, d.Outcome(), nil
	}
	if err := s.fields.Check(req.Fields(), true); err != nil {
		return nil, nil, err
	}

	verr := models.NewValidationError()
	ticket := &models.Ticket{Status: models.StatusOpen, Priority: models.PriorityMedium}
	if req.CustomerID == nil {
		verr.Add("customer", msgRequired)
	} else if _, err := s.repos.Users.GetByID(ctx, *req.CustomerID); err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			return nil, nil, err
		}
		verr.Add("customer", msgInvalidChoice)
	} else {
		ticket.CustomerID = *req.CustomerID
	}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		verr.Add("title", msgRequired)
	}
	if req.Description == nil || strings.TrimSpace(*req.Description) == "" {
		verr.Add("description", msgRequired)
	}
	s.applyAdminFields(ticket, req, verr)
	if err := verr.OrNil(); err != nil {
		return nil, nil, err
	}
	if req.AgentID != nil {
		agent, err := s.assignee(ctx, *req.AgentID)
		if err != nil {
			return nil, nil, err
		}
		ticket.AgentID = &agent.ID
	}

	now := s.clock()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	if err := s.repos.Tickets.Create(ctx, ticket); err != nil {
		return nil, nil, err
	}
	log.Printf("AUDIT: admin %d created ticket #%d for customer %d", actor.ID, ticket.ID, ticket.CustomerID)
	return ticket, models.Succeeded(models.TicketRoute(ticket.ID), fmt.Sprintf("Ticket #%d created successfully.", ticket.ID)), nil
}

// AdminUpdateTicket edits a ticket from the admin pages. The customer and timestamps
// are read-only; changing the agent is a reassignment.
func (s *TicketService) AdminUpdateTicket(ctx context.Context, actor *models.User, id uint, req models.AdminTicketRequest) (*models.Ticket, *models.Outcome, error) {
	if d := s.policy.CanManageTickets(actor); !d.Allowed {
		return nil, d.Outcome(), nil
	}
	if err := s.fields.Check(req.Fields(), false); err != nil {
		return nil, nil, err
	}
	ticket, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	verr := models.NewValidationError()
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		verr.Add("title", msgRequired)
	}
	if req.Description != nil && strings.TrimSpace(*req.Description) == "" {
		verr.Add("description", msgRequired)
	}
	s.applyAdminFields(ticket, req, verr)
	if err := verr.OrNil(); err != nil {
		return nil, nil, err
	}
	if req.AgentID != nil && !ticket.AssignedTo(*req.AgentID) {
		agent, err := s.assignee(ctx, *req.AgentID)
		if err != nil {
			return nil, nil, err
		}
		s.setAgent(actor, ticket, agent.ID)
	}

	ticket.Touch(s.clock())
	if err := s.repos.Tickets.Update(ctx, ticket); err != nil {
		return nil, nil, err
	}
	return ticket, models.Succeeded(models.TicketRoute(ticket.ID), fmt.Sprintf("Ticket #%d updated.", ticket.ID)), nil
}

// DeleteTicket removes a ticket with everything it owns, then its stored files.
func (s *TicketService) DeleteTicket(ctx context.Context, actor *models.User, id uint) (*models.Outcome, error) {
	if d := s.policy.CanManageTickets(actor); !d.Allowed {
		return d.Outcome(), nil
	}
	ticket, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	attachments, err := s.repos.Attachments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Tickets.Delete(ctx, ticket.ID); err != nil {
		return nil, err
	}
	for _, a := range attachments {
		if err := s.files.Remove(ctx, a.StoragePath); err != nil {
			log.Printf("Failed to remove file %s of deleted ticket %d: %v", a.StoragePath, ticket.ID, err)
		}
	}
	log.Printf("AUDIT: admin %d deleted ticket #%d (%d attachment(s))", actor.ID, ticket.ID, len(attachments))
	return models.Succeeded(models.RouteAgentDashboard, fmt.Sprintf("Ticket #%d deleted.", ticket.ID)), nil
}

// OpenAttachment returns a stored file to anyone who may view its ticket. The caller
// closes the reader.
func (s *TicketService) OpenAttachment(ctx context.Context, user *models.User, attachmentID uint) (*models.Attachment, io.ReadCloser, *models.Outcome, error) {
	att, err := s.repos.Attachments.GetByID(ctx, attachmentID)
	if err != nil {
		return nil, nil, nil, err
	}
	ticket, err := s.load(ctx, att.TicketID)
	if err != nil {
		return nil, nil, nil, err
	}
	if d := s.policy.CanViewTicket(user, ticket); !d.Allowed {
		return nil, nil, d.Outcome(), nil
	}
	rc, err := s.files.Open(ctx, att.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, nil, fmt.Errorf("attachment %d: %w", att.ID, models.ErrNotFound)
		}
		return nil, nil, nil, err
	}
	return att, rc, nil, nil
}

func (s *TicketService) applyAdminFields(ticket *models.Ticket, req models.AdminTicketRequest, verr *models.ValidationError) {
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if err := validate.Var(title, fmt.Sprintf("max=%d", maxTitleLength)); err != nil {
			verr.Add("title", fmt.Sprintf("Ensure this value has at most %d characters.", maxTitleLength))
		}
		ticket.Title = title
	}
	if req.Description != nil {
		ticket.Description = strings.TrimSpace(*req.Description)
	}
	if req.Status != nil {
		st, err := models.ParseTicketStatus(*req.Status)
		if err != nil {
			verr.Add("status", msgInvalidChoice)
		} else {
			ticket.Status = st
		}
	}
	if req.Priority != nil {
		p, err := models.ParseTicketPriority(*req.Priority)
		if err != nil {
			verr.Add("priority", msgInvalidChoice)
		} else {
			ticket.Priority = p
		}
	}
}

// assignee loads a user that may hold tickets: an active agent or admin.
func (s *TicketService) assignee(ctx context.Context, id uint) (*models.User, error) {
	agent, err := s.repos.Users.GetByID(ctx, id)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if agent == nil || !s.policy.CanBeAssignee(agent) {
		verr := models.NewValidationError()
		verr.Add("agent", "Select an active agent or administrator.")
		return nil, verr
	}
	return agent, nil
}

func (s *TicketService) setAgent(actor *models.User, ticket *models.Ticket, agentID uint) {
	from := "nobody"
	if ticket.AgentID != nil {
		from = fmt.Sprintf("user %d", *ticket.AgentID)
	}
	log.Printf("AUDIT: admin %d reassigned ticket #%d from %s to user %d", actor.ID, ticket.ID, from, agentID)
	ticket.AgentID = &agentID
}

func (s *TicketService) storeAll(ctx context.Context, uploads []Upload) ([]*storage.StoredFile, error) {
	stored := make([]*storage.StoredFile, 0, len(uploads))
	for _, u := range uploads {
		f, err := s.files.Store(ctx, u.Name, u.Reader)
		if err != nil {
			s.discard(ctx, stored)
			return nil, err
		}
		stored = append(stored, f)
	}
	return stored, nil
}

func (s *TicketService) discard(ctx context.Context, files []*storage.StoredFile) {
	for _, f := range files {
		if err := s.files.Remove(ctx, f.Key); err != nil {
			log.Printf("Failed to clean up stored file %s: %v", f.Key, err)
		}
	}
}

func attachmentFor(ticketID uint, messageID *uint, uploader uint, f *storage.StoredFile, at time.Time) *models.Attachment {
	return &models.Attachment{
		TicketID:    ticketID,
		MessageID:   messageID,
		StoragePath: f.Key,
		FileName:    f.FileName,
		ContentType: f.ContentType,
		Size:        f.Size,
		UploadedBy:  uploader,
		UploadedAt:  at,
	}
}

// nameCache resolves user ids to display names once per request.
type nameCache struct {
	users repository.IUserRepository
	names map[uint]string
}

func newNameCache(users repository.IUserRepository) *nameCache {
	return &nameCache{users: users, names: make(map[uint]string)}
}

func (c *nameCache) get(ctx context.Context, id uint) string {
	if name, ok := c.names[id]; ok {
		return name
	}
	name := fmt.Sprintf("user %d", id)
	if u, err := c.users.GetByID(ctx, id); err == nil {
		name = u.DisplayName()
	}
	c.names[id] = name
	return name
}
