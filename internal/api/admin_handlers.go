package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/itdesk-io/itdesk/internal/middleware"
	"github.com/itdesk-io/itdesk/internal/models"
	"github.com/itdesk-io/itdesk/internal/repository"
)

// adminListUsers supports ?search=, ?group=, ?active=1, ?limit= and ?offset=.
func (s *Server) adminListUsers(c *gin.Context) {
	opts := repository.UserListOptions{Search: strings.TrimSpace(c.Query("search"))}
	if g := c.Query("group"); g != "" {
		group, ok := models.ParseGroup(g)
		if !ok {
			verr := models.NewValidationError()
			verr.Add("group", "Select a valid choice.")
			s.respondError(c, verr, gin.H{"group": g})
			return
		}
		opts.Group = group
	}
	if active, err := strconv.ParseBool(c.DefaultQuery("active", "false")); err == nil {
		opts.ActiveOnly = active
	}
	opts.Limit, _ = strconv.Atoi(c.Query("limit"))
	opts.Offset, _ = strconv.Atoi(c.Query("offset"))
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	users, outcome, err := s.deps.Users.ListUsers(c.Request.Context(), middleware.CurrentUser(c), opts)
	if err != nil {
		s.respondError(c, err, nil)
		return
	}
	if outcome != nil {
		s.respondOutcome(c, outcome, nil)
		return
	}
	c.JSON(http.StatusOK, flashBody(c, gin.H{"success": true, "users": users, "count": len(users)}))
}

func (s *Server) adminCreateUser(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, badForm(err), nil)
		return
	}
	user, outcome, err := s.deps.Users.AdminCreateUser(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		req.Password = ""
		s.respondError(c, err, req)
		return
	}
	s.respondOutcome(c, outcome, userData(user))
}

func (s *Server) adminUpdateUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, badForm(err), nil)
		return
	}
	user, outcome, err := s.deps.Users.AdminUpdateUser(c.Request.Context(), middleware.CurrentUser(c), id, req)
	if err != nil {
		req.Password = nil
		s.respondError(c, err, req)
		return
	}
	s.respondOutcome(c, outcome, userData(user))
}

func userData(user *models.User) gin.H {
	if user == nil {
		return nil
	}
	return gin.H{"user": user}
}

func ticketData(ticket *models.Ticket) gin.H {
	if ticket == nil {
		return nil
	}
	return gin.H{"ticket": ticket}
}

func (s *Server) adminCreateTicket(c *gin.Context) {
	var req models.AdminTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, badForm(err), nil)
		return
	}
	ticket, outcome, err := s.deps.Tickets.AdminCreateTicket(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		s.respondError(c, err, req)
		return
	}
	s.respondOutcome(c, outcome, ticketData(ticket))
}

// adminUpdateTicket edits any ticket; a changed "agent" is an audited reassignment.
func (s *Server) adminUpdateTicket(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.AdminTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, badForm(err), nil)
		return
	}
	ticket, outcome, err := s.deps.Tickets.AdminUpdateTicket(c.Request.Context(), middleware.CurrentUser(c), id, req)
	if err != nil {
		s.respondError(c, err, req)
		return
	}
	s.respondOutcome(c, outcome, ticketData(ticket))
}

func (s *Server) adminDeleteTicket(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	outcome, err := s.deps.Tickets.DeleteTicket(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		s.respondError(c, err, nil)
		return
	}
	s.respondOutcome(c, outcome, nil)
}
