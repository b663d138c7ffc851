package api

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/itdesk-io/itdesk/internal/middleware"
	"github.com/itdesk-io/itdesk/internal/models"
	"github.com/itdesk-io/itdesk/internal/service"
)

// formUploads opens the files posted under field. The returned closer must be called
// once the service is done reading.
func formUploads(c *gin.Context, field string) ([]service.Upload, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, noop, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, noop, err
	}
	var (
		uploads []service.Upload
		files   []multipart.File
	)
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}
	for _, fh := range form.File[field] {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, noop, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
		}
		files = append(files, f)
		uploads = append(uploads, service.Upload{Name: fh.Filename, Reader: f})
	}
	return uploads, closeAll, nil
}

func (s *Server) createTicket(c *gin.Context) {
	user := middleware.CurrentUser(c)
	var req models.CreateTicketRequest
	if err := c.ShouldBind(&req); err != nil {
		s.respondError(c, badForm(err), nil)
		return
	}
	uploads, done, err := formUploads(c, "attachments")
	if err != nil {
		s.respondError(c, badForm(err), nil)
		return
	}
	defer done()

	ticket, outcome, err := s.deps.Tickets.CreateTicket(c.Request.Context(), user, req, uploads)
	if err != nil {
		s.deps.Metrics.Uploads(len(uploads), false)
		s.respondError(c, err, req)
		return
	}
	if outcome.Success() {
		s.deps.Metrics.Uploads(len(uploads), true)
	}
	s.respondOutcome(c, outcome, ticketData(ticket))
}

func (s *Server) ticketDetail(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	detail, outcome, err := s.deps.Tickets.TicketDetail(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		s.respondError(c, err, nil)
		return
	}
	if outcome != nil {
		s.respondOutcome(c, outcome, nil)
		return
	}
	c.JSON(http.StatusOK, flashBody(c, gin.H{"success": true, "detail": detail}))
}

// postToTicket handles both forms on the detail page: a reply, or an internal comment
// when the internal_comment field is present.
func (s *Server) postToTicket(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	if comment, isComment := c.GetPostForm("internal_comment"); isComment {
		note, outcome, err := s.deps.Tickets.AddInternalComment(ctx, user, id, comment)
		if err != nil {
			s.respondError(c, err, gin.H{"internal_comment": comment})
			return
		}
		var data gin.H
		if note != nil {
			data = gin.H{"comment": note}
		}
		s.respondOutcome(c, outcome, data)
		return
	}

	content := c.PostForm("content")
	uploads, done, err := formUploads(c, "attachment")
	if err != nil {
		s.respondError(c, badForm(err), nil)
		return
	}
	defer done()
	var upload *service.Upload
	if len(uploads) > 0 {
		upload = &uploads[0]
	}

	msg, outcome, err := s.deps.Tickets.Reply(ctx, user, id, content, upload)
	if err != nil {
		if upload != nil {
			s.deps.Metrics.Uploads(1, false)
		}
		s.respondError(c, err, gin.H{"content": content})
		return
	}
	if upload != nil && outcome.Success() {
		s.deps.Metrics.Uploads(1, true)
	}
	var data gin.H
	if msg != nil {
		data = gin.H{"message": msg}
	}
	s.respondOutcome(c, outcome, data)
}

func (s *Server) assignTicket(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	outcome, err := s.deps.Tickets.AssignToSelf(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		s.respondError(c, err, nil)
		return
	}
	s.respondOutcome(c, outcome, nil)
}

func (s *Server) updateTicket(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.UpdateTicketRequest
	if err := c.ShouldBind(&req); err != nil {
		s.respondError(c, badForm(err), nil)
		return
	}
	ticket, outcome, err := s.deps.Tickets.UpdateTicket(c.Request.Context(), middleware.CurrentUser(c), id, req)
	if err != nil {
		s.respondError(c, err, req)
		return
	}
	s.respondOutcome(c, outcome, ticketData(ticket))
}

// reassignTicket takes the target agent id from the "agent" field.
func (s *Server) reassignTicket(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	agentID, err := strconv.ParseUint(c.PostForm("agent"), 10, 32)
	if err != nil || agentID == 0 {
		verr := models.NewValidationError()
		verr.Add("agent", "Select a valid choice.")
		s.respondError(c, verr, gin.H{"agent": c.PostForm("agent")})
		return
	}
	ticket, outcome, err := s.deps.Tickets.Reassign(c.Request.Context(), middleware.CurrentUser(c), id, uint(agentID))
	if err != nil {
		s.respondError(c, err, gin.H{"agent": agentID})
		return
	}
	s.respondOutcome(c, outcome, ticketData(ticket))
}

func (s *Server) downloadAttachment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	att, rc, outcome, err := s.deps.Tickets.OpenAttachment(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		s.respondError(c, err, nil)
		return
	}
	if outcome != nil {
		s.respondOutcome(c, outcome, nil)
		return
	}
	defer rc.Close()

	contentType := att.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, att.Size, contentType, rc, map[string]string{
		"Content-Disposition":    fmt.Sprintf("attachment; filename=%q", att.FileName),
		"X-Content-Type-Options": "nosniff",
	})
}
