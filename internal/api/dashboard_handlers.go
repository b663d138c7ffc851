package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/itdesk-io/itdesk/internal/middleware"
)

func (s *Server) customerDashboard(c *gin.Context) {
	dash, outcome, err := s.deps.Dashboards.Customer(c.Request.Context(), middleware.CurrentUser(c), c.Request.URL.Query())
	if err != nil {
		s.respondError(c, err, nil)
		return
	}
	if outcome != nil {
		s.respondOutcome(c, outcome, nil)
		return
	}
	c.JSON(http.StatusOK, flashBody(c, gin.H{"success": true, "dashboard": dash}))
}

// agentDashboard accepts status, priority, search, date_range and assigned.
func (s *Server) agentDashboard(c *gin.Context) {
	dash, outcome, err := s.deps.Dashboards.Agent(c.Request.Context(), middleware.CurrentUser(c), c.Request.URL.Query())
	if err != nil {
		s.respondError(c, err, nil)
		return
	}
	if outcome != nil {
		s.respondOutcome(c, outcome, nil)
		return
	}
	c.JSON(http.StatusOK, flashBody(c, gin.H{"success": true, "dashboard": dash}))
}
