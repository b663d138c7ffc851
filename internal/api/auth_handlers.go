package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/itdesk-io/itdesk/internal/auth"
	"github.com/itdesk-io/itdesk/internal/metrics"
	"github.com/itdesk-io/itdesk/internal/middleware"
	"github.com/itdesk-io/itdesk/internal/models"
	"github.com/itdesk-io/itdesk/internal/service"
)

// home sends signed-in users to their dashboard and everyone else to the login page.
func (s *Server) home(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.Redirect(http.StatusSeeOther, models.RouteLogin)
		return
	}
	c.Redirect(http.StatusSeeOther, s.deps.Dashboards.Home(user))
}

func (s *Server) loginPage(c *gin.Context) {
	if user := middleware.CurrentUser(c); user != nil {
		if route := s.deps.Dashboards.Home(user); route != models.RouteLogin {
			c.Redirect(http.StatusSeeOther, route)
			return
		}
	}
	c.JSON(http.StatusOK, flashBody(c, gin.H{
		"page":   "login",
		"fields": []string{"identifier", "password", "remember_me"},
	}))
}

func (s *Server) login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		s.respondError(c, badForm(err), gin.H{"identifier": req.Identifier})
		return
	}

	ip := c.ClientIP()
	result, err := s.deps.Auth.Login(c.Request.Context(), ip, req)
	switch {
	case errors.Is(err, service.ErrTooManyAttempts):
		s.deps.Metrics.Login(metrics.LoginThrottled)
		s.deps.Metrics.SecurityBlock(metrics.BlockLoginThrottle)
		s.respondOutcome(c, models.Denied(models.RouteLogin, service.LoginMessage(err)), nil)
		return
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUserDisabled):
		s.deps.Metrics.Login(metrics.LoginFailure)
		log.Printf("Failed login for %q from %s", req.Identifier, ip)
		msg := service.LoginMessage(err)
		if middleware.WantsJSON(c) {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": msg, "input": gin.H{"identifier": req.Identifier}})
			return
		}
		middleware.SetFlash(c, models.Denied(models.RouteLogin, msg))
		c.Redirect(http.StatusSeeOther, models.RouteLogin)
		return
	case err != nil:
		s.respondError(c, err, nil)
		return
	}

	s.deps.Metrics.Login(metrics.LoginSuccess)
	// Without remember-me the cookie ends with the browser session.
	maxAge := 0
	if req.RememberMe {
		maxAge = int(time.Until(result.ExpiresAt).Seconds())
	}
	middleware.SetSession(c, result.Token, maxAge)
	s.respondOutcome(c, models.Succeeded(result.Redirect, result.Message), gin.H{
		"token":      result.Token,
		"expires_at": result.ExpiresAt,
		"user":       result.User,
	})
}

func (s *Server) logout(c *gin.Context) {
	middleware.ClearSession(c)
	s.respondOutcome(c, models.Succeeded(models.RouteLogin, "You have been logged out."), nil)
}

// register creates a customer account and logs it in straight away.
func (s *Server) register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		s.respondError(c, badForm(err), nil)
		return
	}
	echo := gin.H{
		"mobile":     req.Mobile,
		"email":      req.Email,
		"first_name": req.FirstName,
		"last_name":  req.LastName,
	}

	user, err := s.deps.Users.Register(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err, echo)
		return
	}
	log.Printf("New customer registered: user %d from %s", user.ID, c.ClientIP())

	result, err := s.deps.Auth.StartSession(user)
	if err != nil {
		s.respondError(c, err, nil)
		return
	}
	middleware.SetSession(c, result.Token, 0)
	s.respondOutcome(c, models.Succeeded(result.Redirect, result.Message), gin.H{
		"token": result.Token,
		"user":  user,
	})
}
