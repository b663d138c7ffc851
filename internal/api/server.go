package api

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/itdesk-io/itdesk/internal/auth"
	"github.com/itdesk-io/itdesk/internal/metrics"
	"github.com/itdesk-io/itdesk/internal/middleware"
	"github.com/itdesk-io/itdesk/internal/service"
	"github.com/itdesk-io/itdesk/internal/storage"
	"github.com/itdesk-io/itdesk/internal/version"
)

// Pinger is satisfied by *sqlx.DB and *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Users      *service.UserService
	Auth       *service.AuthService
	Tickets    *service.TicketService
	Dashboards *service.DashboardService

	Limiter *auth.LoginRateLimiter
	Quota   *storage.UploadQuota
	Metrics *metrics.Metrics
	// DB is optional; without it /healthz only reports the process as up.
	DB Pinger

	// MetricsPath serves the Prometheus scrape endpoint; empty disables it.
	MetricsPath string

	SuspiciousAgents []string
	AdminIPWhitelist []string
	// TrustedProxies are the peers whose X-Forwarded-For header is believed. Empty means
	// the client address is always the TCP peer.
	TrustedProxies []string
	MaxBodyBytes   int64
}

// Server holds the handlers.
type Server struct {
	deps Deps
	auth *middleware.AuthMiddleware
}

var configureBinding sync.Once

func NewServer(deps Deps) *Server {
	configureBinding.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			service.ConfigureValidator(v)
		}
	})
	if deps.SuspiciousAgents == nil {
		deps.SuspiciousAgents = middleware.DefaultSuspiciousAgents
	}
	return &Server{deps: deps, auth: middleware.NewAuthMiddleware(deps.Auth)}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(s.deps.TrustedProxies); err != nil {
		log.Printf("Invalid trusted proxies %v, forwarded headers are ignored: %v", s.deps.TrustedProxies, err)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Metrics(s.deps.Metrics))
	r.Use(middleware.BlockSuspiciousAgents(s.deps.SuspiciousAgents, s.deps.Metrics))
	r.Use(middleware.LimitBody(s.deps.MaxBodyBytes))

	r.GET("/healthz", s.health)
	if s.deps.MetricsPath != "" && s.deps.Metrics != nil {
		r.GET(s.deps.MetricsPath, gin.WrapH(s.deps.Metrics.Handler()))
	}

	r.GET("/", s.auth.OptionalAuth(), s.home)
	r.GET("/login", s.auth.OptionalAuth(), s.loginPage)
	r.POST("/login", middleware.LoginThrottle(s.deps.Limiter, s.deps.Metrics), s.login)
	r.POST("/logout", s.logout)
	r.POST("/register", s.register)

	authed := r.Group("/", s.auth.RequireAuth())
	{
		authed.GET("/dashboard", s.customerDashboard)
		authed.GET("/agent/dashboard", s.agentDashboard)

		upload := middleware.UploadQuota(s.deps.Quota, s.deps.Metrics)
		authed.POST("/tickets", upload, s.createTicket)
		authed.GET("/tickets/:id", s.ticketDetail)
		authed.POST("/tickets/:id", upload, s.postToTicket)
		authed.POST("/tickets/:id/assign", s.assignTicket)
		authed.POST("/tickets/:id/update", s.updateTicket)
		authed.POST("/tickets/:id/reassign", s.reassignTicket)
		authed.GET("/attachments/:id", s.downloadAttachment)
	}

	admin := r.Group("/admin",
		middleware.AdminIPWhitelist(s.deps.AdminIPWhitelist, s.deps.Metrics),
		s.auth.RequireAuth(),
	)
	{
		admin.GET("/users", s.adminListUsers)
		admin.POST("/users", s.adminCreateUser)
		admin.PATCH("/users/:id", s.adminUpdateUser)
		admin.POST("/tickets", s.adminCreateTicket)
		admin.PATCH("/tickets/:id", s.adminUpdateTicket)
		admin.DELETE("/tickets/:id", s.adminDeleteTicket)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Page not found"})
	})
	return r
}

func (s *Server) health(c *gin.Context) {
	if s.deps.DB != nil {
		if err := s.deps.DB.PingContext(c.Request.Context()); err != nil {
			log.Printf("Health check: database unreachable: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down", "version": version.Short()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "up", "version": version.Short()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Short()})
}
