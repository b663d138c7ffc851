package middleware

import (
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/itdesk-io/itdesk/internal/auth"
	"github.com/itdesk-io/itdesk/internal/metrics"
	"github.com/itdesk-io/itdesk/internal/storage"
)

// DefaultSuspiciousAgents are scanner signatures refused outright.
var DefaultSuspiciousAgents = []string{"sqlmap", "nikto", "nessus", "openvas", "nmap"}

func forbid(c *gin.Context, message string) {
	if WantsJSON(c) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": message})
		return
	}
	c.String(http.StatusForbidden, message)
	c.Abort()
}

// BlockSuspiciousAgents refuses requests whose User-Agent contains a scanner name.
func BlockSuspiciousAgents(agents []string, m *metrics.Metrics) gin.HandlerFunc {
	lowered := make([]string, 0, len(agents))
	for _, a := range agents {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			lowered = append(lowered, a)
		}
	}
	return func(c *gin.Context) {
		ua := strings.ToLower(c.Request.UserAgent())
		for _, a := range lowered {
			if strings.Contains(ua, a) {
				log.Printf("Blocked suspicious user agent from %s: %s", c.ClientIP(), c.Request.UserAgent())
				m.SecurityBlock(metrics.BlockUserAgent)
				forbid(c, "Access denied")
				return
			}
		}
		c.Next()
	}
}

// LoginThrottle stops login attempts from a client IP that has used up its failures.
// Attempts are reserved and counted by the login service.
func LoginThrottle(limiter *auth.LoginRateLimiter, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		ip := c.ClientIP()
		blocked, err := limiter.IsBlocked(c.Request.Context(), ip)
		if err != nil {
			log.Printf("Login throttle check failed for %s: %v", ip, err)
		}
		if blocked {
			log.Printf("Too many login attempts from %s", ip)
			m.SecurityBlock(metrics.BlockLoginThrottle)
			m.Login(metrics.LoginThrottled)
			forbid(c, "Too many login attempts. Please try again later.")
			return
		}
		c.Next()
	}
}

// UploadQuota enforces the daily per-IP file count on multipart requests. The files of
// an accepted request are counted before the handler runs.
func UploadQuota(quota *storage.UploadQuota, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost || !strings.HasPrefix(c.ContentType(), "multipart/") {
			c.Next()
			return
		}
		form, err := c.MultipartForm()
		if err != nil {
			c.Next()
			return
		}
		files := 0
		for _, fhs := range form.File {
			files += len(fhs)
		}
		if files == 0 {
			c.Next()
			return
		}

		ip := c.ClientIP()
		exceeded, err := quota.Exceeded(c.Request.Context(), ip)
		if err != nil {
			log.Printf("Upload quota check failed for %s: %v", ip, err)
		}
		if exceeded {
			log.Printf("Daily upload limit reached for %s", ip)
			m.SecurityBlock(metrics.BlockUploadQuota)
			forbid(c, "Daily file upload limit exceeded")
			return
		}
		if err := quota.Record(c.Request.Context(), ip, files); err != nil {
			log.Printf("Failed to record uploads for %s: %v", ip, err)
		}
		c.Next()
	}
}

// AdminIPWhitelist limits the routes it wraps to the listed addresses or CIDR ranges.
// An empty list allows everyone.
func AdminIPWhitelist(allowed []string, m *metrics.Metrics) gin.HandlerFunc {
	var nets []*net.IPNet
	ips := make(map[string]bool)
	for _, entry := range allowed {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if _, n, err := net.ParseCIDR(entry); err == nil {
			nets = append(nets, n)
			continue
		}
		ips[entry] = true
	}
	open := len(nets) == 0 && len(ips) == 0

	return func(c *gin.Context) {
		if open {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if ips[ip] {
			c.Next()
			return
		}
		if parsed := net.ParseIP(ip); parsed != nil {
			for _, n := range nets {
				if n.Contains(parsed) {
					c.Next()
					return
				}
			}
		}
		log.Printf("Unauthorized admin access attempt from IP: %s", ip)
		m.SecurityBlock(metrics.BlockIPWhitelist)
		forbid(c, "Access denied to admin area")
	}
}

// LimitBody caps the request body size.
func LimitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
