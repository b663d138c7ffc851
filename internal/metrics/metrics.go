package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application collectors. Each instance registers with its own
// registerer so tests can build as many as they like.
type Metrics struct {
	gatherer prometheus.Gatherer

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	logins          *prometheus.CounterVec
	uploads         *prometheus.CounterVec
	outcomes        *prometheus.CounterVec
	securityBlocks  *prometheus.CounterVec
}

// New registers the collectors with a fresh registry that also carries the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWithRegistry(reg, reg)
}

func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: gatherer,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "itdesk_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "itdesk_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "itdesk_logins_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "itdesk_uploads_total",
			Help: "Uploaded files by result",
		}, []string{"result"}),
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "itdesk_action_outcomes_total",
			Help: "User actions by flash level",
		}, []string{"level"}),
		securityBlocks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "itdesk_security_blocks_total",
			Help: "Requests rejected by the security middleware, by reason",
		}, []string{"reason"}),
	}
}

// Login results.
const (
	LoginSuccess   = "success"
	LoginFailure   = "failure"
	LoginThrottled = "throttled"
)

// Security block reasons.
const (
	BlockUserAgent     = "user_agent"
	BlockLoginThrottle = "login_throttle"
	BlockUploadQuota   = "upload_quota"
	BlockIPWhitelist   = "ip_whitelist"
)

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

// Uploads counts files; accepted is false for a rejected upload.
func (m *Metrics) Uploads(n int, accepted bool) {
	if m == nil || n <= 0 {
		return
	}
	result := "accepted"
	if !accepted {
		result = "rejected"
	}
	m.uploads.WithLabelValues(result).Add(float64(n))
}

func (m *Metrics) Outcome(level string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(level).Inc()
}

func (m *Metrics) SecurityBlock(reason string) {
	if m == nil {
		return
	}
	m.securityBlocks.WithLabelValues(reason).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
