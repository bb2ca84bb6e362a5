package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version reported by the info gauge
const Version = "1.0.0"

// Counter metrics
var (
	// Token obtain attempts
	LoginCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoprofile_login_total",
			Help: "Total number of token obtain attempts",
		},
		[]string{"result"}, // "success" or "failure"
	)

	// Signup counter
	SignupCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "geoprofile_signup_total",
			Help: "Total number of self-service registrations",
		},
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoprofile_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Authentication error counter
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoprofile_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"}, // type can be "missing_token", "invalid_token", "inactive_user", "bad_credentials" etc.
	)

	// Authorization denial counter
	AuthorizationDeniedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoprofile_authorization_denied_total",
			Help: "Total number of requests denied by the permission-or-ownership rule",
		},
		[]string{"resource", "action"},
	)

	// Resource operation counter
	ResourceOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoprofile_resource_operations_total",
			Help: "Total number of completed operations per resource",
		},
		[]string{"resource", "operation"}, // operation can be "create", "update", "delete"
	)

	// Proximity search counter
	ProximitySearchCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "geoprofile_proximity_searches_total",
			Help: "Total number of proximity searches",
		},
	)

	// Birthday mail counter
	BirthdayMailCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoprofile_birthday_mails_total",
			Help: "Total number of birthday mails by delivery result",
		},
		[]string{"result"},
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geoprofile_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geoprofile_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // operation can be "query", "insert", "update", "delete"
	)
)

// Gauge metrics
var (
	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "geoprofile_info",
			Help: "Information about the geoprofile service",
		},
		[]string{"service", "version"},
	)

	// Last birthday job run
	BirthdayJobLastRun = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "geoprofile_birthday_job_last_run_timestamp_seconds",
			Help: "Unix time of the last birthday job run",
		},
	)
)

func init() {
	// Register counters
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(SignupCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(AuthorizationDeniedCounter)
	prometheus.MustRegister(ResourceOperationCounter)
	prometheus.MustRegister(ProximitySearchCounter)
	prometheus.MustRegister(BirthdayMailCounter)

	// Register histograms
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)

	// Register gauges
	prometheus.MustRegister(InfoGauge)
	prometheus.MustRegister(BirthdayJobLastRun)
}

// SetServiceInfo publishes the service name on the info gauge
func SetServiceInfo(service string) {
	InfoGauge.With(prometheus.Labels{"service": service, "version": Version}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Execute the request handler
			err := next(c)

			// Record request duration
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			// Record metrics
			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}

// RecordLogin records a token obtain attempt
func RecordLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	LoginCounter.With(prometheus.Labels{"result": result}).Inc()
}

// RecordAuthError records an authentication error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordDenied records a request denied by the authorization rule
func RecordDenied(resource, action string) {
	AuthorizationDeniedCounter.With(prometheus.Labels{"resource": resource, "action": action}).Inc()
}

// RecordResourceOperation records a completed operation on a resource
func RecordResourceOperation(resource, operation string) {
	ResourceOperationCounter.With(prometheus.Labels{"resource": resource, "operation": operation}).Inc()
}

// RecordBirthdayMail records a birthday mail delivery result
func RecordBirthdayMail(sent bool) {
	result := "failed"
	if sent {
		result = "sent"
	}
	BirthdayMailCounter.With(prometheus.Labels{"result": result}).Inc()
}
