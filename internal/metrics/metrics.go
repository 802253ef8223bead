// Package metrics exposes Prometheus collectors for HTTP traffic and the
// tracker's domain events.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	AuthFailuresTotal    *prometheus.CounterVec
	DenialsTotal         *prometheus.CounterVec
	StatusTransitions    *prometheus.CounterVec
	ProjectsDeletedTotal prometheus.Counter
	TasksCascadedTotal   prometheus.Counter
	StoreOperationErrors *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry, together
// with the Go runtime and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasktracker_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tasktracker_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AuthFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasktracker_auth_failures_total",
				Help: "Rejected authentication attempts by reason",
			},
			[]string{"reason"},
		),
		DenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasktracker_authorization_denials_total",
				Help: "Operations refused by access control",
			},
			[]string{"action"},
		),
		StatusTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasktracker_task_status_transitions_total",
				Help: "Task status changes by target status",
			},
			[]string{"to"},
		),
		ProjectsDeletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tasktracker_projects_deleted_total",
			Help: "Projects deleted",
		}),
		TasksCascadedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tasktracker_tasks_cascade_deleted_total",
			Help: "Tasks removed by project deletion",
		}),
		StoreOperationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasktracker_store_errors_total",
				Help: "Unclassified store failures by operation",
			},
			[]string{"operation"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthFailuresTotal,
		m.DenialsTotal,
		m.StatusTransitions,
		m.ProjectsDeletedTotal,
		m.TasksCascadedTotal,
		m.StoreOperationErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latencies by matched route, so path
// parameters do not explode the label space.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// The recorders below are nil safe so callers can run without metrics.

func (m *Metrics) AuthFailure(reason string) {
	if m == nil {
		return
	}
	m.AuthFailuresTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) Denied(action string) {
	if m == nil {
		return
	}
	m.DenialsTotal.WithLabelValues(action).Inc()
}

func (m *Metrics) StatusChanged(to string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(to).Inc()
}

func (m *Metrics) ProjectDeleted(tasks int) {
	if m == nil {
		return
	}
	m.ProjectsDeletedTotal.Inc()
	m.TasksCascadedTotal.Add(float64(tasks))
}

func (m *Metrics) StoreError(op string) {
	if m == nil {
		return
	}
	m.StoreOperationErrors.WithLabelValues(op).Inc()
}
