package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CheckIns counts check-in attempts by outcome (created, updated,
	// already_present, not_active, not_eligible, not_found, error).
	CheckIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "esas",
		Name:      "checkins_total",
		Help:      "Attendance check-in attempts by outcome.",
	}, []string{"outcome"})

	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "esas",
		Name:      "sessions_created_total",
		Help:      "Attendance sessions created.",
	})

	// BatchEntries counts batch submission entries by result (inserted, failed).
	BatchEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "esas",
		Name:      "batch_entries_total",
		Help:      "Batch attendance entries by result.",
	}, []string{"result"})

	NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "esas",
		Name:      "notifications_total",
		Help:      "Check-in notifications written by the worker.",
	})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "esas",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// GinMiddleware observes request latency per matched route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
