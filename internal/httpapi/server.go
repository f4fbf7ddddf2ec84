package httpapi

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"esas/internal/account"
	"esas/internal/attendance"
	"esas/internal/auth"
	"esas/internal/config"
	"esas/internal/httpmiddleware"
	"esas/internal/metrics"
	"esas/internal/notify"
	"esas/internal/queue"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Deps is everything the HTTP layer needs.
type Deps struct {
	Config        config.App
	Attendance    *attendance.Service
	Accounts      *account.Service
	Notifications notify.Store
	// Queue receives check-in events; nil disables publishing.
	Queue  queue.Queue
	Health map[string]HealthCheck
}

type api struct {
	Deps
}

// NewRouter builds the gin engine with every route and middleware mounted.
func NewRouter(d Deps) *gin.Engine {
	a := &api{Deps: d}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(metrics.GinMiddleware())
	r.Use(httpmiddleware.NewSimpleTokenBucket(d.Config.RateLimitPerMin, d.Config.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", a.healthz)

	loginLimiter := httpmiddleware.NewSimpleTokenBucket(d.Config.LoginRateLimitPerMin, d.Config.LoginRateLimitPerMin)
	r.POST("/login", loginLimiter.KeyedMiddleware("login:", func(c *gin.Context) string { return c.ClientIP() }), a.login)

	authed := r.Group("", auth.Required(d.Config.JWTSigningKey, d.Config.JWTIssuer))
	authed.POST("/attendance/record", a.legacyRecord)

	lecturer := authed.Group("/lecturer", auth.RequireRole(auth.RoleLecturer))
	lecturer.POST("/sessions", a.createSession)
	lecturer.GET("/assignments/:assignment_id/sessions", a.listAssignmentSessions)
	lecturer.POST("/sessions/:session_id/mark-present", a.markPresent)
	lecturer.POST("/sessions/:session_id/records", a.submitBatch)
	lecturer.GET("/sessions/:session_id/attendance", a.listSessionRecords)
	lecturer.PUT("/records/:record_id", a.updateRecord)
	lecturer.DELETE("/records/:record_id", a.deleteRecord)

	student := authed.Group("/student", auth.RequireRole(auth.RoleStudent))
	student.GET("/attendance", a.studentAttendance)
	student.GET("/notifications", a.studentNotifications)
	student.GET("/qr-code", a.studentQRCode)

	admin := authed.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/attendance-sessions", a.adminListSessions)
	admin.POST("/attendance-sessions", a.createSession)
	admin.GET("/attendance-sessions/:session_id", a.adminGetSession)
	admin.PUT("/attendance-sessions/:session_id", a.adminUpdateSession)
	admin.DELETE("/attendance-sessions/:session_id", a.adminDeleteSession)
	admin.GET("/attendance-records", a.adminListRecords)
	admin.POST("/attendance-records", a.adminCreateRecord)
	admin.GET("/attendance-records/:record_id", a.getRecord)
	admin.PUT("/attendance-records/:record_id", a.updateRecord)
	admin.DELETE("/attendance-records/:record_id", a.deleteRecord)
	admin.GET("/notifications", a.adminListNotifications)

	return r
}

func (a *api) healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range a.Health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// actor maps the token claims set by auth.Required onto a service caller.
func actor(c *gin.Context) attendance.Actor {
	claims, _ := auth.FromContext(c)
	return attendance.Actor{Role: claims.Role, EntityID: claims.EntityID}
}

// publishCheckIn enqueues a notification event. Failures are logged and never
// fail the request that produced the record.
func (a *api) publishCheckIn(recordID string) {
	if a.Queue == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.Queue.Publish(ctx, queue.Message{Type: queue.TypeCheckIn, Body: []byte(recordID)}); err != nil {
		log.Printf("queue publish failed for record %s: %v", recordID, err)
	}
}

// corsMiddleware allows browser clients from any origin.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// HSTS only in release mode
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
