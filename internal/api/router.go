package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"classattend/internal/auth"
	"classattend/internal/httpmiddleware"
	"classattend/internal/observability"
)

// RouterConfig carries the cross-cutting settings of the HTTP surface.
type RouterConfig struct {
	AllowedOrigins []string
	Limiter        httpmiddleware.Limiter
	Logger         zerolog.Logger
}

// Router wires the handler's routes and middleware onto a new engine.
func Router(h *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(cfg.Logger, "/healthz", "/metrics"))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.Healthz)

	var limit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if cfg.Limiter != nil {
		limit = httpmiddleware.RateLimit(cfg.Limiter)
	}

	v1 := r.Group("/v1")
	v1.POST("/users/register", limit, h.Register)
	v1.POST("/tokens/refresh", limit, h.Refresh)

	// limited after Bearer so callers are keyed by uid
	authed := v1.Group("", auth.Bearer(h.tokens.SigningKey, h.tokens.Issuer), limit)
	authed.GET("/classes", h.ListClasses)
	authed.GET("/classes/:id", h.GetClass)
	authed.GET("/classes/:id/attendance", h.Attendance)

	instructor := authed.Group("", auth.RequireRole(auth.RoleInstructor))
	{
		instructor.POST("/classes", h.CreateClass)
		instructor.DELETE("/classes/:id", h.DeleteClass)
		instructor.POST("/classes/:id/dates", h.AddDates)
		instructor.PUT("/classes/:id/location", h.UpdateLocation)
		instructor.POST("/classes/:id/invites", h.IssueInvite)
		instructor.GET("/classes/:id/export.csv", h.Export)
		instructor.POST("/classes/:id/import", h.Import)
		instructor.POST("/sweeps", h.Sweep)
	}

	student := authed.Group("", auth.RequireRole(auth.RoleStudent))
	{
		student.POST("/invites/:code/join", h.Join)
		student.POST("/classes/:id/checkins", h.CheckIn)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
