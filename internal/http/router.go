// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/scan-pipeline/docs"
	"github.com/tbourn/scan-pipeline/internal/config"
	"github.com/tbourn/scan-pipeline/internal/domain"
	"github.com/tbourn/scan-pipeline/internal/http/handlers"
	"github.com/tbourn/scan-pipeline/internal/http/middleware"
)

// defaultBodyLimit caps JSON bodies; uploads carry their own limit.
const defaultBodyLimit = 1 << 20

var (
	allowHeaders = []string{
		"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID", "If-None-Match",
		middleware.HeaderSessionID, middleware.HeaderIdempotencyKey,
	}
	exposeHeaders = []string{"X-Request-ID", "Content-Length", "ETag", middleware.HeaderIdempotencyReplayed}
	allowMethods  = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. AccessLog: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter (uploads excluded)
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per session/IP, bypass on replay)
//  9. CORS and Security headers
//  10. Gzip (event streams excluded)
//
// lookup answers the idempotency validator; nil disables replay detection
// at the middleware level (handlers still replay through d.Idempotency).
func RegisterRoutes(r *gin.Engine, d handlers.Deps, lookup middleware.IdempotencyLookup, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	base := strings.TrimRight(cfg.APIBasePath, "/")
	analyzePath := base + "/analyze"
	eventsPath := base + "/events"

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.AccessLog(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB); the upload route enforces its own
	r.Use(limitBody(defaultBodyLimit, analyzePath))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen:     200,
			Collection: collectionFor(base),
		},
		lookup,
	))

	// 8) Token-bucket rate limiter per session/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClient(), "/health", "/ready", "/metrics")
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     allowMethods,
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     allowMethods,
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// 10) Compression; a gzip writer would buffer the event stream
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{eventsPath, "/metrics"})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	h := handlers.New(d)

	// Liveness/readiness
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = base
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Public API
	api := groupWithPrefix(r, base)
	{
		// Analysis
		api.POST("/analyze", h.Analyze)
		api.GET("/analyze/:id", h.JobStatus)

		// Events and toasts
		api.GET("/events", h.Events)
		api.GET("/sessions/:sid/toasts", h.ListToasts)
		api.POST("/sessions/:sid/toasts", h.CreateToast)
		api.DELETE("/sessions/:sid/toasts/:toastId", h.DismissToast)

		// Scans
		api.GET("/scans", h.ListScans)
		api.POST("/scans", h.CreateScan)
		api.PUT("/scans/:id", h.UpdateScan)

		// Appointments
		api.GET("/appointments", h.ListAppointments)
		api.POST("/appointments", h.CreateAppointment)
		api.PUT("/appointments", h.UpdateAppointment)
		api.PUT("/appointments/:id", h.UpdateAppointment)

		// Messages
		api.GET("/messages", h.ListMessages)
		api.POST("/messages", h.PostMessage)
		api.PUT("/messages/:id", h.UpdateMessage)
	}
}

// collectionFor maps a matched route to the record collection it creates
// into, for idempotency scoping.
func collectionFor(base string) func(*gin.Context) string {
	routes := map[string]domain.Collection{
		base + "/scans":        domain.CollectionScans,
		base + "/appointments": domain.CollectionAppointments,
		base + "/messages":     domain.CollectionMessages,
	}
	return func(c *gin.Context) string {
		return string(routes[c.FullPath()])
	}
}

// limitBody returns a Gin middleware that caps the request body size to
// maxBytes using http.MaxBytesReader, except on the listed paths. Requests
// exceeding the cap will cause downstream body reads to error.
func limitBody(maxBytes int64, skip ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, p := range skip {
			if c.Request.URL.Path == p {
				c.Next()
				return
			}
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
