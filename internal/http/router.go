// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic router setup; process-wide collaborators injected via Runtime
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/solar-support-backend/docs"
	"github.com/tbourn/solar-support-backend/internal/config"
	"github.com/tbourn/solar-support-backend/internal/http/handlers"
	"github.com/tbourn/solar-support-backend/internal/http/middleware"
	"github.com/tbourn/solar-support-backend/internal/livechat"
	"github.com/tbourn/solar-support-backend/internal/llm"
	"github.com/tbourn/solar-support-backend/internal/repo"
	"github.com/tbourn/solar-support-backend/internal/search"
	"github.com/tbourn/solar-support-backend/internal/services"
)

const (
	// defaultBodyLimit caps JSON request bodies.
	defaultBodyLimit = 1 << 20

	// staffRateFactor scales rate budgets for agents and admins.
	staffRateFactor = 5
)

// Runtime carries the process-wide collaborators built by the entry point.
// Every field is optional: a nil Notifier drops notifications, a nil Fanout
// keeps HTTP-posted chat messages off the sockets, a nil Provider answers
// from the FAQ index and a nil LiveChat leaves /ws unmounted.
type Runtime struct {
	Notifier services.Notifier
	Fanout   livechat.Fanout
	Presence services.OnlineCounter
	Provider llm.Completer
	LiveChat http.Handler

	// FAQSeed is stored when the FAQ table is empty.
	FAQSeed []search.Entry
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Identity: caller id and role from headers
//  4. RedactingLogger: structured logs with PII scrubbing
//  5. Recovery: capture panics after logger
//  6. Body size limiter (uploads get their own cap)
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. CORS, security headers and gzip
func RegisterRoutes(r *gin.Engine, db *gorm.DB, rt Runtime, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Caller identity
	r.Use(middleware.Identity())

	// 4) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key",
		},
	}))

	// 5) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 6) Body size limits
	r.Use(limitBodyByRoute(defaultBodyLimit, map[string]int64{
		http.MethodPost + " " + joinPath(cfg.APIBasePath, "/files"): cfg.MaxUploadBytes + defaultBodyLimit,
	}))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics("/ws", "/metrics"))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		idempotencyLookup(db),
	))

	// 9) Token-bucket rate limiter per user/IP
	route := func(method, p string) string { return method + " " + joinPath(cfg.APIBasePath, p) }
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).
		Limit("chat", cfg.ChatRate.RPS, cfg.ChatRate.Burst, route(http.MethodPost, "/chat")).
		Limit("forms", cfg.FormRate.RPS, cfg.FormRate.Burst,
			route(http.MethodPost, "/tickets"),
			route(http.MethodPost, "/callbacks"),
			route(http.MethodPost, "/support-forms"),
			route(http.MethodPost, "/users"),
		).
		StaffFactor(staffRateFactor)
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{
		"Origin", "Content-Type", "Accept", "Authorization",
		middleware.HeaderUserID, middleware.HeaderUserRole, middleware.HeaderIdempotencyKey,
		"If-None-Match",
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
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
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		CacheControl: "private, no-cache",
		PublicPrefixes: []string{
			joinPath(cfg.APIBasePath, "/pages"),
			joinPath(cfg.APIBasePath, "/faqs"),
			joinPath(cfg.APIBasePath, "/chat/suggestion"),
		},
		PublicCacheControl: "public, max-age=60",
		DocsPrefix:         "/swagger",
		EnablePolicy:       true,
	}))

	// Compression; the websocket upgrade must see the raw writer.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws"})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if rt.LiveChat != nil {
		r.GET("/ws", gin.WrapH(rt.LiveChat))
	}

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/runtime
	chatbot := services.NewChatbotService(db, rt.Provider, cfg.Chatbot.MinScore)
	content := services.NewContentService(db, chatbot.Reload)
	primeFAQs(db, content, chatbot, rt.FAQSeed)

	h := handlers.New(handlers.Deps{
		Chatbot:        chatbot,
		Tickets:        services.NewTicketService(db, rt.Notifier),
		Callbacks:      services.NewCallbackService(db, rt.Notifier),
		Forms:          services.NewSupportFormService(db, rt.Notifier),
		Notifications:  services.NewNotificationService(db),
		LiveChat:       services.NewLiveChatService(db, rt.Fanout),
		Transfers:      services.NewTransferService(db, rt.Notifier, rt.Fanout),
		Files:          services.NewFileService(db, cfg.UploadDir, cfg.MaxUploadBytes, cfg.APIBasePath),
		Content:        content,
		Users:          services.NewUserService(db, rt.Presence),
		DB:             db,
		IdempotencyTTL: cfg.IdempotencyTTL,
	})

	staff := middleware.RequireStaff()
	admin := middleware.RequireAdmin()

	// Public API
	g := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Chatbot
		g.POST("/chat", h.Chat)
		g.GET("/chat/suggestion", h.ChatSuggestion)

		// Tickets
		g.GET("/tickets", h.ListTickets)
		g.POST("/tickets", h.CreateTicket)
		g.GET("/tickets/:id", h.GetTicket)
		g.PATCH("/tickets/:id", h.UpdateTicket)
		g.GET("/tickets/:id/history", h.TicketHistory)
		g.GET("/tickets/:id/messages", h.TicketMessages)
		g.POST("/tickets/:id/messages", h.PostTicketMessage)

		// Callbacks
		g.GET("/callbacks", staff, h.ListCallbacks)
		g.POST("/callbacks", h.CreateCallback)
		g.GET("/callbacks/:id", h.GetCallback)
		g.PATCH("/callbacks/:id", staff, h.UpdateCallback)

		// Support forms
		g.GET("/support-forms", staff, h.ListSupportForms)
		g.POST("/support-forms", h.CreateSupportForm)
		g.PATCH("/support-forms/:id", staff, h.UpdateSupportForm)

		// Notifications
		g.GET("/notifications/:id", h.ListNotifications)
		g.GET("/notifications/:id/unread-count", h.UnreadCount)
		g.PATCH("/notifications/:id/read", h.MarkNotificationRead)
		g.PATCH("/notifications/:id/archive", h.ArchiveNotification)
		g.PATCH("/notifications/:id/read-all", h.MarkAllNotificationsRead)

		// Live chat
		g.GET("/live-chat/sessions", h.ListSessions)
		g.POST("/live-chat/sessions", h.CreateSession)
		g.GET("/live-chat/sessions/:id", h.GetSession)
		g.PATCH("/live-chat/sessions/:id", h.UpdateSession)
		g.GET("/live-chat/sessions/:id/messages", h.SessionMessages)
		g.POST("/live-chat/sessions/:id/messages", h.PostSessionMessage)

		// Transfers
		g.POST("/transfers", staff, h.CreateTransfer)
		g.GET("/transfers", staff, h.PendingTransfers)
		g.GET("/transfers/:id", staff, h.GetTransfer)
		g.PATCH("/transfers/:id/accept", staff, h.AcceptTransfer)

		// Files
		g.POST("/files", h.UploadFile)
		g.GET("/files", h.ListFiles)
		g.GET("/files/:id", h.GetFile)
		g.GET("/files/:id/download", h.DownloadFile)
		g.DELETE("/files/:id", staff, h.DeleteFile)

		// Pages and sections
		g.GET("/pages", h.ListPages)
		g.POST("/pages", staff, h.CreatePage)
		g.GET("/pages/:id", h.GetPage)
		g.PATCH("/pages/:id", staff, h.UpdatePage)
		g.DELETE("/pages/:id", staff, h.DeletePage)
		g.GET("/pages/:id/sections", h.ListSections)
		g.POST("/pages/:id/sections", staff, h.CreateSection)
		g.PATCH("/page-sections/:id", staff, h.UpdateSection)
		g.DELETE("/page-sections/:id", staff, h.DeleteSection)

		// FAQs
		g.GET("/faqs", h.ListFAQs)
		g.POST("/faqs", staff, h.CreateFAQ)
		g.GET("/faqs/:id", h.GetFAQ)
		g.PATCH("/faqs/:id", staff, h.UpdateFAQ)
		g.DELETE("/faqs/:id", staff, h.DeleteFAQ)

		// Users
		g.GET("/users", staff, h.ListUsers)
		g.POST("/users", h.CreateUser)
		g.PATCH("/users/:id/role", admin, h.UpdateUserRole)
		g.GET("/agents/online", h.AgentsOnline)
	}
}

// idempotencyLookup reports whether a live key exists for the caller and
// route scope. Lookup failures count as misses.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
		if db == nil {
			return false, nil
		}
		rec, err := repo.FindIdempotency(ctx, db, repo.IdempotencyKey{Caller: userID, Scope: scope, Key: key}, now)
		if err != nil || rec == nil {
			return false, nil
		}
		return true, nil
	}
}

// primeFAQs seeds an empty FAQ table and loads the chatbot index.
func primeFAQs(db *gorm.DB, content *services.ContentService, chatbot *services.ChatbotService, seed []search.Entry) {
	if db == nil {
		return
	}
	ctx := context.Background()
	if len(seed) > 0 {
		n, err := content.SeedFAQs(ctx, seed)
		if err != nil {
			log.Warn().Err(err).Msg("faq seed failed")
		} else if n > 0 {
			log.Info().Int("count", n).Msg("faqs seeded")
			return
		}
	}
	if err := chatbot.Reload(ctx); err != nil {
		log.Warn().Err(err).Msg("faq index load failed")
	}
}

// limitBodyByRoute returns a Gin middleware that caps the request body size
// using http.MaxBytesReader. caps overrides def per route, keyed by
// "METHOD /full/path". Requests exceeding the cap will cause downstream body
// reads to error.
func limitBodyByRoute(def int64, caps map[string]int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		maxBytes := def
		if n, ok := caps[c.Request.Method+" "+c.FullPath()]; ok && n > 0 {
			maxBytes = n
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

// joinPath appends p to the API base path.
func joinPath(base, p string) string {
	if base == "" || base == "/" {
		return p
	}
	return base + p
}
