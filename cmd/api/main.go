// Package main is the entrypoint for the Mailsmith API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mailsmith/mailsmith/internal/auth"
	"github.com/mailsmith/mailsmith/internal/cache"
	"github.com/mailsmith/mailsmith/internal/config"
	"github.com/mailsmith/mailsmith/internal/handler"
	"github.com/mailsmith/mailsmith/internal/llm"
	"github.com/mailsmith/mailsmith/internal/mailer"
	"github.com/mailsmith/mailsmith/internal/metrics"
	"github.com/mailsmith/mailsmith/internal/middleware"
	"github.com/mailsmith/mailsmith/internal/repository"
	"github.com/mailsmith/mailsmith/internal/server"
	"github.com/mailsmith/mailsmith/internal/service"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	// Outbound clients
	llmClient := llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout)

	var sender mailer.Sender
	if cfg.MailAPIKey == "" {
		logger.Warn("MAIL_API_KEY not set, outbound mail disabled")
		sender = mailer.NewNoop()
	} else {
		sender = mailer.NewHTTPSender(cfg.MailBaseURL, cfg.MailAPIKey, cfg.MailFrom, cfg.MailTimeout)
	}

	// Initialize services
	metricsRecorder := metrics.NewInMemory()
	tokens := auth.NewTokenManager(cfg.JWTSecret)
	accounts := service.NewAccountService(repo, repo, tokens, logger)
	otps := service.NewOTPService(repo, repo, sender, logger)
	drafts := service.NewDraftService(repo, repo, repo, llmClient, sender,
		cfg.FreePlanLifetimeLimit, metricsRecorder, logger)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(repo, cacheClient)
	authHandler := handler.NewAuthHandler(logger, accounts, otps)
	draftHandler := handler.NewDraftHandler(logger, drafts, !cfg.IsProduction())
	historyHandler := handler.NewHistoryHandler(logger, repo)
	documentHandler := handler.NewDocumentHandler(logger, repo)
	apiKeyHandler := handler.NewAPIKeyHandler(logger, repo)
	adminHandler := handler.NewAdminHandler(logger, repo, metricsRecorder)

	// Setup router
	r := setupRouter(routerDeps{
		health:    healthHandler,
		auth:      authHandler,
		draft:     draftHandler,
		history:   historyHandler,
		documents: documentHandler,
		apiKeys:   apiKeyHandler,
		admin:     adminHandler,
		tokens:    tokens,
		repo:      repo,
		cache:     cacheClient,
		metrics:   metricsRecorder,
		cfg:       cfg,
		logger:    logger,
	})

	// Create and run server
	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// routerDeps bundles everything the router needs.
type routerDeps struct {
	health    *handler.HealthHandler
	auth      *handler.AuthHandler
	draft     *handler.DraftHandler
	history   *handler.HistoryHandler
	documents *handler.DocumentHandler
	apiKeys   *handler.APIKeyHandler
	admin     *handler.AdminHandler
	tokens    *auth.TokenManager
	repo      *repository.Repository
	cache     *cache.Cache
	metrics   metrics.Recorder
	cfg       *config.Config
	logger    *slog.Logger
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(d routerDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.logger))
	r.Use(middleware.Recoverer(d.logger))

	secCfg := middleware.DefaultSecurityConfig()
	secCfg.IsDevelopment = !d.cfg.IsProduction()
	secCfg.MaxRequestBodySize = d.cfg.MaxRequestBodySize
	r.Use(middleware.Security(secCfg))
	r.Use(middleware.MaxBodySize(secCfg.MaxRequestBodySize))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = d.cfg.GetCORSAllowedOrigins()
	r.Use(middleware.CORS(corsCfg))

	// Liveness probe (no dependency checks)
	r.Get("/healthz", d.health.Healthz)

	authCfg := middleware.AuthConfig{
		Logger:  d.logger,
		Tokens:  d.tokens,
		Users:   d.repo,
		Keys:    d.repo,
		Cache:   d.cache,
		Metrics: d.metrics,
	}

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:       d.logger,
		Cache:        d.cache,
		APIEnabled:   d.cfg.RateLimitAPIEnabled,
		APIPerMinute: d.cfg.RateLimitAPIPerMinute,
		APIBurst:     d.cfg.RateLimitAPIBurst,
		AuthEnabled:  d.cfg.RateLimitAuthEnabled,
		AuthRPS:      d.cfg.RateLimitAuthRPS,
		AuthBurst:    d.cfg.RateLimitAuthBurst,
	}

	r.Route("/api", func(r chi.Router) {
		// Readiness with store/cache connectivity checks
		r.Get("/health", d.health.Health)

		// Unauthenticated auth endpoints, IP rate-limited
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitAuth(rateLimitCfg))

				r.Post("/send-otp", d.auth.SendOTP)
				r.Post("/verify-otp", d.auth.VerifyOTP)
				r.Post("/register", d.auth.Register)
				r.Post("/login", d.auth.Login)
			})

			// Account endpoints require a full session
			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(authCfg))
				r.Use(middleware.RequireSession())

				r.Get("/me", d.auth.Me)
				r.Delete("/delete-account", d.auth.DeleteAccount)
			})
		})

		// Authenticated endpoints (session or API key)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(authCfg))
			r.Use(middleware.RateLimitAPI(rateLimitCfg))

			r.With(middleware.RequireWrite()).Post("/generate", d.draft.Generate)
			r.With(middleware.RequireWrite()).Post("/improve-email", d.draft.Improve)
			r.With(middleware.RequireWrite()).Post("/send-email", d.draft.Send)

			r.Route("/email-history", func(r chi.Router) {
				r.With(middleware.RequireRead()).Get("/", d.history.List)
				r.With(middleware.RequireRead()).Get("/{email_id}", d.history.Get)
			})

			// Session-only document and key management
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireSession())

				r.Get("/preferences", d.documents.GetPreferences)
				r.Post("/preferences", d.documents.SavePreferences)
				r.Get("/tone-profile", d.documents.GetToneProfile)
				r.Post("/tone-profile", d.documents.SaveToneProfile)

				r.Route("/api-keys", func(r chi.Router) {
					r.Get("/", d.apiKeys.List)
					r.Post("/", d.apiKeys.Create)
					r.Delete("/{key_id}", d.apiKeys.Revoke)
				})
			})

			// Operator endpoints gated by the email allowlist
			r.With(middleware.RequireAdminEmail(d.cfg.GetAdminEmails())).
				Get("/admin/stats", d.admin.Stats)
		})
	})

	// 404 and 405 handlers
	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
