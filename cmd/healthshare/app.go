package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/healthshare/healthshare/internal/config"
	"github.com/healthshare/healthshare/internal/domain/consent"
	"github.com/healthshare/healthshare/internal/domain/observation"
	"github.com/healthshare/healthshare/internal/domain/sharing"
	"github.com/healthshare/healthshare/internal/platform/auth"
	"github.com/healthshare/healthshare/internal/platform/cache"
	"github.com/healthshare/healthshare/internal/platform/db"
	"github.com/healthshare/healthshare/internal/platform/delivery"
	"github.com/healthshare/healthshare/internal/platform/hipaa"
	"github.com/healthshare/healthshare/internal/platform/kvstore"
	"github.com/healthshare/healthshare/internal/platform/metrics"
	"github.com/healthshare/healthshare/internal/platform/middleware"
	"github.com/healthshare/healthshare/internal/platform/permission"
)

// idempotencyTTL bounds how long a share response can be replayed.
const idempotencyTTL = 24 * time.Hour

type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	metrics metrics.Recorder
	backend *kvstore.Backend
	source  *observation.FixtureSource
	consent *consent.Service
	sharing *sharing.Service
	issuer  *auth.Issuer
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// newApp opens the store and builds the services from cfg.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	rec := metrics.New(cfg.MetricsEnabled)

	sealer, err := hipaa.SealerFromHex(cfg.EncryptionKey, logger)
	if err != nil {
		return nil, err
	}

	backend, err := kvstore.Open(ctx, kvstore.Options{
		Driver:      cfg.StoreDriver,
		LevelDBPath: cfg.LevelDBPath,
		RedisURL:    cfg.RedisURL,
		RedisPrefix: "healthshare:",
		DatabaseURL: cfg.DatabaseURL,
		Compression: cfg.StoreCompression,
		Sealer:      sealer,
		Metrics:     rec,
	}, logger)
	if err != nil {
		return nil, err
	}

	submitter, err := delivery.New(cfg.DeliveryMode, cfg.DeliveryEndpoint, cfg.DeliverySecret, logger)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	capability := permission.New(cfg.HealthPlatform, permission.Options{Latency: cfg.PermissionLatency}, logger)
	source := observation.NewFixtureSource(backend.Store, logger)
	consentSvc := consent.NewService(consent.NewStore(backend.Store, logger), capability, source, rec, logger)
	history := sharing.NewHistoryStore(backend.Store, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: rec,
		backend: backend,
		source:  source,
		consent: consentSvc,
		sharing: sharing.NewService(consentSvc, source, history, submitter, rec, logger),
		issuer:  auth.NewIssuer(cfg.AuthIssuer, cfg.SigningKey(), cfg.AuthPasswordHash, cfg.AuthTokenTTL),
	}, nil
}

func (a *app) Close() error {
	return a.backend.Close()
}

// routes builds the HTTP server.
func (a *app) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(metrics.Middleware(a.metrics))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  a.cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:  []string{"Authorization", "Content-Type", middleware.RequestIDHeader, cache.HeaderIdempotencyKey},
		ExposeHeaders: []string{middleware.RequestIDHeader, cache.HeaderReplayed, "Retry-After"},
	}))
	e.Use(middleware.BodyLimit(a.cfg.BodyLimit))

	// Auth middleware
	jwtCfg := a.issuer.Config()
	if a.cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	// API groups
	apiV1 := e.Group("/api/v1")
	fhirGroup := e.Group("/fhir")

	auth.NewHandler(a.issuer).RegisterRoutes(apiV1, fhirGroup)
	consent.NewHandler(a.consent).RegisterRoutes(apiV1, fhirGroup)

	idempotencyCache := cache.New(a.cfg.IdempotencyCacheMB, idempotencyTTL, a.logger)
	sharing.NewHandler(a.sharing,
		cache.Idempotency(idempotencyCache, a.metrics, a.logger),
		middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: a.cfg.ShareRateLimitRPS,
			BurstSize:         a.cfg.ShareRateBurst,
		}),
	).RegisterRoutes(apiV1, fhirGroup)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/store", db.HealthHandler(a.backend.Driver, a.backend.Pinger, a.backend.Details))
	e.GET("/metrics", echo.WrapHandler(a.metrics.Handler()))

	return e
}
