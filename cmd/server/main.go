package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"familytree/internal/config"
	"familytree/internal/database"
	"familytree/internal/handlers"
	"familytree/internal/logging"
	"familytree/internal/notify"
	"familytree/internal/repository"
	"familytree/internal/security"
	"familytree/internal/service"
	"familytree/internal/storage"
)

const purgeInterval = time.Hour

// app holds what main needs after initialization
type app struct {
	db      *database.DB
	handler http.Handler
	limiter *security.RateLimiter
	pending *service.PendingService
}

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel)

	if err := run(cfg); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Serve the startup status while the database and services come up
	gate := handlers.NewStartupGate()
	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      gate,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "addr", addr, "env", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	a, err := initialize(ctx, cfg)
	if err != nil {
		shutdown(server)
		return err
	}
	defer a.db.Close()
	defer a.limiter.Stop()

	gate.SetHandler(a.handler)
	handlers.MarkReady()
	slog.Info("Server ready", "url", cfg.AppBaseURL)

	go purgeReviewed(ctx, a.pending, cfg.PendingRetention)

	select {
	case <-ctx.Done():
		slog.Info("Server shutting down...")
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdown(server)
	return nil
}

func initialize(ctx context.Context, cfg *config.Config) (*app, error) {
	handlers.SetCurrentStep(handlers.StepDatabase)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("Database connection established", "type", cfg.DatabaseType)
	handlers.CompleteStep(handlers.StepDatabase)

	handlers.SetCurrentStep(handlers.StepMigrations)
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Migrations completed successfully")
	handlers.CompleteStep(handlers.StepMigrations)

	handlers.SetCurrentStep(handlers.StepServices)
	a, authService, err := buildApp(ctx, cfg, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	handlers.CompleteStep(handlers.StepServices)

	handlers.SetCurrentStep(handlers.StepBootstrap)
	if _, err := authService.Bootstrap(cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword, cfg.BootstrapAdminName); err != nil {
		a.limiter.Stop()
		db.Close()
		return nil, fmt.Errorf("failed to bootstrap admin: %w", err)
	}
	handlers.CompleteStep(handlers.StepBootstrap)

	return a, nil
}

func buildApp(ctx context.Context, cfg *config.Config, db *database.DB) (*app, *service.AuthService, error) {
	// Repositories
	memberRepo := repository.NewMemberRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	linkRepo := repository.NewBranchLinkRepository(db)

	// Services
	flagService := service.NewFeatureFlagService(repository.NewFeatureFlagRepository(db))
	if err := flagService.Load(); err != nil {
		return nil, nil, err
	}

	store, err := storage.New(ctx, storage.Options{
		Backend:   cfg.ImageStorage,
		LocalDir:  cfg.ImageLocalDir,
		S3Bucket:  cfg.ImageS3Bucket,
		S3Prefix:  cfg.ImageS3Prefix,
		AWSRegion: cfg.AWSRegion,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize image storage: %w", err)
	}

	emailSender, err := notify.NewSESEmailSender(ctx, cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize email: %w", err)
	}
	smsSender, err := notify.NewSNSSMSSender(ctx, cfg.AWSRegion, cfg.SNSSenderID, cfg.SMSEnabled)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize sms: %w", err)
	}
	notifier := notify.NewNotifier(emailSender, smsSender, adminRepo, flagService, cfg.AppBaseURL)

	memberService := service.NewMemberService(memberRepo)
	historyService := service.NewHistoryService(repository.NewHistoryRepository(db), memberService)
	snapshotService := service.NewSnapshotService(repository.NewSnapshotRepository(db), memberRepo)
	backupService := service.NewBackupService(memberRepo, snapshotService, flagService)
	linkService := service.NewBranchLinkService(linkRepo, memberService, flagService)
	pendingService := service.NewPendingService(repository.NewPendingRepository(db), linkRepo, memberService, flagService, notifier)
	imageService := service.NewImageService(repository.NewImageRepository(db), memberService, flagService, store, cfg.UploadMaxSize)
	authService := service.NewAuthService(adminRepo, security.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL))

	// Handlers
	limiter := security.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	limiter.TrustProxy = cfg.TrustProxy
	router := handlers.NewRouter(handlers.Handlers{
		Middleware: handlers.NewMiddleware(authService, limiter, cfg.CORSOrigins),
		Metrics:    handlers.NewMetrics(),
		Health:     handlers.NewHealthHandler(db),
		Auth: handlers.NewAuthHandler(
			authService,
			handlers.NewGoogleConfig(cfg.GoogleClientID, cfg.GoogleClientSecret),
			security.NewStateSigner(cfg.OAuthStateSecret),
			cfg.OAuthRedirectBaseURL,
			cfg.AppBaseURL,
		),
		Admin:       handlers.NewAdminHandler(authService, flagService, backupService),
		Members:     handlers.NewMemberHandler(memberService, historyService),
		Snapshots:   handlers.NewSnapshotHandler(snapshotService),
		Pending:     handlers.NewPendingHandler(pendingService),
		BranchLinks: handlers.NewBranchLinkHandler(linkService),
		Images:      handlers.NewImageHandler(imageService, cfg.UploadMaxSize),
		Public:      handlers.NewPublicHandler(memberService, pendingService, flagService),
	})

	return &app{
		db:      db,
		handler: router,
		limiter: limiter,
		pending: pendingService,
	}, authService, nil
}

// purgeReviewed periodically removes reviewed submissions past retention
func purgeReviewed(ctx context.Context, pending *service.PendingService, retention time.Duration) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := pending.PurgeReviewed(retention)
			if err != nil {
				slog.Error("Error purging reviewed submissions", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("Reviewed submissions purged", "count", n)
			}
		}
	}
}

func shutdown(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}
