package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/upb/leads-guard/auth"
	"github.com/upb/leads-guard/config"
	"github.com/upb/leads-guard/internal/policy"
	"github.com/upb/leads-guard/middleware"
	"github.com/upb/leads-guard/repositories"
	"github.com/upb/leads-guard/repositories/postgres"
	"github.com/upb/leads-guard/services/access"
	"github.com/upb/leads-guard/services/audit"
	"github.com/upb/leads-guard/services/prompt"
	"github.com/upb/leads-guard/services/schema"
	"go.uber.org/zap"
)

// errAuthNotConfigured is returned for every token when no secret is set
var errAuthNotConfigured = errors.New("authentication not configured")

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Users        repositories.UserRepository
	Leads        repositories.LeadRepository
	Schema       *schema.CachedProvider
	AuditRecords repositories.AuditRepository
	TxManager    repositories.TransactionManager

	// Services
	Catalog      *policy.Catalog
	Screen       *prompt.ScreenService
	AuditService *audit.AuditService
	Access       *access.Service

	// Auth
	AuthMiddleware *middleware.AuthMiddleware

	schemaStop chan struct{}
	closeOnce  sync.Once
	closeErr   error
}

// NewDependencies opens the database, creates missing tables and wires
// every service on top of it.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := factory.GetDB().PingContext(ctx); err != nil {
		_ = factory.Close()
		return nil, fmt.Errorf("failed to initialize database: database ping failed: %w", err)
	}

	if err := factory.InitSchema(ctx); err != nil {
		_ = factory.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))

	return NewDependenciesFromFactory(cfg, factory, logger)
}

// NewDependenciesFromFactory wires services over an already opened factory.
// It runs no SQL.
func NewDependenciesFromFactory(cfg *config.Config, factory *postgres.RepositoryFactory, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:      cfg,
		Logger:      logger,
		RepoFactory: factory,
		DB:          factory.GetDB(),
	}

	deps.initRepositories()

	if err := deps.initServices(cfg); err != nil {
		_ = deps.Close(context.Background())
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := deps.initAuth(cfg); err != nil {
		_ = deps.Close(context.Background())
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Users = repos.Users
	d.Leads = repos.Leads
	d.AuditRecords = repos.AuditRecords
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Schema = schema.NewCachedProvider(repos.Schema, d.Logger, schema.Config{
		TTL:        d.Config.Query.SchemaCacheTTL,
		MaxEntries: d.Config.Query.SchemaCacheMax,
	})
	d.schemaStop = make(chan struct{})
	interval := d.Config.Query.SchemaCacheTTL
	if interval <= 0 {
		interval = schema.DefaultConfig().TTL
	}
	go d.Schema.StartCleanupWorker(interval, d.schemaStop)

	d.Logger.Info("repositories initialized")
}

func (d *Dependencies) initServices(cfg *config.Config) error {
	d.AuditService = audit.NewAuditService(d.AuditRecords, d.Logger, audit.Config{
		BufferSize:      cfg.Audit.BufferSize,
		WorkerCount:     cfg.Audit.WorkerCount,
		WriteTimeout:    cfg.Audit.WriteTimeout,
		UnhealthyWindow: cfg.Audit.UnhealthyWindow,
	})
	if err := d.AuditService.Start(); err != nil {
		return fmt.Errorf("failed to start audit service: %w", err)
	}

	screen, err := prompt.NewScreenServiceFromConfig(cfg.Screen, d.Logger)
	if err != nil {
		return err
	}
	d.Screen = screen

	d.Catalog = policy.NewCatalog()
	d.Access = access.NewService(
		d.Screen,
		d.Catalog,
		d.Schema,
		d.Leads,
		d.TxManager,
		d.AuditService,
		access.Config{
			MaxRows: cfg.Query.MaxRows,
			Timeout: cfg.Query.Timeout,
		},
		d.Logger,
	)
	return nil
}

func (d *Dependencies) initAuth(cfg *config.Config) error {
	if cfg.Auth.JWTSecret == "" {
		d.Logger.Warn("JWT_SECRET not set, protected routes will reject every token")
		d.AuthMiddleware = middleware.NewAuthMiddleware(rejectAllValidator{}, d.Users, d.Logger)
		return nil
	}

	validator, err := auth.NewHMACValidator(auth.Config{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	})
	if err != nil {
		return err
	}
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Users, d.Logger)
	d.Logger.Info("token validation enabled", zap.Bool("issuer_checked", cfg.Auth.Issuer != ""))
	return nil
}

// rejectAllValidator rejects all tokens (used when no secret is configured)
type rejectAllValidator struct{}

func (rejectAllValidator) ValidateToken(context.Context, string) (*auth.ParsedClaims, error) {
	return nil, errAuthNotConfigured
}

// Close drains pending audit records and then closes the database. Calling
// it again returns the first result.
func (d *Dependencies) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.closeErr = d.close(ctx)
	})
	return d.closeErr
}

func (d *Dependencies) close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.schemaStop != nil {
		close(d.schemaStop)
	}

	// Audit records must reach the database before the pool closes
	if d.AuditService != nil {
		timeout := audit.DefaultConfig().WriteTimeout
		if d.Config != nil && d.Config.Server.ShutdownTimeout > 0 {
			timeout = d.Config.Server.ShutdownTimeout
		}
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining > 0 && remaining < timeout {
				timeout = remaining
			}
		}
		if err := d.AuditService.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to drain audit records: %w", err))
		}
	}

	// Close database connection
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	// Sync logger
	_ = d.Logger.Sync()

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %w", errors.Join(errs...))
	}

	return nil
}
