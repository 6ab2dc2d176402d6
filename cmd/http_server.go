package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/thiagocrux/simcasi/internal"
	"github.com/thiagocrux/simcasi/internal/audit"
	auditPostgres "github.com/thiagocrux/simcasi/internal/audit/postgres"
	"github.com/thiagocrux/simcasi/internal/auth"
	authPostgres "github.com/thiagocrux/simcasi/internal/auth/postgres"
	"github.com/thiagocrux/simcasi/internal/core/events"
	"github.com/thiagocrux/simcasi/internal/secured"
	"github.com/thiagocrux/simcasi/internal/transport"
	"github.com/thiagocrux/simcasi/internal/transport/middleware"
	"github.com/thiagocrux/simcasi/internal/transport/openapi"
	"github.com/thiagocrux/simcasi/internal/transport/rest"
	"github.com/thiagocrux/simcasi/internal/user"
	userPostgres "github.com/thiagocrux/simcasi/internal/user/postgres"
	"github.com/thiagocrux/simcasi/pkg/metrics"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Gorm     *gorm.DB
	Redis    *redis.Client
	EventBus *events.EventBus
	Router   *chi.Mux
	Logger   *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	if err := setupRoutes(deps); err != nil {
		deps.Logger.Error("failed to set up routes", "error", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		deps.EventBus.Wait()
		deps.close()
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func (d *Dependencies) close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error("redis close error", "error", err)
		}
	}
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("database close error", "error", err)
	}
}

func setupRoutes(deps *Dependencies) error {
	cfg := deps.Config
	lg := deps.Logger

	if _, err := openapi.Load(context.Background()); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// stores
	users := userPostgres.NewUserRepository(deps.Gorm)
	sessions := authPostgres.NewSessionRepository(deps.Gorm)
	roles := authPostgres.NewRoleRepository(deps.Gorm)
	permissions := authPostgres.NewPermissionRepository(deps.Gorm)
	resetTokens := authPostgres.NewResetTokenRepository(deps.Gorm)
	auditLogs := auditPostgres.NewAuditRepository(deps.DB)

	auditWriter := audit.NewWriter(auditLogs)
	audit.NewSecuritySubscriber(auditWriter, lg).RegisterEventHandlers(deps.EventBus)

	hasher := auth.NewBcryptHasher(cfg.Security.BCryptCost)
	tokens := auth.NewJWTTokenGenerator(
		cfg.Security.AccessTokenSecret,
		cfg.Security.RefreshTokenSecret,
		cfg.Security.AccessTokenDuration,
		cfg.Security.RefreshTokenDuration,
		cfg.Security.Issuer,
	)

	authService, err := auth.NewService(auth.ServiceDeps{
		Users:       users,
		Sessions:    sessions,
		Roles:       roles,
		Permissions: permissions,
		ResetTokens: resetTokens,
		Tokens:      tokens,
		Hasher:      hasher,
		Events:      deps.EventBus,
		Notifier:    auth.NewLogResetNotifier(lg),
		Metrics:     m,
		Logger:      lg,
		ResetTTL:    cfg.Security.PasswordResetTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to build auth service: %w", err)
	}

	resolver := auth.NewPermissionResolver(permissions)
	gate := auth.NewGate(resolver, lg)
	cookies := transport.NewCookieWriter(cfg.Cookies)

	wrapper := secured.NewWrapper(authService, gate, authService, m, lg)
	userService := user.NewService(users, roles, sessions, resolver, hasher, auditWriter)

	var throttle *middleware.LoginThrottle
	if deps.Redis != nil {
		throttle = middleware.NewLoginThrottle(deps.Redis, cfg.Throttle)
	} else {
		lg.Warn("redis not configured, login throttle disabled")
	}

	rest.RegisterAllRoutes(deps.Router, rest.Deps{
		DB:             deps.DB.DB,
		Redis:          deps.Redis,
		AllowedOrigins: cfg.Server.Origins(),
		Metrics:        m,
		Secured:        secured.NewHTTPAdapter(wrapper, cookies, cfg.Server.OperationTimeout, lg),
		Throttle:       throttle,
		AuthHandler:    auth.NewHandler(authService, cookies, cfg.Server.OperationTimeout, lg),
		UserHandler:    user.NewHandler(userService),
		AuditHandler:   audit.NewHandler(auditLogs),
	})
	return nil
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	lg := initLogger(config)

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gdb, err := initGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	redisClient, err := initRedis(context.Background(), config.Redis)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Dependencies{
		Config:   config,
		DB:       db,
		Gorm:     gdb,
		Redis:    redisClient,
		EventBus: events.NewEventBus(lg),
		Router:   chi.NewRouter(),
		Logger:   lg,
	}, nil
}
