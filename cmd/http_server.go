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

	"github.com/flightbase/fbo-management/internal"
	"github.com/flightbase/fbo-management/internal/accesscontrol"
	accessPostgres "github.com/flightbase/fbo-management/internal/accesscontrol/postgres"
	"github.com/flightbase/fbo-management/internal/core/events"
	"github.com/flightbase/fbo-management/internal/feecalc"
	"github.com/flightbase/fbo-management/internal/fuelorder"
	fuelorderPostgres "github.com/flightbase/fbo-management/internal/fuelorder/postgres"
	"github.com/flightbase/fbo-management/internal/transport/rest"
	"github.com/flightbase/fbo-management/internal/user"
	userPostgres "github.com/flightbase/fbo-management/internal/user/postgres"
	"github.com/flightbase/fbo-management/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
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
	Config    *internal.Config
	DB        *sqlx.DB
	GormDB    *gorm.DB
	Router    *chi.Mux
	Logger    *slog.Logger
	FeeClient *feecalc.Client
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	setupRoutes(deps)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
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
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		deps.FeeClient.Shutdown()
		if err := deps.DB.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) {
	cfg := deps.Config

	// access control core
	grantStore := accessPostgres.NewRepository(deps.GormDB)
	cache := accesscontrol.NewCache(cfg.AccessControl.CacheCapacity, cfg.AccessControl.CacheTTL)
	ownership := accesscontrol.NewOwnershipRegistry(deps.Logger)
	resolver := accesscontrol.NewResolver(grantStore, cache, ownership, deps.Logger,
		accesscontrol.WithParentGroupExpansion(cfg.AccessControl.ExpandParentGroups))

	eventBus := events.NewEventBus(deps.Logger)
	accessService := accesscontrol.NewService(grantStore, grantStore, resolver, eventBus, deps.Logger)
	accessHandler := accesscontrol.NewHandler(resolver, accessService)

	// fuel orders with receipt generation through the fee service
	fuelOrderRepo := fuelorderPostgres.NewFuelOrderRepository(deps.GormDB)
	fuelOrderService := fuelorder.NewService(fuelOrderRepo, deps.FeeClient, deps.Logger)
	fuelOrderHandler := fuelorder.NewHandler(fuelOrderService)
	ownership.Register(fuelorder.ResourceType, fuelOrderService.IsOwner)

	// users
	userRepo := userPostgres.NewUserRepository(deps.DB)
	userService := user.NewService(userRepo, resolver)
	userHandler := user.NewHandler(userService)

	rest.RegisterAllRoutes(deps.Router, deps.DB.DB, resolver, accessHandler, fuelOrderHandler, userHandler, deps.Logger)
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.InitWithOptions(config.Observability.Logging.Level, config.Observability.Logging.Format)
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	feeClient := feecalc.NewClient(feecalc.Config{
		BaseURL:    config.FeeService.BaseURL,
		APIKey:     config.FeeService.APIKey,
		Timeout:    config.FeeService.Timeout,
		MaxWorkers: config.FeeService.MaxWorkers,
	}, lg)

	return &Dependencies{
		Config:    config,
		Logger:    lg,
		DB:        db,
		GormDB:    gormDB,
		Router:    chi.NewRouter(),
		FeeClient: feeClient,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
