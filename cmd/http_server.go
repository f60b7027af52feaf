package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/frahmantamala/procure-to-pay/internal"
	"github.com/frahmantamala/procure-to-pay/internal/auth"
	authPostgres "github.com/frahmantamala/procure-to-pay/internal/auth/postgres"
	"github.com/frahmantamala/procure-to-pay/internal/core/database"
	"github.com/frahmantamala/procure-to-pay/internal/core/events"
	"github.com/frahmantamala/procure-to-pay/internal/document"
	"github.com/frahmantamala/procure-to-pay/internal/metrics"
	"github.com/frahmantamala/procure-to-pay/internal/purchaseorder"
	poPostgres "github.com/frahmantamala/procure-to-pay/internal/purchaseorder/postgres"
	"github.com/frahmantamala/procure-to-pay/internal/purchaserequest"
	prPostgres "github.com/frahmantamala/procure-to-pay/internal/purchaserequest/postgres"
	"github.com/frahmantamala/procure-to-pay/internal/report"
	reportPostgres "github.com/frahmantamala/procure-to-pay/internal/report/postgres"
	"github.com/frahmantamala/procure-to-pay/internal/transport/rest"
	"github.com/frahmantamala/procure-to-pay/internal/user"
	userPostgres "github.com/frahmantamala/procure-to-pay/internal/user/postgres"
	"github.com/frahmantamala/procure-to-pay/pkg/logger"
	"github.com/frahmantamala/procure-to-pay/pkg/storage"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
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
	Config  *internal.Config
	DB      *gorm.DB
	SQL     *sqlx.DB
	Redis   *redis.Client
	Bus     *events.EventBus
	Metrics *metrics.Recorder
	Router  *chi.Mux
	Logger  *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	lg := deps.Logger

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	lg.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		lg.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			lg.Error("Server shutdown error", "error", err)
		}
		if err := deps.Bus.Drain(ctx); err != nil {
			lg.Warn("Event handlers still running at shutdown", "error", err)
		}
		deps.close()
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("Server failed to start", "error", err)
			deps.close()
			os.Exit(1)
		}
	}

	lg.Info("Server stopped")
}

func (d *Dependencies) close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error("Redis close error", "error", err)
		}
	}
	if err := d.SQL.Close(); err != nil {
		d.Logger.Error("Database close error", "error", err)
	}
}

func initializeDependencies(ctx context.Context) (*Dependencies, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	lg := logger.Init(logger.Options{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	})

	db, err := database.Open(cfg.Database, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql.DB: %w", err)
	}

	deps := &Dependencies{
		Config: cfg,
		DB:     db,
		SQL:    sqlx.NewDb(sqlDB, database.DriverName(cfg.Database.Driver)),
		Bus:    events.NewEventBus(lg),
		Router: chi.NewRouter(),
		Logger: lg,
	}

	if cfg.Cache.Enabled {
		client, err := purchaseorder.NewRedisClient(ctx, cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		deps.Redis = client
	}
	if cfg.Observability.Metrics.Enabled {
		deps.Metrics = metrics.NewRecorder()
	}

	deps.Bus.Subscribe(events.AllEvents, events.AuditLogger(lg))
	deps.Metrics.Subscribe(deps.Bus)

	if err := setupRoutes(ctx, deps); err != nil {
		return nil, err
	}
	return deps, nil
}

func setupRoutes(ctx context.Context, deps *Dependencies) error {
	cfg := deps.Config
	lg := deps.Logger

	store, err := storage.NewLocalStorage(cfg.Storage.DocumentRoot)
	if err != nil {
		return fmt.Errorf("failed to prepare document storage: %w", err)
	}
	lg.Info("document storage ready", "root", store.Root())

	tokenGen := auth.NewJWTTokenGenerator(
		cfg.Security.JWTAccessSecret,
		cfg.Security.JWTRefreshSecret,
		cfg.Security.AccessTokenDuration,
		cfg.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(authPostgres.NewRepository(deps.DB), tokenGen, cfg.Security.BCryptCost, lg)

	cache := purchaseorder.NewDocumentCache(deps.Redis, cfg.Cache.TTL)
	if deps.Metrics != nil {
		cache.Observe(deps.Metrics.RecordCacheOperation)
	}
	orderService := purchaseorder.NewService(
		poPostgres.NewPurchaseOrderRepository(deps.DB),
		purchaseorder.NewDocuments(store),
		cache,
		lg,
	)

	extractor := document.NewExtractor(document.CommandImageReader{
		Command: cfg.Document.OCRCommand,
		Timeout: cfg.Document.OCRTimeout,
	}, lg)
	requestService := purchaserequest.NewService(purchaserequest.Deps{
		Repo:      prPostgres.NewPurchaseRequestRepository(deps.DB),
		Tx:        database.NewTransactionManager(deps.DB),
		Orders:    orderService,
		Extractor: extractor,
		Receipts:  document.NewReceiptValidator(extractor, lg),
		Files:     store,
		Events:    deps.Bus,
		Logger:    lg,
	})

	var spec *rest.OpenAPISpec
	if cfg.Server.OpenAPIPath != "" {
		spec, err = rest.LoadOpenAPI(ctx, cfg.Server.OpenAPIPath)
		if err != nil {
			return err
		}
	}

	checks := map[string]rest.Checker{}
	if deps.Redis != nil {
		checks["cache"] = func(ctx context.Context) error { return deps.Redis.Ping(ctx).Err() }
	}

	rest.RegisterAllRoutes(deps.Router, rest.Handlers{
		Auth:     auth.NewHandler(authService, lg),
		RBAC:     auth.NewRBACAuthorization(lg),
		User:     user.NewHandler(user.NewService(userPostgres.NewRepository(deps.DB)), lg),
		Requests: purchaserequest.NewHandler(requestService, cfg.Server.MaxUploadBytes, lg),
		Orders:   purchaseorder.NewHandler(orderService, requestService, lg),
		Reports:  report.NewHandler(report.NewService(reportPostgres.NewReportRepository(deps.SQL)), lg),
		Health:   rest.NewHealthHandler(deps.SQL, checks),
	}, rest.Options{
		AllowedOrigins: splitOrigins(cfg.Server.AllowedOrigins),
		Metrics:        deps.Metrics,
		MetricsPath:    cfg.Observability.Metrics.Path,
		OpenAPI:        spec,
	}, lg)
	return nil
}

func splitOrigins(raw string) []string {
	var out []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}
