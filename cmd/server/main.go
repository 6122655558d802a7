package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"bluecarbon-mrv/backend/internal/anchor"
	"bluecarbon-mrv/backend/internal/api"
	"bluecarbon-mrv/backend/internal/auth"
	"bluecarbon-mrv/backend/internal/config"
	"bluecarbon-mrv/backend/internal/logging"
	"bluecarbon-mrv/backend/internal/mcp"
	"bluecarbon-mrv/backend/internal/repository"
	"bluecarbon-mrv/backend/internal/services"
	"bluecarbon-mrv/backend/internal/storage"
	"bluecarbon-mrv/backend/internal/tls"
	"bluecarbon-mrv/backend/internal/worker"
)

func main() {
	ctx := context.Background()

	// Initialize logging
	logger := logging.NewLogger()

	// Parse command line flags
	configFile := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		log.Fatalf("Configuration loading failed: %v", err)
	}
	logger.Info("Configuration loaded",
		"environment", cfg.Environment,
		"ml_sidecar", cfg.MLSidecar.URL,
		"anchor_enabled", cfg.Anchor.Enabled,
		"config_file", viper.ConfigFileUsed(),
	)

	logger.Info("Starting Blue Carbon MRV Service")

	// Initialize database connection
	dbPool, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		log.Fatalf("Database initialization failed: %v", err)
	}
	defer dbPool.Close()

	logger.Info("Database connected")

	// Initialize repository layer
	submissionStore := repository.NewPostgresSubmissionStore(dbPool)
	projectStore := repository.NewPostgresProjectStore(dbPool)
	modelRegistry := repository.NewPostgresModelRegistry(dbPool)

	// Initialize image storage
	imageStore, err := storage.NewMinioImageStore(storage.Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Region:    cfg.Storage.Region,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
	})
	if err != nil {
		logger.Error("Failed to initialize image storage", "error", err)
		log.Fatalf("Image storage initialization failed: %v", err)
	}
	if err := imageStore.EnsureBucket(ctx); err != nil {
		logger.Error("Failed to ensure image bucket", "error", err)
		log.Fatalf("Image bucket initialization failed: %v", err)
	}

	logger.Info("Image storage ready", "bucket", cfg.Storage.Bucket)

	// Initialize prediction capabilities. A configured sidecar provides real
	// model inference; without one the deterministic fallbacks apply.
	mangrove, temporal, biomass, capabilities := buildPredictors(ctx, cfg, modelRegistry, logger)

	carbonEngine := services.NewCarbonEngine(
		cfg.Carbon.CarbonFraction,
		cfg.Carbon.CO2ConversionFactor,
		cfg.Carbon.RiskBufferPercent,
	)

	anchorService := anchor.New(anchor.Config{
		Enabled:         cfg.Anchor.Enabled,
		RPCURL:          cfg.Anchor.RPCURL,
		RegistryAddress: cfg.Anchor.RegistryAddress,
		PrivateKey:      cfg.Anchor.PrivateKey,
	}, submissionStore, logger)

	pipeline := services.NewPipeline(
		submissionStore,
		submissionStore,
		imageStore,
		mangrove,
		temporal,
		biomass,
		carbonEngine,
		anchorService,
		logger,
		services.PipelineConfig{
			MangroveThreshold:   cfg.Pipeline.MangroveThreshold,
			DefaultAreaHectares: cfg.Pipeline.DefaultAreaHectares,
		},
	)

	dispatcher := worker.NewDispatcher(pipeline, logger, 0)
	dispatcher.Start(2)

	logger.Info("Service layer initialized")

	// Create Echo server
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("bluecarbon-mrv"))

	// Initialize authentication
	authz, err := auth.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize auth", "error", err)
		log.Fatalf("auth initialization failed: %v", err)
	}

	// Register auth handlers
	e.GET("/login", echo.WrapHandler(http.HandlerFunc(authz.LoginHandler)))
	e.GET("/auth/callback", echo.WrapHandler(http.HandlerFunc(authz.CallbackHandler)))
	e.GET("/logout", echo.WrapHandler(http.HandlerFunc(authz.LogoutHandler)))

	// Mount REST API handlers under /api/v1 with auth middleware
	apiGroup := e.Group("/api/v1")
	apiGroup.Use(echo.WrapMiddleware(authz.RequireAuth))
	apiServer := &api.Server{
		Submissions:    submissionStore,
		Projects:       projectStore,
		Pipeline:       pipeline,
		Dispatcher:     dispatcher,
		Images:         imageStore,
		Logger:         logger,
		MaxUploadBytes: cfg.Pipeline.MaxUploadSizeMB * 1024 * 1024,
		Capabilities:   capabilities,
	}
	apiServer.RegisterRoutes(e, apiGroup)

	logger.Info("REST API handlers mounted")

	// Mount MCP protocol handlers
	mcpServer := mcp.NewServer(pipeline, submissionStore, projectStore)
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
	e.Any("/mcp/*", echo.WrapHandler(mcpHandlers))

	logger.Info("MCP protocol handlers mounted")

	// Create HTTP server
	addr := ":8080"
	if cfg.TLS.Enable {
		// use TLS port 8443
		addr = ":8443"
	}
	server := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", addr, "tls", cfg.TLS.Enable)
		if cfg.TLS.Enable {
			// ensure certificate exists if requested
			if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
				logger.Error("TLS enabled but cert/key file not provided")
				serverErrors <- server.ListenAndServe()
				return
			}
			// generate if missing and hostnames provided
			if _, err := os.Stat(cfg.TLS.CertFile); os.IsNotExist(err) {
				if len(cfg.TLS.Hostnames) > 0 {
					if err := tls.GenerateSelfSignedCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames); err != nil {
						logger.Error("failed to generate self-signed cert", "error", err)
					}
				}
			}
			serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			serverErrors <- server.ListenAndServe()
		}
	}()

	// Wait for shutdown signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-shutdown:
		logger.Info("Shutdown signal received", "signal", sig)

		// Create shutdown context with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			if err := server.Close(); err != nil {
				logger.Error("Server close error", "error", err)
			}
		}

		// Drain queued pipeline runs before exiting
		dispatcher.Shutdown()

		logger.Info("Server stopped gracefully")
	}
}

// buildPredictors wires the three ML capabilities. Model versions come from
// the registry when seeded, falling back to the compiled-in defaults. The
// returned capability map feeds the detailed health report.
func buildPredictors(ctx context.Context, cfg *config.Config, registry repository.ModelRegistry, logger *logging.Logger) (
	services.MangroveVerifier, services.TemporalComparator, services.BiomassEstimator, map[string]string,
) {
	mangroveVersion := registeredVersion(ctx, registry, "mangrove_verifier", services.DefaultMangroveModelVersion, logger)
	temporalVersion := registeredVersion(ctx, registry, "temporal_comparator", services.DefaultTemporalModelVersion, logger)
	biomassVersion := registeredVersion(ctx, registry, "biomass_estimator", services.DefaultBiomassModelVersion, logger)

	if cfg.MLSidecar.URL != "" {
		client := services.NewSidecarClient(cfg.MLSidecar.URL)
		logger.Info("ML sidecar configured", "url", cfg.MLSidecar.URL)
		return services.NewSidecarMangroveVerifier(client, mangroveVersion),
			services.NewSidecarTemporalComparator(client, temporalVersion, cfg.Pipeline.GrowthThreshold),
			services.NewSidecarBiomassEstimator(client, biomassVersion),
			map[string]string{
				"mangrove": "real:" + mangroveVersion,
				"temporal": "real:" + temporalVersion,
				"biomass":  "real:" + biomassVersion,
			}
	}

	logger.Warn("No ML sidecar configured, using deterministic fallback models")
	return services.NewFallbackMangroveVerifier(),
		services.NewFallbackTemporalComparator(cfg.Pipeline.GrowthThreshold),
		services.NewFallbackBiomassEstimator(),
		map[string]string{
			"mangrove": "fallback:" + services.DefaultMangroveModelVersion,
			"temporal": "fallback:" + services.DefaultTemporalModelVersion,
			"biomass":  "fallback:" + services.DefaultBiomassModelVersion,
		}
}

func registeredVersion(ctx context.Context, registry repository.ModelRegistry, name, fallback string, logger *logging.Logger) string {
	entry, err := registry.LatestVersion(ctx, name)
	if err != nil {
		logger.Debug("model not in registry, using default version", "model", name, "version", fallback)
		return fallback
	}
	return entry.Version
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	logger.Debug("Initializing database connection")

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
