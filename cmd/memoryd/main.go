package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/zcb617/openclaw-memory-pro/config"
	"github.com/zcb617/openclaw-memory-pro/pkg/api"
	"github.com/zcb617/openclaw-memory-pro/pkg/api/events"
	"github.com/zcb617/openclaw-memory-pro/pkg/api/handlers"
	"github.com/zcb617/openclaw-memory-pro/pkg/logger"
	"github.com/zcb617/openclaw-memory-pro/pkg/memory"
	"github.com/zcb617/openclaw-memory-pro/pkg/memory/embed"
	"github.com/zcb617/openclaw-memory-pro/pkg/memory/rerank"
	"github.com/zcb617/openclaw-memory-pro/pkg/metrics"
	"github.com/zcb617/openclaw-memory-pro/pkg/telemetry/tracing"
	"github.com/zcb617/openclaw-memory-pro/pkg/version"
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	versionFlag = flag.Bool("version", false, "Print version information")
	helpFlag    = flag.Bool("help", false, "Print help information")

	// CLI overrides
	appName    = flag.String("app-name", "", "Override app name")
	serverPort = flag.Int("port", 0, "Override server port")
	logLevel   = flag.String("log-level", "", "Override log level")
	debugMode  = flag.Bool("debug", false, "Enable debug mode")
)

func main() {
	flag.Parse()

	// Print help
	if *helpFlag {
		printHelp()
		os.Exit(0)
	}

	// Print version
	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	// Build CLI overrides map
	overrides := buildOverrides()

	// Load configuration
	cfg, err := config.Load(*configPath, overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration:\n%s\n", err)
		os.Exit(1)
	}

	// Initialize logger with configuration
	logCfg := &logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if cfg.App.Debug || *debugMode {
		logCfg.Level = logger.DebugLevel
	}
	log := logger.New(logCfg)
	logger.SetGlobal(log)

	log.Info("Starting memoryd",
		"version", version.Version,
		"buildTime", version.BuildTime,
		"gitCommit", version.GitCommit,
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
	)

	log.Debug("Configuration loaded", "config", cfg.String())

	// Create root context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize tracing
	if cfg.Tracing.Enabled {
		shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.App.Name, version.Version)
		if err != nil {
			log.Error("Failed to initialize tracing", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				log.Error("Error shutting down tracing", "error", err)
			}
		}()
		log.Info("Initialized tracing", "exporter", cfg.Tracing.Exporter, "endpoint", cfg.Tracing.Endpoint)
	}

	// Open the persistent entry store
	badgerOpts := badger.DefaultOptions(cfg.Storage.Badger.Path).
		WithSyncWrites(cfg.Storage.Badger.SyncWrites).
		WithLogger(nil)
	if cfg.Storage.Badger.ValueLogFileSize > 0 {
		badgerOpts = badgerOpts.WithValueLogFileSize(cfg.Storage.Badger.ValueLogFileSize)
	}
	if cfg.Storage.Badger.NumVersionsToKeep > 0 {
		badgerOpts = badgerOpts.WithNumVersionsToKeep(cfg.Storage.Badger.NumVersionsToKeep)
	}
	db, err := badger.Open(badgerOpts)
	if err != nil {
		log.Error("Failed to open Badger storage", "path", cfg.Storage.Badger.Path, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing storage", "error", err)
		}
	}()
	log.Info("Initialized Badger storage", "path", cfg.Storage.Badger.Path)

	store := memory.NewTieredStorage(
		memory.NewL1Cache(cfg.Memory.L1CacheSize),
		memory.NewL2Badger(db),
	)

	// Initialize metrics manager
	metricsCfg := metrics.Config{
		Enabled:                  cfg.Metrics.Enabled,
		Port:                     cfg.Metrics.Port,
		Path:                     cfg.Metrics.Path,
		RetrievalDurationBuckets: metrics.DefaultConfig().RetrievalDurationBuckets,
		HTTPDurationBuckets:      metrics.DefaultConfig().HTTPDurationBuckets,
	}
	metricsManager := metrics.NewManager(metricsCfg)

	// Start metrics server if enabled
	if metricsManager.Enabled() {
		go func() {
			log.Info("Starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := metricsManager.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
				log.Error("Metrics server error", "error", err)
			}
		}()
	}

	// Event fan-out: hub -> broadcaster -> websocket clients
	broadcaster := events.NewBroadcaster()
	defer broadcaster.Close()

	wsHandler := handlers.NewWebSocketHandler(log, handlers.WebSocketConfig{
		AllowedOrigins: cfg.Server.CORS.AllowedOrigins,
	})
	defer wsHandler.Close()

	eventCh := broadcaster.Subscribe(64)
	go func() {
		for event := range eventCh {
			_ = wsHandler.Broadcast(handlers.EventMessage{
				Type:      event.Type,
				Timestamp: event.Timestamp,
				Payload:   event.Payload,
			})
		}
	}()

	// Assemble the memory hub
	hub, err := buildHub(cfg, store, log, broadcaster, metricsManager)
	if err != nil {
		log.Error("Failed to create memory hub", "error", err)
		os.Exit(1)
	}
	if err := hub.Start(ctx); err != nil {
		log.Error("Failed to start memory hub", "error", err)
		os.Exit(1)
	}

	// Initialize HTTP server with handlers
	apiHandlers := &api.Handlers{
		Memory: handlers.NewMemoryHandler(hub, log),
		Health: handlers.NewHealthHandler(hub),
		Events: wsHandler,
	}
	if metricsManager.Enabled() {
		apiHandlers.Metrics = metricsManager
	}

	httpServer := api.NewHTTPServer(cfg, log, apiHandlers)

	// Start HTTP server in a separate goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
		if err := httpServer.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	log.Info("memoryd is running",
		"http_port", cfg.Server.Port,
		"metrics_port", cfg.Metrics.Port,
		"mode", cfg.Memory.Mode,
	)
	log.Info("Press Ctrl+C to stop")

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErrChan:
		log.Error("HTTP server error", "error", err)
	case <-ctx.Done():
		log.Info("Context cancelled")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server first
	log.Info("Shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down HTTP server", "error", err)
	}

	// Stop the hub gracefully so the vector snapshot lands on disk.
	log.Info("Stopping memory hub")
	if err := hub.Stop(shutdownCtx); err != nil {
		log.Error("Error during memory hub shutdown", "error", err)
	}

	log.Info("memoryd stopped gracefully")
}

// buildHub wires the embedder, reranker, event sink, and metrics into a hub.
func buildHub(cfg *config.Config, store *memory.TieredStorage, log logger.Logger, sink memory.EventSink, metricsManager *metrics.Manager) (*memory.MemoryHub, error) {
	opts := []memory.HubOption{
		memory.WithEventSink(sink),
	}
	if metricsManager.Enabled() {
		opts = append(opts, memory.WithMetrics(metricsManager))
	}

	if cfg.Memory.Embedding.Endpoint != "" {
		embedder, err := embed.NewClient(cfg.Memory.Embedding, cfg.Memory.VectorDimension)
		if err != nil {
			return nil, fmt.Errorf("embedding client: %w", err)
		}
		cache, err := embed.NewCache(cfg.Memory.Embedding.Cache)
		if err != nil {
			return nil, fmt.Errorf("embedding cache: %w", err)
		}
		opts = append(opts, memory.WithEmbedder(embed.NewCachedEmbedder(embedder, cache)))
		log.Info("Initialized embedder",
			"endpoint", cfg.Memory.Embedding.Endpoint,
			"model", cfg.Memory.Embedding.Model,
			"cache_backend", cfg.Memory.Embedding.Cache.Backend,
		)
	} else {
		log.Warn("No embedding endpoint configured, vector search is disabled")
	}

	if cfg.Memory.Rerank.Enabled {
		reranker, err := rerank.New(cfg.Memory.Rerank)
		if err != nil {
			return nil, fmt.Errorf("rerank client: %w", err)
		}
		opts = append(opts, memory.WithReranker(reranker))
		log.Info("Initialized reranker",
			"provider", cfg.Memory.Rerank.Provider,
			"model", cfg.Memory.Rerank.Model,
		)
	}

	return memory.NewMemoryHub(&cfg.Memory, store, log, opts...), nil
}

func buildOverrides() map[string]interface{} {
	overrides := make(map[string]interface{})

	if *appName != "" {
		overrides["app.name"] = *appName
	}
	if *serverPort != 0 {
		overrides["server.port"] = *serverPort
	}
	if *logLevel != "" {
		overrides["log.level"] = *logLevel
	}
	if *debugMode {
		overrides["app.debug"] = true
	}

	return overrides
}

func printVersion() {
	fmt.Printf("memoryd - Hybrid Memory Retrieval Service\n")
	fmt.Printf("Version:    %s\n", version.Version)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Printf("Git Commit: %s\n", version.GitCommit)
	fmt.Printf("Go Version: %s\n", version.GoVersion)
}

func printHelp() {
	fmt.Printf("memoryd - Hybrid memory retrieval service with multi-stage scoring\n\n")
	fmt.Printf("Usage: memoryd [options]\n\n")
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  memoryd                                   # Run with default config\n")
	fmt.Printf("  memoryd -config config.yaml               # Use specific config file\n")
	fmt.Printf("  memoryd -port 9090 -log-level debug       # Override specific options\n")
	fmt.Printf("  memoryd -version                          # Print version info\n")
}
