// Command gateway runs the OpenAI-compatible dispatch engine: load
// configuration, build the Provider Instance registry, serve the HTTP
// surface, and flush a durable metrics snapshot on a timer and at
// shutdown.
//
// Usage:
//
//	gateway serve                      # start the server
//	gateway serve --config gateway.yaml
//	gateway version                    # print build metadata
//	gateway health [--addr url]        # CLI health probe against a running instance
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/cortexhub/llmgateway/internal/bootstrap"
	"github.com/cortexhub/llmgateway/internal/clock"
	"github.com/cortexhub/llmgateway/internal/config"
	"github.com/cortexhub/llmgateway/internal/dispatcher"
	"github.com/cortexhub/llmgateway/internal/httpapi"
	"github.com/cortexhub/llmgateway/internal/metrics"
	"github.com/cortexhub/llmgateway/internal/registry"
	"github.com/cortexhub/llmgateway/internal/snapshotsync"
	"github.com/cortexhub/llmgateway/internal/telemetry"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("starting gateway", zap.String("version", Version), zap.String("build_time", BuildTime), zap.String("git_commit", GitCommit))

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	clk := clock.System{}
	collector := metrics.NewCollector("llmgateway", logger)

	reg, err := bootstrap.Build(cfg, clk, collector, logger)
	if err != nil {
		logger.Fatal("failed to build provider registry", zap.Error(err))
	}

	snap := metrics.LoadSnapshot(cfg.Metrics.SnapshotPath, logger)
	snapshotsync.Restore(reg, snap, logger)

	disp := dispatcher.New(reg, logger)
	handlers := httpapi.NewHandlers(disp, reg, cfg.Models, logger)

	shutdownCtx, cancelShutdown := context.WithCancel(context.Background())
	defer cancelShutdown()

	router := httpapi.NewRouter(shutdownCtx, handlers, cfg.Server, collector, logger)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// g runs the listener and the periodic snapshot flusher side by
	// side; both are cancelled together on shutdown and joined below so
	// the process never exits while either is still mid-flush or
	// mid-drain (spec §6.4).
	g, gctx := errgroup.WithContext(shutdownCtx)
	serveErrCh := make(chan error, 1)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErrCh <- err
			return err
		}
		return nil
	})
	g.Go(func() error {
		runSnapshotFlusher(gctx, reg, cfg.Metrics, logger)
		return nil
	})

	exitCode := waitForShutdown(srv, serveErrCh, cfg.Server.ShutdownTimeout, logger)
	cancelShutdown()

	if err := g.Wait(); err != nil && err != http.ErrServerClosed {
		logger.Warn("background goroutine exited with error", zap.Error(err))
	}
	if err := metrics.SaveSnapshot(cfg.Metrics.SnapshotPath, snapshotsync.Capture(reg), logger); err != nil {
		logger.Warn("final snapshot flush failed", zap.Error(err))
	}
	if err := otelProviders.Shutdown(context.Background()); err != nil {
		logger.Warn("telemetry shutdown failed", zap.Error(err))
	}

	logger.Info("gateway stopped")
	os.Exit(exitCode)
}

// waitForShutdown blocks until SIGINT/SIGTERM or an unrecoverable serve
// error, then drains in-flight requests within shutdownTimeout (spec
// §6.4). It returns the process exit code: 0 for a signal-triggered
// clean shutdown, non-zero if the server failed to start or drain.
func waitForShutdown(srv *http.Server, serveErrCh <-chan error, shutdownTimeout time.Duration, logger *zap.Logger) int {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	exitCode := 0
	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serveErrCh:
		logger.Error("server exited unexpectedly", zap.Error(err))
		exitCode = 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		exitCode = 1
	}
	return exitCode
}

// runSnapshotFlusher periodically persists the registry's durable state
// (spec §6.3) until ctx is cancelled.
func runSnapshotFlusher(ctx context.Context, reg *registry.Registry, cfg config.MetricsConfig, logger *zap.Logger) {
	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := metrics.SaveSnapshot(cfg.SnapshotPath, snapshotsync.Capture(reg), logger); err != nil {
				logger.Warn("periodic snapshot flush failed", zap.Error(err))
			}
		}
	}
}

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "server address")
	fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}
	fmt.Println("OK")
}

func printVersion() {
	fmt.Printf("gateway %s\n", Version)
	fmt.Printf("  build time: %s\n", BuildTime)
	fmt.Printf("  git commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`gateway - OpenAI-compatible dispatch engine

Usage:
  gateway <command> [options]

Commands:
  serve     Start the gateway server
  version   Show version information
  health    Check server health
  help      Show this help message

Options for 'serve':
  --config <path>   Path to configuration file (YAML)`)
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         cfg.Format,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	if zapConfig.Encoding == "" {
		zapConfig.Encoding = "json"
	}

	logger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}
