package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/ptybridge/internal/bridge"
	"github.com/GriffinCanCode/AgentOS/ptybridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/ptybridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/ptybridge/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Invalid configuration: %v", err)
		return bridge.ExitFailure
	}

	// Flags default to the environment so only explicit flags override it.
	flag.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "Log level (debug, info, warn, error)")
	flag.BoolVar(&cfg.Logging.Development, "dev", cfg.Logging.Development, "Human-readable development logs")
	flag.StringVar(&cfg.Metrics.Addr, "metrics-addr", cfg.Metrics.Addr, "Prometheus listen address, empty to disable")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Printf("Invalid configuration: %v", err)
		return bridge.ExitFailure
	}

	logger, err := logging.New(loggerConfig(cfg.Logging))
	if err != nil {
		log.Printf("Failed to create logger: %v", err)
		return bridge.ExitFailure
	}
	defer logger.Close()

	metrics := monitoring.NewMetrics()
	metricsServer := metrics.Serve(cfg.Metrics.Addr, logger)
	defer metricsServer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("bridge starting",
		zap.Int("pid", os.Getpid()),
		zap.Duration("flush_interval", cfg.Output.FlushInterval),
		zap.Int("max_buffer_size", cfg.Output.MaxBufferSize),
		zap.String("metrics_addr", metricsServer.Addr()))

	b := bridge.New(os.Stdout, bridge.Options{
		Output:      cfg.Output,
		KillTimeout: cfg.Session.KillTimeout,
		Logger:      logger,
		Metrics:     metrics,
	})
	code := b.Run(ctx, os.Stdin)

	logger.Info("bridge exiting", zap.Int("code", code))
	return code
}

// loggerConfig starts from the production or development preset and applies
// the configured level and output path.
func loggerConfig(cfg config.LogConfig) logging.Config {
	logCfg := logging.DefaultConfig()
	if cfg.Development {
		logCfg = logging.DevelopmentConfig()
	}
	if cfg.Level != "" {
		logCfg.Level = cfg.Level
	}
	if cfg.Output != "" {
		logCfg.OutputPaths = []string{cfg.Output}
	}
	return logCfg
}
