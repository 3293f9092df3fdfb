package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/monalisastar/elr-protocol-mainnet/config"
	"github.com/monalisastar/elr-protocol-mainnet/core"
	"github.com/monalisastar/elr-protocol-mainnet/core/events"
	"github.com/monalisastar/elr-protocol-mainnet/crypto"
	"github.com/monalisastar/elr-protocol-mainnet/observability"
	"github.com/monalisastar/elr-protocol-mainnet/observability/logging"
	"github.com/monalisastar/elr-protocol-mainnet/observability/metrics"
	telemetry "github.com/monalisastar/elr-protocol-mainnet/observability/otel"
	"github.com/monalisastar/elr-protocol-mainnet/rpc"
	"github.com/monalisastar/elr-protocol-mainnet/storage"
)

const (
	serviceName    = "elrd"
	envVar         = "ELR_ENV"
	sampleInterval = 15 * time.Second
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configFile); err != nil {
		slog.Error("elrd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	env := cfg.Environment
	if override := strings.TrimSpace(os.Getenv(envVar)); override != "" {
		env = override
	}
	logger, closer, err := logging.Setup(serviceName, env, logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	rewardMetrics := metrics.Rewards()
	node, err := core.NewNode(db, cfg,
		core.WithLogger(logger),
		core.WithEmitter(events.Fanout{observability.Events(), rewardMetrics}),
		core.WithObserver(rewardMetrics.Observer(rpc.ErrorCode)),
	)
	if err != nil {
		return err
	}
	if err := node.Bootstrap(); err != nil {
		return err
	}
	logger.Info("node ready",
		slog.String("relayer", crypto.FormatHex(node.Relayer())),
		slog.String("ledger", crypto.FormatHex(node.Ledger().Address())),
		slog.String("registry", crypto.FormatHex(node.Registry().Address())),
		slog.String("engine", crypto.FormatHex(node.Engine().Address())),
	)

	go sampleSolvency(ctx, node, rewardMetrics, logger)

	server, err := rpc.NewServer(node, rpc.Config{
		ListenAddress: cfg.ListenAddress,
		RateLimit: rpc.RateLimit{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		},
		ServiceName: serviceName,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	if err := server.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// sampleSolvency publishes the ledger's pool and liabilities on a fixed
// interval until ctx is done.
func sampleSolvency(ctx context.Context, node *core.Node, m *metrics.RewardsMetrics, logger *slog.Logger) {
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()
	for {
		view, err := node.Pool()
		if err != nil {
			logger.Warn("solvency sample failed", slog.Any("error", err))
		} else {
			m.SetPool(view.Pool)
			m.SetLiabilities(view.Solvency.Liabilities)
			if !view.Solvency.Solvent() {
				logger.Error("ledger insolvent",
					slog.String("custody", view.Solvency.Custody.String()),
					slog.String("obligations", view.Solvency.Obligations().String()),
				)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
