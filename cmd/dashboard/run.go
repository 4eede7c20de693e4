package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ava-labs/transfer-dashboard/pkg/api"
	"github.com/ava-labs/transfer-dashboard/pkg/insight"
	"github.com/ava-labs/transfer-dashboard/pkg/metrics"
	"github.com/ava-labs/transfer-dashboard/pkg/queue"
	"github.com/ava-labs/transfer-dashboard/pkg/scheduler"
	"github.com/ava-labs/transfer-dashboard/pkg/transfers"
	"github.com/ava-labs/transfer-dashboard/pkg/utils"
	"github.com/ava-labs/transfer-dashboard/pkg/views"
)

const flushTimeoutOnClose = 15 * time.Second

func run(c *cli.Context) error {
	// Build configuration from CLI flags
	cfg, err := buildConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}

	sugar, err := utils.NewSugaredLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	sugar.Infow("config",
		"verbose", cfg.Verbose,
		"insightBaseURL", cfg.Insight.BaseURL,
		"clientIDSet", cfg.Insight.ClientID != "",
		"contractAddress", cfg.Insight.ContractAddress,
		"eventSignature", cfg.Insight.EventSignature,
		"requestTimeout", cfg.Insight.Timeout,
		"tokenDecimals", cfg.TokenDecimals,
		"timezone", cfg.Location.String(),
		"httpAddr", cfg.HTTP.Addr(),
		"refreshInterval", cfg.RefreshInterval,
		"kafkaBrokers", cfg.Kafka.Brokers,
		"kafkaTopic", cfg.Kafka.Topic,
		"kafkaClientID", cfg.Kafka.ClientID,
		"kafkaSASL", cfg.Kafka.SASL.Enabled(),
		"metricsHost", cfg.MetricsHost,
		"metricsPort", cfg.MetricsPort,
		"environment", cfg.Environment,
		"region", cfg.Region,
	)

	// Initialize Prometheus metrics with labels for multi-instance filtering
	registry := prometheus.NewRegistry()
	m, err := metrics.NewWithLabels(registry, metrics.Labels{
		Contract:    cfg.Insight.ContractAddress,
		Environment: cfg.Environment,
		Region:      cfg.Region,
	})
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	board, err := newBoard(cfg.SourceConfig, sugar, m)
	if err != nil {
		return err
	}

	server, err := api.NewServer(cfg.HTTP, board, sugar, api.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("failed to create api server: %w", err)
	}

	// Start metrics server
	metricsServer := metrics.NewServer(cfg.MetricsAddr(), registry, metrics.WithHealthCheck(boardHealth(board)))
	metricsErrCh := metricsServer.Start()
	if cfg.MetricsHost == "" {
		sugar.Infof("metrics server listening on http://0.0.0.0:%d/metrics", cfg.MetricsPort)
	} else {
		sugar.Infof("metrics server listening on http://%s/metrics", cfg.MetricsAddr())
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		producer *queue.KafkaPublisher
		exporter *queue.SnapshotPublisher
	)
	if cfg.Kafka.Enabled() {
		producer, err = queue.NewKafkaPublisher(ctx, cfg.Kafka.ConfigMap(), sugar)
		if err != nil {
			return fmt.Errorf("failed to create kafka producer: %w", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), flushTimeoutOnClose)
			defer cancel()
			producer.Close(closeCtx)
		}()

		exporter, err = queue.NewSnapshotPublisher(producer, cfg.Kafka.Topic, cfg.Insight.ContractAddress, sugar, queue.WithMetrics(m))
		if err != nil {
			return fmt.Errorf("failed to create snapshot publisher: %w", err)
		}
		board.OnChange(exporter.Enqueue)
	} else {
		sugar.Info("kafka brokers not set, snapshot export disabled")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case err := <-metricsErrCh:
			if err != nil {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		}
	})
	if exporter != nil {
		g.Go(func() error {
			return exporter.Run(gctx)
		})
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case err := <-producer.Errors():
				return err
			}
		})
	}
	if cfg.RefreshInterval > 0 {
		g.Go(func() error {
			return scheduler.Start(gctx, board, cfg.RefreshInterval, sugar)
		})
	} else {
		sugar.Info("refresh interval not set, views refresh only on request")
	}

	started := board.TriggerAll(gctx)
	sugar.Infow("initial refresh started", "views", started)

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		sugar.Infow("exiting due to context cancellation")
		err = nil
	} else if err != nil {
		sugar.Errorw("run failed", "error", err)
	}

	// Refreshes started through the API outlive the request that started them
	sugar.Info("waiting for in-flight refreshes")
	board.Wait()

	// Gracefully shutdown metrics server
	sugar.Info("shutting down metrics server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("metrics server shutdown error", "error", err)
	}

	sugar.Info("shutdown complete")
	return err
}

// newBoard wires the events client, decoder and the four view definitions.
func newBoard(cfg SourceConfig, sugar *zap.SugaredLogger, m *metrics.Metrics, defs ...views.Definition) (*views.Board, error) {
	client, err := insight.NewClient(cfg.Insight, insight.WithMetrics(m))
	if err != nil {
		return nil, fmt.Errorf("failed to create events client: %w", err)
	}
	decoder, err := transfers.NewDecoder(cfg.TokenDecimals)
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if len(defs) == 0 {
		defs = views.Definitions(cfg.Location, nil)
	}
	board, err := views.NewBoard(defs, client, decoder, sugar, views.WithMetrics(m))
	if err != nil {
		return nil, fmt.Errorf("failed to create views: %w", err)
	}
	return board, nil
}

// boardHealth reports unhealthy while every view is in the failed state.
func boardHealth(board *views.Board) func() error {
	return func() error {
		snaps := board.Snapshots()
		var errs []error
		for _, s := range snaps {
			if s.State != views.StateFailed {
				return nil
			}
			errs = append(errs, fmt.Errorf("%s: %s", s.Kind, s.Error))
		}
		if len(errs) == 0 {
			return nil
		}
		return fmt.Errorf("all views failed: %w", errors.Join(errs...))
	}
}
