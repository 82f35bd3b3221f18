package scanblocks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/manifest-network/blockscan/internal/client"
	"github.com/manifest-network/blockscan/internal/config"
	"github.com/manifest-network/blockscan/internal/metrics"
	"github.com/manifest-network/blockscan/internal/models"
	"github.com/manifest-network/blockscan/internal/output"
	"github.com/manifest-network/blockscan/internal/scanner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultTimeout = 30 * time.Second

func runScan(cmd *cobra.Command, v *viper.Viper) error {
	cfg := config.LoadScanConfig(v)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outputHandler, err := output.New(cfg.Output, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	opts := []scanner.Option{scanner.WithProgressWriter(cmd.ErrOrStderr())}
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, scanner.WithMetrics(metrics.New(reg)))

		metricsCtx, cancelMetrics := context.WithCancel(ctx)
		metricsDone := make(chan struct{})
		defer func() {
			cancelMetrics()
			<-metricsDone
		}()
		go func() {
			defer close(metricsDone)
			if err := metrics.Serve(metricsCtx, cfg.MetricsAddr, reg); err != nil {
				slog.Error("Metrics server error", "error", err)
			}
		}()
	}

	nodeClient, err := client.Dial(ctx, cfg.Endpoint, client.Options{
		Transport: cfg.Transport,
		Timeout:   cfg.Timeout,
	})
	if err != nil {
		if errors.Is(err, client.ErrInvalidTransport) {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return &scanner.ConnectionError{Endpoint: cfg.Endpoint, Err: err}
	}
	defer func() {
		if err := nodeClient.Close(); err != nil {
			slog.Warn("Failed to close node client", "error", err)
		}
	}()

	s := scanner.New(nodeClient, outputHandler, cfg, opts...)

	var result *models.ScanResult
	if cfg.Live {
		result, err = s.Watch(ctx, cfg.ExpectedTxCount)
	} else {
		result, err = s.Scan(ctx, cfg.ExpectedTxCount)
	}
	if err != nil {
		return err
	}

	slog.Debug("Scan finished", "scanned", result.Scanned, "mismatches", len(result.Mismatches), "failed", len(result.Failed))
	return outputHandler.WriteSummary(result)
}
