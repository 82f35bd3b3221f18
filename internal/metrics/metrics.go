package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "blockscan"

// Metrics tracks scan progress. A nil *Metrics is valid and records nothing.
type Metrics struct {
	BlocksScanned prometheus.Counter
	Mismatches    prometheus.Counter
	FetchFailures prometheus.Counter
	TipHeight     prometheus.Gauge
	FetchDuration prometheus.Histogram
}

// New creates the scan metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BlocksScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_scanned_total",
			Help:      "Number of blocks whose transaction count was checked.",
		}),
		Mismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mismatches_total",
			Help:      "Number of blocks with an unexpected transaction count.",
		}),
		FetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Number of blocks that could not be fetched from the node.",
		}),
		TipHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tip_height",
			Help:      "Latest block height reported by the node.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time spent fetching a single block.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.BlocksScanned, m.Mismatches, m.FetchFailures, m.TipHeight, m.FetchDuration)
	return m
}

func (m *Metrics) ObserveBlock(mismatch bool) {
	if m == nil {
		return
	}
	m.BlocksScanned.Inc()
	if mismatch {
		m.Mismatches.Inc()
	}
}

func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

func (m *Metrics) FetchFailed() {
	if m == nil {
		return
	}
	m.FetchFailures.Inc()
}

func (m *Metrics) SetTip(height uint64) {
	if m == nil {
		return
	}
	m.TipHeight.Set(float64(height))
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Serving metrics", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down metrics server: %w", err)
		}
		return nil
	}
}
