package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/manifest-network/blockscan/internal/client"
	"github.com/manifest-network/blockscan/internal/config"
	"github.com/manifest-network/blockscan/internal/metrics"
	"github.com/manifest-network/blockscan/internal/models"
	"github.com/manifest-network/blockscan/internal/output"
	"github.com/manifest-network/blockscan/internal/utils"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

// Scanner checks the transaction count of every block of a chain.
type Scanner struct {
	client         client.NodeClient
	outputHandler  output.OutputHandler
	cfg            config.ScanConfig
	metrics        *metrics.Metrics
	progressWriter io.Writer
	pollInterval   time.Duration
}

type Option func(*Scanner)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scanner) { s.metrics = m }
}

// WithProgressWriter sets where the progress bar is rendered. Defaults to stderr.
func WithProgressWriter(w io.Writer) Option {
	return func(s *Scanner) { s.progressWriter = w }
}

// WithPollInterval overrides the delay between two tip queries in live mode.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scanner) { s.pollInterval = d }
}

func New(c client.NodeClient, outputHandler output.OutputHandler, cfg config.ScanConfig, opts ...Option) *Scanner {
	s := &Scanner{
		client:         c,
		outputHandler:  outputHandler,
		cfg:            cfg,
		progressWriter: os.Stderr,
		pollInterval:   time.Duration(max(cfg.BlockTime, 1)) * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan checks blocks from the configured start height up to the tip and
// returns the blocks whose transaction count differs from expected.
func (s *Scanner) Scan(ctx context.Context, expected uint64) (*models.ScanResult, error) {
	tip, err := s.latestHeight(ctx)
	if err != nil {
		return nil, err
	}

	result := models.NewScanResult(expected)
	start := s.startHeight()
	stop := tip
	if s.cfg.End > 0 && s.cfg.End < stop {
		stop = s.cfg.End
	}
	result.Start, result.Stop = start, stop

	if start > stop {
		slog.Info("No blocks to scan", "start", start, "tip", tip)
		return result, nil
	}

	if err := s.scanBlocks(ctx, start, stop, expected, result); err != nil {
		return result, err
	}
	return result, nil
}

func (s *Scanner) startHeight() uint64 {
	return max(s.cfg.Start, 1)
}

func (s *Scanner) windowSize() uint64 {
	return uint64(max(s.cfg.MaxConcurrency, 1))
}

func (s *Scanner) latestHeight(ctx context.Context) (uint64, error) {
	tip, err := utils.GetLatestBlockHeightWithRetry(ctx, s.client, s.cfg.MaxRetries)
	if err != nil {
		return 0, &ConnectionError{Endpoint: s.cfg.Endpoint, Err: err}
	}
	s.metrics.SetTip(tip)
	return tip, nil
}

// scanBlocks scans the inclusive range [start, stop] and appends to result.
func (s *Scanner) scanBlocks(ctx context.Context, start, stop, expected uint64, result *models.ScanResult) error {
	displayProgress := s.cfg.ShowProgress && start != stop
	if start != stop {
		slog.Info("Scanning blocks", "range", fmt.Sprintf("[%d, %d]", start, stop), "expected", expected)
	} else {
		slog.Info("Scanning block", "height", start, "expected", expected)
	}

	var bar *progressbar.ProgressBar
	if displayProgress {
		bar = progressbar.NewOptions64(
			int64(stop-start+1),
			progressbar.OptionSetWriter(s.progressWriter),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetDescription("Scanning blocks..."),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
		if err := bar.RenderBlank(); err != nil {
			return fmt.Errorf("failed to render progress bar: %w", err)
		}
	}

	if err := s.processBlocks(ctx, start, stop, expected, result, bar); err != nil {
		return fmt.Errorf("failed to process blocks: %w", err)
	}

	if bar != nil {
		if err := bar.Finish(); err != nil {
			return fmt.Errorf("failed to finish progress bar: %w", err)
		}
	}

	return nil
}

// processBlocks fetches blocks window by window and handles each window in height order,
// so the result and the output do not depend on the fetch concurrency.
func (s *Scanner) processBlocks(ctx context.Context, start, stop, expected uint64, result *models.ScanResult, bar *progressbar.ProgressBar) error {
	window := s.windowSize()

	for first := start; ; {
		if ctx.Err() != nil {
			slog.Info("Scan cancelled", "height", first)
			return ctx.Err()
		}

		last := stop
		if stop-first >= window {
			last = first + window - 1
		}

		counts, fetchErrs := s.fetchWindow(ctx, first, last)

		for i, count := range counts {
			height := first + uint64(i)
			if err := fetchErrs[i]; err != nil {
				var fetchErr *FetchError
				if !errors.As(err, &fetchErr) {
					return err
				}
				s.metrics.FetchFailed()
				if !s.cfg.SkipFailed {
					return err
				}
				slog.Warn("Skipping block", "height", height, "error", err)
				result.Failed = append(result.Failed, height)
			} else {
				result.Scanned++
				mismatch := count != expected
				if mismatch {
					result.Mismatches = append(result.Mismatches, models.Mismatch{Height: height, TxCount: count})
				}
				s.metrics.ObserveBlock(mismatch)

				// the bar replaces the per-block lines when it is drawn
				if bar == nil {
					if err := s.outputHandler.WriteBlock(height, count, result.Mismatches); err != nil {
						return fmt.Errorf("failed to write block %d: %w", height, err)
					}
				}
			}

			if bar != nil {
				if err := bar.Add(1); err != nil {
					slog.Warn("Failed to update progress bar", "error", err)
				}
			}
		}

		if last == stop {
			return nil
		}
		first = last + 1
	}
}

// fetchWindow fetches the transaction counts of [first, last] concurrently.
// Every height gets its own count or error slot, so a failure never hides the heights below it.
func (s *Scanner) fetchWindow(ctx context.Context, first, last uint64) ([]uint64, []error) {
	n := last - first + 1
	counts := make([]uint64, n)
	fetchErrs := make([]error, n)

	var eg errgroup.Group
	for i := uint64(0); i < n; i++ {
		i := i
		height := first + i
		eg.Go(func() error {
			counts[i], fetchErrs[i] = s.fetchBlock(ctx, height)
			return nil
		})
	}
	_ = eg.Wait()

	return counts, fetchErrs
}

func (s *Scanner) fetchBlock(ctx context.Context, height uint64) (uint64, error) {
	begin := time.Now()
	count, err := utils.GetBlockTxCountWithRetry(ctx, s.client, height, s.cfg.MaxRetries)
	s.metrics.ObserveFetch(time.Since(begin))
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		slog.Debug("Block fetch error",
			"height", height,
			"error", err,
			"errorType", fmt.Sprintf("%T", err))
		return 0, &FetchError{Height: height, Err: err}
	}
	return count, nil
}
