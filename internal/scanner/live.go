package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/manifest-network/blockscan/internal/models"
)

// Watch scans up to the tip, then keeps scanning new blocks as they are produced
// until ctx is cancelled. Cancellation returns the accumulated result without error.
func (s *Scanner) Watch(ctx context.Context, expected uint64) (*models.ScanResult, error) {
	result := models.NewScanResult(expected)
	result.Start = s.startHeight()
	currentHeight := result.Start - 1

	for {
		select {
		case <-ctx.Done():
			return result, nil
		default:
			latestHeight, err := s.latestHeight(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return result, nil
				}
				return result, fmt.Errorf("failed to get latest block height: %w", err)
			}

			if latestHeight > currentHeight {
				if err := s.scanBlocks(ctx, currentHeight+1, latestHeight, expected, result); err != nil {
					if ctx.Err() != nil {
						return result, nil
					}
					return result, fmt.Errorf("failed to scan new blocks: %w", err)
				}
				currentHeight = latestHeight
				result.Stop = latestHeight
			}

			select {
			case <-ctx.Done():
				return result, nil
			case <-time.After(s.pollInterval):
			}
		}
	}
}
