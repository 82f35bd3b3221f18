package utils

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/manifest-network/blockscan/internal/client"
)

// RetryInterval is the delay between two attempts of the same request.
var RetryInterval = time.Second

// GetLatestBlockHeightWithRetry gets the current tip height from the node.
func GetLatestBlockHeightWithRetry(ctx context.Context, c client.NodeClient, maxRetries uint) (uint64, error) {
	return fetchWithRetry(ctx, maxRetries, func(ctx context.Context) (uint64, error) {
		return c.BlockNumber(ctx)
	})
}

// GetBlockTxCountWithRetry gets the number of transactions of the block at the given height.
func GetBlockTxCountWithRetry(ctx context.Context, c client.NodeClient, height uint64, maxRetries uint) (uint64, error) {
	return fetchWithRetry(ctx, maxRetries, func(ctx context.Context) (uint64, error) {
		return c.BlockTransactionCount(ctx, height)
	})
}

// fetchWithRetry runs fetch up to maxRetries+1 times.
// Cancellation and missing blocks are never retried.
func fetchWithRetry[T any](ctx context.Context, maxRetries uint, fetch func(context.Context) (T, error)) (T, error) {
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(RetryInterval), uint64(maxRetries)),
		ctx,
	)

	return backoff.RetryNotifyWithData(func() (T, error) {
		data, err := fetch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, client.ErrBlockNotFound) {
				return data, backoff.Permanent(err)
			}
			return data, err
		}
		return data, nil
	}, b, func(err error, next time.Duration) {
		slog.Debug("Retrying request", "error", err, "backoff", next)
	})
}
