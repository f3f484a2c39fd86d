package cubit

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ctxCheckInterval is how many blocks a worker processes between
// cancellation checks.
const ctxCheckInterval = 256

// forEachBlock calls fn for every block index in [0,n).
//
// Indices are split into contiguous ranges, one per worker, so fn may write
// results into pre-sized slices by index and the caller sees them in block
// order. The first error or a cancelled ctx stops the remaining ranges.
func forEachBlock(ctx context.Context, n, workers int, fn func(i int) error) error {
	if n == 0 {
		return ctx.Err()
	}
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	span := (n + workers - 1) / workers
	for start := 0; start < n; start += span {
		end := min(start+span, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				if (i-start)%ctxCheckInterval == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				if err := fn(i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
