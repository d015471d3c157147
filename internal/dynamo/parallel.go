package dynamo

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ParallelFor calls fn(ctx, i) for i in [0, n) on at most workers
// goroutines. workers <= 0 uses GOMAXPROCS. The first error cancels the
// context handed to the remaining calls and is returned. A ctx that is
// done before every index was scheduled yields ctx.Err().
func ParallelFor(ctx context.Context, n, workers int, fn func(ctx context.Context, i int) error) error {
	if n <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return fn(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
