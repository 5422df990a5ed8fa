package cfgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/raymyers/ralph-cf/pkg/ssa"
)

// BuildAll compiles every function with up to opts.Workers methods in
// flight. Results are indexed like fns. Methods that fail leave a nil
// entry; their errors are joined in input order. Cancelling ctx stops
// workers from starting further methods.
func BuildAll(ctx context.Context, fns []*ssa.Func, opts Options) ([]*Result, error) {
	batch := uuid.NewString()
	workers := min(opts.workers(), len(fns))
	slog.Info("building methods", "batch", batch, "methods", len(fns), "workers", workers)

	results := make([]*Result, len(fns))
	errs := make([]error, len(fns))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					errs[i] = err
					continue
				}
				res, err := Compile(fns[i], opts)
				if err != nil {
					slog.Error("method failed", "batch", batch, "func", fns[i].Name(), "error", err)
					errs[i] = fmt.Errorf("%s: %w", fns[i].Name(), err)
					continue
				}
				results[i] = res
			}
		}()
	}

feed:
	for i := range fns {
		select {
		case jobs <- i:
		case <-ctx.Done():
			for j := i; j < len(fns); j++ {
				errs[j] = ctx.Err()
			}
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		slog.Info("build cancelled", "batch", batch)
		return results, err
	}
	err := errors.Join(errs...)
	slog.Info("methods built", "batch", batch, "failed", countErrors(errs))
	return results, err
}

func countErrors(errs []error) int {
	n := 0
	for _, err := range errs {
		if err != nil {
			n++
		}
	}
	return n
}
