package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	dErrors "didlab/pkg/domain-errors"
)

// ConcurrentResult counts outcomes of RunConcurrent by error code.
type ConcurrentResult struct {
	Successes int32
	Conflicts int32
	Ledger    int32
	Errors    int32
}

func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Conflicts + r.Ledger + r.Errors
}

// RunConcurrent runs fn in n goroutines released together and tallies the
// results. Conflicts and ledger failures are counted apart from other errors.
func RunConcurrent(n int, fn func(idx int) error) *ConcurrentResult {
	var (
		wg                                  sync.WaitGroup
		successes, conflicts, ledger, other atomic.Int32
	)
	start := make(chan struct{})

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			err := fn(idx)
			switch {
			case err == nil:
				successes.Add(1)
			case dErrors.HasCode(err, dErrors.CodeConflict):
				conflicts.Add(1)
			case dErrors.HasCode(err, dErrors.CodeLedger):
				ledger.Add(1)
			default:
				other.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	return &ConcurrentResult{
		Successes: successes.Load(),
		Conflicts: conflicts.Load(),
		Ledger:    ledger.Load(),
		Errors:    other.Load(),
	}
}

func RunConcurrentCtx(ctx context.Context, n int, fn func(ctx context.Context, idx int) error) *ConcurrentResult {
	return RunConcurrent(n, func(idx int) error {
		return fn(ctx, idx)
	})
}
