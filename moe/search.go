package moe

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Search evaluates every boundary H in 0..len(order) and returns the results
// ordered by H together with the minimum-cost one.
// Ties resolve to the smallest H. An empty order yields the single H=0 result.
func Search(order []ExpertID, npu NPURecords, pim PIMRecords, overhead Overhead) ([]PartitionResult, PartitionResult) {
	results := make([]PartitionResult, len(order)+1)
	for h := range results {
		results[h] = Evaluate(h, order, npu, pim, overhead)
	}
	return results, Optimal(results)
}

// SearchParallel is Search with the evaluations spread over at most workers
// goroutines. The output is identical to Search for any worker count.
// workers <= 1 runs the sequential sweep.
func SearchParallel(ctx context.Context, workers int, order []ExpertID, npu NPURecords, pim PIMRecords, overhead Overhead) ([]PartitionResult, PartitionResult, error) {
	if workers <= 1 {
		results, best := Search(order, npu, pim, overhead)
		return results, best, nil
	}

	results := make([]PartitionResult, len(order)+1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for h := range results {
		if err := gctx.Err(); err != nil {
			break
		}
		h := h
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[h] = Evaluate(h, order, npu, pim, overhead)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, PartitionResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, PartitionResult{}, err
	}
	return results, Optimal(results), nil
}

// Optimal returns the result with the fewest total execution cycles,
// keeping the first one seen on ties. Returns the zero value for no results.
func Optimal(results []PartitionResult) PartitionResult {
	if len(results) == 0 {
		return PartitionResult{}
	}
	best := results[0]
	for _, r := range results[1:] {
		if r.TotalExecutionCycles < best.TotalExecutionCycles {
			best = r
		}
	}
	return best
}
