package invoke

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize bounds the items sent in one external call.
const DefaultBatchSize = 100

// Partition splits items into consecutive batches of at most size items.
func Partition[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}

// BatchResult is the outcome of RunBatches.
type BatchResult[R any] struct {
	// Results holds the outputs of completed batches in input order.
	Results []R
	// Completed counts finished batches; Total counts all of them.
	Completed int
	Total     int
	// Items counts input items covered by completed batches.
	Items int
}

// Partial reports whether some batches did not complete.
func (b BatchResult[R]) Partial() bool { return b.Completed < b.Total }

// RunBatches processes items in batches of size. With concurrency above one,
// batches run in parallel and are reassembled in input order. On error the
// outputs of batches that did complete are still returned.
func RunBatches[T, R any](
	ctx context.Context,
	items []T,
	size, concurrency int,
	fn func(ctx context.Context, index int, batch []T) ([]R, error),
) (BatchResult[R], error) {
	batches := Partition(items, size)
	res := BatchResult[R]{Total: len(batches)}

	if concurrency <= 1 {
		for i, batch := range batches {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			out, err := fn(ctx, i, batch)
			if err != nil {
				return res, err
			}
			res.Results = append(res.Results, out...)
			res.Completed++
			res.Items += len(batch)
		}
		return res, nil
	}

	slots := make([][]R, len(batches))
	done := make([]bool, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, batch := range batches {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := fn(gctx, i, batch)
			if err != nil {
				return err
			}
			slots[i] = out
			done[i] = true
			return nil
		})
	}
	err := g.Wait()

	for i, batch := range batches {
		if !done[i] {
			continue
		}
		res.Results = append(res.Results, slots[i]...)
		res.Completed++
		res.Items += len(batch)
	}
	return res, err
}
