package storage

// This file slices a dataset into bulk-copy batches. Each batch is projected
// onto the table columns just before it is handed to the backend, so only one
// batch of positional rows is alive at a time.

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"salesetl/internal/dataset"
)

// CopyFn bulk-inserts rows aligned to the table columns and returns the
// number of rows the backend reports as inserted.
type CopyFn func(ctx context.Context, rows [][]any) (int64, error)

// CopyBatches copies the rows of ds in batches of size, reading each row's
// values from the fields named in cols. It returns the rows copied, the
// number of successful batches and the first error. ctx is checked before
// every batch. log may be nil.
func CopyBatches(ctx context.Context, log *zap.Logger, ds *dataset.Dataset, cols []string, size int, copyFn CopyFn) (int64, int, error) {
	if size <= 0 {
		return 0, 0, errors.New("batch size must be > 0")
	}
	if copyFn == nil {
		return 0, 0, errors.New("copyFn must not be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}

	var (
		total   int64
		batches int
		start   = time.Now()
	)
	for lo := 0; lo < ds.Len(); lo += size {
		if err := ctx.Err(); err != nil {
			return total, batches, err
		}
		hi := min(lo+size, ds.Len())
		batch := make([][]any, 0, hi-lo)
		for _, r := range ds.Rows[lo:hi] {
			row := make([]any, len(cols))
			for i, c := range cols {
				row[i] = r[c]
			}
			batch = append(batch, row)
		}

		t0 := time.Now()
		n, err := copyFn(ctx, batch)
		total += n
		if err != nil {
			log.Error("copy failed", zap.Int("first_row", lo), zap.Int64("total", total), zap.Error(err))
			return total, batches, err
		}
		batches++

		rps := float64(0)
		if d := time.Since(t0); d > 0 {
			rps = float64(n) / d.Seconds()
		}
		log.Debug("batch copied",
			zap.Int("batch", batches),
			zap.Int64("inserted", n),
			zap.Int64("total", total),
			zap.Float64("rps", rps),
			zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)),
		)
	}
	return total, batches, nil
}
