package store

import (
	"context"
	"fmt"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// Decoder maps a row onto an entity.
type Decoder[T any] func(Row) (T, error)

// ScanOptions tunes a Scan.
type ScanOptions[T any] struct {
	PageSize int
	// OnProgress is called after each page is merged, with everything
	// accumulated so far. The slice is owned by Scan and must not be retained.
	OnProgress func(items []T)
}

// ClampPageSize applies the default and the upper bound.
func ClampPageSize(size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return size
}

// Scan returns every record of a partition, fetching pages one at a time.
//
// ctx is checked between pages. Once it is done, Scan stops and returns what
// it has merged so far with a nil error; the page whose fetch was in flight is
// dropped whole. Callers that need to tell a partial result from a complete
// one inspect their own context.
func Scan[T any](ctx context.Context, table Table, partition string, decode Decoder[T], opts ScanOptions[T]) ([]T, error) {
	limit := ClampPageSize(opts.PageSize)
	items := make([]T, 0)
	continuation := ""

	for {
		if ctx.Err() != nil {
			return items, nil
		}

		page, err := table.QueryPage(ctx, partition, continuation, limit)
		if ctx.Err() != nil {
			return items, nil
		}
		if err != nil {
			return nil, storeError("query", table.Name(), partition, "", err)
		}

		for _, row := range page.Rows {
			item, err := decode(row)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		if opts.OnProgress != nil {
			opts.OnProgress(items)
		}

		if page.Continuation == "" {
			return items, nil
		}
		continuation = page.Continuation
	}
}

// Get looks up one record. A missing row is reported through found, not err.
func Get[T any](ctx context.Context, table Table, partition, row string, decode Decoder[T]) (item T, found bool, err error) {
	stored, found, err := table.Retrieve(ctx, partition, row)
	if err != nil {
		return item, false, storeError("retrieve", table.Name(), partition, row, err)
	}
	if !found {
		return item, false, nil
	}
	item, err = decode(stored)
	if err != nil {
		return item, false, err
	}
	return item, true, nil
}

// Upsert inserts or replaces a record by its partition and row keys.
func Upsert(ctx context.Context, table Table, record Record) error {
	row := record.Row()
	if row.PartitionKey == "" || row.RowKey == "" {
		return fmt.Errorf("upsert %s: %w", table.Name(), ErrMissingKey)
	}
	if err := table.InsertOrReplace(ctx, row); err != nil {
		return storeError("upsert", table.Name(), row.PartitionKey, row.RowKey, err)
	}
	return nil
}
