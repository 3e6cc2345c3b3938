// Package store implements the partitioned record table the bot keeps its state in.
//
// A Table holds rows grouped by partition key and identified by row key inside
// a partition. Writes are insert-or-replace: the last writer wins and there is
// no conditional write. Callers never loop over continuation tokens themselves;
// Scan does that once for every table.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMissingKey is returned when a row has no partition or row key. It is a
// caller error and never comes wrapped in a StoreError.
var ErrMissingKey = errors.New("partition and row keys are required")

// Row is the serialized form of every record.
type Row struct {
	PartitionKey string
	RowKey       string
	Attributes   map[string]string
	// Timestamp is assigned by the backend on write.
	Timestamp time.Time
}

// Attr returns a named attribute, empty when absent.
func (r Row) Attr(name string) string {
	if r.Attributes == nil {
		return ""
	}
	return r.Attributes[name]
}

// Page is one bounded slice of a partition. An empty Continuation means the
// partition has no more rows after this page.
type Page struct {
	Rows         []Row
	Continuation string
}

// Table is a partitioned key-value table. Rows come back ordered by row key.
type Table interface {
	Name() string
	QueryPage(ctx context.Context, partition, continuation string, limit int) (Page, error)
	Retrieve(ctx context.Context, partition, row string) (Row, bool, error)
	InsertOrReplace(ctx context.Context, row Row) error
}

// Backend hands out tables sharing one connection.
type Backend interface {
	Table(name string) Table
	Ping(ctx context.Context) error
	Close() error
}

// Record is an entity with an explicit row mapping.
type Record interface {
	Row() Row
}

// StoreError reports a failed backend call.
type StoreError struct {
	Op        string
	Table     string
	Partition string
	Row       string
	Err       error
}

func (e *StoreError) Error() string {
	if e == nil {
		return ""
	}
	target := e.Table
	if e.Partition != "" {
		target += " partition=" + e.Partition
	}
	if e.Row != "" {
		target += " row=" + e.Row
	}
	return fmt.Sprintf("store: %s %s: %v", e.Op, target, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// SchemaError reports a stored row that does not match its entity schema.
type SchemaError struct {
	Entity    string
	Attribute string
	RowKey    string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("decode %s %s: missing or invalid attribute %q", e.Entity, e.RowKey, e.Attribute)
}

func storeError(op, table, partition, row string, err error) error {
	var existing *StoreError
	if errors.As(err, &existing) {
		return err
	}
	return &StoreError{Op: op, Table: table, Partition: partition, Row: row, Err: err}
}
