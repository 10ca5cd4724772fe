// Package catalog defines the table/partition metadata model and the client
// contract used to read (and, for the destination, write) a data catalog.
package catalog

import (
	"context"
	"errors"
)

// ErrNotFound is returned by lookups when the object does not exist.
var ErrNotFound = errors.New("catalog: object not found")

// Client reads a catalog. A Client is held for the lifetime of one worker
// batch and must be closed by its owner.
type Client interface {
	// GetTable returns ErrNotFound if the table does not exist.
	GetTable(ctx context.Context, db, table string) (*Table, error)
	// GetPartition returns ErrNotFound if the partition does not exist.
	GetPartition(ctx context.Context, db, table, partition string) (*Partition, error)
	// GetPartitionNames returns the names of all partitions of a table; an
	// absent table has no partitions.
	GetPartitionNames(ctx context.Context, db, table string) ([]string, error)
	ListDatabases(ctx context.Context) ([]string, error)
	ListTables(ctx context.Context, db string) ([]string, error)
	Close() error
}

// Writer mutates a catalog. Only the destination side is ever written.
type Writer interface {
	Client
	CreateTable(ctx context.Context, t *Table) error
	AlterTable(ctx context.Context, t *Table) error
	DropTable(ctx context.Context, db, table string) error
}

// Lookup wraps GetTable, translating ErrNotFound into (nil, nil).
func Lookup(ctx context.Context, c Client, db, table string) (*Table, error) {
	t, err := c.GetTable(ctx, db, table)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return t, err
}

// LookupPartition wraps GetPartition, translating ErrNotFound into (nil, nil).
func LookupPartition(ctx context.Context, c Client, spec ObjectSpec) (*Partition, error) {
	p, err := c.GetPartition(ctx, spec.DB, spec.Table, spec.Partition)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return p, err
}
