// Package directory implements the keyed row store that backs the session
// directory. A row is a (partition key, sort key) pair: the partition key is
// a connection handle and the sort key encodes one attribute of that
// connection, such as "username:alice" or "room:lobby". The package provides
// an in-memory implementation and a Redis-backed implementation behind a
// shared Store interface.
package directory

import "context"

// Row is a single directory entry. The partition key identifies the
// connection the row belongs to; the sort key carries the attribute value.
type Row struct {
	PartitionKey string
	SortKey      string
}

// Store defines the access patterns the session directory needs: keyed
// read/write/delete on a partition, a reverse lookup from sort key to the
// partitions that contain it, and a coarse full scan.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Put inserts a row. Re-inserting an existing row is a no-op overwrite,
	// never an error.
	Put(ctx context.Context, partitionKey, sortKey string) error

	// Delete removes a row by exact key. Deleting an absent row is not an
	// error.
	Delete(ctx context.Context, partitionKey, sortKey string) error

	// Partition returns every row stored under the given partition key.
	Partition(ctx context.Context, partitionKey string) ([]Row, error)

	// BySortKey returns every row whose sort key matches exactly. The lookup
	// runs against a reverse index and costs O(matching rows), not O(table).
	BySortKey(ctx context.Context, sortKey string) ([]Row, error)

	// Scan returns every row in the store. Intended for infrequent,
	// coarse-grained queries only.
	Scan(ctx context.Context) ([]Row, error)
}
