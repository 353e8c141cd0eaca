package directory

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a mutex-guarded in-process Store. It is the default backend
// for single-instance deployments and the backend used by the test suite.
type MemoryStore struct {
	mu sync.RWMutex
	// partitions maps partition key to the set of sort keys stored under it.
	partitions map[string]map[string]struct{}
	// index is the reverse mapping from sort key to the partitions holding it.
	index map[string]map[string]struct{}
}

// NewMemoryStore creates an empty in-memory directory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		partitions: make(map[string]map[string]struct{}),
		index:      make(map[string]map[string]struct{}),
	}
}

// Put inserts a row, overwriting silently if it already exists.
func (s *MemoryStore) Put(_ context.Context, partitionKey, sortKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.partitions[partitionKey] == nil {
		s.partitions[partitionKey] = make(map[string]struct{})
	}
	s.partitions[partitionKey][sortKey] = struct{}{}

	if s.index[sortKey] == nil {
		s.index[sortKey] = make(map[string]struct{})
	}
	s.index[sortKey][partitionKey] = struct{}{}
	return nil
}

// Delete removes a row by exact key. Absent rows are ignored.
func (s *MemoryStore) Delete(_ context.Context, partitionKey, sortKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sortKeys, ok := s.partitions[partitionKey]; ok {
		delete(sortKeys, sortKey)
		if len(sortKeys) == 0 {
			delete(s.partitions, partitionKey)
		}
	}
	if partitionKeys, ok := s.index[sortKey]; ok {
		delete(partitionKeys, partitionKey)
		if len(partitionKeys) == 0 {
			delete(s.index, sortKey)
		}
	}
	return nil
}

// Partition returns all rows stored under a partition key, sorted by sort key
// for deterministic iteration.
func (s *MemoryStore) Partition(_ context.Context, partitionKey string) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sortKeys := s.partitions[partitionKey]
	rows := make([]Row, 0, len(sortKeys))
	for sortKey := range sortKeys {
		rows = append(rows, Row{PartitionKey: partitionKey, SortKey: sortKey})
	}
	sortRows(rows)
	return rows, nil
}

// BySortKey resolves the reverse index for an exact sort key.
func (s *MemoryStore) BySortKey(_ context.Context, sortKey string) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	partitionKeys := s.index[sortKey]
	rows := make([]Row, 0, len(partitionKeys))
	for partitionKey := range partitionKeys {
		rows = append(rows, Row{PartitionKey: partitionKey, SortKey: sortKey})
	}
	sortRows(rows)
	return rows, nil
}

// Scan returns every row in the store.
func (s *MemoryStore) Scan(_ context.Context) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []Row
	for partitionKey, sortKeys := range s.partitions {
		for sortKey := range sortKeys {
			rows = append(rows, Row{PartitionKey: partitionKey, SortKey: sortKey})
		}
	}
	sortRows(rows)
	return rows, nil
}

func sortRows(rows []Row) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].PartitionKey != rows[j].PartitionKey {
			return rows[i].PartitionKey < rows[j].PartitionKey
		}
		return rows[i].SortKey < rows[j].SortKey
	})
}
