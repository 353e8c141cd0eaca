package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// partitionPrefix namespaces the per-connection set of sort keys.
	partitionPrefix = "conn:"
	// indexPrefix namespaces the reverse index from sort key to connections.
	indexPrefix = "idx:"
)

// RedisStore is a Redis-backed Store for deployments where multiple relay
// instances share one directory. Each partition is a Redis set of sort keys
// under "conn:{handle}", mirrored by a reverse-index set "idx:{sortKey}" of
// handles. Both sides are maintained in a single transactional pipeline so
// the index never drifts from the primary rows.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection with a short
// ping before returning the store.
func NewRedisStore(ctx context.Context, addr, password string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("directory: redis ping failed: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Put inserts a row and its reverse-index entry atomically.
func (s *RedisStore) Put(ctx context.Context, partitionKey, sortKey string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, partitionPrefix+partitionKey, sortKey)
		pipe.SAdd(ctx, indexPrefix+sortKey, partitionKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("directory: put %s/%s: %w", partitionKey, sortKey, err)
	}
	return nil
}

// Delete removes a row and its reverse-index entry atomically. Redis drops
// a set once its last member is removed, so empty partitions and empty
// index entries clean themselves up.
func (s *RedisStore) Delete(ctx context.Context, partitionKey, sortKey string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, partitionPrefix+partitionKey, sortKey)
		pipe.SRem(ctx, indexPrefix+sortKey, partitionKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("directory: delete %s/%s: %w", partitionKey, sortKey, err)
	}
	return nil
}

// Partition returns all rows stored under a partition key.
func (s *RedisStore) Partition(ctx context.Context, partitionKey string) ([]Row, error) {
	sortKeys, err := s.client.SMembers(ctx, partitionPrefix+partitionKey).Result()
	if err != nil {
		return nil, fmt.Errorf("directory: read partition %s: %w", partitionKey, err)
	}

	rows := make([]Row, 0, len(sortKeys))
	for _, sortKey := range sortKeys {
		rows = append(rows, Row{PartitionKey: partitionKey, SortKey: sortKey})
	}
	return rows, nil
}

// BySortKey resolves the reverse index for an exact sort key.
func (s *RedisStore) BySortKey(ctx context.Context, sortKey string) ([]Row, error) {
	partitionKeys, err := s.client.SMembers(ctx, indexPrefix+sortKey).Result()
	if err != nil {
		return nil, fmt.Errorf("directory: reverse lookup %s: %w", sortKey, err)
	}

	rows := make([]Row, 0, len(partitionKeys))
	for _, partitionKey := range partitionKeys {
		rows = append(rows, Row{PartitionKey: partitionKey, SortKey: sortKey})
	}
	return rows, nil
}

// Scan walks every partition with the Redis SCAN cursor and collects all
// rows. This is the coarse path behind room listing; it is not meant for
// hot-path use.
func (s *RedisStore) Scan(ctx context.Context) ([]Row, error) {
	var rows []Row

	iter := s.client.Scan(ctx, 0, partitionPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		partitionKey := strings.TrimPrefix(key, partitionPrefix)

		sortKeys, err := s.client.SMembers(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("directory: scan partition %s: %w", partitionKey, err)
		}
		for _, sortKey := range sortKeys {
			rows = append(rows, Row{PartitionKey: partitionKey, SortKey: sortKey})
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("directory: scan: %w", err)
	}
	return rows, nil
}

// Close releases the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
