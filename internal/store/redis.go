package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "educabot:"

// storedRow is the JSON value kept in a partition hash.
type storedRow struct {
	Attributes map[string]string `json:"attributes"`
	Timestamp  time.Time         `json:"timestamp"`
}

// RedisBackend keeps every partition in a hash of rows plus a lexically
// sorted index of its row keys, so pages are byte-ordered by row key.
type RedisBackend struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisBackend connects to Redis and checks the connection.
func NewRedisBackend(redisURL, prefix string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisBackendWithClient(client, prefix), nil
}

// NewRedisBackendWithClient builds a backend from an existing client.
func NewRedisBackendWithClient(client *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisBackend{
		client: client,
		prefix: prefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Table returns the named table.
func (b *RedisBackend) Table(name string) Table {
	return &RedisTable{backend: b, name: name}
}

// Ping checks if Redis is reachable.
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

// RedisTable is one named table of a RedisBackend.
type RedisTable struct {
	backend *RedisBackend
	name    string
}

func (t *RedisTable) Name() string {
	return t.name
}

func (t *RedisTable) rowsKey(partition string) string {
	return t.backend.prefix + "rows:" + t.name + ":" + partition
}

func (t *RedisTable) indexKey(partition string) string {
	return t.backend.prefix + "index:" + t.name + ":" + partition
}

// QueryPage reads up to limit rows after the continuation row key.
func (t *RedisTable) QueryPage(ctx context.Context, partition, continuation string, limit int) (Page, error) {
	lower := "-"
	if continuation != "" {
		lower = "(" + continuation
	}

	rowKeys, err := t.backend.client.ZRangeByLex(ctx, t.indexKey(partition), &redis.ZRangeBy{
		Min:   lower,
		Max:   "+",
		Count: int64(limit),
	}).Result()
	if err != nil {
		return Page{}, fmt.Errorf("range row index: %w", err)
	}
	if len(rowKeys) == 0 {
		return Page{}, nil
	}

	values, err := t.backend.client.HMGet(ctx, t.rowsKey(partition), rowKeys...).Result()
	if err != nil {
		return Page{}, fmt.Errorf("read rows: %w", err)
	}

	rows := make([]Row, 0, len(rowKeys))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			// Indexed but never stored. The next write repairs it.
			continue
		}
		row, err := decodeStoredRow(partition, rowKeys[i], raw)
		if err != nil {
			return Page{}, err
		}
		rows = append(rows, row)
	}

	page := Page{Rows: rows}
	if len(rowKeys) == limit {
		page.Continuation = rowKeys[len(rowKeys)-1]
	}
	return page, nil
}

// Retrieve reads a single row.
func (t *RedisTable) Retrieve(ctx context.Context, partition, row string) (Row, bool, error) {
	raw, err := t.backend.client.HGet(ctx, t.rowsKey(partition), row).Result()
	if errors.Is(err, redis.Nil) {
		return Row{}, false, nil
	}
	if err != nil {
		return Row{}, false, fmt.Errorf("read row: %w", err)
	}
	stored, err := decodeStoredRow(partition, row, raw)
	if err != nil {
		return Row{}, false, err
	}
	return stored, true, nil
}

// InsertOrReplace writes a row and its index entry in one transaction.
func (t *RedisTable) InsertOrReplace(ctx context.Context, row Row) error {
	data, err := json.Marshal(storedRow{
		Attributes: row.Attributes,
		Timestamp:  t.backend.now(),
	})
	if err != nil {
		return fmt.Errorf("marshal row: %w", err)
	}

	_, err = t.backend.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, t.rowsKey(row.PartitionKey), row.RowKey, data)
		pipe.ZAdd(ctx, t.indexKey(row.PartitionKey), redis.Z{Score: 0, Member: row.RowKey})
		return nil
	})
	if err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	return nil
}

func decodeStoredRow(partition, rowKey, raw string) (Row, error) {
	var stored storedRow
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return Row{}, fmt.Errorf("unmarshal row %s: %w", rowKey, err)
	}
	if stored.Attributes == nil {
		stored.Attributes = map[string]string{}
	}
	return Row{
		PartitionKey: partition,
		RowKey:       rowKey,
		Attributes:   stored.Attributes,
		Timestamp:    stored.Timestamp,
	}, nil
}
