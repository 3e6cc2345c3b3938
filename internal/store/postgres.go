package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PostgresBackend keeps every table in the single records relation.
type PostgresBackend struct {
	db *sql.DB
}

func NewPostgresBackend(db *sql.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

func (b *PostgresBackend) DB() *sql.DB {
	return b.db
}

func (b *PostgresBackend) Table(name string) Table {
	return &PostgresTable{db: b.db, name: name}
}

func (b *PostgresBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

func (b *PostgresBackend) Close() error {
	return b.db.Close()
}

type PostgresTable struct {
	db   *sql.DB
	name string
}

func (t *PostgresTable) Name() string {
	return t.name
}

func (t *PostgresTable) QueryPage(ctx context.Context, partition, continuation string, limit int) (Page, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT row_key, attributes, updated_at
		FROM records
		WHERE table_name = $1 AND partition_key = $2 AND row_key > $3
		ORDER BY row_key
		LIMIT $4
	`, t.name, partition, continuation, limit)
	if err != nil {
		return Page{}, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	items := make([]Row, 0, limit)
	for rows.Next() {
		item := Row{PartitionKey: partition}
		var attributes []byte
		if err := rows.Scan(&item.RowKey, &attributes, &item.Timestamp); err != nil {
			return Page{}, fmt.Errorf("scan record: %w", err)
		}
		if err := unmarshalAttributes(attributes, &item); err != nil {
			return Page{}, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("iterate records: %w", err)
	}

	page := Page{Rows: items}
	if len(items) == limit {
		page.Continuation = items[len(items)-1].RowKey
	}
	return page, nil
}

func (t *PostgresTable) Retrieve(ctx context.Context, partition, row string) (Row, bool, error) {
	item := Row{PartitionKey: partition, RowKey: row}
	var attributes []byte
	err := t.db.QueryRowContext(ctx, `
		SELECT attributes, updated_at
		FROM records
		WHERE table_name = $1 AND partition_key = $2 AND row_key = $3
	`, t.name, partition, row).Scan(&attributes, &item.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return Row{}, false, nil
	}
	if err != nil {
		return Row{}, false, fmt.Errorf("read record: %w", err)
	}
	if err := unmarshalAttributes(attributes, &item); err != nil {
		return Row{}, false, err
	}
	return item, true, nil
}

func (t *PostgresTable) InsertOrReplace(ctx context.Context, row Row) error {
	attributes := row.Attributes
	if attributes == nil {
		attributes = map[string]string{}
	}
	data, err := json.Marshal(attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}

	_, err = t.db.ExecContext(ctx, `
		INSERT INTO records (table_name, partition_key, row_key, attributes, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, $5)
		ON CONFLICT (table_name, partition_key, row_key)
		DO UPDATE SET attributes = EXCLUDED.attributes, updated_at = EXCLUDED.updated_at
	`, t.name, row.PartitionKey, row.RowKey, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

func unmarshalAttributes(data []byte, row *Row) error {
	row.Attributes = map[string]string{}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &row.Attributes); err != nil {
		return fmt.Errorf("unmarshal attributes %s: %w", row.RowKey, err)
	}
	return nil
}
