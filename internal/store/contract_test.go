package store

import (
	"context"
	"fmt"
	"reflect"
	"testing"
)

type note struct {
	Partition string
	Key       string
	Text      string
}

func (n note) Row() Row {
	return Row{
		PartitionKey: n.Partition,
		RowKey:       n.Key,
		Attributes:   map[string]string{"text": n.Text},
	}
}

func decodeNote(row Row) (note, error) {
	return note{Partition: row.PartitionKey, Key: row.RowKey, Text: row.Attr("text")}, nil
}

func noteKeys(notes []note) []string {
	keys := make([]string, 0, len(notes))
	for _, n := range notes {
		keys = append(keys, n.Key)
	}
	return keys
}

// runTableContract checks the behavior every backend must share.
func runTableContract(t *testing.T, newTable func(t *testing.T) Table) {
	t.Run("scan is independent of page size", func(t *testing.T) {
		table := newTable(t)
		ctx := context.Background()

		for _, key := range []string{"r5", "r1", "r7", "r3", "r2", "r6", "r4"} {
			if err := Upsert(ctx, table, note{Partition: "p1", Key: key, Text: "text " + key}); err != nil {
				t.Fatalf("Upsert %s failed: %v", key, err)
			}
		}
		if err := Upsert(ctx, table, note{Partition: "p2", Key: "other", Text: "x"}); err != nil {
			t.Fatalf("Upsert other failed: %v", err)
		}

		want := []string{"r1", "r2", "r3", "r4", "r5", "r6", "r7"}
		for _, size := range []int{1, 2, 3, 7, 100} {
			got, err := Scan(ctx, table, "p1", decodeNote, ScanOptions[note]{PageSize: size})
			if err != nil {
				t.Fatalf("Scan(page=%d) failed: %v", size, err)
			}
			if !reflect.DeepEqual(noteKeys(got), want) {
				t.Errorf("Scan(page=%d) = %v, want %v", size, noteKeys(got), want)
			}
		}
	})

	t.Run("upsert replaces by partition and row", func(t *testing.T) {
		table := newTable(t)
		ctx := context.Background()

		if err := Upsert(ctx, table, note{Partition: "p1", Key: "r1", Text: "first"}); err != nil {
			t.Fatalf("first Upsert failed: %v", err)
		}
		if err := Upsert(ctx, table, note{Partition: "p1", Key: "r1", Text: "second"}); err != nil {
			t.Fatalf("second Upsert failed: %v", err)
		}

		got, err := Scan(ctx, table, "p1", decodeNote, ScanOptions[note]{})
		if err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 row, got %d", len(got))
		}
		if got[0].Text != "second" {
			t.Errorf("expected latest text, got %q", got[0].Text)
		}
	})

	t.Run("get reports missing rows as not found", func(t *testing.T) {
		table := newTable(t)
		ctx := context.Background()

		_, found, err := Get(ctx, table, "p1", "missing", decodeNote)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if found {
			t.Fatal("expected not found")
		}

		if err := Upsert(ctx, table, note{Partition: "p1", Key: "r1", Text: "hello"}); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		item, found, err := Get(ctx, table, "p1", "r1", decodeNote)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !found || item.Text != "hello" {
			t.Errorf("expected hello, got found=%v item=%+v", found, item)
		}

		_, found, err = Get(ctx, table, "p2", "r1", decodeNote)
		if err != nil {
			t.Fatalf("Get in other partition failed: %v", err)
		}
		if found {
			t.Error("row must not be visible from another partition")
		}
	})

	t.Run("timestamp is assigned on write", func(t *testing.T) {
		table := newTable(t)
		ctx := context.Background()

		if err := Upsert(ctx, table, note{Partition: "p1", Key: "r1", Text: "hello"}); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		row, found, err := table.Retrieve(ctx, "p1", "r1")
		if err != nil || !found {
			t.Fatalf("Retrieve failed: found=%v err=%v", found, err)
		}
		if row.Timestamp.IsZero() {
			t.Error("expected non-zero timestamp")
		}
	})

	t.Run("empty partition scans to nothing", func(t *testing.T) {
		table := newTable(t)
		got, err := Scan(context.Background(), table, "nobody", decodeNote, ScanOptions[note]{PageSize: 2})
		if err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no rows, got %d", len(got))
		}
	})

	t.Run("scan spans many pages", func(t *testing.T) {
		table := newTable(t)
		ctx := context.Background()
		for i := 0; i < 25; i++ {
			if err := Upsert(ctx, table, note{Partition: "bulk", Key: fmt.Sprintf("row-%03d", i)}); err != nil {
				t.Fatalf("Upsert %d failed: %v", i, err)
			}
		}

		pages := 0
		got, err := Scan(ctx, table, "bulk", decodeNote, ScanOptions[note]{
			PageSize:   4,
			OnProgress: func([]note) { pages++ },
		})
		if err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		if len(got) != 25 {
			t.Fatalf("expected 25 rows, got %d", len(got))
		}
		if pages != 7 {
			t.Errorf("expected 7 pages, got %d", pages)
		}
	})
}
