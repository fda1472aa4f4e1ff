package etl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"bindery/internal/docstore"
)

const testMapping = `{
  "global_settings": {"sample_n_rows": 0},
  "sources": [
    {
      "alias": "books",
      "path": "books.csv",
      "format": "csv",
      "columns_to_rename": {"title_without_series": "title"}
    },
    {
      "alias": "works",
      "path": "works.json",
      "format": "json_lines"
    }
  ],
  "joins": [
    {
      "result_alias": "books_works",
      "left_df_alias": "books",
      "right_df_alias": "works",
      "left_on": "work_id",
      "right_on": "work_id",
      "how": "left",
      "suffixes": ["", "_work"]
    }
  ],
  "targets": [
    {
      "collection_name": "books",
      "source_dataframe_alias": "books_works",
      "write_mode": "upsert",
      "upsert_key_fields": ["book_id"],
      "batch_size": 100,
      "document_structure": [
        {"source_column": "book_id", "target_field": "book_id", "type": "string", "is_primary_key": true},
        {"source_column": "title", "target_field": "title", "type": "string"},
        {"source_column": "num_pages", "target_field": "page_count", "type": "integer"},
        {"source_column": "ratings_count", "target_field": "ratings_count", "type": "integer", "default_value": 0},
        {"source_column": "genres", "target_field": "genres_initial", "type": "list_of_strings"},
        {
          "source_columns": ["publication_year", "publication_month", "publication_day"],
          "target_field": "publication_date",
          "transform": "combine_date_parts"
        },
        {"target_field": "ingested_at", "transform": "current_timestamp"}
      ],
      "indexes": [{"field": "book_id", "unique": true}]
    }
  ]
}`

const testBooksCSV = `book_id,work_id,title_without_series,num_pages,publication_year,publication_month,publication_day
42,w1,Dune,412,1965,,
43,w9,Emma,,1815,12,23
,w2,No Key Here,100,2000,,
`

const testWorksJSON = `{"work_id":"w1","ratings_count":99234}
`

func newRunner(t *testing.T) (*Runner, *docstore.Store) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "mapping.json"), []byte(testMapping), 0o644); err != nil {
		t.Fatalf("write mapping: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "books.csv"), []byte(testBooksCSV), 0o644); err != nil {
		t.Fatalf("write books: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "works.json"), []byte(testWorksJSON), 0o644); err != nil {
		t.Fatalf("write works: %v", err)
	}

	store, err := docstore.Open(filepath.Join(dir, "bindery.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return NewRunner(store, Options{
		MappingPath: filepath.Join(dir, "mapping.json"),
		DataDir:     dir,
	}, nil), store
}

func TestRunPipeline(t *testing.T) {
	runner, store := newRunner(t)
	ctx := context.Background()

	stats, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Sources != 2 {
		t.Fatalf("sources = %d", stats.Sources)
	}
	if len(stats.Targets) != 1 {
		t.Fatalf("targets = %v", stats.Targets)
	}
	target := stats.Targets[0]
	if target.Mapped != 2 || target.Skipped != 1 || target.Written != 2 {
		t.Fatalf("target stats = %+v", target)
	}

	doc, err := store.Get(ctx, "books", "42")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Fields["title"] != "Dune" {
		t.Fatalf("title = %v", doc.Fields["title"])
	}
	if doc.Fields["page_count"] != float64(412) {
		t.Fatalf("page_count = %v", doc.Fields["page_count"])
	}
	if doc.Fields["ratings_count"] != float64(99234) {
		t.Fatalf("joined ratings_count = %v", doc.Fields["ratings_count"])
	}
	if doc.Fields["genres_initial"] != nil {
		t.Fatalf("genres_initial should be null, got %v", doc.Fields["genres_initial"])
	}
	date, _ := doc.Fields["publication_date"].(string)
	if date != "1965-01-01T00:00:00Z" {
		t.Fatalf("publication_date = %v", doc.Fields["publication_date"])
	}

	// Unmatched left row survives the join and lands with its defaults.
	emma, err := store.Get(ctx, "books", "43")
	if err != nil {
		t.Fatalf("Get emma: %v", err)
	}
	if emma.Fields["ratings_count"] != float64(0) {
		t.Fatalf("unmatched ratings_count = %v", emma.Fields["ratings_count"])
	}
	if emma.Fields["page_count"] != nil {
		t.Fatalf("empty page count should be null, got %v", emma.Fields["page_count"])
	}
}

func TestRunPipelineIsIdempotent(t *testing.T) {
	runner, store := newRunner(t)
	ctx := context.Background()

	if _, err := runner.Run(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first, err := store.Count(ctx, "books")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}

	if _, err := runner.Run(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second, err := store.Count(ctx, "books")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if first != second {
		t.Fatalf("second run changed document count: %d -> %d", first, second)
	}
	if first != 2 {
		t.Fatalf("count = %d, want 2", first)
	}
}

func TestRunFailsOnBadMapping(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "mapping.json"), []byte(`{"targets": []}`), 0o644); err != nil {
		t.Fatalf("write mapping: %v", err)
	}
	store, err := docstore.Open(filepath.Join(dir, "bindery.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	runner := NewRunner(store, Options{MappingPath: filepath.Join(dir, "mapping.json"), DataDir: dir}, nil)
	if _, err := runner.Run(context.Background()); err == nil {
		t.Fatal("expected configuration error")
	}
}
