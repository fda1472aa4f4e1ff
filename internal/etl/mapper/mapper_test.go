package mapper

import (
	"testing"
	"time"

	"bindery/internal/etl/dataset"
	"bindery/internal/etl/spec"
)

var bookTarget = spec.Target{
	CollectionName:  "books",
	SourceAlias:     "books",
	WriteMode:       "upsert",
	UpsertKeyFields: []string{"book_id"},
	DocumentStructure: []spec.FieldRule{
		{SourceColumn: "book_id", TargetField: "book_id", Type: "string", IsPrimaryKey: true},
		{SourceColumn: "title", TargetField: "title", Type: "string"},
		{SourceColumn: "num_pages", TargetField: "page_count", Type: "integer"},
		{SourceColumn: "average_rating", TargetField: "rating", Type: "float", DefaultValue: float64(0)},
		{SourceColumn: "genres", TargetField: "genres_initial", Type: "list_of_strings"},
		{
			SourceColumns: []string{"publication_year", "publication_month", "publication_day"},
			TargetField:   "publication_date",
			Transform:     "combine_date_parts",
		},
		{Value: "goodreads", TargetField: "source", Type: "string"},
		{TargetField: "ingested_at", Transform: "current_timestamp"},
	},
}

func TestMapBookRow(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m, err := New(bookTarget, now)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	fields, fallbacks, ok := m.Map(dataset.Record{
		"book_id":           "42",
		"title":             "Dune",
		"num_pages":         "412",
		"average_rating":    "4.25",
		"publication_year":  "1965",
		"publication_month": "",
		"publication_day":   "",
	})
	if !ok {
		t.Fatal("row with a primary key should map")
	}
	if fields["book_id"] != "42" || fields["title"] != "Dune" {
		t.Fatalf("identity fields = %v", fields)
	}
	if fields["page_count"] != int64(412) {
		t.Fatalf("page_count = %v", fields["page_count"])
	}
	if fields["rating"] != 4.25 {
		t.Fatalf("rating = %v", fields["rating"])
	}
	if fields["genres_initial"] != nil {
		t.Fatalf("absent genres should map to null, got %v", fields["genres_initial"])
	}
	date, ok := fields["publication_date"].(time.Time)
	if !ok || date.Year() != 1965 || date.Month() != time.January || date.Day() != 1 {
		t.Fatalf("publication_date = %v", fields["publication_date"])
	}
	if fields["source"] != "goodreads" {
		t.Fatalf("static field = %v", fields["source"])
	}
	if fields["ingested_at"] != now {
		t.Fatalf("ingested_at = %v", fields["ingested_at"])
	}
	// One fallback for the missing genres column.
	if fallbacks != 1 {
		t.Fatalf("fallbacks = %d, want 1", fallbacks)
	}
}

func TestMapSkipsNullPrimaryKey(t *testing.T) {
	m, err := New(bookTarget, time.Now())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, ok := m.Map(dataset.Record{"title": "Orphan"}); ok {
		t.Fatal("row without a primary key value should be skipped")
	}
}

func TestMapUnparsableValueTakesDefault(t *testing.T) {
	m, err := New(bookTarget, time.Now())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fields, fallbacks, ok := m.Map(dataset.Record{
		"book_id":          "7",
		"num_pages":        "412.5",
		"average_rating":   "n/a",
		"publication_year": "1999",
	})
	if !ok {
		t.Fatal("row should map")
	}
	if fields["page_count"] != nil {
		t.Fatalf("unparsable page count with no default should be null, got %v", fields["page_count"])
	}
	if fields["rating"] != float64(0) {
		t.Fatalf("unparsable rating should take declared default, got %v", fields["rating"])
	}
	if fallbacks < 2 {
		t.Fatalf("fallbacks = %d, want at least 2", fallbacks)
	}
}

func TestMapListOfObjects(t *testing.T) {
	target := spec.Target{
		CollectionName: "reviews",
		DocumentStructure: []spec.FieldRule{
			{SourceColumn: "review_id", TargetField: "review_id", Type: "string", IsPrimaryKey: true},
			{
				SourceColumn: "shelves",
				TargetField:  "shelves",
				Type:         "list_of_objects",
				ObjectMapping: []spec.ObjectKeyRule{
					{SourceKey: "name", TargetKey: "shelf", Type: "string"},
					{SourceKey: "count", TargetKey: "count", Type: "integer", DefaultValue: int64(0)},
				},
			},
		},
	}
	m, err := New(target, time.Now())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fields, _, ok := m.Map(dataset.Record{
		"review_id": "r1",
		"shelves": []any{
			map[string]any{"name": "to-read", "count": "8"},
			"not an object",
			map[string]any{"name": "favorites"},
		},
	})
	if !ok {
		t.Fatal("row should map")
	}
	shelves, ok := fields["shelves"].([]map[string]any)
	if !ok || len(shelves) != 2 {
		t.Fatalf("shelves = %v", fields["shelves"])
	}
	if shelves[0]["shelf"] != "to-read" || shelves[0]["count"] != int64(8) {
		t.Fatalf("first shelf = %v", shelves[0])
	}
	if shelves[1]["count"] != int64(0) {
		t.Fatalf("missing count should take its default, got %v", shelves[1])
	}
}

func TestMapSetCountsSkipsAndFallbacks(t *testing.T) {
	m, err := New(bookTarget, time.Now())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	set := dataset.NewSet("books", []string{"book_id", "title"})
	set.Rows = []dataset.Record{
		{"book_id": "1", "title": "A", "publication_year": "2001"},
		{"title": "no key"},
		{"book_id": "2", "title": "B", "publication_year": "2002"},
	}
	docs, stats := m.MapSet(set)
	if len(docs) != 2 || stats.Mapped != 2 || stats.Skipped != 1 {
		t.Fatalf("docs = %d, stats = %+v", len(docs), stats)
	}
	if stats.Fallbacks == 0 {
		t.Fatal("missing optional columns should count as fallbacks")
	}
}

func TestNewRejectsBadDatePartsRule(t *testing.T) {
	target := spec.Target{
		CollectionName: "books",
		DocumentStructure: []spec.FieldRule{
			{SourceColumns: []string{"y", "m"}, TargetField: "d", Transform: "combine_date_parts"},
		},
	}
	if _, err := New(target, time.Now()); err == nil {
		t.Fatal("expected error for malformed date-parts rule")
	}
}
