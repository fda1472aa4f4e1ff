package docstore

import (
	"context"
	"fmt"
	"strings"
)

// Index declares one field index on a collection.
type Index struct {
	Field  string
	Unique bool
}

// EnsureCollection creates the collection table and its declared indexes if
// they do not exist yet. The unique doc_key index backing upserts is always
// present.
func (s *Store) EnsureCollection(ctx context.Context, collection string, indexes []Index) error {
	table, err := tableName(collection)
	if err != nil {
		return err
	}
	ctx = ensureContext(ctx)

	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        doc_key TEXT NOT NULL,
        doc TEXT NOT NULL,
        created_at TEXT NOT NULL,
        updated_at TEXT NOT NULL
    )`, table)
	if _, err := s.execWithRetry(ctx, create); err != nil {
		return fmt.Errorf("create collection %s: %w", collection, err)
	}

	keyIndex := fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS "col_%s_doc_key" ON %s (doc_key)`, collection, table)
	if _, err := s.execWithRetry(ctx, keyIndex); err != nil {
		return fmt.Errorf("create key index for %s: %w", collection, err)
	}

	for _, idx := range indexes {
		path, err := fieldPath(idx.Field)
		if err != nil {
			return err
		}
		unique := ""
		if idx.Unique {
			unique = "UNIQUE "
		}
		stmt := fmt.Sprintf(`CREATE %sINDEX IF NOT EXISTS "col_%s_%s" ON %s (json_extract(doc, %s))`,
			unique, collection, idx.Field, table, path)
		if _, err := s.execWithRetry(ctx, stmt); err != nil {
			return fmt.Errorf("create index %s.%s: %w", collection, idx.Field, err)
		}
	}
	return nil
}

// Collections lists the collection names present in the store.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name LIKE 'col_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan collection name: %w", err)
		}
		names = append(names, strings.TrimPrefix(name, "col_"))
	}
	return names, rows.Err()
}
