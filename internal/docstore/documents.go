package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document is one stored document plus its composite key.
type Document struct {
	Key    string
	Fields map[string]any
}

func marshalDoc(fields map[string]any) (string, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	return string(body), nil
}

// Upsert inserts or replaces the document stored under key. The write is a
// no-op when the stored body already matches, so repeated runs leave both the
// row and its updated_at timestamp untouched.
func (s *Store) Upsert(ctx context.Context, collection, key string, fields map[string]any) error {
	table, err := tableName(collection)
	if err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return ErrMissingKey
	}
	body, err := marshalDoc(fields)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	stmt := fmt.Sprintf(`INSERT INTO %s (doc_key, doc, created_at, updated_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(doc_key) DO UPDATE SET
            doc = excluded.doc,
            updated_at = excluded.updated_at
        WHERE %s.doc <> excluded.doc`, table, table)
	if _, err := s.execWithRetry(ctx, stmt, key, body, now, now); err != nil {
		return fmt.Errorf("upsert into %s: %w", collection, err)
	}
	return nil
}

// Insert appends a document under a generated key. Used for append-only
// collections such as the augmentation log.
func (s *Store) Insert(ctx context.Context, collection string, fields map[string]any) (string, error) {
	table, err := tableName(collection)
	if err != nil {
		return "", err
	}
	body, err := marshalDoc(fields)
	if err != nil {
		return "", err
	}
	key := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	stmt := fmt.Sprintf(`INSERT INTO %s (doc_key, doc, created_at, updated_at) VALUES (?, ?, ?, ?)`, table)
	if _, err := s.execWithRetry(ctx, stmt, key, body, now, now); err != nil {
		return "", fmt.Errorf("insert into %s: %w", collection, err)
	}
	return key, nil
}

// Get fetches the document stored under key.
func (s *Store) Get(ctx context.Context, collection, key string) (*Document, error) {
	table, err := tableName(collection)
	if err != nil {
		return nil, err
	}
	ctx = ensureContext(ctx)

	var body string
	stmt := fmt.Sprintf(`SELECT doc FROM %s WHERE doc_key = ?`, table)
	if err := s.db.QueryRowContext(ctx, stmt, key).Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get from %s: %w", collection, err)
	}
	return decodeDocument(key, body)
}

// Count reports the number of documents in the collection.
func (s *Store) Count(ctx context.Context, collection string) (int64, error) {
	table, err := tableName(collection)
	if err != nil {
		return 0, err
	}
	ctx = ensureContext(ctx)

	var count int64
	stmt := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)
	if err := s.db.QueryRowContext(ctx, stmt).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return count, nil
}

// FindMissingAny returns documents where at least one of the named fields is
// absent or null. A limit of 0 returns every match.
func (s *Store) FindMissingAny(ctx context.Context, collection string, fields []string, limit int) ([]Document, error) {
	table, err := tableName(collection)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, errors.New("at least one field required")
	}
	conditions := make([]string, 0, len(fields))
	for _, field := range fields {
		path, err := fieldPath(field)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, fmt.Sprintf("json_extract(doc, %s) IS NULL", path))
	}
	stmt := fmt.Sprintf(`SELECT doc_key, doc FROM %s WHERE %s ORDER BY id`,
		table, strings.Join(conditions, " OR "))
	if limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", limit)
	}
	return s.queryDocuments(ctx, collection, stmt)
}

// Recent returns the most recently inserted documents, newest first.
func (s *Store) Recent(ctx context.Context, collection string, limit int) ([]Document, error) {
	table, err := tableName(collection)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	stmt := fmt.Sprintf(`SELECT doc_key, doc FROM %s ORDER BY id DESC LIMIT %d`, table, limit)
	return s.queryDocuments(ctx, collection, stmt)
}

// SetFields merges the named fields into the document stored under key.
func (s *Store) SetFields(ctx context.Context, collection, key string, fields map[string]any) error {
	doc, err := s.Get(ctx, collection, key)
	if err != nil {
		return err
	}
	for name, value := range fields {
		doc.Fields[name] = value
	}
	return s.Upsert(ctx, collection, key, doc.Fields)
}

func (s *Store) queryDocuments(ctx context.Context, collection, stmt string, args ...any) ([]Document, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var key, body string
		if err := rows.Scan(&key, &body); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", collection, err)
		}
		doc, err := decodeDocument(key, body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func decodeDocument(key, body string) (*Document, error) {
	fields := map[string]any{}
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", key, err)
	}
	return &Document{Key: key, Fields: fields}, nil
}
