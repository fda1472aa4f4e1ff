// Package writer persists mapped documents into the document store.
//
// Documents write in batches keyed by the concatenation of the target's
// upsert_key_fields, so re-running a pipeline over unchanged input leaves the
// collection untouched. A failing document retries individually a bounded
// number of times and is then dropped; the batch keeps going.
package writer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"bindery/internal/docstore"
	"bindery/internal/etl/spec"
	"bindery/internal/logging"
)

const (
	defaultBatchSize  = 500
	defaultRetries    = 3
	retryBackoff      = 50 * time.Millisecond
	compositeKeyDelim = "|"
)

// Store is the document-store surface the writer mutates.
type Store interface {
	EnsureCollection(ctx context.Context, collection string, indexes []docstore.Index) error
	Upsert(ctx context.Context, collection, key string, fields map[string]any) error
	Insert(ctx context.Context, collection string, fields map[string]any) (string, error)
}

// Stats summarizes one write pass for a target.
type Stats struct {
	Written int
	Dropped int // documents abandoned after exhausting write retries
	NoKey   int // documents missing an upsert key value
}

// Writer batches document writes for ETL targets.
type Writer struct {
	store     Store
	batchSize int
	retries   int
	logger    *slog.Logger
}

// New builds a writer. Zero batchSize and retries take the package defaults.
func New(store Store, batchSize, retries int, logger *slog.Logger) *Writer {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if retries <= 0 {
		retries = defaultRetries
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Writer{store: store, batchSize: batchSize, retries: retries, logger: logger}
}

// Write ensures the target collection and its indexes exist, then writes
// every document in batches. Per-document failures are counted, not fatal.
func (w *Writer) Write(ctx context.Context, target spec.Target, docs []map[string]any) (Stats, error) {
	var stats Stats
	if err := w.store.EnsureCollection(ctx, target.CollectionName, collectionIndexes(target)); err != nil {
		return stats, fmt.Errorf("ensure collection %s: %w", target.CollectionName, err)
	}

	batchSize := target.BatchSize
	if batchSize <= 0 {
		batchSize = w.batchSize
	}
	for start := 0; start < len(docs); start += batchSize {
		end := start + batchSize
		if end > len(docs) {
			end = len(docs)
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		w.writeBatch(ctx, target, docs[start:end], &stats)
	}

	w.logger.Info("target written",
		logging.String("collection", target.CollectionName),
		logging.Int("written", stats.Written),
		logging.Int("dropped", stats.Dropped),
		logging.Int("missing_key", stats.NoKey))
	return stats, nil
}

func (w *Writer) writeBatch(ctx context.Context, target spec.Target, docs []map[string]any, stats *Stats) {
	for _, doc := range docs {
		var err error
		switch target.WriteMode {
		case "insert":
			err = w.withRetry(ctx, func() error {
				_, insertErr := w.store.Insert(ctx, target.CollectionName, doc)
				return insertErr
			})
		default:
			key, ok := compositeKey(doc, target.UpsertKeyFields)
			if !ok {
				stats.NoKey++
				w.logger.Warn("document missing upsert key value",
					logging.String("collection", target.CollectionName))
				continue
			}
			err = w.withRetry(ctx, func() error {
				return w.store.Upsert(ctx, target.CollectionName, key, doc)
			})
		}
		if err != nil {
			stats.Dropped++
			w.logger.Warn("document dropped after retries",
				logging.String("collection", target.CollectionName),
				logging.Error(err))
			continue
		}
		stats.Written++
	}
}

func (w *Writer) withRetry(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt < w.retries; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if attempt == w.retries-1 {
			break
		}
		select {
		case <-time.After(retryBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// collectionIndexes merges the declared indexes with a mandatory unique index
// on a single upsert key field. Composite keys are covered by the store's
// doc_key index.
func collectionIndexes(target spec.Target) []docstore.Index {
	indexes := make([]docstore.Index, 0, len(target.Indexes)+1)
	declared := map[string]bool{}
	for _, idx := range target.Indexes {
		unique := idx.Unique
		if len(target.UpsertKeyFields) == 1 && idx.Field == target.UpsertKeyFields[0] {
			unique = true
		}
		indexes = append(indexes, docstore.Index{Field: idx.Field, Unique: unique})
		declared[idx.Field] = true
	}
	if len(target.UpsertKeyFields) == 1 && !declared[target.UpsertKeyFields[0]] {
		indexes = append(indexes, docstore.Index{Field: target.UpsertKeyFields[0], Unique: true})
	}
	return indexes
}

// compositeKey concatenates the document's upsert key values. A nil or empty
// key value disqualifies the document.
func compositeKey(doc map[string]any, keys []string) (string, bool) {
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		part, ok := keyPart(doc[key])
		if !ok {
			return "", false
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, compositeKeyDelim), true
}

func keyPart(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		if strings.TrimSpace(v) == "" {
			return "", false
		}
		return v, true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int:
		return strconv.Itoa(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	case time.Time:
		return v.UTC().Format(time.RFC3339), true
	default:
		return fmt.Sprintf("%v", v), true
	}
}
