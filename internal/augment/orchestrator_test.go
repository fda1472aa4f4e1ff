package augment

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"bindery/internal/docstore"
)

type fakeProvider struct {
	name   string
	result PartialMetadata
	err    error
	failN  int // fail this many calls before succeeding

	mu     sync.Mutex
	calls  int
	onCall func()
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Fetch(_ context.Context, _ Request) (PartialMetadata, error) {
	f.mu.Lock()
	f.calls++
	calls := f.calls
	hook := f.onCall
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if f.err != nil && (f.failN == 0 || calls <= f.failN) {
		return PartialMetadata{}, f.err
	}
	return f.result, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func int64p(v int64) *int64 { return &v }
func strp(v string) *string { return &v }

func newStore(t *testing.T) *docstore.Store {
	t.Helper()
	store, err := docstore.Open(filepath.Join(t.TempDir(), "bindery.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.EnsureCollection(context.Background(), booksCollection, nil); err != nil {
		t.Fatalf("ensure books: %v", err)
	}
	return store
}

func putBook(t *testing.T, store *docstore.Store, key string, fields map[string]any) {
	t.Helper()
	if err := store.Upsert(context.Background(), booksCollection, key, fields); err != nil {
		t.Fatalf("put book %s: %v", key, err)
	}
}

func attemptsFor(t *testing.T, store *docstore.Store, bookID string) []docstore.Document {
	t.Helper()
	all, err := store.Recent(context.Background(), logCollection, 100)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var out []docstore.Document
	for _, doc := range all {
		if doc.Fields["book_id"] == bookID {
			out = append(out, doc)
		}
	}
	return out
}

func TestProviderPrecedence(t *testing.T) {
	store := newStore(t)
	putBook(t, store, "42", map[string]any{
		"book_id": "42", "title": "Dune", "page_count": int64(412),
	})

	first := &fakeProvider{name: "a", result: PartialMetadata{Description: strp("from a")}}
	second := &fakeProvider{name: "b", result: PartialMetadata{
		Description: strp("from b"),
		Genres:      map[string]float64{"Science Fiction": 2},
	}}

	orch := New(store, []Provider{first, second}, Options{Concurrency: 1}, nil)
	stats, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Selected != 1 || stats.Merged != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	book, err := store.Get(context.Background(), booksCollection, "42")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if book.Fields["description"] != "from a" {
		t.Fatalf("first provider should win description, got %v", book.Fields["description"])
	}

	genres, err := store.Get(context.Background(), genresCollection, "42")
	if err != nil {
		t.Fatalf("Get genres: %v", err)
	}
	weights, ok := genres.Fields["genres"].(map[string]any)
	if !ok || weights["science fiction"] != float64(2) {
		t.Fatalf("genres = %v", genres.Fields["genres"])
	}

	attempts := attemptsFor(t, store, "42")
	if len(attempts) != 2 {
		t.Fatalf("attempts = %d, want exactly one per provider invoked", len(attempts))
	}
}

func TestTransientRetriesThenFallbackProvider(t *testing.T) {
	store := newStore(t)
	putBook(t, store, "7", map[string]any{
		"book_id": "7", "title": "Solaris",
		"description": "a planet thinks", "genres_initial": []string{"sf"},
	})

	remote := &fakeProvider{name: "remote", err: Wrap(ErrTransient, "remote", "fetch", "timeout", nil)}
	cli := &fakeProvider{name: "cli", result: PartialMetadata{PageCount: int64p(300)}}

	orch := New(store, []Provider{remote, cli}, Options{Concurrency: 1, RetryAttempts: 3}, nil)
	stats, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Merged != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if remote.callCount() != 3 {
		t.Fatalf("transient failure should use the whole retry budget, calls = %d", remote.callCount())
	}

	book, err := store.Get(context.Background(), booksCollection, "7")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if book.Fields["page_count"] != float64(300) {
		t.Fatalf("page_count = %v", book.Fields["page_count"])
	}

	attempts := attemptsFor(t, store, "7")
	if len(attempts) != 2 {
		t.Fatalf("attempts = %d, want one summarized row per provider", len(attempts))
	}
	for _, attempt := range attempts {
		switch attempt.Fields["provider"] {
		case "remote":
			if attempt.Fields["outcome"] != OutcomeFailure || attempt.Fields["retries"] != float64(2) {
				t.Fatalf("remote attempt = %v", attempt.Fields)
			}
		case "cli":
			if attempt.Fields["outcome"] != OutcomeSuccess {
				t.Fatalf("cli attempt = %v", attempt.Fields)
			}
		}
	}
}

func TestPermanentFailureDoesNotRetry(t *testing.T) {
	store := newStore(t)
	putBook(t, store, "9", map[string]any{"book_id": "9", "title": "Lost"})

	missing := &fakeProvider{name: "remote", err: Wrap(ErrNotFound, "remote", "fetch", "no match", nil)}
	orch := New(store, []Provider{missing}, Options{Concurrency: 1, RetryAttempts: 3}, nil)
	stats, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if missing.callCount() != 1 {
		t.Fatalf("permanent failure should not retry, calls = %d", missing.callCount())
	}
	if stats.Exhausted != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestZeroProvidersLogsConfigurationError(t *testing.T) {
	store := newStore(t)
	putBook(t, store, "1", map[string]any{"book_id": "1", "title": "Orphan"})

	orch := New(store, nil, Options{Concurrency: 1}, nil)
	stats, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Exhausted != 1 || stats.Attempts != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	attempts := attemptsFor(t, store, "1")
	if len(attempts) != 1 || attempts[0].Fields["outcome"] != OutcomeFailure {
		t.Fatalf("attempts = %v", attempts)
	}
}

func TestPartialAugmentationIsKept(t *testing.T) {
	store := newStore(t)
	putBook(t, store, "3", map[string]any{"book_id": "3", "title": "Half Known"})

	partial := &fakeProvider{name: "a", result: PartialMetadata{Description: strp("only this")}}
	orch := New(store, []Provider{partial}, Options{Concurrency: 1}, nil)
	stats, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Exhausted != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	book, err := store.Get(context.Background(), booksCollection, "3")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if book.Fields["description"] != "only this" {
		t.Fatalf("partial merge should persist, got %v", book.Fields)
	}
	attempts := attemptsFor(t, store, "3")
	if len(attempts) != 1 || attempts[0].Fields["outcome"] != OutcomePartial {
		t.Fatalf("attempts = %v", attempts)
	}
}

func TestAlreadyScrapedGenresAreNotRefetched(t *testing.T) {
	store := newStore(t)
	putBook(t, store, "5", map[string]any{
		"book_id": "5", "title": "Done Before",
		"page_count": int64(100), "description": "already here",
	})
	if err := store.EnsureCollection(context.Background(), genresCollection, nil); err != nil {
		t.Fatalf("ensure genres: %v", err)
	}
	if err := store.Upsert(context.Background(), genresCollection, "5", map[string]any{
		"book_id": "5", "genres": map[string]float64{"mystery": 1},
	}); err != nil {
		t.Fatalf("seed genres: %v", err)
	}

	provider := &fakeProvider{name: "p", result: PartialMetadata{Genres: map[string]float64{"horror": 1}}}
	orch := New(store, []Provider{provider}, Options{Concurrency: 1}, nil)
	stats, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Merged != 1 || provider.callCount() != 0 {
		t.Fatalf("preloaded genres should satisfy the book, stats = %+v calls = %d", stats, provider.callCount())
	}

	doc, err := store.Get(context.Background(), genresCollection, "5")
	if err != nil {
		t.Fatalf("Get genres: %v", err)
	}
	genres := doc.Fields["genres"].(map[string]any)
	if _, ok := genres["mystery"]; !ok || len(genres) != 1 {
		t.Fatalf("existing genres must not be overwritten: %v", genres)
	}
}

func TestCancellationStopsNewBooks(t *testing.T) {
	store := newStore(t)
	putBook(t, store, "a", map[string]any{"book_id": "a", "title": "First"})
	putBook(t, store, "b", map[string]any{"book_id": "b", "title": "Second"})

	ctx, cancel := context.WithCancel(context.Background())
	provider := &fakeProvider{name: "p", result: PartialMetadata{Description: strp("d")}}
	provider.onCall = cancel

	orch := New(store, []Provider{provider}, Options{Concurrency: 1}, nil)
	stats, err := orch.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Pending == 0 {
		t.Fatalf("cancellation should leave unstarted books pending, stats = %+v", stats)
	}
	if provider.callCount() != 1 {
		t.Fatalf("no new trials after cancellation, calls = %d", provider.callCount())
	}
}
