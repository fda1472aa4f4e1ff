package augment

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"bindery/internal/docstore"
	"bindery/internal/logging"
)

const (
	booksCollection  = "books"
	genresCollection = "book_genres_scraped"
	logCollection    = "augmentation_log"

	defaultConcurrency   = 4
	defaultRetryAttempts = 3
	defaultCallTimeout   = 30 * time.Second
	retryBaseBackoff     = 250 * time.Millisecond
)

// augmentableFields are the book fields whose absence selects a book for
/// augmentation. genres_initial doubles as the genre marker: books whose raw
// sources carried no genres keep a null there and stay eligible for scraping.
var augmentableFields = []string{"page_count", "description", "genres_initial"}

// Attempt outcomes, as persisted in the augmentation log.
const (
	OutcomeSuccess = "success" // filled every field still missing
	OutcomePartial = "partial" // filled some of the missing fields
	OutcomeSkipped = "skipped" // supplied nothing the book still needed
	OutcomeFailure = "failure" // provider invocation failed
)

// Options configures one augmentation run.
type Options struct {
	// Concurrency bounds the number of books processed in parallel.
	Concurrency int
	// BookLimit caps the number of books selected; 0 selects every match.
	BookLimit int
	// RetryAttempts bounds invocations per provider call on transient
	// failures.
	RetryAttempts int
	// CallTimeout applies per provider call, not per book.
	CallTimeout time.Duration
}

// Store is the document-store surface the orchestrator reads and mutates.
type Store interface {
	EnsureCollection(ctx context.Context, collection string, indexes []docstore.Index) error
	FindMissingAny(ctx context.Context, collection string, fields []string, limit int) ([]docstore.Document, error)
	Get(ctx context.Context, collection, key string) (*docstore.Document, error)
	SetFields(ctx context.Context, collection, key string, fields map[string]any) error
	Upsert(ctx context.Context, collection, key string, fields map[string]any) error
	Insert(ctx context.Context, collection string, fields map[string]any) (string, error)
}

// Stats summarizes one augmentation run.
type Stats struct {
	Selected  int // books matching the missing-field scan
	Merged    int // books that ended with every augmentable field filled
	Exhausted int // books that ran out of providers with fields still missing
	Pending   int // books not processed before cancellation
	Attempts  int // provider invocations logged
}

// Orchestrator drives provider trials for books with missing metadata.
type Orchestrator struct {
	store     Store
	providers []Provider
	opts      Options
	logger    *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// New builds an orchestrator over the given providers, tried in order.
func New(store Store, providers []Provider, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = defaultRetryAttempts
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{store: store, providers: providers, opts: opts, logger: logger}
}

// Run selects books missing augmentable fields and processes them through
// the provider chain. Cancellation stops new provider trials; books not yet
// started remain eligible for the next run.
func (o *Orchestrator) Run(ctx context.Context) (*Stats, error) {
	if err := o.store.EnsureCollection(ctx, logCollection, []docstore.Index{{Field: "book_id"}}); err != nil {
		return nil, err
	}
	if err := o.store.EnsureCollection(ctx, genresCollection, []docstore.Index{{Field: "book_id", Unique: true}}); err != nil {
		return nil, err
	}

	books, err := o.store.FindMissingAny(ctx, booksCollection, augmentableFields, o.opts.BookLimit)
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	o.mu.Lock()
	o.stats = Stats{Selected: len(books)}
	o.mu.Unlock()

	o.logger.Info("augmentation starting",
		logging.String("run_id", runID),
		logging.Int("books", len(books)),
		logging.Int("providers", len(o.providers)),
		logging.Int("concurrency", o.opts.Concurrency))

	jobs := make(chan docstore.Document)
	var wg sync.WaitGroup
	for i := 0; i < o.opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for book := range jobs {
				if ctx.Err() != nil {
					o.mu.Lock()
					o.stats.Pending++
					o.mu.Unlock()
					continue
				}
				o.processBook(ctx, runID, book)
			}
		}()
	}

feed:
	for i, book := range books {
		select {
		case jobs <- book:
		case <-ctx.Done():
			o.mu.Lock()
			o.stats.Pending += len(books) - i
			o.mu.Unlock()
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	o.mu.Lock()
	stats := o.stats
	o.mu.Unlock()

	o.logger.Info("augmentation finished",
		logging.String("run_id", runID),
		logging.Int("merged", stats.Merged),
		logging.Int("exhausted", stats.Exhausted),
		logging.Int("pending", stats.Pending),
		logging.Int("attempts", stats.Attempts))
	return &stats, nil
}

// bookState tracks which augmentable fields one book still needs.
type bookState struct {
	needPage   bool
	needDesc   bool
	needGenres bool
	merged     PartialMetadata
}

func (s *bookState) missing() []string {
	var out []string
	if s.needPage {
		out = append(out, "page_count")
	}
	if s.needDesc {
		out = append(out, "description")
	}
	if s.needGenres {
		out = append(out, "genres")
	}
	return out
}

func (s *bookState) done() bool {
	return !s.needPage && !s.needDesc && !s.needGenres
}

func (o *Orchestrator) processBook(ctx context.Context, runID string, book docstore.Document) {
	state := &bookState{
		needPage:   book.Fields["page_count"] == nil,
		needDesc:   book.Fields["description"] == nil,
		needGenres: book.Fields["genres_initial"] == nil,
	}
	if state.needGenres && o.hasScrapedGenres(ctx, book.Key) {
		// A previous run already scraped genres for this book.
		state.needGenres = false
	}
	req := Request{
		BookID:  book.Key,
		Title:   stringField(book.Fields, "title"),
		Authors: authorsOf(book.Fields),
	}

	if len(o.providers) == 0 {
		o.logAttempt(ctx, runID, req.BookID, "none", OutcomeFailure, nil, 0,
			Wrap(ErrConfiguration, "", "augment", "no providers configured", nil))
		o.finishBook(ctx, req.BookID, state)
		return
	}

	for _, provider := range o.providers {
		if state.done() {
			break
		}
		// Cancellation stops new trials; the book stays eligible next run.
		if ctx.Err() != nil {
			break
		}
		result, retries, err := o.invoke(ctx, provider, req)
		if err != nil {
			o.logAttempt(ctx, runID, req.BookID, provider.Name(), OutcomeFailure, nil, retries, err)
			continue
		}
		obtained := merge(state, result)
		outcome := OutcomeSkipped
		switch {
		case len(obtained) > 0 && state.done():
			outcome = OutcomeSuccess
		case len(obtained) > 0:
			outcome = OutcomePartial
		}
		o.logAttempt(ctx, runID, req.BookID, provider.Name(), outcome, obtained, retries, nil)
	}

	o.finishBook(ctx, req.BookID, state)
}

// invoke calls one provider with the per-call timeout, retrying transient
// failures within the configured budget. The retries count reports how many
// extra invocations were made.
func (o *Orchestrator) invoke(ctx context.Context, provider Provider, req Request) (PartialMetadata, int, error) {
	var lastErr error
	for attempt := 1; attempt <= o.opts.RetryAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
		result, err := provider.Fetch(callCtx, req)
		cancel()
		if err == nil {
			return result, attempt - 1, nil
		}
		lastErr = err
		if !IsTransient(err) || attempt == o.opts.RetryAttempts || ctx.Err() != nil {
			return PartialMetadata{}, attempt - 1, lastErr
		}
		select {
		case <-time.After(retryBaseBackoff * time.Duration(attempt)):
		case <-ctx.Done():
			return PartialMetadata{}, attempt - 1, lastErr
		}
	}
	return PartialMetadata{}, o.opts.RetryAttempts - 1, lastErr
}

// merge folds the provider result into the book state, keeping only fields
// still missing. Returns the names of the fields actually taken.
func merge(state *bookState, result PartialMetadata) []string {
	var obtained []string
	if state.needPage && result.PageCount != nil {
		state.merged.PageCount = result.PageCount
		state.needPage = false
		obtained = append(obtained, "page_count")
	}
	if state.needDesc && result.Description != nil {
		state.merged.Description = result.Description
		state.needDesc = false
		obtained = append(obtained, "description")
	}
	if state.needGenres {
		if genres := NormalizeGenres(result.Genres); genres != nil {
			state.merged.Genres = genres
			state.needGenres = false
			obtained = append(obtained, "genres")
		}
	}
	return obtained
}

// finishBook persists whatever was merged. Partial augmentation is kept, not
// rolled back.
func (o *Orchestrator) finishBook(ctx context.Context, bookID string, state *bookState) {
	updates := map[string]any{}
	if state.merged.PageCount != nil {
		updates["page_count"] = *state.merged.PageCount
	}
	if state.merged.Description != nil {
		updates["description"] = *state.merged.Description
	}
	if len(updates) > 0 {
		if err := o.store.SetFields(ctx, booksCollection, bookID, updates); err != nil {
			o.logger.Warn("book update failed",
				logging.String("book_id", bookID),
				logging.Error(err))
		}
	}
	if state.merged.Genres != nil {
		doc := map[string]any{
			"book_id":      bookID,
			"genres":       state.merged.Genres,
			"last_updated": time.Now().UTC().Format(time.RFC3339),
		}
		if err := o.store.Upsert(ctx, genresCollection, bookID, doc); err != nil {
			o.logger.Warn("genre write failed",
				logging.String("book_id", bookID),
				logging.Error(err))
		}
	}

	o.mu.Lock()
	if state.done() {
		o.stats.Merged++
	} else {
		o.stats.Exhausted++
	}
	o.mu.Unlock()
}

// logAttempt appends one audit row. Exactly one row is written per provider
// invocation; transient retries within the invocation are summarized in the
// retries count.
func (o *Orchestrator) logAttempt(ctx context.Context, runID, bookID, provider, outcome string, obtained []string, retries int, attemptErr error) {
	fields := map[string]any{
		"attempt_id": uuid.NewString(),
		"run_id":     runID,
		"book_id":    bookID,
		"provider":   provider,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		"outcome":    outcome,
		"retries":    retries,
	}
	if len(obtained) > 0 {
		fields["fields_obtained"] = obtained
	}
	if attemptErr != nil {
		fields["error"] = attemptErr.Error()
	}
	if _, err := o.store.Insert(ctx, logCollection, fields); err != nil {
		o.logger.Warn("audit write failed",
			logging.String("book_id", bookID),
			logging.String("provider", provider),
			logging.Error(err))
	}

	o.mu.Lock()
	o.stats.Attempts++
	o.mu.Unlock()
}

// hasScrapedGenres reports whether a genre-scrape document with at least one
// genre already exists for the book.
func (o *Orchestrator) hasScrapedGenres(ctx context.Context, bookID string) bool {
	doc, err := o.store.Get(ctx, genresCollection, bookID)
	if err != nil {
		return false
	}
	genres, ok := doc.Fields["genres"].(map[string]any)
	return ok && len(genres) > 0
}

func stringField(fields map[string]any, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

// authorsOf pulls author hints from whichever shape the books mapping
// produced.
func authorsOf(fields map[string]any) []string {
	switch v := fields["authors"].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	case string:
		if v != "" {
			return []string{v}
		}
	}
	if s, ok := fields["author_name"].(string); ok && s != "" {
		return []string{s}
	}
	return nil
}
