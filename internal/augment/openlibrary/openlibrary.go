// Package openlibrary fetches book metadata from the Open Library search and
// works APIs.
package openlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"bindery/internal/augment"
	"bindery/internal/config"
	"bindery/internal/logging"
)

const (
	providerName    = "openlibrary"
	defaultRate     = 1.0
	maxSubjects     = 10
	responseBodyCap = 4 * 1024 * 1024
)

// Provider resolves a book through the search endpoint, then pulls the work
// record for its description and subjects.
type Provider struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New builds a provider from configuration.
func New(cfg config.OpenLibrary, client *http.Client, logger *slog.Logger) *Provider {
	if client == nil {
		client = &http.Client{}
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = defaultRate
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Provider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		logger:  logger,
	}
}

// Name implements augment.Provider.
func (p *Provider) Name() string { return providerName }

type searchResponse struct {
	NumFound int `json:"numFound"`
	Docs     []struct {
		Key                 string `json:"key"`
		Title               string `json:"title"`
		NumberOfPagesMedian int64  `json:"number_of_pages_median"`
	} `json:"docs"`
}

type workResponse struct {
	Description json.RawMessage `json:"description"`
	Subjects    []string        `json:"subjects"`
}

// Fetch searches by title and author, then enriches from the matched work.
// A work-record failure after a successful search degrades to the search
// fields instead of failing the invocation.
func (p *Provider) Fetch(ctx context.Context, req augment.Request) (augment.PartialMetadata, error) {
	if strings.TrimSpace(req.Title) == "" {
		return augment.PartialMetadata{}, augment.Wrap(augment.ErrPermanent, providerName, "fetch", "book has no title hint", nil)
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return augment.PartialMetadata{}, augment.Wrap(augment.ErrTransient, providerName, "rate limit", "", err)
	}

	params := url.Values{}
	params.Set("title", req.Title)
	if len(req.Authors) > 0 {
		params.Set("author", req.Authors[0])
	}
	params.Set("limit", "1")
	params.Set("fields", "key,title,number_of_pages_median")

	var search searchResponse
	if err := p.getJSON(ctx, p.baseURL+"/search.json?"+params.Encode(), &search); err != nil {
		return augment.PartialMetadata{}, err
	}
	if search.NumFound == 0 || len(search.Docs) == 0 {
		return augment.PartialMetadata{}, augment.Wrap(augment.ErrNotFound, providerName, "search", "no works matched", nil)
	}

	doc := search.Docs[0]
	var result augment.PartialMetadata
	if doc.NumberOfPagesMedian > 0 {
		pages := doc.NumberOfPagesMedian
		result.PageCount = &pages
	}

	if strings.HasPrefix(doc.Key, "/works/") {
		var work workResponse
		if err := p.getJSON(ctx, p.baseURL+doc.Key+".json", &work); err != nil {
			if result.Empty() {
				return augment.PartialMetadata{}, err
			}
			p.logger.Debug("work fetch degraded to search fields",
				logging.String("book_id", req.BookID),
				logging.Error(err))
			return result, nil
		}
		if desc := decodeDescription(work.Description); desc != "" {
			result.Description = &desc
		}
		if len(work.Subjects) > 0 {
			subjects := work.Subjects
			if len(subjects) > maxSubjects {
				subjects = subjects[:maxSubjects]
			}
			genres := make(map[string]float64, len(subjects))
			for _, subject := range subjects {
				genres[subject] = 1
			}
			result.Genres = genres
		}
	}
	return result, nil
}

func (p *Provider) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return augment.Wrap(augment.ErrPermanent, providerName, "build request", "", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return augment.Wrap(augment.ErrTransient, providerName, "request", "", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return augment.Wrap(augment.ErrNotFound, providerName, "request", http.StatusText(resp.StatusCode), nil)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return augment.Wrap(augment.ErrTransient, providerName, "request", fmt.Sprintf("status %d", resp.StatusCode), nil)
	default:
		return augment.Wrap(augment.ErrPermanent, providerName, "request", fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyCap))
	if err != nil {
		return augment.Wrap(augment.ErrTransient, providerName, "read response", "", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return augment.Wrap(augment.ErrPermanent, providerName, "decode response", "", err)
	}
	return nil
}

// decodeDescription handles both shapes Open Library uses: a bare string and
// a {type, value} object.
func decodeDescription(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return strings.TrimSpace(plain)
	}
	var typed struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &typed); err == nil {
		return strings.TrimSpace(typed.Value)
	}
	return ""
}

var _ augment.Provider = (*Provider)(nil)
