// Package googlebooks fetches book metadata from the Google Books volumes
// API.
package googlebooks

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
	providerName    = "googlebooks"
	defaultRate     = 1.0
	responseBodyCap = 4 * 1024 * 1024
)

// Provider queries the volumes search endpoint, rate limited client-side.
type Provider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New builds a provider from configuration. A nil client uses a default with
// no timeout; per-call deadlines come from the caller's context.
func New(cfg config.GoogleBooks, client *http.Client, logger *slog.Logger) *Provider {
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
		apiKey:  cfg.APIKey,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		logger:  logger,
	}
}

// Name implements augment.Provider.
func (p *Provider) Name() string { return providerName }

type volumesResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo struct {
			Title       string   `json:"title"`
			PageCount   int64    `json:"pageCount"`
			Description string   `json:"description"`
			Categories  []string `json:"categories"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

// Fetch searches for the volume by title and author and maps the best match
// into a partial result.
func (p *Provider) Fetch(ctx context.Context, req augment.Request) (augment.PartialMetadata, error) {
	if strings.TrimSpace(req.Title) == "" {
		return augment.PartialMetadata{}, augment.Wrap(augment.ErrPermanent, providerName, "fetch", "book has no title hint", nil)
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return augment.PartialMetadata{}, augment.Wrap(augment.ErrTransient, providerName, "rate limit", "", err)
	}

	query := fmt.Sprintf("intitle:%q", req.Title)
	if len(req.Authors) > 0 {
		query += fmt.Sprintf("+inauthor:%q", req.Authors[0])
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", "1")
	if p.apiKey != "" {
		params.Set("key", p.apiKey)
	}
	endpoint := p.baseURL + "/volumes?" + params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return augment.PartialMetadata{}, augment.Wrap(augment.ErrPermanent, providerName, "build request", "", err)
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		// Network errors and context deadlines both retry.
		return augment.PartialMetadata{}, augment.Wrap(augment.ErrTransient, providerName, "request", "", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return augment.PartialMetadata{}, err
	}

	var payload volumesResponse
	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyCap))
	if err != nil {
		return augment.PartialMetadata{}, augment.Wrap(augment.ErrTransient, providerName, "read response", "", err)
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return augment.PartialMetadata{}, augment.Wrap(augment.ErrPermanent, providerName, "decode response", "", err)
	}
	if payload.TotalItems == 0 || len(payload.Items) == 0 {
		return augment.PartialMetadata{}, augment.Wrap(augment.ErrNotFound, providerName, "fetch", "no volumes matched", nil)
	}

	info := payload.Items[0].VolumeInfo
	var result augment.PartialMetadata
	if info.PageCount > 0 {
		result.PageCount = &info.PageCount
	}
	if strings.TrimSpace(info.Description) != "" {
		desc := info.Description
		result.Description = &desc
	}
	if len(info.Categories) > 0 {
		genres := make(map[string]float64, len(info.Categories))
		for _, category := range info.Categories {
			genres[category] = 1
		}
		result.Genres = genres
	}
	p.logger.Debug("volume fetched",
		logging.String("book_id", req.BookID),
		logging.String("matched_title", info.Title))
	return result, nil
}

func classifyStatus(status int) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusNotFound:
		return augment.Wrap(augment.ErrNotFound, providerName, "request", http.StatusText(status), nil)
	case status == http.StatusTooManyRequests || status >= 500:
		return augment.Wrap(augment.ErrTransient, providerName, "request", fmt.Sprintf("status %d", status), nil)
	default:
		return augment.Wrap(augment.ErrPermanent, providerName, "request", fmt.Sprintf("status %d", status), nil)
	}
}

var _ augment.Provider = (*Provider)(nil)
