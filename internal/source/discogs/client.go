// Package discogs syncs the physical collection and wantlist from the
// Discogs REST API. One shared client handles auth, rate limiting and
// error classification for both sources.
package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sydlexius/milkcrate/internal/source"
	"github.com/sydlexius/milkcrate/internal/version"
)

const (
	defaultBaseURL = "https://api.discogs.com"
	defaultPerPage = 100

	// Discogs allows 60 requests per minute for authenticated clients.
	requestsPerMinute = 60
)

// Config carries the client settings from the discogs config section.
// Username is a per-source concern and stays out of the client.
type Config struct {
	Token   string
	BaseURL string // empty means the public API
	PerPage int    // page size for list endpoints, 1..100
}

// Client is a rate-limited Discogs API client.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	token   string
	baseURL string
	perPage int
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	perPage := cfg.PerPage
	if perPage < 1 || perPage > 100 {
		perPage = defaultPerPage
	}
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Minute/requestsPerMinute), 1),
		logger:  logger.With(slog.String("component", "discogs")),
		token:   cfg.Token,
		baseURL: strings.TrimRight(baseURL, "/"),
		perPage: perPage,
	}
}

// CollectionReleases fetches every release in the user's main
// collection folder, following pagination.
func (c *Client) CollectionReleases(ctx context.Context, username string) ([]CollectionRelease, error) {
	var all []CollectionRelease
	path := fmt.Sprintf("/users/%s/collection/folders/0/releases", url.PathEscape(username))
	for page := 1; ; page++ {
		body, err := c.get(ctx, path, url.Values{
			"page":     {strconv.Itoa(page)},
			"per_page": {strconv.Itoa(c.perPage)},
		})
		if err != nil {
			return nil, err
		}
		var resp CollectionResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("parsing collection page %d: %w", page, err)
		}
		all = append(all, resp.Releases...)
		c.logger.Debug("fetched collection page",
			slog.Int("page", page),
			slog.Int("pages", resp.Pagination.Pages),
			slog.Int("total", len(all)))
		if page >= resp.Pagination.Pages {
			return all, nil
		}
	}
}

// Wants fetches the user's complete wantlist, following pagination.
func (c *Client) Wants(ctx context.Context, username string) ([]Want, error) {
	var all []Want
	path := fmt.Sprintf("/users/%s/wants", url.PathEscape(username))
	for page := 1; ; page++ {
		body, err := c.get(ctx, path, url.Values{
			"page":     {strconv.Itoa(page)},
			"per_page": {strconv.Itoa(c.perPage)},
		})
		if err != nil {
			return nil, err
		}
		var resp WantsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("parsing wantlist page %d: %w", page, err)
		}
		all = append(all, resp.Wants...)
		c.logger.Debug("fetched wantlist page",
			slog.Int("page", page),
			slog.Int("pages", resp.Pagination.Pages),
			slog.Int("total", len(all)))
		if page >= resp.Pagination.Pages {
			return all, nil
		}
	}
}

// MarketplaceStats fetches current sale listings for one release.
func (c *Client) MarketplaceStats(ctx context.Context, releaseID int64) (*MarketplaceStats, error) {
	body, err := c.get(ctx, fmt.Sprintf("/marketplace/stats/%d", releaseID), nil)
	if err != nil {
		return nil, err
	}
	var resp marketplaceStatsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing marketplace stats: %w", err)
	}
	stats := &MarketplaceStats{NumForSale: resp.NumForSale, Blocked: resp.Blocked}
	if resp.LowestPrice != nil {
		v := resp.LowestPrice.Value
		stats.LowestPrice = &v
	}
	return stats, nil
}

// Release fetches full release details, including the tracklist.
func (c *Client) Release(ctx context.Context, releaseID int64) (*ReleaseDetail, error) {
	body, err := c.get(ctx, fmt.Sprintf("/releases/%d", releaseID), nil)
	if err != nil {
		return nil, err
	}
	var detail ReleaseDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("parsing release: %w", err)
	}
	return &detail, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if c.token == "" {
		return nil, &source.ConfigError{Source: "discogs", Reason: "API token not configured"}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &source.TransientError{Source: "discogs", Op: "rate limiter", Cause: err}
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Discogs token="+c.token)
	req.Header.Set("User-Agent", "milkcrate/"+version.Version)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("requesting", slog.String("path", path))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &source.TransientError{Source: "discogs", Op: "requesting " + path, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, &source.NotFoundError{Source: "discogs", ID: path}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &source.ConfigError{Source: "discogs", Reason: fmt.Sprintf("API token rejected (HTTP %d)", resp.StatusCode)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &source.TransientError{Source: "discogs", Op: "requesting " + path, Cause: fmt.Errorf("rate limited (HTTP 429)")}
	default:
		return nil, &source.TransientError{Source: "discogs", Op: "requesting " + path, Cause: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	return io.ReadAll(resp.Body)
}
