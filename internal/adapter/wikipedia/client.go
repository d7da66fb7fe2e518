// Package wikipedia implements the upstream link client against a
// MediaWiki-compatible API.
package wikipedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"

	"github.com/wikirace/wikipath/internal/config"
	"github.com/wikirace/wikipath/internal/domain"
	"github.com/wikirace/wikipath/internal/domain/search"
	"github.com/wikirace/wikipath/internal/port/cache"
	"github.com/wikirace/wikipath/internal/resilience"
)

const linkCachePrefix = "wiki_links:"

// Client fetches page-to-page links from a MediaWiki API with a
// write-through link cache and bounded parallel fan-out. One Client (and
// one underlying HTTP connection pool) is shared per process.
type Client struct {
	http       *resty.Client
	cache      cache.Cache
	breaker    *resilience.Breaker
	batchSize  int
	maxWorkers int
	linkTTL    time.Duration
}

// NewClient creates a link client. linkCache may be nil to disable caching.
func NewClient(cfg config.Wikipedia, linkCache cache.Cache, linkTTL time.Duration) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.APIURL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent)

	return &Client{
		http:       httpClient,
		cache:      linkCache,
		batchSize:  cfg.BatchSize,
		maxWorkers: cfg.MaxWorkers,
		linkTTL:    linkTTL,
	}
}

// SetBreaker attaches a circuit breaker to the upstream HTTP path.
// An open circuit surfaces as ErrUpstreamAPI and is retryable.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// GetLinksBulk returns the outgoing article links for each input title.
// Every input title maps to a list (empty when the page is missing or has
// no article links). Cached entries are served from the link cache; the
// rest are fetched in sub-batches dispatched concurrently. Any sub-batch
// failure fails the whole call with ErrUpstreamAPI; partial results are
// not returned.
func (c *Client) GetLinksBulk(ctx context.Context, titles []string) (map[string][]string, error) {
	results := make(map[string][]string, len(titles))
	if len(titles) == 0 {
		return results, nil
	}

	uncached, err := c.collectCached(ctx, titles, results)
	if err != nil {
		return nil, err
	}

	if len(uncached) == 0 {
		return results, nil
	}

	fresh, missing, err := c.fetchAll(ctx, uncached)
	if err != nil {
		return nil, err
	}

	for title, links := range fresh {
		results[title] = links
		// A missing page may reappear later; only resolved pages are cached.
		if c.cache != nil && !missing[title] {
			if err := c.cacheLinks(ctx, title, links); err != nil {
				return nil, err
			}
		}
	}

	return results, nil
}

// collectCached fills results from the link cache and returns the titles
// that still need an upstream fetch. Duplicate inputs collapse to one
// fetch.
func (c *Client) collectCached(ctx context.Context, titles []string, results map[string][]string) ([]string, error) {
	seen := make(map[string]bool, len(titles))
	var uncached []string

	for _, title := range titles {
		if seen[title] {
			continue
		}
		seen[title] = true

		if c.cache == nil {
			uncached = append(uncached, title)
			continue
		}

		data, ok, err := c.cache.Get(ctx, linkCachePrefix+title)
		if err != nil {
			return nil, err
		}
		if !ok {
			uncached = append(uncached, title)
			continue
		}

		var links []string
		if err := json.Unmarshal(data, &links); err != nil {
			// Undecodable cache row: refetch rather than fail the search.
			slog.Warn("discarding corrupt link cache entry", "title", title, "error", err)
			uncached = append(uncached, title)
			continue
		}
		results[title] = links
	}

	slog.Debug("link cache lookup", "hits", len(results), "misses", len(uncached))
	return uncached, nil
}

// fetchAll partitions titles into API-sized sub-batches and fetches them
// with bounded concurrency. The group is awaited as a whole; the first
// error cancels the rest.
func (c *Client) fetchAll(ctx context.Context, titles []string) (map[string][]string, map[string]bool, error) {
	var (
		mu      sync.Mutex
		merged  = make(map[string][]string, len(titles))
		missing = make(map[string]bool)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxWorkers)

	for start := 0; start < len(titles); start += c.batchSize {
		end := min(start+c.batchSize, len(titles))
		batch := titles[start:end]

		g.Go(func() error {
			links, miss, err := c.fetchBatch(gctx, batch)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for t, l := range links {
				merged[t] = l
			}
			for t := range miss {
				missing[t] = true
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return merged, missing, nil
}

// fetchBatch performs one links query for up to batchSize titles.
func (c *Client) fetchBatch(ctx context.Context, batch []string) (map[string][]string, map[string]bool, error) {
	body, err := c.query(ctx, map[string]string{
		"action":    "query",
		"format":    "json",
		"titles":    joinTitles(batch),
		"prop":      "links",
		"pllimit":   "max",
		"redirects": "1",
	})
	if err != nil {
		return nil, nil, err
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, nil, fmt.Errorf("%w: decode links response: %v", domain.ErrUpstreamAPI, err)
	}

	links, missing := parseLinksResponse(&resp.Query, batch)
	return links, missing, nil
}

// PageExists reports whether the page exists upstream. The check is
// best-effort: any failure reads as false rather than propagating.
func (c *Client) PageExists(ctx context.Context, title string) bool {
	body, err := c.query(ctx, map[string]string{
		"action":    "query",
		"format":    "json",
		"titles":    title,
		"redirects": "1",
	})
	if err != nil {
		slog.Warn("page existence check failed", "title", title, "error", err)
		return false
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		slog.Warn("page existence decode failed", "title", title, "error", err)
		return false
	}

	for _, page := range resp.Query.Pages {
		return page.Missing == nil
	}
	return false
}

// PageInfo returns basic metadata about a page, or nil when it is missing.
func (c *Client) PageInfo(ctx context.Context, title string) (*search.PageInfo, error) {
	body, err := c.query(ctx, map[string]string{
		"action":    "query",
		"format":    "json",
		"titles":    title,
		"prop":      "info",
		"redirects": "1",
	})
	if err != nil {
		return nil, err
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode info response: %v", domain.ErrUpstreamAPI, err)
	}

	for _, page := range resp.Query.Pages {
		if page.Missing != nil {
			continue
		}
		return &search.PageInfo{
			Title:        page.Title,
			PageID:       page.PageID,
			LastModified: page.Touched,
		}, nil
	}
	return nil, nil
}

// query performs one GET against the API, optionally guarded by the
// circuit breaker. All failure modes collapse to ErrUpstreamAPI.
func (c *Client) query(ctx context.Context, params map[string]string) ([]byte, error) {
	var body []byte

	call := func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get("")
		if err != nil {
			return fmt.Errorf("%w: request: %v", domain.ErrUpstreamAPI, err)
		}
		if resp.IsError() {
			return fmt.Errorf("%w: status %d", domain.ErrUpstreamAPI, resp.StatusCode())
		}
		body = resp.Body()
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			if errors.Is(err, resilience.ErrCircuitOpen) {
				return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamAPI, err)
			}
			return nil, err
		}
		return body, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) cacheLinks(ctx context.Context, title string, links []string) error {
	data, err := json.Marshal(links)
	if err != nil {
		return fmt.Errorf("marshal links for %q: %w", title, err)
	}
	return c.cache.Set(ctx, linkCachePrefix+title, data, c.linkTTL)
}
