package mtf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	errors "github.com/Proton-105/stockbot/internal/errors"
	"github.com/Proton-105/stockbot/pkg/config"
	"github.com/Proton-105/stockbot/pkg/metrics"
)

const (
	sortField = "COMPANY_NAME"
	sortOrder = "ASC"

	maxBodyBytes = 8 << 20
)

// FetchResult is what a full pagination run produced. Err is set when pagination stopped
// because of a failure; Records still holds everything accumulated before it.
type FetchResult struct {
	Records   []Record
	Pages     int
	Skipped   int
	Truncated bool
	Err       error
}

// Partial reports whether the run ended before the listing was exhausted.
func (r FetchResult) Partial() bool {
	return r.Err != nil || r.Truncated
}

// Client reads the paginated MTF listing.
type Client struct {
	http     *http.Client
	baseURL  string
	pageSize int
	maxPages int
	log      *slog.Logger
}

// NewClient builds a listing client from configuration. httpClient may be nil.
func NewClient(cfg config.ListingConfig, httpClient *http.Client, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := *httpClient
	client.Timeout = timeout

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	return &Client{
		http:     &client,
		baseURL:  cfg.BaseURL,
		pageSize: pageSize,
		maxPages: cfg.MaxPages,
		log:      log,
	}
}

// FetchPage returns the raw entries of one page. Non-2xx responses, transport errors and
// malformed payloads are errors.
func (c *Client) FetchPage(ctx context.Context, page int) ([]rawRecord, error) {
	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse listing url: %w", err)
	}

	q := endpoint.Query()
	q.Set("limit", strconv.Itoa(c.pageSize))
	q.Set("order", sortOrder)
	q.Set("page", strconv.Itoa(page))
	q.Set("query", "")
	q.Set("sort", sortField)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build listing request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.NewExternalAPIError("mtf listing", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, errors.NewExternalAPIError("mtf listing", fmt.Errorf("page %d: unexpected status %d", page, resp.StatusCode))
	}

	var payload listingPage
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&payload); err != nil {
		return nil, errors.NewExternalAPIError("mtf listing", fmt.Errorf("page %d: decode: %w", page, err))
	}

	return payload.Data, nil
}

// FetchAll walks pages from 0 until an empty page, the first failure or the page cap.
// Failed pages are not retried.
func (c *Client) FetchAll(ctx context.Context) FetchResult {
	var result FetchResult

	for page := 0; ; page++ {
		if c.maxPages > 0 && page >= c.maxPages {
			result.Truncated = true
			c.log.Warn("listing page cap reached", slog.Int("max_pages", c.maxPages), slog.Int("records", len(result.Records)))
			return result
		}

		entries, err := c.FetchPage(ctx, page)
		if err != nil {
			metrics.RecordListingPage("error")
			result.Err = err
			c.log.Warn("listing pagination stopped on failure",
				slog.Int("page", page),
				slog.Int("records", len(result.Records)),
				slog.Any("error", err),
			)
			return result
		}

		if len(entries) == 0 {
			metrics.RecordListingPage("empty")
			c.log.Info("listing fetched",
				slog.Int("pages", result.Pages),
				slog.Int("records", len(result.Records)),
				slog.Int("skipped", result.Skipped),
			)
			return result
		}

		metrics.RecordListingPage("ok")
		result.Pages++

		for i, entry := range entries {
			rec, reason := entry.validate()
			if reason != "" {
				result.Skipped++
				metrics.RecordSkippedRecord(reason)
				if reason == SkipMissingField {
					c.log.Warn("listing record skipped", slog.Int("page", page), slog.Int("index", i), slog.String("reason", reason))
				}
				continue
			}
			result.Records = append(result.Records, rec)
		}
	}
}
