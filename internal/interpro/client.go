// Package interpro talks to the InterPro REST API to find the domain
// annotations recorded for a protein.
package interpro

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"proteindomains.org/protdom/internal/data"
)

const DefaultURL = "https://www.ebi.ac.uk/interpro/api"

// ErrNotFound means InterPro has no record for the requested protein.
var ErrNotFound = errors.New("interpro: not found")

// StatusError reports an unexpected HTTP status from the API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("interpro: unexpected status %d: %s", e.Code, e.Body)
}

type Config struct {
	URL        string
	PageSize   int
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	RateLimit  float64
	Logger     *zap.SugaredLogger
}

// Client queries the InterPro API, paced by a token bucket rate
// limiter shared across all calls.
type Client struct {
	baseURL    string
	pageSize   int
	maxRetries int
	retryDelay time.Duration
	client     *http.Client
	limiter    *rate.Limiter
	logger     *zap.SugaredLogger
}

func New(config *Config) *Client {
	baseURL := config.URL
	if baseURL == "" {
		baseURL = DefaultURL
	}
	pageSize := config.PageSize
	if pageSize <= 0 {
		pageSize = 200
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRetries := config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelay := config.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 1 * time.Second
	}
	rateLimit := config.RateLimit
	if rateLimit <= 0 {
		rateLimit = 10
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Client{
		baseURL:    baseURL,
		pageSize:   pageSize,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		client:     &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rateLimit), 1),
		logger:     logger,
	}
}

type entryPage struct {
	Next    string        `json:"next"`
	Results []entryResult `json:"results"`
}

type entryResult struct {
	Metadata struct {
		Accession string `json:"accession"`
	} `json:"metadata"`
	Proteins []struct {
		EntryProteinLocations []struct {
			Fragments []struct {
				Start *int `json:"start"`
				End   *int `json:"end"`
			} `json:"fragments"`
		} `json:"entry_protein_locations"`
	} `json:"proteins"`
}

// FetchDomains returns the candidate domain ranges recorded for
// accession, restricted to the requested entry identifiers. Candidates
// keep the API's result order: entries as returned, fragments in
// location order. A protein unknown to InterPro yields no candidates
// and no error.
func (c *Client) FetchDomains(ctx context.Context, accession string, entries []string) ([]data.Domain, error) {
	wanted := make(map[string]bool, len(entries))
	for _, entry := range entries {
		wanted[entry] = true
	}

	var candidates []data.Domain
	url := fmt.Sprintf("%s/entry/all/protein/uniprot/%s?page_size=%d", c.baseURL, accession, c.pageSize)
	for url != "" {
		body, err := c.get(ctx, url)
		if errors.Is(err, ErrNotFound) {
			c.logger.Debugw("no InterPro record", "accession", accession)
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("fetching domains for %s: %w", accession, err)
		}

		var page entryPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decoding InterPro response for %s: %w", accession, err)
		}

		for _, result := range page.Results {
			if !wanted[result.Metadata.Accession] {
				continue
			}
			if len(result.Proteins) == 0 {
				continue
			}
			for _, location := range result.Proteins[0].EntryProteinLocations {
				for _, fragment := range location.Fragments {
					if fragment.Start == nil || fragment.End == nil {
						continue
					}
					candidates = append(candidates, data.Domain{
						Entry:       result.Metadata.Accession,
						DomainRange: data.DomainRange{Start: *fragment.Start, End: *fragment.End},
					})
				}
			}
		}

		url = page.Next
	}

	return candidates, nil
}

// get runs one rate limited GET with retries. Transport errors and
// server side errors are retried with exponentially growing delays,
// client side errors fail immediately.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1))
			c.logger.Warnw("retrying InterPro request", "url", url, "attempt", attempt+1, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusNotFound:
			return nil, ErrNotFound
		case resp.StatusCode >= 500:
			lastErr = &StatusError{Code: resp.StatusCode, Body: truncate(body)}
		default:
			return nil, &StatusError{Code: resp.StatusCode, Body: truncate(body)}
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", c.maxRetries, lastErr)
}

func truncate(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
