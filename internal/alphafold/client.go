// Package alphafold downloads predicted structure models from the
// AlphaFold database.
package alphafold

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"proteindomains.org/protdom/internal/data"
	"proteindomains.org/protdom/internal/pdb"
)

const DefaultURL = "https://alphafold.ebi.ac.uk/api"

type Config struct {
	URL        string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Workers    int
	Logger     *zap.SugaredLogger
}

// Client fetches structure models, several downloads in flight at
// once.
type Client struct {
	baseURL    string
	maxRetries int
	retryDelay time.Duration
	workers    int
	client     *http.Client
	logger     *zap.SugaredLogger
}

func New(config *Config) *Client {
	baseURL := config.URL
	if baseURL == "" {
		baseURL = DefaultURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxRetries := config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelay := config.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 1 * time.Second
	}
	workers := config.Workers
	if workers <= 0 {
		workers = 5
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Client{
		baseURL:    baseURL,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		workers:    workers,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// FetchStructures downloads the predicted model for every accession
// into dir, named {entryId}.pdb as in the AlphaFold archive. A worker
// pool bounds the number of concurrent downloads. Accessions without a
// prediction or with failing downloads are logged and left out of the
// result, they never abort the whole batch.
func (c *Client) FetchStructures(ctx context.Context, accessions []string, dir string) (map[string]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	type maybeStructure struct {
		accession string
		path      string
		err       error
	}

	wg := new(sync.WaitGroup)
	jobs := make(chan string, 10)
	structures := make(chan maybeStructure, 10)

	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for accession := range jobs {
				path, err := c.fetchOne(ctx, accession, dir)
				structures <- maybeStructure{accession: accession, path: path, err: err}
			}
		}()
	}
	go func() {
		for _, accession := range accessions {
			jobs <- accession
		}
		close(jobs)
		wg.Wait()
		close(structures)
	}()

	results := make(map[string]string, len(accessions))
	done := 0
	for structure := range structures {
		done++
		if structure.err != nil {
			c.logger.Warnw("skipping structure", "accession", structure.accession, "error", structure.err)
			continue
		}
		results[structure.accession] = structure.path
		c.logger.Infow("structure ready", "accession", structure.accession,
			"path", filepath.Base(structure.path), "done", done, "total", len(accessions))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

type prediction struct {
	EntryID string `json:"entryId"`
	PDBURL  string `json:"pdbUrl"`
}

func (c *Client) fetchOne(ctx context.Context, accession, dir string) (string, error) {
	pred, err := c.lookup(ctx, accession)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, pred.EntryID+".pdb")
	if _, err := os.Stat(path); err == nil {
		if pdb.ValidHeader(path) {
			c.logger.Debugw("structure already downloaded", "accession", accession, "path", path)
			return path, nil
		}
		os.Remove(path)
	}

	if err := c.download(ctx, pred.PDBURL, path); err != nil {
		return "", err
	}
	if !pdb.ValidHeader(path) {
		os.Remove(path)
		return "", fmt.Errorf("downloaded file for %s: %w", accession, data.ErrInvalidStructure)
	}
	return path, nil
}

// lookup asks the prediction endpoint for the model metadata of one
// accession. The API answers with a list; the first entry wins.
func (c *Client) lookup(ctx context.Context, accession string) (*prediction, error) {
	url := fmt.Sprintf("%s/prediction/%s", c.baseURL, accession)

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var predictions []prediction
	if err := json.Unmarshal(body, &predictions); err != nil {
		return nil, fmt.Errorf("decoding prediction for %s: %w", accession, err)
	}
	if len(predictions) == 0 {
		return nil, fmt.Errorf("%s: %w", accession, data.ErrNoStructure)
	}
	if predictions[0].PDBURL == "" || predictions[0].EntryID == "" {
		return nil, fmt.Errorf("incomplete prediction metadata for %s", accession)
	}
	return &predictions[0], nil
}

func (c *Client) download(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading %s: unexpected status %d", url, resp.StatusCode)
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(path)
		return err
	}
	return out.Close()
}

// get retries transport and server errors with exponentially growing
// delays. A 404 means no prediction exists and is not retried.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
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
			return nil, data.ErrNoStructure
		default:
			lastErr = fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", c.maxRetries, lastErr)
}
