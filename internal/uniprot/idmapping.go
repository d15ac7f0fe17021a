// Package uniprot drives the UniProt ID mapping service to resolve the
// FASTA sequences behind a set of accessions.
package uniprot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"proteindomains.org/protdom/internal/data"
	"proteindomains.org/protdom/internal/fasta"
)

const DefaultURL = "https://rest.uniprot.org/idmapping"

type Config struct {
	URL          string
	PageSize     int
	Timeout      time.Duration
	PollInterval time.Duration
	JobTimeout   time.Duration
	Logger       *zap.SugaredLogger
}

// Client submits ID mapping jobs and collects their FASTA results.
type Client struct {
	baseURL      string
	pageSize     int
	pollInterval time.Duration
	jobTimeout   time.Duration
	client       *http.Client
	logger       *zap.SugaredLogger
}

func New(config *Config) *Client {
	baseURL := config.URL
	if baseURL == "" {
		baseURL = DefaultURL
	}
	pageSize := config.PageSize
	if pageSize <= 0 {
		pageSize = 500
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pollInterval := config.PollInterval
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	jobTimeout := config.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = 5 * time.Minute
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Client{
		baseURL:      baseURL,
		pageSize:     pageSize,
		pollInterval: pollInterval,
		jobTimeout:   jobTimeout,
		client:       &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

// FetchSequences maps accessions from UniProtKB_AC-ID to UniProtKB and
// returns the FASTA records of the mapped entries. The mapping runs as
// a server side job: submit, poll until finished, then page through
// the results following Link headers.
func (c *Client) FetchSequences(ctx context.Context, accessions []string) ([]fasta.Record, error) {
	if len(accessions) == 0 {
		return nil, data.ErrNoAccessions
	}

	jobID, err := c.submitJob(ctx, accessions)
	if err != nil {
		return nil, fmt.Errorf("submitting ID mapping job: %w", err)
	}
	c.logger.Infow("submitted UniProt ID mapping job", "job_id", jobID, "accessions", len(accessions))

	if err := c.awaitJob(ctx, jobID); err != nil {
		return nil, fmt.Errorf("waiting for ID mapping job %s: %w", jobID, err)
	}

	resultURL, err := c.resultURL(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("resolving results of ID mapping job %s: %w", jobID, err)
	}

	records, err := c.fetchResults(ctx, resultURL)
	if err != nil {
		return nil, fmt.Errorf("fetching results of ID mapping job %s: %w", jobID, err)
	}
	return records, nil
}

func (c *Client) submitJob(ctx context.Context, accessions []string) (string, error) {
	form := url.Values{
		"ids":  {strings.Join(accessions, ",")},
		"from": {"UniProtKB_AC-ID"},
		"to":   {"UniProtKB"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", unexpectedStatus(resp.StatusCode, body)
	}

	var submitted struct {
		JobID string `json:"jobId"`
	}
	if err := json.Unmarshal(body, &submitted); err != nil {
		return "", err
	}
	if submitted.JobID == "" {
		return "", fmt.Errorf("no job id in response")
	}
	return submitted.JobID, nil
}

func (c *Client) awaitJob(ctx context.Context, jobID string) error {
	deadline := time.Now().Add(c.jobTimeout)
	for {
		finished, err := c.jobFinished(ctx, jobID)
		if err != nil {
			return err
		}
		if finished {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("not finished after %s", c.jobTimeout)
		}

		c.logger.Debugw("ID mapping job still running", "job_id", jobID)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Client) jobFinished(ctx context.Context, jobID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status/"+jobID, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, err
	}
	if resp.StatusCode != http.StatusOK {
		return false, unexpectedStatus(resp.StatusCode, body)
	}

	// Finished jobs redirect to the results, so accept both the
	// jobStatus shape and a response that already carries results.
	var status struct {
		JobStatus string          `json:"jobStatus"`
		Results   json.RawMessage `json:"results"`
		FailedIDs json.RawMessage `json:"failedIds"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return false, err
	}

	switch status.JobStatus {
	case "FINISHED":
		return true, nil
	case "ERROR":
		return false, fmt.Errorf("ID mapping job failed")
	case "":
		return len(status.Results) > 0 || len(status.FailedIDs) > 0, nil
	default:
		return false, nil
	}
}

func (c *Client) resultURL(ctx context.Context, jobID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/details/"+jobID, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", unexpectedStatus(resp.StatusCode, body)
	}

	var details struct {
		RedirectURL string `json:"redirectURL"`
	}
	if err := json.Unmarshal(body, &details); err != nil {
		return "", err
	}
	if details.RedirectURL == "" {
		return "", fmt.Errorf("no redirect URL in job details")
	}
	return details.RedirectURL, nil
}

func (c *Client) fetchResults(ctx context.Context, resultURL string) ([]fasta.Record, error) {
	u, err := url.Parse(resultURL)
	if err != nil {
		return nil, err
	}
	query := u.Query()
	query.Set("format", "fasta")
	query.Set("size", strconv.Itoa(c.pageSize))
	u.RawQuery = query.Encode()

	var records []fasta.Record
	pageURL := u.String()
	for page := 1; pageURL != ""; page++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, unexpectedStatus(resp.StatusCode, body)
		}

		pageRecords, err := fasta.Parse(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		records = append(records, pageRecords...)
		c.logger.Debugw("fetched ID mapping results page", "page", page, "records", len(pageRecords))

		pageURL = nextLink(resp.Header.Get("Link"))
	}

	if len(records) == 0 {
		return nil, data.ErrNoSequences
	}
	return records, nil
}

// nextLink extracts the URL tagged rel="next" from a Link header.
func nextLink(header string) string {
	for _, link := range strings.Split(header, ",") {
		fields := strings.Split(link, ";")
		if len(fields) < 2 {
			continue
		}
		ref := strings.TrimSpace(fields[0])
		if !strings.HasPrefix(ref, "<") || !strings.HasSuffix(ref, ">") {
			continue
		}
		for _, param := range fields[1:] {
			if strings.TrimSpace(param) == `rel="next"` {
				return strings.Trim(ref, "<>")
			}
		}
	}
	return ""
}

func unexpectedStatus(code int, body []byte) error {
	const max = 200
	if len(body) > max {
		body = body[:max]
	}
	return fmt.Errorf("unexpected status %d: %s", code, body)
}
