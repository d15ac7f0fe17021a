package uniprot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"proteindomains.org/protdom/internal/data"
	"proteindomains.org/protdom/internal/fasta"
)

func testClient(url string) *Client {
	return New(&Config{
		URL:          url,
		PageSize:     500,
		PollInterval: time.Millisecond,
		JobTimeout:   time.Second,
	})
}

func TestFetchSequences(t *testing.T) {
	var statusCalls int32
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/run":
			if err := r.ParseForm(); err != nil {
				t.Error(err)
			}
			if ids := r.PostForm.Get("ids"); ids != "Q9XLZ3,P12345" {
				t.Errorf("unexpected ids %q", ids)
			}
			if from := r.PostForm.Get("from"); from != "UniProtKB_AC-ID" {
				t.Errorf("unexpected from %q", from)
			}
			if to := r.PostForm.Get("to"); to != "UniProtKB" {
				t.Errorf("unexpected to %q", to)
			}
			fmt.Fprint(w, `{"jobId": "test-job"}`)

		case r.URL.Path == "/status/test-job":
			if atomic.AddInt32(&statusCalls, 1) < 3 {
				fmt.Fprint(w, `{"jobStatus": "RUNNING"}`)
				return
			}
			fmt.Fprint(w, `{"jobStatus": "FINISHED"}`)

		case r.URL.Path == "/details/test-job":
			fmt.Fprintf(w, `{"redirectURL": "%s/results/test-job"}`, ts.URL)

		case r.URL.Path == "/results/test-job":
			if r.URL.Query().Get("format") != "fasta" {
				t.Errorf("unexpected format %q", r.URL.Query().Get("format"))
			}
			if r.URL.Query().Get("cursor") == "" {
				if r.URL.Query().Get("size") != "500" {
					t.Errorf("unexpected size %q", r.URL.Query().Get("size"))
				}
				w.Header().Set("Link", fmt.Sprintf(`<%s/results/test-job?cursor=xyz&format=fasta&size=500>; rel="next"`, ts.URL))
				fmt.Fprint(w, ">sp|Q9XLZ3|GTR1_DICDI Glucose transporter\nMKLV\nAAGT\n")
				return
			}
			fmt.Fprint(w, ">sp|P12345|TEST_HUMAN Test protein\nSSNAKE\n")

		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL)
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	client := testClient(ts.URL)
	records, err := client.FetchSequences(context.Background(), []string{"Q9XLZ3", "P12345"})
	if err != nil {
		t.Fatal(err)
	}

	expected := []fasta.Record{
		{Header: "sp|Q9XLZ3|GTR1_DICDI Glucose transporter", Sequence: "MKLVAAGT"},
		{Header: "sp|P12345|TEST_HUMAN Test protein", Sequence: "SSNAKE"},
	}
	if !cmp.Equal(expected, records) {
		t.Errorf("FetchSequences unexpected result:\n%s", cmp.Diff(expected, records))
	}
	if statusCalls != 3 {
		t.Errorf("expected 3 status calls, got %d", statusCalls)
	}
}

func TestFetchSequencesLegacyStatus(t *testing.T) {
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/run":
			fmt.Fprint(w, `{"jobId": "test-job"}`)
		case r.URL.Path == "/status/test-job":
			fmt.Fprint(w, `{"results": [{"from": "Q9XLZ3", "to": "Q9XLZ3"}]}`)
		case r.URL.Path == "/details/test-job":
			fmt.Fprintf(w, `{"redirectURL": "%s/results/test-job"}`, ts.URL)
		case r.URL.Path == "/results/test-job":
			fmt.Fprint(w, ">sp|Q9XLZ3|GTR1_DICDI\nMKLV\n")
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	client := testClient(ts.URL)
	records, err := client.FetchSequences(context.Background(), []string{"Q9XLZ3"})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
}

func TestFetchSequencesJobError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/run":
			fmt.Fprint(w, `{"jobId": "test-job"}`)
		case r.URL.Path == "/status/test-job":
			fmt.Fprint(w, `{"jobStatus": "ERROR"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	client := testClient(ts.URL)
	_, err := client.FetchSequences(context.Background(), []string{"Q9XLZ3"})
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestFetchSequencesNoResults(t *testing.T) {
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/run":
			fmt.Fprint(w, `{"jobId": "test-job"}`)
		case r.URL.Path == "/status/test-job":
			fmt.Fprint(w, `{"jobStatus": "FINISHED"}`)
		case r.URL.Path == "/details/test-job":
			fmt.Fprintf(w, `{"redirectURL": "%s/results/test-job"}`, ts.URL)
		case r.URL.Path == "/results/test-job":
			fmt.Fprint(w, "")
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	client := testClient(ts.URL)
	_, err := client.FetchSequences(context.Background(), []string{"Q9XLZ3"})
	if !errors.Is(err, data.ErrNoSequences) {
		t.Errorf("expected ErrNoSequences, got %v", err)
	}
}

func TestFetchSequencesNoAccessions(t *testing.T) {
	client := testClient("http://localhost:1")
	_, err := client.FetchSequences(context.Background(), nil)
	if !errors.Is(err, data.ErrNoAccessions) {
		t.Errorf("expected ErrNoAccessions, got %v", err)
	}
}

func TestNextLink(t *testing.T) {
	tests := []struct {
		Name     string
		Header   string
		Expected string
	}{
		{
			Name:     "single next",
			Header:   `<https://rest.uniprot.org/idmapping/uniprotkb/results/x?cursor=abc&format=fasta&size=500>; rel="next"`,
			Expected: "https://rest.uniprot.org/idmapping/uniprotkb/results/x?cursor=abc&format=fasta&size=500",
		},
		{
			Name:     "multiple relations",
			Header:   `<https://example.org/first>; rel="first", <https://example.org/next>; rel="next"`,
			Expected: "https://example.org/next",
		},
		{
			Name:     "no next",
			Header:   `<https://example.org/last>; rel="last"`,
			Expected: "",
		},
		{
			Name:     "empty",
			Header:   "",
			Expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			if got := nextLink(tt.Header); got != tt.Expected {
				t.Errorf("expected %q, got %q", tt.Expected, got)
			}
		})
	}
}
