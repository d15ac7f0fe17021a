package interpro

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
)

func testClient(url string) *Client {
	return New(&Config{
		URL:        url,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		RateLimit:  1000,
	})
}

func TestFetchDomains(t *testing.T) {
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/entry/all/protein/uniprot/P12345" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		if r.URL.Query().Get("cursor") == "" {
			if r.URL.Query().Get("page_size") != "200" {
				t.Errorf("unexpected page size %q", r.URL.Query().Get("page_size"))
			}
			fmt.Fprintf(w, `{
				"next": "%s/entry/all/protein/uniprot/P12345?cursor=abc",
				"results": [
					{
						"metadata": {"accession": "IPR018159"},
						"proteins": [{"entry_protein_locations": [
							{"fragments": [{"start": 150, "end": 199}, {"start": 2, "end": 78}]}
						]}]
					},
					{
						"metadata": {"accession": "IPR999999"},
						"proteins": [{"entry_protein_locations": [
							{"fragments": [{"start": 1, "end": 500}]}
						]}]
					}
				]
			}`, ts.URL)
			return
		}

		fmt.Fprint(w, `{
			"next": "",
			"results": [
				{
					"metadata": {"accession": "SSF46966"},
					"proteins": [{"entry_protein_locations": [
						{"fragments": [{"start": 80, "end": 140}, {"start": 210, "end": null}]}
					]}]
				}
			]
		}`)
	}))
	defer ts.Close()

	client := testClient(ts.URL)
	got, err := client.FetchDomains(context.Background(), "P12345", []string{"IPR018159", "SSF46966"})
	if err != nil {
		t.Fatal(err)
	}

	expected := []data.Domain{
		{Entry: "IPR018159", DomainRange: data.DomainRange{Start: 150, End: 199}},
		{Entry: "IPR018159", DomainRange: data.DomainRange{Start: 2, End: 78}},
		{Entry: "SSF46966", DomainRange: data.DomainRange{Start: 80, End: 140}},
	}
	if !cmp.Equal(expected, got) {
		t.Errorf("FetchDomains unexpected result:\n%s", cmp.Diff(expected, got))
	}
}

func TestFetchDomainsNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail": "Not found"}`, http.StatusNotFound)
	}))
	defer ts.Close()

	client := testClient(ts.URL)
	got, err := client.FetchDomains(context.Background(), "A0A023GPI8", []string{"IPR018159"})
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected no candidates, got %v", got)
	}
}

func TestFetchDomainsRetriesServerErrors(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "try again later", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"next": "", "results": []}`)
	}))
	defer ts.Close()

	client := testClient(ts.URL)
	_, err := client.FetchDomains(context.Background(), "P12345", []string{"IPR018159"})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestFetchDomainsExhaustsRetries(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := testClient(ts.URL)
	_, err := client.FetchDomains(context.Background(), "P12345", []string{"IPR018159"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected a StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, statusErr.Code)
	}
}

func TestFetchDomainsClientErrorFailsFast(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "no such endpoint version", http.StatusBadRequest)
	}))
	defer ts.Close()

	client := testClient(ts.URL)
	_, err := client.FetchDomains(context.Background(), "P12345", []string{"IPR018159"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}

func TestFetchDomainsCanceledContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := testClient(ts.URL)
	_, err := client.FetchDomains(ctx, "P12345", []string{"IPR018159"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
