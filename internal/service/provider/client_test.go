package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"PayPull/internal/domain/models"
	"PayPull/pkg/cache"
	phttp "PayPull/pkg/http"
	"PayPull/pkg/logger"
	"PayPull/pkg/retry"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

type nopMetrics struct {
	mu          sync.Mutex
	rateLimited int
}

func (m *nopMetrics) RecordFetched(string, int)       {}
func (m *nopMetrics) RecordInserted(string, int)      {}
func (m *nopMetrics) RecordSkipped(string, int)       {}
func (m *nopMetrics) RecordCapture(string, float64)   {}
func (m *nopMetrics) RecordError(string)              {}
func (m *nopMetrics) RecordPixelHit()                 {}
func (m *nopMetrics) RecordLatency(string, float64)   {}
func (m *nopMetrics) RecordRateLimited(string) {
	m.mu.Lock()
	m.rateLimited++
	m.mu.Unlock()
}

// recordingPolicy captures sleeps instead of waiting.
func recordingPolicy(slept *[]time.Duration) *retry.Policy {
	p := retry.New(0, 10*time.Millisecond, 100*time.Millisecond, 0)
	p.Sleep = func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return p
}

func testAccount() models.Account {
	return models.Account{ID: "acct-1", Label: "Main", ClientID: "cid", ClientSecret: "shh"}
}

func testWindow() models.Window {
	end := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	return models.Window{Start: end.Add(-time.Hour), End: end}
}

func TestTokenClientExchangeAndCache(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("cid:shh"))
		if got := r.Header.Get("Authorization"); got != want {
			t.Errorf("authorization = %q, want %q", got, want)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostFormValue("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q", got)
		}
		fmt.Fprint(w, `{"access_token":"tok-abc","token_type":"Bearer","expires_in":3600}`)
	}))
	defer srv.Close()

	ts := NewTokenClient(phttp.NewClient(), cache.NewMemoryCache(), testLogger(t), srv.URL+"/v1/oauth2/token", 2*time.Minute)

	for i := 0; i < 2; i++ {
		tok, err := ts.Token(context.Background(), testAccount())
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		if tok != "tok-abc" {
			t.Fatalf("token = %q", tok)
		}
	}
	if hits != 1 {
		t.Fatalf("expected one exchange, server saw %d", hits)
	}
}

func TestTokenClientInvalidClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid_client","error_description":"Client Authentication failed"}`)
	}))
	defer srv.Close()

	ts := NewTokenClient(phttp.NewClient(), cache.NewMemoryCache(), testLogger(t), srv.URL, 0)

	_, err := ts.Token(context.Background(), testAccount())
	var ae *models.AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if !ae.InvalidClient() {
		t.Fatalf("expected invalid_client, got reason %q", ae.Reason)
	}
	if ae.Status != http.StatusUnauthorized {
		t.Fatalf("status = %d", ae.Status)
	}
}

func TestFetchWindowPagination(t *testing.T) {
	const totalPages = 3
	var pagesSeen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		pagesSeen = append(pagesSeen, q.Get("page"))
		if q.Get("fields") != "all" || q.Get("page_size") != "2" {
			t.Errorf("unexpected query: %v", q)
		}
		page := q.Get("page")
		fmt.Fprintf(w, `{"total_pages":%d,"page":%s,"transaction_details":[
			{"transaction_info":{"transaction_id":"p%s-a","transaction_event_code":"T0006"}},
			{"transaction_info":{"transaction_id":"p%s-b","transaction_event_code":"T1107"}}
		]}`, totalPages, page, page, page)
	}))
	defer srv.Close()

	var slept []time.Duration
	api := NewReportClient(phttp.NewClient(), testLogger(t), &nopMetrics{}, srv.URL,
		WithPageSize(2),
		WithBackoff(recordingPolicy(&slept)),
		WithInterPageDelay(250*time.Millisecond),
	)

	records, err := api.FetchWindow(context.Background(), "tok", testAccount(), testWindow())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != totalPages*2 {
		t.Fatalf("records = %d, want %d", len(records), totalPages*2)
	}
	if records[0].EventID() != "p1-a" || records[5].EventID() != "p3-b" {
		t.Fatalf("records out of order: first %q last %q", records[0].EventID(), records[5].EventID())
	}
	if len(pagesSeen) != totalPages || pagesSeen[0] != "1" || pagesSeen[2] != "3" {
		t.Fatalf("pages fetched: %v", pagesSeen)
	}
	if len(slept) != totalPages-1 {
		t.Fatalf("inter-page delays = %d, want %d", len(slept), totalPages-1)
	}
	for _, d := range slept {
		if d != 250*time.Millisecond {
			t.Fatalf("inter-page delay = %v", d)
		}
	}
}

func TestFetchWindowHonorsRetryAfter(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"total_pages":1,"page":1,"transaction_details":[]}`)
	}))
	defer srv.Close()

	var slept []time.Duration
	m := &nopMetrics{}
	api := NewReportClient(phttp.NewClient(), testLogger(t), m, srv.URL,
		WithBackoff(recordingPolicy(&slept)),
		WithRateLimitRetries(3),
	)

	if _, err := api.FetchWindow(context.Background(), "tok", testAccount(), testWindow()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if hits != 2 {
		t.Fatalf("server hits = %d", hits)
	}
	if len(slept) != 1 || slept[0] != 7*time.Second {
		t.Fatalf("expected one exact 7s wait, got %v", slept)
	}
	if m.rateLimited != 1 {
		t.Fatalf("rate limited count = %d", m.rateLimited)
	}
}

func TestFetchWindowRateLimitExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	var slept []time.Duration
	api := NewReportClient(phttp.NewClient(), testLogger(t), &nopMetrics{}, srv.URL,
		WithBackoff(recordingPolicy(&slept)),
		WithRateLimitRetries(2),
	)

	_, err := api.FetchWindow(context.Background(), "tok", testAccount(), testWindow())
	var rle *models.RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rle.Attempts != 3 {
		t.Fatalf("attempts = %d", rle.Attempts)
	}
}

func TestFetchWindowRetriesNetworkFailure(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatalf("hijack unsupported")
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Fatalf("hijack: %v", err)
			}
			conn.Close()
			return
		}
		fmt.Fprint(w, `{"total_pages":1,"page":1,"transaction_details":[]}`)
	}))
	defer srv.Close()

	var slept []time.Duration
	api := NewReportClient(phttp.NewClient(), testLogger(t), &nopMetrics{}, srv.URL,
		WithBackoff(recordingPolicy(&slept)),
		WithNetworkRetries(2),
	)

	if _, err := api.FetchWindow(context.Background(), "tok", testAccount(), testWindow()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if hits != 2 {
		t.Fatalf("server hits = %d", hits)
	}
}

func TestFetchWindowNetworkExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // every dial now fails

	var slept []time.Duration
	api := NewReportClient(phttp.NewClient(), testLogger(t), &nopMetrics{}, srv.URL,
		WithBackoff(recordingPolicy(&slept)),
		WithNetworkRetries(2),
	)

	_, err := api.FetchWindow(context.Background(), "tok", testAccount(), testWindow())
	var ne *models.NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if ne.Attempts != 3 {
		t.Fatalf("attempts = %d", ne.Attempts)
	}
}

func TestFetchWindowAPIErrorNotRetried(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"name":"NOT_AUTHORIZED"}`)
	}))
	defer srv.Close()

	api := NewReportClient(phttp.NewClient(), testLogger(t), &nopMetrics{}, srv.URL)

	_, err := api.FetchWindow(context.Background(), "tok", testAccount(), testWindow())
	var ae *models.APIError
	if !errors.As(err, &ae) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !ae.PermissionDenied() {
		t.Fatalf("expected permission denial, status %d", ae.Status)
	}
	if hits != 1 {
		t.Fatalf("server hits = %d, want 1", hits)
	}
}
