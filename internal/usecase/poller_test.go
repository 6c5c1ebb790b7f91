package usecase

import (
	"context"
	"testing"
	"time"

	"PayPull/internal/domain/models"
)

type fakeAccounts struct {
	accounts []models.Account
	err      error
}

func (f *fakeAccounts) ListActiveAccounts(context.Context) ([]models.Account, error) {
	return f.accounts, f.err
}

type fakeTokens struct {
	errs map[string]error
}

func (f *fakeTokens) Token(_ context.Context, a models.Account) (string, error) {
	if err := f.errs[a.ID]; err != nil {
		return "", err
	}
	return "tok-" + a.ID, nil
}

type fakeAPI struct {
	windows map[string]models.Window
	records map[string][]models.RawRecord
	errs    map[string]error
}

func (f *fakeAPI) FetchWindow(_ context.Context, _ string, a models.Account, w models.Window) ([]models.RawRecord, error) {
	if f.windows == nil {
		f.windows = map[string]models.Window{}
	}
	f.windows[a.ID] = w
	if err := f.errs[a.ID]; err != nil {
		return nil, err
	}
	return f.records[a.ID], nil
}

func newTestPoller(t *testing.T, accounts *fakeAccounts, tokens *fakeTokens, api *fakeAPI, store *memStore, opts ...PollerOption) (*Poller, *[]time.Duration) {
	t.Helper()
	log := testLogger(t)
	ing := newTestIngestor(store, &recordingPublisher{}, log)

	slept := &[]time.Duration{}
	base := []PollerOption{
		WithSleep(func(_ context.Context, d time.Duration) error {
			*slept = append(*slept, d)
			return nil
		}),
		WithInterAccountDelay(5 * time.Second),
	}
	p := NewPoller(accounts, tokens, api, ing, store, nopMetrics{}, log, "reporting", append(base, opts...)...)
	return p, slept
}

func TestRunEmptyAccountList(t *testing.T) {
	api := &fakeAPI{}
	p, slept := newTestPoller(t, &fakeAccounts{}, &fakeTokens{}, api, newMemStore())

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(api.windows) != 0 {
		t.Fatalf("fetch called for %d accounts", len(api.windows))
	}
	if len(*slept) != 0 {
		t.Fatalf("slept %d times", len(*slept))
	}
}

func TestRunIsolatesAccountFailures(t *testing.T) {
	accounts := &fakeAccounts{accounts: []models.Account{
		{ID: "bad", Label: "Bad"},
		{ID: "good", Label: "Good"},
	}}
	tokens := &fakeTokens{errs: map[string]error{
		"bad": &models.AuthError{Reason: models.AuthReasonInvalidClient, Status: 401},
	}}
	api := &fakeAPI{records: map[string][]models.RawRecord{
		"good": {record(t, "ev-1", "T0006", "2024-03-09T10:00:00+0000", "9.99")},
	}}
	store := newMemStore()

	p, slept := newTestPoller(t, accounts, tokens, api, store)
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if _, ok := api.windows["bad"]; ok {
		t.Fatalf("fetch ran for account with rejected credentials")
	}
	if _, ok := store.rows["reporting/ev-1"]; !ok {
		t.Fatalf("healthy account was not ingested")
	}
	// delay applies after every account, success or failure
	if len(*slept) != 2 {
		t.Fatalf("slept %d times, want 2", len(*slept))
	}
	for _, d := range *slept {
		if d != 5*time.Second {
			t.Fatalf("delay = %v", d)
		}
	}
}

func TestRunWindowFromCursor(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newMemStore()
	store.rows["reporting/seed"] = &models.Transaction{
		AccountID:       "a1",
		Provider:        "reporting",
		ProviderEventID: "seed",
		OccurredAt:      now.Add(-2 * time.Hour),
	}

	accounts := &fakeAccounts{accounts: []models.Account{{ID: "a1"}}}
	api := &fakeAPI{}
	p, _ := newTestPoller(t, accounts, &fakeTokens{}, api, store,
		WithClock(func() time.Time { return now }),
		WithLookback(72*time.Hour, 30*time.Minute),
	)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	w := api.windows["a1"]
	wantStart := now.Add(-2 * time.Hour).Add(-30 * time.Minute)
	if !w.Start.Equal(wantStart) {
		t.Fatalf("start = %v, want %v", w.Start, wantStart)
	}
	if !w.End.Equal(now) {
		t.Fatalf("end = %v, want %v", w.End, now)
	}
}

func TestRunFetchFailureDoesNotStopPass(t *testing.T) {
	accounts := &fakeAccounts{accounts: []models.Account{
		{ID: "limited"},
		{ID: "ok"},
	}}
	api := &fakeAPI{
		errs: map[string]error{"limited": &models.RateLimitError{Attempts: 6}},
		records: map[string][]models.RawRecord{
			"ok": {record(t, "ev-2", "T1107", "2024-03-09T10:00:00+0000", "1.00")},
		},
	}
	store := newMemStore()

	p, _ := newTestPoller(t, accounts, &fakeTokens{}, api, store)
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, ok := store.rows["reporting/ev-2"]; !ok {
		t.Fatalf("second account not ingested after first was rate limited")
	}
}

func TestClassifyFailure(t *testing.T) {
	cases := []struct {
		err  error
		kind string
	}{
		{&models.AuthError{Reason: models.AuthReasonInvalidClient}, "auth"},
		{&models.AuthError{Reason: models.AuthReasonOther}, "auth"},
		{&models.RateLimitError{Attempts: 6}, "rate_limit"},
		{&models.NetworkError{Attempts: 4}, "network"},
		{&models.APIError{Status: 403}, "permission"},
		{&models.APIError{Status: 500}, "api"},
		{context.DeadlineExceeded, "other"},
	}
	for _, tc := range cases {
		if kind, _ := classifyFailure(tc.err); kind != tc.kind {
			t.Fatalf("classifyFailure(%v) = %q, want %q", tc.err, kind, tc.kind)
		}
	}
}
