package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"PayPull/internal/domain/models"
	"PayPull/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

// memStore is an in-memory TransactionStore keyed on the natural key.
type memStore struct {
	rows      map[string]*models.Transaction
	insertErr error
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]*models.Transaction{}}
}

func (s *memStore) Init(context.Context) error { return nil }

func (s *memStore) InsertIgnore(_ context.Context, t *models.Transaction) (bool, error) {
	if s.insertErr != nil {
		return false, s.insertErr
	}
	key := t.Provider + "/" + t.ProviderEventID
	if _, ok := s.rows[key]; ok {
		return false, nil
	}
	s.rows[key] = t
	return true, nil
}

func (s *memStore) LastEventTime(_ context.Context, provider, accountID string) (*time.Time, error) {
	var last *time.Time
	for _, t := range s.rows {
		if t.Provider != provider || t.AccountID != accountID {
			continue
		}
		if last == nil || t.OccurredAt.After(*last) {
			ts := t.OccurredAt
			last = &ts
		}
	}
	return last, nil
}

func (s *memStore) Recent(context.Context, string, int) ([]*models.Transaction, error) {
	return nil, nil
}
func (s *memStore) Health(context.Context) error { return nil }
func (s *memStore) Close() error                 { return nil }

type recordingPublisher struct {
	published []string
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, t *models.Transaction) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, t.ProviderEventID)
	return nil
}
func (p *recordingPublisher) Close() error { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordFetched(string, int)     {}
func (nopMetrics) RecordInserted(string, int)    {}
func (nopMetrics) RecordSkipped(string, int)     {}
func (nopMetrics) RecordCapture(string, float64) {}
func (nopMetrics) RecordError(string)            {}
func (nopMetrics) RecordRateLimited(string)      {}
func (nopMetrics) RecordPixelHit()               {}
func (nopMetrics) RecordLatency(string, float64) {}

func rawRecord(t *testing.T, body string) models.RawRecord {
	t.Helper()
	var r models.RawRecord
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	return r
}

func record(t *testing.T, id, code, date, amount string) models.RawRecord {
	t.Helper()
	return rawRecord(t, fmt.Sprintf(`{"transaction_info":{
		"transaction_id":%q,
		"transaction_event_code":%q,
		"transaction_initiation_date":%q,
		"transaction_amount":{"currency_code":"USD","value":%q}
	}}`, id, code, date, amount))
}

func newTestIngestor(store *memStore, pub *recordingPublisher, log *logger.Logger) *Ingestor {
	return NewIngestor(store, pub, nopMetrics{}, log, "reporting", []string{"T0006", "T1107"}, "T0006")
}

func TestIngestClassification(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	ing := newTestIngestor(store, pub, testLogger(t))
	account := models.Account{ID: "acct-1"}

	records := []models.RawRecord{
		record(t, "ev-capture", "T0006", "2024-03-09T10:00:00+0000", "10.50"),
		record(t, "ev-refundish", "T0006", "2024-03-09T10:05:00+0000", "-5.00"),
		record(t, "ev-fee", "T1107", "2024-03-09T10:10:00+0000", "1.25"),
		record(t, "ev-unknown", "T9999", "2024-03-09T10:15:00+0000", "3.00"),
	}

	stats, err := ing.Ingest(context.Background(), account, records)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if stats.Fetched != 4 || stats.Captures != 1 || stats.NonCaptures != 2 || stats.Discarded != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.CaptureTotal != 10.50 {
		t.Fatalf("capture total = %v", stats.CaptureTotal)
	}
	if stats.Inserted != 3 {
		t.Fatalf("inserted = %d", stats.Inserted)
	}
	if _, ok := store.rows["reporting/ev-unknown"]; ok {
		t.Fatalf("unrecognized record was persisted")
	}

	capture := store.rows["reporting/ev-capture"]
	if capture.EventType != EventTypeCapture || !capture.Verified {
		t.Fatalf("capture row = %+v", capture)
	}
	if got := store.rows["reporting/ev-refundish"].EventType; got != EventTypeNonCapture {
		t.Fatalf("negative amount classified as %q", got)
	}
	if want := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC); !capture.OccurredAt.Equal(want) {
		t.Fatalf("occurred_at = %v, want %v", capture.OccurredAt, want)
	}
}

func TestIngestMissingAmountIsNonCapture(t *testing.T) {
	store := newMemStore()
	ing := newTestIngestor(store, &recordingPublisher{}, testLogger(t))

	rec := rawRecord(t, `{"transaction_info":{
		"transaction_id":"ev-1",
		"transaction_event_code":"T0006",
		"transaction_initiation_date":"2024-03-09T10:00:00+0000"
	}}`)
	stats, err := ing.Ingest(context.Background(), models.Account{ID: "a"}, []models.RawRecord{rec})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if stats.Captures != 0 || stats.NonCaptures != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if got := store.rows["reporting/ev-1"].EventType; got != EventTypeNonCapture {
		t.Fatalf("event type = %q", got)
	}
}

func TestIngestDropsMalformedRecords(t *testing.T) {
	store := newMemStore()
	ing := newTestIngestor(store, &recordingPublisher{}, testLogger(t))

	records := []models.RawRecord{
		// no id
		rawRecord(t, `{"transaction_info":{"transaction_event_code":"T0006","transaction_initiation_date":"2024-03-09T10:00:00+0000"}}`),
		// no usable timestamp
		rawRecord(t, `{"transaction_info":{"transaction_id":"ev-2","transaction_event_code":"T0006","transaction_initiation_date":"not-a-date"}}`),
		record(t, "ev-3", "T0006", "2024-03-09T10:00:00+0000", "2.00"),
	}

	stats, err := ing.Ingest(context.Background(), models.Account{ID: "a"}, records)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if stats.Discarded != 2 || stats.Inserted != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(store.rows) != 1 {
		t.Fatalf("rows = %d", len(store.rows))
	}
}

func TestIngestIdempotent(t *testing.T) {
	store := newMemStore()
	ing := newTestIngestor(store, &recordingPublisher{}, testLogger(t))
	account := models.Account{ID: "a"}

	records := []models.RawRecord{
		record(t, "ev-1", "T0006", "2024-03-09T10:00:00+0000", "10.00"),
		record(t, "ev-2", "T1107", "2024-03-09T11:00:00+0000", "1.00"),
	}

	first, err := ing.Ingest(context.Background(), account, records)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	second, err := ing.Ingest(context.Background(), account, records)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}

	if first.Inserted != 2 || first.Skipped != 0 {
		t.Fatalf("first = %+v", first)
	}
	if second.Inserted != 0 || second.Skipped != 2 {
		t.Fatalf("second = %+v", second)
	}
	if len(store.rows) != 2 {
		t.Fatalf("rows = %d", len(store.rows))
	}
}

func TestIngestPublishesOnlyNewRows(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	ing := newTestIngestor(store, pub, testLogger(t))
	account := models.Account{ID: "a"}
	records := []models.RawRecord{record(t, "ev-1", "T0006", "2024-03-09T10:00:00+0000", "4.00")}

	if _, err := ing.Ingest(context.Background(), account, records); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if _, err := ing.Ingest(context.Background(), account, records); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(pub.published) != 1 || pub.published[0] != "ev-1" {
		t.Fatalf("published = %v", pub.published)
	}
}

func TestIngestToleratesPublishFailure(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{err: errors.New("broker down")}
	ing := newTestIngestor(store, pub, testLogger(t))

	records := []models.RawRecord{record(t, "ev-1", "T0006", "2024-03-09T10:00:00+0000", "4.00")}
	stats, err := ing.Ingest(context.Background(), models.Account{ID: "a"}, records)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if stats.Inserted != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}
