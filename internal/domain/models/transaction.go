package models

import (
	"encoding/json"
	"time"

	"PayPull/pkg/util"
)

// Account is one merchant account to poll, with its provider credentials.
// Read-only to this engine; sourced from the credential relation.
type Account struct {
	ID           string
	Label        string
	ClientID     string
	ClientSecret string
}

// Window is the [Start, End) time range queried in one run.
type Window struct {
	Start time.Time
	End   time.Time
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Amount is the provider's monetary value representation.
type Amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

// TransactionInfo is the subset of provider record fields the classifier
// reads. Remaining fields stay in the raw payload.
type TransactionInfo struct {
	TransactionID             string `json:"transaction_id"`
	TransactionEventCode      string `json:"transaction_event_code"`
	TransactionInitiationDate string `json:"transaction_initiation_date"`
	TransactionUpdatedDate    string `json:"transaction_updated_date"`
	TransactionEventDate      string `json:"transaction_event_date"`
	TransactionStatus         string `json:"transaction_status"`
	TransactionAmount         Amount `json:"transaction_amount"`
}

// RawRecord is one provider-reported transaction record. Raw keeps the
// full payload for opaque persistence; Info carries the classified fields.
type RawRecord struct {
	Raw  json.RawMessage
	Info TransactionInfo
}

func (r *RawRecord) UnmarshalJSON(b []byte) error {
	var wrapper struct {
		TransactionInfo TransactionInfo `json:"transaction_info"`
	}
	if err := json.Unmarshal(b, &wrapper); err != nil {
		return err
	}
	r.Info = wrapper.TransactionInfo
	r.Raw = append(r.Raw[:0], b...)
	return nil
}

// EventID returns the provider-assigned record id.
func (r *RawRecord) EventID() string {
	return r.Info.TransactionID
}

// EventCode returns the provider event code.
func (r *RawRecord) EventCode() string {
	return r.Info.TransactionEventCode
}

// OccurredAt resolves the record timestamp by falling back through
// initiation date, updated date, then event date.
func (r *RawRecord) OccurredAt() (time.Time, bool) {
	return util.FirstTime(
		r.Info.TransactionInitiationDate,
		r.Info.TransactionUpdatedDate,
		r.Info.TransactionEventDate,
	)
}

// AmountValue parses the signed amount; non-numeric values are absent.
func (r *RawRecord) AmountValue() (float64, bool) {
	return util.ParseAmount(r.Info.TransactionAmount.Value)
}

// Transaction is a stored, classified transaction row. Never mutated or
// deleted by this engine; (Provider, ProviderEventID) is the natural key.
type Transaction struct {
	AccountID       string
	Provider        string
	ProviderEventID string
	EventType       string
	Payload         json.RawMessage
	OccurredAt      time.Time
	Verified        bool
	CreatedAt       time.Time
}

// IngestStats is the per-account accounting for one run.
type IngestStats struct {
	Fetched      int
	Discarded    int
	Captures     int
	NonCaptures  int
	Inserted     int
	Skipped      int
	CaptureTotal float64
}
