package usecase

import (
	"context"
	"errors"
	"time"

	"PayPull/internal/domain/models"
	"PayPull/internal/domain/repository"
	"PayPull/pkg/logger"
)

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithClock injects the time source.
func WithClock(now func() time.Time) PollerOption {
	return func(p *Poller) { p.now = now }
}

// WithSleep injects the delay function.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) PollerOption {
	return func(p *Poller) { p.sleep = sleep }
}

// WithInterAccountDelay sets the pause between accounts.
func WithInterAccountDelay(d time.Duration) PollerOption {
	return func(p *Poller) { p.interAccountDelay = d }
}

// WithLookback sets the window cap and the cursor overlap rewind.
func WithLookback(maxWindow, overlap time.Duration) PollerOption {
	return func(p *Poller) {
		p.maxWindow = maxWindow
		p.overlap = overlap
	}
}

// Poller runs one full ingestion pass: every active account, strictly in
// sequence. Per-account failures are reported and never stop the pass.
type Poller struct {
	accounts repository.AccountSource
	tokens   repository.TokenSource
	api      repository.ReportAPI
	ingestor *Ingestor
	store    repository.TransactionStore
	metrics  repository.Metrics
	log      *logger.Logger

	provider          string
	maxWindow         time.Duration
	overlap           time.Duration
	interAccountDelay time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller wires the ingestion pass.
func NewPoller(
	accounts repository.AccountSource,
	tokens repository.TokenSource,
	api repository.ReportAPI,
	ingestor *Ingestor,
	store repository.TransactionStore,
	m repository.Metrics,
	log *logger.Logger,
	provider string,
	opts ...PollerOption,
) *Poller {
	p := &Poller{
		accounts:          accounts,
		tokens:            tokens,
		api:               api,
		ingestor:          ingestor,
		store:             store,
		metrics:           m,
		log:               log,
		provider:          provider,
		maxWindow:         72 * time.Hour,
		overlap:           30 * time.Minute,
		interAccountDelay: 5 * time.Second,
		now:               time.Now,
		sleep:             sleepCtx,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one pass over all active accounts. It returns an error only
// when the account list itself cannot be obtained; account-level failures
// are logged and absorbed.
func (p *Poller) Run(ctx context.Context) error {
	accounts, err := p.accounts.ListActiveAccounts(ctx)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		p.log.Info("no active accounts to poll")
		return nil
	}
	p.log.Info("starting ingestion pass", logger.Int("accounts", len(accounts)))

	for _, account := range accounts {
		start := p.now()
		stats, err := p.pollAccount(ctx, account)
		p.metrics.RecordLatency("account_poll", p.now().Sub(start).Seconds())

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			kind, status := classifyFailure(err)
			p.metrics.RecordError(kind)
			p.log.Error("account failed: "+status,
				logger.String("account", account.ID),
				logger.String("label", account.Label),
				logger.String("kind", kind),
				logger.Error(err))
		} else {
			p.log.Info("account done",
				logger.String("account", account.ID),
				logger.String("label", account.Label),
				logger.Int("fetched", stats.Fetched),
				logger.Int("captures", stats.Captures),
				logger.Float64("capture_total", stats.CaptureTotal),
				logger.Int("non_captures", stats.NonCaptures),
				logger.Int("inserted", stats.Inserted),
				logger.Int("skipped", stats.Skipped),
				logger.Int("discarded", stats.Discarded))
		}

		if err := p.sleep(ctx, p.interAccountDelay); err != nil {
			return err
		}
	}
	p.log.Info("ingestion pass complete")
	return nil
}

func (p *Poller) pollAccount(ctx context.Context, account models.Account) (*models.IngestStats, error) {
	token, err := p.tokens.Token(ctx, account)
	if err != nil {
		return nil, err
	}

	lastSeen, err := p.store.LastEventTime(ctx, p.provider, account.ID)
	if err != nil {
		return nil, err
	}
	w := CalcWindow(p.now(), lastSeen, p.maxWindow, p.overlap)
	p.log.Debug("window computed",
		logger.String("account", account.ID),
		logger.Time("start", w.Start),
		logger.Time("end", w.End))

	records, err := p.api.FetchWindow(ctx, token, account, w)
	if err != nil {
		return nil, err
	}

	return p.ingestor.Ingest(ctx, account, records)
}

// classifyFailure maps a per-account error to a reporting kind and a
// human-readable status line.
func classifyFailure(err error) (kind, status string) {
	var authErr *models.AuthError
	var apiErr *models.APIError
	var rateErr *models.RateLimitError
	var netErr *models.NetworkError

	switch {
	case errors.As(err, &authErr):
		if authErr.InvalidClient() {
			return "auth", "credentials rejected by token endpoint"
		}
		return "auth", "token acquisition failed"
	case errors.As(err, &rateErr):
		return "rate_limit", "rate limit retries exhausted"
	case errors.As(err, &netErr):
		return "network", "network retries exhausted"
	case errors.As(err, &apiErr):
		if apiErr.PermissionDenied() {
			return "permission", "insufficient API permission"
		}
		return "api", "provider rejected the request"
	default:
		return "other", "unexpected failure"
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
