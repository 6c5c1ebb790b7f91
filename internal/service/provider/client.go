package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"PayPull/internal/domain/models"
	"PayPull/internal/domain/repository"
	phttp "PayPull/pkg/http"
	"PayPull/pkg/logger"
	"PayPull/pkg/retry"
)

type reportPage struct {
	TransactionDetails []models.RawRecord `json:"transaction_details"`
	TotalPages         int                `json:"total_pages"`
	Page               int                `json:"page"`
}

// ReportClient fetches the reporting endpoint page by page for a window.
// Transient transport failures and 429 responses are retried under
// separate budgets; any other non-success status fails the fetch at once.
type ReportClient struct {
	http    *phttp.Client
	log     *logger.Logger
	metrics repository.Metrics

	reportURL string
	fields    string
	pageSize  int

	networkRetries   int
	rateLimitRetries int
	backoff          *retry.Policy
	interPageDelay   time.Duration
}

// ReportClientOption configures a ReportClient.
type ReportClientOption func(*ReportClient)

func WithPageSize(n int) ReportClientOption {
	return func(c *ReportClient) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

func WithFields(fields string) ReportClientOption {
	return func(c *ReportClient) { c.fields = fields }
}

func WithNetworkRetries(n int) ReportClientOption {
	return func(c *ReportClient) { c.networkRetries = n }
}

func WithRateLimitRetries(n int) ReportClientOption {
	return func(c *ReportClient) { c.rateLimitRetries = n }
}

func WithBackoff(p *retry.Policy) ReportClientOption {
	return func(c *ReportClient) { c.backoff = p }
}

func WithInterPageDelay(d time.Duration) ReportClientOption {
	return func(c *ReportClient) { c.interPageDelay = d }
}

// NewReportClient creates a ReportAPI for the provider reporting endpoint.
func NewReportClient(httpClient *phttp.Client, log *logger.Logger, m repository.Metrics, reportURL string, opts ...ReportClientOption) repository.ReportAPI {
	c := &ReportClient{
		http:             httpClient,
		log:              log,
		metrics:          m,
		reportURL:        reportURL,
		fields:           "all",
		pageSize:         100,
		networkRetries:   3,
		rateLimitRetries: 5,
		backoff:          retry.New(0, 0, 0, 0),
		interPageDelay:   500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchWindow pulls every page of the window and returns the records in
// provider order. Retry counters reset at each page boundary.
func (c *ReportClient) FetchWindow(ctx context.Context, token string, account models.Account, w models.Window) ([]models.RawRecord, error) {
	var records []models.RawRecord
	page := 1
	for {
		p, err := c.fetchPage(ctx, token, account, w, page)
		if err != nil {
			return nil, err
		}
		records = append(records, p.TransactionDetails...)

		if page >= p.TotalPages {
			break
		}
		page++
		if err := c.backoff.WaitFor(ctx, c.interPageDelay); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (c *ReportClient) fetchPage(ctx context.Context, token string, account models.Account, w models.Window, page int) (*reportPage, error) {
	netAttempts := 0
	rateAttempts := 0
	for {
		resp, err := c.http.SendRequest(ctx, &phttp.RequestOptions{
			Method: phttp.MethodGet,
			URL:    c.reportURL,
			Headers: map[string]string{
				"Authorization": "Bearer " + token,
			},
			QueryParams: map[string][]string{
				"start_date": {w.Start.UTC().Format(time.RFC3339)},
				"end_date":   {w.End.UTC().Format(time.RFC3339)},
				"fields":     {c.fields},
				"page_size":  {strconv.Itoa(c.pageSize)},
				"page":       {strconv.Itoa(page)},
			},
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			netAttempts++
			if netAttempts > c.networkRetries {
				return nil, &models.NetworkError{Attempts: netAttempts, Err: err}
			}
			c.log.Warn("transient fetch failure, retrying",
				logger.String("account", account.ID),
				logger.Int("page", page),
				logger.Int("attempt", netAttempts),
				logger.Error(err))
			if werr := c.backoff.Wait(ctx, netAttempts-1); werr != nil {
				return nil, werr
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			delay, hasHeader := retryAfter(resp)
			drain(resp)
			c.metrics.RecordRateLimited(account.ID)
			rateAttempts++
			if rateAttempts > c.rateLimitRetries {
				return nil, &models.RateLimitError{Attempts: rateAttempts}
			}
			if !hasHeader {
				delay = c.backoff.Delay(rateAttempts - 1)
			}
			c.log.Warn("rate limited, backing off",
				logger.String("account", account.ID),
				logger.Int("page", page),
				logger.Int("attempt", rateAttempts),
				logger.Duration("delay", delay))
			if werr := c.backoff.WaitFor(ctx, delay); werr != nil {
				return nil, werr
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, &models.APIError{Status: resp.StatusCode, Body: string(body)}
		}

		var p reportPage
		err = decodeBody(resp, &p)
		if err != nil {
			return nil, &models.APIError{Status: resp.StatusCode, Body: fmt.Sprintf("decode page: %v", err)}
		}
		if p.TotalPages < 1 {
			p.TotalPages = 1
		}
		return &p, nil
	}
}

// retryAfter reads the Retry-After header as delay seconds. The reported
// value is honored exactly, without jitter.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func decodeBody(resp *http.Response, dest any) error {
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dest)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
