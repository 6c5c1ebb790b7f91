package api

import (
	"context"
	"net/http"
	"time"

	domrepo "PayPull/internal/domain/repository"
	xhttp "PayPull/pkg/http"
	xlogger "PayPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

// pixelGIF is a 1x1 transparent GIF, served to tracking-pixel requests.
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// TransactionsHandler exposes the read-only ops surface: health, a recent
// transactions view, and the tracking pixel.
type TransactionsHandler struct {
	logger  *xlogger.Logger
	store   domrepo.TransactionStore
	metrics domrepo.Metrics
}

func NewTransactionsHandler(logger *xlogger.Logger, store domrepo.TransactionStore, m domrepo.Metrics) *TransactionsHandler {
	return &TransactionsHandler{logger: logger, store: store, metrics: m}
}

func (h *TransactionsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	e.GET("/px.gif", h.Pixel)

	g := e.Group("/api")
	g.GET("/transactions/recent", h.Recent)
}

func (h *TransactionsHandler) Health(c echo.Context) error {
	ctx, cancel := contextWithTimeout(c, 2*time.Second)
	defer cancel()
	if err := h.store.Health(ctx); err != nil {
		h.logger.Error("health check failed", xlogger.Error(err))
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, "store unreachable")
	}
	return xhttp.SuccessResponse(c, "ok")
}

// RecentRequest filters the recent transactions view.
type RecentRequest struct {
	AccountID string `query:"account_id"`
	Limit     int    `query:"limit" default:"50" validate:"min=1,max=500"`
}

// Recent lists stored transactions, newest first.
func (h *TransactionsHandler) Recent(c echo.Context) error {
	req := &RecentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rows, err := h.store.Recent(c.Request().Context(), req.AccountID, req.Limit)
	if err != nil {
		h.logger.Error("recent transactions query failed", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}

	out := make([]recentTransaction, 0, len(rows))
	for _, t := range rows {
		out = append(out, recentTransaction{
			AccountID:       t.AccountID,
			Provider:        t.Provider,
			ProviderEventID: t.ProviderEventID,
			EventType:       t.EventType,
			OccurredAt:      t.OccurredAt,
			Verified:        t.Verified,
		})
	}
	return xhttp.ListResponse(c, out, int64(len(out)))
}

// Pixel serves the tracking pixel and records the hit with its query
// parameters. Always responds 200 with image bytes.
func (h *TransactionsHandler) Pixel(c echo.Context) error {
	h.metrics.RecordPixelHit()
	h.logger.Info("pixel hit",
		xlogger.String("remote", c.RealIP()),
		xlogger.String("query", c.QueryString()))

	c.Response().Header().Set(echo.HeaderCacheControl, "no-store, no-cache, must-revalidate")
	c.Response().Header().Set("Pragma", "no-cache")
	return c.Blob(http.StatusOK, "image/gif", pixelGIF)
}

func contextWithTimeout(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), d)
}

type recentTransaction struct {
	AccountID       string    `json:"account_id"`
	Provider        string    `json:"provider"`
	ProviderEventID string    `json:"provider_event_id"`
	EventType       string    `json:"event_type"`
	OccurredAt      time.Time `json:"occurred_at"`
	Verified        bool      `json:"verified"`
}
