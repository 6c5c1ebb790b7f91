package di

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"PayPull/internal/domain/repository"
	"PayPull/internal/handler/api"
	internalrepo "PayPull/internal/repository"
	"PayPull/internal/service/provider"
	"PayPull/internal/usecase"
	"PayPull/pkg/cache"
	"PayPull/pkg/config"
	xhttp "PayPull/pkg/http"
	pkgkafka "PayPull/pkg/kafka"
	applogger "PayPull/pkg/logger"
	"PayPull/pkg/metrics"
	"PayPull/pkg/postgres"
	"PayPull/pkg/retry"
	"PayPull/pkg/server"
)

const bootstrapTimeout = 15 * time.Second

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates the Prometheus recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvidePostgresClient connects to Postgres.
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, error) {
	client, err := postgres.NewClient(
		postgres.WithDSN(cfg.Database.DSN),
		postgres.WithMaxConns(cfg.Database.MaxConns),
		postgres.WithConnectTimeout(cfg.Database.ConnectTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres client: %w", err)
	}
	return client, nil
}

// ProvideCache creates the token cache: memory-over-Redis when Redis is
// configured so tokens survive restarts, otherwise in-process memory only.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Cache.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Cache.Redis.Host),
		cache.WithRedisPort(cfg.Cache.Redis.Port),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(rc), nil
}

// ProvideHTTPClient creates the outbound HTTP client used for all
// provider calls.
func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(xhttp.WithTimeout(cfg.Provider.Timeout))
}

// ProvideRetryPolicy builds the shared backoff schedule.
func ProvideRetryPolicy(cfg *config.Config) *retry.Policy {
	return retry.New(
		cfg.Provider.NetworkRetries,
		cfg.Provider.BackoffBase,
		cfg.Provider.BackoffMax,
		cfg.Provider.JitterFrac,
	)
}

// ProvideTokenSource creates the OAuth token client.
func ProvideTokenSource(httpClient *xhttp.Client, c cache.Service, log *applogger.Logger, cfg *config.Config) (repository.TokenSource, error) {
	tokenURL, err := url.JoinPath(cfg.Provider.BaseURL, cfg.Provider.TokenPath)
	if err != nil {
		return nil, fmt.Errorf("token url: %w", err)
	}
	return provider.NewTokenClient(httpClient, c, log, tokenURL, cfg.Provider.TokenTTLMargin), nil
}

// ProvideReportAPI creates the paginated reporting client.
func ProvideReportAPI(httpClient *xhttp.Client, log *applogger.Logger, m repository.Metrics, policy *retry.Policy, cfg *config.Config) (repository.ReportAPI, error) {
	reportURL, err := url.JoinPath(cfg.Provider.BaseURL, cfg.Provider.ReportPath)
	if err != nil {
		return nil, fmt.Errorf("report url: %w", err)
	}
	return provider.NewReportClient(httpClient, log, m, reportURL,
		provider.WithPageSize(cfg.Provider.PageSize),
		provider.WithFields(cfg.Provider.Fields),
		provider.WithNetworkRetries(cfg.Provider.NetworkRetries),
		provider.WithRateLimitRetries(cfg.Provider.RateLimitRetries),
		provider.WithBackoff(policy),
		provider.WithInterPageDelay(cfg.Provider.InterPageDelay),
	), nil
}

// ProvideAccountSource discovers the credential relation and binds the
// account lister to it. Discovery failure is fatal at startup.
func ProvideAccountSource(pg *postgres.Client, cfg *config.Config) (repository.AccountSource, error) {
	ctx, cancel := context.WithTimeout(context.Background(), bootstrapTimeout)
	defer cancel()
	return internalrepo.NewPostgresAccountSource(ctx, pg.Pool(), cfg.Database.AccountsTable, cfg.Provider.Name)
}

// ProvideTransactionStore creates the transaction store and ensures its
// schema exists.
func ProvideTransactionStore(pg *postgres.Client) (repository.TransactionStore, error) {
	store := internalrepo.NewPostgresTransactionStore(pg.Pool())
	ctx, cancel := context.WithTimeout(context.Background(), bootstrapTimeout)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// ProvidePublisher creates the Kafka feed, or a no-op when no brokers are
// configured.
func ProvidePublisher(cfg *config.Config) (repository.Publisher, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return internalrepo.NopPublisher{}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic), nil
}

// ProvideIngestor creates the classifier/persister.
func ProvideIngestor(store repository.TransactionStore, pub repository.Publisher, m repository.Metrics, log *applogger.Logger, cfg *config.Config) *usecase.Ingestor {
	return usecase.NewIngestor(store, pub, m, log,
		cfg.Provider.Name,
		cfg.Events.RecognizedCodes,
		cfg.Events.CaptureCode,
	)
}

// ProvidePoller wires the per-account orchestration.
func ProvidePoller(
	accounts repository.AccountSource,
	tokens repository.TokenSource,
	reportAPI repository.ReportAPI,
	ingestor *usecase.Ingestor,
	store repository.TransactionStore,
	m repository.Metrics,
	log *applogger.Logger,
	cfg *config.Config,
) *usecase.Poller {
	return usecase.NewPoller(accounts, tokens, reportAPI, ingestor, store, m, log,
		cfg.Provider.Name,
		usecase.WithLookback(
			time.Duration(cfg.Provider.MaxWindowHours)*time.Hour,
			time.Duration(cfg.Provider.OverlapMinutes)*time.Minute,
		),
		usecase.WithInterAccountDelay(cfg.Provider.InterAccountDelay),
	)
}

// ProvideHandler creates the ops HTTP handler.
func ProvideHandler(log *applogger.Logger, store repository.TransactionStore, m repository.Metrics) xhttp.Handler {
	return api.NewTransactionsHandler(log, store, m)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	poller *usecase.Poller,
	store repository.TransactionStore,
	pub repository.Publisher,
	pg *postgres.Client,
	handler xhttp.Handler,
) *server.App {
	return server.New(cfg, log, poller, store, pub, pg, handler)
}
