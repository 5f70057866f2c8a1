package di

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/velprakashr08-max/Frutify/internal/app"
	"github.com/velprakashr08-max/Frutify/internal/broker"
	"github.com/velprakashr08-max/Frutify/internal/catalog"
	"github.com/velprakashr08-max/Frutify/internal/config"
	"github.com/velprakashr08-max/Frutify/internal/database"
	"github.com/velprakashr08-max/Frutify/internal/dispatch"
	"github.com/velprakashr08-max/Frutify/internal/ledger"
	"github.com/velprakashr08-max/Frutify/internal/media"
	"github.com/velprakashr08-max/Frutify/internal/observability"
	"github.com/velprakashr08-max/Frutify/internal/ops"
	"github.com/velprakashr08-max/Frutify/internal/orders"
	"github.com/velprakashr08-max/Frutify/internal/ratelimit"
	"github.com/velprakashr08-max/Frutify/internal/store"
	"github.com/velprakashr08-max/Frutify/internal/workers"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(provideLogger, provideMetrics)

var RuntimeInfraSet = wire.NewSet(provideRedis, provideKV, provideDB, provideBroker, provideSource, providePublisher)

var StoreSet = wire.NewSet(provideLedger, provideLimiter, provideOrdersStore, provideCatalogStore, providePresigner, provideCache)

var WorkerSet = wire.NewSet(provideNotifier, provideWorkerDeps, provideDispatchers)

var OpsSet = wire.NewSet(provideOpsServer)

var AppSet = wire.NewSet(app.New)

func provideLogger(cfg *config.Config) *slog.Logger {
	return observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
}

func provideMetrics() *observability.Metrics {
	return observability.NewMetrics()
}

func provideRedis(cfg *config.Config, metrics *observability.Metrics) redis.UniversalClient {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	client.AddHook(observability.NewKeyspaceHook(metrics))
	return client
}

func provideKV(client redis.UniversalClient) store.KV {
	return store.NewRedisKV(client)
}

func provideDB(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(cfg)
}

func provideBroker(cfg *config.Config, logger *slog.Logger) (*broker.Connection, error) {
	return broker.Dial(cfg.RabbitMQURL, cfg.BrokerPrefetch, logger)
}

func provideSource(conn *broker.Connection) broker.Source {
	return broker.NewSource(conn)
}

func providePublisher(conn *broker.Connection) *broker.Publisher {
	return broker.NewPublisher(conn)
}

func provideLedger(kv store.KV, cfg *config.Config) *ledger.Ledger {
	return ledger.New(kv, cfg.LedgerTTL)
}

func provideLimiter(kv store.KV, cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(kv, ratelimit.FailureMode(cfg.RateLimitMode))
}

func provideOrdersStore(db *gorm.DB) *orders.Store {
	return orders.NewStore(db)
}

func provideCatalogStore(db *gorm.DB) *catalog.Store {
	return catalog.NewStore(db)
}

func providePresigner(cfg *config.Config, logger *slog.Logger) (media.Presigner, error) {
	if cfg.MinIOEndpoint == "" {
		return nil, nil
	}
	return media.NewMinIOPresigner(cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOBucket, cfg.MinIOUseSSL, logger)
}

func provideCache(client redis.UniversalClient, catalogStore *catalog.Store, images media.Presigner) *catalog.Cache {
	return catalog.NewCache(client, catalogStore, images)
}

func provideNotifier(logger *slog.Logger) *workers.DevNotifier {
	return workers.NewDevNotifier(logger)
}

func provideWorkerDeps(n *workers.DevNotifier, pub *broker.Publisher, ordersStore *orders.Store, catalogStore *catalog.Store, cache *catalog.Cache) workers.Deps {
	return workers.Deps{
		Email:     n,
		SMS:       n,
		Push:      n,
		Analytics: n,
		Search:    n,
		Refunds:   n,
		Events:    pub,
		Orders:    ordersStore,
		Catalog:   catalogStore,
		Cache:     cache,
	}
}

func provideDispatchers(
	cfg *config.Config,
	source broker.Source,
	led *ledger.Ledger,
	deps workers.Deps,
	logger *slog.Logger,
	metrics *observability.Metrics,
) []*dispatch.Dispatcher {
	regs := workers.All(deps)
	out := make([]*dispatch.Dispatcher, 0, len(regs))
	for _, reg := range regs {
		opts := dispatch.Options{
			Workers:        reg.Workers,
			MaxAttempts:    cfg.MaxAttempts,
			HandlerTimeout: cfg.HandlerTimeout,
			BaseBackoff:    cfg.BaseBackoff,
			MaxBackoff:     cfg.MaxBackoff,
		}
		out = append(out, dispatch.New(reg.Queue, source, led, reg.Handler, opts, logger, metrics))
	}
	return out
}

func provideOpsServer(
	cfg *config.Config,
	logger *slog.Logger,
	rdb redis.UniversalClient,
	conn *broker.Connection,
	db *gorm.DB,
	metrics *observability.Metrics,
	limiter *ratelimit.Limiter,
) *http.Server {
	srv := ops.NewServer(logger, rdb, conn, metrics,
		ops.WithDBPing(dbPing(db)),
		ops.WithRateLimit(limiter, cfg.OpsRateLimitPerMin, time.Minute),
	)
	return &http.Server{
		Addr:         ":" + cfg.OpsPort,
		Handler:      srv.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// MigrationRunner applies the relational schema and exits. It exists so
// deploys can migrate before the worker fleet rolls.
type MigrationRunner struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewMigrationRunner(db *gorm.DB, logger *slog.Logger) *MigrationRunner {
	return &MigrationRunner{db: db, logger: logger}
}

func (m *MigrationRunner) Run() error {
	if err := database.Migrate(m.db); err != nil {
		return err
	}
	m.logger.Info("migrations applied")
	return nil
}

func (m *MigrationRunner) Seed(path string) error {
	report, err := database.SeedSync(m.db, path)
	if err != nil {
		return err
	}
	m.logger.Info("seed complete", "created_products", report.CreatedProducts, "noop", report.Noop)
	return nil
}

func dbPing(db *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
