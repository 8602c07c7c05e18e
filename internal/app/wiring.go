package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"drive-service/internal/audit"
	"drive-service/internal/auth"
	"drive-service/internal/billing"
	"drive-service/internal/cleanup"
	"drive-service/internal/config"
	domainquota "drive-service/internal/domain/quota"
	"drive-service/internal/entries"
	"drive-service/internal/http"
	"drive-service/internal/infra/cache"
	"drive-service/internal/quota"
	"drive-service/internal/repository"
	"drive-service/internal/repository/memory"
	"drive-service/internal/repository/postgres"
	"drive-service/internal/sharing"
	"drive-service/internal/storage/s3"
	"drive-service/internal/trash"
	"drive-service/internal/upload"
	"drive-service/internal/worker"
	"drive-service/pkg/metrics"

	"github.com/rs/zerolog"
)

// downloadCache is what both URL cache backends provide.
type downloadCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, url string, expiry time.Time) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// InitializeService wires up all dependencies and returns a configured Service
func InitializeService(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Service, error) {
	var closers []io.Closer

	txm, auditSink, err := openStore(ctx, cfg, logger, &closers)
	if err != nil {
		return nil, err
	}
	recorder := audit.NewRecorder(auditSink, logger)

	s3Client, err := s3.NewClient(&cfg.AWS)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	logger.Info().Str("bucket", cfg.AWS.BucketName).Msg("S3 client initialized")

	urlCache, err := openCache(ctx, cfg, logger, &closers)
	if err != nil {
		return nil, err
	}

	plans := billing.NewStaticPlans(domainquota.Plan{ID: cfg.Drive.DefaultPlanID, QuotaBytes: cfg.Drive.DefaultQuotaBytes})

	entryStore := entries.NewStore(txm, cfg.Drive.MaxTreeDepth, logger)
	ledger := quota.NewLedger(txm, plans, logger)
	queue := cleanup.NewQueue(txm, s3Client, logger)
	registry := sharing.NewRegistry(txm, cfg.Drive.ShareCodeTTL, cfg.Drive.ShareCodeLength, logger)
	lifecycle := trash.NewLifecycle(txm, entryStore, ledger, registry, queue, cfg.Drive.TrashRetention, logger)
	completer := upload.NewCompleter(txm, entryStore, ledger, queue, s3Client, cfg.AWS.HeadObjectTimeout, logger)

	stats := metrics.New()
	maintenance := worker.NewMaintenance(lifecycle, registry, queue, urlCache, stats, cfg.Worker.Interval, cfg.Worker.BatchSize, logger)

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpiryDuration)

	server := http.NewServer(&http.ServerDependencies{
		Config:         cfg,
		Logger:         logger,
		AuthMiddleware: auth.NewMiddleware(jwtService),
		Entries:        entryStore,
		Trash:          lifecycle,
		Shares:         registry,
		Uploads:        completer,
		Usage:          ledger,
		Downloads:      s3Client,
		URLCache:       urlCache,
		Audit:          recorder,
		Metrics:        stats,
	})

	return &Service{
		config:  cfg,
		log:     logger,
		server:  server,
		worker:  maintenance,
		audit:   recorder,
		closers: closers,
	}, nil
}

// openStore also picks the audit sink: audit rows go to the same database as entries.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger, closers *[]io.Closer) (repository.TxManager, audit.Sink, error) {
	if cfg.Database.Backend == config.BackendMemory {
		logger.Warn().Msg("using in-memory store, data is lost on restart")
		return memory.New(), audit.NewLogSink(logger), nil
	}

	db, err := postgres.New(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	*closers = append(*closers, closerFunc(db.Close))

	logger.Info().Str("host", cfg.Database.Host).Msg("database connection established")
	return db, audit.NewPostgresSink(db.Pool), nil
}

func openCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger, closers *[]io.Closer) (downloadCache, error) {
	if cfg.Redis.URL == "" {
		return cache.NewURLCache(), nil
	}

	redisCache, err := cache.NewRedisCache(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	*closers = append(*closers, redisCache)

	logger.Info().Msg("redis URL cache enabled")
	return redisCache, nil
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}
