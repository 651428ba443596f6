package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"obligations/internal/amqp"
	"obligations/internal/attachments"
	"obligations/internal/cache"
	"obligations/internal/events"
	"obligations/internal/lock"
	"obligations/internal/services"
	"obligations/internal/storage"
	"obligations/internal/storage/memory"
)

const (
	defaultCacheSize = 256
	defaultCacheTTL  = 10 * time.Minute
	lockWait         = 2 * time.Second
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var closers []func() error
	cleanup := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	store, err := f.createStore(config)
	if err != nil {
		return nil, err
	}
	closers = append(closers, store.Close)

	if config.SeedDirectory != "" {
		n, err := Seed(ctx, store, config.SeedDirectory)
		if err != nil {
			_ = cleanup()
			return nil, fmt.Errorf("failed to seed directory: %w", err)
		}
		f.logger.Info("Seeded directory", "dir", config.SeedDirectory, "entries", n)
	}

	size, ttl := config.DirectoryCacheSize, config.DirectoryCacheTTL
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	directory := cache.NewDirectory(store, size, ttl)

	counter, closeCounter, err := f.createCounter(ctx, config, store)
	if err != nil {
		_ = cleanup()
		return nil, err
	}
	if closeCounter != nil {
		closers = append(closers, closeCounter)
	}

	locker, closeLocker := f.createLocker(config)
	if closeLocker != nil {
		closers = append(closers, closeLocker)
	}

	// Optional broker; startup continues without it.
	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, applying documentation events in process", "error", err)
			amqpClient = nil
		} else {
			closers = append(closers, amqpClient.Close)
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	var publisher events.Publisher
	if amqpClient != nil && !config.EventsInProcess {
		publisher = amqpClient
	}

	engine := services.NewEngine(store, directory, counter, services.Options{
		Publisher: publisher,
		Locker:    locker,
		Clock:     config.Clock,
	})

	f.logger.Info("Initialized obligations backend",
		"type", config.Type.String(),
		"attachments", string(config.Attachments),
		"redis_lock", config.RedisAddress != "",
		"amqp_publisher", publisher != nil)

	return &Result{
		Engine:  engine,
		Store:   store,
		Janitor: cache.NewJanitor(directory.Cleaners()...),
		AMQP:    amqpClient,
		Cleanup: cleanup,
	}, nil
}

func (f *DefaultFactory) createStore(config Config) (Persistence, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite store", "db_path", config.SQLiteDBPath)
		return repo, nil
	case MemoryBackend:
		f.logger.Info("Initialized memory store")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createCounter(ctx context.Context, config Config, store Persistence) (attachments.Counter, func() error, error) {
	if config.Attachments != GCSAttachments {
		return store, nil, nil
	}
	gcs, err := attachments.NewGCSCounter(ctx, config.GCSBucket, config.GCSPrefix, config.GCSCredentialsJSON)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize GCS attachments: %w", err)
	}
	f.logger.Info("Counting attachments in GCS", "bucket", config.GCSBucket, "prefix", config.GCSPrefix)
	return gcs, gcs.Close, nil
}

// createLocker prefers Redis. Without it generation is still protected by the
// storage unique constraint, so a process-local lock is enough.
func (f *DefaultFactory) createLocker(config Config) (lock.Locker, func() error) {
	if config.RedisAddress == "" {
		return lock.NewLocal(), nil
	}
	ttl := config.GenerationLockTTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	r, err := lock.NewRedis(config.RedisAddress, ttl, lockWait)
	if err != nil {
		f.logger.Warn("Failed to connect to Redis, using process-local generation lock", "error", err)
		return lock.NewLocal(), nil
	}
	f.logger.Info("Using Redis generation lock", "address", config.RedisAddress, "ttl", ttl)
	return r, r.Close
}
