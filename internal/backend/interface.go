package backend

import (
	"context"
	"time"

	"obligations/internal/amqp"
	"obligations/internal/attachments"
	"obligations/internal/cache"
	"obligations/internal/core"
	"obligations/internal/services"
	"obligations/internal/storage"
)

// Persistence is what a data backend must provide: the transactional store,
// the reference directory and local attachment records.
type Persistence interface {
	storage.Store
	storage.Directory
	storage.DirectoryWriter
	attachments.Store
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result holds the wired engine together with the pieces the commands
// drive directly.
type Result struct {
	Engine *services.Engine
	Store  Persistence
	// Janitor purges expired directory cache entries; run it in the background.
	Janitor *cache.Janitor
	// AMQP is nil when no broker is configured or reachable.
	AMQP    *amqp.Client
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	// SeedDirectory, when set, is loaded into the directory at startup.
	SeedDirectory string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	// EventsInProcess applies documentation events synchronously even when
	// a broker is configured. The broker client is still created for consumers.
	EventsInProcess bool

	RedisAddress      string
	GenerationLockTTL time.Duration

	Attachments        AttachmentsType
	GCSBucket          string
	GCSPrefix          string
	GCSCredentialsJSON string

	DirectoryCacheSize int
	DirectoryCacheTTL  time.Duration

	// Clock overrides the system clock, mainly for tests.
	Clock core.Clock
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// AttachmentsType selects where ledger documents are counted.
type AttachmentsType string

const (
	StoreAttachments AttachmentsType = "store"
	GCSAttachments   AttachmentsType = "gcs"
)

func (a AttachmentsType) IsValid() bool {
	return a == StoreAttachments || a == GCSAttachments
}
