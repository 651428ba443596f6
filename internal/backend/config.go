package backend

import (
	"fmt"

	"obligations/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type: backendType,

		SQLiteDBPath:  appConfig.SQLiteDBPath,
		SeedDirectory: appConfig.SeedDirectory,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		RedisAddress:      appConfig.RedisAddress,
		GenerationLockTTL: appConfig.GenerationLockTTL,

		Attachments:        AttachmentsType(appConfig.AttachmentsBackend),
		GCSBucket:          appConfig.GCSBucket,
		GCSPrefix:          appConfig.GCSPrefix,
		GCSCredentialsJSON: appConfig.GCSCredentialsJSON,

		DirectoryCacheSize: appConfig.DirectoryCacheSize,
		DirectoryCacheTTL:  appConfig.DirectoryCacheTTL,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.Type == SQLiteBackend && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}

	attachments := c.Attachments
	if attachments == "" {
		attachments = StoreAttachments
	}
	if !attachments.IsValid() {
		return fmt.Errorf("invalid attachments backend: %s", c.Attachments)
	}
	if attachments == GCSAttachments && c.GCSBucket == "" {
		return fmt.Errorf("GCS bucket is required for gcs attachments")
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, MemoryBackend}
}
