package db

import (
	"github.com/avolkhin/linkcut/config"
	"github.com/avolkhin/linkcut/internal/db/filestorage"
	"github.com/avolkhin/linkcut/internal/db/memorystorage"
	"github.com/avolkhin/linkcut/internal/db/postgres"
	"github.com/avolkhin/linkcut/internal/db/sqlite"
	"go.uber.org/zap"
)

// GetStorage initializes and returns a storage backend based on the
// configured storage type.
func GetStorage(cfg *config.Config, logger *zap.SugaredLogger) LinkStorage {
	if cfg.StorageType == "file" {
		logger.Debug("using file storage")
		s, err := filestorage.NewManager(cfg)
		if err != nil {
			logger.Fatalw("failed to initialize file storage", "error", err)
		}
		return s
	}

	if cfg.StorageType == "postgres" {
		logger.Debug("using postgres storage")
		s, err := postgres.NewManager(cfg)
		if err != nil {
			logger.Fatalw("failed to initialize postgres storage", "error", err)
		}
		return s
	}

	if cfg.StorageType == "sqlite" {
		logger.Debug("using sqlite storage")
		s, err := sqlite.NewManager(cfg)
		if err != nil {
			logger.Fatalw("failed to initialize sqlite storage", "error", err)
		}
		return s
	}

	if cfg.StorageType == "memory" {
		logger.Debug("using memory storage")
		s, err := memorystorage.NewManager(cfg)
		if err != nil {
			logger.Fatalw("failed to initialize memory storage", "error", err)
		}
		return s
	}

	logger.Fatalw("unknown storage type", "type", cfg.StorageType)
	return nil
}
