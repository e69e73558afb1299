package store

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/bank-crm/internal/config"
)

// NewConnector returns the connector for the configured driver. The memory driver
// is seeded from STORE_SEED_FILE when one is set.
func NewConnector(cfg *config.Config, logger *zap.Logger) (Connector, error) {
	switch cfg.Store.Driver {
	case config.DriverMongo:
		return NewMongoConnector(cfg.Store, logger), nil
	case config.DriverPostgres:
		return NewPostgresConnector(cfg.Store, cfg.Postgres, logger), nil
	case config.DriverMemory:
		mem := NewMemoryConnector(namespaceFromConfig(cfg.Store))
		if cfg.Store.SeedFile != "" {
			n, err := mem.LoadSeedFile(cfg.Store.SeedFile)
			if err != nil {
				return nil, err
			}
			logger.Info("seeded memory store", zap.String("file", cfg.Store.SeedFile), zap.Int("documents", n))
		}
		return mem, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}
