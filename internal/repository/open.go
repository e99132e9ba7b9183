package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/billguard/internal/common"
)

// Pinger is implemented by slots that talk to a server.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpenSlot builds the slot selected by cfg.Store.Driver. SQL slots are migrated before return.
func OpenSlot(ctx context.Context, cfg *common.Config, logger *slog.Logger) (Slot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	key := cfg.Store.Key
	if key == "" {
		key = common.DefaultStoreKey
	}

	switch cfg.Store.Driver {
	case common.DriverMemory:
		return NewMemorySlot(), nil

	case common.DriverSQLite:
		drv, err := OpenSQLite(ctx, cfg.Store.DSN, logger)
		if err != nil {
			return nil, err
		}
		s := NewSQLSlot(drv, key, logger, nil)
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil

	case common.DriverPostgres:
		drv, pool, err := OpenPostgres(ctx, ConfigFrom(cfg), logger)
		if err != nil {
			return nil, err
		}
		s := NewSQLSlot(drv, key, logger, pool.Close)
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil

	case common.DriverRedis:
		client, err := OpenRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return NewRedisSlot(client, key), nil
	}
	return nil, fmt.Errorf("%w: unknown store driver %q", common.ErrInvalidInput, cfg.Store.Driver)
}
