package config

import (
	"fmt"

	"timer-tracker.com/timer-tracker/internal/kv"
)

// NewStore opens the key-value backend selected by STORE_DRIVER. The
// returned close function releases the underlying connection.
func NewStore(cfg Config) (kv.Store, func(), error) {
	switch cfg.StoreDriver {
	case StoreMemory:
		return kv.NewMemoryStore(), func() {}, nil

	case StoreRedis:
		client, err := NewRedisClient(cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return kv.NewRedisStore(client), client.Close, nil

	case StoreSQLite:
		db, err := NewDatabase(cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return kv.NewGormStore(db), closeFn, nil
	}

	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
