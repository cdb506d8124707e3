package server

import (
	"context"
	"fmt"
	"time"

	"github.com/florentina1509/dizidunya/pkg/config"
	"github.com/florentina1509/dizidunya/pkg/store"
	"github.com/florentina1509/dizidunya/pkg/store/memstore"
	"github.com/florentina1509/dizidunya/pkg/store/redisstore"
)

// OpenStore builds the message store selected by cfg. The returned close
// function releases its resources.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (store.MessageStore, func() error, error) {
	switch cfg.Driver {
	case "", "memory":
		return memstore.New(cfg.Memory.Communities, cfg.Memory.Users), func() error { return nil }, nil
	case "redis":
		s := redisstore.New(redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.Ping(pingCtx); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
