// Package store owns the process-wide persistence handle and hands out the
// repositories built on it.
package store

import (
	"context"
	"fmt"

	"github.com/geocoder89/travelhub/internal/config"
	"github.com/geocoder89/travelhub/internal/db"
	"github.com/geocoder89/travelhub/internal/domain/place"
	"github.com/geocoder89/travelhub/internal/domain/user"
	"github.com/geocoder89/travelhub/internal/observability"
	"github.com/geocoder89/travelhub/internal/repo/memory"
	"github.com/geocoder89/travelhub/internal/repo/mongodb"
	"github.com/geocoder89/travelhub/internal/repo/postgres"
)

type Store struct {
	Driver string
	Users  user.Repository
	Places place.Repository

	ping  func(ctx context.Context) error
	close func(ctx context.Context) error
}

// Ping reports whether the backing store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// Open connects to the configured backend once; every repository shares it.
func Open(ctx context.Context, cfg config.Config, prom *observability.Prom) (*Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		return openMongo(ctx, cfg, prom)
	case config.StorePostgres:
		return openPostgres(ctx, cfg, prom)
	case config.StoreMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownStore, cfg.StoreDriver)
	}
}

// NewMemory builds an in-process store.
func NewMemory() *Store {
	places := memory.NewPlacesRepo()

	return &Store{
		Driver: config.StoreMemory,
		Users:  memory.NewUsersRepo(places),
		Places: places,
	}
}

func openMongo(ctx context.Context, cfg config.Config, prom *observability.Prom) (*Store, error) {
	client, err := mongodb.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return nil, err
	}

	database := client.Database(cfg.MongoDB)

	if err := mongodb.EnsureIndexes(ctx, database); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	places := mongodb.NewPlacesRepo(database, prom)

	return &Store{
		Driver: config.StoreMongo,
		Users:  mongodb.NewUsersRepo(database, places, prom),
		Places: places,
		ping: func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		},
		close: client.Disconnect,
	}, nil
}

func openPostgres(ctx context.Context, cfg config.Config, prom *observability.Prom) (*Store, error) {
	pool, err := db.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}

	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	places := postgres.NewPlacesRepo(pool, prom)

	return &Store{
		Driver: config.StorePostgres,
		Users:  postgres.NewUsersRepo(pool, places, prom),
		Places: places,
		ping:   pool.Ping,
		close: func(context.Context) error {
			pool.Close()
			return nil
		},
	}, nil
}
