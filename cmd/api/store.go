package main

import (
	"context"
	"log/slog"

	"github.com/geocoder89/hypnohub/internal/config"
	"github.com/geocoder89/hypnohub/internal/db"
	"github.com/geocoder89/hypnohub/internal/observability"
	"github.com/geocoder89/hypnohub/internal/repo/memory"
	"github.com/geocoder89/hypnohub/internal/repo/mongodb"
	"github.com/geocoder89/hypnohub/internal/repo/postgres"
	"github.com/geocoder89/hypnohub/internal/service"
	"github.com/samber/oops"
)

// stores bundles the repositories for the configured driver.
type stores struct {
	users    service.UserStore
	sessions service.SessionStore
	ping     func(ctx context.Context) error
	close    func(ctx context.Context) error
}

func openStores(ctx context.Context, cfg config.Config, prom *observability.Prom, log *slog.Logger) (stores, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		if cfg.AutoMigrate {
			if err := migrateUp(cfg.DBURL, log); err != nil {
				return stores{}, err
			}
		}

		pool, err := db.NewPool(ctx, cfg.DBURL)
		if err != nil {
			return stores{}, err
		}

		return stores{
			users:    postgres.NewUsersRepo(pool, prom),
			sessions: postgres.NewSessionsRepo(pool, prom),
			ping:     pool.Ping,
			close: func(context.Context) error {
				pool.Close()
				return nil
			},
		}, nil

	case config.DriverMongo:
		store, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return stores{}, err
		}

		if err := mongodb.EnsureIndexes(ctx, store.Database()); err != nil {
			_ = store.Close(context.Background())
			return stores{}, err
		}

		return stores{
			users:    mongodb.NewUsersRepo(store.Database(), prom),
			sessions: mongodb.NewSessionsRepo(store.Database(), prom),
			ping:     store.Ping,
			close:    store.Close,
		}, nil

	case config.DriverMemory:
		log.Warn("using in-memory store, data is lost on restart")

		users := memory.NewUsersRepo()
		return stores{
			users:    users,
			sessions: memory.NewSessionsRepo(),
			ping:     users.Ping,
			close:    func(context.Context) error { return nil },
		}, nil
	}

	return stores{}, oops.Code("CONFIG_INVALID").With("driver", cfg.StoreDriver).Errorf("unknown store driver")
}

func migrateUp(dbURL string, log *slog.Logger) error {
	m, err := db.NewMigrator(dbURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			observability.LogError(log, "migrator close failed", err)
		}
	}()

	if err := m.Up(); err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	log.Info("migrations applied", "version", version, "dirty", dirty)

	return nil
}
