package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"closet/cmd/identity"
	authapi "closet/cmd/internal/auth/api"
	"closet/cmd/internal/closet"
	"closet/cmd/internal/sqlitedb"
)

// NewDBPool builds a pgxpool from cfg and validates connectivity.
func NewDBPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: parse url: %w", err)
	}
	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns >= 0 && cfg.DBMinConns <= pcfg.MaxConns {
		pcfg.MinConns = cfg.DBMinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("db: open pool: %w", err)
	}
	if err := PingDB(ctx, pool, 3*time.Second); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	return pool, nil
}

// PingDB checks that a connection can be acquired within timeout.
func PingDB(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}

// backend bundles the persistence layer picked at startup.
type backend struct {
	driver  string
	users   identity.Store
	items   closet.Store
	auditor authapi.Auditor

	pool *pgxpool.Pool
	sql  *sql.DB
}

// openBackend uses Postgres when DatabaseURL is set and SQLite otherwise.
// Tables are created on startup for both drivers.
func openBackend(ctx context.Context, cfg Config, log Logger) (*backend, error) {
	if cfg.DatabaseURL == "" {
		return openSQLite(ctx, cfg, log)
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	b, err := postgresBackend(ctx, pool, cfg.DBSchema, log)
	if err != nil {
		pool.Close()
		return nil, err
	}
	log.Info("db.enabled", "driver", b.driver, "schema", cfg.DBSchema)
	return b, nil
}

func postgresBackend(ctx context.Context, pool *pgxpool.Pool, schema string, log Logger) (*backend, error) {
	users, err := identity.NewPostgresStore(pool, identity.WithSchema(schema))
	if err != nil {
		return nil, err
	}
	items, err := closet.NewPostgresStore(pool, schema)
	if err != nil {
		return nil, err
	}
	auditor := authapi.NewPostgresAuditor(pool, schema, log)

	// users first: items reference it.
	if err := users.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("db: migrate users: %w", err)
	}
	if err := items.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("db: migrate items: %w", err)
	}
	if err := auditor.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("db: migrate audit log: %w", err)
	}

	return &backend{
		driver:  "postgres",
		users:   users,
		items:   items,
		auditor: auditor,
		pool:    pool,
	}, nil
}

func openSQLite(ctx context.Context, cfg Config, log Logger) (*backend, error) {
	db, err := sqlitedb.Open(ctx, cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	users, err := identity.NewSQLiteStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	items, err := closet.NewSQLiteStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info("db.enabled", "driver", "sqlite", "path", cfg.SQLitePath, "memory", sqlitedb.IsMemory(cfg.SQLitePath))
	return &backend{
		driver:  "sqlite",
		users:   users,
		items:   items,
		auditor: authapi.LogAuditor{Log: log},
		sql:     db,
	}, nil
}

// Ping reports whether the backing database answers.
func (b *backend) Ping(ctx context.Context) error {
	switch {
	case b.pool != nil:
		return PingDB(ctx, b.pool, 2*time.Second)
	case b.sql != nil:
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return b.sql.PingContext(ctx)
	default:
		return errors.New("db: no backend")
	}
}

// Close releases the pool or SQLite handle.
func (b *backend) Close() error {
	if b.pool != nil {
		b.pool.Close()
	}
	if b.sql != nil {
		return b.sql.Close()
	}
	return nil
}
