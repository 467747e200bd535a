package datalayer

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/glizzus/cobot/internal/config"
	"github.com/golang-migrate/migrate/v4"
	pgxMigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// NewPostgresPoolFromEnv connects to the database described by the POSTGRES_* variables.
func NewPostgresPoolFromEnv(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.NewPostgresConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return NewPostgresPool(ctx, cfg.DSN())
}

func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	return pool, nil
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

func MigratePostgres(pool *pgxpool.Pool) (err error) {
	db := stdlib.OpenDBFromPool(pool)
	defer func() {
		if cerr := db.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	driver, derr := pgxMigrate.WithInstance(db, &pgxMigrate.Config{})
	if derr != nil {
		return derr
	}

	src, serr := iofs.New(migrationsFS, "migrations")
	if serr != nil {
		return serr
	}

	m, merr := migrate.NewWithInstance(
		"iofs",
		src,
		"pgx5",
		driver,
	)
	if merr != nil {
		return merr
	}

	defer func() {
		srcErr, dbErr := m.Close()
		err = errors.Join(err, srcErr, dbErr)
	}()

	if upErr := m.Up(); upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return upErr
	}
	return nil
}
