package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"marketplace-system/internal/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Connect opens the postgres pool and waits for the database to become
// reachable, retrying so services survive a slower-starting container.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	const (
		maxRetries = 10
		retryDelay = 2 * time.Second
		pingTTL    = 5 * time.Second
	)

	var db *sql.DB
	var err error

	for i := 1; i <= maxRetries; i++ {
		db, err = sql.Open("pgx", cfg.URL())
		if err != nil {
			select {
			case <-time.After(retryDelay):
				continue
			case <-ctx.Done():
				return nil, fmt.Errorf("db open canceled: %w", ctx.Err())
			}
		}

		pctx, cancel := context.WithTimeout(ctx, pingTTL)
		err = db.PingContext(pctx)
		cancel()
		if err == nil {
			return db, nil
		}

		_ = db.Close()

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("db ping canceled: %w", ctx.Err())
		}
	}

	return nil, fmt.Errorf("database unreachable after %d attempts: %w", maxRetries, err)
}

// Migrate applies pending schema migrations from migrationsDir.
func Migrate(cfg config.DatabaseConfig, migrationsDir string) error {
	m, err := migrate.New("file://"+migrationsDir, "pgx5://"+trimScheme(cfg.URL()))
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func trimScheme(url string) string {
	const p = "postgres://"
	if len(url) > len(p) && url[:len(p)] == p {
		return url[len(p):]
	}
	return url
}
