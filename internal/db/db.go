// Package db opens the issue database for the configured driver.
package db

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Supported driver names.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Options control connection retries.
type Options struct {
	Attempts int
	Wait     time.Duration
}

// DefaultOptions waits for a database that may still be starting (e.g. in docker).
var DefaultOptions = Options{Attempts: 10, Wait: 2 * time.Second}

// Open connects to dsn with driver and pings until it answers or attempts run out.
func Open(ctx context.Context, driver, dsn string, opts Options) (*sqlx.DB, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, eris.Errorf("db: unsupported driver %q (must be postgres or sqlite)", driver)
	}
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "db: open")
	}

	for i := 0; i < opts.Attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		zap.L().Info("waiting for db", zap.Int("attempt", i+1), zap.Error(err))
		if i+1 == opts.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			db.Close() //nolint:errcheck
			return nil, eris.Wrap(ctx.Err(), "db: wait")
		case <-time.After(opts.Wait):
		}
	}
	if err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "db: could not connect")
	}

	if driver == DriverSQLite {
		// One writer at a time; keeps PRAGMAs applied to the only connection.
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
			"PRAGMA foreign_keys=ON",
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close() //nolint:errcheck
				return nil, eris.Wrapf(err, "db: exec %s", pragma)
			}
		}
	}

	return db, nil
}
