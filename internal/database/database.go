// Package database turns the database.* section of a config.Snapshot into a
// ready sqlx pool.  The driver is go-sql-driver/mysql, which also serves
// MariaDB.
//
// Public entry points:
//
//	DSN(cfg)                 – MySQL DSN with charset, timeout, and TLS flags.
//	Open(ctx, cfg, opts)     – pool sized by opts, pinged before return.
//
// A non-persistent configuration keeps no idle connections; each one is
// closed when released, matching a connect-per-request deployment.
package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/sisconf/internal/config"
)

// ErrUnsupportedType is returned for a database.type with no Go driver.
var ErrUnsupportedType = errors.New("database: unsupported type")

// Options tunes pool size and the startup ping.
type Options struct {
	Driver          string // overrides the driver derived from database.type
	MaxOpenConns    int
	MaxIdleConns    int // ignored when the config is not persistent
	ConnMaxLifetime time.Duration
	Retries         int
	RetryBackoff    time.Duration
}

// DefaultOptions: 15 open, 5 idle, 30-minute lifetime, two ping retries.
func DefaultOptions() Options {
	return Options{
		MaxOpenConns:    15,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		Retries:         2,
		RetryBackoff:    500 * time.Millisecond,
	}
}

// DriverName maps database.type onto a database/sql driver name.
func DriverName(typ string) (string, error) {
	switch typ {
	case "mysqli", "mysql", "mariadb":
		return "mysql", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedType, typ)
}

// DSN builds a go-sql-driver/mysql DSN from cfg.
func DSN(cfg config.Database) string {
	c := mysql.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	c.DBName = cfg.Name
	c.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	c.ParseTime = true
	c.Params = map[string]string{"charset": cfg.Encoding}
	if cfg.SSL {
		c.TLSConfig = "true"
	}
	return c.FormatDSN()
}

// Open returns a pinged *sqlx.DB for cfg.
func Open(ctx context.Context, cfg config.Database, opts Options) (*sqlx.DB, error) {
	driver := opts.Driver
	if driver == "" {
		d, err := DriverName(cfg.Type)
		if err != nil {
			return nil, err
		}
		driver = d
	}

	db, err := sqlx.Open(driver, DSN(cfg))
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	if cfg.Persistent {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(0)
	}
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	if err := ping(ctx, db, opts.Retries, opts.RetryBackoff); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database: ping %s: %w", cfg.Host, err)
	}
	return db, nil
}

// ping tries 1+retries times, waiting backoff between attempts.
func ping(ctx context.Context, db *sqlx.DB, retries int, backoff time.Duration) error {
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		if attempt == retries {
			break
		}
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}
