package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Registers the "odbc" driver with database/sql.
	_ "github.com/alexbrainman/odbc"
)

const (
	// MaxConnectionAge is how long a connection may live before it is
	// proactively replaced, independent of request outcomes.
	MaxConnectionAge = 300 * time.Second

	// MaxConsecutiveErrors is the error streak that forces a reconnect.
	MaxConsecutiveErrors = 3
)

// OpenFunc opens a database handle for the given ODBC connection string.
// Tests substitute a fake; production uses the odbc driver.
type OpenFunc func(connStr string) (*sql.DB, error)

func odbcOpen(connStr string) (*sql.DB, error) {
	return sql.Open("odbc", connStr)
}

// ConnConfig carries the externally owned connection settings. It is supplied
// once at construction and never mutated.
type ConnConfig struct {
	DSN            string
	ReadOnly       bool
	ConnectTimeout time.Duration
	Open           OpenFunc // nil means the real ODBC driver
}

// Conn owns the single lazily created driver connection to the legacy
// database and decides when to recycle it. The underlying ODBC connection is
// not safe for concurrent use; Conn performs no locking of its own and relies
// on the owning Service to serialize access.
type Conn struct {
	cfg ConnConfig

	db                *sql.DB
	createdAt         time.Time
	consecutiveErrors int
}

// NewConn creates a connection manager. No connection is opened until the
// first Acquire.
func NewConn(cfg ConnConfig) *Conn {
	if cfg.Open == nil {
		cfg.Open = odbcOpen
	}
	return &Conn{cfg: cfg}
}

// Acquire returns a live database handle, opening or recycling as needed.
// A live connection is recycled when forceNew is set, when it is older than
// MaxConnectionAge, or when MaxConsecutiveErrors have accumulated.
func (c *Conn) Acquire(ctx context.Context, forceNew bool) (*sql.DB, error) {
	if c.db != nil {
		stale := time.Since(c.createdAt) > MaxConnectionAge ||
			c.consecutiveErrors >= MaxConsecutiveErrors
		if forceNew || stale {
			_ = c.db.Close()
			c.db = nil
		}
	}

	if c.db == nil {
		db, err := c.open(ctx)
		if err != nil {
			return nil, err
		}
		c.db = db
		c.createdAt = time.Now()
		c.consecutiveErrors = 0
	}

	return c.db, nil
}

func (c *Conn) open(ctx context.Context) (*sql.DB, error) {
	readonly := "No"
	if c.cfg.ReadOnly {
		readonly = "Yes"
	}
	connStr := fmt.Sprintf("DSN=%s;ReadOnly=%s", c.cfg.DSN, readonly)

	db, err := c.cfg.Open(connStr)
	if err != nil {
		return nil, fmt.Errorf("open odbc connection: %w", err)
	}

	// The legacy driver connection must not be shared, so the pool is pinned
	// to exactly one connection that never idles out on its own.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(0)

	if c.cfg.ConnectTimeout > 0 {
		pingCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
		ctx = pingCtx
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to DSN %s: %w", c.cfg.DSN, err)
	}

	return db, nil
}

// RecordFailure drops the connection reference so the next Acquire reopens,
// and counts the failure toward the recycling threshold.
func (c *Conn) RecordFailure() {
	if c.db != nil {
		_ = c.db.Close()
		c.db = nil
	}
	c.consecutiveErrors++
}

// RecordSuccess resets the consecutive error streak.
func (c *Conn) RecordSuccess() {
	c.consecutiveErrors = 0
}

// ConsecutiveErrors reports the current error streak.
func (c *Conn) ConsecutiveErrors() int {
	return c.consecutiveErrors
}

// Close releases the connection if one is open.
func (c *Conn) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}
