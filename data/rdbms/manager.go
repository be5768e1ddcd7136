package rdbms

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"

	"github.com/Shoowa/cotejo/fault"
	"github.com/Shoowa/cotejo/logging"
	"github.com/Shoowa/cotejo/metrics"
)

// ErrNotOpen is wrapped by a *fault.ConnectionError when a query is attempted
// outside the Open/Close window.
var ErrNotOpen = errors.New("connection is not open")

// DBTX is the subset of database/sql that queries run through. Both *sql.Conn
// and *sql.DB satisfy it.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// handle pins one physical connection so every query in a session shares it.
type handle struct {
	db   *sql.DB
	conn *sql.Conn
}

// Manager owns at most one live connection. It is safe for concurrent use but
// the connection itself serves one caller at a time.
type Manager struct {
	mu     sync.Mutex
	open   OpenFunc
	logger *slog.Logger
	handle *handle
	last   ConnectionConfig
}

func NewManager(logger *slog.Logger, open OpenFunc) *Manager {
	if open == nil {
		open = sql.Open
	}
	return &Manager{open: open, logger: logging.Component(logger, "connection")}
}

// Open establishes the session connection. Calling it while a connection is
// held is an error; Close first.
func (m *Manager) Open(ctx context.Context, cfg ConnectionConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle != nil {
		return &fault.ConnectionError{Op: "rdbms.Open", Target: cfg.Target, Err: errors.New("a connection is already open")}
	}
	return m.connect(ctx, cfg)
}

func (m *Manager) connect(ctx context.Context, cfg ConnectionConfig) error {
	const op = "rdbms.Open"

	db, openErr := m.open(cfg.Driver, cfg.DSN)
	if openErr != nil {
		m.logger.Error("Driver rejected configuration", "target", cfg.Target, "err", openErr.Error())
		return &fault.ConnectionError{Op: op, Target: cfg.Target, Err: openErr}
	}

	conn, connErr := db.Conn(ctx)
	if connErr != nil {
		_ = db.Close()
		m.logger.Error("Connection failed", "target", cfg.Target, "err", connErr.Error())
		return &fault.ConnectionError{Op: op, Target: cfg.Target, Err: connErr}
	}

	m.handle = &handle{db: db, conn: conn}
	m.last = cfg
	metrics.OpenConnections.Inc()
	m.logger.Info("Connection opened", "target", cfg.Target, "driver", cfg.Driver)
	return nil
}

// Close releases the connection. A second Close, or one without Open, does
// nothing and returns nil.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle == nil {
		return nil
	}
	h := m.handle
	m.handle = nil
	metrics.OpenConnections.Dec()

	err := errors.Join(h.conn.Close(), h.db.Close())
	if err != nil {
		m.logger.Warn("Connection close reported an error", "target", m.last.Target, "err", err.Error())
		return &fault.ConnectionError{Op: "rdbms.Close", Target: m.last.Target, Err: err}
	}
	m.logger.Info("Connection closed", "target", m.last.Target)
	return nil
}

// Querier hands out the live connection.
func (m *Manager) Querier() (DBTX, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle == nil {
		return nil, &fault.ConnectionError{Op: "rdbms.Querier", Target: m.last.Target, Err: ErrNotOpen}
	}
	return m.handle.conn, nil
}

// Reopen connects again with the configuration of the last successful Open.
// It does nothing while a connection is held.
func (m *Manager) Reopen(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle != nil {
		return nil
	}
	if m.last.DSN == "" {
		return &fault.ConnectionError{Op: "rdbms.Reopen", Err: errors.New("never opened")}
	}
	return m.connect(ctx, m.last)
}

// Ping checks the held connection without running a query.
func (m *Manager) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle == nil {
		return &fault.ConnectionError{Op: "rdbms.Ping", Target: m.last.Target, Err: ErrNotOpen}
	}
	if err := m.handle.conn.PingContext(ctx); err != nil {
		return &fault.ConnectionError{Op: "rdbms.Ping", Target: m.last.Target, Err: err}
	}
	return nil
}

func (m *Manager) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle != nil
}

// Target names the database of the last successful Open.
func (m *Manager) Target() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last.Target
}
