package rdbms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Shoowa/cotejo/fault"
	"github.com/Shoowa/cotejo/logging"
	"github.com/Shoowa/cotejo/metrics"
)

// OpenFunc matches sql.Open so tests can hand out a mock database.
type OpenFunc func(driver, dsn string) (*sql.DB, error)

// Prober runs a throwaway round trip against the database before a session
// commits to it.
type Prober struct {
	open   OpenFunc
	logger *slog.Logger
}

func NewProber(logger *slog.Logger, open OpenFunc) *Prober {
	if open == nil {
		open = sql.Open
	}
	return &Prober{open: open, logger: logging.Component(logger, "probe")}
}

// Verify opens a private connection, pings it, runs SELECT 1 and closes it
// whatever the outcome. A timeout of zero uses cfg.ProbeTimeout.
func (p *Prober) Verify(ctx context.Context, cfg ConnectionConfig, timeout time.Duration) (err error) {
	start := time.Now()
	defer func() {
		metrics.ProbeDuration.WithLabelValues(metrics.Outcome(err)).Observe(time.Since(start).Seconds())
	}()

	if timeout <= 0 {
		timeout = cfg.ProbeTimeout
	}
	if timeout <= 0 {
		timeout = TIMEOUT_PROBE
	}
	timer, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, openErr := p.open(cfg.Driver, cfg.DSN)
	if openErr != nil {
		return p.fail(cfg, "driver rejected configuration", openErr)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			p.logger.Warn("Probe close failed", "target", cfg.Target, "err", closeErr.Error())
		}
	}()
	db.SetMaxOpenConns(1)

	if pingErr := db.PingContext(timer); pingErr != nil {
		return p.fail(cfg, reason(timer, "unreachable"), pingErr)
	}

	var one int64
	if queryErr := db.QueryRowContext(timer, "SELECT 1").Scan(&one); queryErr != nil {
		return p.fail(cfg, reason(timer, "test query failed"), queryErr)
	}
	if one != 1 {
		return p.fail(cfg, fmt.Sprintf("test query returned %d", one), nil)
	}

	p.logger.Info("Database reachable", "target", cfg.Target, "elapsed", time.Since(start).String())
	return nil
}

func (p *Prober) fail(cfg ConnectionConfig, why string, err error) error {
	attrs := []any{"target", cfg.Target, "reason", why}
	if err != nil {
		attrs = append(attrs, "err", err.Error())
	}
	p.logger.Error("Database probe failed", attrs...)
	return &fault.ConnectivityError{Op: "rdbms.Verify", Target: cfg.Target, Reason: why, Err: err}
}

func reason(ctx context.Context, otherwise string) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "timed out"
	}
	return otherwise
}
