// Package SERVER runs the fixture webserver until a signal or the caller's
// context tells it to stop.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shoowa/cotejo/config"
)

const GRACE_PERIOD = time.Second * 15

// NewServer creates an http.Server from the httpserver section. Every request
// context descends from one base context that is cancelled on shutdown, so
// handlers blocked on the database give up when the server halts.
func NewServer(cfg *config.HttpServer, router http.Handler) *http.Server {
	base, stop := context.WithCancel(context.Background())
	s := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  time.Second * time.Duration(cfg.TimeoutRead),
		WriteTimeout: time.Second * time.Duration(cfg.TimeoutWrite),
		IdleTimeout:  time.Second * time.Duration(cfg.TimeoutIdle),
		BaseContext:  func(lstnr net.Listener) context.Context { return base },
	}
	s.RegisterOnShutdown(stop)
	return s
}

// GracefulIgnition serves on l until the server is shut down. It reports
// anything other than a clean close.
func GracefulIgnition(s *http.Server, l net.Listener) error {
	err := s.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// GracefulShutdown stops accepting new connections and waits for working
// connections to become idle before terminating them.
func GracefulShutdown(s *http.Server) error {
	quitCtx, quit := context.WithTimeout(context.Background(), GRACE_PERIOD)
	defer quit()

	return s.Shutdown(quitCtx)
}

// CatchSigTerm returns a context that ends on SIGINT or SIGTERM, or when
// parent does.
func CatchSigTerm(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// Start listens, serves, and blocks until a signal arrives, ctx ends, or the
// listener fails. It then drains the server within GRACE_PERIOD and forces it
// closed if that fails.
func Start(ctx context.Context, l *slog.Logger, s *http.Server) error {
	lstnr, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}

	ignition := make(chan error, 1)
	go func() { ignition <- GracefulIgnition(s, lstnr) }()
	l.Info("HTTP Server activated", "addr", lstnr.Addr().String())

	sigCtx, stop := CatchSigTerm(ctx)
	defer stop()

	select {
	case serveErr := <-ignition:
		l.Error("HTTP Server failed", "err", serveErr)
		return serveErr
	case <-sigCtx.Done():
	}

	l.Info("Begin decommissioning HTTP server.")
	shutErr := GracefulShutdown(s)
	if shutErr != nil {
		l.Error("HTTP Server shutdown error", "err", shutErr.Error())
		killErr := s.Close()
		if killErr != nil {
			l.Error("HTTP Server kill error", "err", killErr.Error())
		}
	}
	l.Info("HTTP Server halted")
	return shutErr
}
