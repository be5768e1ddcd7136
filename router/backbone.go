package router

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/Shoowa/cotejo/fault"
	"github.com/Shoowa/cotejo/logging"
)

const (
	StatusClientClosed = 499
)

type errHandler func(http.ResponseWriter, *http.Request) error

type Option func(*Backbone)

// Fixtures is the query surface the fixture routes read from. A
// *mapdb.Gateway satisfies it.
type Fixtures interface {
	FetchUserEmails(ctx context.Context) ([]string, error)
	FetchFieldName(ctx context.Context) (string, error)
}

// Pinger reports whether the session connection is alive. A *rdbms.Manager
// satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backbone holds the dependencies handlers reach for. The session connection
// serves one caller at a time, so fixture reads take mu.
type Backbone struct {
	Logger   *slog.Logger
	Health   *Health
	Fixtures Fixtures
	Pinger   Pinger
	mu       sync.Mutex
}

// NewBackbone applies the options and starts with an unhealthy database until
// the first ping says otherwise.
func NewBackbone(options ...Option) *Backbone {
	b := &Backbone{Logger: logging.Discard()}
	for _, opt := range options {
		opt(b)
	}
	b.Health = new(Health)
	return b
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Backbone) {
		b.Logger = logging.Component(l, "router")
	}
}

func WithFixtures(f Fixtures) Option {
	return func(b *Backbone) {
		b.Fixtures = f
	}
}

func WithPinger(p Pinger) Option {
	return func(b *Backbone) {
		b.Pinger = p
	}
}

// eHand maps error kinds to status codes in one place.
func (b *Backbone) eHand(f errHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := f(w, req)
		if err == nil {
			return
		}

		var notFound *fault.NotFoundError
		var connErr *fault.ConnectionError
		switch {
		case errors.Is(err, context.Canceled):
			b.Logger.Error("HTTP", "status", StatusClientClosed)
		case errors.Is(err, context.DeadlineExceeded):
			b.Logger.Error("HTTP", "status", http.StatusRequestTimeout)
			http.Error(w, "timeout", http.StatusRequestTimeout)
		case errors.As(err, &notFound):
			http.Error(w, notFound.Error(), http.StatusNotFound)
		case errors.As(err, &connErr):
			b.Logger.Error("HTTP", "status", http.StatusServiceUnavailable, "err", err.Error())
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		default:
			b.Logger.Error("HTTP", "err", err.Error())
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
}
