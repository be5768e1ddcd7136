// Package SESSION wires credential resolution, DSN construction, the optional
// probe and the connection manager into the sequence a test session runs:
// resolve, build, probe, open, query, close.
package session

import (
	"context"
	"log/slog"

	"github.com/Shoowa/cotejo/config"
	"github.com/Shoowa/cotejo/credentials"
	"github.com/Shoowa/cotejo/data/mapdb"
	"github.com/Shoowa/cotejo/data/rdbms"
	"github.com/Shoowa/cotejo/environ"
	"github.com/Shoowa/cotejo/fault"
	"github.com/Shoowa/cotejo/logging"
	"github.com/Shoowa/cotejo/secrets"
)

// Session serves one caller at a time. Parallel workers each need their own.
type Session struct {
	resolver *credentials.Resolver
	build    rdbms.Options
	logger   *slog.Logger

	open    rdbms.OpenFunc
	probe   bool
	release string
	queries config.Queries

	prober  *rdbms.Prober
	manager *rdbms.Manager
	gateway *mapdb.Gateway
}

type Option func(*Session)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithOpener replaces sql.Open for the probe and the manager.
func WithOpener(open rdbms.OpenFunc) Option {
	return func(s *Session) {
		s.open = open
	}
}

// WithProbe runs the connectivity probe before the session connection opens.
func WithProbe(enabled bool) Option {
	return func(s *Session) {
		s.probe = enabled
	}
}

func WithRelease(policy string) Option {
	return func(s *Session) {
		s.release = policy
	}
}

func WithQueries(q config.Queries) Option {
	return func(s *Session) {
		s.queries = q
	}
}

func New(resolver *credentials.Resolver, build rdbms.Options, options ...Option) *Session {
	s := &Session{
		resolver: resolver,
		build:    build,
		logger:   logging.Discard(),
		release:  mapdb.ReleaseSession,
	}
	for _, option := range options {
		option(s)
	}

	s.prober = rdbms.NewProber(s.logger, s.open)
	s.manager = rdbms.NewManager(s.logger, s.open)
	s.gateway = mapdb.New(s.manager,
		mapdb.WithLogger(s.logger),
		mapdb.WithRelease(s.release),
		mapdb.WithQueries(s.queries),
	)
	s.logger = logging.Component(s.logger, "session")
	return s
}

// Configure assembles a Session from the app config. The environment is
// decided here, once, and injected into the resolver. A secret store is only
// built in CI. Options are applied after the ones derived from cfg.
func Configure(cfg *config.Config, logger *slog.Logger, options ...Option) (*Session, error) {
	env, err := DetectEnvironment(cfg.Environment)
	if err != nil {
		return nil, err
	}

	local := credentials.NewLocalSource(cfg.Data.Local.Path, cfg.Data.Local.Section)

	var vault credentials.Source
	if env == environ.CI {
		store, storeErr := secrets.New(cfg.Secrets, logger)
		if storeErr != nil {
			return nil, storeErr
		}
		vault = credentials.NewVaultSource(store, cfg.Environment.VaultURL(), cfg.Environment.SecretName())
	}

	resolver := credentials.NewResolver(env, local, vault, logger)

	derived := []Option{
		WithLogger(logger),
		WithProbe(cfg.Data.Probe),
		WithRelease(cfg.Data.Release),
		WithQueries(cfg.Data.Queries),
	}
	return New(resolver, rdbms.OptionsFrom(cfg.Data), append(derived, options...)...), nil
}

// DetectEnvironment honours a forced value before looking at the markers.
func DetectEnvironment(cfg *config.Environment) (environ.Environment, error) {
	if cfg.Force != "" {
		env, err := environ.Parse(cfg.Force)
		if err != nil {
			return env, &fault.ConfigError{Op: "session.DetectEnvironment", Key: "environment.force", Reason: "expected ci or local", Err: err}
		}
		return env, nil
	}
	return environ.NewDetector(cfg.Markers...).Detect(), nil
}

func (s *Session) Environment() environ.Environment {
	return s.resolver.Environment()
}

// Credentials resolves, or returns the cached resolution.
func (s *Session) Credentials(ctx context.Context) (credentials.Credentials, error) {
	return s.resolver.Resolve(ctx)
}

// Connection resolves the credentials and builds the connection config
// without touching the network beyond the secret store.
func (s *Session) Connection(ctx context.Context) (rdbms.ConnectionConfig, error) {
	creds, err := s.resolver.Resolve(ctx)
	if err != nil {
		return rdbms.ConnectionConfig{}, err
	}
	return rdbms.Build(creds, s.build)
}

// Probe checks reachability whether or not the probe is enabled for Start.
func (s *Session) Probe(ctx context.Context) error {
	cfg, err := s.Connection(ctx)
	if err != nil {
		return err
	}
	return s.prober.Verify(ctx, cfg, 0)
}

// Start resolves, builds, optionally probes and opens. Under the per-query
// release policy the connection is opened once to prove it works, then
// released until the first query.
func (s *Session) Start(ctx context.Context) error {
	cfg, err := s.Connection(ctx)
	if err != nil {
		s.logger.Error("Session cannot start", "environment", s.Environment().String(), "err", err.Error())
		return err
	}

	if s.probe {
		if err := s.prober.Verify(ctx, cfg, 0); err != nil {
			return err
		}
	}

	if err := s.manager.Open(ctx, cfg); err != nil {
		return err
	}
	if s.release == mapdb.ReleaseQuery {
		if err := s.manager.Close(); err != nil {
			return err
		}
	}

	s.logger.Info("Session started", "environment", s.Environment().String(), "target", cfg.Target, "release", s.release)
	return nil
}

func (s *Session) Gateway() *mapdb.Gateway {
	return s.gateway
}

func (s *Session) Manager() *rdbms.Manager {
	return s.manager
}

// Close releases the connection. It is safe to call more than once.
func (s *Session) Close() error {
	return s.manager.Close()
}

// Run starts s, hands the gateway to fn and closes s on every path. A close
// failure is logged and only returned when nothing else failed.
func Run(ctx context.Context, s *Session, fn func(context.Context, *mapdb.Gateway) error) (err error) {
	defer func() {
		closeErr := s.Close()
		if closeErr == nil {
			return
		}
		if err != nil {
			s.logger.Error("Session close failed after an earlier error", "err", closeErr.Error(), "cause", err.Error())
			return
		}
		s.logger.Error("Session close failed", "err", closeErr.Error())
		err = closeErr
	}()

	if err = s.Start(ctx); err != nil {
		return err
	}
	return fn(ctx, s.gateway)
}
