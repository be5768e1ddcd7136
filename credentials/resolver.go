package credentials

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Shoowa/cotejo/environ"
	"github.com/Shoowa/cotejo/fault"
	"github.com/Shoowa/cotejo/logging"
	"github.com/Shoowa/cotejo/metrics"
)

// Resolver chooses the local source in a Local environment and the vault
// source in CI. The first Resolve decides; later calls return the same result.
type Resolver struct {
	env    environ.Environment
	local  Source
	vault  Source
	logger *slog.Logger

	once  sync.Once
	creds Credentials
	err   error
}

func NewResolver(env environ.Environment, local, vault Source, logger *slog.Logger) *Resolver {
	return &Resolver{
		env:    env,
		local:  local,
		vault:  vault,
		logger: logging.Component(logger, "resolver"),
	}
}

func (r *Resolver) Environment() environ.Environment {
	return r.env
}

// Resolve returns a complete login or a *fault.CredentialError wrapping the
// cause.
func (r *Resolver) Resolve(ctx context.Context) (Credentials, error) {
	r.once.Do(func() {
		r.creds, r.err = r.resolve(ctx)
		metrics.CredentialResolutions.WithLabelValues(r.env.String(), metrics.Outcome(r.err)).Inc()
	})
	return r.creds, r.err
}

func (r *Resolver) resolve(ctx context.Context) (Credentials, error) {
	const op = "resolve"

	source := r.local
	if r.env == environ.CI {
		source = r.vault
	}
	if source == nil {
		return Credentials{}, &fault.CredentialError{
			Op:          op,
			Environment: r.env.String(),
			Err:         &fault.ConfigError{Op: op, Reason: "no credential source for environment " + r.env.String()},
		}
	}

	r.logger.Info("Resolving credentials", "environment", r.env.String(), "source", source.Name())

	creds, err := source.Load(ctx)
	if err != nil {
		r.logger.Error("Credential source failed", "source", source.Name(), "err", err.Error())
		return Credentials{}, &fault.CredentialError{Op: op, Environment: r.env.String(), Err: err}
	}

	if field := creds.Missing(); field != "" {
		r.logger.Error("Credentials incomplete", "source", source.Name(), "missing", field)
		return Credentials{}, &fault.CredentialError{Op: op, Environment: r.env.String(), Field: field}
	}

	r.logger.Info("Credentials resolved", "source", source.Name(), "target", creds.Target())
	return creds, nil
}
