// Package SECRETS reads named secret payloads from a remote vault using the
// identity of the running process. Callers never pass credentials in; each
// backend finds them in the ambient environment.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Shoowa/cotejo/config"
	"github.com/Shoowa/cotejo/fault"
	"github.com/Shoowa/cotejo/metrics"
)

const (
	BackendAzureKeyVault = "azure-keyvault"
	BackendOpenbao       = "openbao"
)

// Store fetches one secret per call. Implementations do not cache.
type Store interface {
	Name() string
	FetchSecret(ctx context.Context, vaultURL, secretName string) (Blob, error)
}

// Blob is a validated JSON object read from a vault. Raw must not be logged.
type Blob struct {
	Name     string
	Raw      []byte
	Metadata map[string]string
}

// New picks a backend by name.
func New(cfg *config.Secrets, logger *slog.Logger) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendAzureKeyVault, "azure":
		var opts []AzureOption
		if cfg.AzureKeyVault.ManagedIdentityClientID != "" {
			opts = append(opts, WithManagedIdentity(cfg.AzureKeyVault.ManagedIdentityClientID))
		}
		return NewAzureKeyVault(logger, opts...), nil
	case BackendOpenbao:
		return NewOpenbao(logger, cfg.Openbao.Mount, cfg.Openbao.ReadToken()), nil
	default:
		return nil, &fault.ConfigError{
			Op:     "secrets.New",
			Key:    "secrets.backend",
			Reason: fmt.Sprintf("unsupported backend %q", cfg.Backend),
		}
	}
}

// newBlob checks that value holds a JSON object before handing it out.
func newBlob(op, vault, name, value string, meta map[string]string) (Blob, error) {
	if strings.TrimSpace(value) == "" {
		return Blob{}, &fault.SecretFetchError{Op: op, Vault: vault, Name: name, Reason: fault.SecretEmpty}
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(value), &probe); err != nil {
		// The decoder error can quote the payload, so it is dropped.
		return Blob{}, &fault.SecretFetchError{
			Op:     op,
			Vault:  vault,
			Name:   name,
			Reason: fault.SecretMalformed,
			Err:    fmt.Errorf("payload is not a JSON object"),
		}
	}

	return Blob{Name: name, Raw: []byte(value), Metadata: meta}, nil
}

func record(backend string, err error) {
	metrics.SecretFetches.WithLabelValues(backend, metrics.Outcome(err)).Inc()
}
