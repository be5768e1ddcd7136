package fault_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/Shoowa/cotejo/fault"
)

func TestCredentialErrorUnwrapsCause(t *testing.T) {
	cause := &ConfigError{Op: "vault.Load", Key: "vault_url", Reason: "not set"}
	err := fmt.Errorf("session: %w", &CredentialError{Op: "resolve", Environment: "CI", Err: cause})

	var credErr *CredentialError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, "CI", credErr.Environment)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "vault_url", cfgErr.Key)
}

func TestNotFoundIsNotConnectionError(t *testing.T) {
	var err error = &NotFoundError{Op: "fetchFieldName", What: "field name"}

	var connErr *ConnectionError
	assert.False(t, errors.As(err, &connErr))
	assert.Equal(t, "fetchFieldName: no field name found", err.Error())
}

func TestSecretFetchErrorOmitsPayload(t *testing.T) {
	err := &SecretFetchError{
		Op:     "azure.FetchSecret",
		Vault:  "https://kv.vault.azure.net",
		Name:   "db-creds",
		Reason: SecretMalformed,
		Err:    errors.New("invalid character 'h'"),
	}
	assert.Contains(t, err.Error(), "db-creds")
	assert.Contains(t, err.Error(), SecretMalformed)
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "validation",
			err:  &ValidationError{Op: "build", Field: "host"},
			want: "build: host is required",
		},
		{
			name: "connectivity",
			err:  &ConnectivityError{Op: "verify", Target: "db:1433/app", Reason: "timeout"},
			want: "verify: probe of db:1433/app failed: timeout",
		},
		{
			name: "connection",
			err:  &ConnectionError{Op: "open", Target: "db:1433/app", Err: errors.New("refused")},
			want: "open: connection to db:1433/app failed: refused",
		},
		{
			name: "config",
			err:  &ConfigError{Op: "local.Load", Path: "settings.ini", Key: "server", Reason: "missing"},
			want: `local.Load: config error in settings.ini (key "server"): missing`,
		},
		{
			name: "status",
			err:  &StatusError{Method: "GET", URL: "http://api/x", StatusCode: 404},
			want: "GET http://api/x: unexpected status 404",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}
