package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Shoowa/cotejo/fault"
	"github.com/Shoowa/cotejo/secrets"
)

var errPort = errors.New("port is not a positive integer")

// VaultSource maps a secret store payload onto Credentials.
type VaultSource struct {
	Store      secrets.Store
	VaultURL   string
	SecretName string
}

func NewVaultSource(store secrets.Store, vaultURL, secretName string) *VaultSource {
	return &VaultSource{Store: store, VaultURL: vaultURL, SecretName: secretName}
}

func (v *VaultSource) Name() string { return "vault" }

// payload is the JSON shape agreed for database secrets.
type payload struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	Host           string `json:"host"`
	Port           port   `json:"port"`
	DatabaseName   string `json:"database_name"`
	Authentication string `json:"authentication"`
}

// port accepts a JSON number or a numeric string. Null and "" count as
// absent, the same as an omitted key.
type port string

func (p *port) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	switch value := v.(type) {
	case nil:
	case json.Number:
		*p = port(value.String())
	case string:
		*p = port(strings.TrimSpace(value))
	default:
		return errPort
	}
	return nil
}

// Load checks its inputs before any network call, fetches the secret, and
// applies DefaultPort when the payload has none.
func (v *VaultSource) Load(ctx context.Context) (Credentials, error) {
	const op = "vault.Load"

	if strings.TrimSpace(v.VaultURL) == "" {
		return Credentials{}, &fault.ConfigError{Op: op, Key: "vault_url", Reason: "vault URL must be provided in CI"}
	}
	if strings.TrimSpace(v.SecretName) == "" {
		return Credentials{}, &fault.ConfigError{Op: op, Key: "secret_name", Reason: "secret name must be provided in CI"}
	}
	if v.Store == nil {
		return Credentials{}, &fault.ConfigError{Op: op, Key: "secrets.backend", Reason: "no secret store configured"}
	}

	blob, err := v.Store.FetchSecret(ctx, v.VaultURL, v.SecretName)
	if err != nil {
		return Credentials{}, err
	}

	var p payload
	if err := json.Unmarshal(blob.Raw, &p); err != nil {
		return Credentials{}, &fault.SecretFetchError{
			Op:     op,
			Vault:  v.VaultURL,
			Name:   v.SecretName,
			Reason: fault.SecretMalformed,
			Err:    unmarshalCause(err),
		}
	}

	portNumber := DefaultPort
	if p.Port != "" {
		n, convErr := strconv.Atoi(string(p.Port))
		if convErr != nil || n <= 0 {
			return Credentials{}, &fault.SecretFetchError{Op: op, Vault: v.VaultURL, Name: v.SecretName, Reason: fault.SecretMalformed, Err: errPort}
		}
		portNumber = n
	}

	return Credentials{
		Host:     p.Host,
		Port:     portNumber,
		Database: p.DatabaseName,
		Username: p.Username,
		Password: p.Password,
		AuthMode: p.Authentication,
	}, nil
}

// unmarshalCause keeps decoder detail that cannot echo payload values.
func unmarshalCause(err error) error {
	if errors.Is(err, errPort) {
		return errPort
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Errorf("field %s has the wrong type", typeErr.Field)
	}
	return errors.New("payload does not match the credential shape")
}
