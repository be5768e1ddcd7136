package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	openbao "github.com/openbao/openbao/api/v2"

	"github.com/Shoowa/cotejo/fault"
	"github.com/Shoowa/cotejo/logging"
)

// Openbao reads KV v2 secrets. The vault URL is the server address and the
// secret name is the path under the mount. The token comes from the process
// environment.
type Openbao struct {
	logger *slog.Logger
	mount  string
	token  string
}

func NewOpenbao(logger *slog.Logger, mount, token string) *Openbao {
	return &Openbao{
		logger: logging.Component(logger, "openbao"),
		mount:  mount,
		token:  token,
	}
}

func (o *Openbao) Name() string { return BackendOpenbao }

func readConfig(address string) *openbao.Config {
	clientConfig := openbao.DefaultConfig()
	clientConfig.Address = address
	return clientConfig
}

func buildClient(obCfg *openbao.Config, token string) (*openbao.Client, error) {
	client, err := openbao.NewClient(obCfg)
	if err != nil {
		return nil, err
	}

	client.SetToken(token)
	return client, nil
}

// FetchSecret reads mount/data/secretName and re-encodes its data as JSON.
func (o *Openbao) FetchSecret(ctx context.Context, vaultURL, secretName string) (blob Blob, err error) {
	const op = "openbao.FetchSecret"
	defer func() { record(BackendOpenbao, err) }()

	if o.token == "" {
		return Blob{}, &fault.SecretFetchError{Op: op, Vault: vaultURL, Name: secretName, Reason: fault.SecretUnauthorized, Err: errors.New("no token in environment")}
	}

	client, err := buildClient(readConfig(vaultURL), o.token)
	if err != nil {
		return Blob{}, &fault.SecretFetchError{Op: op, Vault: vaultURL, Name: secretName, Reason: fault.SecretUnavailable, Err: err}
	}

	o.logger.Debug("Fetching secret", "vault", vaultURL, "mount", o.mount, "secret", secretName)
	secret, err := client.KVv2(o.mount).Get(ctx, secretName)
	if err != nil {
		reason := classifyOpenbao(err)
		o.logger.Error("Secret fetch failed", "vault", vaultURL, "secret", secretName, "reason", reason)
		return Blob{}, &fault.SecretFetchError{Op: op, Vault: vaultURL, Name: secretName, Reason: reason, Err: err}
	}

	if secret == nil || len(secret.Data) == 0 {
		return Blob{}, &fault.SecretFetchError{Op: op, Vault: vaultURL, Name: secretName, Reason: fault.SecretEmpty}
	}

	raw, err := json.Marshal(secret.Data)
	if err != nil {
		return Blob{}, &fault.SecretFetchError{Op: op, Vault: vaultURL, Name: secretName, Reason: fault.SecretMalformed, Err: errors.New("data is not JSON encodable")}
	}

	meta := map[string]string{
		"source":    "openbao:" + o.mount + "/" + secretName,
		"vault_url": vaultURL,
	}
	if secret.VersionMetadata != nil {
		meta["version"] = strconv.Itoa(secret.VersionMetadata.Version)
		meta["updated_at"] = secret.VersionMetadata.CreatedTime.Format(time.RFC3339)
	}

	o.logger.Info("Fetched secret", "vault", vaultURL, "secret", secretName)
	return newBlob(op, vaultURL, secretName, string(raw), meta)
}

func classifyOpenbao(err error) string {
	if errors.Is(err, openbao.ErrSecretNotFound) {
		return fault.SecretNotFound
	}

	var respErr *openbao.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return fault.SecretNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			return fault.SecretUnauthorized
		}
	}
	return fault.SecretUnavailable
}
