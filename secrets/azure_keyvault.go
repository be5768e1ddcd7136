package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	"github.com/Shoowa/cotejo/fault"
	"github.com/Shoowa/cotejo/logging"
)

// KeyVaultAPI is the slice of azsecrets.Client used here, so tests can swap
// in a fake.
type KeyVaultAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// KeyVaultFactory builds a client for one vault URL.
type KeyVaultFactory func(vaultURL string) (KeyVaultAPI, error)

// AzureKeyVault reads secrets with the process's Azure identity: managed
// identity, workload identity, or a developer's az login.
type AzureKeyVault struct {
	logger          *slog.Logger
	newClient       KeyVaultFactory
	managedClientID string
}

type AzureOption func(*AzureKeyVault)

// WithKeyVaultClient replaces the SDK client. Used by tests.
func WithKeyVaultClient(client KeyVaultAPI) AzureOption {
	return func(a *AzureKeyVault) {
		a.newClient = func(string) (KeyVaultAPI, error) { return client, nil }
	}
}

// WithKeyVaultFactory replaces client construction.
func WithKeyVaultFactory(f KeyVaultFactory) AzureOption {
	return func(a *AzureKeyVault) {
		a.newClient = f
	}
}

// WithManagedIdentity pins a user-assigned managed identity.
func WithManagedIdentity(clientID string) AzureOption {
	return func(a *AzureKeyVault) {
		a.managedClientID = clientID
	}
}

func NewAzureKeyVault(logger *slog.Logger, opts ...AzureOption) *AzureKeyVault {
	a := &AzureKeyVault{logger: logging.Component(logger, "azure-keyvault")}
	for _, opt := range opts {
		opt(a)
	}
	if a.newClient == nil {
		a.newClient = a.sdkClient
	}
	return a
}

func (a *AzureKeyVault) Name() string { return BackendAzureKeyVault }

func (a *AzureKeyVault) credential() (azcore.TokenCredential, error) {
	if a.managedClientID != "" {
		opts := azidentity.ManagedIdentityCredentialOptions{
			ID: azidentity.ClientID(a.managedClientID),
		}
		return azidentity.NewManagedIdentityCredential(&opts)
	}
	return azidentity.NewDefaultAzureCredential(nil)
}

func (a *AzureKeyVault) sdkClient(vaultURL string) (KeyVaultAPI, error) {
	cred, err := a.credential()
	if err != nil {
		return nil, err
	}
	return azsecrets.NewClient(vaultURL, cred, nil)
}

// FetchSecret reads the latest version of secretName.
func (a *AzureKeyVault) FetchSecret(ctx context.Context, vaultURL, secretName string) (blob Blob, err error) {
	const op = "azure.FetchSecret"
	defer func() { record(BackendAzureKeyVault, err) }()

	if _, parseErr := url.ParseRequestURI(vaultURL); parseErr != nil {
		return Blob{}, &fault.SecretFetchError{Op: op, Vault: vaultURL, Name: secretName, Reason: fault.SecretUnavailable, Err: parseErr}
	}

	client, err := a.newClient(vaultURL)
	if err != nil {
		return Blob{}, &fault.SecretFetchError{Op: op, Vault: vaultURL, Name: secretName, Reason: fault.SecretUnauthorized, Err: err}
	}

	a.logger.Debug("Fetching secret", "vault", vaultURL, "secret", secretName)
	resp, err := client.GetSecret(ctx, secretName, "", nil)
	if err != nil {
		reason := classifyAzure(err)
		a.logger.Error("Secret fetch failed", "vault", vaultURL, "secret", secretName, "reason", reason)
		return Blob{}, &fault.SecretFetchError{Op: op, Vault: vaultURL, Name: secretName, Reason: reason, Err: err}
	}

	value := ""
	if resp.Value != nil {
		value = *resp.Value
	}

	blob, err = newBlob(op, vaultURL, secretName, value, azureMetadata(vaultURL, secretName, resp))
	if err != nil {
		return Blob{}, err
	}

	a.logger.Info("Fetched secret", "vault", vaultURL, "secret", secretName)
	return blob, nil
}

func classifyAzure(err error) string {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return fault.SecretNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			return fault.SecretUnauthorized
		}
		return fault.SecretUnavailable
	}

	var authErr *azidentity.AuthenticationFailedError
	if errors.As(err, &authErr) {
		return fault.SecretUnauthorized
	}
	return fault.SecretUnavailable
}

func azureMetadata(vaultURL, name string, resp azsecrets.GetSecretResponse) map[string]string {
	meta := map[string]string{
		"source":    fmt.Sprintf("azure-kv:%s", name),
		"vault_url": vaultURL,
	}
	if resp.ID != nil {
		meta["version"] = resp.ID.Version()
	}
	if resp.Attributes != nil {
		if resp.Attributes.Updated != nil {
			meta["updated_at"] = resp.Attributes.Updated.Format(time.RFC3339)
		}
		if resp.Attributes.Expires != nil {
			meta["expires_at"] = resp.Attributes.Expires.Format(time.RFC3339)
		}
	}
	return meta
}
