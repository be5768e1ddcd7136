package secrets_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shoowa/cotejo/config"
	"github.com/Shoowa/cotejo/fault"
	. "github.com/Shoowa/cotejo/secrets"
	. "github.com/Shoowa/cotejo/testhelper"
)

const vaultURL = "https://map-kv.vault.azure.net"

// fakeKeyVault answers GetSecret from a map and counts calls.
type fakeKeyVault struct {
	secrets map[string]*string
	errs    map[string]error
	calls   int
}

func (f *fakeKeyVault) GetSecret(ctx context.Context, name, version string, _ *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	f.calls++
	if err, ok := f.errs[name]; ok {
		return azsecrets.GetSecretResponse{}, err
	}
	value, ok := f.secrets[name]
	if !ok {
		return azsecrets.GetSecretResponse{}, responseError(http.StatusNotFound, "SecretNotFound")
	}
	now := time.Now()
	id := azsecrets.ID(vaultURL + "/secrets/" + name + "/v1")
	return azsecrets.GetSecretResponse{
		Secret: azsecrets.Secret{
			Value: value,
			ID:    &id,
			Attributes: &azsecrets.SecretAttributes{
				Enabled: to.Ptr(true),
				Updated: &now,
			},
		},
	}, nil
}

func responseError(status int, code string) error {
	req := httptest.NewRequest(http.MethodGet, vaultURL+"/secrets/x", nil)
	body := `{"error":{"code":"` + code + `","message":"test"}}`
	resp := &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
	return runtime.NewResponseError(resp)
}

func TestAzureKeyVault_FetchSecret(t *testing.T) {
	payload := `{"username":"svc","password":"pw","host":"sql.example","port":"1433","database_name":"MAP"}`

	tests := []struct {
		name       string
		secret     string
		fake       *fakeKeyVault
		wantReason string
	}{
		{
			name:   "valid payload",
			secret: "db-creds",
			fake:   &fakeKeyVault{secrets: map[string]*string{"db-creds": to.Ptr(payload)}},
		},
		{
			name:       "missing secret",
			secret:     "absent",
			fake:       &fakeKeyVault{secrets: map[string]*string{}},
			wantReason: fault.SecretNotFound,
		},
		{
			name:       "nil value",
			secret:     "db-creds",
			fake:       &fakeKeyVault{secrets: map[string]*string{"db-creds": nil}},
			wantReason: fault.SecretEmpty,
		},
		{
			name:       "empty value",
			secret:     "db-creds",
			fake:       &fakeKeyVault{secrets: map[string]*string{"db-creds": to.Ptr("  ")}},
			wantReason: fault.SecretEmpty,
		},
		{
			name:       "not json",
			secret:     "db-creds",
			fake:       &fakeKeyVault{secrets: map[string]*string{"db-creds": to.Ptr("host=sql;pw=hunter22")}},
			wantReason: fault.SecretMalformed,
		},
		{
			name:       "json array",
			secret:     "db-creds",
			fake:       &fakeKeyVault{secrets: map[string]*string{"db-creds": to.Ptr(`["a"]`)}},
			wantReason: fault.SecretMalformed,
		},
		{
			name:       "forbidden",
			secret:     "db-creds",
			fake:       &fakeKeyVault{errs: map[string]error{"db-creds": responseError(http.StatusForbidden, "Forbidden")}},
			wantReason: fault.SecretUnauthorized,
		},
		{
			name:       "transport failure",
			secret:     "db-creds",
			fake:       &fakeKeyVault{errs: map[string]error{"db-creds": errors.New("dial tcp: no such host")}},
			wantReason: fault.SecretUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewAzureKeyVault(QuietLogger(), WithKeyVaultClient(tt.fake))

			blob, err := store.FetchSecret(context.Background(), vaultURL, tt.secret)

			assert.Equal(t, 1, tt.fake.calls)
			if tt.wantReason == "" {
				require.NoError(t, err)
				assert.JSONEq(t, payload, string(blob.Raw))
				assert.Equal(t, "v1", blob.Metadata["version"])
				assert.Equal(t, vaultURL, blob.Metadata["vault_url"])
				return
			}

			var fetchErr *fault.SecretFetchError
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, tt.wantReason, fetchErr.Reason)
			assert.Equal(t, tt.secret, fetchErr.Name)
			assert.NotContains(t, fetchErr.Error(), "hunter22")
		})
	}
}

func TestAzureKeyVault_NoCaching(t *testing.T) {
	fake := &fakeKeyVault{secrets: map[string]*string{"db-creds": to.Ptr(`{"a":"b"}`)}}
	store := NewAzureKeyVault(QuietLogger(), WithKeyVaultClient(fake))

	for i := 0; i < 3; i++ {
		_, err := store.FetchSecret(context.Background(), vaultURL, "db-creds")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, fake.calls)
}

func TestAzureKeyVault_ClientConstructionFails(t *testing.T) {
	store := NewAzureKeyVault(QuietLogger(), WithKeyVaultFactory(func(string) (KeyVaultAPI, error) {
		return nil, errors.New("no identity available")
	}))

	_, err := store.FetchSecret(context.Background(), vaultURL, "db-creds")

	var fetchErr *fault.SecretFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, fault.SecretUnauthorized, fetchErr.Reason)
}

func TestAzureKeyVault_BadURL(t *testing.T) {
	fake := &fakeKeyVault{}
	store := NewAzureKeyVault(QuietLogger(), WithKeyVaultClient(fake))

	_, err := store.FetchSecret(context.Background(), "not a url", "db-creds")

	var fetchErr *fault.SecretFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 0, fake.calls)
}

// kvServer mimics the OpenBao KV v2 read endpoint.
func kvServer(t *testing.T, token string, data map[string]map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("X-Vault-Token") != token {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"errors":["permission denied"]}`))
			return
		}
		name := strings.TrimPrefix(r.URL.Path, "/v1/secret/data/")
		d, ok := data[name]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
			return
		}
		body := map[string]any{
			"data": map[string]any{
				"data": d,
				"metadata": map[string]any{
					"created_time":    "2026-01-02T03:04:05Z",
					"custom_metadata": nil,
					"deletion_time":   "",
					"destroyed":       false,
					"version":         3,
				},
			},
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenbao_FetchSecret(t *testing.T) {
	srv := kvServer(t, "token", map[string]map[string]any{
		"db-creds": {"username": "svc", "password": "pw", "host": "pg", "port": 5432, "database_name": "map"},
	})

	store := NewOpenbao(QuietLogger(), "secret", "token")
	blob, err := store.FetchSecret(context.Background(), srv.URL, "db-creds")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(blob.Raw, &got))
	assert.Equal(t, "svc", got["username"])
	assert.Equal(t, "3", blob.Metadata["version"])
	assert.Equal(t, "openbao", store.Name())
}

func TestOpenbao_Failures(t *testing.T) {
	srv := kvServer(t, "token", map[string]map[string]any{})

	tests := []struct {
		name   string
		token  string
		secret string
		reason string
	}{
		{"missing secret", "token", "absent", fault.SecretNotFound},
		{"wrong token", "other", "db-creds", fault.SecretUnauthorized},
		{"no token", "", "db-creds", fault.SecretUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewOpenbao(QuietLogger(), "secret", tt.token)
			_, err := store.FetchSecret(context.Background(), srv.URL, tt.secret)

			var fetchErr *fault.SecretFetchError
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, tt.reason, fetchErr.Reason)
		})
	}
}

func TestNew_PicksBackend(t *testing.T) {
	t.Setenv("OPENBAO_TOKEN", "token")
	cfg := config.Default()

	store, err := New(cfg.Secrets, QuietLogger())
	require.NoError(t, err)
	assert.Equal(t, BackendAzureKeyVault, store.Name())

	cfg.Secrets.Backend = "openbao"
	store, err = New(cfg.Secrets, QuietLogger())
	require.NoError(t, err)
	assert.Equal(t, BackendOpenbao, store.Name())

	cfg.Secrets.Backend = "parchment"
	_, err = New(cfg.Secrets, QuietLogger())
	var cfgErr *fault.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}
