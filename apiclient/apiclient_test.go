package apiclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	. "github.com/Shoowa/cotejo/apiclient"
	"github.com/Shoowa/cotejo/config"
	"github.com/Shoowa/cotejo/fault"
	"github.com/Shoowa/cotejo/testhelper"
)

func fixtureAPI(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/fields", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"field":"` + r.URL.Query().Get("name") + `"}`))
	})
	mux.HandleFunc("GET /api/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("x", 5000), http.StatusBadGateway)
	})
	mux.HandleFunc("GET /api/accented", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("x", 4095)+strings.Repeat("é", 10), http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGet(t *testing.T) {
	srv := fixtureAPI(t)
	c := New(srv.URL+"/", WithLogger(testhelper.QuietLogger()))

	resp, err := c.Get(context.Background(), "/api/fields", url.Values{"name": {"Acreage"}})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"field":"Acreage"}`, string(resp.Body))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestGet_StatusError(t *testing.T) {
	srv := fixtureAPI(t)
	c := New(srv.URL)

	resp, err := c.Get(context.Background(), "/api/broken", nil)

	assert.Nil(t, resp)
	var statusErr *fault.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, srv.URL+"/api/broken", statusErr.URL)
	assert.Len(t, statusErr.Body, 4096)
}

func TestGet_StatusError_BodyCutOnRuneBoundary(t *testing.T) {
	srv := fixtureAPI(t)
	c := New(srv.URL)

	_, err := c.Get(context.Background(), "/api/accented", nil)

	var statusErr *fault.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.True(t, utf8.ValidString(statusErr.Body), "body split a UTF-8 sequence")
	assert.Equal(t, strings.Repeat("x", 4095), statusErr.Body)
}

func TestGet_NotFound(t *testing.T) {
	srv := fixtureAPI(t)

	_, err := New(srv.URL).Get(context.Background(), "/missing", nil)

	var statusErr *fault.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestGet_NoRetry(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Get(context.Background(), "/", nil)

	require.Error(t, err)
	assert.Equal(t, 1, hits)
}

func TestGet_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	address := srv.URL
	srv.Close()

	_, err := New(address).Get(context.Background(), "/", nil)

	require.Error(t, err)
	var statusErr *fault.StatusError
	assert.False(t, errors.As(err, &statusErr))
}

func TestGet_RateLimiterHonoursContext(t *testing.T) {
	srv := fixtureAPI(t)
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	c := New(srv.URL, WithRateLimiter(limiter))

	_, err := c.Get(context.Background(), "/api/fields", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.Get(ctx, "/api/fields", nil)
	require.Error(t, err)
}

func TestFromConfig_InsecureTLS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	strict := FromConfig(&config.Api{BaseURL: srv.URL, Timeout: 5}, testhelper.QuietLogger())
	_, err := strict.Get(context.Background(), "/", nil)
	require.Error(t, err, "self-signed certificate should be rejected")

	insecure := FromConfig(&config.Api{BaseURL: srv.URL, Timeout: 5, InsecureSkipVerify: true}, testhelper.QuietLogger())
	resp, err := insecure.Get(context.Background(), "/", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
}
