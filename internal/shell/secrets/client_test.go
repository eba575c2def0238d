package secrets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/artpar/pushdock/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authServer(t *testing.T, calls *atomic.Int64, status int, token string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, loginPath, r.URL.Path)

		var req loginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.ClientID)

		w.WriteHeader(status)
		if status == http.StatusOK {
			json.NewEncoder(w).Encode(loginResponse{AccessToken: token})
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func secretsCfg(siteURL, clientID string) *domain.SecretsConfig {
	return &domain.SecretsConfig{
		ClientID:     clientID,
		ClientSecret: "machine-secret",
		ProjectID:    "proj",
		Environment:  "prod",
		SiteURL:      siteURL,
	}
}

func TestSessionToken_Exchange(t *testing.T) {
	var calls atomic.Int64
	srv := authServer(t, &calls, http.StatusOK, "st.token-1")
	c := NewClient(time.Second, nil)

	tok, err := c.SessionToken(context.Background(), secretsCfg(srv.URL, "machine-1"))

	require.NoError(t, err)
	assert.Equal(t, "st.token-1", tok)
	assert.EqualValues(t, 1, calls.Load())
}

func TestSessionToken_CachedPerIdentityAndEndpoint(t *testing.T) {
	var calls atomic.Int64
	srv := authServer(t, &calls, http.StatusOK, "st.token-1")
	c := NewClient(time.Second, nil)

	_, err := c.SessionToken(context.Background(), secretsCfg(srv.URL, "machine-1"))
	require.NoError(t, err)
	tok, err := c.SessionToken(context.Background(), secretsCfg(srv.URL, "machine-1"))
	require.NoError(t, err)

	assert.Equal(t, "st.token-1", tok)
	assert.EqualValues(t, 1, calls.Load(), "second call for the same identity hits the cache")

	_, err = c.SessionToken(context.Background(), secretsCfg(srv.URL, "machine-2"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load(), "a different identity re-authenticates")
}

func TestSessionToken_AuthFailure(t *testing.T) {
	var calls atomic.Int64
	srv := authServer(t, &calls, http.StatusUnauthorized, "")
	c := NewClient(time.Second, nil)

	_, err := c.SessionToken(context.Background(), secretsCfg(srv.URL, "machine-1"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSessionToken_EmptyTokenRejected(t *testing.T) {
	var calls atomic.Int64
	srv := authServer(t, &calls, http.StatusOK, "")
	c := NewClient(time.Second, nil)

	_, err := c.SessionToken(context.Background(), secretsCfg(srv.URL, "machine-1"))

	assert.Error(t, err)
}

func TestTokenCache(t *testing.T) {
	cache := NewTokenCache()

	_, ok := cache.Get("id", "https://a")
	assert.False(t, ok)

	cache.Put("id", "https://a", "tok-a")
	cache.Put("id", "https://b", "tok-b")

	tok, ok := cache.Get("id", "https://a")
	require.True(t, ok)
	assert.Equal(t, "tok-a", tok)

	tok, ok = cache.Get("id", "https://b")
	require.True(t, ok)
	assert.Equal(t, "tok-b", tok)
}
