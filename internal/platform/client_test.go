package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capture/internal"
	"capture/internal/config"
)

func testClient(baseURL string) *Client {
	return NewClient(config.Config{
		PlatformBaseURL:   baseURL,
		PublishingID:      "pub-1",
		ProductKey:        "key-1",
		LicenseTerms:      "terms",
		PlatformRateRPS:   100,
		PlatformTimeoutMs: 2000,
	})
}

func TestTokenExchangesCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/token", r.URL.Path)

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "pub-1", payload["client_id"])
		assert.Equal(t, "key-1", payload["client_secret"])

		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-abc", "expires_in": 600})
	}))
	defer srv.Close()

	token, err := testClient(srv.URL).Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", token)
}

func TestTokenRequiresCredentials(t *testing.T) {
	c := NewClient(config.Config{PlatformBaseURL: "http://unused", PlatformRateRPS: 100})
	_, err := c.Token(context.Background())
	require.Error(t, err)
	assert.Equal(t, internal.KindNotInitialized, internal.KindOf(err))
}

func TestRegisterUserSendsBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/token":
			json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-abc"})
		case "/provider/user":
			assert.Equal(t, "Bearer tok-abc", r.Header.Get("Authorization"))
			var payload map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "user-7", payload["id"])
			json.NewEncoder(w).Encode(map[string]any{"id": "license-42"})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	licenseID, err := testClient(srv.URL).RegisterUser(context.Background(), "user-7")
	require.NoError(t, err)
	assert.Equal(t, "license-42", licenseID)
}

func TestPostRetriesRetryableStatuses(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-after-retry"})
	}))
	defer srv.Close()

	token, err := testClient(srv.URL).Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-after-retry", token)
	assert.Equal(t, 3, attempts)
}

func TestPostDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Token(context.Background())
	require.Error(t, err)
	assert.Equal(t, internal.KindNetwork, internal.KindOf(err))
	assert.Equal(t, 1, attempts)
}
