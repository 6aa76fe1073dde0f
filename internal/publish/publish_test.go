package publish

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"capture/internal/config"
	"capture/internal/receipt"
)

type fakePlatform struct {
	token    string
	tokenErr error
	calls    int32
}

func (f *fakePlatform) Token(ctx context.Context) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.token, f.tokenErr
}

func (f *fakePlatform) RegisterUser(ctx context.Context, userID string) (string, error) {
	return "", nil
}

func testPublisher(ingestURL string, platform *fakePlatform) *Publisher {
	return New(config.Config{
		IngestURL:       ingestURL,
		IngestTimeoutMs: 2000,
		TokenTTLSec:     600,
	}, platform, zap.NewNop())
}

func sample() *receipt.Receipt {
	return &receipt.Receipt{MerchantName: receipt.String("Target"), OCRConfidence: 0.9}
}

func TestPublishPostsReceiptWithBearer(t *testing.T) {
	var got receipt.Receipt
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := testPublisher(srv.URL, &fakePlatform{token: "tok-1"})
	require.NoError(t, p.Publish(context.Background(), sample()))
	require.NotNil(t, got.MerchantName)
	assert.Equal(t, "Target", got.MerchantName.Value)
}

func TestPublishCachesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	platform := &fakePlatform{token: "tok-1"}
	p := testPublisher(srv.URL, platform)
	require.NoError(t, p.Publish(context.Background(), sample()))
	require.NoError(t, p.Publish(context.Background(), sample()))
	assert.EqualValues(t, 1, atomic.LoadInt32(&platform.calls))
}

func TestPublishDropsTokenOnUnauthorized(t *testing.T) {
	var status int32 = http.StatusUnauthorized
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(atomic.LoadInt32(&status)))
	}))
	defer srv.Close()

	platform := &fakePlatform{token: "tok-1"}
	p := testPublisher(srv.URL, platform)
	require.Error(t, p.Publish(context.Background(), sample()))

	atomic.StoreInt32(&status, http.StatusOK)
	require.NoError(t, p.Publish(context.Background(), sample()))
	assert.EqualValues(t, 2, atomic.LoadInt32(&platform.calls), "401 must evict the cached token")
}

func TestSubmitSwallowsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := testPublisher(srv.URL, &fakePlatform{token: "tok-1"})
	p.Submit(sample())
	p.Wait()
}
