// Package publish pushes normalized receipts to the ingestion endpoint.
// Publication is strictly best-effort: no retries surface to callers and no
// failure interrupts retrieval.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"capture/internal"
	"capture/internal/config"
	"capture/internal/engine"
	"capture/internal/receipt"
)

const tokenCacheKey = "bearer"

type Publisher struct {
	cfg        config.Config
	platform   engine.IdentityPlatform
	httpClient *http.Client
	tokens     *cache.Cache
	log        *zap.Logger
	wg         sync.WaitGroup
}

func New(cfg config.Config, platform engine.IdentityPlatform, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	ttl := time.Duration(cfg.TokenTTLSec) * time.Second
	return &Publisher{
		cfg:        cfg,
		platform:   platform,
		httpClient: &http.Client{Timeout: time.Duration(cfg.IngestTimeoutMs) * time.Millisecond},
		tokens:     cache.New(ttl, 2*ttl),
		log:        log,
	}
}

// Submit publishes in the background. Failures are logged and dropped; the
// caller never observes them.
func (p *Publisher) Submit(r *receipt.Receipt) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(p.cfg.IngestTimeoutMs)*time.Millisecond)
		defer cancel()
		if err := p.Publish(ctx, r); err != nil {
			p.log.Warn("receipt publish failed", zap.Error(err))
		}
	}()
}

// Wait blocks until every Submit launched so far has finished.
func (p *Publisher) Wait() { p.wg.Wait() }

// Publish sends one receipt synchronously.
func (p *Publisher) Publish(ctx context.Context, r *receipt.Receipt) error {
	if r == nil {
		return internal.NewError(internal.KindParseFailure, "nil receipt")
	}

	token, err := p.token(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(r)
	if err != nil {
		return internal.Errorf(internal.KindParseFailure, "receipt encode: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.IngestURL, bytes.NewReader(body))
	if err != nil {
		return internal.AsError(err, internal.KindNetwork)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return internal.AsError(err, internal.KindNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized {
			// Token may have been revoked before its TTL; drop it so the
			// next publish fetches a fresh one.
			p.tokens.Delete(tokenCacheKey)
		}
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return internal.Errorf(internal.KindNetwork, "ingest status %d: %s", resp.StatusCode, string(snippet))
	}
	return nil
}

func (p *Publisher) token(ctx context.Context) (string, error) {
	if cached, ok := p.tokens.Get(tokenCacheKey); ok {
		return cached.(string), nil
	}
	token, err := p.platform.Token(ctx)
	if err != nil {
		return "", internal.AsError(err, internal.KindNetwork)
	}
	p.tokens.SetDefault(tokenCacheKey, token)
	return token, nil
}
