// Package gmail links Gmail mailboxes through the Gmail REST API and sweeps
// them for e-receipts.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"capture/internal"
	"capture/internal/config"
	"capture/internal/engine"
	"capture/internal/mailbox"
	"capture/internal/provider"
)

// sweepQuery targets order confirmations; Gmail's purchase category does the
// heavy lifting, the subject terms catch retailers it misses.
const sweepQuery = `category:purchases OR subject:(receipt OR order OR invoice)`

type Engine struct {
	cfg config.Config

	mu      sync.Mutex
	service *gmailapi.Service
	linked  map[string]bool
}

func NewEngine(cfg config.Config) *Engine {
	return &Engine{cfg: cfg, linked: map[string]bool{}}
}

func (e *Engine) Provider() provider.Email { return provider.EmailGmail }

// Login connects the configured OAuth identity. Gmail auth is token-based:
// the password is unused, the username must match the authorized mailbox.
func (e *Engine) Login(ctx context.Context, username, password string) error {
	if err := e.cfg.Require("GMAIL_CLIENT_ID", e.cfg.GmailClientID); err != nil {
		return internal.AsError(err, internal.KindNotInitialized)
	}
	if err := e.cfg.Require("GMAIL_CLIENT_SECRET", e.cfg.GmailClientSecret); err != nil {
		return internal.AsError(err, internal.KindNotInitialized)
	}
	if err := e.cfg.Require("GMAIL_REFRESH_TOKEN", e.cfg.GmailRefreshToken); err != nil {
		return internal.AsError(err, internal.KindNotInitialized)
	}

	svc, err := e.ensureService(ctx)
	if err != nil {
		return err
	}

	profile, err := svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return internal.Errorf(internal.KindInvalidCredentials, "gmail profile lookup: %v", err)
	}
	if !strings.EqualFold(profile.EmailAddress, username) {
		return internal.Errorf(internal.KindInvalidCredentials, "authorized mailbox is %s, not %s", profile.EmailAddress, username)
	}

	e.mu.Lock()
	e.linked[strings.ToLower(username)] = true
	e.mu.Unlock()
	return nil
}

func (e *Engine) ensureService(ctx context.Context) (*gmailapi.Service, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.service != nil {
		return e.service, nil
	}

	oauthCfg := &oauth2.Config{
		ClientID:     e.cfg.GmailClientID,
		ClientSecret: e.cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  e.cfg.GmailRedirectURI,
		Scopes:       []string{gmailapi.GmailReadonlyScope},
	}
	tokenSource := oauthCfg.TokenSource(context.Background(), &oauth2.Token{RefreshToken: e.cfg.GmailRefreshToken})
	svc, err := gmailapi.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, internal.Errorf(internal.KindNetwork, "gmail service: %v", err)
	}
	e.service = svc
	return svc, nil
}

func (e *Engine) Logout(ctx context.Context, username string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if username == "" {
		e.linked = map[string]bool{}
		return nil
	}
	delete(e.linked, strings.ToLower(username))
	return nil
}

func (e *Engine) Linked(ctx context.Context) ([]internal.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]internal.Account, 0, len(e.linked))
	for username := range e.linked {
		out = append(out, internal.Account{Provider: provider.EmailGmail, Username: username, Verified: true})
	}
	return out, nil
}

func (e *Engine) isLinked(username string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.linked[strings.ToLower(username)]
}

// Sweep streams e-receipts received within the day cutoff.
func (e *Engine) Sweep(ctx context.Context, username string, dayCutoff int) (<-chan engine.SweepItem, error) {
	if !e.isLinked(username) {
		return nil, internal.Errorf(internal.KindNoCredentials, "mailbox %s is not linked", username)
	}
	if dayCutoff <= 0 {
		// Nothing newer than the last sweep; complete with an empty stream.
		items := make(chan engine.SweepItem)
		close(items)
		return items, nil
	}
	svc, err := e.ensureService(ctx)
	if err != nil {
		return nil, err
	}

	providerCode, err := provider.EncodeEmail(provider.EmailGmail)
	if err != nil {
		return nil, err
	}

	items := make(chan engine.SweepItem)
	go func() {
		defer close(items)

		query := fmt.Sprintf("(%s) newer_than:%dd", sweepQuery, dayCutoff)
		call := svc.Users.Messages.List("me").Q(query).MaxResults(100)
		pageToken := ""
		for {
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			resp, err := call.Context(ctx).Do()
			if err != nil {
				items <- engine.SweepItem{Err: internal.Errorf(internal.KindNetwork, "gmail list: %v", err)}
				return
			}

			for _, ref := range resp.Messages {
				if ref.Id == "" {
					continue
				}
				raw, err := svc.Users.Messages.Get("me", ref.Id).Format("raw").Context(ctx).Do()
				if err != nil {
					items <- engine.SweepItem{Err: internal.Errorf(internal.KindNetwork, "gmail fetch %s: %v", ref.Id, err)}
					continue
				}
				if raw.Raw == "" {
					continue
				}
				rawBytes, err := decodeBase64URL(raw.Raw)
				if err != nil {
					items <- engine.SweepItem{Err: internal.AsError(err, internal.KindParseFailure)}
					continue
				}
				result, err := mailbox.FromRawEmail(rawBytes, providerCode)
				if err != nil {
					items <- engine.SweepItem{Err: err}
					continue
				}
				if !result.EReceiptIsValid {
					continue
				}
				result.EReceiptAuthenticated = boolPtr(true)
				select {
				case items <- engine.SweepItem{Result: result}:
				case <-ctx.Done():
					return
				}
			}

			if resp.NextPageToken == "" {
				return
			}
			pageToken = resp.NextPageToken
		}
	}()
	return items, nil
}

func decodeBase64URL(input string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.URLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("decode gmail raw payload: %w", err)
}

func boolPtr(b bool) *bool { return &b }
