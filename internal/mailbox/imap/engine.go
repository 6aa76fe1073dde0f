// Package imap is the mailbox engine for the IMAP-family providers (Yahoo,
// AOL, custom hosts). One Engine instance serves one provider.
package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"

	"capture/internal"
	"capture/internal/engine"
	"capture/internal/mailbox"
	"capture/internal/provider"
)

var defaultHosts = map[provider.Email]string{
	provider.EmailYahoo: "imap.mail.yahoo.com",
	provider.EmailAOL:   "imap.aol.com",
}

type Engine struct {
	p      provider.Email
	host   string
	port   int
	secure bool

	mu       sync.Mutex
	accounts map[string]string
}

// NewEngine builds an engine for one IMAP provider. An empty host falls back
// to the provider's well-known endpoint; CUSTOM requires an explicit host.
func NewEngine(p provider.Email, host string, port int, secure bool) (*Engine, error) {
	if host == "" {
		host = defaultHosts[p]
	}
	if host == "" {
		return nil, internal.Errorf(internal.KindNotInitialized, "no IMAP host configured for %s", p)
	}
	if port == 0 {
		port = 993
	}
	return &Engine{p: p, host: host, port: port, secure: secure, accounts: map[string]string{}}, nil
}

func (e *Engine) Provider() provider.Email { return e.p }

// Login verifies the credentials against the server, then retains them for
// sweeps. IMAP has no session handle to keep; each sweep dials fresh.
func (e *Engine) Login(ctx context.Context, username, password string) error {
	client, err := e.dial()
	if err != nil {
		return err
	}
	defer client.Logout()

	if err := client.Login(username, password); err != nil {
		return internal.Errorf(internal.KindInvalidCredentials, "imap login %s: %v", username, err)
	}

	e.mu.Lock()
	e.accounts[strings.ToLower(username)] = password
	e.mu.Unlock()
	return nil
}

func (e *Engine) Logout(ctx context.Context, username string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if username == "" {
		e.accounts = map[string]string{}
		return nil
	}
	delete(e.accounts, strings.ToLower(username))
	return nil
}

func (e *Engine) Linked(ctx context.Context) ([]internal.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]internal.Account, 0, len(e.accounts))
	for username := range e.accounts {
		out = append(out, internal.Account{Provider: e.p, Username: username, Verified: true})
	}
	return out, nil
}

func (e *Engine) password(username string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pw, ok := e.accounts[strings.ToLower(username)]
	return pw, ok
}

func (e *Engine) dial() (*imapclient.Client, error) {
	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	var client *imapclient.Client
	var err error
	if e.secure {
		client, err = imapclient.DialTLS(addr, &tls.Config{ServerName: e.host})
	} else {
		client, err = imapclient.Dial(addr)
	}
	if err != nil {
		return nil, internal.Errorf(internal.KindNetwork, "imap dial %s: %v", addr, err)
	}
	return client, nil
}

// Sweep searches INBOX for messages received within the day cutoff and
// streams the ones that extract as e-receipts.
func (e *Engine) Sweep(ctx context.Context, username string, dayCutoff int) (<-chan engine.SweepItem, error) {
	password, ok := e.password(username)
	if !ok {
		return nil, internal.Errorf(internal.KindNoCredentials, "mailbox %s is not linked", username)
	}
	if dayCutoff <= 0 {
		// Nothing newer than the last sweep; complete with an empty stream.
		items := make(chan engine.SweepItem)
		close(items)
		return items, nil
	}

	providerCode, err := provider.EncodeEmail(e.p)
	if err != nil {
		return nil, err
	}

	items := make(chan engine.SweepItem)
	go func() {
		defer close(items)

		client, err := e.dial()
		if err != nil {
			items <- engine.SweepItem{Err: err}
			return
		}
		defer client.Logout()

		if err := client.Login(username, password); err != nil {
			items <- engine.SweepItem{Err: internal.Errorf(internal.KindInvalidCredentials, "imap login %s: %v", username, err)}
			return
		}
		if _, err := client.Select("INBOX", true); err != nil {
			items <- engine.SweepItem{Err: internal.Errorf(internal.KindNetwork, "imap select: %v", err)}
			return
		}

		criteria := imap.NewSearchCriteria()
		criteria.Since = time.Now().AddDate(0, 0, -dayCutoff)
		ids, err := client.Search(criteria)
		if err != nil {
			items <- engine.SweepItem{Err: internal.Errorf(internal.KindNetwork, "imap search: %v", err)}
			return
		}
		if len(ids) == 0 {
			return
		}

		seqset := new(imap.SeqSet)
		seqset.AddNum(ids...)

		section := &imap.BodySectionName{Peek: true}
		fetchItems := []imap.FetchItem{imap.FetchInternalDate, imap.FetchUid, section.FetchItem()}
		messages := make(chan *imap.Message, len(ids))
		fetchDone := make(chan error, 1)
		go func() { fetchDone <- client.Fetch(seqset, fetchItems, messages) }()

		for msg := range messages {
			if msg == nil {
				continue
			}
			body := msg.GetBody(section)
			if body == nil {
				continue
			}
			raw, err := io.ReadAll(body)
			if err != nil {
				items <- engine.SweepItem{Err: internal.AsError(err, internal.KindNetwork)}
				continue
			}
			result, err := mailbox.FromRawEmail(raw, providerCode)
			if err != nil {
				items <- engine.SweepItem{Err: err}
				continue
			}
			if !result.EReceiptIsValid {
				continue
			}
			select {
			case items <- engine.SweepItem{Result: result}:
			case <-ctx.Done():
				return
			}
		}

		if err := <-fetchDone; err != nil {
			items <- engine.SweepItem{Err: internal.Errorf(internal.KindNetwork, "imap fetch: %v", err)}
		}
	}()
	return items, nil
}
