// Package session drives account login, verification, and logout across both
// provider families. Retailer accounts go through the linking engine's
// link/verify round-trip; email accounts go straight to their mailbox engine.
package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"capture/internal"
	"capture/internal/engine"
	"capture/internal/provider"
)

// State is the link lifecycle of one retailer account.
type State string

const (
	StateUnlinked            State = "UNLINKED"
	StateLinkRequested       State = "LINK_REQUESTED"
	StateVerificationPending State = "VERIFICATION_PENDING"
	StateVerified            State = "VERIFIED"
	StateLinkConflict        State = "LINK_CONFLICT"
)

// Credentials are consumed by Login and never stored.
type Credentials struct {
	Provider internal.Provider
	Username string
	Password string
}

// Presenter shows a verification challenge to the user. Present blocks until
// the user completes the challenge or abandons it; an error means abandoned.
type Presenter interface {
	Present(ctx context.Context, c engine.Challenge) error
	Dismiss()
}

// Manager owns session lifecycle. At most one verification challenge is
// presented per process; a login that would need a second one is rejected.
type Manager struct {
	linking   engine.LinkingEngine
	mailboxes map[provider.Email]engine.MailboxEngine
	presenter Presenter
	registry  *internal.Registry
	log       *zap.Logger

	mu     sync.Mutex
	states map[string]State
}

func NewManager(linking engine.LinkingEngine, mailboxes []engine.MailboxEngine, presenter Presenter, registry *internal.Registry, log *zap.Logger) *Manager {
	byProvider := make(map[provider.Email]engine.MailboxEngine, len(mailboxes))
	for _, mb := range mailboxes {
		byProvider[mb.Provider()] = mb
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		linking:   linking,
		mailboxes: byProvider,
		presenter: presenter,
		registry:  registry,
		log:       log,
		states:    make(map[string]State),
	}
}

// StateOf reports the lifecycle state of one account. Accounts never seen
// report UNLINKED.
func (m *Manager) StateOf(p internal.Provider, username string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.states[stateKey(p, username)]; ok {
		return s
	}
	return StateUnlinked
}

func (m *Manager) setState(p internal.Provider, username string, s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s == StateUnlinked {
		delete(m.states, stateKey(p, username))
		return
	}
	m.states[stateKey(p, username)] = s
}

func stateKey(p internal.Provider, username string) string {
	return fmt.Sprintf("%s/%s/%s", p.Family(), p.String(), username)
}

// Login links one account. Retailer logins may surface a verification
// challenge through the presenter; a LINK_CONFLICT from the engine triggers an
// unlink-and-retry exactly once.
func (m *Manager) Login(ctx context.Context, creds Credentials) (internal.Account, error) {
	if creds.Provider == nil {
		return internal.Account{}, internal.NewError(internal.KindNoCredentials, "provider is required")
	}
	if creds.Username == "" || creds.Password == "" {
		return internal.Account{}, internal.NewError(internal.KindNoCredentials, "username and password are required")
	}

	switch p := creds.Provider.(type) {
	case provider.Retailer:
		return m.loginRetailer(ctx, p, creds)
	case provider.Email:
		return m.loginEmail(ctx, p, creds)
	default:
		return internal.Account{}, internal.Errorf(internal.KindUnsupportedProvider, "unknown provider type %T", creds.Provider)
	}
}

func (m *Manager) loginEmail(ctx context.Context, p provider.Email, creds Credentials) (internal.Account, error) {
	mb, ok := m.mailboxes[p]
	if !ok {
		return internal.Account{}, internal.Errorf(internal.KindUnsupportedProvider, "no mailbox engine for %s", p)
	}
	if err := mb.Login(ctx, creds.Username, creds.Password); err != nil {
		return internal.Account{}, internal.AsError(err, internal.KindInvalidCredentials)
	}
	m.log.Info("mailbox linked", zap.String("provider", p.String()), zap.String("username", creds.Username))
	return internal.Account{Provider: p, Username: creds.Username, Verified: true}, nil
}

func (m *Manager) loginRetailer(ctx context.Context, r provider.Retailer, creds Credentials) (internal.Account, error) {
	if m.linking == nil {
		return internal.Account{}, internal.NewError(internal.KindNotInitialized, "no linking engine configured")
	}
	if m.registry.Held(internal.OpVerification) {
		return internal.Account{}, internal.NewError(internal.KindVerificationPending, "another verification is in progress")
	}

	m.setState(r, creds.Username, StateLinkRequested)

	err := m.linking.Link(ctx, r, creds.Username, creds.Password)
	if err != nil && internal.KindOf(err) == internal.KindLinkConflict {
		// A stale link for this retailer blocks the new one. Clear it and
		// retry once; a second conflict is surfaced.
		m.log.Warn("link conflict, retrying after unlink", zap.String("retailer", r.String()))
		if uerr := m.linking.Unlink(ctx, r); uerr != nil {
			m.setState(r, creds.Username, StateLinkConflict)
			return internal.Account{}, internal.AsError(uerr, internal.KindEngineInternal)
		}
		err = m.linking.Link(ctx, r, creds.Username, creds.Password)
	}
	if err != nil {
		if internal.KindOf(err) == internal.KindLinkConflict {
			m.setState(r, creds.Username, StateLinkConflict)
		} else {
			m.setState(r, creds.Username, StateUnlinked)
		}
		return internal.Account{}, internal.AsError(err, internal.KindInvalidCredentials)
	}

	account, err := m.verify(ctx, r, creds.Username)
	if err != nil {
		return internal.Account{}, err
	}
	return account, nil
}

func (m *Manager) verify(ctx context.Context, r provider.Retailer, username string) (internal.Account, error) {
	vctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates, err := m.linking.Verify(vctx, r)
	if err != nil {
		m.setState(r, username, StateUnlinked)
		return internal.Account{}, internal.AsError(err, internal.KindEngineInternal)
	}

	account := internal.Account{Provider: r, Username: username}
	for update := range updates {
		switch {
		case update.Err != nil:
			m.setState(r, username, StateUnlinked)
			return internal.Account{}, internal.AsError(update.Err, internal.KindInvalidCredentials)

		case update.Status == engine.VerifyNeeded:
			if err := m.present(ctx, r, username, update.Challenge); err != nil {
				// The engine may still be mid round-trip. Cancel it and
				// drain the channel so its sender is never left blocked.
				cancel()
				go func() {
					for range updates {
					}
				}()
				return internal.Account{}, err
			}

		case update.Status == engine.VerifyLinked, update.Status == engine.VerifyCompleted:
			account.Verified = true
		}
	}

	if !account.Verified {
		m.setState(r, username, StateUnlinked)
		return internal.Account{}, internal.NewError(internal.KindEngineInternal, "verification ended without a result")
	}
	m.setState(r, username, StateVerified)
	m.log.Info("retailer linked", zap.String("retailer", r.String()), zap.String("username", username))
	return account, nil
}

func (m *Manager) present(ctx context.Context, r provider.Retailer, username string, c engine.Challenge) error {
	if !m.registry.Acquire(internal.OpVerification) {
		m.setState(r, username, StateUnlinked)
		return internal.NewError(internal.KindVerificationPending, "another verification is in progress")
	}
	defer m.registry.Release(internal.OpVerification)
	defer m.presenter.Dismiss()

	m.setState(r, username, StateVerificationPending)
	if err := m.presenter.Present(ctx, c); err != nil {
		m.setState(r, username, StateUnlinked)
		return internal.AsError(err, internal.KindVerificationCancelled)
	}
	return nil
}

// Logout unlinks one account, or every account of both families when account
// is nil. Retailer logout also clears the engine's scan-history checkpoint so
// a relink starts fresh.
func (m *Manager) Logout(ctx context.Context, account *internal.Account) error {
	if account == nil {
		return m.logoutAll(ctx)
	}

	switch p := account.Provider.(type) {
	case provider.Retailer:
		if m.linking == nil {
			return internal.NewError(internal.KindNotInitialized, "no linking engine configured")
		}
		if err := m.linking.Unlink(ctx, p); err != nil {
			return internal.AsError(err, internal.KindEngineInternal)
		}
		if err := m.linking.ResetHistory(ctx, &p); err != nil {
			return internal.AsError(err, internal.KindEngineInternal)
		}
		m.setState(p, account.Username, StateUnlinked)
		return nil
	case provider.Email:
		mb, ok := m.mailboxes[p]
		if !ok {
			return internal.Errorf(internal.KindUnsupportedProvider, "no mailbox engine for %s", p)
		}
		if err := mb.Logout(ctx, account.Username); err != nil {
			return internal.AsError(err, internal.KindEngineInternal)
		}
		return nil
	default:
		return internal.Errorf(internal.KindUnsupportedProvider, "unknown provider type %T", account.Provider)
	}
}

func (m *Manager) logoutAll(ctx context.Context) error {
	if m.linking != nil {
		if err := m.linking.UnlinkAll(ctx); err != nil {
			return internal.AsError(err, internal.KindEngineInternal)
		}
		if err := m.linking.ResetHistory(ctx, nil); err != nil {
			return internal.AsError(err, internal.KindEngineInternal)
		}
	}
	for _, mb := range m.mailboxes {
		if err := mb.Logout(ctx, ""); err != nil {
			return internal.AsError(err, internal.KindEngineInternal)
		}
	}
	m.mu.Lock()
	m.states = make(map[string]State)
	m.mu.Unlock()
	return nil
}

// Accounts is a live projection from the engines; nothing is read from local
// state, so externally unlinked accounts disappear immediately.
func (m *Manager) Accounts(ctx context.Context) ([]internal.Account, error) {
	out := []internal.Account{}

	if m.linking != nil {
		connections, err := m.linking.Linked(ctx)
		if err != nil {
			return nil, internal.AsError(err, internal.KindEngineInternal)
		}
		for _, c := range connections {
			out = append(out, internal.Account{Provider: c.Retailer, Username: c.Username, Verified: true})
		}
	}

	for _, mb := range m.mailboxes {
		accounts, err := mb.Linked(ctx)
		if err != nil {
			return nil, internal.AsError(err, internal.KindEngineInternal)
		}
		out = append(out, accounts...)
	}
	return out, nil
}

// Mailboxes exposes the configured mailbox engines keyed by provider.
func (m *Manager) Mailboxes() map[provider.Email]engine.MailboxEngine {
	return m.mailboxes
}
