// Package engine declares the capability seams this module consumes: the
// camera capture engine, the account-linking engine, the mailbox engines, and
// the identity platform. Implementations live outside the orchestration core
// (the concrete mailbox engines in internal/mailbox, the rest supplied by the
// embedding application).
package engine

import (
	"context"

	"capture/internal"
	"capture/internal/provider"
)

type AuthStatus int

const (
	AuthUndetermined AuthStatus = iota
	AuthGranted
	AuthDenied
)

// CameraEngine performs the optical scan. StartCapture blocks until the user
// finishes, cancels, or the engine fails; a cancelled capture returns
// (nil, true, nil).
type CameraEngine interface {
	AuthorizationStatus(ctx context.Context) AuthStatus
	RequestAuthorization(ctx context.Context) (bool, error)
	StartCapture(ctx context.Context) (result *ScanResults, cancelled bool, err error)
}

// Challenge is an opaque handle for an externally presented verification step
// (CAPTCHA, 2FA). The session layer hands it to a Presenter; it never inspects
// the contents.
type Challenge interface {
	ID() string
}

type VerifyStatus string

const (
	VerifyLinked    VerifyStatus = "linked"
	VerifyNeeded    VerifyStatus = "verification_needed"
	VerifyCompleted VerifyStatus = "verification_completed"
)

// VerifyUpdate is one step of a verification round-trip. A non-nil Err is
// terminal; the channel closes after the terminal update.
type VerifyUpdate struct {
	Status    VerifyStatus
	Challenge Challenge
	Err       error
}

// Connection is one linked retailer account as reported by the engine.
type Connection struct {
	Retailer provider.Retailer
	Username string
}

// OrderPage is one item of a retailer order-history page. Remaining is the
// engine-reported count of still-unfetched items; the page stream for an
// account is exhausted once Remaining reaches zero.
type OrderPage struct {
	Order     *ScanResults
	Remaining int
	Err       error
}

// LinkingEngine manages credential-linked retailer accounts.
type LinkingEngine interface {
	Link(ctx context.Context, r provider.Retailer, username, password string) error
	Verify(ctx context.Context, r provider.Retailer) (<-chan VerifyUpdate, error)
	Unlink(ctx context.Context, r provider.Retailer) error
	UnlinkAll(ctx context.Context) error
	// ResetHistory clears the engine-side scan-history checkpoint; nil resets
	// every retailer.
	ResetHistory(ctx context.Context, r *provider.Retailer) error
	Linked(ctx context.Context) ([]Connection, error)
	FetchOrders(ctx context.Context, r provider.Retailer) (<-chan OrderPage, error)
}

// SweepItem is one raw e-receipt found during a mailbox sweep.
type SweepItem struct {
	Result *ScanResults
	Err    error
}

// MailboxEngine manages one e-mail provider's linked mailboxes. Sweep streams
// raw results bounded by dayCutoff and closes the channel when the mailbox is
// exhausted.
type MailboxEngine interface {
	Provider() provider.Email
	Login(ctx context.Context, username, password string) error
	// Logout with an empty username unlinks every account of this provider.
	Logout(ctx context.Context, username string) error
	Linked(ctx context.Context) ([]internal.Account, error)
	Sweep(ctx context.Context, username string, dayCutoff int) (<-chan SweepItem, error)
}

// IdentityPlatform is the licensing backend, reduced to the two calls this
// module makes.
type IdentityPlatform interface {
	Token(ctx context.Context) (string, error)
	RegisterUser(ctx context.Context, userID string) (licenseID string, err error)
}
