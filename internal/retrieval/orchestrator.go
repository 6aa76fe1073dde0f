// Package retrieval runs the four receipt-retrieval operations: camera scan,
// scrape by family, scrape by account, and scrape-all. Every operation
// returns a Stream; failures surface as stream events so completion is
// guaranteed even when nothing could be retrieved.
package retrieval

import (
	"context"
	"time"

	"go.uber.org/zap"

	"capture/internal"
	"capture/internal/config"
	"capture/internal/engine"
	"capture/internal/normalize"
	"capture/internal/provider"
	"capture/internal/receipt"
)

// Checkpoints records when a mailbox was last swept successfully.
type Checkpoints interface {
	LastSweep(key string) (*time.Time, error)
	SetLastSweep(key string, at time.Time) error
}

// Archive persists normalized receipts locally. Optional.
type Archive interface {
	SaveReceipt(r *receipt.Receipt) error
}

// Sink receives every normalized receipt, fire-and-forget. Optional.
type Sink interface {
	Submit(r *receipt.Receipt)
}

// Deps are the orchestrator's collaborators. Camera, Archive, and Sink may be
// nil; operations that need a missing one fail with not_initialized.
type Deps struct {
	Camera      engine.CameraEngine
	Linking     engine.LinkingEngine
	Mailboxes   map[provider.Email]engine.MailboxEngine
	Checkpoints Checkpoints
	Archive     Archive
	Sink        Sink
	Registry    *internal.Registry
	Log         *zap.Logger
	Now         func() time.Time
}

type Orchestrator struct {
	cfg  config.Config
	deps Deps
}

func New(cfg config.Config, deps Deps) *Orchestrator {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Registry == nil {
		deps.Registry = internal.NewRegistry()
	}
	return &Orchestrator{cfg: cfg, deps: deps}
}

// Scan runs one camera capture. The scan slot is process-exclusive; a scan
// started while another is in flight completes immediately with a
// scan_in_progress error event.
func (o *Orchestrator) Scan(ctx context.Context) *Stream {
	s := newStream()
	go func() {
		defer s.close()

		if o.deps.Camera == nil {
			s.error(internal.NewError(internal.KindNotInitialized, "no camera engine configured"))
			return
		}
		if !o.deps.Registry.Acquire(internal.OpPhysicalScan) {
			s.error(internal.NewError(internal.KindScanInProgress, "a scan is already in progress"))
			return
		}
		defer o.deps.Registry.Release(internal.OpPhysicalScan)

		if !o.ensureCameraAccess(ctx, s) {
			return
		}

		raw, cancelled, err := o.deps.Camera.StartCapture(ctx)
		if cancelled {
			// User backed out: no item, no error, completion only.
			return
		}
		if err != nil {
			s.error(internal.AsError(err, internal.KindEngineInternal))
			return
		}
		o.deliver(s, raw)
	}()
	return s
}

func (o *Orchestrator) ensureCameraAccess(ctx context.Context, s *Stream) bool {
	status := o.deps.Camera.AuthorizationStatus(ctx)
	if status == engine.AuthUndetermined {
		granted, err := o.deps.Camera.RequestAuthorization(ctx)
		if err != nil {
			s.error(internal.AsError(err, internal.KindEngineInternal))
			return false
		}
		if granted {
			return true
		}
		status = engine.AuthDenied
	}
	if status != engine.AuthGranted {
		s.error(internal.NewError(internal.KindPermissionDenied, "camera access denied"))
		return false
	}
	return true
}

// ScrapeAccount retrieves order history for one linked account.
func (o *Orchestrator) ScrapeAccount(ctx context.Context, account internal.Account) *Stream {
	s := newStream()
	go func() {
		defer s.close()
		switch p := account.Provider.(type) {
		case provider.Retailer:
			o.scrapeRetailer(ctx, s, p)
		case provider.Email:
			o.sweepMailbox(ctx, s, p, account.Username)
		default:
			s.error(internal.Errorf(internal.KindUnsupportedProvider, "unknown provider type %T", account.Provider))
		}
	}()
	return s
}

// ScrapeFamily retrieves from every linked account of one family.
func (o *Orchestrator) ScrapeFamily(ctx context.Context, family internal.Family) *Stream {
	s := newStream()
	go func() {
		defer s.close()
		o.scrapeFamily(ctx, s, family)
	}()
	return s
}

// ScrapeAll retrieves from every linked account of both families.
func (o *Orchestrator) ScrapeAll(ctx context.Context) *Stream {
	s := newStream()
	go func() {
		defer s.close()
		o.scrapeFamily(ctx, s, internal.FamilyRetailer)
		o.scrapeFamily(ctx, s, internal.FamilyEmail)
	}()
	return s
}

func (o *Orchestrator) scrapeFamily(ctx context.Context, s *Stream, family internal.Family) {
	switch family {
	case internal.FamilyRetailer:
		if o.deps.Linking == nil {
			s.error(internal.NewError(internal.KindNotInitialized, "no linking engine configured"))
			return
		}
		connections, err := o.deps.Linking.Linked(ctx)
		if err != nil {
			s.error(internal.AsError(err, internal.KindEngineInternal))
			return
		}
		seen := map[provider.Retailer]bool{}
		for _, c := range connections {
			if seen[c.Retailer] {
				continue
			}
			seen[c.Retailer] = true
			o.scrapeRetailer(ctx, s, c.Retailer)
		}
	case internal.FamilyEmail:
		for _, mb := range o.deps.Mailboxes {
			accounts, err := mb.Linked(ctx)
			if err != nil {
				s.error(internal.AsError(err, internal.KindEngineInternal))
				continue
			}
			for _, account := range accounts {
				o.sweepMailbox(ctx, s, mb.Provider(), account.Username)
			}
		}
	default:
		s.error(internal.Errorf(internal.KindUnsupportedProvider, "unknown family %q", family))
	}
}

// scrapeRetailer drains the engine's order pages for one retailer. The engine
// reports a remaining count on every page; the page channel closes once it
// reaches zero, including the degenerate zero-order page.
func (o *Orchestrator) scrapeRetailer(ctx context.Context, s *Stream, r provider.Retailer) {
	pages, err := o.deps.Linking.FetchOrders(ctx, r)
	if err != nil {
		s.error(internal.AsError(err, internal.KindEngineInternal))
		return
	}
	for page := range pages {
		if page.Err != nil {
			s.error(internal.AsError(page.Err, internal.KindEngineInternal))
			continue
		}
		if page.Order == nil {
			continue
		}
		o.deliver(s, page.Order)
		if page.Remaining == 0 {
			// Drain remaining buffered pages so the producer can exit.
			for range pages {
			}
			return
		}
	}
}

func (o *Orchestrator) sweepMailbox(ctx context.Context, s *Stream, p provider.Email, username string) {
	mb, ok := o.deps.Mailboxes[p]
	if !ok {
		s.error(internal.Errorf(internal.KindUnsupportedProvider, "no mailbox engine for %s", p))
		return
	}

	key := o.checkpointKey(p, username)
	cutoff := o.cfg.SweepMaxDays
	if o.deps.Checkpoints != nil {
		last, err := o.deps.Checkpoints.LastSweep(key)
		if err != nil {
			o.deps.Log.Warn("checkpoint read failed", zap.String("key", key), zap.Error(err))
		} else {
			cutoff = DayCutoff(last, o.deps.Now(), o.cfg.SweepMaxDays)
		}
	}

	items, err := mb.Sweep(ctx, username, cutoff)
	if err != nil {
		s.error(internal.AsError(err, internal.KindEngineInternal))
		return
	}

	swept := true
	for item := range items {
		if item.Err != nil {
			// Per-message failures are non-terminal but block checkpoint
			// advancement, so the failed window is retried next sweep.
			swept = false
			s.error(internal.AsError(item.Err, internal.KindParseFailure))
			continue
		}
		o.deliver(s, item.Result)
	}

	if swept && o.deps.Checkpoints != nil {
		if err := o.deps.Checkpoints.SetLastSweep(key, o.deps.Now()); err != nil {
			o.deps.Log.Warn("checkpoint write failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func (o *Orchestrator) checkpointKey(p provider.Email, username string) string {
	if o.cfg.CheckpointPerAccount {
		return "sweep/" + p.String() + "/" + username
	}
	return "sweep"
}

// DayCutoff bounds a mailbox sweep: the number of days to look back, clamped
// to [0, maxDays]. A missing checkpoint means a full-window sweep.
func DayCutoff(last *time.Time, now time.Time, maxDays int) int {
	if last == nil {
		return maxDays
	}
	days := int(now.Sub(*last).Hours() / 24)
	if days < 0 {
		days = 0
	}
	if days > maxDays {
		days = maxDays
	}
	return days
}

func (o *Orchestrator) deliver(s *Stream, raw *engine.ScanResults) {
	rec, err := normalize.Receipt(raw)
	if err != nil {
		s.error(internal.AsError(err, internal.KindParseFailure))
		return
	}
	if o.deps.Archive != nil {
		if err := o.deps.Archive.SaveReceipt(rec); err != nil {
			o.deps.Log.Warn("archive write failed", zap.Error(err))
		}
	}
	s.receipt(rec)
	if o.deps.Sink != nil {
		o.deps.Sink.Submit(rec)
	}
}
