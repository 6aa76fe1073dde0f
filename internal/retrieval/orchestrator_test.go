package retrieval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capture/internal"
	"capture/internal/config"
	"capture/internal/engine"
	"capture/internal/provider"
	"capture/internal/receipt"
)

type fakeCamera struct {
	status     engine.AuthStatus
	grant      bool
	requestErr error
	requested  bool
	result     *engine.ScanResults
	cancelled  bool
	captureErr error
	started    chan struct{}
	proceed    chan struct{}
}

func (f *fakeCamera) AuthorizationStatus(ctx context.Context) engine.AuthStatus { return f.status }

func (f *fakeCamera) RequestAuthorization(ctx context.Context) (bool, error) {
	f.requested = true
	return f.grant, f.requestErr
}

func (f *fakeCamera) StartCapture(ctx context.Context) (*engine.ScanResults, bool, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.proceed != nil {
		<-f.proceed
	}
	return f.result, f.cancelled, f.captureErr
}

type fakeLinking struct {
	connections []engine.Connection
	pages       map[provider.Retailer][]engine.OrderPage
}

func (f *fakeLinking) Link(ctx context.Context, r provider.Retailer, u, p string) error { return nil }
func (f *fakeLinking) Unlink(ctx context.Context, r provider.Retailer) error            { return nil }
func (f *fakeLinking) UnlinkAll(ctx context.Context) error                              { return nil }
func (f *fakeLinking) ResetHistory(ctx context.Context, r *provider.Retailer) error     { return nil }

func (f *fakeLinking) Verify(ctx context.Context, r provider.Retailer) (<-chan engine.VerifyUpdate, error) {
	ch := make(chan engine.VerifyUpdate)
	close(ch)
	return ch, nil
}

func (f *fakeLinking) Linked(ctx context.Context) ([]engine.Connection, error) {
	return f.connections, nil
}

func (f *fakeLinking) FetchOrders(ctx context.Context, r provider.Retailer) (<-chan engine.OrderPage, error) {
	pages := f.pages[r]
	ch := make(chan engine.OrderPage, len(pages))
	for _, p := range pages {
		ch <- p
	}
	close(ch)
	return ch, nil
}

type fakeMailbox struct {
	p        provider.Email
	accounts []internal.Account
	items    []engine.SweepItem
	sweepErr error

	mu      sync.Mutex
	cutoffs []int
}

func (f *fakeMailbox) Provider() provider.Email                               { return f.p }
func (f *fakeMailbox) Login(ctx context.Context, u, p string) error           { return nil }
func (f *fakeMailbox) Logout(ctx context.Context, u string) error             { return nil }
func (f *fakeMailbox) Linked(ctx context.Context) ([]internal.Account, error) { return f.accounts, nil }

func (f *fakeMailbox) Sweep(ctx context.Context, username string, dayCutoff int) (<-chan engine.SweepItem, error) {
	f.mu.Lock()
	f.cutoffs = append(f.cutoffs, dayCutoff)
	f.mu.Unlock()
	if f.sweepErr != nil {
		return nil, f.sweepErr
	}
	ch := make(chan engine.SweepItem, len(f.items))
	for _, it := range f.items {
		ch <- it
	}
	close(ch)
	return ch, nil
}

type memCheckpoints struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func newMemCheckpoints() *memCheckpoints { return &memCheckpoints{last: map[string]time.Time{}} }

func (m *memCheckpoints) LastSweep(key string) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.last[key]; ok {
		return &t, nil
	}
	return nil, nil
}

func (m *memCheckpoints) SetLastSweep(key string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last[key] = at
	return nil
}

type fakeSink struct {
	mu       sync.Mutex
	received []*receipt.Receipt
}

func (f *fakeSink) Submit(r *receipt.Receipt) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, r)
}

func rawWithMerchant(name string) *engine.ScanResults {
	return &engine.ScanResults{MerchantName: &engine.StringField{Value: name}}
}

func TestScanDeliversOneReceipt(t *testing.T) {
	camera := &fakeCamera{status: engine.AuthGranted, result: rawWithMerchant("Target")}
	sink := &fakeSink{}
	o := New(testConfig(), Deps{Camera: camera, Sink: sink})

	receipts, errs := o.Scan(context.Background()).Collect()
	require.Len(t, receipts, 1)
	assert.Equal(t, "Target", receipts[0].MerchantName.Value)
	assert.Empty(t, errs)
	assert.Len(t, sink.received, 1)
}

func TestScanRequestsAuthorizationWhenUndetermined(t *testing.T) {
	camera := &fakeCamera{status: engine.AuthUndetermined, grant: true, result: rawWithMerchant("Costco")}
	o := New(testConfig(), Deps{Camera: camera})

	receipts, errs := o.Scan(context.Background()).Collect()
	assert.True(t, camera.requested)
	require.Len(t, receipts, 1)
	assert.Empty(t, errs)
}

func TestScanPermissionDenied(t *testing.T) {
	camera := &fakeCamera{status: engine.AuthDenied}
	o := New(testConfig(), Deps{Camera: camera})

	receipts, errs := o.Scan(context.Background()).Collect()
	assert.Empty(t, receipts)
	require.Len(t, errs, 1)
	assert.Equal(t, internal.KindPermissionDenied, errs[0].Kind)
}

func TestScanCancelledCompletesSilently(t *testing.T) {
	camera := &fakeCamera{status: engine.AuthGranted, cancelled: true}
	o := New(testConfig(), Deps{Camera: camera})

	receipts, errs := o.Scan(context.Background()).Collect()
	assert.Empty(t, receipts)
	assert.Empty(t, errs)
}

func TestScanSlotIsExclusive(t *testing.T) {
	camera := &fakeCamera{
		status:  engine.AuthGranted,
		result:  rawWithMerchant("Kroger"),
		started: make(chan struct{}),
		proceed: make(chan struct{}),
	}
	o := New(testConfig(), Deps{Camera: camera})

	first := o.Scan(context.Background())
	<-camera.started

	_, errs := o.Scan(context.Background()).Collect()
	require.Len(t, errs, 1)
	assert.Equal(t, internal.KindScanInProgress, errs[0].Kind)

	close(camera.proceed)
	receipts, _ := first.Collect()
	assert.Len(t, receipts, 1)

	// Slot is free again after completion.
	camera.started, camera.proceed = nil, nil
	receipts, errs = o.Scan(context.Background()).Collect()
	assert.Len(t, receipts, 1)
	assert.Empty(t, errs)
}

func TestScrapeAccountRetailerStopsAtZeroRemaining(t *testing.T) {
	linking := &fakeLinking{pages: map[provider.Retailer][]engine.OrderPage{
		provider.RetailerAmazon: {
			{Order: rawWithMerchant("Amazon one"), Remaining: 1},
			{Order: rawWithMerchant("Amazon two"), Remaining: 0},
		},
	}}
	o := New(testConfig(), Deps{Linking: linking})

	receipts, errs := o.ScrapeAccount(context.Background(), internal.Account{
		Provider: provider.RetailerAmazon, Username: "u",
	}).Collect()
	require.Len(t, receipts, 2)
	assert.Equal(t, "Amazon one", receipts[0].MerchantName.Value)
	assert.Empty(t, errs)
}

func TestScrapeAccountZeroOrders(t *testing.T) {
	linking := &fakeLinking{pages: map[provider.Retailer][]engine.OrderPage{
		provider.RetailerTarget: {{Order: nil, Remaining: 0}},
	}}
	o := New(testConfig(), Deps{Linking: linking})

	receipts, errs := o.ScrapeAccount(context.Background(), internal.Account{
		Provider: provider.RetailerTarget, Username: "u",
	}).Collect()
	assert.Empty(t, receipts)
	assert.Empty(t, errs)
}

func TestScrapeAccountPerPageErrorIsNonTerminal(t *testing.T) {
	linking := &fakeLinking{pages: map[provider.Retailer][]engine.OrderPage{
		provider.RetailerWalmart: {
			{Err: errors.New("order fetch failed")},
			{Order: rawWithMerchant("Walmart"), Remaining: 0},
		},
	}}
	o := New(testConfig(), Deps{Linking: linking})

	receipts, errs := o.ScrapeAccount(context.Background(), internal.Account{
		Provider: provider.RetailerWalmart, Username: "u",
	}).Collect()
	require.Len(t, errs, 1)
	require.Len(t, receipts, 1)
}

func TestScrapeFamilyRetailerCoversAllLinked(t *testing.T) {
	linking := &fakeLinking{
		connections: []engine.Connection{
			{Retailer: provider.RetailerAmazon, Username: "a"},
			{Retailer: provider.RetailerTarget, Username: "t"},
		},
		pages: map[provider.Retailer][]engine.OrderPage{
			provider.RetailerAmazon: {{Order: rawWithMerchant("Amazon"), Remaining: 0}},
			provider.RetailerTarget: {{Order: rawWithMerchant("Target"), Remaining: 0}},
		},
	}
	o := New(testConfig(), Deps{Linking: linking})

	receipts, errs := o.ScrapeFamily(context.Background(), internal.FamilyRetailer).Collect()
	assert.Len(t, receipts, 2)
	assert.Empty(t, errs)
}

func TestScrapeFamilyPaginatingAndEmptyAccounts(t *testing.T) {
	linking := &fakeLinking{
		connections: []engine.Connection{
			{Retailer: provider.RetailerAmazon, Username: "a"},
			{Retailer: provider.RetailerTarget, Username: "t"},
		},
		pages: map[provider.Retailer][]engine.OrderPage{
			provider.RetailerAmazon: {
				{Order: rawWithMerchant("Amazon one"), Remaining: 1},
				{Order: rawWithMerchant("Amazon two"), Remaining: 0},
			},
			provider.RetailerTarget: {{Order: nil, Remaining: 0}},
		},
	}
	o := New(testConfig(), Deps{Linking: linking})

	// The zero-order account contributes nothing; completion still waits on
	// both accounts and the paginated orders arrive in page order.
	receipts, errs := o.ScrapeFamily(context.Background(), internal.FamilyRetailer).Collect()
	require.Len(t, receipts, 2)
	assert.Equal(t, "Amazon one", receipts[0].MerchantName.Value)
	assert.Equal(t, "Amazon two", receipts[1].MerchantName.Value)
	assert.Empty(t, errs)
}

func TestSweepUsesCheckpointCutoff(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	checkpoints := newMemCheckpoints()
	last := now.Add(-72 * time.Hour)
	require.NoError(t, checkpoints.SetLastSweep("sweep", last))

	mb := &fakeMailbox{p: provider.EmailGmail, items: []engine.SweepItem{
		{Result: rawWithMerchant("Ebay")},
	}}
	o := New(testConfig(), Deps{
		Mailboxes:   map[provider.Email]engine.MailboxEngine{provider.EmailGmail: mb},
		Checkpoints: checkpoints,
		Now:         func() time.Time { return now },
	})

	receipts, errs := o.ScrapeAccount(context.Background(), internal.Account{
		Provider: provider.EmailGmail, Username: "u@gmail.com",
	}).Collect()
	require.Len(t, receipts, 1)
	assert.Empty(t, errs)
	assert.Equal(t, []int{3}, mb.cutoffs)

	// Successful sweep advances the checkpoint.
	updated, err := checkpoints.LastSweep("sweep")
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.True(t, updated.Equal(now))
}

func TestSweepWithoutCheckpointUsesMaxWindow(t *testing.T) {
	mb := &fakeMailbox{p: provider.EmailYahoo}
	o := New(testConfig(), Deps{
		Mailboxes:   map[provider.Email]engine.MailboxEngine{provider.EmailYahoo: mb},
		Checkpoints: newMemCheckpoints(),
	})

	o.ScrapeAccount(context.Background(), internal.Account{
		Provider: provider.EmailYahoo, Username: "u@yahoo.com",
	}).Collect()
	assert.Equal(t, []int{15}, mb.cutoffs)
}

func TestSweepItemErrorBlocksCheckpoint(t *testing.T) {
	checkpoints := newMemCheckpoints()
	mb := &fakeMailbox{p: provider.EmailGmail, items: []engine.SweepItem{
		{Result: rawWithMerchant("ok")},
		{Err: errors.New("malformed message")},
	}}
	o := New(testConfig(), Deps{
		Mailboxes:   map[provider.Email]engine.MailboxEngine{provider.EmailGmail: mb},
		Checkpoints: checkpoints,
	})

	receipts, errs := o.ScrapeAccount(context.Background(), internal.Account{
		Provider: provider.EmailGmail, Username: "u@gmail.com",
	}).Collect()
	require.Len(t, receipts, 1)
	require.Len(t, errs, 1)

	last, err := checkpoints.LastSweep("sweep")
	require.NoError(t, err)
	assert.Nil(t, last, "failed sweep must not advance the checkpoint")
}

func TestPerAccountCheckpointKeys(t *testing.T) {
	cfg := testConfig()
	cfg.CheckpointPerAccount = true
	checkpoints := newMemCheckpoints()
	mb := &fakeMailbox{p: provider.EmailGmail}
	o := New(cfg, Deps{
		Mailboxes:   map[provider.Email]engine.MailboxEngine{provider.EmailGmail: mb},
		Checkpoints: checkpoints,
	})

	o.ScrapeAccount(context.Background(), internal.Account{
		Provider: provider.EmailGmail, Username: "a@gmail.com",
	}).Collect()
	last, err := checkpoints.LastSweep("sweep/GMAIL/a@gmail.com")
	require.NoError(t, err)
	assert.NotNil(t, last)
}

func TestScrapeAllCoversBothFamilies(t *testing.T) {
	linking := &fakeLinking{
		connections: []engine.Connection{{Retailer: provider.RetailerCostco, Username: "c"}},
		pages: map[provider.Retailer][]engine.OrderPage{
			provider.RetailerCostco: {{Order: rawWithMerchant("Costco"), Remaining: 0}},
		},
	}
	mb := &fakeMailbox{
		p:        provider.EmailGmail,
		accounts: []internal.Account{{Provider: provider.EmailGmail, Username: "u@gmail.com"}},
		items:    []engine.SweepItem{{Result: rawWithMerchant("Ebay")}},
	}
	o := New(testConfig(), Deps{
		Linking:     linking,
		Mailboxes:   map[provider.Email]engine.MailboxEngine{provider.EmailGmail: mb},
		Checkpoints: newMemCheckpoints(),
	})

	receipts, errs := o.ScrapeAll(context.Background()).Collect()
	assert.Len(t, receipts, 2)
	assert.Empty(t, errs)
}

func TestDayCutoff(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	past := func(d time.Duration) *time.Time {
		t := now.Add(-d)
		return &t
	}

	assert.Equal(t, 15, DayCutoff(nil, now, 15))
	assert.Equal(t, 0, DayCutoff(past(time.Hour), now, 15))
	assert.Equal(t, 3, DayCutoff(past(72*time.Hour), now, 15))
	assert.Equal(t, 15, DayCutoff(past(40*24*time.Hour), now, 15))
	assert.Equal(t, 0, DayCutoff(past(-time.Hour), now, 15), "future checkpoint clamps to zero")
}

func TestDrainCallbacks(t *testing.T) {
	camera := &fakeCamera{status: engine.AuthGranted, result: rawWithMerchant("Aldi")}
	o := New(testConfig(), Deps{Camera: camera})

	var items, completions int
	o.Scan(context.Background()).Drain(Callbacks{
		OnReceipt:  func(*receipt.Receipt) { items++ },
		OnComplete: func() { completions++ },
	})
	assert.Equal(t, 1, items)
	assert.Equal(t, 1, completions)
}

func testConfig() config.Config {
	return config.Config{SweepMaxDays: 15}
}
