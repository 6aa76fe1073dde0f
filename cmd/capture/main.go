package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"capture/internal"
	"capture/internal/config"
	"capture/internal/engine"
	"capture/internal/export"
	"capture/internal/logging"
	gmailengine "capture/internal/mailbox/gmail"
	imapengine "capture/internal/mailbox/imap"
	"capture/internal/platform"
	"capture/internal/provider"
	"capture/internal/publish"
	"capture/internal/receipt"
	"capture/internal/retrieval"
	"capture/internal/session"
	"capture/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	log := logging.New(cfg.LogFile)
	defer log.Sync()

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	mailboxes, err := buildMailboxes(cfg)
	must(err)

	registry := internal.NewRegistry()
	manager := session.NewManager(nil, mailboxes, &stdinPresenter{}, registry, log)
	publisher := publish.New(cfg, platform.NewClient(cfg), log)
	orchestrator := retrieval.New(cfg, retrieval.Deps{
		Mailboxes:   manager.Mailboxes(),
		Checkpoints: db,
		Archive:     db,
		Sink:        publisher,
		Registry:    registry,
		Log:         log,
	})

	ctx := context.Background()
	cmd := os.Args[1]
	switch cmd {
	case "login":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		providerName := fs.String("provider", "", "provider name, e.g. GMAIL or TARGET")
		username := fs.String("username", "", "account username")
		password := fs.String("password", "", "account password or app password")
		_ = fs.Parse(os.Args[2:])
		p, err := provider.Parse(*providerName)
		must(err)
		account, err := manager.Login(ctx, session.Credentials{Provider: p, Username: *username, Password: *password})
		must(err)
		fmt.Printf("linked %s account %s verified=%t\n", account.Provider, account.Username, account.Verified)

	case "logout":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		providerName := fs.String("provider", "", "provider name; omit to log out everywhere")
		username := fs.String("username", "", "account username")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*providerName) == "" {
			must(manager.Logout(ctx, nil))
			fmt.Println("logged out of all accounts")
			return
		}
		p, err := provider.Parse(*providerName)
		must(err)
		must(manager.Logout(ctx, &internal.Account{Provider: p, Username: *username}))
		fmt.Printf("logged out of %s account %s\n", p, *username)

	case "accounts":
		accounts, err := manager.Accounts(ctx)
		must(err)
		if len(accounts) == 0 {
			fmt.Println("no linked accounts")
			return
		}
		for _, a := range accounts {
			fmt.Printf("%-8s %-16s %-32s verified=%t\n", a.Provider.Family(), a.Provider, a.Username, a.Verified)
		}

	case "scan":
		drain(orchestrator.Scan(ctx))
		publisher.Wait()

	case "scrape":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		family := fs.String("family", "", "retailer|email; omit with --provider for one account, omit both for all")
		providerName := fs.String("provider", "", "provider of a single account")
		username := fs.String("username", "", "username of a single account")
		_ = fs.Parse(os.Args[2:])
		var stream *retrieval.Stream
		switch {
		case strings.TrimSpace(*providerName) != "":
			p, err := provider.Parse(*providerName)
			must(err)
			stream = orchestrator.ScrapeAccount(ctx, internal.Account{Provider: p, Username: *username})
		case strings.TrimSpace(*family) != "":
			stream = orchestrator.ScrapeFamily(ctx, internal.Family(strings.ToLower(*family)))
		default:
			stream = orchestrator.ScrapeAll(ctx)
		}
		drain(stream)
		publisher.Wait()

	case "register":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		userID := fs.String("user-id", "", "user id to register with the licensing platform")
		_ = fs.Parse(os.Args[2:])
		licenseID, err := platform.NewClient(cfg).RegisterUser(ctx, *userID)
		must(err)
		fmt.Printf("registered user %s license=%s\n", *userID, licenseID)

	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", filepath.Join(cfg.OutputDir, "receipts.xlsx"), "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		rows, err := db.ListReceipts()
		must(err)
		must(export.ReceiptsToXLSX(rows, *out))
		fmt.Printf("exported %d receipts to %s\n", len(rows), *out)

	default:
		usage()
		os.Exit(1)
	}
}

func drain(stream *retrieval.Stream) {
	var items, failures int
	stream.Drain(retrieval.Callbacks{
		OnReceipt: func(r *receipt.Receipt) {
			items++
			merchant := ""
			if r.MerchantName != nil {
				merchant = r.MerchantName.Value
			}
			total := ""
			if r.Total != nil {
				total = fmt.Sprintf("%.2f", r.Total.Value)
			}
			fmt.Printf("receipt merchant=%q total=%s products=%d\n", merchant, total, len(r.Products))
		},
		OnError: func(err *internal.Error) {
			failures++
			fmt.Fprintf(os.Stderr, "event error: %v\n", err)
		},
	})
	fmt.Printf("done items=%d failures=%d\n", items, failures)
}

func buildMailboxes(cfg config.Config) ([]engine.MailboxEngine, error) {
	out := []engine.MailboxEngine{gmailengine.NewEngine(cfg)}

	for _, p := range []provider.Email{provider.EmailYahoo, provider.EmailAOL} {
		e, err := imapengine.NewEngine(p, "", 0, true)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if strings.TrimSpace(cfg.IMAPHost) != "" {
		e, err := imapengine.NewEngine(provider.EmailCustom, cfg.IMAPHost, cfg.IMAPPort, cfg.IMAPSecure)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// stdinPresenter surfaces verification challenges on the terminal and waits
// for the user to complete them out of band.
type stdinPresenter struct{}

func (stdinPresenter) Present(ctx context.Context, c engine.Challenge) error {
	fmt.Printf("verification required (challenge %s); press enter once completed, or ctrl-c to abort\n", c.ID())
	reader := bufio.NewReader(os.Stdin)
	done := make(chan error, 1)
	go func() {
		_, err := reader.ReadString('\n')
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (stdinPresenter) Dismiss() {}

func usage() {
	fmt.Println("usage: capture <command>")
	fmt.Println("commands:")
	fmt.Println("  login --provider=GMAIL|YAHOO|AOL|CUSTOM|<retailer> --username=... --password=...")
	fmt.Println("  logout [--provider=... --username=...]")
	fmt.Println("  accounts")
	fmt.Println("  scan")
	fmt.Println("  scrape [--family=retailer|email] [--provider=... --username=...]")
	fmt.Println("  register --user-id=...")
	fmt.Println("  export:xlsx [--out=./out/receipts.xlsx]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
