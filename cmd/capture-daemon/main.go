package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"capture/internal"
	"capture/internal/config"
	"capture/internal/daemon"
	"capture/internal/engine"
	"capture/internal/logging"
	gmailengine "capture/internal/mailbox/gmail"
	imapengine "capture/internal/mailbox/imap"
	"capture/internal/platform"
	"capture/internal/provider"
	"capture/internal/publish"
	"capture/internal/retrieval"
	"capture/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	log := logging.New(cfg.LogFile)
	defer log.Sync()

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	mailboxes := map[provider.Email]engine.MailboxEngine{
		provider.EmailGmail: gmailengine.NewEngine(cfg),
	}
	for _, p := range []provider.Email{provider.EmailYahoo, provider.EmailAOL} {
		e, err := imapengine.NewEngine(p, "", 0, true)
		must(err)
		mailboxes[p] = e
	}
	if strings.TrimSpace(cfg.IMAPHost) != "" {
		e, err := imapengine.NewEngine(provider.EmailCustom, cfg.IMAPHost, cfg.IMAPPort, cfg.IMAPSecure)
		must(err)
		mailboxes[provider.EmailCustom] = e
	}

	publisher := publish.New(cfg, platform.NewClient(cfg), log)
	orchestrator := retrieval.New(cfg, retrieval.Deps{
		Mailboxes:   mailboxes,
		Checkpoints: db,
		Archive:     db,
		Sink:        publisher,
		Registry:    internal.NewRegistry(),
		Log:         log,
	})

	svc := daemon.NewService(cfg, orchestrator, log)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(svc.Run(ctx))
	publisher.Wait()
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
