// Package daemon runs the periodic scrape-all loop: every interval, pull from
// all linked accounts, archive, and publish.
package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"capture/internal"
	"capture/internal/config"
	"capture/internal/receipt"
	"capture/internal/retrieval"
)

type Service struct {
	cfg          config.Config
	orchestrator *retrieval.Orchestrator
	log          *zap.Logger
}

func NewService(cfg config.Config, orchestrator *retrieval.Orchestrator, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{cfg: cfg, orchestrator: orchestrator, log: log}
}

// Run loops until the context is cancelled. Cycle failures never stop the
// loop; they are logged per event and retried next interval.
func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.DaemonIntervalSec) * time.Second
	for {
		s.runCycle(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) {
	started := time.Now()
	var retrieved, failed int

	s.orchestrator.ScrapeAll(ctx).Drain(retrieval.Callbacks{
		OnReceipt: func(r *receipt.Receipt) {
			retrieved++
		},
		OnError: func(err *internal.Error) {
			failed++
			s.log.Warn("retrieval event failed", zap.String("kind", string(err.Kind)), zap.String("message", err.Message))
		},
	})

	s.log.Info("scrape cycle done",
		zap.Int("retrieved", retrieved),
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(started)),
	)
}
