package listener

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lotlister/internal/config"
	"lotlister/internal/connectors"
	gmailconnector "lotlister/internal/connectors/gmail"
	imapconnector "lotlister/internal/connectors/imap"
	"lotlister/internal/pipeline"
	"lotlister/internal/storage"
)

// Service polls the supplier mailbox and turns new mail into inbox invoices
// that the next listing run can pick up.
type Service struct {
	db      *storage.DB
	cfg     config.Config
	logger  *slog.Logger
	connect func(ctx context.Context, provider string) (connectors.MailConnector, error)
}

type CycleResult struct {
	Provider string
	Fetched  int
	Stored   int
	Emails   int
	Invoices int
}

func NewService(db *storage.DB, cfg config.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{db: db, cfg: cfg, logger: logger}
	s.connect = s.makeConnector
	return s
}

// Run polls until ctx is cancelled. Cycle errors are logged, not fatal.
func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.MailListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("listener.cycle.failed", "err", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// RunOnce fetches one batch of mail and processes everything pending.
func (s *Service) RunOnce(ctx context.Context) (CycleResult, error) {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
	res := CycleResult{Provider: provider}

	conn, err := s.connect(ctx, provider)
	if err != nil {
		return res, err
	}
	fetched, err := connectors.NewFetchService(s.db, s.cfg.RawMailDir, conn, s.logger).
		FetchAndStore(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return res, fmt.Errorf("fetch %s: %w", provider, err)
	}
	res.Fetched, res.Stored = fetched.Fetched, fetched.Stored

	processor := pipeline.NewProcessingService(s.db, s.logger)
	res.Emails, res.Invoices, err = processor.ProcessPending(s.cfg.MailListenerProcessBatch, provider)
	if err != nil {
		return res, err
	}

	s.logger.Info("listener.cycle.ok",
		"provider", provider,
		"fetched", res.Fetched,
		"stored", res.Stored,
		"emails", res.Emails,
		"invoices", res.Invoices,
	)
	return res, nil
}

func (s *Service) makeConnector(ctx context.Context, provider string) (connectors.MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(ctx, s.cfg)
	case "imap":
		return imapconnector.NewConnector(s.cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", provider)
	}
}
