package connectors

import (
	"context"
	"log/slog"

	"lotlister/internal/storage"
)

// FetchService pulls new mail from a connector into the raw mail store.
type FetchService struct {
	connector MailConnector
	store     *MailStore
	logger    *slog.Logger
}

type FetchResult struct {
	Fetched int
	Stored  int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector, logger *slog.Logger) *FetchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FetchService{
		connector: connector,
		store:     NewMailStore(db, rawMailDir),
		logger:    logger,
	}
}

func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, err
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		row, stored, err := s.store.Store(msg)
		if err != nil {
			return res, err
		}
		if stored {
			res.Stored++
			s.logger.Debug("mail.stored", "email_id", row.ID, "provider", row.Provider, "subject", row.Subject)
		}
	}
	return res, nil
}
