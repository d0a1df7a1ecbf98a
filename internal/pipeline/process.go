package pipeline

import (
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"lotlister/internal"
	"lotlister/internal/storage"
)

// ProcessingService turns fetched supplier e-mails into inbox invoices.
type ProcessingService struct {
	db     *storage.DB
	logger *slog.Logger
}

func NewProcessingService(db *storage.DB, logger *slog.Logger) *ProcessingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessingService{db: db, logger: logger}
}

type ProcessResult struct {
	EmailID  int
	Invoices int
	Skipped  bool
}

func (s *ProcessingService) ProcessByProviderMessageID(provider, messageID string) (ProcessResult, error) {
	email, err := s.db.MustEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessEmail(email)
}

// ProcessPending processes up to limit fetched e-mails, optionally only
// those from provider. It returns the e-mail and invoice counts.
func (s *ProcessingService) ProcessPending(limit int, provider string) (int, int, error) {
	pending, err := s.db.ListEmailsByStatus("fetched", limit)
	if err != nil {
		return 0, 0, err
	}
	processedEmails := 0
	extracted := 0
	for _, email := range pending {
		if provider != "" && email.Provider != provider {
			continue
		}
		res, err := s.ProcessEmail(email)
		if err != nil {
			return processedEmails, extracted, err
		}
		processedEmails++
		extracted += res.Invoices
	}
	return processedEmails, extracted, nil
}

func (s *ProcessingService) ProcessEmail(email internal.EmailRow) (ProcessResult, error) {
	start := time.Now()
	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return ProcessResult{}, err
	}

	invoices, subject, text, attachmentNames, err := ExtractInvoicesFromEmailRaw(raw)
	if err != nil {
		return ProcessResult{}, err
	}

	detect := DetectInvoice(firstNonEmpty(subject, email.Subject), text, "", attachmentNames)
	if !detect.IsInvoice || len(invoices) == 0 {
		if err := s.db.UpdateEmailStatus(email.ID, "skipped"); err != nil {
			return ProcessResult{}, err
		}
		s.recordRun(email, start, 0)
		s.logger.Info("inbox.email.skipped", "email_id", email.ID, "score", detect.Score, "invoices", len(invoices))
		return ProcessResult{EmailID: email.ID, Skipped: true}, nil
	}

	for _, inv := range invoices {
		if _, err := s.db.InsertInvoice(internal.InboxInvoice{
			EmailID:      email.ID,
			Filename:     inv.Filename,
			Text:         inv.Text,
			Shipping:     inv.Fields.ShippingTotal,
			InvoiceDate:  inv.Fields.InvoiceDate,
			VendorNumber: inv.Fields.VendorNumber,
		}); err != nil {
			return ProcessResult{}, err
		}
	}

	if err := s.db.UpdateEmailStatus(email.ID, "processed"); err != nil {
		return ProcessResult{}, err
	}
	s.recordRun(email, start, len(invoices))
	s.logger.Info("inbox.email.processed", "email_id", email.ID, "invoices", len(invoices))

	return ProcessResult{EmailID: email.ID, Invoices: len(invoices)}, nil
}

func (s *ProcessingService) recordRun(email internal.EmailRow, start time.Time, invoices int) {
	timings := map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())}
	counts := map[string]int{"emailId": email.ID, "invoices": invoices}
	_ = s.db.InsertRun(uuid.NewString(), "inbox", email.Subject, timings, counts)
}
