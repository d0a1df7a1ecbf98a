package listener

import (
	"context"
	"path/filepath"
	"testing"

	"lotlister/internal"
	"lotlister/internal/config"
	"lotlister/internal/connectors"
	"lotlister/internal/storage"
)

type stubConnector struct {
	messages []internal.FetchedMailMessage
}

func (c stubConnector) FetchInbox(context.Context, string, int) ([]internal.FetchedMailMessage, error) {
	return c.messages, nil
}

const invoiceMail = "From: sales@supplier.example\r\n" +
	"Subject: Invoice INV9 for order 77\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n\r\n" +
	"INVOICE INV9\r\nSKU ABC-123 hose £40.00\r\nShipping £5.00\r\nTotal £45.00\r\n"

func TestRunOnceFetchesAndProcesses(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	cfg := config.Config{
		RawMailDir:               filepath.Join(tmp, "raw"),
		MailListenerProvider:     "IMAP",
		MailListenerLabel:        "INBOX",
		MailListenerFetchMax:     10,
		MailListenerProcessBatch: 10,
	}
	svc := NewService(db, cfg, nil)
	svc.connect = func(context.Context, string) (connectors.MailConnector, error) {
		return stubConnector{messages: []internal.FetchedMailMessage{
			{Provider: "imap", MessageID: "<inv9@x>", Subject: "Invoice INV9 for order 77", Raw: []byte(invoiceMail)},
		}}, nil
	}

	res, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Provider != "imap" || res.Stored != 1 || res.Emails != 1 || res.Invoices != 1 {
		t.Fatalf("res=%+v", res)
	}

	res, err = svc.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Stored != 0 || res.Emails != 0 {
		t.Fatalf("second res=%+v", res)
	}
	pending, _ := db.ListInvoicesByStatus("pending", 10)
	if len(pending) != 1 || pending[0].VendorNumber != "INV9" {
		t.Fatalf("pending=%+v", pending)
	}
}

func TestRunOnceUnsupportedProvider(t *testing.T) {
	svc := NewService(nil, config.Config{MailListenerProvider: "pop3"}, nil)
	if _, err := svc.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
