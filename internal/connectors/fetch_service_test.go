package connectors

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"lotlister/internal"
	"lotlister/internal/storage"
)

type stubConnector struct {
	messages []internal.FetchedMailMessage
}

func (c stubConnector) FetchInbox(_ context.Context, _ string, max int) ([]internal.FetchedMailMessage, error) {
	if len(c.messages) > max {
		return c.messages[:max], nil
	}
	return c.messages, nil
}

func TestFetchAndStoreIsIdempotent(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	conn := stubConnector{messages: []internal.FetchedMailMessage{
		{Provider: "imap", MessageID: "<a@x>", Subject: "Invoice 1", From: "s@x", ReceivedAt: "2025-03-01T00:00:00Z", Raw: []byte("Subject: Invoice 1\r\n\r\nbody one")},
		{Provider: "imap", MessageID: "<b@x>", Subject: "Invoice 2", From: "s@x", ReceivedAt: "2025-03-02T00:00:00Z", Raw: []byte("Subject: Invoice 2\r\n\r\nbody two")},
	}}
	rawDir := filepath.Join(tmp, "raw")
	svc := NewFetchService(db, rawDir, conn, nil)

	res, err := svc.FetchAndStore(context.Background(), "INBOX", 10)
	if err != nil {
		t.Fatal(err)
	}
	if res.Fetched != 2 || res.Stored != 2 {
		t.Fatalf("res=%+v", res)
	}

	email, err := db.MustEmailByProviderMessageID("imap", "<a@x>")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(email.RawRef); err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateEmailStatus(email.ID, "processed"); err != nil {
		t.Fatal(err)
	}

	res, err = svc.FetchAndStore(context.Background(), "INBOX", 10)
	if err != nil {
		t.Fatal(err)
	}
	if res.Fetched != 2 || res.Stored != 0 {
		t.Fatalf("second res=%+v", res)
	}
	again, _ := db.MustEmailByProviderMessageID("imap", "<a@x>")
	if again.Status != "processed" {
		t.Fatalf("status=%s", again.Status)
	}
}
