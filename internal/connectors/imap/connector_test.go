package imap

import (
	"testing"
	"time"

	"github.com/emersion/go-imap"

	"lotlister/internal/config"
)

func TestFetchedMessage(t *testing.T) {
	msg := &imap.Message{
		Uid:          42,
		InternalDate: time.Date(2025, 3, 3, 9, 15, 0, 0, time.UTC),
		Envelope: &imap.Envelope{
			Subject: "Invoice INV1",
			From:    []*imap.Address{{PersonalName: "Supplier", MailboxName: "sales", HostName: "supplier.example"}},
		},
	}
	got := fetchedMessage(msg, []byte("raw"))
	if got.MessageID != "imap-42" || got.Provider != "imap" {
		t.Fatalf("got=%+v", got)
	}
	if got.From != "Supplier <sales@supplier.example>" || got.ReceivedAt != "2025-03-03T09:15:00Z" {
		t.Fatalf("got=%+v", got)
	}
}

func TestNewConnectorRequiresCredentials(t *testing.T) {
	if _, err := NewConnector(config.Config{IMAPHost: "mail.example"}); err == nil {
		t.Fatal("expected missing user error")
	}
	c, err := NewConnector(config.Config{IMAPHost: "mail.example", IMAPPort: 993, IMAPUser: "u", IMAPPassword: "p", IMAPSecure: true})
	if err != nil {
		t.Fatal(err)
	}
	if c.addr != "mail.example:993" {
		t.Fatalf("addr=%s", c.addr)
	}
}
