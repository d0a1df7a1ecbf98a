package gmail

import (
	"encoding/base64"
	"testing"
)

func TestFetchedFromRawUsesHeaders(t *testing.T) {
	raw := []byte("From: Supplier <sales@supplier.example>\r\n" +
		"Subject: Invoice INV1\r\n" +
		"Message-ID: <inv1@supplier.example>\r\n" +
		"Date: Mon, 03 Mar 2025 09:15:00 +0000\r\n" +
		"Content-Type: text/plain\r\n\r\nbody\r\n")

	msg := fetchedFromRaw("18c0ffee", 0, raw)
	if msg.Provider != "gmail" || msg.MessageID != "<inv1@supplier.example>" {
		t.Fatalf("msg=%+v", msg)
	}
	if msg.Subject != "Invoice INV1" || msg.ReceivedAt != "2025-03-03T09:15:00Z" {
		t.Fatalf("msg=%+v", msg)
	}
}

func TestFetchedFromRawFallsBackToGmailID(t *testing.T) {
	msg := fetchedFromRaw("18c0ffee", 1740993300000, []byte("Content-Type: text/plain\r\n\r\nbody\r\n"))
	if msg.MessageID != "18c0ffee" || msg.ReceivedAt != "2025-03-03T09:15:00Z" {
		t.Fatalf("msg=%+v", msg)
	}
}

func TestDecodeBase64URL(t *testing.T) {
	want := "Subject: hi?>"
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.URLEncoding} {
		got, err := decodeBase64URL(enc.EncodeToString([]byte(want)))
		if err != nil || string(got) != want {
			t.Fatalf("got=%q err=%v", got, err)
		}
	}
	if _, err := decodeBase64URL("***"); err == nil {
		t.Fatal("expected error")
	}
}
