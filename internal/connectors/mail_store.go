package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"

	"lotlister/internal"
	"lotlister/internal/storage"
)

// MailStore keeps raw messages on disk, content-addressed, and records them
// in the e-mail table for the inbox processor.
type MailStore struct {
	db         *storage.DB
	rawMailDir string
}

func NewMailStore(db *storage.DB, rawMailDir string) *MailStore {
	return &MailStore{db: db, rawMailDir: rawMailDir}
}

// Store writes msg under its sha256 and upserts its e-mail row. A message
// already seen keeps its processing status.
func (s *MailStore) Store(msg internal.FetchedMailMessage) (internal.EmailRow, bool, error) {
	sum := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(sum[:])

	existing, err := s.db.GetEmailByProviderMessageID(msg.Provider, msg.MessageID)
	if err != nil {
		return internal.EmailRow{}, false, err
	}
	if existing != nil && existing.Hash == hash {
		return *existing, false, nil
	}

	if err := os.MkdirAll(s.rawMailDir, 0o755); err != nil {
		return internal.EmailRow{}, false, err
	}
	rawPath := filepath.Join(s.rawMailDir, hash+".eml")
	if _, err := os.Stat(rawPath); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(rawPath, msg.Raw, 0o644); err != nil {
			return internal.EmailRow{}, false, err
		}
	}

	row, err := s.db.UpsertEmail(msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, rawPath, "fetched")
	return row, true, err
}
