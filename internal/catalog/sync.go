package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"lotlister/internal/storage"
)

const (
	metaFingerprint = "catalog.fingerprint"
	metaBuiltAt     = "catalog.built_at"
)

// LoadResult reports how a taxonomy upload was applied to the index.
type LoadResult struct {
	Status Status
	// Cached is true when the upload matched the index already in memory.
	Cached bool
}

// SyncService keeps the in-memory Index and its persisted copy in step.
// A nil db disables persistence.
type SyncService struct {
	db     *storage.DB
	index  *Index
	logger *slog.Logger
}

func NewSyncService(db *storage.DB, index *Index, logger *slog.Logger) *SyncService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncService{db: db, index: index, logger: logger}
}

func (s *SyncService) Index() *Index {
	return s.index
}

// Load builds the index from taxonomy rows unless the same rows were the
// source of the current index.
func (s *SyncService) Load(rows []map[string]string) (LoadResult, error) {
	fp := fingerprintRows(rows)
	current := s.index.Status()
	if current.Initialized && current.Count > 0 && current.Fingerprint == fp {
		return LoadResult{Status: current, Cached: true}, nil
	}

	// An empty taxonomy still replaces the stored one so a restart does not
	// bring back the upload it superseded.
	status, buildErr := s.index.Build(rows)
	if buildErr != nil && !errors.Is(buildErr, ErrEmptyTaxonomy) {
		return LoadResult{Status: status}, buildErr
	}
	s.logger.Info("catalog.build.ok", "count", status.Count, "build_time", status.BuildTime)

	if err := s.persist(fp, status); err != nil {
		return LoadResult{Status: status}, err
	}
	return LoadResult{Status: status}, buildErr
}

func (s *SyncService) persist(fp string, status Status) error {
	if s.db == nil {
		return nil
	}
	if err := s.db.ReplaceTaxonomy(s.index.Nodes()); err != nil {
		return fmt.Errorf("persist taxonomy: %w", err)
	}
	if err := s.db.SetMetadata(metaFingerprint, fp); err != nil {
		return fmt.Errorf("persist taxonomy fingerprint: %w", err)
	}
	if err := s.db.SetMetadata(metaBuiltAt, status.BuiltAt.Format(time.RFC3339)); err != nil {
		return fmt.Errorf("persist taxonomy build time: %w", err)
	}
	return nil
}

// Restore rebuilds the index from storage when it has not been built in
// this process. It is a no-op when nothing was persisted.
func (s *SyncService) Restore() (Status, error) {
	if current := s.index.Status(); current.Initialized || s.db == nil {
		return current, nil
	}

	nodes, err := s.db.ListTaxonomy()
	if err != nil {
		return Status{}, err
	}
	if len(nodes) == 0 {
		return s.index.Status(), nil
	}

	fp := ""
	if v, err := s.db.GetMetadata(metaFingerprint); err == nil && v != nil {
		fp = *v
	}
	status, err := s.index.BuildNodes(nodes, fp)
	if err != nil {
		return status, err
	}
	s.logger.Info("catalog.restore.ok", "count", status.Count)
	return status, nil
}

// fingerprintRows hashes rows independent of map iteration order.
func fingerprintRows(rows []map[string]string) string {
	h := sha256.New()
	for _, row := range rows {
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			h.Write([]byte(k))
			h.Write([]byte{0})
			h.Write([]byte(strings.TrimSpace(row[k])))
			h.Write([]byte{0})
		}
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
