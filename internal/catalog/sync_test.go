package catalog

import (
	"errors"
	"path/filepath"
	"testing"

	"lotlister/internal"
	"lotlister/internal/storage"
)

func TestSyncServiceLoadCachesAndRestores(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	rows := taxonomyRows("10", "Home > Garden > Hoses", "20", "Toys > Cars")
	svc := NewSyncService(db, NewIndex(), nil)

	first, err := svc.Load(rows)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if first.Cached || first.Status.Count != 2 {
		t.Fatalf("unexpected first load: %+v", first)
	}

	second, err := svc.Load(rows)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !second.Cached {
		t.Fatalf("expected identical upload to be served from cache")
	}

	restored := NewSyncService(db, NewIndex(), nil)
	status, err := restored.Restore()
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if status.Count != 2 || status.Fingerprint != first.Status.Fingerprint {
		t.Fatalf("unexpected restored status: %+v", status)
	}
	if got := restored.Index().Match("Garden Hoses"); got.CategoryID != "10" {
		t.Fatalf("expected restored index to classify, got %+v", got)
	}

	again, err := restored.Load(rows)
	if err != nil {
		t.Fatalf("load after restore: %v", err)
	}
	if !again.Cached {
		t.Fatalf("expected restored index to satisfy identical upload")
	}
}

func TestSyncServiceWithoutDB(t *testing.T) {
	svc := NewSyncService(nil, NewIndex(), nil)
	status, err := svc.Restore()
	if err != nil || status.Initialized {
		t.Fatalf("expected empty status, got %+v %v", status, err)
	}
	if _, err := svc.Load(taxonomyRows("1", "Toys")); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func TestSyncServiceEmptyUploadReplacesStoredTaxonomy(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	svc := NewSyncService(db, NewIndex(), nil)
	if _, err := svc.Load(taxonomyRows("10", "Home > Garden > Hoses")); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := svc.Load(taxonomyRows("30", "")); !errors.Is(err, ErrEmptyTaxonomy) {
		t.Fatalf("expected empty taxonomy error, got %v", err)
	}

	nodes, err := db.ListTaxonomy()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(nodes) != 0 {
		t.Fatalf("stored taxonomy not replaced: %+v", nodes)
	}

	restored := NewSyncService(db, NewIndex(), nil)
	if _, err := restored.Restore(); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := restored.Index().Match("Garden Hoses"); got.CategoryID != internal.DefaultCategoryID {
		t.Fatalf("restart brought back replaced taxonomy: %+v", got)
	}
}
