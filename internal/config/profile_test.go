package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadProfileDefaults(t *testing.T) {
	p, err := LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p != DefaultProfile() {
		t.Fatalf("expected defaults, got %+v", p)
	}
}

func TestLoadProfileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	body := "location: Leeds\npostal_code: LS1 1AA\ntitle_budget: 0\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Location != "Leeds" || p.PostalCode != "LS1 1AA" {
		t.Fatalf("overrides not applied: %+v", p)
	}
	if p.TitleBudget != 70 || p.ConditionID != 1500 {
		t.Fatalf("defaults lost: %+v", p)
	}
}

func TestLoadProfileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte("location: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadProfile(path); err == nil {
		t.Fatal("expected parse error")
	}
}
