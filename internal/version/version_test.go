package version

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFrom(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "version.json")
	if err := os.WriteFile(path, []byte(`{"version":"1.2.3","build_date":"2026-08-20"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	info := loadFrom(path)
	if info.Version != "1.2.3" {
		t.Errorf("Version = %q", info.Version)
	}
	if info.BuildDate != "2026-08-20" {
		t.Errorf("BuildDate = %q", info.BuildDate)
	}
}

func TestLoadFromMissingFile(t *testing.T) {
	info := loadFrom(filepath.Join(t.TempDir(), "nope.json"))
	if info.Version != "0.0.0" {
		t.Errorf("Version = %q, want fallback", info.Version)
	}
}

func TestLoadFromBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "version.json")
	if err := os.WriteFile(path, []byte(`{`), 0o644); err != nil {
		t.Fatal(err)
	}
	if info := loadFrom(path); info.Version != "0.0.0" {
		t.Errorf("Version = %q, want fallback", info.Version)
	}
}
