package store

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.mtn")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenInstallsSchemaAndCreatorCode(t *testing.T) {
	s := openTestStore(t)
	info, err := s.Info()
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Creator != creatorCode {
		t.Errorf("Creator = %q, want %q", info.Creator, creatorCode)
	}
	if info.SchemaVersion != schemaVersion {
		t.Errorf("SchemaVersion = %q, want %q", info.SchemaVersion, schemaVersion)
	}
}

func TestOpenRejectsForeignCreator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.mtn")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SetVar("core", "creator", "some-other-tool"); err != nil {
		t.Fatalf("SetVar: %v", err)
	}
	s.Close()

	if _, err := Open(path); err == nil {
		t.Fatal("Open succeeded against a database stamped with a foreign creator code")
	}
}

func TestOpenReopenPreservesState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.mtn")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SetVar("test", "key", "value"); err != nil {
		t.Fatalf("SetVar: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	v, ok, err := s2.GetVar("test", "key")
	if err != nil {
		t.Fatalf("GetVar: %v", err)
	}
	if !ok || v != "value" {
		t.Errorf("GetVar after reopen = (%q, %v), want (%q, true)", v, ok, "value")
	}
}
