package certs

import (
	"path/filepath"
	"testing"

	"github.com/dscherger/monotone-sub002/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.mtn"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBumpEpochThenGetEpoch(t *testing.T) {
	s := openTestStore(t)

	if _, ok, err := GetEpoch(s, "mainline"); err != nil || ok {
		t.Fatalf("GetEpoch before any bump = (_, %v, %v), want (_, false, nil)", ok, err)
	}

	epoch, err := BumpEpoch(s, "mainline")
	if err != nil {
		t.Fatalf("BumpEpoch: %v", err)
	}
	if len(epoch) != 32 {
		t.Fatalf("BumpEpoch produced a %d-byte token, want 32", len(epoch))
	}

	got, ok, err := GetEpoch(s, "mainline")
	if err != nil || !ok {
		t.Fatalf("GetEpoch after bump = (_, %v, %v), want (_, true, nil)", ok, err)
	}
	if string(got) != string(epoch) {
		t.Fatal("GetEpoch did not return the token BumpEpoch just set")
	}
}

func TestBumpEpochChangesToken(t *testing.T) {
	s := openTestStore(t)
	first, err := BumpEpoch(s, "mainline")
	if err != nil {
		t.Fatalf("BumpEpoch: %v", err)
	}
	second, err := BumpEpoch(s, "mainline")
	if err != nil {
		t.Fatalf("BumpEpoch: %v", err)
	}
	if string(first) == string(second) {
		t.Fatal("two successive BumpEpoch calls produced the same token")
	}
}
