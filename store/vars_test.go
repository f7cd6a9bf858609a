package store

import "testing"

func TestSetGetClearVar(t *testing.T) {
	s := openTestStore(t)

	if _, ok, err := s.GetVar("domain", "missing"); err != nil || ok {
		t.Fatalf("GetVar on unset key = (_, %v, %v), want (_, false, nil)", ok, err)
	}
	if err := s.SetVar("domain", "name", "first"); err != nil {
		t.Fatalf("SetVar: %v", err)
	}
	v, ok, err := s.GetVar("domain", "name")
	if err != nil || !ok || v != "first" {
		t.Fatalf("GetVar = (%q, %v, %v), want (first, true, nil)", v, ok, err)
	}

	if err := s.SetVar("domain", "name", "second"); err != nil {
		t.Fatalf("SetVar overwrite: %v", err)
	}
	v, _, _ = s.GetVar("domain", "name")
	if v != "second" {
		t.Fatalf("GetVar after overwrite = %q, want second", v)
	}

	if err := s.ClearVar("domain", "name"); err != nil {
		t.Fatalf("ClearVar: %v", err)
	}
	if _, ok, _ := s.GetVar("domain", "name"); ok {
		t.Fatal("GetVar found a value after ClearVar")
	}
}

func TestDeltaDirectionPolicyDefaultsToReverse(t *testing.T) {
	s := openTestStore(t)
	d, err := s.DeltaDirectionPolicy()
	if err != nil {
		t.Fatalf("DeltaDirectionPolicy: %v", err)
	}
	if d != DeltaReverse {
		t.Errorf("default policy = %q, want %q", d, DeltaReverse)
	}

	if err := s.SetDeltaDirectionPolicy(DeltaForward); err != nil {
		t.Fatalf("SetDeltaDirectionPolicy: %v", err)
	}
	d, err = s.DeltaDirectionPolicy()
	if err != nil {
		t.Fatalf("DeltaDirectionPolicy: %v", err)
	}
	if d != DeltaForward {
		t.Errorf("policy after set = %q, want %q", d, DeltaForward)
	}
}
