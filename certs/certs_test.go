package certs

import (
	"testing"

	"github.com/dscherger/monotone-sub002/keys"
	"github.com/dscherger/monotone-sub002/vocab"
)

func mustKey(t *testing.T, name string) *keys.KeyPair {
	t.Helper()
	k, err := keys.Generate(name)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return k
}

func TestSignVerifyRoundTrip(t *testing.T) {
	k := mustKey(t, "alice@example.com")
	rid := vocab.HashRevision([]byte("some revision bytes"))

	c, err := Sign(k, rid, "branch", []byte("mainline"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if c.RevisionID != rid || c.Name != "branch" || string(c.Value) != "mainline" {
		t.Fatalf("cert fields do not match what was signed: %+v", c)
	}
	if !Verify(c, k) {
		t.Fatal("Verify rejected a validly signed cert")
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	signer := mustKey(t, "alice@example.com")
	other := mustKey(t, "mallory@example.com")
	rid := vocab.HashRevision([]byte("some revision bytes"))

	c, err := Sign(signer, rid, "branch", []byte("mainline"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if Verify(c, other) {
		t.Fatal("Verify accepted a cert under the wrong verifier's key")
	}
}

func TestHashStableUnderResign(t *testing.T) {
	k := mustKey(t, "alice@example.com")
	rid := vocab.HashRevision([]byte("some revision bytes"))

	c1, err := Sign(k, rid, "branch", []byte("mainline"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	c2, err := Sign(k, rid, "branch", []byte("mainline"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if c1.Hash() != c2.Hash() {
		t.Fatal("re-signing the same assertion under the same key produced a different hash")
	}
}

func TestTrustQuorum(t *testing.T) {
	k1 := mustKey(t, "a@example.com")
	k2 := mustKey(t, "b@example.com")
	rid := vocab.HashRevision([]byte("rev"))
	c1, _ := Sign(k1, rid, "branch", []byte("mainline"))
	c2, _ := Sign(k2, rid, "branch", []byte("mainline"))

	quorum2 := TrustQuorum(2)
	if quorum2([]Cert{c1}) {
		t.Fatal("quorum of 2 accepted a single signer")
	}
	if !quorum2([]Cert{c1, c2}) {
		t.Fatal("quorum of 2 rejected two distinct signers")
	}
}

func TestResolveNameValue(t *testing.T) {
	k := mustKey(t, "alice@example.com")
	rid := vocab.HashRevision([]byte("rev"))
	c, err := Sign(k, rid, "branch", []byte("mainline"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	lookup := func(id vocab.KeyID) (keys.Verifier, error) { return k, nil }
	resolved := ResolveNameValue([]Cert{c}, "branch", lookup, TrustAny)
	if len(resolved) != 1 || len(resolved["mainline"]) != 1 {
		t.Fatalf("expected one trusted value 'mainline', got %+v", resolved)
	}
}
