package store

import (
	"testing"

	"github.com/dscherger/monotone-sub002/vocab"
)

func TestPutGetPublicKey(t *testing.T) {
	s := openTestStore(t)
	der := []byte("fake-der-bytes")
	keyID := vocab.HashKey(der)

	if err := s.PutPublicKey(keyID, "alice@example.com", der); err != nil {
		t.Fatalf("PutPublicKey: %v", err)
	}
	got, name, err := s.GetPublicKey(keyID)
	if err != nil {
		t.Fatalf("GetPublicKey: %v", err)
	}
	if string(got) != string(der) || name != "alice@example.com" {
		t.Errorf("GetPublicKey = (%q, %q), want (%q, %q)", got, name, der, "alice@example.com")
	}
}

func TestGetPublicKeyMissing(t *testing.T) {
	s := openTestStore(t)
	if _, _, err := s.GetPublicKey(vocab.HashKey([]byte("nothing"))); err == nil {
		t.Fatal("GetPublicKey succeeded for a key that was never stored")
	}
}

func TestPutCertAndQueryByRevisionAndName(t *testing.T) {
	s := openTestStore(t)
	rid := vocab.HashRevision([]byte("rev"))
	keyID := vocab.HashKey([]byte("key"))
	c := CertRow{
		Hash:       vocab.HashCert([]byte("cert contents")),
		RevisionID: rid,
		Name:       "branch",
		Value:      []byte("mainline"),
		KeyID:      keyID,
		Signature:  []byte("sig"),
	}
	if err := s.PutCert(c); err != nil {
		t.Fatalf("PutCert: %v", err)
	}

	byRev, err := s.CertsForRevision(rid)
	if err != nil {
		t.Fatalf("CertsForRevision: %v", err)
	}
	if len(byRev) != 1 || byRev[0].Hash != c.Hash {
		t.Fatalf("CertsForRevision = %+v, want one cert with hash %v", byRev, c.Hash)
	}

	byName, err := s.CertsByName("branch")
	if err != nil {
		t.Fatalf("CertsByName: %v", err)
	}
	if len(byName) != 1 {
		t.Fatalf("CertsByName = %+v, want one cert", byName)
	}
}

func TestPutCertDuplicateHashIsNoop(t *testing.T) {
	s := openTestStore(t)
	rid := vocab.HashRevision([]byte("rev"))
	c := CertRow{
		Hash:       vocab.HashCert([]byte("dup")),
		RevisionID: rid,
		Name:       "branch",
		Value:      []byte("mainline"),
		KeyID:      vocab.HashKey([]byte("key")),
		Signature:  []byte("sig"),
	}
	if err := s.PutCert(c); err != nil {
		t.Fatalf("PutCert: %v", err)
	}
	if err := s.PutCert(c); err != nil {
		t.Fatalf("PutCert (duplicate): %v", err)
	}
	got, err := s.CertsForRevision(rid)
	if err != nil {
		t.Fatalf("CertsForRevision: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("CertsForRevision after duplicate PutCert = %d rows, want 1", len(got))
	}
}
