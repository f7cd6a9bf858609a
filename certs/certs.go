// Package certs implements signed name/value assertions about a
// revision and trust aggregation over them. A cert's signature covers a
// canonical encoding of (revision id, name, value, key id); certs never
// touch a private key directly, only a keys.Signer/Verifier.
//
// No teacher analog exists (a rope editor has no certification concept);
// grounded directly on the original's cert shape (revision/name/value/
// key id/signature, as passed around cmd_ws_commit.cc's commit path) and
// on garland's own flat id/content addressing idiom for the Hash method.
package certs

import (
	"bytes"
	"encoding/binary"

	"github.com/dscherger/monotone-sub002/keys"
	"github.com/dscherger/monotone-sub002/vocab"
)

// Cert is a signed name/value assertion about a revision.
type Cert struct {
	RevisionID vocab.RevisionID
	Name       string
	Value      []byte
	KeyID      vocab.KeyID
	Signature  []byte
}

// Hash returns the content address of c's signed fields (not the
// signature itself, so the same assertion re-signed by the same key
// collapses to one row).
func (c Cert) Hash() vocab.CertHash {
	return vocab.HashCert(signedBytes(c.RevisionID, c.Name, c.Value, c.KeyID))
}

func signedBytes(rid vocab.RevisionID, name string, value []byte, keyID vocab.KeyID) []byte {
	var buf bytes.Buffer
	buf.WriteString(rid.String())
	buf.WriteByte(0)
	buf.WriteString(name)
	buf.WriteByte(0)
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(value)))
	buf.Write(n[:])
	buf.Write(value)
	buf.WriteString(keyID.String())
	return buf.Bytes()
}

// Sign builds and signs a cert over (rid, name, value) with signer.
func Sign(signer keys.Signer, rid vocab.RevisionID, name string, value []byte) (Cert, error) {
	payload := signedBytes(rid, name, value, signer.KeyID())
	sig, err := signer.Sign(payload)
	if err != nil {
		return Cert{}, err
	}
	return Cert{RevisionID: rid, Name: name, Value: value, KeyID: signer.KeyID(), Signature: sig}, nil
}

// Verify reports whether c's signature is valid under verifier, which
// must be the Verifier for c.KeyID (callers are responsible for looking
// up the right key; Verify does not consult storage itself).
func Verify(c Cert, verifier keys.Verifier) bool {
	if verifier.KeyID() != c.KeyID {
		return false
	}
	payload := signedBytes(c.RevisionID, c.Name, c.Value, c.KeyID)
	return verifier.Verify(payload, c.Signature)
}

// TrustFunction decides whether a set of certs (all presumed already
// signature-verified) of the same name/value on a revision should be
// considered trusted. Injected rather than hardcoded since trust policy
// (how many distinct keys, which keys, quorum vs. any-one) is a project
// decision this engine does not make on the caller's behalf.
type TrustFunction func(certs []Cert) bool

// TrustAny accepts the assertion if at least one verified cert supports
// it — the simplest policy, and a reasonable default for a
// single-committer repository.
func TrustAny(certs []Cert) bool { return len(certs) > 0 }

// TrustQuorum returns a TrustFunction requiring at least n distinct
// signing keys among certs.
func TrustQuorum(n int) TrustFunction {
	return func(certs []Cert) bool {
		seen := make(map[vocab.KeyID]bool)
		for _, c := range certs {
			seen[c.KeyID] = true
		}
		return len(seen) >= n
	}
}

// ResolveNameValue filters certs down to those of the given name whose
// signature verifies under lookupKey, groups them by value, and reports
// which values (if any) the trust function accepts. A well-formed
// repository has exactly one trusted value per (revision, name); a
// caller that gets back more than one entry is looking at a genuine
// disagreement between signers.
func ResolveNameValue(all []Cert, name string, lookupKey func(vocab.KeyID) (keys.Verifier, error), trust TrustFunction) map[string][]Cert {
	byValue := make(map[string][]Cert)
	for _, c := range all {
		if c.Name != name {
			continue
		}
		verifier, err := lookupKey(c.KeyID)
		if err != nil {
			continue
		}
		if !Verify(c, verifier) {
			continue
		}
		byValue[string(c.Value)] = append(byValue[string(c.Value)], c)
	}
	trusted := make(map[string][]Cert)
	for value, group := range byValue {
		if trust == nil || trust(group) {
			trusted[value] = group
		}
	}
	return trusted
}
