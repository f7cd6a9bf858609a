// Package vocab defines the strongly typed identifier and path vocabulary
// shared by every other package in the engine: content hashes, node ids,
// and the several flavors of filesystem path. Keeping these as distinct
// types (instead of passing raw []byte or string around) prevents a
// manifest id from being handed to a function expecting a revision id.
package vocab

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// IDSize is the width in bytes of every content identifier in the system.
const IDSize = sha1.Size

// rawID is the shared representation behind every *ID type below. It is
// deliberately unexported so the distinct ID types cannot be assigned to
// one another without an explicit conversion.
type rawID [IDSize]byte

func (r rawID) String() string {
	return hex.EncodeToString(r[:])
}

func (r rawID) IsNull() bool {
	return r == rawID{}
}

func parseRaw(s string) (rawID, error) {
	var r rawID
	b, err := hex.DecodeString(s)
	if err != nil {
		return r, fmt.Errorf("vocab: decoding hex id %q: %w", s, err)
	}
	if len(b) != IDSize {
		return r, fmt.Errorf("vocab: id %q has %d bytes, want %d", s, len(b), IDSize)
	}
	copy(r[:], b)
	return r, nil
}

func hashRaw(data []byte) rawID {
	return sha1.Sum(data)
}

// FileID identifies file content by the SHA-1 of its bytes.
type FileID rawID

func HashFileContent(data []byte) FileID { return FileID(hashRaw(data)) }
func ParseFileID(s string) (FileID, error) {
	r, err := parseRaw(s)
	return FileID(r), err
}
func (id FileID) String() string { return rawID(id).String() }
func (id FileID) IsNull() bool   { return rawID(id).IsNull() }
func (id FileID) Bytes() []byte  { b := id; return b[:] }

// ManifestID identifies a roster's public (marking-less) serialization.
type ManifestID rawID

func HashManifest(data []byte) ManifestID { return ManifestID(hashRaw(data)) }
func ParseManifestID(s string) (ManifestID, error) {
	r, err := parseRaw(s)
	return ManifestID(r), err
}
func (id ManifestID) String() string { return rawID(id).String() }
func (id ManifestID) IsNull() bool   { return rawID(id).IsNull() }
func (id ManifestID) Bytes() []byte  { b := id; return b[:] }

// RevisionID identifies a revision by the SHA-1 of its serialization.
type RevisionID rawID

// NullRevisionID is the synthetic parent of every root revision.
var NullRevisionID RevisionID

func HashRevision(data []byte) RevisionID { return RevisionID(hashRaw(data)) }
func ParseRevisionID(s string) (RevisionID, error) {
	r, err := parseRaw(s)
	return RevisionID(r), err
}
func (id RevisionID) String() string { return rawID(id).String() }
func (id RevisionID) IsNull() bool   { return rawID(id).IsNull() }
func (id RevisionID) Bytes() []byte  { b := id; return b[:] }

// CertHash identifies a cert by the SHA-1 of its signed fields
// (revision id, name, value, key id), so the same assertion signed twice
// by the same key collapses to one row instead of duplicating.
type CertHash rawID

func HashCert(data []byte) CertHash { return CertHash(hashRaw(data)) }
func ParseCertHash(s string) (CertHash, error) {
	r, err := parseRaw(s)
	return CertHash(r), err
}
func (id CertHash) String() string { return rawID(id).String() }
func (id CertHash) IsNull() bool   { return rawID(id).IsNull() }
func (id CertHash) Bytes() []byte  { b := id; return b[:] }

// KeyID identifies a public key by the SHA-1 of its serialized bytes.
type KeyID rawID

func HashKey(data []byte) KeyID { return KeyID(hashRaw(data)) }
func ParseKeyID(s string) (KeyID, error) {
	r, err := parseRaw(s)
	return KeyID(r), err
}
func (id KeyID) String() string { return rawID(id).String() }
func (id KeyID) IsNull() bool   { return rawID(id).IsNull() }
func (id KeyID) Bytes() []byte  { b := id; return b[:] }
