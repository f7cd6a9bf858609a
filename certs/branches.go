package certs

import (
	"crypto/rand"

	"github.com/dscherger/monotone-sub002/errs"
)

// epochStore is the slice of *store.Store this file needs, kept narrow
// so certs does not import store directly (avoiding an import cycle
// should store ever want to depend on certs for trust evaluation).
type epochStore interface {
	GetBranchEpoch(branch string) ([]byte, bool, error)
	SetBranchEpoch(branch string, epoch []byte) error
}

// BranchEpoch is the opaque invalidation token recorded for a branch:
// bumping it signals to a peer on next sync that branch history before
// the bump should not be trusted to merge cleanly with history after it.
// Network sync itself is out of scope here; this only specifies the
// storage contract an eventual sync implementation would rely on.
type BranchEpoch []byte

// GetEpoch returns branch's current epoch token, if one has been set.
func GetEpoch(s epochStore, branch string) (BranchEpoch, bool, error) {
	e, ok, err := s.GetBranchEpoch(branch)
	return BranchEpoch(e), ok, err
}

// BumpEpoch replaces branch's epoch with a fresh random 32-byte token.
func BumpEpoch(s epochStore, branch string) (BranchEpoch, error) {
	epoch := make([]byte, 32)
	if _, err := rand.Read(epoch); err != nil {
		return nil, errs.Wrap(errs.System, "generating branch epoch", err)
	}
	if err := s.SetBranchEpoch(branch, epoch); err != nil {
		return nil, err
	}
	return BranchEpoch(epoch), nil
}
