// Package revision implements the revision type and the revision graph:
// ancestry queries, toposort, and merge-base selection over a DAG of
// revisions identified by vocab.RevisionID.
//
// Grounded on garland's fork/revision model (ForkID, RevisionID,
// ForkRevision composite key, node.go) and its backward-scan-through-history
// technique (snapshotAtWithKey), generalized from a single linear
// per-fork history (one parent per revision) to a general multi-parent
// DAG with a heights column for O(1) ancestor pruning.
package revision

import (
	"github.com/dscherger/monotone-sub002/cset"
	"github.com/dscherger/monotone-sub002/vocab"
)

// Revision is (new_manifest_id, {parent_revision_id -> cset}). A root
// revision has exactly one parent, the null revision id. A merge
// revision has exactly two parents.
type Revision struct {
	NewManifestID vocab.ManifestID
	Parents       map[vocab.RevisionID]*cset.Cset
}

// IsRoot reports whether this revision's only parent is the null
// revision id.
func (r *Revision) IsRoot() bool {
	if len(r.Parents) != 1 {
		return false
	}
	for p := range r.Parents {
		return p == vocab.NullRevisionID
	}
	return false
}

// IsMerge reports whether this revision has two parents.
func (r *Revision) IsMerge() bool { return len(r.Parents) == 2 }

// ParentIDs returns the revision's parent ids in unspecified order.
func (r *Revision) ParentIDs() []vocab.RevisionID {
	ids := make([]vocab.RevisionID, 0, len(r.Parents))
	for p := range r.Parents {
		ids = append(ids, p)
	}
	return ids
}
