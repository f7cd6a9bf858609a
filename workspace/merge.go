package workspace

import (
	"bytes"

	"github.com/dscherger/monotone-sub002/certs"
	"github.com/dscherger/monotone-sub002/cset"
	"github.com/dscherger/monotone-sub002/errs"
	"github.com/dscherger/monotone-sub002/marking"
	"github.com/dscherger/monotone-sub002/merge"
	"github.com/dscherger/monotone-sub002/revision"
	"github.com/dscherger/monotone-sub002/roster"
	"github.com/dscherger/monotone-sub002/store"
	"github.com/dscherger/monotone-sub002/vocab"
)

// placeholderMergeRid stands in for the merge revision's own id while
// merge.Merge computes marks for freshly created or conflicted scalars.
// The real id can only be known once the merged roster's manifest and
// the resulting revision both exist, so every occurrence of this
// placeholder is rewritten to the real id afterward (rekeyMarks) rather
// than re-running the shape merge with the real id, which would mint a
// second, divergent set of fresh node ids.
var placeholderMergeRid = vocab.HashRevision([]byte("workspace-merge-placeholder"))

// Merge three-way merges other into the workspace's currently checked
// out revision. Like the original engine's merge command, a successful
// merge with no unresolved conflicts is committed immediately as a new
// two-parent revision -- there is no intermediate "merged but uncommitted"
// state -- and the workspace is then updated onto it exactly as Update
// would. If merge.Merge reports conflicts, nothing is committed or
// touched on disk; the caller gets the conflicts back to resolve by hand.
//
// Textual file-content conflicts are reported, never auto-resolved: no
// line-level merge algorithm is implemented here, only provenance-based
// roster merge.
func (w *Workspace) Merge(other vocab.RevisionID, opts UpdateOptions) (vocab.RevisionID, []merge.Conflict, []Conflict, error) {
	rev, err := w.PendingRevision()
	if err != nil {
		return vocab.RevisionID{}, nil, nil, err
	}
	if rev.IsMerge() {
		return vocab.RevisionID{}, nil, nil, errs.New(errs.User, "a merge is already in progress for this workspace")
	}
	ours := primaryParent(rev)
	if c := rev.Parents[ours]; c != nil && !c.IsEmpty() {
		return vocab.RevisionID{}, nil, nil, errs.New(errs.User, "commit or revert pending changes before merging")
	}
	if ours == other {
		return vocab.RevisionID{}, nil, nil, errs.New(errs.User, "cannot merge a revision with itself")
	}

	g := w.Store.Graph()
	base, ok := revision.FindCommonAncestorForMerge(g, ours, other)
	if !ok {
		return vocab.RevisionID{}, nil, nil, errs.New(errs.User, "no common ancestor between the checked out revision and "+other.String())
	}

	parseIDs := vocab.NewTemporarySource()
	baseRoster, err := w.baseRoster(base, parseIDs)
	if err != nil {
		return vocab.RevisionID{}, nil, nil, err
	}
	oursRoster, oursMarks, err := w.Store.GetRoster(ours, parseIDs)
	if err != nil {
		return vocab.RevisionID{}, nil, nil, err
	}
	otherRoster, otherMarks, err := w.Store.GetRoster(other, parseIDs)
	if err != nil {
		return vocab.RevisionID{}, nil, nil, err
	}

	common := revision.CommonAncestors(g, []vocab.RevisionID{ours, other})
	leftUncommon := ancestorsInclusive(g, ours, common)
	rightUncommon := ancestorsInclusive(g, other, common)

	left := merge.Parent{Roster: oursRoster, Marks: oursMarks, UncommonAncestors: leftUncommon}
	right := merge.Parent{Roster: otherRoster, Marks: otherMarks, UncommonAncestors: rightUncommon}

	reserve := newNodeCount(baseRoster, oursRoster)
	if n := newNodeCount(baseRoster, otherRoster); n < reserve {
		reserve = n
	}
	mergeIDs, err := w.persistentIDSource(reserve)
	if err != nil {
		return vocab.RevisionID{}, nil, nil, err
	}

	result, err := merge.Merge(baseRoster, left, right, placeholderMergeRid, mergeIDs)
	if err != nil {
		return vocab.RevisionID{}, nil, nil, err
	}
	if len(result.Conflicts) > 0 {
		return vocab.RevisionID{}, result.Conflicts, nil, nil
	}

	leftCset, err := roster.Diff(oursRoster, result.Roster)
	if err != nil {
		return vocab.RevisionID{}, nil, nil, err
	}
	rightCset, err := roster.Diff(otherRoster, result.Roster)
	if err != nil {
		return vocab.RevisionID{}, nil, nil, err
	}

	var manifestBuf bytes.Buffer
	if err := result.Roster.PrintTo(&manifestBuf, nil, false); err != nil {
		return vocab.RevisionID{}, nil, nil, err
	}
	manifestID := vocab.HashManifest(manifestBuf.Bytes())

	newRev := &revision.Revision{
		NewManifestID: manifestID,
		Parents: map[vocab.RevisionID]*cset.Cset{
			ours:  leftCset,
			other: rightCset,
		},
	}
	var revBuf bytes.Buffer
	if err := newRev.PrintTo(&revBuf); err != nil {
		return vocab.RevisionID{}, nil, nil, err
	}
	newRid := vocab.HashRevision(revBuf.Bytes())

	finalMarks := rekeyMarks(result.Marks, placeholderMergeRid, newRid)
	roster.DropExtraMarkings(result.Roster, finalMarks)
	if err := result.Roster.CheckSaneAgainst(finalMarks); err != nil {
		return vocab.RevisionID{}, nil, nil, err
	}

	signer, err := w.Signer()
	if err != nil {
		return vocab.RevisionID{}, nil, nil, err
	}

	err = w.Store.WithTransaction(store.Exclusive, func() error {
		w.Store.PutRoster(newRid, result.Roster, finalMarks, ours, true)
		storedRid, err := w.Store.PutRevision(newRev)
		if err != nil {
			return err
		}
		if storedRid != newRid {
			return errs.New(errs.Internal, "merge: precomputed revision id does not match the id the store assigned")
		}
		if w.Options.Branch != "" {
			branchCert, err := certs.Sign(signer, newRid, "branch", []byte(w.Options.Branch))
			if err != nil {
				return err
			}
			if err := w.Store.PutCert(store.CertRow{
				Hash: branchCert.Hash(), RevisionID: branchCert.RevisionID,
				Name: branchCert.Name, Value: branchCert.Value,
				KeyID: branchCert.KeyID, Signature: branchCert.Signature,
			}); err != nil {
				return err
			}
			if err := w.Store.AddBranchLeaf(w.Options.Branch, newRid); err != nil {
				return err
			}
			_ = w.Store.PruneBranchLeaf(w.Options.Branch, ours)
			_ = w.Store.PruneBranchLeaf(w.Options.Branch, other)
		}
		return nil
	})
	if err != nil {
		return vocab.RevisionID{}, nil, nil, err
	}

	fsConflicts, err := w.ApplyContentUpdate(leftCset, opts)
	if err != nil {
		return newRid, nil, fsConflicts, err
	}
	if err := w.InitPendingRevision(newRid); err != nil {
		return newRid, nil, fsConflicts, err
	}
	if err := w.SetLastUpdate(newRid); err != nil {
		return newRid, nil, fsConflicts, err
	}
	return newRid, nil, fsConflicts, nil
}

// ancestorsInclusive returns id's proper ancestors plus id itself, minus
// whatever is in common -- the "uncommon ancestors" set merge.Parent
// needs: every revision only this side's history has seen.
func ancestorsInclusive(g *revision.Graph, id vocab.RevisionID, common map[vocab.RevisionID]bool) map[vocab.RevisionID]bool {
	out := g.AncestorsOf(id)
	out[id] = true
	for c := range common {
		delete(out, c)
	}
	return out
}

// newNodeCount counts the nodes in r that did not exist in base, an
// upper bound on how many fresh node ids a shape merge against some
// other side might need to mint (a mint only happens when both sides
// independently created a node at the same path).
func newNodeCount(base, r *roster.Roster) int {
	n := 0
	for _, id := range r.AllNodeIDs() {
		if !base.HasNodeID(id) {
			n++
		}
	}
	return n
}

// rekeyMarks returns a copy of mm with every occurrence of from (as a
// node's birth revision, or as a member of any of its mark sets)
// replaced by to.
func rekeyMarks(mm *marking.Map, from, to vocab.RevisionID) *marking.Map {
	out := marking.New()
	for _, id := range mm.NodeIDs() {
		mk, _ := mm.Get(id)
		if mk.Birth == from {
			mk.Birth = to
		}
		mk.ParentName = rekeySet(mk.ParentName, from, to)
		mk.FileContent = rekeySet(mk.FileContent, from, to)
		attrs := make(map[string]marking.RevisionSet, len(mk.Attrs))
		for k, s := range mk.Attrs {
			attrs[k] = rekeySet(s, from, to)
		}
		mk.Attrs = attrs
		out.Set(id, mk)
	}
	return out
}

func rekeySet(s marking.RevisionSet, from, to vocab.RevisionID) marking.RevisionSet {
	if !s[from] {
		return s
	}
	out := make(marking.RevisionSet, len(s))
	for k := range s {
		if k == from {
			out[to] = true
		} else {
			out[k] = true
		}
	}
	return out
}
