package merge

import (
	"testing"

	"github.com/dscherger/monotone-sub002/roster"
	"github.com/dscherger/monotone-sub002/vocab"
)

func newRevID(b byte) vocab.RevisionID {
	return vocab.HashRevision([]byte{b})
}

func TestMergeNoConflictDistinctFilesAdded(t *testing.T) {
	ids := vocab.NewPersistentSource(1)
	base := roster.NewEmptyRootRoster(ids)
	baseRid := newRevID(1)
	baseMarks := roster.MarkRoot(base, baseRid)

	left := base.Clone()
	root, _ := left.Root()
	aID := left.CreateFileNode(vocab.HashFileContent([]byte("a")))
	if err := left.AttachNode(aID, root, "a"); err != nil {
		t.Fatalf("attach a: %v", err)
	}
	leftRid := newRevID(2)
	leftMarks := roster.MarkFromParent(base, baseMarks, left, leftRid)

	right := base.Clone()
	root2, _ := right.Root()
	bID := right.CreateFileNode(vocab.HashFileContent([]byte("b")))
	if err := right.AttachNode(bID, root2, "b"); err != nil {
		t.Fatalf("attach b: %v", err)
	}
	rightRid := newRevID(3)
	rightMarks := roster.MarkFromParent(base, baseMarks, right, rightRid)

	mergeRid := newRevID(4)
	result, err := Merge(base,
		Parent{Roster: left, Marks: leftMarks, UncommonAncestors: map[vocab.RevisionID]bool{leftRid: true}},
		Parent{Roster: right, Marks: rightMarks, UncommonAncestors: map[vocab.RevisionID]bool{rightRid: true}},
		mergeRid, ids)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(result.Conflicts) != 0 {
		t.Fatalf("unexpected conflicts: %+v", result.Conflicts)
	}
	if !result.Roster.HasNodePath(vocab.NewRepoPath("a")) || !result.Roster.HasNodePath(vocab.NewRepoPath("b")) {
		t.Fatalf("merged roster missing one of the independently added files")
	}
	if err := result.Roster.CheckSane(); err != nil {
		t.Fatalf("CheckSane: %v", err)
	}
}

func TestMergeDuplicateNameConflict(t *testing.T) {
	ids := vocab.NewPersistentSource(1)
	base := roster.NewEmptyRootRoster(ids)
	baseRid := newRevID(1)
	baseMarks := roster.MarkRoot(base, baseRid)

	left := base.Clone()
	root, _ := left.Root()
	dirID := left.CreateDirNode()
	if err := left.AttachNode(dirID, root, "x"); err != nil {
		t.Fatalf("attach dir: %v", err)
	}
	leftRid := newRevID(2)
	leftMarks := roster.MarkFromParent(base, baseMarks, left, leftRid)

	right := base.Clone()
	root2, _ := right.Root()
	fileID := right.CreateFileNode(vocab.HashFileContent([]byte("conflict")))
	if err := right.AttachNode(fileID, root2, "x"); err != nil {
		t.Fatalf("attach file: %v", err)
	}
	rightRid := newRevID(3)
	rightMarks := roster.MarkFromParent(base, baseMarks, right, rightRid)

	mergeRid := newRevID(4)
	result, err := Merge(base,
		Parent{Roster: left, Marks: leftMarks, UncommonAncestors: map[vocab.RevisionID]bool{leftRid: true}},
		Parent{Roster: right, Marks: rightMarks, UncommonAncestors: map[vocab.RevisionID]bool{rightRid: true}},
		mergeRid, ids)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	found := false
	for _, c := range result.Conflicts {
		if c.Kind == DuplicateName {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a duplicate-name conflict, got %+v", result.Conflicts)
	}
}

func TestMergeOneSidedAttrChangeHasNoConflict(t *testing.T) {
	ids := vocab.NewPersistentSource(1)
	base := roster.NewEmptyRootRoster(ids)
	baseRid := newRevID(1)
	baseMarks := roster.MarkRoot(base, baseRid)

	left := base.Clone()
	if err := left.SetAttr(vocab.RootPath, "mtn:execute", "true"); err != nil {
		t.Fatalf("SetAttr: %v", err)
	}
	leftRid := newRevID(2)
	leftMarks := roster.MarkFromParent(base, baseMarks, left, leftRid)

	right := base.Clone()
	rightRid := newRevID(3)
	rightMarks := roster.MarkFromParent(base, baseMarks, right, rightRid)

	mergeRid := newRevID(4)
	result, err := Merge(base,
		Parent{Roster: left, Marks: leftMarks, UncommonAncestors: map[vocab.RevisionID]bool{leftRid: true}},
		Parent{Roster: right, Marks: rightMarks, UncommonAncestors: map[vocab.RevisionID]bool{rightRid: true}},
		mergeRid, ids)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(result.Conflicts) != 0 {
		t.Fatalf("unexpected conflicts: %+v", result.Conflicts)
	}
	n, err := result.Roster.GetNodeByPath(vocab.RootPath)
	if err != nil {
		t.Fatalf("GetNodeByPath: %v", err)
	}
	a, ok := n.Attr("mtn:execute")
	if !ok || !a.Live || a.Value != "true" {
		t.Errorf("expected the one-sided attr change to survive the merge, got %+v", a)
	}
}

// TestMergeAttrWonMergeRejectsOwnUncommonAncestor covers the case the naive
// "does the changed value match base" check gets wrong: right's own history
// changed the attr away from base and back again, so its final value
// coincides with base by accident rather than by never having touched it.
// Left genuinely changed the value once. A correct merge must report a
// conflict here, not silently prefer left's value as if right were untouched.
func TestMergeAttrWonMergeRejectsOwnUncommonAncestor(t *testing.T) {
	ids := vocab.NewPersistentSource(1)
	base := roster.NewEmptyRootRoster(ids)
	if err := base.SetAttr(vocab.RootPath, "mtn:execute", "v0"); err != nil {
		t.Fatalf("SetAttr base: %v", err)
	}
	baseRid := newRevID(1)
	baseMarks := roster.MarkRoot(base, baseRid)

	left := base.Clone()
	if err := left.SetAttr(vocab.RootPath, "mtn:execute", "v1"); err != nil {
		t.Fatalf("SetAttr left: %v", err)
	}
	leftRid := newRevID(2)
	leftMarks := roster.MarkFromParent(base, baseMarks, left, leftRid)

	mid := base.Clone()
	if err := mid.SetAttr(vocab.RootPath, "mtn:execute", "v2"); err != nil {
		t.Fatalf("SetAttr mid: %v", err)
	}
	midRid := newRevID(5)
	midMarks := roster.MarkFromParent(base, baseMarks, mid, midRid)

	right := mid.Clone()
	if err := right.SetAttr(vocab.RootPath, "mtn:execute", "v0"); err != nil {
		t.Fatalf("SetAttr right: %v", err)
	}
	rightRid := newRevID(3)
	rightMarks := roster.MarkFromParent(mid, midMarks, right, rightRid)

	mergeRid := newRevID(4)
	result, err := Merge(base,
		Parent{Roster: left, Marks: leftMarks, UncommonAncestors: map[vocab.RevisionID]bool{leftRid: true}},
		Parent{Roster: right, Marks: rightMarks, UncommonAncestors: map[vocab.RevisionID]bool{midRid: true, rightRid: true}},
		mergeRid, ids)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	found := false
	for _, c := range result.Conflicts {
		if c.Kind == AttrConflict {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an attr conflict (right's value matching base is coincidental, not untouched), got %+v", result.Conflicts)
	}
}

// newRootOnlyRoster builds a detached-then-reattached root at rootID without
// drawing that id from ids, so several rosters can share one root identity
// while each keeps its own, independent node id source for further nodes.
func newRootOnlyRoster(t *testing.T, ids *vocab.NodeIDSource, rootID vocab.NodeID) *roster.Roster {
	t.Helper()
	r := roster.New(ids)
	r.SeedDetached(rootID, roster.KindDirectory, vocab.FileID{}, nil)
	if err := r.AttachNode(rootID, vocab.NullNode, ""); err != nil {
		t.Fatalf("attach root: %v", err)
	}
	return r
}

// TestMergeUnifyShapesMintsFreshIDWhenBothTemporary covers both sides
// independently creating a node at the same path while neither has a
// permanent id yet: unifyShapes must mint one fresh permanent id and remap
// both sides to it, rather than keeping either side's temporary id (which
// must never reach a persisted roster) or arbitrarily discarding one side's
// candidate.
func TestMergeUnifyShapesMintsFreshIDWhenBothTemporary(t *testing.T) {
	rootIDs := vocab.NewPersistentSource(1)
	rootID := rootIDs.Next()

	base := newRootOnlyRoster(t, vocab.NewPersistentSource(2), rootID)
	baseRid := newRevID(1)
	baseMarks := roster.MarkRoot(base, baseRid)

	leftIDs := vocab.NewTemporarySource()
	left := newRootOnlyRoster(t, leftIDs, rootID)
	left.AllowTemporaryNodes(true)
	lid := left.CreateFileNode(vocab.HashFileContent([]byte("left")))
	if err := left.AttachNode(lid, rootID, "conflict"); err != nil {
		t.Fatalf("attach left conflict node: %v", err)
	}
	leftRid := newRevID(2)
	leftMarks := roster.MarkFromParent(base, baseMarks, left, leftRid)

	rightIDs := vocab.NewTemporarySource()
	right := newRootOnlyRoster(t, rightIDs, rootID)
	right.AllowTemporaryNodes(true)
	_ = rightIDs.Next() // burn one id so right's candidate differs from left's
	rid := right.CreateFileNode(vocab.HashFileContent([]byte("right")))
	if err := right.AttachNode(rid, rootID, "conflict"); err != nil {
		t.Fatalf("attach right conflict node: %v", err)
	}
	rightRid := newRevID(3)
	rightMarks := roster.MarkFromParent(base, baseMarks, right, rightRid)

	if !lid.IsTemporary() || !rid.IsTemporary() || lid == rid {
		t.Fatalf("test setup invalid: lid=%v rid=%v", lid, rid)
	}

	mergeIDs := vocab.NewPersistentSource(100)
	mergeRid := newRevID(4)
	result, err := Merge(base,
		Parent{Roster: left, Marks: leftMarks, UncommonAncestors: map[vocab.RevisionID]bool{leftRid: true}},
		Parent{Roster: right, Marks: rightMarks, UncommonAncestors: map[vocab.RevisionID]bool{rightRid: true}},
		mergeRid, mergeIDs)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(result.Conflicts) != 0 {
		t.Fatalf("unexpected conflicts: %+v", result.Conflicts)
	}

	n, err := result.Roster.GetNodeByPath(vocab.NewRepoPath("conflict"))
	if err != nil {
		t.Fatalf("GetNodeByPath: %v", err)
	}
	mergedID := n.Self()
	if mergedID == lid || mergedID == rid {
		t.Fatalf("expected a freshly minted id distinct from both temporary candidates, got %v (left=%v right=%v)", mergedID, lid, rid)
	}
	if mergedID.IsTemporary() {
		t.Fatalf("merged node kept a temporary id %v instead of a minted permanent one", mergedID)
	}
	if mergedID != vocab.NodeID(100) {
		t.Errorf("expected the merge's id source to mint NodeID(100), got %v", mergedID)
	}
	if err := result.Roster.CheckSane(); err != nil {
		t.Fatalf("CheckSane: %v", err)
	}
}

// TestMergeUnifyShapesReusesPermanentIDWhenOneSideTemporary covers the
// mixed case: one side already has a permanent id for its independently
// created node, the other's is still temporary. No id should be minted --
// the temporary side remaps onto the permanent id already in play.
func TestMergeUnifyShapesReusesPermanentIDWhenOneSideTemporary(t *testing.T) {
	rootIDs := vocab.NewPersistentSource(1)
	rootID := rootIDs.Next()

	base := newRootOnlyRoster(t, vocab.NewPersistentSource(50), rootID)
	baseRid := newRevID(1)
	baseMarks := roster.MarkRoot(base, baseRid)

	leftIDs := vocab.NewPersistentSource(10)
	left := newRootOnlyRoster(t, leftIDs, rootID)
	lid := left.CreateFileNode(vocab.HashFileContent([]byte("left")))
	if err := left.AttachNode(lid, rootID, "shared"); err != nil {
		t.Fatalf("attach left shared node: %v", err)
	}
	leftRid := newRevID(2)
	leftMarks := roster.MarkFromParent(base, baseMarks, left, leftRid)

	rightIDs := vocab.NewTemporarySource()
	right := newRootOnlyRoster(t, rightIDs, rootID)
	right.AllowTemporaryNodes(true)
	rid := right.CreateFileNode(vocab.HashFileContent([]byte("right")))
	if err := right.AttachNode(rid, rootID, "shared"); err != nil {
		t.Fatalf("attach right shared node: %v", err)
	}
	rightRid := newRevID(3)
	rightMarks := roster.MarkFromParent(base, baseMarks, right, rightRid)

	if lid.IsTemporary() || !rid.IsTemporary() {
		t.Fatalf("test setup invalid: lid=%v rid=%v", lid, rid)
	}

	mergeIDs := vocab.NewPersistentSource(200)
	mergeRid := newRevID(4)
	result, err := Merge(base,
		Parent{Roster: left, Marks: leftMarks, UncommonAncestors: map[vocab.RevisionID]bool{leftRid: true}},
		Parent{Roster: right, Marks: rightMarks, UncommonAncestors: map[vocab.RevisionID]bool{rightRid: true}},
		mergeRid, mergeIDs)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(result.Conflicts) != 0 {
		t.Fatalf("unexpected conflicts: %+v", result.Conflicts)
	}

	n, err := result.Roster.GetNodeByPath(vocab.NewRepoPath("shared"))
	if err != nil {
		t.Fatalf("GetNodeByPath: %v", err)
	}
	if n.Self() != lid {
		t.Fatalf("expected the temporary side to remap onto left's permanent id %v, got %v", lid, n.Self())
	}
	if err := result.Roster.CheckSane(); err != nil {
		t.Fatalf("CheckSane: %v", err)
	}
}
