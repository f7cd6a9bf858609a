package revision

import (
	"testing"

	"github.com/dscherger/monotone-sub002/cset"
	"github.com/dscherger/monotone-sub002/vocab"
)

func rrid(b byte) vocab.RevisionID {
	return vocab.HashRevision([]byte{b})
}

func rootRevision() *Revision {
	return &Revision{Parents: map[vocab.RevisionID]*cset.Cset{vocab.NullRevisionID: {}}}
}

func childRevision(parents ...vocab.RevisionID) *Revision {
	m := make(map[vocab.RevisionID]*cset.Cset, len(parents))
	for _, p := range parents {
		m[p] = nil
	}
	return &Revision{Parents: m}
}

// buildDiamond builds: root -> a -> m, root -> b -> m (m merges a and b).
func buildDiamond(t *testing.T) (*Graph, vocab.RevisionID, vocab.RevisionID, vocab.RevisionID, vocab.RevisionID) {
	t.Helper()
	g := NewGraph()
	root := rrid(1)
	if err := g.Add(root, rootRevision()); err != nil {
		t.Fatalf("add root: %v", err)
	}
	a := rrid(2)
	if err := g.Add(a, childRevision(root)); err != nil {
		t.Fatalf("add a: %v", err)
	}
	b := rrid(3)
	if err := g.Add(b, childRevision(root)); err != nil {
		t.Fatalf("add b: %v", err)
	}
	m := rrid(4)
	if err := g.Add(m, childRevision(a, b)); err != nil {
		t.Fatalf("add m: %v", err)
	}
	return g, root, a, b, m
}

func TestIsAncestor(t *testing.T) {
	g, root, a, b, m := buildDiamond(t)
	if !g.IsAncestor(root, a) {
		t.Errorf("root should be an ancestor of a")
	}
	if !g.IsAncestor(root, m) {
		t.Errorf("root should be an ancestor of m")
	}
	if !g.IsAncestor(a, m) {
		t.Errorf("a should be an ancestor of m")
	}
	if g.IsAncestor(a, b) {
		t.Errorf("a should not be an ancestor of b")
	}
	if g.IsAncestor(m, root) {
		t.Errorf("m should not be an ancestor of root")
	}
	if g.IsAncestor(root, root) {
		t.Errorf("a revision is not its own proper ancestor")
	}
}

func TestFindCommonAncestorForMerge(t *testing.T) {
	g, root, a, b, _ := buildDiamond(t)
	anc, ok := FindCommonAncestorForMerge(g, a, b)
	if !ok {
		t.Fatalf("expected a common ancestor")
	}
	if anc != root {
		t.Errorf("common ancestor = %v, want root", anc)
	}
}

func TestEraseAncestors(t *testing.T) {
	g, root, a, b, m := buildDiamond(t)
	tips := EraseAncestors(g, []vocab.RevisionID{root, a, b, m})
	if len(tips) != 1 || tips[0] != m {
		t.Errorf("EraseAncestors = %v, want [m]", tips)
	}
}

func TestCommonAncestors(t *testing.T) {
	g, root, a, b, _ := buildDiamond(t)
	common := CommonAncestors(g, []vocab.RevisionID{a, b})
	if !common[root] {
		t.Errorf("expected root in common ancestors, got %v", common)
	}
	if len(common) != 1 {
		t.Errorf("expected exactly root as common ancestor, got %v", common)
	}
}

func TestToposortOrdersParentsBeforeChildren(t *testing.T) {
	g, root, a, b, m := buildDiamond(t)
	order := g.Toposort([]vocab.RevisionID{m, b, a, root})
	pos := make(map[vocab.RevisionID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	if pos[root] >= pos[a] || pos[root] >= pos[b] {
		t.Errorf("root must precede both a and b: %v", order)
	}
	if pos[a] >= pos[m] || pos[b] >= pos[m] {
		t.Errorf("a and b must precede m: %v", order)
	}
}

func TestHeightOrdering(t *testing.T) {
	g, root, a, _, m := buildDiamond(t)
	hr, _ := g.Height(root)
	ha, _ := g.Height(a)
	hm, _ := g.Height(m)
	if !hr.Less(ha) {
		t.Errorf("root height should sort before a's height")
	}
	if !ha.Less(hm) {
		t.Errorf("a's height should sort before m's height")
	}
}
