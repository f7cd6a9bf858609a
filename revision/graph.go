package revision

import (
	"sort"

	"github.com/dscherger/monotone-sub002/errs"
	"github.com/dscherger/monotone-sub002/vocab"
)

// Graph is the in-memory revision DAG: parent/child edges plus each
// revision's height, enough to answer ancestry queries in O(1) amortized
// time per comparison via height pruning.
type Graph struct {
	revisions map[vocab.RevisionID]*Revision
	children  map[vocab.RevisionID][]vocab.RevisionID
	heights   *heightTracker
}

// NewGraph returns an empty revision graph.
func NewGraph() *Graph {
	return &Graph{
		revisions: make(map[vocab.RevisionID]*Revision),
		children:  make(map[vocab.RevisionID][]vocab.RevisionID),
		heights:   newHeightTracker(),
	}
}

// Add records a revision in the graph and computes its height. Every
// non-null parent must already have been added.
func (g *Graph) Add(id vocab.RevisionID, rev *Revision) error {
	if _, exists := g.revisions[id]; exists {
		return errs.New(errs.Internal, "revision already present in the graph")
	}
	var parents []vocab.RevisionID
	for p := range rev.Parents {
		if p == vocab.NullRevisionID {
			continue
		}
		if _, ok := g.revisions[p]; !ok {
			return errs.New(errs.Internal, "revision graph: parent not yet present")
		}
		parents = append(parents, p)
	}
	sort.Slice(parents, func(i, j int) bool { return parents[i].String() < parents[j].String() })

	g.revisions[id] = rev
	g.heights.assign(id, parents)
	for _, p := range parents {
		g.children[p] = append(g.children[p], id)
	}
	return nil
}

// Remove deletes id from the graph. Callers must ensure id has no
// children first; Remove does not reassign heights or child indices of
// anything still present, so a removed id simply leaves a gap.
func (g *Graph) Remove(id vocab.RevisionID) {
	rev, ok := g.revisions[id]
	if !ok {
		return
	}
	for p := range rev.Parents {
		if p == vocab.NullRevisionID {
			continue
		}
		kids := g.children[p]
		for i, c := range kids {
			if c == id {
				g.children[p] = append(kids[:i:i], kids[i+1:]...)
				break
			}
		}
	}
	delete(g.revisions, id)
	delete(g.children, id)
	delete(g.heights.heights, id)
	delete(g.heights.nextChildIndex, id)
}

// Height returns the recorded height of id, if present.
func (g *Graph) Height(id vocab.RevisionID) (Height, bool) {
	h, ok := g.heights.heights[id]
	return h, ok
}

// Get returns the revision recorded for id.
func (g *Graph) Get(id vocab.RevisionID) (*Revision, bool) {
	r, ok := g.revisions[id]
	return r, ok
}

// Parents returns the non-null parent ids of id.
func (g *Graph) Parents(id vocab.RevisionID) []vocab.RevisionID {
	rev, ok := g.revisions[id]
	if !ok {
		return nil
	}
	var out []vocab.RevisionID
	for p := range rev.Parents {
		if p != vocab.NullRevisionID {
			out = append(out, p)
		}
	}
	return out
}

// Children returns the ids of revisions that name id as a parent.
func (g *Graph) Children(id vocab.RevisionID) []vocab.RevisionID {
	return append([]vocab.RevisionID(nil), g.children[id]...)
}

// IsAncestor reports whether a is a proper ancestor of b: height pruning
// rules it out in O(1) when a cannot possibly precede b, otherwise a
// forward BFS from a (through children) confirms reachability, itself
// pruned by height.
func (g *Graph) IsAncestor(a, b vocab.RevisionID) bool {
	if a == b {
		return false
	}
	ha, aok := g.Height(a)
	hb, bok := g.Height(b)
	if !aok || !bok || !ha.Less(hb) {
		return false
	}
	visited := map[vocab.RevisionID]bool{a: true}
	queue := []vocab.RevisionID{a}
	for i := 0; i < len(queue); i++ {
		cur := queue[i]
		for _, c := range g.children[cur] {
			if c == b {
				return true
			}
			if visited[c] {
				continue
			}
			ch, _ := g.Height(c)
			if !ch.Less(hb) {
				continue
			}
			visited[c] = true
			queue = append(queue, c)
		}
	}
	return false
}

// AncestorsOf returns every proper ancestor of id (id itself excluded),
// found by walking parent edges backward.
func (g *Graph) AncestorsOf(id vocab.RevisionID) map[vocab.RevisionID]bool {
	out := make(map[vocab.RevisionID]bool)
	queue := g.Parents(id)
	for i := 0; i < len(queue); i++ {
		cur := queue[i]
		if out[cur] {
			continue
		}
		out[cur] = true
		queue = append(queue, g.Parents(cur)...)
	}
	return out
}

// Toposort returns ids ordered so that every revision precedes all of its
// descendants among ids, breaking ties by height; it adds no revisions
// beyond ids.
func (g *Graph) Toposort(ids []vocab.RevisionID) []vocab.RevisionID {
	inDegree := make(map[vocab.RevisionID]int, len(ids))
	set := make(map[vocab.RevisionID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	for _, id := range ids {
		for _, p := range g.Parents(id) {
			if set[p] {
				inDegree[id]++
			}
		}
	}

	var ready []vocab.RevisionID
	for _, id := range ids {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	out := make([]vocab.RevisionID, 0, len(ids))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool {
			hi, _ := g.Height(ready[i])
			hj, _ := g.Height(ready[j])
			return hi.Less(hj)
		})
		next := ready[0]
		ready = ready[1:]
		out = append(out, next)
		for _, c := range g.children[next] {
			if !set[c] {
				continue
			}
			inDegree[c]--
			if inDegree[c] == 0 {
				ready = append(ready, c)
			}
		}
	}
	return out
}

// EraseAncestors removes from ids every revision that is a proper
// ancestor of another element of ids, leaving only the "tips".
func EraseAncestors(g *Graph, ids []vocab.RevisionID) []vocab.RevisionID {
	out := make([]vocab.RevisionID, 0, len(ids))
	for _, a := range ids {
		dominated := false
		for _, b := range ids {
			if a != b && g.IsAncestor(a, b) {
				dominated = true
				break
			}
		}
		if !dominated {
			out = append(out, a)
		}
	}
	return out
}

// CommonAncestors returns the intersection of the ancestor sets of every
// id in ids.
func CommonAncestors(g *Graph, ids []vocab.RevisionID) map[vocab.RevisionID]bool {
	if len(ids) == 0 {
		return map[vocab.RevisionID]bool{}
	}
	common := g.AncestorsOf(ids[0])
	for _, id := range ids[1:] {
		next := g.AncestorsOf(id)
		for a := range common {
			if !next[a] {
				delete(common, a)
			}
		}
	}
	return common
}

// FindCommonAncestorForMerge returns the revision anc such that anc is an
// ancestor of (or equal to) both left and right and no other such
// candidate is a descendant of anc, breaking ties by height then id.
func FindCommonAncestorForMerge(g *Graph, left, right vocab.RevisionID) (vocab.RevisionID, bool) {
	leftSet := g.AncestorsOf(left)
	leftSet[left] = true
	rightSet := g.AncestorsOf(right)
	rightSet[right] = true

	var candidates []vocab.RevisionID
	for a := range leftSet {
		if rightSet[a] {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		return vocab.NullRevisionID, false
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if isBetterMergeBase(g, c, best) {
			best = c
		}
	}
	return best, true
}

func isBetterMergeBase(g *Graph, c, best vocab.RevisionID) bool {
	if g.IsAncestor(best, c) {
		return true
	}
	if g.IsAncestor(c, best) {
		return false
	}
	hc, _ := g.Height(c)
	hb, _ := g.Height(best)
	switch hc.Compare(hb) {
	case 1:
		return true
	case -1:
		return false
	default:
		return c.String() < best.String()
	}
}
