package roster

import (
	"github.com/dscherger/monotone-sub002/marking"
	"github.com/dscherger/monotone-sub002/vocab"
)

// MarkRoot builds the marking map for a root revision (no parent): every
// scalar of every node has mark set {newRid}; birth = newRid.
func MarkRoot(r *Roster, newRid vocab.RevisionID) *marking.Map {
	mm := marking.New()
	for _, id := range r.AllNodeIDs() {
		n := r.nodes[id]
		mm.Set(id, freshMarking(n, newRid))
	}
	return mm
}

func freshMarking(n *Node, newRid vocab.RevisionID) marking.Marking {
	m := marking.NewMarking()
	m.Birth = newRid
	m.ParentName = marking.NewRevisionSet(newRid)
	if n.IsFile() {
		m.FileContent = marking.NewRevisionSet(newRid)
	}
	for k, a := range n.attrs {
		_ = a
		m.Attrs[k] = marking.NewRevisionSet(newRid)
	}
	return m
}

// MarkFromParent builds the child marking map given the parent roster and
// its marking map (the one-parent case): for each node present in
// both, a scalar whose value is unchanged keeps the parent's mark set; a
// scalar whose value changed gets mark set {newRid}. Nodes new in the
// child are marked as in MarkRoot. Birth is inherited for carried-over
// nodes.
func MarkFromParent(parent *Roster, parentMarks *marking.Map, child *Roster, newRid vocab.RevisionID) *marking.Map {
	mm := marking.New()
	for _, id := range child.AllNodeIDs() {
		cn := child.nodes[id]
		pn, existedBefore := parent.nodes[id]
		if !existedBefore {
			mm.Set(id, freshMarking(cn, newRid))
			continue
		}
		pm, _ := parentMarks.Get(id)
		m := marking.NewMarking()
		m.Birth = pm.Birth

		if cn.parent == pn.parent && cn.name == pn.name {
			m.ParentName = pm.ParentName
		} else {
			m.ParentName = marking.NewRevisionSet(newRid)
		}

		if cn.IsFile() {
			if cn.content == pn.content {
				m.FileContent = pm.FileContent
			} else {
				m.FileContent = marking.NewRevisionSet(newRid)
			}
		}

		keys := unionAttrKeys(pn, cn)
		for _, k := range keys {
			pa, pok := pn.attrs[k]
			ca, cok := cn.attrs[k]
			switch {
			case !pok && cok:
				m.Attrs[k] = marking.NewRevisionSet(newRid)
			case pok && !cok:
				// Attribute entries never vanish outright; treat as
				// unchanged if this ever occurs defensively.
				if prev, ok := pm.Attrs[k]; ok {
					m.Attrs[k] = prev
				}
			case pa == ca:
				if prev, ok := pm.Attrs[k]; ok {
					m.Attrs[k] = prev
				} else {
					m.Attrs[k] = marking.NewRevisionSet(newRid)
				}
			default:
				m.Attrs[k] = marking.NewRevisionSet(newRid)
			}
		}
		mm.Set(id, m)
	}
	return mm
}

func unionAttrKeys(a, b *Node) []string {
	seen := make(map[string]bool)
	var out []string
	for k := range a.attrs {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for k := range b.attrs {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// CheckSaneAgainst verifies that every scalar has a
// non-empty mark set, consistent with this roster's node shapes.
func (r *Roster) CheckSaneAgainst(mm *marking.Map) error {
	return mm.CheckSane(func(id vocab.NodeID) (bool, bool) {
		n, ok := r.nodes[id]
		if !ok {
			return false, false
		}
		return n.IsDirectory(), true
	})
}

// DropExtraMarkings prunes mm down to exactly the nodes present in r.
// The merge algorithm can create marking entries for nodes that are
// later absent from the merged roster.
func DropExtraMarkings(r *Roster, mm *marking.Map) {
	for _, id := range mm.NodeIDs() {
		if !r.HasNodeID(id) {
			mm.Delete(id)
		}
	}
}
