// Package marking implements the per-node, per-attribute provenance
// bookkeeping: for each scalar of each node, the set of
// revisions that last changed it. This "mark set" algebra is what lets
// three-way merge decide, without replaying history, whether a change on
// one side already subsumes a change on the other.
//
// Grounded conceptually on cshekharsharma-go-crdt/rga.go's per-element
// provenance + tombstone idiom (an ID{Timestamp,NodeID} recording who
// last touched an element, and a Deleted flag surviving across merges),
// generalized here from a single writer-id to a set of revision ids per
// scalar, and from one tombstone bit to one mark set per scalar.
package marking

import "github.com/dscherger/monotone-sub002/vocab"

// RevisionSet is an unordered set of revision ids -- a "mark set" for one
// scalar.
type RevisionSet map[vocab.RevisionID]bool

// NewRevisionSet builds a RevisionSet containing exactly the given ids.
func NewRevisionSet(ids ...vocab.RevisionID) RevisionSet {
	s := make(RevisionSet, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}

// Union returns a new set containing every element of a and b.
func Union(a, b RevisionSet) RevisionSet {
	out := make(RevisionSet, len(a)+len(b))
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}

// Equal reports whether two sets contain exactly the same elements.
func Equal(a, b RevisionSet) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// Marking is the per-node provenance record: for each scalar, the set of
// revisions that last changed it, plus the node's birth revision.
type Marking struct {
	Birth       vocab.RevisionID
	ParentName  RevisionSet // (parent, name) pair
	FileContent RevisionSet // files only; empty for directories
	Attrs       map[string]RevisionSet
}

// NewMarking returns a zero Marking with initialized maps.
func NewMarking() Marking {
	return Marking{
		ParentName: make(RevisionSet),
		Attrs:      make(map[string]RevisionSet),
	}
}

// Map is the marking map for a roster: every node in it has
// exactly one Marking.
type Map struct {
	byNode map[vocab.NodeID]Marking
}

// New creates an empty marking map.
func New() *Map {
	return &Map{byNode: make(map[vocab.NodeID]Marking)}
}

// Get returns the marking for id, if any.
func (m *Map) Get(id vocab.NodeID) (Marking, bool) {
	mk, ok := m.byNode[id]
	return mk, ok
}

// Set records the marking for id, replacing any previous entry.
func (m *Map) Set(id vocab.NodeID, mk Marking) {
	m.byNode[id] = mk
}

// Delete removes any marking recorded for id.
func (m *Map) Delete(id vocab.NodeID) {
	delete(m.byNode, id)
}

// NodeIDs returns every node id this map has a marking for.
func (m *Map) NodeIDs() []vocab.NodeID {
	ids := make([]vocab.NodeID, 0, len(m.byNode))
	for id := range m.byNode {
		ids = append(ids, id)
	}
	return ids
}

// Len reports how many node markings this map holds.
func (m *Map) Len() int { return len(m.byNode) }

// CheckSane verifies the marking-map invariants: every
// scalar's mark set is non-empty, and a directory's FileContent set is
// empty. isDirectory is supplied by the caller (typically roster.Roster)
// since Map itself has no notion of node shape.
func (m *Map) CheckSane(isDirectory func(vocab.NodeID) (bool, bool)) error {
	for id, mk := range m.byNode {
		isDir, known := isDirectory(id)
		if !known {
			continue // node no longer in the roster; caller's concern (drop_extra_markings)
		}
		if len(mk.ParentName) == 0 {
			return errNonEmpty(id, "parent_name")
		}
		if isDir {
			if len(mk.FileContent) != 0 {
				return errNonEmpty(id, "file_content set on a directory")
			}
		} else if len(mk.FileContent) == 0 {
			return errNonEmpty(id, "file_content")
		}
		for k, s := range mk.Attrs {
			if len(s) == 0 {
				return errNonEmpty(id, "attr mark for "+k)
			}
		}
	}
	return nil
}

func errNonEmpty(id vocab.NodeID, what string) error {
	return &saneError{id: id, what: what}
}

type saneError struct {
	id   vocab.NodeID
	what string
}

func (e *saneError) Error() string {
	return "marking: node has empty mark set for " + e.what
}
