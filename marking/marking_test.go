package marking

import (
	"testing"

	"github.com/dscherger/monotone-sub002/vocab"
)

func rid(b byte) vocab.RevisionID {
	return vocab.HashRevision([]byte{b})
}

func TestUnionAndEqual(t *testing.T) {
	a := NewRevisionSet(rid(1), rid(2))
	b := NewRevisionSet(rid(2), rid(3))
	u := Union(a, b)
	if len(u) != 3 {
		t.Fatalf("union size = %d, want 3", len(u))
	}
	if Equal(a, b) {
		t.Errorf("a and b should not be equal")
	}
	if !Equal(a, NewRevisionSet(rid(1), rid(2))) {
		t.Errorf("expected equal sets to compare equal")
	}
}

func TestCheckSaneRejectsEmptyMarkSet(t *testing.T) {
	m := New()
	id := vocab.NodeID(1)
	mk := NewMarking()
	mk.Birth = rid(1)
	mk.ParentName = NewRevisionSet(rid(1))
	// FileContent deliberately left empty for a node reported as a file.
	m.Set(id, mk)

	err := m.CheckSane(func(vocab.NodeID) (bool, bool) { return false, true })
	if err == nil {
		t.Errorf("expected CheckSane to reject an empty file_content mark set")
	}
}

func TestCheckSaneRejectsDirectoryWithContentMark(t *testing.T) {
	m := New()
	id := vocab.NodeID(1)
	mk := NewMarking()
	mk.Birth = rid(1)
	mk.ParentName = NewRevisionSet(rid(1))
	mk.FileContent = NewRevisionSet(rid(1))
	m.Set(id, mk)

	err := m.CheckSane(func(vocab.NodeID) (bool, bool) { return true, true })
	if err == nil {
		t.Errorf("expected CheckSane to reject a directory with a file_content mark set")
	}
}

func TestCheckSaneSkipsUnknownNodes(t *testing.T) {
	m := New()
	id := vocab.NodeID(1)
	m.Set(id, NewMarking())

	err := m.CheckSane(func(vocab.NodeID) (bool, bool) { return false, false })
	if err != nil {
		t.Errorf("expected CheckSane to skip nodes the shape oracle doesn't know: %v", err)
	}
}

func TestDeleteAndNodeIDs(t *testing.T) {
	m := New()
	m.Set(vocab.NodeID(1), NewMarking())
	m.Set(vocab.NodeID(2), NewMarking())
	if m.Len() != 2 {
		t.Fatalf("Len = %d, want 2", m.Len())
	}
	m.Delete(vocab.NodeID(1))
	if m.Len() != 1 {
		t.Fatalf("Len after delete = %d, want 1", m.Len())
	}
	if _, ok := m.Get(vocab.NodeID(1)); ok {
		t.Errorf("expected deleted id to be absent")
	}
}
