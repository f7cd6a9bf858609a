package store

import (
	"testing"

	"github.com/dscherger/monotone-sub002/cset"
	"github.com/dscherger/monotone-sub002/revision"
	"github.com/dscherger/monotone-sub002/vocab"
)

func rootRevision(t *testing.T, manifest string) *revision.Revision {
	t.Helper()
	return &revision.Revision{
		NewManifestID: vocab.HashManifest([]byte(manifest)),
		Parents:       map[vocab.RevisionID]*cset.Cset{vocab.NullRevisionID: {}},
	}
}

func TestPutGetRevisionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	rev := rootRevision(t, "manifest one")

	id, err := s.PutRevision(rev)
	if err != nil {
		t.Fatalf("PutRevision: %v", err)
	}
	got, err := s.GetRevision(id)
	if err != nil {
		t.Fatalf("GetRevision: %v", err)
	}
	if got.NewManifestID != rev.NewManifestID {
		t.Errorf("GetRevision manifest = %v, want %v", got.NewManifestID, rev.NewManifestID)
	}
	if !got.IsRoot() {
		t.Error("round-tripped revision should still be a root revision")
	}
}

func TestPutRevisionIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	rev := rootRevision(t, "manifest idempotent")

	id1, err := s.PutRevision(rev)
	if err != nil {
		t.Fatalf("PutRevision: %v", err)
	}
	id2, err := s.PutRevision(rev)
	if err != nil {
		t.Fatalf("PutRevision (repeat): %v", err)
	}
	if id1 != id2 {
		t.Errorf("putting the same revision twice produced different ids: %v vs %v", id1, id2)
	}
}

func TestGraphRebuildsAcrossReopen(t *testing.T) {
	s := openTestStore(t)
	path := s.Path()

	rootID, err := s.PutRevision(rootRevision(t, "root"))
	if err != nil {
		t.Fatalf("PutRevision(root): %v", err)
	}
	child := &revision.Revision{
		NewManifestID: vocab.HashManifest([]byte("child manifest")),
		Parents:       map[vocab.RevisionID]*cset.Cset{rootID: {}},
	}
	childID, err := s.PutRevision(child)
	if err != nil {
		t.Fatalf("PutRevision(child): %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	if !s2.Graph().IsAncestor(rootID, childID) {
		t.Error("reopened store's graph does not recognize root as an ancestor of child")
	}
	parent, ok := s2.SingleNonMergeParent(childID)
	if !ok || parent != rootID {
		t.Errorf("SingleNonMergeParent(child) = (%v, %v), want (%v, true)", parent, ok, rootID)
	}
}

func TestDeleteExistingRevAndCertsRejectsRevisionWithChildren(t *testing.T) {
	s := openTestStore(t)
	rootID, err := s.PutRevision(rootRevision(t, "root"))
	if err != nil {
		t.Fatalf("PutRevision(root): %v", err)
	}
	child := &revision.Revision{
		NewManifestID: vocab.HashManifest([]byte("child")),
		Parents:       map[vocab.RevisionID]*cset.Cset{rootID: {}},
	}
	if _, err := s.PutRevision(child); err != nil {
		t.Fatalf("PutRevision(child): %v", err)
	}

	if err := s.DeleteExistingRevAndCerts(rootID); err == nil {
		t.Fatal("DeleteExistingRevAndCerts should reject a revision that still has children")
	}
}

func TestDeleteExistingRevAndCertsRemovesLeaf(t *testing.T) {
	s := openTestStore(t)
	id, err := s.PutRevision(rootRevision(t, "solo"))
	if err != nil {
		t.Fatalf("PutRevision: %v", err)
	}
	if err := s.DeleteExistingRevAndCerts(id); err != nil {
		t.Fatalf("DeleteExistingRevAndCerts: %v", err)
	}
	if _, err := s.GetRevision(id); err == nil {
		t.Fatal("GetRevision found a revision that should have been deleted")
	}
}
