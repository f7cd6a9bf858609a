package revision

import (
	"bytes"
	"testing"

	"github.com/dscherger/monotone-sub002/cset"
	"github.com/dscherger/monotone-sub002/vocab"
)

func TestRevisionPrintParseRoundTripRoot(t *testing.T) {
	rev := &Revision{
		NewManifestID: vocab.HashManifest([]byte("manifest one")),
		Parents: map[vocab.RevisionID]*cset.Cset{
			vocab.NullRevisionID: {
				DirsAdded: []vocab.RepoPath{vocab.NewRepoPath("")},
			},
		},
	}

	var buf bytes.Buffer
	if err := rev.PrintTo(&buf); err != nil {
		t.Fatalf("PrintTo: %v", err)
	}

	got, err := ParseFrom(&buf)
	if err != nil {
		t.Fatalf("ParseFrom: %v", err)
	}
	if got.NewManifestID != rev.NewManifestID {
		t.Errorf("NewManifestID = %v, want %v", got.NewManifestID, rev.NewManifestID)
	}
	if !got.IsRoot() {
		t.Errorf("expected round-tripped revision to report IsRoot")
	}
}

func TestRevisionPrintParseRoundTripMerge(t *testing.T) {
	left := vocab.HashRevision([]byte("left"))
	right := vocab.HashRevision([]byte("right"))
	rev := &Revision{
		NewManifestID: vocab.HashManifest([]byte("merged manifest")),
		Parents: map[vocab.RevisionID]*cset.Cset{
			left:  {FilesAdded: []cset.AddFile{{Path: vocab.NewRepoPath("a.txt"), Content: vocab.HashFileContent([]byte("a"))}}},
			right: {FilesAdded: []cset.AddFile{{Path: vocab.NewRepoPath("b.txt"), Content: vocab.HashFileContent([]byte("b"))}}},
		},
	}

	var buf bytes.Buffer
	if err := rev.PrintTo(&buf); err != nil {
		t.Fatalf("PrintTo: %v", err)
	}

	got, err := ParseFrom(&buf)
	if err != nil {
		t.Fatalf("ParseFrom: %v", err)
	}
	if !got.IsMerge() {
		t.Fatalf("expected a merge revision, got %d parents", len(got.Parents))
	}
	leftCset, ok := got.Parents[left]
	if !ok || len(leftCset.FilesAdded) != 1 || leftCset.FilesAdded[0].Path.String() != "a.txt" {
		t.Errorf("left parent cset = %+v", leftCset)
	}
	rightCset, ok := got.Parents[right]
	if !ok || len(rightCset.FilesAdded) != 1 || rightCset.FilesAdded[0].Path.String() != "b.txt" {
		t.Errorf("right parent cset = %+v", rightCset)
	}
}
