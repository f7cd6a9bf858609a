package roster

import (
	"bytes"
	"testing"

	"github.com/dscherger/monotone-sub002/vocab"
)

func TestScenarioAEmptyTreeManifest(t *testing.T) {
	ids := vocab.NewPersistentSource(1)
	r := NewEmptyRootRoster(ids)

	var buf bytes.Buffer
	if err := r.PrintTo(&buf, nil, false); err != nil {
		t.Fatalf("PrintTo: %v", err)
	}
	want := "format_version \"1\"\n\ndir \"\"\n"
	if buf.String() != want {
		t.Errorf("manifest = %q, want %q", buf.String(), want)
	}
}

func TestScenarioBSingleFileAdd(t *testing.T) {
	ids := vocab.NewPersistentSource(1)
	r0 := NewEmptyRootRoster(ids)

	r1 := r0.Clone()
	content := vocab.HashFileContent([]byte("hello\n"))
	fileID := r1.CreateFileNode(content)
	root, _ := r1.Root()
	if err := r1.AttachNode(fileID, root, "a"); err != nil {
		t.Fatalf("AttachNode: %v", err)
	}
	if err := r1.CheckSane(); err != nil {
		t.Fatalf("CheckSane: %v", err)
	}

	n, err := r1.GetNodeByPath(vocab.NewRepoPath("a"))
	if err != nil {
		t.Fatalf("GetNodeByPath: %v", err)
	}
	if n.Content() != content {
		t.Errorf("content = %v, want %v", n.Content(), content)
	}

	// r0 must be unaffected by r1's mutation (copy-on-write).
	if r0.HasNodePath(vocab.NewRepoPath("a")) {
		t.Errorf("mutating r1 should not affect r0")
	}

	c, err := Diff(r0, r1)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(c.FilesAdded) != 1 || c.FilesAdded[0].Path.String() != "a" {
		t.Errorf("cset(R0,R1) = %+v", c)
	}

	back, err := Diff(r1, r0)
	if err != nil {
		t.Fatalf("Diff reverse: %v", err)
	}
	if len(back.NodesDeleted) != 1 || back.NodesDeleted[0].String() != "a" {
		t.Errorf("cset(R1,R0) = %+v", back)
	}
}

func TestScenarioCRenameNoContentChange(t *testing.T) {
	ids := vocab.NewPersistentSource(1)
	r0 := NewEmptyRootRoster(ids)
	r1 := r0.Clone()
	content := vocab.HashFileContent([]byte("hello\n"))
	fileID := r1.CreateFileNode(content)
	root, _ := r1.Root()
	if err := r1.AttachNode(fileID, root, "a"); err != nil {
		t.Fatalf("attach: %v", err)
	}

	r2 := r1.Clone()
	gotID, err := r2.DetachNodeByPath(vocab.NewRepoPath("a"))
	if err != nil {
		t.Fatalf("detach: %v", err)
	}
	if gotID != fileID {
		t.Fatalf("detached id = %v, want %v", gotID, fileID)
	}
	if err := r2.AttachNode(fileID, root, "b"); err != nil {
		t.Fatalf("reattach: %v", err)
	}

	n, err := r2.GetNode(fileID)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if n.Content() != content {
		t.Errorf("rename changed content unexpectedly")
	}

	c, err := Diff(r1, r2)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(c.NodesRenamed) != 1 || c.NodesRenamed[0].Old.String() != "a" || c.NodesRenamed[0].New.String() != "b" {
		t.Errorf("cset(R1,R2) = %+v", c)
	}
	if len(c.DeltasApplied) != 0 {
		t.Errorf("rename should not produce a content delta, got %+v", c.DeltasApplied)
	}
}

func TestAttachRejectsNoOpDetachReattach(t *testing.T) {
	ids := vocab.NewPersistentSource(1)
	r := NewEmptyRootRoster(ids)
	content := vocab.HashFileContent([]byte("x"))
	fileID := r.CreateFileNode(content)
	root, _ := r.Root()
	if err := r.AttachNode(fileID, root, "a"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if _, err := r.DetachNodeByPath(vocab.NewRepoPath("a")); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if err := r.AttachNode(fileID, root, "a"); err == nil {
		t.Errorf("expected reattach at the exact old location to fail")
	}
}

func TestAttachRejectsOccupiedSlot(t *testing.T) {
	ids := vocab.NewPersistentSource(1)
	r := NewEmptyRootRoster(ids)
	root, _ := r.Root()
	a := r.CreateFileNode(vocab.HashFileContent([]byte("a")))
	if err := r.AttachNode(a, root, "x"); err != nil {
		t.Fatalf("attach a: %v", err)
	}
	b := r.CreateFileNode(vocab.HashFileContent([]byte("b")))
	if err := r.AttachNode(b, root, "x"); err == nil {
		t.Errorf("expected attach to an occupied slot to fail")
	}
}

func TestApplyRoundTrip(t *testing.T) {
	ids := vocab.NewPersistentSource(1)
	r0 := NewEmptyRootRoster(ids)
	r1 := r0.Clone()
	root, _ := r1.Root()
	dirID := r1.CreateDirNode()
	if err := r1.AttachNode(dirID, root, "sub"); err != nil {
		t.Fatalf("attach dir: %v", err)
	}
	fileID := r1.CreateFileNode(vocab.HashFileContent([]byte("hi")))
	if err := r1.AttachNode(fileID, dirID, "f.txt"); err != nil {
		t.Fatalf("attach file: %v", err)
	}

	c, err := Diff(r0, r1)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	rebuilt, err := Apply(r0, c)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := rebuilt.CheckSane(); err != nil {
		t.Fatalf("CheckSane on rebuilt: %v", err)
	}
	if !rebuilt.HasNodePath(vocab.NewRepoPath("sub/f.txt")) {
		t.Errorf("rebuilt roster missing sub/f.txt")
	}
}

func TestDormantAttrCorpse(t *testing.T) {
	ids := vocab.NewPersistentSource(1)
	r := NewEmptyRootRoster(ids)
	if err := r.SetAttr(vocab.RootPath, "mtn:execute", "true"); err != nil {
		t.Fatalf("SetAttr: %v", err)
	}
	if err := r.ClearAttr(vocab.RootPath, "mtn:execute"); err != nil {
		t.Fatalf("ClearAttr: %v", err)
	}
	n, err := r.GetNodeByPath(vocab.RootPath)
	if err != nil {
		t.Fatalf("GetNodeByPath: %v", err)
	}
	a, ok := n.Attr("mtn:execute")
	if !ok {
		t.Fatalf("expected a dormant corpse to remain")
	}
	if a.Live || a.Value != "" {
		t.Errorf("dormant corpse should be (false, \"\"), got %+v", a)
	}
	if err := r.ClearAttr(vocab.RootPath, "mtn:missing"); err == nil {
		t.Errorf("clearing a nonexistent attribute should fail")
	}
}
