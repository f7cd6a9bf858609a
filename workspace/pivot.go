package workspace

import (
	"os"
	"path/filepath"

	"github.com/dscherger/monotone-sub002/cset"
	"github.com/dscherger/monotone-sub002/errs"
	"github.com/dscherger/monotone-sub002/roster"
	"github.com/dscherger/monotone-sub002/vocab"
)

// PivotRoot implements §4.6's pivot-root: newRoot (a tracked directory)
// becomes the workspace's new tree root, and the old root is renamed to
// putOld beneath it. Both the roster and the on-disk directory layout
// are updated; the resulting per-node renames are recorded in
// _MTN/revision the same way any other rename is, by diffing the roster
// before and after the swap rather than hand-building the rename list.
func (w *Workspace) PivotRoot(newRoot, putOld vocab.RepoPath) error {
	if newRoot.IsRoot() {
		return errs.New(errs.User, "pivot-root target is already the workspace root")
	}
	if putOld.HasBookkeepingRootComponent() {
		return errs.New(errs.User, "put-old path may not contain "+string(vocab.BookkeepingDirName))
	}

	old, err := w.ShapeRoster()
	if err != nil {
		return err
	}
	newRootNode, err := old.GetNodeByPath(newRoot)
	if err != nil {
		return errs.Wrap(errs.User, "pivot-root target does not exist", err)
	}
	if !newRootNode.IsDirectory() {
		return errs.New(errs.User, "pivot-root target "+newRoot.String()+" is not a directory")
	}
	if old.HasNodePath(putOld) {
		return errs.New(errs.User, "put-old path "+putOld.String()+" already exists")
	}
	putOldParentPath := putOld.Dirname()
	if !putOldParentPath.IsRoot() {
		parentNode, err := old.GetNodeByPath(putOldParentPath)
		if err != nil {
			return errs.Wrap(errs.User, "put-old parent directory does not exist", err)
		}
		if !parentNode.IsDirectory() {
			return errs.New(errs.User, "put-old parent "+putOldParentPath.String()+" is not a directory")
		}
	}

	next := old.Clone()
	newRootID := newRootNode.Self()
	if err := next.DetachNode(newRootID); err != nil {
		return err
	}
	oldRootID, ok := next.Root()
	if !ok {
		return errs.New(errs.Internal, "workspace roster has no root to pivot")
	}
	if err := next.DetachNode(oldRootID); err != nil {
		return err
	}
	if err := next.AttachNode(newRootID, vocab.NullNode, ""); err != nil {
		return err
	}
	var putOldParentID vocab.NodeID
	if putOldParentPath.IsRoot() {
		putOldParentID = newRootID
	} else {
		parentNode, err := next.GetNodeByPath(putOldParentPath)
		if err != nil {
			return err
		}
		putOldParentID = parentNode.Self()
	}
	if err := next.AttachNode(oldRootID, putOldParentID, putOld.Basename()); err != nil {
		return err
	}

	c, err := roster.Diff(old, next)
	if err != nil {
		return err
	}
	c.Canonicalize()

	if err := w.swapRootOnDisk(newRoot, putOld); err != nil {
		return err
	}

	return w.mutatePendingCset(func(pending *cset.Cset) error {
		*pending = *c
		return nil
	})
}

// swapRootOnDisk moves the new root's on-disk contents up to the
// workspace root and the old contents down to putOld, preserving the
// bookkeeping directory at the true filesystem root throughout.
func (w *Workspace) swapRootOnDisk(newRoot, putOld vocab.RepoPath) error {
	staging, err := os.MkdirTemp(w.bkPath(vocab.NewBookkeepingPath()), "pivot-")
	if err != nil {
		return errs.Wrap(errs.System, "creating pivot staging directory", err)
	}
	defer os.RemoveAll(staging)

	if err := os.Rename(w.sysPath(newRoot), staging+"/newroot"); err != nil {
		return errs.Wrap(errs.System, "staging new root", err)
	}

	putOldSys := w.sysPath(putOld)
	if err := os.MkdirAll(filepath.Dir(putOldSys), 0o755); err != nil {
		return errs.Wrap(errs.System, "creating put-old parent directory", err)
	}

	entries, err := os.ReadDir(w.root)
	if err != nil {
		return errs.Wrap(errs.System, "reading workspace root", err)
	}
	oldRootStage := staging + "/oldroot"
	if err := os.MkdirAll(oldRootStage, 0o755); err != nil {
		return errs.Wrap(errs.System, "staging old root", err)
	}
	for _, e := range entries {
		if e.Name() == string(vocab.BookkeepingDirName) {
			continue
		}
		if err := os.Rename(w.root+"/"+e.Name(), oldRootStage+"/"+e.Name()); err != nil {
			return errs.Wrap(errs.System, "moving "+e.Name()+" into old-root staging", err)
		}
	}
	if err := os.Rename(oldRootStage, putOldSys); err != nil {
		return errs.Wrap(errs.System, "moving old root to put-old", err)
	}

	newRootEntries, err := os.ReadDir(staging + "/newroot")
	if err != nil {
		return errs.Wrap(errs.System, "reading staged new root", err)
	}
	for _, e := range newRootEntries {
		if err := os.Rename(staging+"/newroot/"+e.Name(), w.root+"/"+e.Name()); err != nil {
			return errs.Wrap(errs.System, "promoting "+e.Name()+" to workspace root", err)
		}
	}
	return nil
}
