package workspace

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/dscherger/monotone-sub002/cset"
	"github.com/dscherger/monotone-sub002/errs"
	"github.com/dscherger/monotone-sub002/roster"
	"github.com/dscherger/monotone-sub002/vocab"
)

// ConflictKind classifies a problem the simulated run finds before any
// filesystem mutation happens.
type ConflictKind string

const (
	// ConflictAttachBlocked: the cset wants to create or move a node to a
	// path that is occupied on disk by something the roster doesn't track.
	ConflictAttachBlocked ConflictKind = "attach_blocked"
	// ConflictNonEmptyDirDropped: a tracked directory being deleted still
	// has untracked children on disk, so it cannot be cleanly removed.
	ConflictNonEmptyDirDropped ConflictKind = "non_empty_dir_dropped"
	// ConflictRenameTargetOccupied: the destination path is already
	// tracked by a different, unrelated node.
	ConflictRenameTargetOccupied ConflictKind = "rename_target_occupied"
)

// Conflict records one path the simulated run could not reconcile.
type Conflict struct {
	Kind ConflictKind
	Path vocab.RepoPath
}

// UpdateOptions configures ApplyContentUpdate.
type UpdateOptions struct {
	// MoveConflictingPaths: move offending on-disk paths aside into
	// _MTN/resolutions/ instead of failing outright.
	MoveConflictingPaths bool
	// AttributeHook runs for every node created or updated by the real
	// run, standing in for the attribute hook; nil means no-op.
	AttributeHook func(vocab.RepoPath) error
}

func (w *Workspace) detachedRoot() string    { return w.bkPath(vocab.NewBookkeepingPath("detached")) }
func (w *Workspace) resolutionsRoot() string { return w.bkPath(vocab.NewBookkeepingPath("resolutions")) }

// ApplyContentUpdate drives checkout/update/merge-result content
// application: c describes the change from the workspace's current shape
// to the target shape. It runs a simulated pass first to surface
// conflicts without touching disk, then (on success, or after resolving
// conflicts) a staged real pass: every node the cset touches is moved
// into _MTN/detached/<nid> before anything is written to its final
// location, so a mid-run failure leaves recoverable state rather than a
// half-applied tree.
//
// The presence of _MTN/detached at the start of a run means a previous
// run was interrupted; it is left for the operator to inspect and is
// never silently reused.
func (w *Workspace) ApplyContentUpdate(c *cset.Cset, opts UpdateOptions) ([]Conflict, error) {
	log := logger.With().Str("workspace_id", w.Options.InstanceID).Logger()
	if _, err := os.Stat(w.detachedRoot()); err == nil {
		return nil, errs.New(errs.Workspace, "workspace is locked: "+w.detachedRoot()+" exists from an interrupted run")
	}

	current, err := w.ShapeRoster()
	if err != nil {
		return nil, err
	}

	conflicts, err := w.simulateContentUpdate(current, c)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		if !opts.MoveConflictingPaths {
			return conflicts, errs.New(errs.User, "content update blocked by conflicting paths")
		}
		if err := w.moveConflictingPaths(conflicts); err != nil {
			return conflicts, err
		}
	}

	if err := os.MkdirAll(w.detachedRoot(), 0o755); err != nil {
		return conflicts, errs.Wrap(errs.System, "creating detach staging directory", err)
	}

	if err := w.executeContentUpdate(current, c, opts); err != nil {
		// staging directory is left in place for diagnosis
		return conflicts, err
	}

	if err := os.RemoveAll(w.detachedRoot()); err != nil {
		return conflicts, errs.Wrap(errs.System, "removing detach staging directory", err)
	}
	log.Debug().Int("conflicts", len(conflicts)).Msg("content update applied")
	return conflicts, nil
}

// simulateContentUpdate checks every attach target the cset will create:
// an attach is blocked if the destination is occupied by an untracked
// on-disk entry, or by a different tracked node that the cset does not
// also move or remove in the same pass. A directory slated for deletion
// is flagged if the filesystem shows children the roster doesn't track.
func (w *Workspace) simulateContentUpdate(current *roster.Roster, c *cset.Cset) ([]Conflict, error) {
	tracked := make(map[string]bool)
	for _, id := range current.AllNodeIDs() {
		p, err := current.GetName(id)
		if err != nil {
			return nil, err
		}
		tracked[p.String()] = true
	}

	vacated := make(map[string]bool)
	for _, p := range c.NodesDeleted {
		vacated[p.String()] = true
	}
	for _, r := range c.NodesRenamed {
		vacated[r.Old.String()] = true
	}

	var conflicts []Conflict
	checkTarget := func(p vocab.RepoPath) {
		if tracked[p.String()] && !vacated[p.String()] {
			conflicts = append(conflicts, Conflict{Kind: ConflictRenameTargetOccupied, Path: p})
			return
		}
		if _, err := os.Lstat(w.sysPath(p)); err == nil && !tracked[p.String()] {
			conflicts = append(conflicts, Conflict{Kind: ConflictAttachBlocked, Path: p})
		}
	}
	for _, p := range c.DirsAdded {
		checkTarget(p)
	}
	for _, f := range c.FilesAdded {
		checkTarget(f.Path)
	}
	for _, r := range c.NodesRenamed {
		checkTarget(r.New)
	}

	for _, p := range c.NodesDeleted {
		n, err := current.GetNodeByPath(p)
		if err != nil || !n.IsDirectory() {
			continue
		}
		entries, err := os.ReadDir(w.sysPath(p))
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !tracked[p.Join(vocab.PathComponent(e.Name())).String()] {
				conflicts = append(conflicts, Conflict{Kind: ConflictNonEmptyDirDropped, Path: p})
				break
			}
		}
	}

	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Path.String() < conflicts[j].Path.String() })
	return conflicts, nil
}

// moveConflictingPaths relocates every blocked or occupied path into
// _MTN/resolutions/<same relative path>, preserving directory structure,
// so the real run can proceed unobstructed. A dropped non-empty
// directory has nothing to move; it is simply left behind untracked.
func (w *Workspace) moveConflictingPaths(conflicts []Conflict) error {
	for _, cf := range conflicts {
		if cf.Kind == ConflictNonEmptyDirDropped {
			continue
		}
		src := w.sysPath(cf.Path)
		if _, err := os.Lstat(src); err != nil {
			continue
		}
		dst := filepath.Join(w.resolutionsRoot(), filepath.FromSlash(cf.Path.String()))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return errs.Wrap(errs.System, "creating resolutions directory", err)
		}
		if err := os.Rename(src, dst); err != nil {
			return errs.Wrap(errs.System, "moving conflicting path "+cf.Path.String()+" aside", err)
		}
	}
	return nil
}

// executeContentUpdate performs the real run, mirroring roster.Apply's
// phase order (deletions deepest-first, then renames, then dir adds,
// file adds, content deltas, attribute changes) so the same operation
// that vacates a directory can repopulate it within one run.
func (w *Workspace) executeContentUpdate(current *roster.Roster, c *cset.Cset, opts UpdateOptions) error {
	dels := append([]vocab.RepoPath(nil), c.NodesDeleted...)
	sort.Slice(dels, func(i, j int) bool { return len(dels[i].Components()) > len(dels[j].Components()) })
	for _, p := range dels {
		n, err := current.GetNodeByPath(p)
		if err != nil {
			return err
		}
		if err := w.detachToStaging(n.Self(), p); err != nil {
			return err
		}
		w.ForgetInodeprint(p.String())
	}

	for _, r := range c.NodesRenamed {
		n, err := current.GetNodeByPath(r.Old)
		if err != nil {
			return err
		}
		if err := w.detachToStaging(n.Self(), r.Old); err != nil {
			return err
		}
	}
	for _, r := range c.NodesRenamed {
		n, err := current.GetNodeByPath(r.Old)
		if err != nil {
			return err
		}
		if err := w.attachFromStaging(n.Self(), r.New); err != nil {
			return err
		}
		w.ForgetInodeprint(r.Old.String())
		if err := w.runAttributeHook(opts, r.New); err != nil {
			return err
		}
	}

	for _, p := range c.DirsAdded {
		if err := os.MkdirAll(w.sysPath(p), 0o755); err != nil {
			return errs.Wrap(errs.System, "creating directory "+p.String(), err)
		}
		if err := w.runAttributeHook(opts, p); err != nil {
			return err
		}
	}

	for _, f := range c.FilesAdded {
		data, err := w.Store.GetFile(f.Content)
		if err != nil {
			return err
		}
		if err := w.writeFileAtomically(f.Path, data); err != nil {
			return err
		}
		if err := w.runAttributeHook(opts, f.Path); err != nil {
			return err
		}
	}

	for _, d := range c.DeltasApplied {
		if err := w.applyDeltaToDisk(d); err != nil {
			return err
		}
		if err := w.runAttributeHook(opts, d.Path); err != nil {
			return err
		}
	}

	for _, a := range c.AttrsSet {
		if err := w.runAttributeHook(opts, a.Path); err != nil {
			return err
		}
	}
	for _, a := range c.AttrsCleared {
		if err := w.runAttributeHook(opts, a.Path); err != nil {
			return err
		}
	}

	return nil
}

// applyDeltaToDisk overwrites a file's on-disk content after verifying
// its current bytes still hash to the expected old content id; a
// mismatch means something changed it behind the engine's back, and the
// update aborts rather than clobbering an unexpected edit.
func (w *Workspace) applyDeltaToDisk(d cset.ContentDelta) error {
	sys := w.sysPath(d.Path)
	current, err := os.ReadFile(sys)
	if err != nil {
		return errs.Wrap(errs.System, "reading "+d.Path.String()+" before applying delta", err)
	}
	if vocab.HashFileContent(current) != d.Old {
		return errs.New(errs.User, d.Path.String()+" has changed on disk since it was last scanned; aborting update")
	}
	data, err := w.Store.GetFile(d.New)
	if err != nil {
		return err
	}
	if err := w.writeFileAtomically(d.Path, data); err != nil {
		return err
	}
	w.ForgetInodeprint(d.Path.String())
	return nil
}

func (w *Workspace) writeFileAtomically(p vocab.RepoPath, data []byte) error {
	sys := w.sysPath(p)
	tmp := sys + ".mtn-tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errs.Wrap(errs.System, "writing "+p.String(), err)
	}
	if err := os.Rename(tmp, sys); err != nil {
		return errs.Wrap(errs.System, "replacing "+p.String(), err)
	}
	return nil
}

func (w *Workspace) runAttributeHook(opts UpdateOptions, p vocab.RepoPath) error {
	if opts.AttributeHook == nil {
		return nil
	}
	return opts.AttributeHook(p)
}

// stagingEntry returns where node id's detached content lives beneath
// _MTN/detached for the duration of one content-update run.
func (w *Workspace) stagingEntry(id vocab.NodeID) string {
	return filepath.Join(w.detachedRoot(), strconv.FormatUint(uint64(id), 10))
}

// detachToStaging moves the on-disk entry at p into its node's staging
// slot. Root cannot itself be moved (it is the workspace directory that
// _MTN lives inside), so detaching it is simulated by moving its
// contents into the staging slot individually instead.
func (w *Workspace) detachToStaging(id vocab.NodeID, p vocab.RepoPath) error {
	if p.IsRoot() {
		return w.detachRootContents(id)
	}
	sys := w.sysPath(p)
	if _, err := os.Lstat(sys); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.Wrap(errs.System, "statting "+p.String(), err)
	}
	if err := os.Rename(sys, w.stagingEntry(id)); err != nil {
		return errs.Wrap(errs.System, "detaching "+p.String(), err)
	}
	return nil
}

// attachFromStaging moves a previously detached node's staged content to
// its new path p, creating missing parent directories as needed.
func (w *Workspace) attachFromStaging(id vocab.NodeID, p vocab.RepoPath) error {
	if p.IsRoot() {
		return w.attachRootContents(id)
	}
	if err := os.MkdirAll(filepath.Dir(w.sysPath(p)), 0o755); err != nil {
		return errs.Wrap(errs.System, "creating parent directory for "+p.String(), err)
	}
	if err := os.Rename(w.stagingEntry(id), w.sysPath(p)); err != nil {
		return errs.Wrap(errs.System, "attaching "+p.String(), err)
	}
	return nil
}

// detachRootContents moves every entry directly under the workspace
// root, except the bookkeeping directory, into root's staging slot.
func (w *Workspace) detachRootContents(id vocab.NodeID) error {
	stage := w.stagingEntry(id)
	if err := os.MkdirAll(stage, 0o755); err != nil {
		return errs.Wrap(errs.System, "staging root contents", err)
	}
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return errs.Wrap(errs.System, "reading workspace root", err)
	}
	for _, e := range entries {
		if e.Name() == string(vocab.BookkeepingDirName) {
			continue
		}
		if err := os.Rename(filepath.Join(w.root, e.Name()), filepath.Join(stage, e.Name())); err != nil {
			return errs.Wrap(errs.System, "staging "+e.Name(), err)
		}
	}
	return nil
}

// attachRootContents moves root's staged contents back to the workspace
// root, the inverse of detachRootContents.
func (w *Workspace) attachRootContents(id vocab.NodeID) error {
	stage := w.stagingEntry(id)
	entries, err := os.ReadDir(stage)
	if err != nil {
		return errs.Wrap(errs.System, "reading staged root contents", err)
	}
	for _, e := range entries {
		if err := os.Rename(filepath.Join(stage, e.Name()), filepath.Join(w.root, e.Name())); err != nil {
			return errs.Wrap(errs.System, "restoring "+e.Name(), err)
		}
	}
	return os.Remove(stage)
}
