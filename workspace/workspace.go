// Package workspace implements the on-disk working copy: the bookkeeping
// directory (_MTN), inodeprint-based change detection, the pending
// changeset, and the filesystem-facing operations (additions, deletions,
// renames, pivot-root, checkout/update, bisect) that keep it in sync with
// the roster store.
//
// Grounded on garland.Library/Garland's process-wide instance registry
// (garland.go) for workspace and database handle caching, on
// garland/source_change.go and move_copy_test.go for the edit-application
// discipline adapted here from byte ropes to node-identified trees, and
// on garland/region_ops.go's dissolve-or-discard staging model for the
// detached-node staging directory used during content update.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dscherger/monotone-sub002/errs"
	"github.com/dscherger/monotone-sub002/logging"
	"github.com/dscherger/monotone-sub002/store"
	"github.com/dscherger/monotone-sub002/vocab"
	"github.com/google/uuid"
)

var logger = logging.For("workspace")

// Workspace is a handle onto one checked-out working copy: its root
// directory, bookkeeping state, and the database it is checked out
// against.
type Workspace struct {
	root  string // absolute, canonical
	Store *store.Store

	Options     Options
	Inodeprints map[string]string // repo path -> inodeprint hex, as last synced to disk
}

// Root returns the workspace's absolute root directory.
func (w *Workspace) Root() vocab.SystemPath { return vocab.SystemPath(w.root) }

// bkPath resolves a bookkeeping-relative path to an absolute one.
func (w *Workspace) bkPath(p vocab.BookkeepingPath) string {
	return filepath.Join(w.root, string(p))
}

// sysPath resolves a repo-relative path to its absolute on-disk location.
func (w *Workspace) sysPath(p vocab.RepoPath) string {
	if p.IsRoot() {
		return w.root
	}
	return filepath.Join(w.root, p.String())
}

// Discover walks up from startDir looking for a directory containing
// _MTN, the way a process locates its workspace at startup by walking
// up from the current directory. Returns the already-registered
// Workspace if one is cached for the discovered root.
func Discover(startDir string) (*Workspace, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, errs.Wrap(errs.System, "resolving start directory", err)
	}
	for {
		candidate := filepath.Join(dir, vocab.BookkeepingDirName)
		if info, statErr := os.Stat(candidate); statErr == nil && info.IsDir() {
			return Open(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, errs.New(errs.User, "no workspace found (no "+vocab.BookkeepingDirName+" directory in any parent)")
		}
		dir = parent
	}
}

// Open loads the workspace rooted at root, sharing the process-wide
// Workspace and Store handles if another caller already opened the same
// paths.
func Open(root string) (*Workspace, error) {
	canon, err := filepath.Abs(root)
	if err != nil {
		return nil, errs.Wrap(errs.System, "resolving workspace root", err)
	}
	if w, ok := lookupWorkspace(canon); ok {
		return w, nil
	}

	bkDir := filepath.Join(canon, vocab.BookkeepingDirName)
	if info, statErr := os.Stat(bkDir); statErr != nil || !info.IsDir() {
		return nil, errs.Wrap(errs.Workspace, fmt.Sprintf("%s is not a workspace root", canon), errs.ErrNotFound)
	}

	w := &Workspace{root: canon}

	opts, err := readOptions(w)
	if err != nil {
		return nil, err
	}
	w.Options = opts

	if opts.Database != "" {
		dbPath := opts.Database
		if !filepath.IsAbs(dbPath) {
			dbPath = filepath.Join(canon, dbPath)
		}
		s, err := openStore(dbPath)
		if err != nil {
			return nil, err
		}
		w.Store = s
	}

	prints, err := readInodeprints(w)
	if err != nil {
		return nil, err
	}
	w.Inodeprints = prints

	registerWorkspace(canon, w)
	logger.Debug().Str("workspace_id", w.Options.InstanceID).Str("root", canon).Msg("opened workspace")
	return w, nil
}

// Create initializes a fresh bookkeeping directory at root against
// database dbPath and branch, then registers and returns the Workspace.
// Fails if root already contains a bookkeeping directory.
func Create(root, dbPath, branch, keyName string) (*Workspace, error) {
	canon, err := filepath.Abs(root)
	if err != nil {
		return nil, errs.Wrap(errs.System, "resolving workspace root", err)
	}
	bkDir := filepath.Join(canon, vocab.BookkeepingDirName)
	if _, statErr := os.Stat(bkDir); statErr == nil {
		return nil, errs.New(errs.User, "workspace already exists at "+canon)
	}
	if err := os.MkdirAll(bkDir, 0o755); err != nil {
		return nil, errs.Wrap(errs.System, "creating bookkeeping directory", err)
	}

	w := &Workspace{
		root: canon,
		Options: Options{
			Database:   dbPath,
			Branch:     branch,
			KeyName:    keyName,
			InstanceID: uuid.New().String(),
		},
		Inodeprints: make(map[string]string),
	}
	if err := writeOptions(w, w.Options); err != nil {
		return nil, err
	}
	if err := writeFormat(w, 1); err != nil {
		return nil, err
	}

	s, err := openStore(resolveDBPath(canon, dbPath))
	if err != nil {
		return nil, err
	}
	w.Store = s
	logger.Info().Str("workspace_id", w.Options.InstanceID).Str("root", canon).Msg("created workspace")

	registerWorkspace(canon, w)
	return w, nil
}

func resolveDBPath(root, dbPath string) string {
	if filepath.IsAbs(dbPath) {
		return dbPath
	}
	return filepath.Join(root, dbPath)
}

// Close releases the workspace's reference to its shared database handle
// and drops it from the process-wide registry.
func (w *Workspace) Close() error {
	unregisterWorkspace(w.root)
	if w.Options.Database == "" {
		return nil
	}
	return releaseStore(resolveDBPath(w.root, w.Options.Database))
}
