package workspace

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/dscherger/monotone-sub002/cset"
	"github.com/dscherger/monotone-sub002/errs"
	"github.com/dscherger/monotone-sub002/vocab"
)

// AdditionOptions configures PerformAdditions.
type AdditionOptions struct {
	Recursive     bool
	RespectIgnore bool
	// Ignore reports whether path should be skipped, the Lua-hook
	// ignore-predicate callback of the original; nil means ignore nothing.
	Ignore func(vocab.RepoPath) bool
}

// PerformAdditions implements §4.6's perform_additions: walk the
// requested paths (recursively if asked), materialize any missing
// intermediate directories, and commit the resulting add_dir/add_file
// operations to _MTN/revision. Paths already tracked are silently
// skipped, as is the database file itself.
func (w *Workspace) PerformAdditions(paths []vocab.RepoPath, opts AdditionOptions) error {
	current, err := w.ShapeRoster()
	if err != nil {
		return err
	}

	tracked := make(map[string]bool)
	for _, id := range current.AllNodeIDs() {
		p, err := current.GetName(id)
		if err != nil {
			return err
		}
		tracked[p.String()] = true
	}

	var dirsAdded []vocab.RepoPath
	var filesAdded []cset.AddFile
	queueDir := func(p vocab.RepoPath) {
		if tracked[p.String()] {
			return
		}
		tracked[p.String()] = true
		dirsAdded = append(dirsAdded, p)
	}
	queueFile := func(p vocab.RepoPath, content vocab.FileID) {
		if tracked[p.String()] {
			return
		}
		tracked[p.String()] = true
		filesAdded = append(filesAdded, cset.AddFile{Path: p, Content: content})
	}

	ensureAncestors := func(p vocab.RepoPath) {
		var missing []vocab.RepoPath
		for cur := p.Dirname(); !cur.IsRoot(); cur = cur.Dirname() {
			if tracked[cur.String()] {
				break
			}
			missing = append(missing, cur)
		}
		for i := len(missing) - 1; i >= 0; i-- {
			queueDir(missing[i])
		}
	}

	skip := func(p vocab.RepoPath) bool {
		if p.HasBookkeepingRootComponent() {
			return true
		}
		if w.isDatabasePath(p) {
			return true
		}
		if opts.RespectIgnore && opts.Ignore != nil && opts.Ignore(p) {
			return true
		}
		return false
	}

	for _, requested := range paths {
		err := filepath.WalkDir(w.sysPath(requested), func(sys string, d os.DirEntry, err error) error {
			if err != nil {
				return errs.Wrap(errs.System, "walking "+sys, err)
			}
			rel, err := filepath.Rel(w.root, sys)
			if err != nil {
				return errs.Wrap(errs.System, "computing relative path for "+sys, err)
			}
			p := vocab.NewRepoPath(filepath.ToSlash(rel))
			if skip(p) {
				if d.IsDir() && sys != w.sysPath(requested) {
					return filepath.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				if sys != w.sysPath(requested) && !opts.Recursive {
					return filepath.SkipDir
				}
				ensureAncestors(p)
				queueDir(p)
				return nil
			}

			ensureAncestors(p)
			data, err := os.ReadFile(sys)
			if err != nil {
				return errs.Wrap(errs.System, "reading "+sys, err)
			}
			id, err := w.Store.PutFile(data)
			if err != nil {
				return err
			}
			queueFile(p, id)
			return nil
		})
		if err != nil {
			return err
		}
	}

	if len(dirsAdded) == 0 && len(filesAdded) == 0 {
		return nil
	}

	sort.Slice(dirsAdded, func(i, j int) bool { return dirsAdded[i].String() < dirsAdded[j].String() })
	sort.Slice(filesAdded, func(i, j int) bool { return filesAdded[i].Path.String() < filesAdded[j].Path.String() })

	return w.mutatePendingCset(func(c *cset.Cset) error {
		c.DirsAdded = append(c.DirsAdded, dirsAdded...)
		c.FilesAdded = append(c.FilesAdded, filesAdded...)
		return nil
	})
}

func (w *Workspace) isDatabasePath(p vocab.RepoPath) bool {
	if w.Options.Database == "" {
		return false
	}
	dbAbs := resolveDBPath(w.root, w.Options.Database)
	return filepath.Join(w.root, p.String()) == dbAbs
}
