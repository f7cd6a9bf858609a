package workspace

import (
	"os"
	"sort"

	"github.com/dscherger/monotone-sub002/cset"
	"github.com/dscherger/monotone-sub002/errs"
	"github.com/dscherger/monotone-sub002/vocab"
)

// DeletionWarning records a tracked file whose on-disk content no longer
// matched the roster at delete time: it was dropped from the roster but
// left on disk for the caller to inspect.
type DeletionWarning struct {
	Path vocab.RepoPath
}

// PerformDeletions implements §4.6's deletion algorithm: paths are
// processed in reverse lexicographic order (which, since a path is
// always a string-prefix of its own children, places every descendant
// before its ancestor), so a directory empties out before it is itself
// removed. A directory with live children is refused unless recursive.
func (w *Workspace) PerformDeletions(paths []vocab.RepoPath, recursive bool) ([]DeletionWarning, error) {
	current, err := w.ShapeRoster()
	if err != nil {
		return nil, err
	}

	toDelete := make(map[string]bool)
	var all []vocab.RepoPath
	add := func(p vocab.RepoPath) {
		if !toDelete[p.String()] {
			toDelete[p.String()] = true
			all = append(all, p)
		}
	}

	var expand func(p vocab.RepoPath) error
	expand = func(p vocab.RepoPath) error {
		n, err := current.GetNodeByPath(p)
		if err != nil {
			return err
		}
		if n.IsDirectory() {
			children := n.ChildNames()
			if len(children) > 0 && !recursive {
				return errs.New(errs.User, "directory "+p.String()+" is not empty")
			}
			for _, name := range children {
				if err := expand(p.Join(name)); err != nil {
					return err
				}
			}
		}
		add(p)
		return nil
	}
	for _, p := range paths {
		if err := expand(p); err != nil {
			return nil, err
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].String() > all[j].String() })

	var warnings []DeletionWarning
	for _, p := range all {
		n, err := current.GetNodeByPath(p)
		if err != nil {
			return nil, err
		}
		sys := w.sysPath(p)
		if n.IsFile() {
			if data, rerr := os.ReadFile(sys); rerr == nil {
				if vocab.HashFileContent(data) == n.Content() {
					os.Remove(sys)
				} else {
					warnings = append(warnings, DeletionWarning{Path: p})
				}
			}
		} else {
			os.Remove(sys) // best effort; only succeeds once every child is gone
		}
		w.ForgetInodeprint(p.String())
	}

	err = w.mutatePendingCset(func(c *cset.Cset) error {
		c.NodesDeleted = append(c.NodesDeleted, all...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return warnings, nil
}
