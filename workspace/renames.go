package workspace

import (
	"os"
	"sort"

	"github.com/dscherger/monotone-sub002/cset"
	"github.com/dscherger/monotone-sub002/errs"
	"github.com/dscherger/monotone-sub002/vocab"
)

// RenameWarning records a best-effort filesystem move that could not be
// performed exactly as requested but whose tree-only rename still
// succeeded.
type RenameWarning struct {
	Src, Dst vocab.RepoPath
	Reason   string
}

// PerformRenames implements §4.6's two rename shapes: a single SRC DST
// pair, or SRC... DSTDIR where dst is an existing tracked directory and
// each source's basename is appended under it. Missing destination
// parent directories are magic-added; filesystem moves are best-effort.
func (w *Workspace) PerformRenames(srcs []vocab.RepoPath, dst vocab.RepoPath) ([]RenameWarning, error) {
	if len(srcs) == 0 {
		return nil, errs.New(errs.User, "no source paths given to rename")
	}

	current, err := w.ShapeRoster()
	if err != nil {
		return nil, err
	}

	var pairs []cset.Rename
	if current.HasNodePath(dst) {
		dstNode, _ := current.GetNodeByPath(dst)
		if !dstNode.IsDirectory() {
			return nil, errs.New(errs.User, "rename destination "+dst.String()+" exists and is not a directory")
		}
		for _, src := range srcs {
			pairs = append(pairs, cset.Rename{Old: src, New: dst.Join(src.Basename())})
		}
	} else {
		if len(srcs) != 1 {
			return nil, errs.New(errs.User, "renaming multiple sources requires an existing destination directory")
		}
		pairs = append(pairs, cset.Rename{Old: srcs[0], New: dst})
	}

	tracked := make(map[string]bool)
	for _, id := range current.AllNodeIDs() {
		p, err := current.GetName(id)
		if err != nil {
			return nil, err
		}
		tracked[p.String()] = true
	}

	var magicDirs []vocab.RepoPath
	for _, pair := range pairs {
		if !tracked[pair.Old.String()] {
			return nil, errs.New(errs.User, pair.Old.String()+" is not tracked")
		}
		if tracked[pair.New.String()] {
			return nil, errs.New(errs.User, "rename destination "+pair.New.String()+" already exists")
		}
		var missing []vocab.RepoPath
		for cur := pair.New.Dirname(); !cur.IsRoot(); cur = cur.Dirname() {
			if tracked[cur.String()] {
				break
			}
			tracked[cur.String()] = true
			missing = append(missing, cur)
		}
		for i := len(missing) - 1; i >= 0; i-- {
			magicDirs = append(magicDirs, missing[i])
		}
		tracked[pair.New.String()] = true
	}
	sort.Slice(magicDirs, func(i, j int) bool { return magicDirs[i].String() < magicDirs[j].String() })

	var warnings []RenameWarning
	for _, pair := range pairs {
		srcSys, dstSys := w.sysPath(pair.Old), w.sysPath(pair.New)
		_, srcErr := os.Stat(srcSys)
		_, dstErr := os.Stat(dstSys)
		switch {
		case srcErr == nil:
			if err := os.Rename(srcSys, dstSys); err != nil {
				warnings = append(warnings, RenameWarning{Src: pair.Old, Dst: pair.New, Reason: err.Error()})
			}
		case os.IsNotExist(srcErr) && dstErr == nil:
			warnings = append(warnings, RenameWarning{Src: pair.Old, Dst: pair.New, Reason: "source missing on disk; tree-only rename applied"})
		}
		w.ForgetInodeprint(pair.Old.String())
	}

	err = w.mutatePendingCset(func(c *cset.Cset) error {
		c.DirsAdded = append(c.DirsAdded, magicDirs...)
		c.NodesRenamed = append(c.NodesRenamed, pairs...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return warnings, nil
}
