package roster

import (
	"sort"

	"github.com/dscherger/monotone-sub002/cset"
	"github.com/dscherger/monotone-sub002/vocab"
)

// Diff computes cset(from, to): iterate both all_nodes maps
// in parallel keyed by node id, emitting a deletion for ids present only
// in from, an addition for ids present only in to, and for shared ids
// comparing name+parent (rename), content (delta), and attrs (clear/set).
// Ordering is fully determined by node id iteration.
func Diff(from, to *Roster) (*cset.Cset, error) {
	ids := unionSortedIDs(from, to)
	c := &cset.Cset{}

	for _, id := range ids {
		fn, inFrom := from.nodes[id]
		tn, inTo := to.nodes[id]

		switch {
		case inFrom && !inTo:
			p, err := from.GetName(id)
			if err != nil {
				return nil, err
			}
			c.NodesDeleted = append(c.NodesDeleted, p)

		case !inFrom && inTo:
			p, err := to.GetName(id)
			if err != nil {
				return nil, err
			}
			if tn.IsDirectory() {
				c.DirsAdded = append(c.DirsAdded, p)
			} else {
				c.FilesAdded = append(c.FilesAdded, cset.AddFile{Path: p, Content: tn.content})
			}
			diffAttrs(c, p, nil, tn.attrs)

		default:
			oldPath, err := from.GetName(id)
			if err != nil {
				return nil, err
			}
			newPath, err := to.GetName(id)
			if err != nil {
				return nil, err
			}
			if oldPath.String() != newPath.String() {
				c.NodesRenamed = append(c.NodesRenamed, cset.Rename{Old: oldPath, New: newPath})
			}
			if fn.IsFile() && tn.IsFile() && fn.content != tn.content {
				c.DeltasApplied = append(c.DeltasApplied, cset.ContentDelta{Path: newPath, Old: fn.content, New: tn.content})
			}
			diffAttrs(c, newPath, fn.attrs, tn.attrs)
		}
	}
	return c, nil
}

func diffAttrs(c *cset.Cset, path vocab.RepoPath, from, to map[string]Attr) {
	keys := make(map[string]bool)
	for k := range from {
		keys[k] = true
	}
	for k := range to {
		keys[k] = true
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	for _, k := range sorted {
		fa, fok := from[k]
		ta, tok := to[k]
		if fok && fa == ta {
			continue
		}
		if !tok {
			continue // attribute entry vanished entirely: never valid, ignore defensively
		}
		if ta.Live {
			if fok && fa.Live && fa.Value == ta.Value {
				continue
			}
			c.AttrsSet = append(c.AttrsSet, cset.AttrSet{Path: path, Key: k, Value: ta.Value})
		} else if !fok || fa.Live {
			c.AttrsCleared = append(c.AttrsCleared, cset.AttrClear{Path: path, Key: k})
		}
	}
}

func unionSortedIDs(a, b *Roster) []vocab.NodeID {
	seen := make(map[vocab.NodeID]bool, len(a.nodes)+len(b.nodes))
	ids := make([]vocab.NodeID, 0, len(a.nodes)+len(b.nodes))
	for id := range a.nodes {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for id := range b.nodes {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Apply builds the roster that results from applying c to base. Grounded
// on garland/move_copy_test.go's pattern of applying an edit description
// in a fixed phase order (deletes and renames before adds, content before
// attrs) so that a directory can be vacated and repopulated within the
// same cset without spurious slot-occupied failures.
func Apply(base *Roster, c *cset.Cset) (*Roster, error) {
	r := base.Clone()

	// Deletions first, deepest paths first so a directory's children are
	// gone before the directory itself is detached.
	dels := append([]vocab.RepoPath(nil), c.NodesDeleted...)
	sort.Slice(dels, func(i, j int) bool { return len(dels[i].Components()) > len(dels[j].Components()) })
	for _, p := range dels {
		id, err := r.DetachNodeByPath(p)
		if err != nil {
			return nil, err
		}
		if err := r.DropDetachedNode(id); err != nil {
			return nil, err
		}
	}

	for _, ren := range c.NodesRenamed {
		id, err := r.DetachNodeByPath(ren.Old)
		if err != nil {
			return nil, err
		}
		if err := r.AttachNode(id, parentIDOf(r, ren.New), ren.New.Basename()); err != nil {
			return nil, err
		}
	}

	for _, p := range c.DirsAdded {
		id := r.CreateDirNode()
		if err := r.AttachNode(id, parentIDOf(r, p), p.Basename()); err != nil {
			return nil, err
		}
	}

	for _, f := range c.FilesAdded {
		id := r.CreateFileNode(f.Content)
		if err := r.AttachNode(id, parentIDOf(r, f.Path), f.Path.Basename()); err != nil {
			return nil, err
		}
	}

	for _, d := range c.DeltasApplied {
		if err := r.ApplyDelta(d.Path, d.Old, d.New); err != nil {
			return nil, err
		}
	}

	for _, a := range c.AttrsCleared {
		if err := r.ClearAttr(a.Path, a.Key); err != nil {
			return nil, err
		}
	}

	for _, a := range c.AttrsSet {
		if err := r.SetAttr(a.Path, a.Key, a.Value); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func parentIDOf(r *Roster, p vocab.RepoPath) vocab.NodeID {
	parent, err := r.GetNodeByPath(p.Dirname())
	if err != nil {
		return vocab.NullNode
	}
	return parent.self
}
