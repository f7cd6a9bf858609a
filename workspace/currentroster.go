package workspace

import (
	"context"
	"sort"

	"github.com/dscherger/monotone-sub002/errs"
	"github.com/dscherger/monotone-sub002/revision"
	"github.com/dscherger/monotone-sub002/roster"
	"github.com/dscherger/monotone-sub002/vocab"
)

// primaryParent picks the parent whose cset the current roster shape is
// computed against: the null revision for a root workspace, otherwise
// the lower of the parent ids by hex string. For an in-progress merge
// (two parents) either side reproduces the same shape, since both csets
// were computed against a common merge result by the merge engine before
// being recorded.
func primaryParent(rev *revision.Revision) vocab.RevisionID {
	parents := rev.ParentIDs()
	sort.Slice(parents, func(i, j int) bool { return parents[i].String() < parents[j].String() })
	return parents[0]
}

// baseRoster returns the roster the pending revision's cset is applied
// against: the null revision maps to the canonical empty tree, otherwise
// the stored roster for that parent.
func (w *Workspace) baseRoster(parent vocab.RevisionID, ids *vocab.NodeIDSource) (*roster.Roster, error) {
	if parent == vocab.NullRevisionID {
		return roster.NewEmptyRootRoster(ids), nil
	}
	r, _, err := w.Store.GetRoster(parent, ids)
	return r, err
}

// ShapeRoster computes the current roster shape: the parent roster(s)
// with the pending cset applied. Node ids and tree structure are
// authoritative; file content ids may be stale until RefreshFromDisk is
// called.
func (w *Workspace) ShapeRoster() (*roster.Roster, error) {
	rev, err := w.PendingRevision()
	if err != nil {
		return nil, err
	}
	parent := primaryParent(rev)
	c := rev.Parents[parent]

	newNodes := 0
	if c != nil {
		newNodes = len(c.DirsAdded) + len(c.FilesAdded)
	}
	ids, err := w.persistentIDSource(newNodes)
	if err != nil {
		return nil, err
	}
	base, err := w.baseRoster(parent, ids)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return base, nil
	}
	return roster.Apply(base, c)
}

// RefreshFromDisk walks every tracked node in r and brings file content
// ids up to date by inodeprint comparison, falling back to a rehash on
// mismatch. It never aborts on a missing or wrong-type path; such
// problems are reported per path in the returned slice so the caller can
// decide what to do (Commit, its caller, aborts on any such entry).
//
// Missing or type-wrong entries are reported via their ScanResult status
// rather than aborting the scan.
func (w *Workspace) RefreshFromDisk(ctx context.Context, r *roster.Roster) ([]ScanResult, error) {
	rootID, ok := r.Root()
	if !ok {
		return nil, errs.New(errs.Internal, "cannot refresh a rootless roster from disk")
	}

	var tasks []scanTask
	var walk func(id vocab.NodeID, path vocab.RepoPath) error
	walk = func(id vocab.NodeID, path vocab.RepoPath) error {
		n, err := r.GetNode(id)
		if err != nil {
			return err
		}
		if n.IsDirectory() {
			tasks = append(tasks, scanTask{path: path, isDir: true})
			for _, name := range n.ChildNames() {
				child, _ := n.ChildByName(name)
				if err := walk(child.Self(), path.Join(name)); err != nil {
					return err
				}
			}
			return nil
		}
		repoPath := path.String()
		print, haveOld := w.Inodeprints[repoPath]
		tasks = append(tasks, scanTask{
			path:       path,
			isDir:      false,
			oldPrint:   print,
			haveOld:    haveOld,
			oldContent: n.Content(),
		})
		return nil
	}
	if err := walk(rootID, vocab.RootPath); err != nil {
		return nil, err
	}

	results, err := w.scanFilesystem(ctx, tasks, 0)
	if err != nil {
		return nil, err
	}

	for _, res := range results {
		if res.Status != ScanOK || res.Path.IsRoot() {
			continue
		}
		n, err := r.GetNodeByPath(res.Path)
		if err != nil || !n.IsFile() {
			continue
		}
		if res.Changed {
			if err := r.ApplyDelta(res.Path, n.Content(), res.Content); err != nil {
				return nil, err
			}
		}
		w.RefreshInodeprint(res.Path.String())
	}
	return results, nil
}

// persistentIDSource reserves n persistent node ids from the store and
// returns a NodeIDSource seeded at the first one. Safe under the engine's
// single-threaded-cooperative scheduling model: nothing else draws from
// the store's node id counter while this source is in use, so the
// in-memory allocator and the persisted counter never drift apart.
func (w *Workspace) persistentIDSource(n int) (*vocab.NodeIDSource, error) {
	if n <= 0 {
		n = 1
	}
	first, err := w.Store.NextNodeID()
	if err != nil {
		return nil, err
	}
	for i := 1; i < n; i++ {
		if _, err := w.Store.NextNodeID(); err != nil {
			return nil, err
		}
	}
	return vocab.NewPersistentSource(first), nil
}
