package workspace

import (
	"context"
	"os"
	"sync"

	"github.com/dscherger/monotone-sub002/errs"
	"github.com/dscherger/monotone-sub002/vocab"
	"golang.org/x/sync/errgroup"
)

// ScanStatus classifies what a filesystem rescan found at a tracked path.
type ScanStatus int

const (
	ScanOK ScanStatus = iota
	ScanMissing
	ScanWrongType // a file where a directory was tracked, or vice versa
	ScanUnreadable
)

// ScanResult is what update_current_roster_from_filesystem reports per
// tracked path instead of aborting the whole scan on the first problem.
type ScanResult struct {
	Path    vocab.RepoPath
	Status  ScanStatus
	Content vocab.FileID // set only for ScanOK files whose content changed
	Changed bool
}

// scanTask describes one tracked node to refresh.
type scanTask struct {
	path      vocab.RepoPath
	isDir     bool
	oldPrint  string
	haveOld   bool
	oldContent vocab.FileID
}

// scanFilesystem refreshes tasks against disk, bounded to workers
// concurrent stat/hash operations. Grounded on store.VerifyChains' use of
// golang.org/x/sync/errgroup for "one independent unit of I/O per id,
// bounded fan-out", applied here to "one independent unit of I/O per
// tracked path" instead of per delta chain.
func (w *Workspace) scanFilesystem(ctx context.Context, tasks []scanTask, workers int) ([]ScanResult, error) {
	if workers <= 0 {
		workers = 8
	}
	results := make([]ScanResult, len(tasks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	putFile := func(data []byte, baseID vocab.FileID, haveBase bool) (vocab.FileID, error) {
		mu.Lock()
		defer mu.Unlock()
		return w.Store.PutFileAgainst(data, baseID, haveBase)
	}

	for i, t := range tasks {
		i, t := i, t
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			results[i] = w.scanOne(t, putFile)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errs.Wrap(errs.System, "scanning workspace filesystem", err)
	}
	return results, nil
}

func (w *Workspace) scanOne(t scanTask, putFile func(data []byte, baseID vocab.FileID, haveBase bool) (vocab.FileID, error)) ScanResult {
	sysPath := w.sysPath(t.path)
	info, err := os.Lstat(sysPath)
	if os.IsNotExist(err) {
		return ScanResult{Path: t.path, Status: ScanMissing}
	}
	if err != nil {
		return ScanResult{Path: t.path, Status: ScanUnreadable}
	}
	if t.isDir != info.IsDir() {
		return ScanResult{Path: t.path, Status: ScanWrongType}
	}
	if t.isDir {
		return ScanResult{Path: t.path, Status: ScanOK}
	}

	if t.haveOld {
		if cur, ok := inodeprint(sysPath); ok && cur == t.oldPrint {
			return ScanResult{Path: t.path, Status: ScanOK, Content: t.oldContent}
		}
	}

	data, err := os.ReadFile(sysPath)
	if err != nil {
		return ScanResult{Path: t.path, Status: ScanUnreadable}
	}
	id, err := putFile(data, t.oldContent, !t.oldContent.IsNull())
	if err != nil {
		return ScanResult{Path: t.path, Status: ScanUnreadable}
	}
	return ScanResult{
		Path:    t.path,
		Status:  ScanOK,
		Content: id,
		Changed: id != t.oldContent,
	}
}
