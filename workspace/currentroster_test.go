package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dscherger/monotone-sub002/vocab"
	"github.com/stretchr/testify/require"
)

func TestShapeRosterReflectsPendingAdditions(t *testing.T) {
	w := newTestWorkspace(t)
	addFile(t, w, "a.txt", "hello")

	r, err := w.ShapeRoster()
	require.NoError(t, err)
	require.True(t, r.HasNodePath(vocab.NewRepoPath("a.txt")))
}

func TestShapeRosterEmptyWorkspaceHasOnlyRoot(t *testing.T) {
	w := newTestWorkspace(t)

	r, err := w.ShapeRoster()
	require.NoError(t, err)
	_, ok := r.Root()
	require.True(t, ok)
	require.Len(t, r.AllNodeIDs(), 1)
}

func TestRefreshFromDiskPicksUpContentChange(t *testing.T) {
	w := newTestWorkspace(t)
	addFile(t, w, "a.txt", "hello")
	w.RefreshInodeprint("a.txt")

	// force the mtime to move so the inodeprint is guaranteed to differ
	path := filepath.Join(w.root, "a.txt")
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.WriteFile(path, []byte("changed"), 0o644))
	require.NoError(t, os.Chtimes(path, future, future))

	r, err := w.ShapeRoster()
	require.NoError(t, err)

	results, err := w.RefreshFromDisk(context.Background(), r)
	require.NoError(t, err)

	var found bool
	for _, res := range results {
		if res.Path.String() == "a.txt" {
			found = true
			require.Equal(t, ScanOK, res.Status)
			require.True(t, res.Changed)
		}
	}
	require.True(t, found)

	n, err := r.GetNodeByPath(vocab.NewRepoPath("a.txt"))
	require.NoError(t, err)
	require.Equal(t, vocab.HashFileContent([]byte("changed")), n.Content())
}
