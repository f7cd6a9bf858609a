package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dscherger/monotone-sub002/vocab"
	"github.com/stretchr/testify/require"
)

func addFile(t *testing.T, w *Workspace, rel, content string) {
	t.Helper()
	full := filepath.Join(w.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	require.NoError(t, w.PerformAdditions([]vocab.RepoPath{vocab.NewRepoPath(rel)}, AdditionOptions{}))
}

func TestPerformDeletionsRemovesUnmodifiedFile(t *testing.T) {
	w := newTestWorkspace(t)
	addFile(t, w, "a.txt", "hello")

	warnings, err := w.PerformDeletions([]vocab.RepoPath{vocab.NewRepoPath("a.txt")}, false)
	require.NoError(t, err)
	require.Empty(t, warnings)

	require.NoFileExists(t, filepath.Join(w.root, "a.txt"))

	rev, err := w.PendingRevision()
	require.NoError(t, err)
	c := rev.Parents[vocab.NullRevisionID]
	require.Contains(t, pathStrings(c.NodesDeleted), "a.txt")
}

func TestPerformDeletionsWarnsOnModifiedContent(t *testing.T) {
	w := newTestWorkspace(t)
	addFile(t, w, "a.txt", "hello")

	require.NoError(t, os.WriteFile(filepath.Join(w.root, "a.txt"), []byte("changed"), 0o644))

	warnings, err := w.PerformDeletions([]vocab.RepoPath{vocab.NewRepoPath("a.txt")}, false)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Equal(t, "a.txt", warnings[0].Path.String())
	require.FileExists(t, filepath.Join(w.root, "a.txt"))
}

func TestPerformDeletionsRefusesNonEmptyDirWithoutRecursive(t *testing.T) {
	w := newTestWorkspace(t)
	addFile(t, w, "dir/a.txt", "hello")

	_, err := w.PerformDeletions([]vocab.RepoPath{vocab.NewRepoPath("dir")}, false)
	require.Error(t, err)
}

func TestPerformDeletionsRecursiveDeletesDescendantsFirst(t *testing.T) {
	w := newTestWorkspace(t)
	addFile(t, w, "dir/a.txt", "hello")
	addFile(t, w, "dir/sub/b.txt", "world")

	_, err := w.PerformDeletions([]vocab.RepoPath{vocab.NewRepoPath("dir")}, true)
	require.NoError(t, err)

	rev, err := w.PendingRevision()
	require.NoError(t, err)
	c := rev.Parents[vocab.NullRevisionID]
	deleted := pathStrings(c.NodesDeleted)
	require.Contains(t, deleted, "dir")
	require.Contains(t, deleted, "dir/a.txt")
	require.Contains(t, deleted, "dir/sub")
	require.Contains(t, deleted, "dir/sub/b.txt")
}
