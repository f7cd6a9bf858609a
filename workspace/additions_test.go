package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dscherger/monotone-sub002/vocab"
	"github.com/stretchr/testify/require"
)

func TestPerformAdditionsAddsFileAndAncestorDirs(t *testing.T) {
	w := newTestWorkspace(t)

	require.NoError(t, os.MkdirAll(filepath.Join(w.root, "src", "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(w.root, "src", "pkg", "main.go"), []byte("package pkg\n"), 0o644))

	err := w.PerformAdditions([]vocab.RepoPath{vocab.NewRepoPath("src/pkg/main.go")}, AdditionOptions{})
	require.NoError(t, err)

	rev, err := w.PendingRevision()
	require.NoError(t, err)
	c := rev.Parents[vocab.NullRevisionID]
	require.NotNil(t, c)

	require.Contains(t, pathStrings(c.DirsAdded), "src")
	require.Contains(t, pathStrings(c.DirsAdded), "src/pkg")
	require.Len(t, c.FilesAdded, 1)
	require.Equal(t, "src/pkg/main.go", c.FilesAdded[0].Path.String())
}

func TestPerformAdditionsRecursiveWalksDirectory(t *testing.T) {
	w := newTestWorkspace(t)

	require.NoError(t, os.MkdirAll(filepath.Join(w.root, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(w.root, "docs", "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(w.root, "docs", "b.txt"), []byte("b"), 0o644))

	err := w.PerformAdditions([]vocab.RepoPath{vocab.NewRepoPath("docs")}, AdditionOptions{Recursive: true})
	require.NoError(t, err)

	rev, err := w.PendingRevision()
	require.NoError(t, err)
	c := rev.Parents[vocab.NullRevisionID]
	require.Len(t, c.FilesAdded, 2)
}

func TestPerformAdditionsSkipsDatabaseFile(t *testing.T) {
	w := newTestWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(w.root, "test.mtn"), []byte("x"), 0o644))

	err := w.PerformAdditions([]vocab.RepoPath{vocab.NewRepoPath("test.mtn")}, AdditionOptions{})
	require.NoError(t, err)

	rev, err := w.PendingRevision()
	require.NoError(t, err)
	c := rev.Parents[vocab.NullRevisionID]
	require.NotNil(t, c)
	require.True(t, c.IsEmpty())
}

func pathStrings(paths []vocab.RepoPath) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = p.String()
	}
	return out
}
