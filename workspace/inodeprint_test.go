package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInodeprintStableAcrossRepeatedStat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	p1, ok := inodeprint(path)
	require.True(t, ok)
	p2, ok := inodeprint(path)
	require.True(t, ok)
	require.Equal(t, p1, p2)
}

func TestInodeprintMissingFile(t *testing.T) {
	_, ok := inodeprint(filepath.Join(t.TempDir(), "missing"))
	require.False(t, ok)
}

func TestRefreshAndForgetInodeprint(t *testing.T) {
	w := newTestWorkspace(t)
	addFile(t, w, "a.txt", "hello")

	w.RefreshInodeprint("a.txt")
	_, ok := w.Inodeprints["a.txt"]
	require.True(t, ok)
	require.True(t, w.unchanged("a.txt"))

	w.ForgetInodeprint("a.txt")
	_, ok = w.Inodeprints["a.txt"]
	require.False(t, ok)
	require.False(t, w.unchanged("a.txt"))
}

func TestFlushInodeprintsRoundTrips(t *testing.T) {
	w := newTestWorkspace(t)
	addFile(t, w, "a.txt", "hello")
	w.RefreshInodeprint("a.txt")

	require.NoError(t, w.FlushInodeprints())

	prints, err := readInodeprints(w)
	require.NoError(t, err)
	require.Equal(t, w.Inodeprints["a.txt"], prints["a.txt"])
}
