package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dscherger/monotone-sub002/vocab"
	"github.com/stretchr/testify/require"
)

func certValue(t *testing.T, rows []certNameValue, name string) string {
	t.Helper()
	for _, r := range rows {
		if r.name == name {
			return r.value
		}
	}
	t.Fatalf("no %q cert found among %+v", name, rows)
	return ""
}

type certNameValue struct {
	name  string
	value string
}

func certsByName(t *testing.T, w *Workspace, rid vocab.RevisionID) []certNameValue {
	t.Helper()
	rows, err := w.Store.CertsForRevision(rid)
	require.NoError(t, err)
	out := make([]certNameValue, len(rows))
	for i, r := range rows {
		out[i] = certNameValue{name: r.Name, value: string(r.Value)}
	}
	return out
}

func withTestSigningKey(t *testing.T, w *Workspace) {
	t.Helper()
	w.Options.KeyName = "test-key"
	w.Options.KeyDir = t.TempDir()
}

func TestCommitRootRecordsRevisionAndCerts(t *testing.T) {
	w := newTestWorkspace(t)
	withTestSigningKey(t, w)
	addFile(t, w, "a.txt", "hello")

	rid, err := w.Commit(context.Background(), CommitOptions{Author: "alice", Changelog: "initial commit", Date: "2026-01-01T00:00:00Z"})
	require.NoError(t, err)
	require.NotEqual(t, vocab.RevisionID{}, rid)

	rev, err := w.Store.GetRevision(rid)
	require.NoError(t, err)
	require.Contains(t, rev.Parents, vocab.NullRevisionID)

	certs := certsByName(t, w, rid)
	require.Equal(t, "test.branch", certValue(t, certs, "branch"))
	require.Equal(t, "alice", certValue(t, certs, "author"))
	require.Equal(t, "2026-01-01T00:00:00Z", certValue(t, certs, "date"))
	require.Equal(t, "initial commit", certValue(t, certs, "changelog"))

	leaves, err := w.Store.BranchLeaves("test.branch")
	require.NoError(t, err)
	require.Contains(t, leaves, rid)

	pending, err := w.PendingRevision()
	require.NoError(t, err)
	require.True(t, pending.Parents[rid].IsEmpty())

	last, ok, err := w.LastUpdate()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rid, last)

	ids := vocab.NewTemporarySource()
	r, _, err := w.Store.GetRoster(rid, ids)
	require.NoError(t, err)
	require.True(t, r.HasNodePath(vocab.NewRepoPath("a.txt")))
}

func TestCommitNothingToCommitErrors(t *testing.T) {
	w := newTestWorkspace(t)
	withTestSigningKey(t, w)
	_, err := w.Commit(context.Background(), CommitOptions{})
	require.Error(t, err)
}

func TestCommitSecondRevisionDeltasAgainstParent(t *testing.T) {
	w := newTestWorkspace(t)
	withTestSigningKey(t, w)
	addFile(t, w, "a.txt", "hello")
	rid1, err := w.Commit(context.Background(), CommitOptions{Changelog: "first"})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(w.root, "a.txt"), []byte("goodbye"), 0o644))
	rid2, err := w.Commit(context.Background(), CommitOptions{Changelog: "second"})
	require.NoError(t, err)
	require.NotEqual(t, rid1, rid2)

	rev2, err := w.Store.GetRevision(rid2)
	require.NoError(t, err)
	require.Contains(t, rev2.Parents, rid1)

	leaves, err := w.Store.BranchLeaves("test.branch")
	require.NoError(t, err)
	require.Contains(t, leaves, rid2)
	require.NotContains(t, leaves, rid1)

	ids := vocab.NewTemporarySource()
	r, _, err := w.Store.GetRoster(rid2, ids)
	require.NoError(t, err)
	n, err := r.GetNodeByPath(vocab.NewRepoPath("a.txt"))
	require.NoError(t, err)
	data, err := w.Store.GetFile(n.Content())
	require.NoError(t, err)
	require.Equal(t, "goodbye", string(data))
}

func TestCommitBackupsChangelogMessage(t *testing.T) {
	w := newTestWorkspace(t)
	withTestSigningKey(t, w)
	addFile(t, w, "a.txt", "hello")

	_, err := w.Commit(context.Background(), CommitOptions{Changelog: "a tricky fix"})
	require.NoError(t, err)

	data, err := os.ReadFile(w.bkPath(vocab.NewBookkeepingPath("commit")))
	require.NoError(t, err)
	require.Equal(t, "a tricky fix", string(data))
}
