package workspace

import (
	"os"
	"sort"

	"github.com/dscherger/monotone-sub002/basicio"
	"github.com/dscherger/monotone-sub002/cset"
	"github.com/dscherger/monotone-sub002/errs"
	"github.com/dscherger/monotone-sub002/revision"
	"github.com/dscherger/monotone-sub002/vocab"
)

func revisionFilePath() vocab.BookkeepingPath { return vocab.NewBookkeepingPath("revision") }

// PendingRevision reads and parses _MTN/revision: the workspace's pending
// revision, recording its parent(s) and the shape-only cset built up by
// additions/deletions/renames since the last commit or update. A
// workspace between commits always has one on disk; IsRoot/IsMerge on the
// result tell the caller which shape it has.
func (w *Workspace) PendingRevision() (*revision.Revision, error) {
	f, err := os.Open(w.bkPath(revisionFilePath()))
	if err != nil {
		return nil, errs.Wrap(errs.Workspace, "reading _MTN/revision", err)
	}
	defer f.Close()
	rev, err := revision.ParseFrom(f)
	if err != nil {
		return nil, errs.Wrap(errs.Workspace, "parsing _MTN/revision", err)
	}
	return rev, nil
}

// SetPendingRevision serializes rev to _MTN/revision, replacing whatever
// pending changeset was recorded there.
func (w *Workspace) SetPendingRevision(rev *revision.Revision) error {
	f, err := os.Create(w.bkPath(revisionFilePath()))
	if err != nil {
		return errs.Wrap(errs.Workspace, "writing _MTN/revision", err)
	}
	defer f.Close()
	if err := rev.PrintTo(f); err != nil {
		return errs.Wrap(errs.Workspace, "serializing _MTN/revision", err)
	}
	return nil
}

// InitPendingRevision writes a fresh root pending revision against
// parent, with an empty cset, used by Create and by checkout.
func (w *Workspace) InitPendingRevision(parent vocab.RevisionID) error {
	return w.SetPendingRevision(&revision.Revision{
		Parents: map[vocab.RevisionID]*cset.Cset{parent: {}},
	})
}

// mutatePendingCset loads the pending revision, hands its single parent's
// cset to fn for in-place modification, and writes the result back. Fails
// if the pending revision is a merge (two parents): additions, deletions,
// renames, and pivot-root are only meaningful against a single base.
func (w *Workspace) mutatePendingCset(fn func(*cset.Cset) error) error {
	rev, err := w.PendingRevision()
	if err != nil {
		return err
	}
	if rev.IsMerge() {
		return errs.New(errs.User, "cannot edit the pending changeset of an in-progress merge")
	}
	var parent vocab.RevisionID
	for p := range rev.Parents {
		parent = p
	}
	c := rev.Parents[parent]
	if c == nil {
		c = &cset.Cset{}
	}
	if err := fn(c); err != nil {
		return err
	}
	c.Canonicalize()
	rev.Parents[parent] = c
	return w.SetPendingRevision(rev)
}

// BisectTag is the classification of one entry in an in-progress bisect.
type BisectTag string

const (
	BisectStart   BisectTag = "start"
	BisectGood    BisectTag = "good"
	BisectBad     BisectTag = "bad"
	BisectSkipped BisectTag = "skipped"
)

// BisectEntry records one tagged revision in _MTN/bisect.
type BisectEntry struct {
	Tag BisectTag
	RID vocab.RevisionID
}

func bisectFilePath() vocab.BookkeepingPath { return vocab.NewBookkeepingPath("bisect") }

// BisectEntries reads the in-progress bisection state from _MTN/bisect.
// Absent file means no bisection is in progress.
func (w *Workspace) BisectEntries() ([]BisectEntry, error) {
	f, err := os.Open(w.bkPath(bisectFilePath()))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.Workspace, "reading _MTN/bisect", err)
	}
	defer f.Close()

	stanzas, err := basicio.Parse(f)
	if err != nil {
		return nil, errs.Wrap(errs.Workspace, "parsing _MTN/bisect", err)
	}
	var out []BisectEntry
	for _, s := range stanzas {
		if _, ok := s.Get("format_version"); ok {
			continue
		}
		tagLine, ok := s.Get("tag")
		if !ok {
			continue
		}
		revLine, ok := s.Get("revision")
		if !ok {
			continue
		}
		rid, err := vocab.ParseRevisionID(revLine.HexArgAt(0))
		if err != nil {
			return nil, errs.Wrap(errs.Workspace, "parsing bisect entry revision id", err)
		}
		out = append(out, BisectEntry{Tag: BisectTag(tagLine.Str(0)), RID: rid})
	}
	return out, nil
}

// SetBisectEntries overwrites _MTN/bisect with entries, or removes the
// file entirely if entries is empty.
func (w *Workspace) SetBisectEntries(entries []BisectEntry) error {
	if len(entries) == 0 {
		err := os.Remove(w.bkPath(bisectFilePath()))
		if err != nil && !os.IsNotExist(err) {
			return errs.Wrap(errs.Workspace, "removing _MTN/bisect", err)
		}
		return nil
	}
	f, err := os.Create(w.bkPath(bisectFilePath()))
	if err != nil {
		return errs.Wrap(errs.Workspace, "writing _MTN/bisect", err)
	}
	defer f.Close()

	bw := basicio.NewWriter(f)
	bw.Preamble("1")
	for _, e := range entries {
		bw.Stanza(basicio.Stanza{
			basicio.NewLine("tag", string(e.Tag)),
			basicio.NewHexLine("revision", e.RID.String()),
		})
	}
	return bw.Flush()
}

// sortedRepoPaths is shared by the additions/deletions/renames helpers
// that need deterministic depth- or lexicographic-ordered traversal.
func sortedRepoPaths(paths []vocab.RepoPath, deepestFirst bool) []vocab.RepoPath {
	out := append([]vocab.RepoPath(nil), paths...)
	sort.Slice(out, func(i, j int) bool {
		if deepestFirst {
			return out[i].String() > out[j].String()
		}
		return out[i].String() < out[j].String()
	})
	return out
}
