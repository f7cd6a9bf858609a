package workspace

import (
	"bytes"
	"context"
	"time"

	"github.com/dscherger/monotone-sub002/certs"
	"github.com/dscherger/monotone-sub002/cset"
	"github.com/dscherger/monotone-sub002/errs"
	"github.com/dscherger/monotone-sub002/keys"
	"github.com/dscherger/monotone-sub002/marking"
	"github.com/dscherger/monotone-sub002/revision"
	"github.com/dscherger/monotone-sub002/roster"
	"github.com/dscherger/monotone-sub002/store"
	"github.com/dscherger/monotone-sub002/vocab"
)

// CommitOptions carries the cert values a commit writes alongside the
// branch cert: author identity and a changelog message. Date is stamped
// automatically unless Date is already set (tests pin it to get a
// deterministic cert).
type CommitOptions struct {
	Author    string
	Changelog string
	Date      string
}

// Commit records the workspace's pending changes as a new revision: the
// on-disk tree is rescanned and rehashed, the shape cset against the
// primary parent is finalized, a revision and roster are computed and
// persisted, and branch/author/date/changelog certs are signed with the
// workspace's key. A scan problem (a missing or unreadable tracked path)
// aborts the commit outright rather than being reported and skipped --
// there is no sense committing a tree that doesn't match what was
// scanned.
func (w *Workspace) Commit(ctx context.Context, opts CommitOptions) (vocab.RevisionID, error) {
	rev, err := w.PendingRevision()
	if err != nil {
		return vocab.RevisionID{}, err
	}
	if rev.IsMerge() {
		return w.commitMerge(ctx, rev, opts)
	}

	parent := primaryParent(rev)
	c := rev.Parents[parent]
	if c == nil || c.IsEmpty() {
		return vocab.RevisionID{}, errs.New(errs.User, "nothing to commit")
	}

	if err := w.BackupCommitMessage(opts.Changelog); err != nil {
		return vocab.RevisionID{}, err
	}

	ids, err := w.persistentIDSource(len(c.DirsAdded) + len(c.FilesAdded))
	if err != nil {
		return vocab.RevisionID{}, err
	}
	baseR, err := w.baseRoster(parent, ids)
	if err != nil {
		return vocab.RevisionID{}, err
	}
	shaped, err := roster.Apply(baseR, c)
	if err != nil {
		return vocab.RevisionID{}, err
	}

	results, err := w.RefreshFromDisk(ctx, shaped)
	if err != nil {
		return vocab.RevisionID{}, err
	}
	for _, r := range results {
		if r.Status != ScanOK {
			return vocab.RevisionID{}, errs.New(errs.User, "cannot commit: "+r.Path.String()+" is missing, unreadable, or of the wrong type")
		}
	}

	finalCset, err := roster.Diff(baseR, shaped)
	if err != nil {
		return vocab.RevisionID{}, err
	}

	var manifestBuf bytes.Buffer
	if err := shaped.PrintTo(&manifestBuf, nil, false); err != nil {
		return vocab.RevisionID{}, err
	}
	manifestID := vocab.HashManifest(manifestBuf.Bytes())

	newRev := &revision.Revision{
		NewManifestID: manifestID,
		Parents:       map[vocab.RevisionID]*cset.Cset{parent: finalCset},
	}
	var revBuf bytes.Buffer
	if err := newRev.PrintTo(&revBuf); err != nil {
		return vocab.RevisionID{}, err
	}
	newRid := vocab.HashRevision(revBuf.Bytes())

	var marks *marking.Map
	if parent == vocab.NullRevisionID {
		marks = roster.MarkRoot(shaped, newRid)
	} else {
		_, parentMarks, err := w.Store.GetRoster(parent, vocab.NewTemporarySource())
		if err != nil {
			return vocab.RevisionID{}, err
		}
		marks = roster.MarkFromParent(baseR, parentMarks, shaped, newRid)
	}
	roster.DropExtraMarkings(shaped, marks)
	if err := shaped.CheckSaneAgainst(marks); err != nil {
		return vocab.RevisionID{}, err
	}

	if err := w.persistCommit(newRid, shaped, marks, parent, true, newRev, opts); err != nil {
		return vocab.RevisionID{}, err
	}

	if err := w.InitPendingRevision(newRid); err != nil {
		return newRid, err
	}
	if err := w.SetLastUpdate(newRid); err != nil {
		return newRid, err
	}
	return newRid, nil
}

// commitMerge finalizes an in-progress merge whose pending revision
// already carries two parents and (typically empty) csets against each:
// Merge leaves the workspace in exactly this state after auto-committing
// the merge itself, so this path only runs when the caller made further
// edits after the merge and before committing them. It treats the
// already-recorded merge shape as a single-parent base for markings,
// since that shape has no stored roster of its own to diff against a
// prior commit.
func (w *Workspace) commitMerge(ctx context.Context, rev *revision.Revision, opts CommitOptions) (vocab.RevisionID, error) {
	parent := primaryParent(rev)
	c := rev.Parents[parent]

	if err := w.BackupCommitMessage(opts.Changelog); err != nil {
		return vocab.RevisionID{}, err
	}

	newNodes := 0
	if c != nil {
		newNodes = len(c.DirsAdded) + len(c.FilesAdded)
	}
	ids, err := w.persistentIDSource(newNodes)
	if err != nil {
		return vocab.RevisionID{}, err
	}
	baseR, err := w.baseRoster(parent, ids)
	if err != nil {
		return vocab.RevisionID{}, err
	}
	shaped := baseR
	if c != nil {
		shaped, err = roster.Apply(baseR, c)
		if err != nil {
			return vocab.RevisionID{}, err
		}
	}

	results, err := w.RefreshFromDisk(ctx, shaped)
	if err != nil {
		return vocab.RevisionID{}, err
	}
	for _, r := range results {
		if r.Status != ScanOK {
			return vocab.RevisionID{}, errs.New(errs.User, "cannot commit: "+r.Path.String()+" is missing, unreadable, or of the wrong type")
		}
	}

	finalCset, err := roster.Diff(baseR, shaped)
	if err != nil {
		return vocab.RevisionID{}, err
	}

	var manifestBuf bytes.Buffer
	if err := shaped.PrintTo(&manifestBuf, nil, false); err != nil {
		return vocab.RevisionID{}, err
	}
	manifestID := vocab.HashManifest(manifestBuf.Bytes())

	other := otherParent(rev, parent)
	newRev := &revision.Revision{
		NewManifestID: manifestID,
		Parents: map[vocab.RevisionID]*cset.Cset{
			parent: finalCset,
			other:  rev.Parents[other],
		},
	}
	var revBuf bytes.Buffer
	if err := newRev.PrintTo(&revBuf); err != nil {
		return vocab.RevisionID{}, err
	}
	newRid := vocab.HashRevision(revBuf.Bytes())

	_, parentMarks, err := w.Store.GetRoster(parent, vocab.NewTemporarySource())
	if err != nil {
		return vocab.RevisionID{}, err
	}
	marks := roster.MarkFromParent(baseR, parentMarks, shaped, newRid)
	roster.DropExtraMarkings(shaped, marks)
	if err := shaped.CheckSaneAgainst(marks); err != nil {
		return vocab.RevisionID{}, err
	}

	if err := w.persistCommit(newRid, shaped, marks, parent, true, newRev, opts); err != nil {
		return vocab.RevisionID{}, err
	}

	if err := w.InitPendingRevision(newRid); err != nil {
		return newRid, err
	}
	if err := w.SetLastUpdate(newRid); err != nil {
		return newRid, err
	}
	return newRid, nil
}

func otherParent(rev *revision.Revision, not vocab.RevisionID) vocab.RevisionID {
	for p := range rev.Parents {
		if p != not {
			return p
		}
	}
	return vocab.RevisionID{}
}

// persistCommit writes the roster, revision, and certs for a finished
// commit inside one transaction, then updates branch-leaf bookkeeping.
func (w *Workspace) persistCommit(newRid vocab.RevisionID, r *roster.Roster, mm *marking.Map, baseRid vocab.RevisionID, haveBase bool, rev *revision.Revision, opts CommitOptions) error {
	signer, err := w.Signer()
	if err != nil {
		return err
	}

	date := opts.Date
	if date == "" {
		date = time.Now().UTC().Format(time.RFC3339)
	}

	return w.Store.WithTransaction(store.Exclusive, func() error {
		w.Store.PutRoster(newRid, r, mm, baseRid, haveBase)
		storedRid, err := w.Store.PutRevision(rev)
		if err != nil {
			return err
		}
		if storedRid != newRid {
			return errs.New(errs.Internal, "commit: precomputed revision id does not match the id the store assigned")
		}

		for _, parent := range rev.ParentIDs() {
			if parent != vocab.NullRevisionID {
				_ = w.Store.PruneBranchLeaf(w.Options.Branch, parent)
			}
		}

		if w.Options.Branch != "" {
			if err := signAndPutCert(w.Store, signer, newRid, "branch", []byte(w.Options.Branch)); err != nil {
				return err
			}
			if err := w.Store.AddBranchLeaf(w.Options.Branch, newRid); err != nil {
				return err
			}
		}
		if opts.Author != "" {
			if err := signAndPutCert(w.Store, signer, newRid, "author", []byte(opts.Author)); err != nil {
				return err
			}
		}
		if err := signAndPutCert(w.Store, signer, newRid, "date", []byte(date)); err != nil {
			return err
		}
		if opts.Changelog != "" {
			if err := signAndPutCert(w.Store, signer, newRid, "changelog", []byte(opts.Changelog)); err != nil {
				return err
			}
		}
		return nil
	})
}

func signAndPutCert(s *store.Store, signer keys.Signer, rid vocab.RevisionID, name string, value []byte) error {
	c, err := certs.Sign(signer, rid, name, value)
	if err != nil {
		return err
	}
	return s.PutCert(store.CertRow{
		Hash: c.Hash(), RevisionID: c.RevisionID, Name: c.Name, Value: c.Value,
		KeyID: c.KeyID, Signature: c.Signature,
	})
}
