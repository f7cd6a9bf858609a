package workspace

import (
	"github.com/dscherger/monotone-sub002/roster"
	"github.com/dscherger/monotone-sub002/vocab"
)

// Checkout creates a fresh workspace at root against dbPath/branch/keyName
// and, unless target is the null revision, populates it with target's
// tree contents through the same staged content-update machinery used by
// Update and by merge-result application.
func Checkout(root, dbPath, branch, keyName string, target vocab.RevisionID, opts UpdateOptions) (*Workspace, []Conflict, error) {
	w, err := Create(root, dbPath, branch, keyName)
	if err != nil {
		return nil, nil, err
	}
	if err := w.InitPendingRevision(vocab.NullRevisionID); err != nil {
		return nil, nil, err
	}
	if target.IsNull() {
		return w, nil, nil
	}
	conflicts, err := w.updateTo(target, opts)
	if err != nil {
		return w, conflicts, err
	}
	return w, conflicts, nil
}

// Update moves the workspace from its current single-parent pending
// state to target: the on-disk difference is applied through
// ApplyContentUpdate, then _MTN/revision and _MTN/update are rewritten
// to record target as the new base with an empty pending cset.
func (w *Workspace) Update(target vocab.RevisionID, opts UpdateOptions) ([]Conflict, error) {
	return w.updateTo(target, opts)
}

func (w *Workspace) updateTo(target vocab.RevisionID, opts UpdateOptions) ([]Conflict, error) {
	current, err := w.ShapeRoster()
	if err != nil {
		return nil, err
	}

	targetRoster, err := w.baseRoster(target, vocab.NewTemporarySource())
	if err != nil {
		return nil, err
	}

	c, err := roster.Diff(current, targetRoster)
	if err != nil {
		return nil, err
	}

	conflicts, err := w.ApplyContentUpdate(c, opts)
	if err != nil {
		return conflicts, err
	}

	if err := w.InitPendingRevision(target); err != nil {
		return conflicts, err
	}
	if err := w.SetLastUpdate(target); err != nil {
		return conflicts, err
	}
	return conflicts, nil
}
