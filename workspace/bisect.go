package workspace

import (
	"github.com/dscherger/monotone-sub002/errs"
	"github.com/dscherger/monotone-sub002/revision"
	"github.com/dscherger/monotone-sub002/vocab"
)

// BisectState is the outcome of BisectNext: either a revision to test
// next, or a conclusion that the search is over.
type BisectState struct {
	Done      bool
	FirstBad  vocab.RevisionID // valid only when Done
	Candidate vocab.RevisionID // valid only when !Done
}

// descendantsOf returns every revision reachable forward from id via
// child edges, id itself excluded.
func descendantsOf(g *revision.Graph, id vocab.RevisionID) map[vocab.RevisionID]bool {
	out := make(map[vocab.RevisionID]bool)
	queue := g.Children(id)
	for i := 0; i < len(queue); i++ {
		cur := queue[i]
		if out[cur] {
			continue
		}
		out[cur] = true
		queue = append(queue, g.Children(cur)...)
	}
	return out
}

// BisectNext runs one step of the selection algorithm over the tagged
// entries recorded in _MTN/bisect: the search set is every revision both
// a descendant of some known-good revision and an ancestor of some
// known-bad revision, minus whatever has been explicitly skipped; known
// ancestors of good and known descendants of bad are then subtracted
// too, since testing them again cannot narrow the range. The probe
// returned is the middle element of what remains, ordered by toposort.
// An empty remaining set means the bisection is finished: the first bad
// revision is the common ancestor of every known-bad revision within
// their toposorted set.
func (w *Workspace) BisectNext() (BisectState, error) {
	entries, err := w.BisectEntries()
	if err != nil {
		return BisectState{}, err
	}
	if len(entries) == 0 {
		return BisectState{}, errs.New(errs.User, "no bisection is in progress")
	}

	var good, bad, skipped []vocab.RevisionID
	for _, e := range entries {
		switch e.Tag {
		case BisectGood:
			good = append(good, e.RID)
		case BisectBad:
			bad = append(bad, e.RID)
		case BisectSkipped:
			skipped = append(skipped, e.RID)
		case BisectStart:
			// records the revision the bisection began from; it takes
			// no part in the search itself.
		}
	}
	if len(good) == 0 {
		return BisectState{}, errs.New(errs.User, "bisection has no known-good revision yet")
	}
	if len(bad) == 0 {
		return BisectState{}, errs.New(errs.User, "bisection has no known-bad revision yet")
	}

	g := w.Store.Graph()

	skip := make(map[vocab.RevisionID]bool, len(skipped))
	for _, s := range skipped {
		skip[s] = true
	}

	ancestorsOfBad := make(map[vocab.RevisionID]bool)
	for _, b := range bad {
		ancestorsOfBad[b] = true
		for a := range g.AncestorsOf(b) {
			ancestorsOfBad[a] = true
		}
	}
	descendantsOfGood := make(map[vocab.RevisionID]bool)
	for _, gd := range good {
		for d := range descendantsOf(g, gd) {
			descendantsOfGood[d] = true
		}
	}

	knownGoodAncestors := make(map[vocab.RevisionID]bool)
	for _, gd := range good {
		knownGoodAncestors[gd] = true
		for a := range g.AncestorsOf(gd) {
			knownGoodAncestors[a] = true
		}
	}
	knownBadDescendants := make(map[vocab.RevisionID]bool)
	for _, b := range bad {
		knownBadDescendants[b] = true
		for d := range descendantsOf(g, b) {
			knownBadDescendants[d] = true
		}
	}

	var remaining []vocab.RevisionID
	for id := range descendantsOfGood {
		if !ancestorsOfBad[id] {
			continue
		}
		if skip[id] || knownGoodAncestors[id] || knownBadDescendants[id] {
			continue
		}
		remaining = append(remaining, id)
	}

	if len(remaining) == 0 {
		order := g.Toposort(bad)
		if len(order) == 0 {
			return BisectState{}, errs.New(errs.Internal, "bisection could not toposort known-bad revisions")
		}
		return BisectState{Done: true, FirstBad: order[0]}, nil
	}

	order := g.Toposort(remaining)
	mid := order[len(order)/2]
	return BisectState{Candidate: mid}, nil
}

// BisectTag appends one classified revision to _MTN/bisect. A start
// entry may only be recorded once, when no bisection is yet in
// progress; good/bad/skipped entries accumulate as the search proceeds.
func (w *Workspace) BisectTag(tag BisectTag, rid vocab.RevisionID) error {
	entries, err := w.BisectEntries()
	if err != nil {
		return err
	}
	if tag == BisectStart && len(entries) != 0 {
		return errs.New(errs.User, "a bisection is already in progress")
	}
	if tag != BisectStart && len(entries) == 0 {
		return errs.New(errs.User, "no bisection is in progress; start one first")
	}
	entries = append(entries, BisectEntry{Tag: tag, RID: rid})
	return w.SetBisectEntries(entries)
}

// BisectReset clears any in-progress bisection, removing _MTN/bisect.
func (w *Workspace) BisectReset() error {
	return w.SetBisectEntries(nil)
}
