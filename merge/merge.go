// Package merge implements the three-way roster merge: a shape merge that
// unifies the two parent rosters into one structurally-identical tree, and
// a mark merge that decides, per scalar, which parent's provenance record
// survives into the merge revision.
//
// Conflict reporting vocabulary (ConflictEntry / Conflict{Ancestor,Our,
// Their}) is grounded on antgroup/hugescm's odb/merge.go, adapted from
// file-content conflicts to roster-node conflicts: a duplicate name where
// both sides independently created an incompatible node at the same path,
// or a content/attribute value both sides changed differently.
package merge

import (
	"fmt"

	"github.com/dscherger/monotone-sub002/errs"
	"github.com/dscherger/monotone-sub002/marking"
	"github.com/dscherger/monotone-sub002/roster"
	"github.com/dscherger/monotone-sub002/vocab"
)

// ConflictKind classifies a merge conflict.
type ConflictKind int

const (
	// DuplicateName: both parents independently created a node at the
	// same path, and the two creations are not compatible (different
	// kind, or otherwise cannot be unified into one node).
	DuplicateName ConflictKind = iota
	// ContentConflict: both parents changed a file's content away from
	// the merge base, to different results.
	ContentConflict
	// AttrConflict: both parents set the same attribute key away from
	// the merge base, to different values.
	AttrConflict
)

func (k ConflictKind) String() string {
	switch k {
	case DuplicateName:
		return "duplicate_name"
	case ContentConflict:
		return "content"
	case AttrConflict:
		return "attr"
	default:
		return "unknown"
	}
}

// ConflictEntry names one side of a Conflict.
type ConflictEntry struct {
	Node vocab.NodeID
	Path vocab.RepoPath
}

// Conflict reports one merge decision a caller must resolve by hand.
type Conflict struct {
	Kind     ConflictKind
	Ancestor ConflictEntry
	Our      ConflictEntry
	Their    ConflictEntry
	Detail   string
}

// Parent bundles one side of a three-way merge: its roster, that roster's
// marking map, and the set of revisions that are ancestors of this side
// but not of the other (its "uncommon ancestors").
type Parent struct {
	Roster            *roster.Roster
	Marks             *marking.Map
	UncommonAncestors map[vocab.RevisionID]bool
}

// Result is the outcome of a three-way merge. When the shape merge finds
// duplicate-name conflicts, no merged tree is built: Roster and Marks are
// nil and Conflicts lists those duplicate names.
type Result struct {
	Roster    *roster.Roster
	Marks     *marking.Map
	Conflicts []Conflict
}

// Merge performs the shape merge and mark merge between left and right,
// relative to their common merge base, producing the roster and marking
// map for newRid. Node ids are allocated from ids for any node that needs
// a fresh identity (a node created independently, at the same path, by
// both sides, neither side already carrying a permanent id for it).
func Merge(base *roster.Roster, left, right Parent, newRid vocab.RevisionID, ids *vocab.NodeIDSource) (*Result, error) {
	leftRemap, rightRemap, conflicts, err := unifyShapes(base, left.Roster, right.Roster, ids)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return &Result{Conflicts: conflicts}, nil
	}

	merged := roster.New(ids)
	mm := marking.New()

	shapes := make(map[vocab.NodeID]resolvedShape)

	getLeft := func(id vocab.NodeID) (*roster.Node, bool) {
		n, err := left.Roster.GetNode(originalID(leftRemap, id))
		return n, err == nil
	}
	getRight := func(id vocab.NodeID) (*roster.Node, bool) {
		n, err := right.Roster.GetNode(originalID(rightRemap, id))
		return n, err == nil
	}
	getBase := func(id vocab.NodeID) (*roster.Node, bool) {
		n, err := base.GetNode(id)
		return n, err == nil
	}

	allIDs := make(map[vocab.NodeID]bool)
	for _, id := range left.Roster.AllNodeIDs() {
		allIDs[unifiedID(leftRemap, id)] = true
	}
	for _, id := range right.Roster.AllNodeIDs() {
		allIDs[unifiedID(rightRemap, id)] = true
	}

	for id := range allIDs {
		ln, inLeft := getLeft(id)
		rn, inRight := getRight(id)
		bn, inBase := getBase(id)

		switch {
		case inLeft && inRight:
			if err := mergeBothPresent(id, newRid, !inBase, bn, ln, rn, left, right, shapes, mm, &conflicts); err != nil {
				return nil, err
			}
		case inLeft:
			if err := mergeOneSided(id, ln, left.Marks, left.UncommonAncestors, shapes, mm); err != nil {
				return nil, err
			}
		case inRight:
			if err := mergeOneSided(id, rn, right.Marks, right.UncommonAncestors, shapes, mm); err != nil {
				return nil, err
			}
		}
	}

	if err := buildRoster(merged, shapes); err != nil {
		return nil, err
	}
	if err := merged.CheckSaneAgainst(mm); err != nil {
		return nil, errs.Wrap(errs.Internal, "merge produced an insane marking map", err)
	}

	return &Result{Roster: merged, Marks: mm, Conflicts: conflicts}, nil
}

// unifiedID returns the id a side's own node id is treated as everywhere
// else in the merge: its remapped value if unifyShapes remapped it, or
// the id unchanged otherwise.
func unifiedID(remap map[vocab.NodeID]vocab.NodeID, id vocab.NodeID) vocab.NodeID {
	if u, ok := remap[id]; ok {
		return u
	}
	return id
}

// originalID is unifiedID's inverse: given the id a node is unified
// under, finds the id that side originally used for it.
func originalID(remap map[vocab.NodeID]vocab.NodeID, unified vocab.NodeID) vocab.NodeID {
	for orig, u := range remap {
		if u == unified {
			return orig
		}
	}
	return unified
}

// unifyShapes finds node creations that exist independently on both sides
// at the same path and decides whether to unify them under one id. It
// returns, separately for each side, a map from that side's own node id
// to the unified id it should be treated as everywhere else in the
// merge: if both sides' ids are temporary (in-memory construction, never
// persisted) a fresh permanent id is minted and both sides remap to it;
// if exactly one side already carries a permanent id, the other side
// remaps to it; otherwise (neither is temporary -- two already-persisted
// rosters independently creating the same path) the right side remaps to
// the left's id.
func unifyShapes(base, left, right *roster.Roster, ids *vocab.NodeIDSource) (map[vocab.NodeID]vocab.NodeID, map[vocab.NodeID]vocab.NodeID, []Conflict, error) {
	leftRemap := make(map[vocab.NodeID]vocab.NodeID)
	rightRemap := make(map[vocab.NodeID]vocab.NodeID)
	var conflicts []Conflict

	leftNew := newSince(base, left)
	rightNew := newSince(base, right)

	leftByPath := make(map[string]vocab.NodeID, len(leftNew))
	for _, id := range leftNew {
		p, err := left.GetName(id)
		if err != nil {
			return nil, nil, nil, err
		}
		leftByPath[p.String()] = id
	}

	for _, rid := range rightNew {
		p, err := right.GetName(rid)
		if err != nil {
			return nil, nil, nil, err
		}
		lid, ok := leftByPath[p.String()]
		if !ok {
			continue
		}
		ln, _ := left.GetNode(lid)
		rn, _ := right.GetNode(rid)
		if ln.IsDirectory() != rn.IsDirectory() {
			conflicts = append(conflicts, Conflict{
				Kind:     DuplicateName,
				Ancestor: ConflictEntry{Path: p},
				Our:      ConflictEntry{Node: lid, Path: p},
				Their:    ConflictEntry{Node: rid, Path: p},
				Detail:   fmt.Sprintf("both sides created %q independently as incompatible node kinds", p.String()),
			})
			continue
		}
		switch {
		case lid.IsTemporary() && rid.IsTemporary():
			fresh := ids.Next()
			leftRemap[lid] = fresh
			rightRemap[rid] = fresh
		case lid.IsTemporary():
			leftRemap[lid] = rid
		case rid.IsTemporary():
			rightRemap[rid] = lid
		default:
			rightRemap[rid] = lid
		}
	}
	return leftRemap, rightRemap, conflicts, nil
}

func newSince(base, r *roster.Roster) []vocab.NodeID {
	var out []vocab.NodeID
	for _, id := range r.AllNodeIDs() {
		if !base.HasNodeID(id) {
			out = append(out, id)
		}
	}
	return out
}
