package merge

import (
	"github.com/dscherger/monotone-sub002/errs"
	"github.com/dscherger/monotone-sub002/marking"
	"github.com/dscherger/monotone-sub002/roster"
	"github.com/dscherger/monotone-sub002/vocab"
)

// resolvedShape is the per-node outcome of merging: the final parent,
// name, kind, content, and attribute set that the merged roster will
// seed this node with.
type resolvedShape struct {
	parent  vocab.NodeID
	name    vocab.PathComponent
	kind    roster.Kind
	content vocab.FileID
	attrs   map[string]roster.Attr
}

// mergeOneSided handles a node present in only one parent: its shape and
// marks are carried over unchanged, after verifying that its birth
// revision belongs to ITS OWN side's uncommon ancestors -- evidence that
// the node was born strictly after the merge base, in history the other
// side never shared, so its absence there means unborn, not deleted.
func mergeOneSided(id vocab.NodeID, n *roster.Node, marks *marking.Map, ownUncommon map[vocab.RevisionID]bool, shapes map[vocab.NodeID]resolvedShape, mm *marking.Map) error {
	mk, ok := marks.Get(id)
	if !ok {
		return errs.New(errs.Internal, "merge: node present in a parent roster has no marking entry")
	}
	if !ownUncommon[mk.Birth] {
		return errs.New(errs.Internal, "merge: node absent on one side has a birth revision the other side could have seen -- looks deleted, not unborn")
	}
	shapes[id] = resolvedShape{
		parent:  n.Parent(),
		name:    n.Name(),
		kind:    kindOf(n),
		content: contentOf(n),
		attrs:   copyAttrs(n),
	}
	mm.Set(id, mk)
	return nil
}

// mergeBothPresent handles a node present (by unified id) in both
// parents. isNewInBoth is true when the node did not exist in the merge
// base -- an independent creation unified by path in the shape-merge
// step.
func mergeBothPresent(id vocab.NodeID, newRid vocab.RevisionID, isNewInBoth bool, bn, ln, rn *roster.Node, left, right Parent, shapes map[vocab.NodeID]resolvedShape, mm *marking.Map, conflicts *[]Conflict) error {
	if isNewInBoth {
		shapes[id] = resolvedShape{
			parent:  ln.Parent(),
			name:    ln.Name(),
			kind:    kindOf(ln),
			content: contentOf(ln),
			attrs:   unionFreshAttrs(ln, rn),
		}
		mm.Set(id, freshMark(newRid, ln, unionAttrKeys(ln, rn)))
		return nil
	}

	lm, _ := left.Marks.Get(id)
	rm, _ := right.Marks.Get(id)
	merged := marking.NewMarking()
	merged.Birth = lm.Birth

	var baseParent vocab.NodeID
	var baseName vocab.PathComponent
	if bn != nil {
		baseParent, baseName = bn.Parent(), bn.Name()
	}
	parent, name, parentMark, conflicted := resolveLocation(newRid, bn != nil, baseParent, baseName, ln.Parent(), ln.Name(), rn.Parent(), rn.Name(), lm.ParentName, rm.ParentName, left.UncommonAncestors, right.UncommonAncestors)
	merged.ParentName = parentMark
	if conflicted {
		p, _ := left.Roster.GetName(ln.Self())
		q, _ := right.Roster.GetName(rn.Self())
		*conflicts = append(*conflicts, Conflict{
			Kind:   DuplicateName,
			Our:    ConflictEntry{Node: id, Path: p},
			Their:  ConflictEntry{Node: id, Path: q},
			Detail: "both sides moved or renamed this node differently",
		})
	}

	kind := kindOf(ln)
	var content vocab.FileID
	if kind == roster.KindFile {
		var baseContent vocab.FileID
		if bn != nil {
			baseContent = bn.Content()
		}
		var fileConflict bool
		content, merged.FileContent, fileConflict = resolveContent(newRid, bn != nil, baseContent, ln.Content(), rn.Content(), lm.FileContent, rm.FileContent, left.UncommonAncestors, right.UncommonAncestors)
		if fileConflict {
			p, _ := left.Roster.GetName(id)
			*conflicts = append(*conflicts, Conflict{
				Kind:   ContentConflict,
				Our:    ConflictEntry{Node: id, Path: p},
				Their:  ConflictEntry{Node: id, Path: p},
				Detail: "both sides changed this file's content differently",
			})
		}
	}

	attrs, attrMarks, attrConflicts := resolveAttrs(newRid, bn, ln, rn, lm.Attrs, rm.Attrs, left.UncommonAncestors, right.UncommonAncestors)
	merged.Attrs = attrMarks
	if len(attrConflicts) > 0 {
		p, _ := left.Roster.GetName(id)
		for _, key := range attrConflicts {
			*conflicts = append(*conflicts, Conflict{
				Kind:   AttrConflict,
				Our:    ConflictEntry{Node: id, Path: p},
				Their:  ConflictEntry{Node: id, Path: p},
				Detail: "attribute " + key + " was changed differently by both sides",
			})
		}
	}

	shapes[id] = resolvedShape{parent: parent, name: name, kind: kind, content: content, attrs: attrs}
	mm.Set(id, merged)
	return nil
}

// wonMerge reports whether mark is entirely composed of revisions the
// other side already shares (common ancestors), meaning this side truly
// left the scalar alone rather than independently changing it back to a
// value that happens to match the base. If mark contains any revision
// from uncommon -- revisions only this side's history has seen -- the
// match against base is coincidental and must be treated as a genuine
// change, per original_source/src/roster.cc's mark_won_merge.
func wonMerge(mark marking.RevisionSet, uncommon map[vocab.RevisionID]bool) bool {
	for rid := range mark {
		if uncommon[rid] {
			return false
		}
	}
	return true
}

func resolveLocation(newRid vocab.RevisionID, inBase bool, baseParent vocab.NodeID, baseName vocab.PathComponent, leftParent vocab.NodeID, leftName vocab.PathComponent, rightParent vocab.NodeID, rightName vocab.PathComponent, leftMark, rightMark marking.RevisionSet, leftUncommon, rightUncommon map[vocab.RevisionID]bool) (vocab.NodeID, vocab.PathComponent, marking.RevisionSet, bool) {
	if leftParent == rightParent && leftName == rightName {
		return leftParent, leftName, marking.Union(leftMark, rightMark), false
	}
	if inBase && rightParent == baseParent && rightName == baseName && wonMerge(rightMark, rightUncommon) {
		return leftParent, leftName, leftMark, false
	}
	if inBase && leftParent == baseParent && leftName == baseName && wonMerge(leftMark, leftUncommon) {
		return rightParent, rightName, rightMark, false
	}
	return leftParent, leftName, marking.NewRevisionSet(newRid), true
}

func resolveContent(newRid vocab.RevisionID, inBase bool, baseContent, leftContent, rightContent vocab.FileID, leftMark, rightMark marking.RevisionSet, leftUncommon, rightUncommon map[vocab.RevisionID]bool) (vocab.FileID, marking.RevisionSet, bool) {
	if leftContent == rightContent {
		return leftContent, marking.Union(leftMark, rightMark), false
	}
	if inBase && rightContent == baseContent && wonMerge(rightMark, rightUncommon) {
		return leftContent, leftMark, false
	}
	if inBase && leftContent == baseContent && wonMerge(leftMark, leftUncommon) {
		return rightContent, rightMark, false
	}
	return leftContent, marking.NewRevisionSet(newRid), true
}

func resolveAttrs(newRid vocab.RevisionID, bn, ln, rn *roster.Node, leftMarks, rightMarks map[string]marking.RevisionSet, leftUncommon, rightUncommon map[vocab.RevisionID]bool) (map[string]roster.Attr, map[string]marking.RevisionSet, []string) {
	keys := unionAttrKeys(ln, rn)
	attrs := make(map[string]roster.Attr, len(keys))
	marks := make(map[string]marking.RevisionSet, len(keys))
	var conflicted []string

	for _, k := range keys {
		la, lok := ln.Attr(k)
		ra, rok := rn.Attr(k)
		var ba roster.Attr
		bok := false
		if bn != nil {
			ba, bok = bn.Attr(k)
		}
		lm := leftMarks[k]
		rm := rightMarks[k]

		switch {
		case lok && rok && la == ra:
			attrs[k] = la
			marks[k] = marking.Union(lm, rm)
		case !rok:
			attrs[k] = la
			if lm != nil {
				marks[k] = lm
			} else {
				marks[k] = marking.NewRevisionSet(newRid)
			}
		case !lok:
			attrs[k] = ra
			if rm != nil {
				marks[k] = rm
			} else {
				marks[k] = marking.NewRevisionSet(newRid)
			}
		case bok && ra == ba && wonMerge(rm, rightUncommon):
			attrs[k] = la
			marks[k] = lm
		case bok && la == ba && wonMerge(lm, leftUncommon):
			attrs[k] = ra
			marks[k] = rm
		default:
			attrs[k] = la
			marks[k] = marking.NewRevisionSet(newRid)
			conflicted = append(conflicted, k)
		}
	}
	return attrs, marks, conflicted
}

func kindOf(n *roster.Node) roster.Kind {
	if n.IsDirectory() {
		return roster.KindDirectory
	}
	return roster.KindFile
}

func contentOf(n *roster.Node) vocab.FileID {
	if n.IsFile() {
		return n.Content()
	}
	return vocab.FileID{}
}

func copyAttrs(n *roster.Node) map[string]roster.Attr {
	src := n.Attrs()
	out := make(map[string]roster.Attr, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func unionFreshAttrs(ln, rn *roster.Node) map[string]roster.Attr {
	out := make(map[string]roster.Attr)
	for k, v := range ln.Attrs() {
		out[k] = v
	}
	for k, v := range rn.Attrs() {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return out
}

func unionAttrKeys(a, b *roster.Node) []string {
	seen := make(map[string]bool)
	var out []string
	for k := range a.Attrs() {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for k := range b.Attrs() {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func freshMark(newRid vocab.RevisionID, n *roster.Node, attrKeys []string) marking.Marking {
	m := marking.NewMarking()
	m.Birth = newRid
	m.ParentName = marking.NewRevisionSet(newRid)
	if n.IsFile() {
		m.FileContent = marking.NewRevisionSet(newRid)
	}
	for _, k := range attrKeys {
		m.Attrs[k] = marking.NewRevisionSet(newRid)
	}
	return m
}

// buildRoster seeds a fresh roster from the resolved per-node shapes and
// attaches every node starting from the root, breadth-first, so that
// every parent exists before a child attaches under it.
func buildRoster(r *roster.Roster, shapes map[vocab.NodeID]resolvedShape) error {
	var rootID vocab.NodeID
	found := false
	for id, s := range shapes {
		if s.parent == vocab.NullNode {
			if found {
				return errs.New(errs.Internal, "merge produced more than one root node")
			}
			rootID, found = id, true
		}
	}
	if !found {
		return errs.New(errs.Internal, "merge produced no root node")
	}

	for id, s := range shapes {
		r.SeedDetached(id, s.kind, s.content, s.attrs)
	}

	if err := r.AttachNode(rootID, vocab.NullNode, ""); err != nil {
		return err
	}

	attached := map[vocab.NodeID]bool{rootID: true}
	queue := []vocab.NodeID{rootID}
	for i := 0; i < len(queue); i++ {
		parentID := queue[i]
		for id, s := range shapes {
			if attached[id] || s.parent != parentID {
				continue
			}
			if err := r.AttachNode(id, parentID, s.name); err != nil {
				return err
			}
			attached[id] = true
			queue = append(queue, id)
		}
	}
	for id := range shapes {
		if !attached[id] {
			return errs.New(errs.Internal, "merge left an unreachable node (its parent was itself dropped)")
		}
	}
	return nil
}
