package roster

import (
	"fmt"
	"sort"

	"github.com/dscherger/monotone-sub002/errs"
	"github.com/dscherger/monotone-sub002/vocab"
)

// InclusionMode selects whether a Predicate names the nodes that should
// take their value from "to" (Include) or the nodes that should stay at
// their "from" value (Exclude).
type InclusionMode int

const (
	// Include means the predicate names nodes whose to-state should be
	// carried into the result; everything else stays at its from-state.
	Include InclusionMode = iota
	// Exclude means the predicate names nodes that should stay at their
	// from-state; everything else takes its to-state.
	Exclude
)

// Predicate decides whether a node id is named by a restriction.
type Predicate func(id vocab.NodeID) bool

// Restriction pairs a Predicate with the InclusionMode that says how to
// interpret it. Grounded on garland/region_ops.go's selection-plus-mode
// shape for naming a subtree to operate on.
type Restriction struct {
	Predicate Predicate
	Mode      InclusionMode
}

func (r Restriction) includes(id vocab.NodeID) bool {
	named := r.Predicate(id)
	if r.Mode == Include {
		return named
	}
	return !named
}

type targetShape struct {
	present bool
	parent  vocab.NodeID
	name    vocab.PathComponent
	kind    Kind
	content vocab.FileID
	attrs   map[string]Attr
}

// MakeRestrictedRoster builds the roster that equals from on nodes the
// restriction excludes and to on nodes it includes. It fails
// if the restriction cuts between a directory and its child in a way that
// would leave an orphan or create a cycle, or if it excludes the addition
// of a directory a selected node requires as a parent.
func MakeRestrictedRoster(from, to *Roster, restriction Restriction) (*Roster, error) {
	ids := unionSortedIDs(from, to)
	shapes := make(map[vocab.NodeID]targetShape, len(ids))
	for _, id := range ids {
		shapes[id] = computeTargetShape(id, from, to, restriction)
	}

	result := New(from.ids)
	result.tempOK = from.tempOK || to.tempOK

	// Find the root: present, parent == NullNode, name == "".
	var rootID vocab.NodeID
	found := false
	for id, s := range shapes {
		if s.present && s.parent == vocab.NullNode && s.name == "" {
			if found {
				return nil, errs.New(errs.User, "restriction produces more than one root")
			}
			rootID, found = id, true
		}
	}
	if !found {
		return nil, errs.New(errs.User, "restriction leaves the tree without a root")
	}

	for id, s := range shapes {
		if !s.present {
			continue
		}
		result.seedDetached(id, s.kind, s.content, s.attrs)
	}

	// Attach in breadth-first order from the root so every parent exists
	// before its children attempt to attach under it.
	order := []vocab.NodeID{rootID}
	result.root = vocab.NullNode // seedDetached never sets root; AttachNode does
	if err := result.AttachNode(rootID, vocab.NullNode, ""); err != nil {
		return nil, errs.Wrap(errs.User, "restriction could not attach root", err)
	}

	attached := map[vocab.NodeID]bool{rootID: true}
	for i := 0; i < len(order); i++ {
		parentID := order[i]
		children := childrenOf(parentID, shapes)
		sort.Slice(children, func(a, b int) bool { return children[a] < children[b] })
		for _, childID := range children {
			s := shapes[childID]
			if attached[childID] {
				continue
			}
			if err := result.AttachNode(childID, parentID, s.name); err != nil {
				return nil, errs.Wrap(errs.User, fmt.Sprintf("restriction orphaned node under %q", s.name), err)
			}
			attached[childID] = true
			order = append(order, childID)
		}
	}

	for id, s := range shapes {
		if s.present && !attached[id] {
			return nil, errs.New(errs.User, "restriction excludes the addition of a required parent directory")
		}
	}

	return result, nil
}

func childrenOf(parentID vocab.NodeID, shapes map[vocab.NodeID]targetShape) []vocab.NodeID {
	var out []vocab.NodeID
	for id, s := range shapes {
		if s.present && s.parent == parentID {
			out = append(out, id)
		}
	}
	return out
}

func computeTargetShape(id vocab.NodeID, from, to *Roster, restriction Restriction) targetShape {
	if restriction.includes(id) {
		if n, ok := to.nodes[id]; ok {
			return nodeShape(n)
		}
		return targetShape{present: false}
	}
	if n, ok := from.nodes[id]; ok {
		return nodeShape(n)
	}
	return targetShape{present: false}
}

func nodeShape(n *Node) targetShape {
	attrs := make(map[string]Attr, len(n.attrs))
	for k, v := range n.attrs {
		attrs[k] = v
	}
	return targetShape{
		present: true,
		parent:  n.parent,
		name:    n.name,
		kind:    n.kind,
		content: n.content,
		attrs:   attrs,
	}
}

// seedDetached inserts a new, detached node carrying a caller-chosen id
// (instead of minting one from the roster's id source), used by
// MakeRestrictedRoster and by the merge package to rebuild a roster that
// must keep the original node ids of its inputs.
func (r *Roster) seedDetached(id vocab.NodeID, kind Kind, content vocab.FileID, attrs map[string]Attr) {
	var n *Node
	if kind == KindDirectory {
		n = newDirNode(id, r.version)
		n.children = make(map[vocab.PathComponent]*Node)
	} else {
		n = newFileNode(id, content, r.version)
	}
	n.attrs = attrs
	r.nodes[id] = n
}

// SeedDetached is the exported form of seedDetached, for packages outside
// roster (such as merge) that must rebuild a roster while preserving
// specific node ids.
func (r *Roster) SeedDetached(id vocab.NodeID, kind Kind, content vocab.FileID, attrs map[string]Attr) {
	r.seedDetached(id, kind, content, attrs)
}
