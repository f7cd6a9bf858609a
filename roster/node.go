// Package roster implements the node-identified tree snapshot: an ordered
// mapping from node id to node, with copy-on-write sharing between
// generations.
//
// Grounded on garland/node.go's Node/NodeSnapshot split (an identity object
// plus an immutable versioned snapshot) and garland/tree.go's
// version-tag-driven clone-on-write walk, generalized from "snapshot keyed
// by (fork, revision)" to "node keyed by id, unshared along the path to
// root on write" via copy-on-write reference counts.
package roster

import "github.com/dscherger/monotone-sub002/vocab"

// Kind distinguishes a directory node from a file node.
type Kind int

const (
	KindDirectory Kind = iota
	KindFile
)

// Attr is one attribute value. Live=false with an empty Value is a
// "dormant attr corpse": evidence the attribute once existed, kept so
// merge cannot resurrect a dropped attribute.
type Attr struct {
	Live  bool
	Value string
}

// Node is a tagged union of directory and file. Children are
// referenced by pointer (not just by id) so that cloning a child forces
// its parent's Children map to be cloned too, and so on to the root --
// clone the target node first, then walk to the root cloning each
// directory along the way and replacing the old child pointer.
type Node struct {
	self   vocab.NodeID
	parent vocab.NodeID // NullNode for the root
	name   vocab.PathComponent
	kind   Kind
	attrs  map[string]Attr

	content vocab.FileID // files only

	children map[vocab.PathComponent]*Node // directories only

	version uint64 // roster generation that last wrote this node
	refs    int32  // number of rosters that currently reference this pointer
}

// Self returns the node's own id.
func (n *Node) Self() vocab.NodeID { return n.self }

// Parent returns the id of the node's parent, or NullNode at the root.
func (n *Node) Parent() vocab.NodeID { return n.parent }

// Name returns the node's path component, "" at the root.
func (n *Node) Name() vocab.PathComponent { return n.name }

// IsDirectory reports whether this node is a directory.
func (n *Node) IsDirectory() bool { return n.kind == KindDirectory }

// IsFile reports whether this node is a file.
func (n *Node) IsFile() bool { return n.kind == KindFile }

// Content returns the file's content id. Panics on a directory node.
func (n *Node) Content() vocab.FileID {
	if n.kind != KindFile {
		panic("roster: Content called on a directory node")
	}
	return n.content
}

// Attr returns the attribute recorded for key, and whether one exists at
// all (live or as a dormant corpse).
func (n *Node) Attr(key string) (Attr, bool) {
	a, ok := n.attrs[key]
	return a, ok
}

// Attrs returns a read-only view of every attribute entry on this node,
// including dormant corpses. Callers must not mutate the returned map.
func (n *Node) Attrs() map[string]Attr { return n.attrs }

// ChildNames returns the sorted-by-map-iteration-unspecified set of child
// component names of a directory node. Panics on a file node.
func (n *Node) ChildNames() []vocab.PathComponent {
	if n.kind != KindDirectory {
		panic("roster: ChildNames called on a file node")
	}
	names := make([]vocab.PathComponent, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	return names
}

// ChildByName looks up a child by name. Panics on a file node.
func (n *Node) ChildByName(name vocab.PathComponent) (*Node, bool) {
	if n.kind != KindDirectory {
		panic("roster: ChildByName called on a file node")
	}
	c, ok := n.children[name]
	return c, ok
}

func newDirNode(id vocab.NodeID, version uint64) *Node {
	return &Node{
		self:     id,
		parent:   vocab.NullNode,
		kind:     KindDirectory,
		attrs:    make(map[string]Attr),
		children: make(map[vocab.PathComponent]*Node),
		version:  version,
		refs:     1,
	}
}

func newFileNode(id vocab.NodeID, content vocab.FileID, version uint64) *Node {
	return &Node{
		self:    id,
		parent:  vocab.NullNode,
		kind:    KindFile,
		attrs:   make(map[string]Attr),
		content: content,
		version: version,
		refs:    1,
	}
}

// clone returns a deep-enough copy of n: a new Node with its own attrs map
// (and, for directories, its own children map), ready to be mutated by the
// roster that owns the clone without disturbing any other roster that
// still shares the original n.
func (n *Node) clone() *Node {
	c := &Node{
		self:    n.self,
		parent:  n.parent,
		name:    n.name,
		kind:    n.kind,
		content: n.content,
	}
	c.attrs = make(map[string]Attr, len(n.attrs))
	for k, v := range n.attrs {
		c.attrs[k] = v
	}
	if n.kind == KindDirectory {
		c.children = make(map[vocab.PathComponent]*Node, len(n.children))
		for k, v := range n.children {
			c.children[k] = v
		}
	}
	return c
}
