package roster

import (
	"fmt"

	"github.com/dscherger/monotone-sub002/errs"
	"github.com/dscherger/monotone-sub002/vocab"
)

type detachedInfo struct {
	parent vocab.NodeID
	name   vocab.PathComponent
}

// Roster is the tree-snapshot data structure: an ordered
// mapping node_id -> node plus a root pointer, which may be absent in a
// transient workspace roster.
type Roster struct {
	nodes    map[vocab.NodeID]*Node
	root     vocab.NodeID
	version  uint64
	detached map[vocab.NodeID]detachedInfo
	ids      *vocab.NodeIDSource
	tempOK   bool
}

// New creates an empty roster (no nodes, no root) that allocates new node
// ids from ids. Callers typically call CreateDirNode + AttachNode once to
// establish a root.
func New(ids *vocab.NodeIDSource) *Roster {
	return &Roster{
		nodes:    make(map[vocab.NodeID]*Node),
		root:     vocab.NullNode,
		detached: make(map[vocab.NodeID]detachedInfo),
		ids:      ids,
	}
}

// NewEmptyRootRoster builds the canonical empty tree: a root directory
// node with no children and no attrs.
func NewEmptyRootRoster(ids *vocab.NodeIDSource) *Roster {
	r := New(ids)
	root := r.CreateDirNode()
	if err := r.AttachNode(root, vocab.NullNode, ""); err != nil {
		panic(fmt.Sprintf("roster: attaching fresh root failed: %v", err))
	}
	return r
}

// AllowTemporaryNodes permits node ids in the temporary range to exist in
// this roster without check_sane treating it as an invariant violation,
// for in-progress shape-merge/addition-builder construction.
func (r *Roster) AllowTemporaryNodes(ok bool) { r.tempOK = ok }

// Root returns the id of the tree root, or (NullNode, false) if absent.
func (r *Roster) Root() (vocab.NodeID, bool) {
	if r.root == vocab.NullNode {
		return vocab.NullNode, false
	}
	return r.root, true
}

// HasNodeID reports whether id is present in the roster.
func (r *Roster) HasNodeID(id vocab.NodeID) bool {
	_, ok := r.nodes[id]
	return ok
}

// GetNode looks up a node by id, failing if absent.
func (r *Roster) GetNode(id vocab.NodeID) (*Node, error) {
	n, ok := r.nodes[id]
	if !ok {
		return nil, errs.Wrap(errs.Internal, fmt.Sprintf("no such node id %d", id), errs.ErrNotFound)
	}
	return n, nil
}

// HasNodePath reports whether path resolves to a live node.
func (r *Roster) HasNodePath(path vocab.RepoPath) bool {
	_, err := r.GetNodeByPath(path)
	return err == nil
}

// GetNodeByPath resolves a repo-relative path to its node, failing if any
// component along the way is missing or not a directory.
func (r *Roster) GetNodeByPath(path vocab.RepoPath) (*Node, error) {
	if r.root == vocab.NullNode {
		return nil, errs.Wrap(errs.Internal, "roster has no root", errs.ErrNotFound)
	}
	cur, err := r.GetNode(r.root)
	if err != nil {
		return nil, err
	}
	for _, comp := range path.Components() {
		if !cur.IsDirectory() {
			return nil, errs.Wrap(errs.Internal, fmt.Sprintf("%q is not a directory", comp), errs.ErrNotFound)
		}
		child, ok := cur.ChildByName(comp)
		if !ok {
			return nil, errs.Wrap(errs.Internal, fmt.Sprintf("no such path %q", path.String()), errs.ErrNotFound)
		}
		cur = child
	}
	return cur, nil
}

// GetName walks parents to reconstruct the full path of id.
func (r *Roster) GetName(id vocab.NodeID) (vocab.RepoPath, error) {
	n, err := r.GetNode(id)
	if err != nil {
		return vocab.RootPath, err
	}
	var comps []vocab.PathComponent
	for n.parent != vocab.NullNode {
		comps = append([]vocab.PathComponent{n.name}, comps...)
		n, err = r.GetNode(n.parent)
		if err != nil {
			return vocab.RootPath, err
		}
	}
	p := vocab.RootPath
	for _, c := range comps {
		p = p.Join(c)
	}
	return p, nil
}

// AllNodeIDs returns every node id currently in the roster, in unspecified
// order; callers needing a stable order (e.g. Diff) go through a sorted
// copy themselves.
func (r *Roster) AllNodeIDs() []vocab.NodeID {
	ids := make([]vocab.NodeID, 0, len(r.nodes))
	for id := range r.nodes {
		ids = append(ids, id)
	}
	return ids
}

// Clone returns a new roster sharing every node with r via copy-on-write:
// no node is actually copied until one of the two rosters mutates it.
// Grounded on garland's snapshot-sharing-by-default model (node.go
// history map), generalized from "share by (fork,revision) key" to
// "share by incrementing a pointer refcount at clone time".
func (r *Roster) Clone() *Roster {
	c := &Roster{
		nodes:    make(map[vocab.NodeID]*Node, len(r.nodes)),
		root:     r.root,
		version:  r.version,
		detached: make(map[vocab.NodeID]detachedInfo, len(r.detached)),
		ids:      r.ids,
		tempOK:   r.tempOK,
	}
	for id, n := range r.nodes {
		n.refs++
		c.nodes[id] = n
	}
	for id, d := range r.detached {
		c.detached[id] = d
	}
	return c
}

// unshare ensures the node at id is exclusively owned by this roster
// generation, cloning it (and walking the clone up to the root) if it
// is shared with another roster or stale relative to the current write
// generation.
func (r *Roster) unshare(id vocab.NodeID) *Node {
	n := r.nodes[id]
	if n == nil {
		return nil
	}
	if n.version == r.version && n.refs <= 1 {
		return n
	}
	clone := n.clone()
	clone.version = r.version
	clone.refs = 1
	n.refs--
	r.nodes[id] = clone

	if clone.parent != vocab.NullNode {
		parent := r.unshare(clone.parent)
		if parent != nil {
			parent.children[clone.name] = clone
		}
	}
	return clone
}

// bumpVersion starts a new write generation for the next mutating op.
func (r *Roster) bumpVersion() { r.version++ }

// CreateDirNode allocates a new, detached directory node.
func (r *Roster) CreateDirNode() vocab.NodeID {
	r.bumpVersion()
	id := r.ids.Next()
	r.nodes[id] = newDirNode(id, r.version)
	return id
}

// CreateFileNode allocates a new, detached file node with the given
// initial content.
func (r *Roster) CreateFileNode(content vocab.FileID) vocab.NodeID {
	r.bumpVersion()
	id := r.ids.Next()
	r.nodes[id] = newFileNode(id, content, r.version)
	return id
}

// DetachNode removes the node from its parent's children (or clears the
// root pointer, if id is the root) and records its old location so a
// later AttachNode cannot silently restore it: attaching back at the
// exact old location recorded at detach is rejected.
func (r *Roster) DetachNode(id vocab.NodeID) error {
	n, err := r.GetNode(id)
	if err != nil {
		return err
	}
	r.bumpVersion()

	if id == r.root {
		r.root = vocab.NullNode
		r.detached[id] = detachedInfo{parent: vocab.NullNode, name: ""}
		return nil
	}
	if n.parent == vocab.NullNode {
		return errs.New(errs.Internal, "node is not attached")
	}
	oldParent, oldName := n.parent, n.name
	parent := r.unshare(n.parent)
	node := r.unshare(id)
	delete(parent.children, node.name)
	node.parent = vocab.NullNode
	node.name = ""
	r.detached[id] = detachedInfo{parent: oldParent, name: oldName}
	return nil
}

// DetachNodeByPath resolves path and detaches the node there. An empty
// path detaches the root.
func (r *Roster) DetachNodeByPath(path vocab.RepoPath) (vocab.NodeID, error) {
	n, err := r.GetNodeByPath(path)
	if err != nil {
		return vocab.NullNode, err
	}
	if err := r.DetachNode(n.self); err != nil {
		return vocab.NullNode, err
	}
	return n.self, nil
}

// AttachNode attaches a previously detached or freshly created node under
// parentID with the given name (parentID==NullNode and name=="" attaches
// the tree root).
func (r *Roster) AttachNode(id, parentID vocab.NodeID, name vocab.PathComponent) error {
	n, err := r.GetNode(id)
	if err != nil {
		return err
	}
	if n.parent != vocab.NullNode || id == r.root {
		return errs.New(errs.Internal, "node is already attached")
	}
	if old, recorded := r.detached[id]; recorded && old.parent == parentID && old.name == name {
		return errs.New(errs.User, "attach would restore the exact location this node was detached from")
	}

	r.bumpVersion()

	if parentID == vocab.NullNode && name == "" {
		if r.root != vocab.NullNode {
			return errs.New(errs.Internal, "roster already has a root")
		}
		node := r.unshare(id)
		node.parent = vocab.NullNode
		node.name = ""
		r.root = id
		delete(r.detached, id)
		return nil
	}

	parent := r.unshare(parentID)
	if parent == nil {
		return errs.New(errs.Internal, "no such parent node")
	}
	if !parent.IsDirectory() {
		return errs.New(errs.User, "cannot attach a child under a file")
	}
	if _, occupied := parent.children[name]; occupied {
		return errs.Wrap(errs.User, fmt.Sprintf("slot %q is already occupied", name), errs.ErrAlreadyExists)
	}

	node := r.unshare(id)
	node.parent = parentID
	node.name = name
	parent.children[name] = node
	delete(r.detached, id)
	return nil
}

// DropDetachedNode removes a detached node from memory entirely. Fails
// unless the node is currently detached and, if a directory, empty.
func (r *Roster) DropDetachedNode(id vocab.NodeID) error {
	n, err := r.GetNode(id)
	if err != nil {
		return err
	}
	if n.parent != vocab.NullNode || id == r.root {
		return errs.New(errs.Internal, "cannot drop an attached node")
	}
	if n.IsDirectory() && len(n.children) > 0 {
		return errs.New(errs.Internal, "cannot drop a non-empty directory")
	}
	delete(r.nodes, id)
	delete(r.detached, id)
	return nil
}

// ApplyDelta asserts the file at path currently has content oldContent
// and replaces it with newContent.
func (r *Roster) ApplyDelta(path vocab.RepoPath, oldContent, newContent vocab.FileID) error {
	n, err := r.GetNodeByPath(path)
	if err != nil {
		return err
	}
	if !n.IsFile() {
		return errs.New(errs.User, "cannot apply a content delta to a directory")
	}
	if n.content != oldContent {
		return errs.Wrap(errs.Internal, "content delta base does not match current content", errs.ErrCorrupt)
	}
	r.bumpVersion()
	node := r.unshare(n.self)
	node.content = newContent
	return nil
}

// SetAttr sets key to (live=true, value) on the node at path.
func (r *Roster) SetAttr(path vocab.RepoPath, key, value string) error {
	n, err := r.GetNodeByPath(path)
	if err != nil {
		return err
	}
	r.bumpVersion()
	node := r.unshare(n.self)
	node.attrs[key] = Attr{Live: true, Value: value}
	return nil
}

// ClearAttr clears key on the node at path, leaving a dormant corpse.
// Fails if the attribute does not currently exist at all.
func (r *Roster) ClearAttr(path vocab.RepoPath, key string) error {
	n, err := r.GetNodeByPath(path)
	if err != nil {
		return err
	}
	if _, ok := n.attrs[key]; !ok {
		return errs.Wrap(errs.User, fmt.Sprintf("no such attribute %q", key), errs.ErrNotFound)
	}
	r.bumpVersion()
	node := r.unshare(n.self)
	node.attrs[key] = Attr{Live: false, Value: ""}
	return nil
}

// CheckSane verifies the roster's shape invariants hold.
func (r *Roster) CheckSane() error {
	if r.root == vocab.NullNode {
		// A transient, rootless roster is allowed mid-construction; callers
		// that need a committed roster should check Root() themselves.
		return nil
	}
	rootNode, ok := r.nodes[r.root]
	if !ok {
		return errs.New(errs.Internal, "root id not present in node map")
	}
	if rootNode.parent != vocab.NullNode || rootNode.name != "" || !rootNode.IsDirectory() {
		return errs.New(errs.Internal, "root node is malformed")
	}

	visited := make(map[vocab.NodeID]bool, len(r.nodes))
	var walk func(n *Node) error
	walk = func(n *Node) error {
		if visited[n.self] {
			return errs.New(errs.Internal, "node id appears twice in traversal")
		}
		visited[n.self] = true
		if n.self == vocab.NullNode {
			return errs.New(errs.Internal, "a node has the null self id")
		}
		if n.IsFile() && n.content.IsNull() {
			return errs.New(errs.Internal, "a file node has a null content id")
		}
		for k, a := range n.attrs {
			if !a.Live && a.Value != "" {
				return errs.New(errs.Internal, fmt.Sprintf("dormant attr %q has a non-empty value", k))
			}
		}
		if !r.tempOK && n.self.IsTemporary() {
			return errs.New(errs.Internal, "temporary node id present while temp_nodes_ok is false")
		}
		if n.IsDirectory() {
			if n.self == r.root {
				if _, ok := n.children[vocab.PathComponent(vocab.BookkeepingDirName)]; ok {
					return errs.New(errs.Internal, "the root directory has a child named "+string(vocab.BookkeepingDirName))
				}
			}
			for name, child := range n.children {
				if child.parent != n.self || child.name != name {
					return errs.New(errs.Internal, "child's parent/name does not match its slot")
				}
				if err := walk(child); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(rootNode); err != nil {
		return err
	}
	if len(visited) != len(r.nodes) {
		return errs.New(errs.Internal, "node map contains unreachable nodes")
	}
	return nil
}
