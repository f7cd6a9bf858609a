package roster

import (
	"fmt"
	"io"
	"sort"

	"github.com/dscherger/monotone-sub002/basicio"
	"github.com/dscherger/monotone-sub002/marking"
	"github.com/dscherger/monotone-sub002/vocab"
)

// PrintTo serializes the roster in canonical basic_io form. When
// mm is non-nil and printLocalParts is true, node ids, dormant attrs, and
// marking stanzas are emitted (the "local"/roster format); otherwise the
// output is the public manifest whose hash is the manifest id.
func (r *Roster) PrintTo(w io.Writer, mm *marking.Map, printLocalParts bool) error {
	bw := basicio.NewWriter(w)
	bw.Preamble("1")

	root, ok := r.Root()
	if !ok {
		return fmt.Errorf("roster: cannot print a rootless roster")
	}
	rootNode := r.nodes[root]

	var walk func(n *Node, path vocab.RepoPath) error
	walk = func(n *Node, path vocab.RepoPath) error {
		bw.Stanza(r.nodeStanza(n, path, mm, printLocalParts))
		if n.IsDirectory() {
			names := n.ChildNames()
			sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
			for _, name := range names {
				child, _ := n.ChildByName(name)
				if err := walk(child, path.Join(name)); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(rootNode, vocab.RootPath); err != nil {
		return err
	}
	return bw.Flush()
}

func (r *Roster) nodeStanza(n *Node, path vocab.RepoPath, mm *marking.Map, local bool) basicio.Stanza {
	var s basicio.Stanza
	if n.IsDirectory() {
		s = append(s, basicio.NewLine("dir", path.String()))
	} else {
		s = append(s, basicio.NewLine("file", path.String()))
		s = append(s, basicio.NewHexLine("content", n.content.String()))
	}

	if local {
		s = append(s, basicio.NewLine("ident", fmt.Sprintf("%d", n.self)))
	}

	keys := make([]string, 0, len(n.attrs))
	for k := range n.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		a := n.attrs[k]
		if a.Live {
			s = append(s, basicio.NewLine("attr", k, a.Value))
		} else if local {
			s = append(s, basicio.NewLine("dormant_attr", k))
		}
	}

	if local && mm != nil {
		if m, ok := mm.Get(n.self); ok {
			s = append(s, basicio.NewHexLine("birth", m.Birth.String()))
			for _, rid := range sortedRevisions(m.ParentName) {
				s = append(s, basicio.NewHexLine("path_mark", rid.String()))
			}
			if n.IsFile() {
				for _, rid := range sortedRevisions(m.FileContent) {
					s = append(s, basicio.NewHexLine("content_mark", rid.String()))
				}
			}
			attrKeys := make([]string, 0, len(m.Attrs))
			for k := range m.Attrs {
				attrKeys = append(attrKeys, k)
			}
			sort.Strings(attrKeys)
			for _, k := range attrKeys {
				for _, rid := range sortedRevisions(m.Attrs[k]) {
					s = append(s, basicio.NewLine("attr_mark", k, rid.String()))
				}
			}
		}
	}
	return s
}

func sortedRevisions(set map[vocab.RevisionID]bool) []vocab.RevisionID {
	out := make([]vocab.RevisionID, 0, len(set))
	for rid := range set {
		out = append(out, rid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// ParseFrom is the inverse of PrintTo for the local (roster) format: it
// requires ident/birth stanzas and reconstructs both the roster and the
// marking map.
func ParseFrom(r io.Reader, ids *vocab.NodeIDSource) (*Roster, *marking.Map, error) {
	stanzas, err := basicio.Parse(r)
	if err != nil {
		return nil, nil, err
	}
	if len(stanzas) == 0 {
		return nil, nil, fmt.Errorf("roster: empty document")
	}
	// First stanza is the format_version preamble.
	body := stanzas[1:]

	ros := New(ids)
	mm := marking.New()

	type pending struct {
		path vocab.RepoPath
		id   vocab.NodeID
	}
	var dirs, files []pending

	for _, s := range body {
		dirLine, isDir := s.Get("dir")
		fileLine, isFile := s.Get("file")
		if !isDir && !isFile {
			continue
		}
		identLine, _ := s.Get("ident")
		idVal, _ := identLine.Int(0)
		id := vocab.NodeID(idVal)

		var path vocab.RepoPath
		if isDir {
			path = vocab.NewRepoPath(dirLine.Str(0))
			ros.seedDetached(id, KindDirectory, vocab.FileID{}, parseAttrs(s))
			dirs = append(dirs, pending{path, id})
		} else {
			path = vocab.NewRepoPath(fileLine.Str(0))
			contentLine, _ := s.Get("content")
			contentID, _ := vocab.ParseFileID(contentLine.HexArgAt(0))
			ros.seedDetached(id, KindFile, contentID, parseAttrs(s))
			files = append(files, pending{path, id})
		}

		m := marking.Marking{Attrs: make(map[string]marking.RevisionSet)}
		if birthLine, ok := s.Get("birth"); ok {
			rid, _ := vocab.ParseRevisionID(birthLine.HexArgAt(0))
			m.Birth = rid
		}
		m.ParentName = hexSetFromLines(s.All("path_mark"))
		m.FileContent = hexSetFromLines(s.All("content_mark"))
		for _, l := range s.All("attr_mark") {
			key := l.Str(0)
			rid, _ := vocab.ParseRevisionID(l.HexArgAt(1))
			if m.Attrs[key] == nil {
				m.Attrs[key] = make(marking.RevisionSet)
			}
			m.Attrs[key][rid] = true
		}
		mm.Set(id, m)
	}

	all := append(append([]pending(nil), dirs...), files...)
	sort.Slice(all, func(i, j int) bool { return len(all[i].path.Components()) < len(all[j].path.Components()) })

	for _, p := range all {
		if p.path.IsRoot() {
			if err := ros.AttachNode(p.id, vocab.NullNode, ""); err != nil {
				return nil, nil, err
			}
			continue
		}
		parentPath := p.path.Dirname()
		parent, err := ros.GetNodeByPath(parentPath)
		if err != nil {
			return nil, nil, fmt.Errorf("roster: parse: missing parent directory %q for %q", parentPath.String(), p.path.String())
		}
		if err := ros.AttachNode(p.id, parent.self, p.path.Basename()); err != nil {
			return nil, nil, err
		}
	}

	return ros, mm, nil
}

func parseAttrs(s basicio.Stanza) map[string]Attr {
	attrs := make(map[string]Attr)
	for _, l := range s.All("attr") {
		attrs[l.Str(0)] = Attr{Live: true, Value: l.Str(1)}
	}
	for _, l := range s.All("dormant_attr") {
		attrs[l.Str(0)] = Attr{Live: false, Value: ""}
	}
	return attrs
}

func hexSetFromLines(lines []basicio.Line) marking.RevisionSet {
	set := make(marking.RevisionSet, len(lines))
	for _, l := range lines {
		rid, err := vocab.ParseRevisionID(l.HexArgAt(0))
		if err == nil {
			set[rid] = true
		}
	}
	return set
}
