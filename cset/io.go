package cset

import (
	"io"

	"github.com/dscherger/monotone-sub002/basicio"
	"github.com/dscherger/monotone-sub002/vocab"
)

// PrintTo serializes the cset in basic_io form: one stanza per operation,
// grouped by kind, each group in its current slice order. PrintTo does not
// sort; Canonicalize does.
func (c *Cset) PrintTo(w io.Writer) error {
	bw := basicio.NewWriter(w)
	bw.Preamble("1")
	c.WriteStanzas(bw)
	return bw.Flush()
}

// WriteStanzas emits the cset's operation stanzas onto an already-open
// writer, with no preamble of its own. Used both by PrintTo and by
// revision.Revision, which embeds a cset's stanzas directly within its
// own document instead of nesting a separate basic_io document inside a
// string argument.
func (c *Cset) WriteStanzas(bw *basicio.Writer) {
	for _, p := range c.NodesDeleted {
		bw.Stanza(basicio.Stanza{basicio.NewLine("delete", p.String())})
	}
	for _, p := range c.DirsAdded {
		bw.Stanza(basicio.Stanza{basicio.NewLine("add_dir", p.String())})
	}
	for _, f := range c.FilesAdded {
		bw.Stanza(basicio.Stanza{
			basicio.NewLine("add_file", f.Path.String()),
			basicio.NewHexLine("content", f.Content.String()),
		})
	}
	for _, rn := range c.NodesRenamed {
		bw.Stanza(basicio.Stanza{basicio.NewLine("rename", rn.Old.String(), rn.New.String())})
	}
	for _, d := range c.DeltasApplied {
		bw.Stanza(basicio.Stanza{
			basicio.NewLine("patch", d.Path.String()),
			basicio.NewHexLine("from", d.Old.String()),
			basicio.NewHexLine("to", d.New.String()),
		})
	}
	for _, a := range c.AttrsCleared {
		bw.Stanza(basicio.Stanza{basicio.NewLine("clear", a.Path.String(), a.Key)})
	}
	for _, a := range c.AttrsSet {
		bw.Stanza(basicio.Stanza{basicio.NewLine("set", a.Path.String(), a.Key, a.Value)})
	}
}

// ParseFrom reconstructs a Cset from its basic_io serialization.
func ParseFrom(r io.Reader) (*Cset, error) {
	stanzas, err := basicio.Parse(r)
	if err != nil {
		return nil, err
	}
	return ParseStanzas(stanzas)
}

// ParseStanzas reconstructs a Cset from an already-parsed stanza slice,
// for callers (revision.ParseFrom) that parsed a larger enclosing
// document themselves and are handing over the sub-range belonging to
// one embedded cset.
func ParseStanzas(stanzas []basicio.Stanza) (*Cset, error) {
	c := &Cset{}
	for _, s := range stanzas {
		if _, ok := s.Get("format_version"); ok {
			continue
		}
		switch {
		case has(s, "delete"):
			l, _ := s.Get("delete")
			c.NodesDeleted = append(c.NodesDeleted, vocab.NewRepoPath(l.Str(0)))
		case has(s, "add_dir"):
			l, _ := s.Get("add_dir")
			c.DirsAdded = append(c.DirsAdded, vocab.NewRepoPath(l.Str(0)))
		case has(s, "add_file"):
			l, _ := s.Get("add_file")
			content, _ := s.Get("content")
			fid, err := vocab.ParseFileID(content.HexArgAt(0))
			if err != nil {
				return nil, err
			}
			c.FilesAdded = append(c.FilesAdded, AddFile{Path: vocab.NewRepoPath(l.Str(0)), Content: fid})
		case has(s, "rename"):
			l, _ := s.Get("rename")
			c.NodesRenamed = append(c.NodesRenamed, Rename{Old: vocab.NewRepoPath(l.Str(0)), New: vocab.NewRepoPath(l.Str(1))})
		case has(s, "patch"):
			l, _ := s.Get("patch")
			from, _ := s.Get("from")
			to, _ := s.Get("to")
			oldID, err := vocab.ParseFileID(from.HexArgAt(0))
			if err != nil {
				return nil, err
			}
			newID, err := vocab.ParseFileID(to.HexArgAt(0))
			if err != nil {
				return nil, err
			}
			c.DeltasApplied = append(c.DeltasApplied, ContentDelta{Path: vocab.NewRepoPath(l.Str(0)), Old: oldID, New: newID})
		case has(s, "clear"):
			l, _ := s.Get("clear")
			c.AttrsCleared = append(c.AttrsCleared, AttrClear{Path: vocab.NewRepoPath(l.Str(0)), Key: l.Str(1)})
		case has(s, "set"):
			l, _ := s.Get("set")
			c.AttrsSet = append(c.AttrsSet, AttrSet{Path: vocab.NewRepoPath(l.Str(0)), Key: l.Str(1), Value: l.Str(2)})
		}
	}
	return c, nil
}

func has(s basicio.Stanza, symbol string) bool {
	_, ok := s.Get(symbol)
	return ok
}
