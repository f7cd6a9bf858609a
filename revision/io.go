package revision

import (
	"fmt"
	"io"
	"sort"

	"github.com/dscherger/monotone-sub002/basicio"
	"github.com/dscherger/monotone-sub002/cset"
	"github.com/dscherger/monotone-sub002/vocab"
)

// PrintTo serializes the revision in basic_io form: the new manifest id
// followed by one old_revision stanza per parent (in ascending parent-id
// order, so the byte sequence and hence the hashed revision id are
// deterministic) with that parent's cset's own stanzas following directly
// until the next old_revision stanza or the end of the document.
func (r *Revision) PrintTo(w io.Writer) error {
	bw := basicio.NewWriter(w)
	bw.Preamble("1")
	bw.Stanza(basicio.Stanza{basicio.NewHexLine("new_manifest", r.NewManifestID.String())})

	parents := r.ParentIDs()
	sort.Slice(parents, func(i, j int) bool { return parents[i].String() < parents[j].String() })
	for _, p := range parents {
		bw.Stanza(basicio.Stanza{basicio.NewHexLine("old_revision", p.String())})
		if c := r.Parents[p]; c != nil {
			c.WriteStanzas(bw)
		}
	}
	return bw.Flush()
}

// ParseFrom reconstructs a Revision from its basic_io serialization.
func ParseFrom(r io.Reader) (*Revision, error) {
	stanzas, err := basicio.Parse(r)
	if err != nil {
		return nil, err
	}
	rev := &Revision{Parents: make(map[vocab.RevisionID]*cset.Cset)}

	var curParent vocab.RevisionID
	var curStanzas []basicio.Stanza
	haveParent := false
	flush := func() error {
		if !haveParent {
			return nil
		}
		c, err := cset.ParseStanzas(curStanzas)
		if err != nil {
			return err
		}
		rev.Parents[curParent] = c
		curStanzas = nil
		return nil
	}

	for _, s := range stanzas {
		if _, ok := s.Get("format_version"); ok {
			continue
		}
		if l, ok := s.Get("new_manifest"); ok {
			mid, err := vocab.ParseManifestID(l.HexArgAt(0))
			if err != nil {
				return nil, err
			}
			rev.NewManifestID = mid
			continue
		}
		if l, ok := s.Get("old_revision"); ok {
			if err := flush(); err != nil {
				return nil, err
			}
			rid, err := vocab.ParseRevisionID(l.HexArgAt(0))
			if err != nil {
				return nil, err
			}
			curParent = rid
			haveParent = true
			continue
		}
		if !haveParent {
			return nil, fmt.Errorf("revision: stanza before any old_revision marker")
		}
		curStanzas = append(curStanzas, s)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(rev.Parents) == 0 {
		rev.Parents[vocab.NullRevisionID] = &cset.Cset{}
	}
	return rev, nil
}
