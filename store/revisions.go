package store

import (
	"bytes"

	"github.com/dscherger/monotone-sub002/errs"
	"github.com/dscherger/monotone-sub002/revision"
	"github.com/dscherger/monotone-sub002/vocab"
)

// loadGraph rebuilds the in-memory revision.Graph from the revisions
// table, replaying inserts in their original seq order so heights come
// out identical to how they were first assigned (height assignment
// depends on per-parent child-index counters, which are order-sensitive).
func (s *Store) loadGraph() error {
	rows, err := s.conn().Query(`SELECT id, data FROM revisions ORDER BY seq ASC`)
	if err != nil {
		return errs.Wrap(errs.Database, "listing revisions", err)
	}
	defer rows.Close()

	type row struct {
		id  string
		gz  []byte
	}
	var all []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.gz); err != nil {
			return errs.Wrap(errs.Database, "scanning revision row", err)
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	g := revision.NewGraph()
	for _, r := range all {
		id, err := vocab.ParseRevisionID(r.id)
		if err != nil {
			return err
		}
		data, err := gzipDecompress(r.gz)
		if err != nil {
			return err
		}
		rev, err := revision.ParseFrom(bytes.NewReader(data))
		if err != nil {
			return errs.Wrap(errs.Database, "parsing stored revision "+r.id, err)
		}
		if err := g.Add(id, rev); err != nil {
			return err
		}
	}
	s.graph = g
	return nil
}

// PutRevision serializes rev, computes its content-addressed id, and
// records it in the revisions/revision_ancestry/heights tables plus the
// in-memory graph. Every non-null parent must already have been put
// (PutRevision does not check the database for them; it relies on the
// in-memory graph, so a parent added this session or loaded from a prior
// Open must already be present).
func (s *Store) PutRevision(rev *revision.Revision) (vocab.RevisionID, error) {
	var buf bytes.Buffer
	if err := rev.PrintTo(&buf); err != nil {
		return vocab.RevisionID{}, errs.Wrap(errs.System, "serializing revision", err)
	}
	data := buf.Bytes()
	id := vocab.HashRevision(data)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.graph.Get(id); ok {
		return id, nil
	}

	gz, err := gzipCompress(data)
	if err != nil {
		return vocab.RevisionID{}, errs.Wrap(errs.System, "compressing revision", err)
	}
	if _, err := s.conn().Exec(`INSERT INTO revisions(id, data) VALUES (?, ?)`, id.String(), gz); err != nil {
		return vocab.RevisionID{}, errs.Wrap(errs.Database, "writing revision", err)
	}
	for _, p := range rev.ParentIDs() {
		if p == vocab.NullRevisionID {
			continue
		}
		if _, err := s.conn().Exec(
			`INSERT OR IGNORE INTO revision_ancestry(parent_id, child_id) VALUES (?, ?)`,
			p.String(), id.String()); err != nil {
			return vocab.RevisionID{}, errs.Wrap(errs.Database, "writing revision ancestry", err)
		}
	}

	if err := s.graph.Add(id, rev); err != nil {
		return vocab.RevisionID{}, err
	}
	h, _ := s.graph.Height(id)
	if _, err := s.conn().Exec(
		`INSERT OR REPLACE INTO heights(revision_id, height) VALUES (?, ?)`,
		id.String(), h.String()); err != nil {
		return vocab.RevisionID{}, errs.Wrap(errs.Database, "writing revision height", err)
	}
	return id, nil
}

// GetRevision returns the revision recorded for id.
func (s *Store) GetRevision(id vocab.RevisionID) (*revision.Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rev, ok := s.graph.Get(id)
	if !ok {
		return nil, errs.New(errs.Database, "store: no such revision "+id.String())
	}
	return rev, nil
}

// Graph returns the store's in-memory revision graph, for callers that
// need ancestry queries (IsAncestor, Toposort, merge-base selection)
// beyond single-revision lookup.
func (s *Store) Graph() *revision.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph
}

// SingleNonMergeParent returns id's one parent when id is not a merge
// revision, for use as PutRoster's delta base hint: a non-merge revision
// typically shares most of its tree with its single parent, making that
// parent the natural delta base.
func (s *Store) SingleNonMergeParent(id vocab.RevisionID) (vocab.RevisionID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rev, ok := s.graph.Get(id)
	if !ok || rev.IsMerge() {
		return vocab.RevisionID{}, false
	}
	for _, p := range rev.ParentIDs() {
		if p != vocab.NullRevisionID {
			return p, true
		}
	}
	return vocab.RevisionID{}, false
}

// DeleteExistingRevAndCerts removes a revision, its ancestry edges,
// height record, stored roster, and every cert naming it, provided it
// has no children. Mirrors the original engine's "kill_rev_locally"
// command family, exposed here as a library call for undoing a botched
// commit before anything else depends on it.
func (s *Store) DeleteExistingRevAndCerts(id vocab.RevisionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if children := s.graph.Children(id); len(children) > 0 {
		return errs.New(errs.Internal, "store: cannot delete revision "+id.String()+" with children")
	}
	if _, ok := s.graph.Get(id); !ok {
		return errs.New(errs.Database, "store: no such revision "+id.String())
	}

	stmts := []struct {
		q    string
		args []any
	}{
		{`DELETE FROM revision_certs WHERE revision_id = ?`, []any{id.String()}},
		{`DELETE FROM heights WHERE revision_id = ?`, []any{id.String()}},
		{`DELETE FROM revision_ancestry WHERE parent_id = ? OR child_id = ?`, []any{id.String(), id.String()}},
		{`DELETE FROM roster_deltas WHERE revision_id = ?`, []any{id.String()}},
		{`DELETE FROM rosters WHERE revision_id = ?`, []any{id.String()}},
		{`DELETE FROM branch_leaves WHERE revision_id = ?`, []any{id.String()}},
		{`DELETE FROM revisions WHERE id = ?`, []any{id.String()}},
	}
	for _, st := range stmts {
		if _, err := s.conn().Exec(st.q, st.args...); err != nil {
			return errs.Wrap(errs.Database, "deleting revision state", err)
		}
	}

	s.graph.Remove(id)
	return nil
}
