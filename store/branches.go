package store

import (
	"database/sql"

	"github.com/dscherger/monotone-sub002/errs"
	"github.com/dscherger/monotone-sub002/vocab"
)

// AddBranchLeaf records rid as a (candidate) leaf of branch. Called
// whenever a revision carrying that branch cert is put; callers are
// responsible for pruning a parent's leaf entry once a child supersedes
// it (PruneBranchLeaf).
func (s *Store) AddBranchLeaf(branch string, rid vocab.RevisionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.conn().Exec(
		`INSERT OR IGNORE INTO branch_leaves(branch, revision_id) VALUES (?, ?)`, branch, rid.String())
	if err != nil {
		return errs.Wrap(errs.Database, "writing branch leaf", err)
	}
	return nil
}

// PruneBranchLeaf removes rid from branch's leaf set, typically because
// a newly-committed child revision now occupies that position instead.
func (s *Store) PruneBranchLeaf(branch string, rid vocab.RevisionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.conn().Exec(
		`DELETE FROM branch_leaves WHERE branch = ? AND revision_id = ?`, branch, rid.String())
	if err != nil {
		return errs.Wrap(errs.Database, "pruning branch leaf", err)
	}
	return nil
}

// BranchLeaves returns every revision currently recorded as a leaf of
// branch.
func (s *Store) BranchLeaves(branch string) ([]vocab.RevisionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.conn().Query(`SELECT revision_id FROM branch_leaves WHERE branch = ?`, branch)
	if err != nil {
		return nil, errs.Wrap(errs.Database, "listing branch leaves", err)
	}
	defer rows.Close()
	var out []vocab.RevisionID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, errs.Wrap(errs.Database, "scanning branch leaf", err)
		}
		rid, err := vocab.ParseRevisionID(idStr)
		if err != nil {
			return nil, err
		}
		out = append(out, rid)
	}
	return out, rows.Err()
}

// GetBranchEpoch returns the opaque epoch token recorded for branch, if
// any has been set yet.
func (s *Store) GetBranchEpoch(branch string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var epoch []byte
	err := s.conn().QueryRow(`SELECT epoch FROM branch_epochs WHERE branch = ?`, branch).Scan(&epoch)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Wrap(errs.Database, "reading branch epoch", err)
	}
	return epoch, true, nil
}

// SetBranchEpoch overwrites branch's epoch token under a freshly
// generated epoch id (the id is content-addressed purely so
// branch_epochs rows can be referenced individually; branch is the only
// column that actually needs to be unique).
func (s *Store) SetBranchEpoch(branch string, epoch []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	epochID := vocab.HashCert(append([]byte(branch+"\x00"), epoch...))
	_, err := s.conn().Exec(
		`INSERT INTO branch_epochs(epoch_id, branch, epoch) VALUES (?, ?, ?)
		 ON CONFLICT(branch) DO UPDATE SET epoch_id = excluded.epoch_id, epoch = excluded.epoch`,
		epochID.String(), branch, epoch)
	if err != nil {
		return errs.Wrap(errs.Database, "writing branch epoch", err)
	}
	return nil
}
