package store

import (
	"database/sql"

	"github.com/dscherger/monotone-sub002/errs"
	"github.com/dscherger/monotone-sub002/vocab"
)

// NextNodeID draws the next persistent node id from the single-row
// counter table: reads, increments, writes back, inside the current
// transaction (or a dedicated one if none is open), so concurrent
// allocators within the process never hand out the same id.
func (s *Store) NextNodeID() (vocab.NodeID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ownTx := s.tx == nil
	if ownTx {
		if err := s.beginLocked(Exclusive); err != nil {
			return 0, err
		}
	}

	var current int64
	err := s.conn().QueryRow(`SELECT id FROM next_node_id`).Scan(&current)
	switch {
	case err == sql.ErrNoRows:
		current = 0
		if _, err := s.conn().Exec(`INSERT INTO next_node_id(id) VALUES (0)`); err != nil {
			if ownTx {
				s.rollbackLocked()
			}
			return 0, errs.Wrap(errs.Database, "initializing node id counter", err)
		}
	case err != nil:
		if ownTx {
			s.rollbackLocked()
		}
		return 0, errs.Wrap(errs.Database, "reading node id counter", err)
	}

	next := current + 1
	if _, err := s.conn().Exec(`UPDATE next_node_id SET id = ?`, next); err != nil {
		if ownTx {
			s.rollbackLocked()
		}
		return 0, errs.Wrap(errs.Database, "advancing node id counter", err)
	}

	if ownTx {
		if err := s.commitLocked(); err != nil {
			return 0, err
		}
	}
	return vocab.NodeID(next), nil
}

// beginLocked/commitLocked/rollbackLocked let internal helpers (already
// holding s.mu) open a private transaction without recursing through the
// public Begin/Commit/Rollback, which take the lock themselves.
func (s *Store) beginLocked(mode Mode) error {
	tx, err := s.beginFor(mode)
	if err != nil {
		return errs.Wrap(errs.Database, "beginning transaction", err)
	}
	s.tx = tx
	s.txExclusive = mode == Exclusive
	s.txDepth = 1
	return nil
}

func (s *Store) beginFor(mode Mode) (*sqlTx, error) {
	if mode == Exclusive {
		return s.beginImmediate()
	}
	return s.beginDeferred()
}

func (s *Store) commitLocked() error {
	if err := s.fileBuf.flushLocked(); err != nil {
		return err
	}
	if err := s.rosterCache.flushLocked(); err != nil {
		return err
	}
	tx := s.tx
	s.tx = nil
	s.txExclusive = false
	s.txDepth = 0
	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.Database, "committing transaction", err)
	}
	return nil
}

func (s *Store) rollbackLocked() error {
	s.fileBuf.discardLocked()
	s.rosterCache.discardLocked()
	tx := s.tx
	s.tx = nil
	s.txExclusive = false
	s.txDepth = 0
	if tx == nil {
		return nil
	}
	return tx.Rollback()
}
