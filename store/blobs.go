package store

import (
	"database/sql"

	"github.com/dscherger/monotone-sub002/errs"
	"github.com/dscherger/monotone-sub002/rdelta"
	"github.com/dscherger/monotone-sub002/rdelta/bindelta"
	"github.com/dscherger/monotone-sub002/vocab"
)

const defaultFileBufferThreshold = 4 << 20 // 4 MiB

// fileStore adapts the files/file_deltas tables to rdelta.Store[vocab.FileID].
type fileStore struct{ s *Store }

func (f fileStore) IsBase(id vocab.FileID) (bool, error) {
	var n int
	err := f.s.conn().QueryRow(`SELECT COUNT(*) FROM files WHERE id = ?`, id.String()).Scan(&n)
	if err != nil {
		return false, errs.Wrap(errs.Database, "checking file base", err)
	}
	return n > 0, nil
}

func (f fileStore) LoadBase(id vocab.FileID) ([]byte, error) {
	var gz []byte
	err := f.s.conn().QueryRow(`SELECT data FROM files WHERE id = ?`, id.String()).Scan(&gz)
	if err != nil {
		return nil, errs.Wrap(errs.Database, "loading file base", err)
	}
	return gzipDecompress(gz)
}

func (f fileStore) GetNext(id vocab.FileID) (vocab.FileID, []byte, bool, error) {
	var baseStr string
	var gz []byte
	err := f.s.conn().QueryRow(`SELECT base_id, data FROM file_deltas WHERE id = ?`, id.String()).Scan(&baseStr, &gz)
	if err == sql.ErrNoRows {
		return vocab.FileID{}, nil, false, nil
	}
	if err != nil {
		return vocab.FileID{}, nil, false, errs.Wrap(errs.Database, "loading file delta", err)
	}
	base, err := vocab.ParseFileID(baseStr)
	if err != nil {
		return vocab.FileID{}, nil, false, err
	}
	data, err := gzipDecompress(gz)
	if err != nil {
		return vocab.FileID{}, nil, false, err
	}
	// The stored delta is always encoded base->id regardless of which
	// direction putFileDeltaFrom chose to keep full on disk, so GetNext's
	// "base, forward-delta-from-base" contract holds without inversion.
	return base, data, true, nil
}

// LoadOrReconstruct reconstructs the full content for id, walking the
// delta chain as needed and consulting/populating the version cache.
func (f fileStore) LoadOrReconstruct(id vocab.FileID) ([]byte, error) {
	return rdelta.Reconstruct[vocab.FileID](f, f.s.fileVersionCache, bindelta.Apply, id)
}

// GetFile reconstructs the content addressed by id.
func (s *Store) GetFile(id vocab.FileID) ([]byte, error) {
	s.mu.Lock()
	buffered, ok := s.fileBuf.get(id)
	s.mu.Unlock()
	if ok {
		return buffered, nil
	}
	data, err := fileStore{s}.LoadOrReconstruct(id)
	if err != nil {
		return nil, err
	}
	if vocab.HashFileContent(data) != id {
		return nil, errs.New(errs.Database, "store: reconstructed file content does not hash to its id")
	}
	return data, nil
}

// PutFile records new file content, queuing it in the delayed write
// buffer rather than writing it to the files table immediately.
func (s *Store) PutFile(data []byte) (vocab.FileID, error) {
	id := vocab.HashFileContent(data)
	s.mu.Lock()
	s.fileBuf.put(id, data)
	s.mu.Unlock()
	return id, nil
}

// PutFileAgainst records new file content the same way PutFile does, but
// when haveBase is true and baseID names a distinct prior version, queues
// it to be stored as a delta against baseID (per the configured delta
// direction policy) rather than a full blob. Callers that know the
// content's predecessor -- a commit replacing a tracked file's content --
// should use this instead of PutFile so the delta direction policy
// actually has something to act on.
func (s *Store) PutFileAgainst(data []byte, baseID vocab.FileID, haveBase bool) (vocab.FileID, error) {
	id := vocab.HashFileContent(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !haveBase || baseID.IsNull() || baseID == id {
		s.fileBuf.put(id, data)
	} else {
		s.fileBuf.putDelta(id, baseID, data)
	}
	return id, nil
}

// putFileDeltaFrom records that newID's content can be reconstructed as
// baseID plus a forward delta, honoring the configured delta direction
// policy (whether the full blob ends up stored under baseID or newID).
func (s *Store) putFileDeltaFrom(baseID, newID vocab.FileID, baseData, newData []byte) error {
	policy, err := s.DeltaDirectionPolicy()
	if err != nil {
		return err
	}
	switch policy {
	case DeltaForward:
		delta := bindelta.Encode(baseData, newData)
		return s.insertFileDelta(newID, baseID, false, delta)
	case DeltaBoth:
		if err := s.insertFileFull(newID, newData); err != nil {
			return err
		}
		delta := bindelta.Encode(baseData, newData)
		return s.insertFileDelta(newID, baseID, false, delta)
	default: // DeltaReverse
		if err := s.insertFileFull(newID, newData); err != nil {
			return err
		}
		s.deleteFileFull(baseID)
		delta := bindelta.Encode(newData, baseData)
		return s.insertFileDelta(baseID, newID, true, delta)
	}
}

func (s *Store) insertFileFull(id vocab.FileID, data []byte) error {
	gz, err := gzipCompress(data)
	if err != nil {
		return errs.Wrap(errs.System, "compressing file content", err)
	}
	_, err = s.conn().Exec(`INSERT OR REPLACE INTO files(id, data) VALUES (?, ?)`, id.String(), gz)
	if err != nil {
		return errs.Wrap(errs.Database, "writing file blob", err)
	}
	return nil
}

func (s *Store) deleteFileFull(id vocab.FileID) {
	_, _ = s.conn().Exec(`DELETE FROM files WHERE id = ?`, id.String())
}

func (s *Store) insertFileDelta(id, baseID vocab.FileID, reverse bool, delta []byte) error {
	gz, err := gzipCompress(delta)
	if err != nil {
		return errs.Wrap(errs.System, "compressing file delta", err)
	}
	_, err = s.conn().Exec(
		`INSERT OR REPLACE INTO file_deltas(id, base_id, reverse, data) VALUES (?, ?, ?, ?)`,
		id.String(), baseID.String(), reverse, gz)
	if err != nil {
		return errs.Wrap(errs.Database, "writing file delta", err)
	}
	return nil
}

func (s *Store) allFileIDs() ([]vocab.FileID, error) {
	rows, err := s.conn().Query(`SELECT id FROM files UNION SELECT id FROM file_deltas`)
	if err != nil {
		return nil, errs.Wrap(errs.Database, "listing file ids", err)
	}
	defer rows.Close()
	var out []vocab.FileID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, errs.Wrap(errs.Database, "scanning file id", err)
		}
		id, err := vocab.ParseFileID(idStr)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) verifyFileChain(id vocab.FileID) error {
	data, err := fileStore{s}.LoadOrReconstruct(id)
	if err != nil {
		return err
	}
	if vocab.HashFileContent(data) != id {
		return errs.New(errs.Database, "store: file chain for "+id.String()+" does not reconstruct to its own hash")
	}
	return nil
}
