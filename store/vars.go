package store

import (
	"database/sql"

	"github.com/dscherger/monotone-sub002/errs"
)

// DeltaDirection is the policy recorded in db_vars that governs which
// side of a (base, new) pair is stored as a full blob and which as a
// delta when a new version is written.
type DeltaDirection string

const (
	// DeltaReverse (the default): store the new version as a full blob
	// and replace the previous full blob with a delta from new to old.
	DeltaReverse DeltaDirection = "reverse"
	// DeltaForward: keep the existing full blob and store only a delta
	// from it to the new version.
	DeltaForward DeltaDirection = "forward"
	// DeltaBoth: store full blobs on both ends plus a delta between them.
	DeltaBoth DeltaDirection = "both"
)

// GetVar reads a (domain, name) key from db_vars.
func (s *Store) GetVar(domain, name string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getVarLocked(domain, name)
}

func (s *Store) getVarLocked(domain, name string) (string, bool, error) {
	var value string
	err := s.conn().QueryRow(`SELECT value FROM db_vars WHERE domain = ? AND name = ?`, domain, name).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.Wrap(errs.Database, "reading db_vars", err)
	}
	return value, true, nil
}

// SetVar writes (or overwrites) a (domain, name) key in db_vars.
func (s *Store) SetVar(domain, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setVarLocked(domain, name, value)
}

func (s *Store) setVarLocked(domain, name, value string) error {
	_, err := s.conn().Exec(
		`INSERT INTO db_vars(domain, name, value) VALUES (?, ?, ?)
		 ON CONFLICT(domain, name) DO UPDATE SET value = excluded.value`,
		domain, name, value)
	if err != nil {
		return errs.Wrap(errs.Database, "writing db_vars", err)
	}
	return nil
}

// ClearVar removes a (domain, name) key from db_vars.
func (s *Store) ClearVar(domain, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.conn().Exec(`DELETE FROM db_vars WHERE domain = ? AND name = ?`, domain, name)
	if err != nil {
		return errs.Wrap(errs.Database, "clearing db_vars", err)
	}
	return nil
}

// DeltaDirectionPolicy returns the configured delta direction policy,
// defaulting to DeltaReverse if never set. It reads through getVarLocked
// without taking s.mu, so the file buffer's flush, which runs with s.mu
// held, can call it.
func (s *Store) DeltaDirectionPolicy() (DeltaDirection, error) {
	v, ok, err := s.getVarLocked("core", "delta_direction")
	if err != nil {
		return "", err
	}
	if !ok {
		return DeltaReverse, nil
	}
	return DeltaDirection(v), nil
}

// SetDeltaDirectionPolicy updates the configured delta direction policy.
func (s *Store) SetDeltaDirectionPolicy(d DeltaDirection) error {
	return s.SetVar("core", "delta_direction", string(d))
}
