package store

import (
	"database/sql"

	"github.com/dscherger/monotone-sub002/errs"
	"github.com/dscherger/monotone-sub002/vocab"
)

// CertRow is one row of the revision_certs table: a signed name/value
// assertion about a revision. The certs package builds the hash and
// verifies the signature; store only persists and queries rows.
type CertRow struct {
	Hash       vocab.CertHash
	RevisionID vocab.RevisionID
	Name       string
	Value      []byte
	KeyID      vocab.KeyID
	Signature  []byte
}

// PutCert records a cert, silently accepting a duplicate (same hash) as
// a no-op the way a content-addressed row naturally would.
func (s *Store) PutCert(c CertRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.conn().Exec(
		`INSERT OR IGNORE INTO revision_certs(hash, revision_id, name, value, key_id, signature) VALUES (?, ?, ?, ?, ?, ?)`,
		c.Hash.String(), c.RevisionID.String(), c.Name, c.Value, c.KeyID.String(), c.Signature)
	if err != nil {
		return errs.Wrap(errs.Database, "writing cert", err)
	}
	return nil
}

// CertsForRevision returns every cert recorded against rid.
func (s *Store) CertsForRevision(rid vocab.RevisionID) ([]CertRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.certsWhereLocked(`revision_id = ?`, rid.String())
}

// CertsByName returns every cert recorded under name, across all
// revisions (e.g. every "branch" cert, to enumerate branches).
func (s *Store) CertsByName(name string) ([]CertRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.certsWhereLocked(`name = ?`, name)
}

func (s *Store) certsWhereLocked(where string, arg any) ([]CertRow, error) {
	rows, err := s.conn().Query(
		`SELECT hash, revision_id, name, value, key_id, signature FROM revision_certs WHERE `+where, arg)
	if err != nil {
		return nil, errs.Wrap(errs.Database, "querying certs", err)
	}
	defer rows.Close()

	var out []CertRow
	for rows.Next() {
		var hashStr, revStr, name, keyStr string
		var value, sig []byte
		if err := rows.Scan(&hashStr, &revStr, &name, &value, &keyStr, &sig); err != nil {
			return nil, errs.Wrap(errs.Database, "scanning cert row", err)
		}
		hash, err := vocab.ParseCertHash(hashStr)
		if err != nil {
			return nil, err
		}
		rid, err := vocab.ParseRevisionID(revStr)
		if err != nil {
			return nil, err
		}
		keyID, err := vocab.ParseKeyID(keyStr)
		if err != nil {
			return nil, err
		}
		out = append(out, CertRow{Hash: hash, RevisionID: rid, Name: name, Value: value, KeyID: keyID, Signature: sig})
	}
	return out, rows.Err()
}

// PutPublicKey records a named public key under its content-addressed id.
func (s *Store) PutPublicKey(keyID vocab.KeyID, name string, publicKey []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.conn().Exec(
		`INSERT OR IGNORE INTO public_keys(key_id, name, public_key) VALUES (?, ?, ?)`,
		keyID.String(), name, publicKey)
	if err != nil {
		return errs.Wrap(errs.Database, "writing public key", err)
	}
	return nil
}

// GetPublicKey returns the raw key bytes recorded under keyID.
func (s *Store) GetPublicKey(keyID vocab.KeyID) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var name string
	var key []byte
	err := s.conn().QueryRow(`SELECT name, public_key FROM public_keys WHERE key_id = ?`, keyID.String()).Scan(&name, &key)
	if err == sql.ErrNoRows {
		return nil, "", errs.New(errs.Database, "store: no such public key "+keyID.String())
	}
	if err != nil {
		return nil, "", errs.Wrap(errs.Database, "reading public key", err)
	}
	return key, name, nil
}
