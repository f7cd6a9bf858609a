// Package store implements the SQL-backed persistence layer: the schema,
// content- and delta-addressed blob/roster tables, a roster writeback
// cache, a delayed file buffer, nested transactions, and the node id
// allocator.
//
// Grounded on agentic-research-mache's internal/graph/sqlite_graph.go
// (database/sql opened directly against modernc.org/sqlite, explicit
// sql.Open, typed row-scan helpers rather than an ORM) and
// steveyegge-beads' schema-as-Go-string-constant idiom (schema.go).
package store

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"sync"

	"github.com/dscherger/monotone-sub002/errs"
	"github.com/dscherger/monotone-sub002/logging"
	"github.com/dscherger/monotone-sub002/revision"
	"github.com/dscherger/monotone-sub002/vocab"

	_ "modernc.org/sqlite"
)

// Store is a handle onto one monotone-style database file.
type Store struct {
	db   *sql.DB
	path string

	mu          sync.Mutex
	tx          *sqlTx
	txDepth     int
	txExclusive bool

	rosterCache        *rosterCache
	fileBuf            *fileBuffer
	fileVersionCache   *versionCache[vocab.FileID]
	rosterVersionCache *versionCache[vocab.RevisionID]

	graph *revision.Graph
}

const defaultVersionCacheEntries = 256

// Open opens (creating if absent) the database at path, installs the
// schema if it is missing, and checks the creator code and schema
// version recorded in db_vars against this build.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.Wrap(errs.Database, "opening database", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	s.rosterCache = newRosterCache(s, defaultRosterCacheBudget)
	s.fileBuf = newFileBuffer(s, defaultFileBufferThreshold)
	s.fileVersionCache = newVersionCache[vocab.FileID](defaultVersionCacheEntries)
	s.rosterVersionCache = newVersionCache[vocab.RevisionID](defaultVersionCacheEntries)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.Database, "installing schema", err)
	}
	if err := s.checkOrSetCreator(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.loadGraph(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) checkOrSetCreator() error {
	creator, ok, err := s.getVarLocked("core", "creator")
	if err != nil {
		return err
	}
	if !ok {
		if err := s.setVarLocked("core", "creator", creatorCode); err != nil {
			return err
		}
		if err := s.setVarLocked("core", "schema_version", schemaVersion); err != nil {
			return err
		}
		if err := s.setVarLocked("core", "delta_direction", string(DeltaReverse)); err != nil {
			return err
		}
		return nil
	}
	if creator != creatorCode {
		return errs.New(errs.Database, fmt.Sprintf("database at %s was created by %q, not %q", s.path, creator, creatorCode))
	}
	version, ok, err := s.getVarLocked("core", "schema_version")
	if err != nil {
		return err
	}
	if ok && version != schemaVersion {
		return errs.New(errs.Database, fmt.Sprintf("database at %s has schema version %q, this build expects %q", s.path, version, schemaVersion))
	}
	return nil
}

// Close flushes any pending writeback state and closes the underlying
// connection. Close does not commit an open transaction; callers must
// Commit or Rollback first.
func (s *Store) Close() error {
	s.mu.Lock()
	var err error
	if s.tx == nil {
		err = s.fileBuf.flushLocked()
		if err == nil {
			err = s.rosterCache.flushLocked()
		}
	}
	s.mu.Unlock()
	if closeErr := s.db.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Path returns the filesystem path this Store was opened against.
func (s *Store) Path() string { return s.path }

// querier is satisfied by both *sql.DB and *sql.Tx, letting every
// table-backed helper run either inside or outside an open transaction
// without duplicating its SQL.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// conn returns the active transaction if one is open, otherwise the raw
// database handle.
func (s *Store) conn() querier {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Info reports the on-disk schema version and creator code, mirroring
// the original engine's info/check command family (database.cc) as a
// library call rather than a CLI command.
type Info struct {
	Path          string
	Creator       string
	SchemaVersion string
}

func (s *Store) Info() (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	creator, _, err := s.getVarLocked("core", "creator")
	if err != nil {
		return Info{}, err
	}
	version, _, err := s.getVarLocked("core", "schema_version")
	if err != nil {
		return Info{}, err
	}
	return Info{Path: s.path, Creator: creator, SchemaVersion: version}, nil
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

var logger = logging.For("store")
