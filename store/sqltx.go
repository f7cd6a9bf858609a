package store

import (
	"context"
	"database/sql"
)

// sqlTx wraps a single reserved *sql.Conn so Begin can issue a literal
// `BEGIN` or `BEGIN IMMEDIATE` statement (database/sql's *sql.Tx only
// exposes an isolation-level option, not the SQLite-specific IMMEDIATE
// keyword that makes a transaction exclusive from the start).
type sqlTx struct {
	conn *sql.Conn
}

func (t *sqlTx) Exec(query string, args ...any) (sql.Result, error) {
	return t.conn.ExecContext(context.Background(), query, args...)
}

func (t *sqlTx) Query(query string, args ...any) (*sql.Rows, error) {
	return t.conn.QueryContext(context.Background(), query, args...)
}

func (t *sqlTx) QueryRow(query string, args ...any) *sql.Row {
	return t.conn.QueryRowContext(context.Background(), query, args...)
}

func (t *sqlTx) Commit() error {
	_, err := t.conn.ExecContext(context.Background(), "COMMIT")
	if closeErr := t.conn.Close(); err == nil {
		err = closeErr
	}
	return err
}

func (t *sqlTx) Rollback() error {
	_, err := t.conn.ExecContext(context.Background(), "ROLLBACK")
	if closeErr := t.conn.Close(); err == nil {
		err = closeErr
	}
	return err
}

func (s *Store) beginDeferred() (*sqlTx, error) {
	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return nil, err
	}
	if _, err := conn.ExecContext(context.Background(), "BEGIN"); err != nil {
		conn.Close()
		return nil, err
	}
	return &sqlTx{conn: conn}, nil
}

func (s *Store) beginImmediate() (*sqlTx, error) {
	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return nil, err
	}
	if _, err := conn.ExecContext(context.Background(), "BEGIN IMMEDIATE"); err != nil {
		conn.Close()
		return nil, err
	}
	return &sqlTx{conn: conn}, nil
}
