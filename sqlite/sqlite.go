// Package sqlite implements the relational data source used by calyx
// repositories: an sqlx handle over a single sqlite database plus a
// numbered-script migrator.
package sqlite

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/calyxweb/calyx/kit/errors"
)

const (
	// DefaultFilename is the name of the sqlite database file created when
	// only a directory is configured.
	DefaultFilename = "calyx.sqlite"

	// InMemory is the special path for a memory-backed database, used
	// mostly by tests.
	InMemory = ":memory:"
)

// Store is an sqlite-backed data source. The exported DB handle is shared
// by every repository; Mu serializes writers since sqlite allows only one
// at a time.
type Store struct {
	Mu   sync.RWMutex
	DB   *sqlx.DB
	log  *zap.Logger
	path string
}

// NewStore opens (creating if necessary) the sqlite database at path.
func NewStore(path string, log *zap.Logger) (*Store, error) {
	dsn := path
	if path != InMemory {
		// enable foreign keys and wait out short-lived write locks instead
		// of failing immediately
		dsn = fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", path)
	}

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, &errors.Error{Code: errors.EUnavailable, Msg: fmt.Sprintf("unable to open sqlite database %q", path), Err: err}
	}

	if path == InMemory {
		// an in-memory database exists per connection, so the pool must
		// never hand out a second one
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errors.Error{Code: errors.EUnavailable, Msg: fmt.Sprintf("unable to reach sqlite database %q", path), Err: err}
	}

	log.Info("Resources opened", zap.String("path", path))

	return &Store{
		DB:   db,
		log:  log,
		path: path,
	}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Path returns the configured database path.
func (s *Store) Path() string {
	return s.path
}

// Conn returns the shared sqlx handle. It exists so repositories depend on
// the data source interface rather than the concrete store.
func (s *Store) Conn(ctx context.Context) (*sqlx.DB, error) {
	if err := s.DB.PingContext(ctx); err != nil {
		return nil, &errors.Error{Code: errors.EUnavailable, Err: err}
	}
	return s.DB, nil
}

// Flush deletes all records from every user table. It is used primarily
// for testing.
func (s *Store) Flush(ctx context.Context) {
	tables, err := s.tableNames()
	if err != nil {
		s.log.Fatal("unable to flush sqlite", zap.Error(err))
	}

	for _, t := range tables {
		stmt := fmt.Sprintf("DELETE FROM %s", t)
		if err := s.execTrans(ctx, stmt); err != nil {
			s.log.Fatal("unable to flush sqlite", zap.Error(err))
		}
	}
	s.log.Debug("Flushed data from sqlite database")
}

// execTrans executes a script of sql statements in a single transaction.
func (s *Store) execTrans(ctx context.Context, stmts string) error {
	// use a lock to prevent two potential simultaneous write operations to
	// the database, which would throw an error
	s.Mu.Lock()
	defer s.Mu.Unlock()

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, stmts); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

// userVersion returns the current value of the user_version pragma, which
// the migrator uses to track the applied schema version.
func (s *Store) userVersion() (int, error) {
	var v int
	if err := s.DB.Get(&v, "PRAGMA user_version"); err != nil {
		return 0, err
	}
	return v, nil
}

// setUserVersion records v as the applied schema version.
func (s *Store) setUserVersion(ctx context.Context, v int) error {
	// PRAGMA does not support placeholders
	return s.execTrans(ctx, fmt.Sprintf("PRAGMA user_version = %d", v))
}

// tableNames lists the user tables in the database.
func (s *Store) tableNames() ([]string, error) {
	var names []string
	err := s.DB.Select(&names, `SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return nil, err
	}
	return names, nil
}

// queryToStrings scans the single-column result of q into a string slice.
// It is used for testing.
func (s *Store) queryToStrings(q string) ([]string, error) {
	vals := []string{}
	if err := s.DB.Select(&vals, q); err != nil {
		return nil, err
	}
	return vals, nil
}
