// Copyright 2025 Takhin Data, Inc.

// Package aclstore is the durable, transactional ACL Store (spec §4.B):
// a SQLite-backed table with indexed lookups by subject, decision, and
// user, fronted by a connection pool so concurrent handlers can read
// and write without serializing at the application layer.
package aclstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/joestubbs/tagent/internal/apperr"
	"github.com/joestubbs/tagent/internal/authz"
)

const schema = `
CREATE TABLE IF NOT EXISTS acls (
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  subject     TEXT NOT NULL,
  action      TEXT NOT NULL,
  path        TEXT NOT NULL,
  user        TEXT NOT NULL,
  create_by   TEXT NOT NULL,
  create_time TEXT NOT NULL,
  decision    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_acls_subject ON acls(subject);
CREATE INDEX IF NOT EXISTS idx_acls_subject_decision ON acls(subject, decision);
CREATE INDEX IF NOT EXISTS idx_acls_subject_user ON acls(subject, user);

CREATE TABLE IF NOT EXISTS job_info (
  id         INTEGER PRIMARY KEY AUTOINCREMENT,
  job_id     TEXT NOT NULL,
  status     TEXT NOT NULL,
  created_at TEXT NOT NULL
);
`

// Record is a persisted ACL entry, as described in spec §3.
type Record struct {
	ID         int64
	Subject    string
	User       string
	Path       string
	Action     authz.Action
	Decision   authz.Decision
	CreateBy   string
	CreateTime string
}

// Fields carries the caller-supplied portion of an ACL record, before
// server-assigned fields (id, create_time) are filled in.
type Fields struct {
	Subject  string
	User     string
	Path     string
	Action   authz.Action
	Decision authz.Decision
}

// Store is a pooled SQLite-backed ACL Store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at dataSourceName
// and ensures the schema exists. dataSourceName is typically a filesystem
// path, taken from the DATABASE_URL environment variable (spec §6).
func Open(dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite3", dataSourceName+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageError, "open ACL database", err)
	}

	// A pool is required because the Decision Engine issues two queries
	// per check (deny pass, allow pass) and would otherwise serialize
	// under a single handle (spec §9).
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.KindStorageError, "initialize ACL schema", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// normalizePath ensures a path begins with '/', per the invariant in
// spec §3.
func normalizePath(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + path
}

// Insert creates a new ACL record, assigning id and create_time
// server-side. create_by is the inserting caller's subject.
func (s *Store) Insert(ctx context.Context, f Fields, createBy string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	path := normalizePath(f.Path)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO acls (subject, action, path, user, create_by, create_time, decision)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.Subject, f.Action.String(), path, f.User, createBy, now, f.Decision.String(),
	)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindStorageError, "insert ACL", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.Wrap(apperr.KindStorageError, "read inserted ACL id", err)
	}
	return id, nil
}

// GetByID returns the ACL record with the given id, or a NotFound
// error if none exists.
func (s *Store) GetByID(ctx context.Context, id int64) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, subject, action, path, user, create_by, create_time, decision
		 FROM acls WHERE id = ?`, id)
	rec, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return Record{}, apperr.New(apperr.KindNotFound, fmt.Sprintf("no ACL with id %d", id))
	}
	if err != nil {
		return Record{}, apperr.Wrap(apperr.KindStorageError, "get ACL by id", err)
	}
	return rec, nil
}

// DeleteByID removes the ACL record with the given id, returning the
// number of rows removed (0 or 1).
func (s *Store) DeleteByID(ctx context.Context, id int64) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM acls WHERE id = ?`, id)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindStorageError, "delete ACL", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Wrap(apperr.KindStorageError, "count deleted ACL rows", err)
	}
	return int(n), nil
}

// UpdateByID replaces every mutable field of the ACL record with the
// given id. create_by is rewritten to the current caller's subject;
// create_time is left untouched. Returns the number of rows updated.
func (s *Store) UpdateByID(ctx context.Context, id int64, f Fields, createBy string) (int, error) {
	path := normalizePath(f.Path)

	res, err := s.db.ExecContext(ctx,
		`UPDATE acls SET subject = ?, action = ?, path = ?, user = ?, create_by = ?, decision = ?
		 WHERE id = ?`,
		f.Subject, f.Action.String(), path, f.User, createBy, f.Decision.String(), id,
	)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindStorageError, "update ACL", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Wrap(apperr.KindStorageError, "count updated ACL rows", err)
	}
	return int(n), nil
}

// ListAll returns every ACL record in the store.
func (s *Store) ListAll(ctx context.Context) ([]Record, error) {
	return s.query(ctx, `SELECT id, subject, action, path, user, create_by, create_time, decision FROM acls`)
}

// ListBySubject returns every ACL record with the given subject.
func (s *Store) ListBySubject(ctx context.Context, subject string) ([]Record, error) {
	return s.query(ctx,
		`SELECT id, subject, action, path, user, create_by, create_time, decision FROM acls WHERE subject = ?`,
		subject)
}

// ListBySubjectAndUser returns every ACL record matching both subject
// and user exactly (this is a store-level exact filter, distinct from
// the Decision Engine's glob matching of the user field).
func (s *Store) ListBySubjectAndUser(ctx context.Context, subject, user string) ([]Record, error) {
	return s.query(ctx,
		`SELECT id, subject, action, path, user, create_by, create_time, decision
		 FROM acls WHERE subject = ? AND user = ?`,
		subject, user)
}

// ListBySubjectAndDecision implements authz.EntryLister: it returns the
// minimal authz.Entry projection the Decision Engine needs, scoped to
// one subject and one decision class (Allow or Deny).
func (s *Store) ListBySubjectAndDecision(ctx context.Context, subject string, decision authz.Decision) ([]authz.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, subject, action, path, user, decision FROM acls WHERE subject = ? AND decision = ?`,
		subject, decision.String())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageError, "list ACLs by subject and decision", err)
	}
	defer rows.Close()

	var out []authz.Entry
	for rows.Next() {
		var (
			e          authz.Entry
			actionStr  string
			decisionStr string
		)
		if err := rows.Scan(&e.ID, &e.Subject, &actionStr, &e.Path, &e.User, &decisionStr); err != nil {
			return nil, apperr.Wrap(apperr.KindStorageError, "scan ACL row", err)
		}
		action, ok := authz.ParseAction(actionStr)
		if !ok {
			return nil, apperr.New(apperr.KindStorageError, fmt.Sprintf("corrupt action value %q in stored ACL %d", actionStr, e.ID))
		}
		d, ok := authz.ParseDecision(decisionStr)
		if !ok {
			return nil, apperr.New(apperr.KindStorageError, fmt.Sprintf("corrupt decision value %q in stored ACL %d", decisionStr, e.ID))
		}
		e.Action = action
		e.Decision = d
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindStorageError, "iterate ACL rows", err)
	}
	return out, nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageError, "query ACLs", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStorageError, "scan ACL row", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindStorageError, "iterate ACL rows", err)
	}
	return out, nil
}

// scanRecord adapts either sql.Row.Scan or sql.Rows.Scan (both satisfy
// this signature) into a Record.
func scanRecord(scan func(dest ...any) error) (Record, error) {
	var (
		rec        Record
		actionStr  string
		decisionStr string
	)
	if err := scan(&rec.ID, &rec.Subject, &actionStr, &rec.Path, &rec.User, &rec.CreateBy, &rec.CreateTime, &decisionStr); err != nil {
		return Record{}, err
	}
	action, ok := authz.ParseAction(actionStr)
	if !ok {
		return Record{}, fmt.Errorf("corrupt action value %q in stored ACL %d", actionStr, rec.ID)
	}
	decision, ok := authz.ParseDecision(decisionStr)
	if !ok {
		return Record{}, fmt.Errorf("corrupt decision value %q in stored ACL %d", decisionStr, rec.ID)
	}
	rec.Action = action
	rec.Decision = decision
	return rec, nil
}
