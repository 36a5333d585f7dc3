package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"

	"github.com/nitesh/civictrack/internal/db"
	"github.com/nitesh/civictrack/internal/geo"
	"github.com/nitesh/civictrack/pkg/models"
)

// ErrNotFound is returned when no issue has the requested id.
var ErrNotFound = eris.New("store: issue not found")

// Limits applied to listings.
const (
	DefaultLimit   = 50
	MaxLimit       = 200
	MaxCandidates  = 1000
	issueColumns   = "id,title,description,category,status,latitude,longitude,address,reporter,votes,created_at,updated_at"
	selectIssueSQL = "SELECT " + issueColumns + " FROM issues"
	commentColumns = "id,issue_id,author,body,created_at"
)

// SQLStore persists issues in Postgres or SQLite through sqlx.
type SQLStore struct {
	db *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS issues(
  id UUID PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  category TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'open',
  latitude DOUBLE PRECISION,
  longitude DOUBLE PRECISION,
  address TEXT NOT NULL DEFAULT '',
  reporter TEXT NOT NULL DEFAULT '',
  votes INTEGER NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_issues_created ON issues(created_at);
CREATE INDEX IF NOT EXISTS idx_issues_status ON issues(status);
CREATE INDEX IF NOT EXISTS idx_issues_category ON issues(category);
-- btree on (latitude, longitude) serves the bounding-box prefilter
CREATE INDEX IF NOT EXISTS idx_issues_lat_lng ON issues(latitude, longitude);

CREATE TABLE IF NOT EXISTS issue_comments(
  id UUID PRIMARY KEY,
  issue_id UUID NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
  author TEXT NOT NULL DEFAULT '',
  body TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_issue_comments_issue ON issue_comments(issue_id, created_at);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS issues(
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  category TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'open',
  latitude REAL,
  longitude REAL,
  address TEXT NOT NULL DEFAULT '',
  reporter TEXT NOT NULL DEFAULT '',
  votes INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME NOT NULL,
  updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_issues_created ON issues(created_at);
CREATE INDEX IF NOT EXISTS idx_issues_status ON issues(status);
CREATE INDEX IF NOT EXISTS idx_issues_category ON issues(category);
CREATE INDEX IF NOT EXISTS idx_issues_lat_lng ON issues(latitude, longitude);

CREATE TABLE IF NOT EXISTS issue_comments(
  id TEXT PRIMARY KEY,
  issue_id TEXT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
  author TEXT NOT NULL DEFAULT '',
  body TEXT NOT NULL,
  created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_issue_comments_issue ON issue_comments(issue_id, created_at);
`

// RunMigrations creates the issues and issue_comments tables for the connection's driver.
func RunMigrations(ctx context.Context, conn *sqlx.DB) error {
	schema := postgresSchema
	if conn.DriverName() == db.DriverSQLite {
		schema = sqliteSchema
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return eris.Wrap(err, "store: migrate")
	}
	return nil
}

// Create inserts an issue, filling id, status and timestamps when unset.
func (s *SQLStore) Create(ctx context.Context, is *models.Issue) error {
	if is.ID == "" {
		is.ID = uuid.New().String()
	}
	if is.Status == "" {
		is.Status = models.StatusOpen
	}
	if is.CreatedAt.IsZero() {
		is.CreatedAt = time.Now().UTC()
	}
	if is.UpdatedAt.IsZero() {
		is.UpdatedAt = is.CreatedAt
	}

	stmt := s.db.Rebind(`
INSERT INTO issues (` + issueColumns + `)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`)
	_, err := s.db.ExecContext(ctx, stmt,
		is.ID,
		is.Title,
		is.Description,
		string(is.Category),
		string(is.Status),
		is.Latitude,
		is.Longitude,
		is.Address,
		is.Reporter,
		is.Votes,
		is.CreatedAt,
		is.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "store: insert issue id=%s", is.ID)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*models.Issue, error) {
	var is models.Issue
	err := s.db.GetContext(ctx, &is, s.db.Rebind(selectIssueSQL+" WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get issue id=%s", id)
	}
	return &is, nil
}

// List returns issues newest first.
func (s *SQLStore) List(ctx context.Context, f models.IssueFilter) ([]*models.Issue, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(f.Category))
	}
	query := selectIssueSQL
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id LIMIT ?"
	args = append(args, clampLimit(f.Limit, DefaultLimit, MaxLimit))

	rows := []*models.Issue{}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, eris.Wrap(err, "store: list issues")
	}
	return rows, nil
}

// WithinBox returns located issues inside box, newest first, skipping offset rows.
// It is a coarse prefilter; callers apply the exact radius check.
func (s *SQLStore) WithinBox(ctx context.Context, box geo.Box, limit, offset int) ([]*models.Issue, error) {
	query := selectIssueSQL + `
WHERE latitude IS NOT NULL AND longitude IS NOT NULL
  AND latitude BETWEEN ? AND ?`
	args := []any{box.MinLat, box.MaxLat}
	if box.LonBounded {
		query += " AND longitude BETWEEN ? AND ?"
		args = append(args, box.MinLon, box.MaxLon)
	}
	if offset < 0 {
		offset = 0
	}
	query += " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, clampLimit(limit, MaxCandidates, MaxCandidates), offset)

	rows := []*models.Issue{}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, eris.Wrap(err, "store: issues within box")
	}
	return rows, nil
}

func (s *SQLStore) UpdateStatus(ctx context.Context, id string, status models.Status) (*models.Issue, error) {
	return s.update(ctx, id, "status = ?", string(status))
}

// Vote increments an issue's vote count.
func (s *SQLStore) Vote(ctx context.Context, id string) (*models.Issue, error) {
	return s.update(ctx, id, "votes = votes + 1")
}

func (s *SQLStore) update(ctx context.Context, id, set string, args ...any) (*models.Issue, error) {
	args = append(args, time.Now().UTC(), id)
	res, err := s.db.ExecContext(ctx, s.db.Rebind("UPDATE issues SET "+set+", updated_at = ? WHERE id = ?"), args...)
	if err != nil {
		return nil, eris.Wrapf(err, "store: update issue id=%s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, eris.Wrap(err, "store: rows affected")
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

// AddComment stores c against an existing issue, filling id and timestamp when unset.
func (s *SQLStore) AddComment(ctx context.Context, c *models.Comment) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: begin comment")
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	err = tx.GetContext(ctx, &exists, tx.Rebind("SELECT 1 FROM issues WHERE id = ?"), c.IssueID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return eris.Wrapf(err, "store: check issue id=%s", c.IssueID)
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(`
INSERT INTO issue_comments (`+commentColumns+`)
VALUES (?,?,?,?,?)`),
		c.ID, c.IssueID, c.Author, c.Body, c.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "store: insert comment issue=%s", c.IssueID)
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "store: commit comment")
	}
	return nil
}

// ListComments returns an issue's comments oldest first.
func (s *SQLStore) ListComments(ctx context.Context, issueID string, limit int) ([]*models.Comment, error) {
	if _, err := s.Get(ctx, issueID); err != nil {
		return nil, err
	}
	rows := []*models.Comment{}
	query := "SELECT " + commentColumns + " FROM issue_comments WHERE issue_id = ? ORDER BY created_at, id LIMIT ?"
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), issueID, clampLimit(limit, DefaultLimit, MaxLimit))
	if err != nil {
		return nil, eris.Wrapf(err, "store: list comments issue=%s", issueID)
	}
	return rows, nil
}

func clampLimit(limit, def, ceiling int) int {
	if limit <= 0 {
		return def
	}
	if limit > ceiling {
		return ceiling
	}
	return limit
}
