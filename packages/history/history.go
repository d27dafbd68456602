// Package history persists completed webtask exchanges to a SQLite
// database so past traffic can be inspected later.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/abdul-hamid-achik/webtask/packages/webtask"
)

const schema = `
CREATE TABLE IF NOT EXISTS exchanges (
	id          TEXT PRIMARY KEY,
	kind        INTEGER NOT NULL,
	method      TEXT NOT NULL,
	path        TEXT NOT NULL,
	status_code INTEGER,
	duration_ms INTEGER NOT NULL,
	error       TEXT,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_exchanges_created_at ON exchanges(created_at);
`

// Store implements webtask.Observer, recording one row per exchange.
type Store struct {
	db *sql.DB
}

// Exchange is one recorded exchange.
type Exchange struct {
	ID         string
	Kind       webtask.Kind
	Method     string
	Path       string
	StatusCode int
	Duration   time.Duration
	Error      string
	CreatedAt  time.Time
}

// Open creates or opens the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ObserveExchange records one completed exchange. Persistence errors
// are swallowed: history is best-effort and must never fail a Task.
func (s *Store) ObserveExchange(kind webtask.Kind, req *webtask.Request, resp *webtask.Response, d time.Duration, err error) {
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	errText := ""
	if err != nil {
		errText = err.Error()
	}

	_, _ = s.db.Exec(
		`INSERT INTO exchanges (id, kind, method, path, status_code, duration_ms, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), int(kind), req.Method, req.Path, status, d.Milliseconds(), errText, time.Now().UTC(),
	)
}

// Recent returns the most recent n exchanges, newest first.
func (s *Store) Recent(n int) ([]Exchange, error) {
	rows, err := s.db.Query(
		`SELECT id, kind, method, path, status_code, duration_ms, error, created_at
		 FROM exchanges ORDER BY created_at DESC, id LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var e Exchange
		var kind int
		var durationMs int64
		if err := rows.Scan(&e.ID, &kind, &e.Method, &e.Path, &e.StatusCode, &durationMs, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.Kind = webtask.Kind(kind)
		e.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}
