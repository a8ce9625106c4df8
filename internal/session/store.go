// Package session persists chat sessions and their question/response
// exchanges in a SQLite database under the sessions directory.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a session ID is unknown.
var ErrNotFound = errors.New("session not found")

// timeFormat sorts lexically in time order, unlike RFC3339Nano which trims zeros.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Session is one chat session.
type Session struct {
	ID           string    `yaml:"id" json:"id"`
	ProjectRoot  string    `yaml:"project_root" json:"project_root"`
	Status       string    `yaml:"status" json:"status"`
	Created      time.Time `yaml:"created" json:"created"`
	LastAccessed time.Time `yaml:"last_accessed" json:"last_accessed"`
	Exchanges    int       `yaml:"exchanges" json:"exchanges"`
}

// LogFile is the session transcript file name inside the sessions directory.
func (s *Session) LogFile() string {
	return fmt.Sprintf("session_%s.log", s.ID)
}

// Exchange is one question and the response it got.
type Exchange struct {
	ID        int64     `yaml:"-" json:"id"`
	SessionID string    `yaml:"session_id" json:"session_id"`
	Question  string    `yaml:"question" json:"question"`
	Response  string    `yaml:"response" json:"response"`
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
}

// Store manages the session database.
type Store struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

// Open opens or creates the session database at dbPath, creating parent
// directories as needed. It initializes the schema if the database is new.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	// Pragmas below are per connection
	db.SetMaxOpenConns(1)

	// Chat client and agent processes share the file
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	store := &Store{db: db, dbPath: dbPath, now: time.Now}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(timeFormat)
}

// CreateSession starts a new active session for a project.
func (s *Store) CreateSession(ctx context.Context, projectRoot string) (*Session, error) {
	id := uuid.NewString()
	ts := s.stamp()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, project_root, status, created_at, last_accessed) VALUES (?, ?, 'active', ?, ?)`,
		id, projectRoot, ts, ts)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return s.GetSession(ctx, id)
}

// GetSession loads a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT s.id, s.project_root, s.status, s.created_at, s.last_accessed,
		       (SELECT COUNT(*) FROM exchanges e WHERE e.session_id = s.id)
		FROM sessions s WHERE s.id = ?`, id)

	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// TouchSession records an access to a session.
func (s *Store) TouchSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET last_accessed = ? WHERE id = ?`, s.stamp(), id)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// ListRecent returns up to limit sessions, most recently accessed first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.project_root, s.status, s.created_at, s.last_accessed,
		       (SELECT COUNT(*) FROM exchanges e WHERE e.session_id = s.id)
		FROM sessions s
		ORDER BY s.last_accessed DESC, s.created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// AddExchange appends a question/response pair to a session and marks it accessed.
func (s *Store) AddExchange(ctx context.Context, sessionID, question, response string) (*Exchange, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	ts := s.stamp()
	res, err := tx.ExecContext(ctx, `UPDATE sessions SET last_accessed = ? WHERE id = ?`, ts, sessionID)
	if err != nil {
		return nil, fmt.Errorf("touch session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	res, err = tx.ExecContext(ctx,
		`INSERT INTO exchanges (session_id, question, response, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, question, response, ts)
	if err != nil {
		return nil, fmt.Errorf("insert exchange: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("exchange id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	created, _ := time.Parse(timeFormat, ts)
	return &Exchange{ID: id, SessionID: sessionID, Question: question, Response: response, Timestamp: created}, nil
}

// History returns every exchange of a session in chronological order.
func (s *Store) History(ctx context.Context, sessionID string) ([]*Exchange, error) {
	return s.queryExchanges(ctx, `
		SELECT id, session_id, question, response, created_at
		FROM exchanges WHERE session_id = ? ORDER BY id`, sessionID)
}

// Recent returns the last n exchanges of a session in chronological order.
func (s *Store) Recent(ctx context.Context, sessionID string, n int) ([]*Exchange, error) {
	if n <= 0 {
		return nil, nil
	}
	return s.queryExchanges(ctx, `
		SELECT id, session_id, question, response, created_at FROM (
			SELECT * FROM exchanges WHERE session_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id`, sessionID, n)
}

func (s *Store) queryExchanges(ctx context.Context, query string, args ...any) ([]*Exchange, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()

	var exchanges []*Exchange
	for rows.Next() {
		var ex Exchange
		var ts string
		if err := rows.Scan(&ex.ID, &ex.SessionID, &ex.Question, &ex.Response, &ts); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		ex.Timestamp, _ = time.Parse(timeFormat, ts)
		exchanges = append(exchanges, &ex)
	}
	return exchanges, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var sess Session
	var created, accessed string
	if err := row.Scan(&sess.ID, &sess.ProjectRoot, &sess.Status, &created, &accessed, &sess.Exchanges); err != nil {
		return nil, err
	}
	sess.Created, _ = time.Parse(timeFormat, created)
	sess.LastAccessed, _ = time.Parse(timeFormat, accessed)
	return &sess, nil
}
