package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stellarlinkco/evobench/internal/engine"
)

const defaultListLimit = 50

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	insertSessionStmt    *sql.Stmt
	insertRecordStmt     *sql.Stmt
	getSessionStmt       *sql.Stmt
	recordsBySessionStmt *sql.Stmt
	trendBySessionStmt   *sql.Stmt
}

var (
	sqliteOpen              = sql.Open
	sqlitePrepareStatements = (*SQLiteStore).prepareStatements
)

// NewSQLiteStore opens or creates a SQLite store at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: empty sqlite path")
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create sqlite dir: %w", err)
			}
		}
	}

	db, err := sqliteOpen("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}

	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	st := &SQLiteStore{db: db}
	if err := sqlitePrepareStatements(st); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func initSQLiteSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			domain TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS iterations (
			session_id TEXT NOT NULL,
			iteration INTEGER NOT NULL,
			domain TEXT NOT NULL,
			difficulty INTEGER NOT NULL,
			topic TEXT NOT NULL,
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			score REAL NOT NULL,
			ema REAL NOT NULL,
			reasoning TEXT NOT NULL,
			failure_modes BLOB NOT NULL,
			degraded INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			latency_ms INTEGER NOT NULL,
			PRIMARY KEY(session_id, iteration),
			FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_domain ON sessions(domain)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_iterations_session_id ON iterations(session_id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) prepareStatements() error {
	if s == nil || s.db == nil {
		return errors.New("store: nil sqlite store")
	}

	ctx := context.Background()
	type stmtSpec struct {
		dst    **sql.Stmt
		query  string
		errFmt string
	}

	specs := []stmtSpec{
		{
			dst: &s.insertSessionStmt,
			query: `
				INSERT INTO sessions (id, domain, created_at) VALUES (?, ?, ?)
			`,
			errFmt: "store: prepare insert session: %w",
		},
		{
			dst: &s.insertRecordStmt,
			query: `
				INSERT INTO iterations (
					session_id, iteration, domain, difficulty, topic, question, answer,
					score, ema, reasoning, failure_modes, degraded, created_at, latency_ms
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert record: %w",
		},
		{
			dst: &s.getSessionStmt,
			query: `
				SELECT id, domain, created_at FROM sessions WHERE id = ?
			`,
			errFmt: "store: prepare get session: %w",
		},
		{
			dst: &s.recordsBySessionStmt,
			query: `
				SELECT iteration, domain, difficulty, topic, question, answer,
					score, ema, reasoning, failure_modes, degraded, created_at, latency_ms
				FROM iterations
				WHERE session_id = ?
				ORDER BY iteration ASC
			`,
			errFmt: "store: prepare get records: %w",
		},
		{
			dst: &s.trendBySessionStmt,
			query: `
				SELECT iteration, difficulty, score, ema, degraded
				FROM iterations
				WHERE session_id = ?
				ORDER BY iteration ASC
			`,
			errFmt: "store: prepare trend: %w",
		},
	}

	for _, spec := range specs {
		stmt, err := s.db.PrepareContext(ctx, spec.query)
		if err != nil {
			return fmt.Errorf(spec.errFmt, err)
		}
		*spec.dst = stmt
	}

	return nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	if s == nil {
		return nil
	}
	stmts := []*sql.Stmt{
		s.insertSessionStmt,
		s.insertRecordStmt,
		s.getSessionStmt,
		s.recordsBySessionStmt,
		s.trendBySessionStmt,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveSession persists a session header.
func (s *SQLiteStore) SaveSession(ctx context.Context, session *Session) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	if session == nil {
		return errors.New("store: nil session")
	}

	id := strings.TrimSpace(session.ID)
	if id == "" {
		return errors.New("store: empty session id")
	}
	if strings.TrimSpace(session.Domain) == "" {
		return errors.New("store: empty session domain")
	}

	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.insertSessionStmt.ExecContext(ctx, id, session.Domain, createdAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("store: insert session: %w", err)
	}
	return nil
}

// SaveRecord persists one iteration record under a session.
func (s *SQLiteStore) SaveRecord(ctx context.Context, sessionID string, rec *engine.Record) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	if rec == nil {
		return errors.New("store: nil record")
	}

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errors.New("store: empty session id")
	}
	if rec.Iteration <= 0 {
		return fmt.Errorf("store: invalid iteration number %d", rec.Iteration)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	fmJSON, err := json.Marshal(rec.FailureModes)
	if err != nil {
		return fmt.Errorf("store: marshal failure modes: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin record tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt := tx.StmtContext(ctx, s.insertRecordStmt)
	defer stmt.Close()

	_, err = stmt.ExecContext(
		ctx,
		sessionID,
		rec.Iteration,
		rec.Domain,
		rec.Difficulty,
		rec.Topic,
		rec.Question,
		rec.Answer,
		rec.Score,
		rec.EMA,
		rec.Reasoning,
		fmJSON,
		boolToInt(rec.Degraded),
		createdAt.UTC().UnixMilli(),
		rec.LatencyMs,
	)
	if err != nil {
		return fmt.Errorf("store: insert record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit record: %w", err)
	}
	return nil
}

// GetSession loads a session by id.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("store: empty session id")
	}

	row := s.getSessionStmt.QueryRowContext(ctx, id)
	var (
		sessionID   string
		domain      string
		createdAtMS int64
	)
	if err := row.Scan(&sessionID, &domain, &createdAtMS); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: get session: %w", err)
	}

	return &Session{
		ID:        sessionID,
		Domain:    domain,
		CreatedAt: time.UnixMilli(createdAtMS).UTC(),
	}, nil
}

// ListSessions returns sessions matching the filter, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context, filter SessionFilter) ([]*Session, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}

	domain := strings.TrimSpace(filter.Domain)
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var sb strings.Builder
	sb.WriteString(`SELECT id, domain, created_at FROM sessions WHERE 1=1`)

	var args []any
	if domain != "" {
		sb.WriteString(` AND domain = ?`)
		args = append(args, domain)
	}
	if !filter.Since.IsZero() {
		sb.WriteString(` AND created_at >= ?`)
		args = append(args, filter.Since.UTC().UnixMilli())
	}
	if !filter.Until.IsZero() {
		sb.WriteString(` AND created_at <= ?`)
		args = append(args, filter.Until.UTC().UnixMilli())
	}
	sb.WriteString(` ORDER BY created_at DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		var (
			id          string
			dom         string
			createdAtMS int64
		)
		if err := rows.Scan(&id, &dom, &createdAtMS); err != nil {
			return nil, fmt.Errorf("store: scan session: %w", err)
		}
		out = append(out, &Session{
			ID:        id,
			Domain:    dom,
			CreatedAt: time.UnixMilli(createdAtMS).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	return out, nil
}

// ListRecords returns all iteration records of a session in order.
func (s *SQLiteStore) ListRecords(ctx context.Context, sessionID string) ([]*engine.Record, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, errors.New("store: empty session id")
	}

	rows, err := s.recordsBySessionStmt.QueryContext(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: get records: %w", err)
	}
	defer rows.Close()

	return scanRecordRows(rows)
}

// GetTrend returns the score trajectory of a session in iteration order.
func (s *SQLiteStore) GetTrend(ctx context.Context, sessionID string) ([]TrendPoint, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, errors.New("store: empty session id")
	}

	rows, err := s.trendBySessionStmt.QueryContext(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: trend: %w", err)
	}
	defer rows.Close()

	var out []TrendPoint
	for rows.Next() {
		var (
			p        TrendPoint
			degraded int
		)
		if err := rows.Scan(&p.Iteration, &p.Difficulty, &p.Score, &p.EMA, &degraded); err != nil {
			return nil, fmt.Errorf("store: scan trend point: %w", err)
		}
		p.Degraded = degraded != 0
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: trend rows: %w", err)
	}
	return out, nil
}

func scanRecordRows(rows *sql.Rows) ([]*engine.Record, error) {
	var out []*engine.Record
	for rows.Next() {
		var (
			rec         engine.Record
			fmJSON      []byte
			degraded    int
			createdAtMS int64
		)
		if err := rows.Scan(
			&rec.Iteration,
			&rec.Domain,
			&rec.Difficulty,
			&rec.Topic,
			&rec.Question,
			&rec.Answer,
			&rec.Score,
			&rec.EMA,
			&rec.Reasoning,
			&fmJSON,
			&degraded,
			&createdAtMS,
			&rec.LatencyMs,
		); err != nil {
			return nil, fmt.Errorf("store: scan record: %w", err)
		}

		failureModes, err := decodeFailureModes(fmJSON)
		if err != nil {
			return nil, fmt.Errorf("store: decode failure modes: %w", err)
		}
		rec.FailureModes = failureModes
		rec.Degraded = degraded != 0
		rec.CreatedAt = time.UnixMilli(createdAtMS).UTC()
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan record rows: %w", err)
	}
	return out, nil
}

func decodeFailureModes(raw []byte) ([]engine.FailureMode, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out []engine.FailureMode
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
