package store

import (
	"context"
	"time"

	"github.com/stellarlinkco/evobench/internal/engine"
)

// SessionWriter defines persistence for benchmark sessions and their
// iteration records.
type SessionWriter interface {
	SaveSession(ctx context.Context, session *Session) error
	SaveRecord(ctx context.Context, sessionID string, rec *engine.Record) error
}

// SessionReader defines read access to session and iteration data.
type SessionReader interface {
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]*Session, error)
	ListRecords(ctx context.Context, sessionID string) ([]*engine.Record, error)
}

// Analytics defines query helpers over recorded iterations.
type Analytics interface {
	GetTrend(ctx context.Context, sessionID string) ([]TrendPoint, error)
}

// Store defines persistence for sessions and iteration records.
type Store interface {
	SessionWriter
	SessionReader
	Analytics
	Close() error
}

// Session groups the iteration records of one benchmark loop.
type Session struct {
	ID        string    `json:"id"`
	Domain    string    `json:"domain"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionFilter filters session listings.
type SessionFilter struct {
	Domain string
	Since  time.Time
	Until  time.Time
	Limit  int
}

// TrendPoint is one iteration's position on the score trajectory.
type TrendPoint struct {
	Iteration  int     `json:"iteration"`
	Difficulty int     `json:"difficulty"`
	Score      float64 `json:"score"`
	EMA        float64 `json:"ema"`
	Degraded   bool    `json:"degraded"`
}
