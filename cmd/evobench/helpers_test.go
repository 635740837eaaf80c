package main

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stellarlinkco/evobench/internal/config"
	"github.com/stellarlinkco/evobench/internal/engine"
	"github.com/stellarlinkco/evobench/internal/llm"
	"github.com/stellarlinkco/evobench/internal/store"
	"github.com/stellarlinkco/evobench/internal/structured"
)

type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]*store.Session
	records  map[string][]*engine.Record

	GetSessionFunc   func(ctx context.Context, id string) (*store.Session, error)
	ListRecordsFunc  func(ctx context.Context, sessionID string) ([]*engine.Record, error)
	GetTrendFunc     func(ctx context.Context, sessionID string) ([]store.TrendPoint, error)
	ListSessionsFunc func(ctx context.Context, filter store.SessionFilter) ([]*store.Session, error)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[string]*store.Session),
		records:  make(map[string][]*engine.Record),
	}
}

func (s *fakeStore) SaveSession(_ context.Context, session *store.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *fakeStore) SaveRecord(_ context.Context, sessionID string, rec *engine.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[sessionID] = append(s.records[sessionID], rec)
	return nil
}

func (s *fakeStore) GetSession(ctx context.Context, id string) (*store.Session, error) {
	if s.GetSessionFunc != nil {
		return s.GetSessionFunc(ctx, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[id]; ok {
		return session, nil
	}
	return nil, fmt.Errorf("session %q not found", id)
}

func (s *fakeStore) ListSessions(ctx context.Context, filter store.SessionFilter) ([]*store.Session, error) {
	if s.ListSessionsFunc != nil {
		return s.ListSessionsFunc(ctx, filter)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*store.Session
	for _, session := range s.sessions {
		out = append(out, session)
	}
	return out, nil
}

func (s *fakeStore) ListRecords(ctx context.Context, sessionID string) ([]*engine.Record, error) {
	if s.ListRecordsFunc != nil {
		return s.ListRecordsFunc(ctx, sessionID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[sessionID], nil
}

func (s *fakeStore) GetTrend(ctx context.Context, sessionID string) ([]store.TrendPoint, error) {
	if s.GetTrendFunc != nil {
		return s.GetTrendFunc(ctx, sessionID)
	}
	return nil, nil
}

func (s *fakeStore) Close() error { return nil }

// loopProvider answers every third call with a generated item, then free
// text, then an evaluation, matching the pipeline's call order.
type loopProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *loopProvider) Name() string { return "loop" }

func (p *loopProvider) Complete(_ context.Context, _ *llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	idx := p.calls % 3
	iter := p.calls/3 + 1
	p.calls++
	p.mu.Unlock()

	var text string
	switch idx {
	case 0:
		text = fmt.Sprintf(`{"topic":"topic-%d","question":"question %d","difficulty_intent":5}`, iter, iter)
	case 1:
		text = fmt.Sprintf("answer %d", iter)
	default:
		text = `{"score":1.0,"reasoning":"correct","failure_modes":[]}`
	}
	return &llm.Response{Content: []llm.ContentBlock{{Type: "text", Text: text}}}, nil
}

func newLoopController(t *testing.T) *engine.Controller {
	t.Helper()
	p := &loopProvider{}
	c, err := engine.NewController(
		&engine.Generator{Client: &structured.Client{Provider: p}},
		&engine.Solver{Provider: p},
		&engine.Judge{Client: &structured.Client{Provider: p}},
		engine.DefaultParams(),
	)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return c
}

// withSeams swaps the package seams for the duration of a test.
func withSeams(t *testing.T, st store.Store, controller *engine.Controller) {
	t.Helper()

	origLoad := loadConfig
	origOpen := openStore
	origNew := newControllerFromConfig
	t.Cleanup(func() {
		loadConfig = origLoad
		openStore = origOpen
		newControllerFromConfig = origNew
	})

	loadConfig = func(string) (*config.Config, error) { return &config.Config{}, nil }
	openStore = func(*config.Config) (store.Store, error) { return st, nil }
	newControllerFromConfig = func(*config.Config) (*engine.Controller, error) { return controller, nil }
}

func executeCmd(args ...string) (string, error) {
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}
