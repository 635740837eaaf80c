package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/stellarlinkco/evobench/internal/config"
	"github.com/stellarlinkco/evobench/internal/engine"
	"github.com/stellarlinkco/evobench/internal/store"
)

type fakeStore struct {
	SaveSessionFunc  func(ctx context.Context, session *store.Session) error
	SaveRecordFunc   func(ctx context.Context, sessionID string, rec *engine.Record) error
	GetSessionFunc   func(ctx context.Context, id string) (*store.Session, error)
	ListSessionsFunc func(ctx context.Context, filter store.SessionFilter) ([]*store.Session, error)
	ListRecordsFunc  func(ctx context.Context, sessionID string) ([]*engine.Record, error)
	GetTrendFunc     func(ctx context.Context, sessionID string) ([]store.TrendPoint, error)
	CloseFunc        func() error
}

func (s *fakeStore) SaveSession(ctx context.Context, session *store.Session) error {
	if s.SaveSessionFunc != nil {
		return s.SaveSessionFunc(ctx, session)
	}
	return nil
}

func (s *fakeStore) SaveRecord(ctx context.Context, sessionID string, rec *engine.Record) error {
	if s.SaveRecordFunc != nil {
		return s.SaveRecordFunc(ctx, sessionID, rec)
	}
	return nil
}

func (s *fakeStore) GetSession(ctx context.Context, id string) (*store.Session, error) {
	if s.GetSessionFunc != nil {
		return s.GetSessionFunc(ctx, id)
	}
	return nil, nil
}

func (s *fakeStore) ListSessions(ctx context.Context, filter store.SessionFilter) ([]*store.Session, error) {
	if s.ListSessionsFunc != nil {
		return s.ListSessionsFunc(ctx, filter)
	}
	return nil, nil
}

func (s *fakeStore) ListRecords(ctx context.Context, sessionID string) ([]*engine.Record, error) {
	if s.ListRecordsFunc != nil {
		return s.ListRecordsFunc(ctx, sessionID)
	}
	return nil, nil
}

func (s *fakeStore) GetTrend(ctx context.Context, sessionID string) ([]store.TrendPoint, error) {
	if s.GetTrendFunc != nil {
		return s.GetTrendFunc(ctx, sessionID)
	}
	return nil, nil
}

func (s *fakeStore) Close() error {
	if s.CloseFunc != nil {
		return s.CloseFunc()
	}
	return nil
}

// stubLLM serves an OpenAI-compatible chat completions endpoint, replying
// with queued payloads in order.
type stubLLM struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

func newStubLLM(t *testing.T, replies ...string) *httptest.Server {
	t.Helper()
	stub := &stubLLM{replies: replies}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.mu.Lock()
		idx := stub.calls
		if idx >= len(stub.replies) {
			idx = len(stub.replies) - 1
		}
		stub.calls++
		reply := stub.replies[idx]
		stub.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"model":   "stub",
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": reply}, "finish_reason": "stop"}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			Providers: map[string]config.ProviderConfig{
				"openai": {APIKey: "test-key", BaseURL: baseURL, Model: "stub"},
			},
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, st store.Store) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("EVOBENCH_DISABLE_AUTH", "true")
	t.Setenv("EVOBENCH_API_KEY", "")

	srv, err := NewServer(cfg, st)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}
