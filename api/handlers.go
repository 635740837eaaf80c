package api

import (
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stellarlinkco/evobench/internal/engine"
	"github.com/stellarlinkco/evobench/internal/store"
)

type createSessionRequest struct {
	Domain string `json:"domain"`
}

type sessionResponse struct {
	*store.Session
	Iterations int      `json:"iterations"`
	EMA        *float64 `json:"ema,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	domain := strings.TrimSpace(req.Domain)
	if domain == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing domain"))
		return
	}

	controller, err := engine.FromConfig(s.config)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	id, err := newSessionID()
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	session := &store.Session{
		ID:        id,
		Domain:    domain,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveSession(c.Request.Context(), session); err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	s.mu.Lock()
	s.sessions[id] = &sessionState{controller: controller}
	s.mu.Unlock()

	c.JSON(http.StatusCreated, session)
}

func (s *Server) handleListSessions(c *gin.Context) {
	filter := store.SessionFilter{
		Domain: strings.TrimSpace(c.Query("domain")),
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			respondError(c, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		filter.Limit = limit
	}

	sessions, err := s.store.ListSessions(c.Request.Context(), filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if sessions == nil {
		sessions = []*store.Session{}
	}
	c.JSON(http.StatusOK, sessions)
}

func (s *Server) handleGetSession(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing session id"))
		return
	}

	session, err := s.store.GetSession(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, http.StatusNotFound, fmt.Errorf("session %q not found", id))
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	// The summary reads from the store, so sessions persisted by an earlier
	// process report the same numbers as live ones.
	records, err := s.store.ListRecords(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	resp := sessionResponse{Session: session}
	if n := len(records); n > 0 {
		resp.Iterations = records[n-1].Iteration
		ema := records[n-1].EMA
		resp.EMA = &ema
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRunIteration(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing session id"))
		return
	}

	session, err := s.store.GetSession(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, http.StatusNotFound, fmt.Errorf("session %q not found", id))
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	state, err := s.sessionFor(c, session)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	rec, err := state.controller.RunIteration(c.Request.Context(), session.Domain)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if err := s.store.SaveRecord(c.Request.Context(), id, rec); err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleListIterations(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing session id"))
		return
	}

	records, err := s.store.ListRecords(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []*engine.Record{}
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) handleGetTrend(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing session id"))
		return
	}

	trend, err := s.store.GetTrend(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if trend == nil {
		trend = []store.TrendPoint{}
	}
	c.JSON(http.StatusOK, trend)
}

// sessionFor returns the live loop state for a session, rebuilding it from
// persisted records when the session predates this process.
func (s *Server) sessionFor(c *gin.Context, session *store.Session) (*sessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.sessions[session.ID]; ok {
		return state, nil
	}

	controller, err := engine.FromConfig(s.config)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListRecords(c.Request.Context(), session.ID)
	if err != nil {
		return nil, err
	}
	controller.Restore(records)

	state := &sessionState{controller: controller}
	s.sessions[session.ID] = state
	return state, nil
}

func respondError(c *gin.Context, status int, err error) {
	if err == nil {
		c.Status(status)
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func newSessionID() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("sess_%s_%x", time.Now().UTC().Format("20060102T150405Z"), buf), nil
}
