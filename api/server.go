package api

import (
	"errors"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/stellarlinkco/evobench/internal/config"
	"github.com/stellarlinkco/evobench/internal/engine"
	"github.com/stellarlinkco/evobench/internal/store"
)

type Server struct {
	router *gin.Engine
	store  store.Store
	config *config.Config

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// sessionState serializes iteration runs for one session. The controller is
// single-caller, so concurrent requests against the same session queue on mu.
type sessionState struct {
	mu         sync.Mutex
	controller *engine.Controller
}

func NewServer(cfg *config.Config, st store.Store) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("api: nil config")
	}
	if st == nil {
		return nil, errors.New("api: nil store")
	}

	r := gin.New()
	s := &Server{
		router:   r,
		store:    st,
		config:   cfg,
		sessions: make(map[string]*sessionState),
	}
	s.registerMiddleware()
	if err := s.registerRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) Run(addr string) error {
	if s == nil || s.router == nil {
		return errors.New("api: nil server")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		addr = ":8080"
	}
	return s.router.Run(addr)
}
