package api

import (
	"errors"
	"os"
	"strings"
)

func (s *Server) registerRoutes() error {
	if s == nil || s.router == nil {
		return nil
	}

	api := s.router.Group("/api")
	apiKey := strings.TrimSpace(os.Getenv("EVOBENCH_API_KEY"))
	if apiKey != "" {
		api.Use(apiKeyAuthMiddleware(apiKey))
	} else if strings.EqualFold(strings.TrimSpace(os.Getenv("EVOBENCH_DISABLE_AUTH")), "true") {
		// Explicitly allow unauthenticated access.
	} else {
		return errors.New("api: missing auth configuration: set EVOBENCH_API_KEY or set EVOBENCH_DISABLE_AUTH=true")
	}

	api.GET("/health", s.handleHealth)

	api.POST("/sessions", s.handleCreateSession)
	api.GET("/sessions", s.handleListSessions)
	api.GET("/sessions/:id", s.handleGetSession)

	// One iteration of the loop per POST; records accumulate under the session.
	api.POST("/sessions/:id/iterations", s.handleRunIteration)
	api.GET("/sessions/:id/iterations", s.handleListIterations)

	api.GET("/sessions/:id/trend", s.handleGetTrend)

	return nil
}
