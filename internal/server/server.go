// Package server exposes the orchestrator over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"supportbot/internal/domain"
	"supportbot/internal/history"
	"supportbot/internal/logger"
	"supportbot/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

// Asker runs one query through the pipeline.
type Asker interface {
	Orchestrate(ctx context.Context, q domain.Query) domain.OrchestrationResult
}

// HistoryStore is the persistence collaborator. Nil disables recording and
// the history route.
type HistoryStore interface {
	domain.ChatRecorder
	Recent(ctx context.Context, userID string, limit int) ([]history.Entry, error)
}

// Health describes the degraded-or-not state of the long-lived components.
type Health struct {
	Status             string `json:"status"`
	EmbedderMode       string `json:"embedder_mode"`
	VectorBackend      string `json:"vector_backend"`
	Documents          int    `json:"documents"`
	GeneratorAvailable bool   `json:"generator_available"`
}

// HealthFunc reports component health on demand.
type HealthFunc func(ctx context.Context) Health

type Deps struct {
	Asker   Asker
	History HistoryStore
	Health  HealthFunc
	Metrics *metrics.Service
}

// AskRequest is the body of POST /api/ask.
type AskRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Query  string `json:"query" binding:"required"`
}

type Server struct {
	deps   Deps
	log    logger.Logger
	engine *gin.Engine
	http   *http.Server
}

func New(deps Deps, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetDefault()
	}
	s := &Server{deps: deps, log: log.With("component", "server")}
	s.engine = s.buildRouter()
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	if s.deps.Metrics != nil {
		r.Use(s.deps.Metrics.GinMiddleware())
		r.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Support assistant backend is running"})
	})
	api := r.Group("/api")
	api.POST("/ask", s.ask)
	api.GET("/health", s.health)
	if s.deps.History != nil {
		api.GET("/history/:user_id", s.recent)
	}
	return r
}

func (s *Server) ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": "user_id and query must not be blank"})
		return
	}
	ctx := c.Request.Context()
	res := s.deps.Asker.Orchestrate(ctx, domain.Query{Text: req.Query, UserID: req.UserID})
	if s.deps.History != nil {
		if err := s.deps.History.Record(ctx, req.UserID, req.Query, res.Response, res.ActionInvoked, res.Confidence); err != nil {
			logger.FromContext(ctx).Warn("Failed to save chat history", "user_id", req.UserID, "error", err)
		}
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) health(c *gin.Context) {
	h := Health{Status: "healthy"}
	if s.deps.Health != nil {
		h = s.deps.Health(c.Request.Context())
	}
	c.JSON(http.StatusOK, h)
}

func (s *Server) recent(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit", "details": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	ctx := c.Request.Context()
	entries, err := s.deps.History.Recent(ctx, c.Param("user_id"), limit)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to load chat history", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load chat history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// requestLogger tags each request with an id, echoes it in X-Request-ID and
// stores the tagged logger in the request context.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		log := s.log.With("request_id", id)
		c.Request = c.Request.WithContext(logger.ContextWithLogger(c.Request.Context(), log))
		c.Next()
		log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "addr", addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("Shutting down HTTP server")
	return s.http.Shutdown(shutdownCtx)
}
