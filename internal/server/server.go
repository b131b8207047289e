// Package server exposes the workflow and index operations over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/veldtlabs/curriculumd/internal/chunk"
	"github.com/veldtlabs/curriculumd/internal/ingest"
	"github.com/veldtlabs/curriculumd/internal/workflow"
)

// Executor runs planning workflows.
type Executor interface {
	ExecuteWorkflow(ctx context.Context, req workflow.Request) workflow.ResultEnvelope
}

// Index rebuilds the vector index from chunks.
type Index interface {
	Rebuild(ctx context.Context, chunks []chunk.Chunk) error
	Len() int
}

// Config holds HTTP server configuration.
type Config struct {
	Host     string
	Port     int
	Chunking chunk.Config
}

// Server provides the curriculumd HTTP endpoints.
type Server struct {
	echo     *echo.Echo
	executor Executor
	index    Index
	metrics  *Metrics
	logger   *zap.Logger
	config   *Config
}

// NewServer creates the HTTP server.
func NewServer(executor Executor, index Index, metrics *Metrics, logger *zap.Logger, cfg *Config) (*Server, error) {
	if executor == nil {
		return nil, fmt.Errorf("executor cannot be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("index cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 8740}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:     e,
		executor: executor,
		index:    index,
		metrics:  metrics,
		logger:   logger,
		config:   cfg,
	}

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	v1 := s.echo.Group("/v1")
	v1.POST("/workflows", s.handleWorkflow)
	v1.POST("/index", s.handleIndex)
}

// WorkflowRequest is the request body for POST /v1/workflows.
type WorkflowRequest struct {
	Request      string  `json:"request"`
	SyllabusPath string  `json:"syllabus_path,omitempty"`
	Question     string  `json:"question,omitempty"`
	Answer       string  `json:"answer,omitempty"`
	MaxScore     float64 `json:"max_score,omitempty"`
}

// IndexRequest is the request body for POST /v1/index.
type IndexRequest struct {
	Path string `json:"path"`
}

// IndexResponse is the response body for POST /v1/index.
type IndexResponse struct {
	Chunks int `json:"chunks"`
}

// HealthResponse is the response body for GET /healthz.
type HealthResponse struct {
	Status        string `json:"status"`
	IndexedChunks int    `json:"indexed_chunks"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:        "ok",
		IndexedChunks: s.index.Len(),
	})
}

// handleWorkflow runs one planning workflow and returns its envelope.
// Aborted workflows are still HTTP 200: the envelope carries the
// failure, and the caller distinguishes outcomes by its status field.
func (s *Server) handleWorkflow(c echo.Context) error {
	var req WorkflowRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid workflow request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Request == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "request field is required")
	}

	envelope := s.executor.ExecuteWorkflow(c.Request().Context(), workflow.Request{
		Text:           req.Request,
		SyllabusSource: req.SyllabusPath,
		Question:       req.Question,
		Answer:         req.Answer,
		MaxScore:       req.MaxScore,
	})
	s.metrics.ObserveWorkflow(envelope)

	return c.JSON(http.StatusOK, envelope)
}

// handleIndex rebuilds the vector index from a source document. The
// rebuild itself is exclusive with respect to its own swap; in-flight
// retrievals keep reading the previous index generation.
func (s *Server) handleIndex(c echo.Context) error {
	var req IndexRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid index request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Path == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "path field is required")
	}

	text, err := ingest.ExtractText(req.Path)
	if err != nil {
		if errors.Is(err, ingest.ErrSourceRead) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	chunks, err := chunk.Split(text, req.Path, s.config.Chunking)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if err := s.index.Rebuild(c.Request().Context(), chunks); err != nil {
		s.logger.Error("index rebuild failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	s.metrics.IndexRebuilds.Inc()

	s.logger.Info("index rebuilt",
		zap.String("source", req.Path),
		zap.Int("chunks", len(chunks)))
	return c.JSON(http.StatusOK, IndexResponse{Chunks: len(chunks)})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
