// Package http provides the HTTP API for docrag.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/app"
	"github.com/fyrsmithlabs/docrag/internal/ingest"
	"github.com/fyrsmithlabs/docrag/internal/logging"
)

// DefaultMaxUploadBytes bounds uploads when Config leaves it unset.
const DefaultMaxUploadBytes = 50 << 20

// Server provides HTTP endpoints for docrag.
type Server struct {
	echo   *echo.Echo
	app    *app.App
	logger *zap.Logger
	config *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host           string
	Port           int
	MaxUploadBytes int64
}

// NewServer creates a new HTTP server.
func NewServer(a *app.App, logger *zap.Logger, cfg *Config) (*Server, error) {
	if a == nil {
		return nil, fmt.Errorf("app cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9191,
		}
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestContext)
	metrics, err := newAPIMetrics(otel.Meter(meterName))
	if err != nil {
		logger.Warn("some API metrics are unavailable", zap.Error(err))
	}
	e.Use(metrics.middleware)
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			fields := append([]zap.Field{
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
			}, logging.ContextFields(c.Request().Context())...)
			logger.Info("http request", fields...)

			return err
		}
	})

	s := &Server{
		echo:   e,
		app:    a,
		logger: logger,
		config: cfg,
	}

	s.registerRoutes()

	return s, nil
}

// requestContext copies the request id into the request context so the
// application logs carry it.
func requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		rid := c.Response().Header().Get(echo.HeaderXRequestID)
		if logging.ValidID(rid) {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), rid)))
		}
		return next(c)
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")

	v1.POST("/documents", s.handleUpload)
	v1.GET("/documents", s.handleListDocuments)
	v1.DELETE("/documents", s.handleDeleteAllDocuments)
	v1.GET("/documents/:id", s.handleGetDocument)
	v1.DELETE("/documents/:id", s.handleDeleteDocument)
	v1.PATCH("/documents/:id/position", s.handleMoveDocument)

	v1.POST("/search", s.handleSearch)
	v1.POST("/chat", s.handleChat)

	v1.GET("/turns", s.handleListTurns)
	v1.DELETE("/turns", s.handleClearTurns)
	v1.DELETE("/turns/:id", s.handleDeleteTurn)
	v1.PATCH("/turns/:id/position", s.handleMoveTurn)

	v1.POST("/extract", s.handleExtract)
	v1.GET("/entities", s.handleListEntities)
	v1.DELETE("/entities", s.handleClearEntities)

	v1.GET("/personas", s.handleListPersonas)
}

// handleHealth reports liveness, the document count and the providers in use.
func (s *Server) handleHealth(c echo.Context) error {
	docs, err := s.app.Documents(c.Request().Context())
	if err != nil {
		return s.fail(err, "listing documents")
	}
	return c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Documents: len(docs),
		Providers: s.app.Config().Selection(),
	})
}

// handleUpload ingests one document. With ?stream=true the progress events
// are written as newline-delimited JSON while the pipeline runs.
func (s *Server) handleUpload(c echo.Context) error {
	task, err := s.readUpload(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	if c.QueryParam("stream") == "true" {
		return s.streamIngest(c, task)
	}

	doc, err := s.app.Ingest(ctx, task)
	if err != nil {
		s.logger.Warn("ingestion failed", zap.String("name", task.Name), zap.Error(err))
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, summarize(doc))
}

// readUpload accepts either a multipart form with a "file" field or a raw
// body named by the "name" query parameter.
func (s *Server) readUpload(c echo.Context) (ingest.Task, error) {
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, s.config.MaxUploadBytes)

	task := ingest.Task{ID: c.QueryParam("id")}
	var err error
	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		task, err = readMultipart(c, task)
	} else {
		task.Name = c.QueryParam("name")
		task.MimeHint = req.Header.Get(echo.HeaderContentType)
		if task.Name == "" {
			return task, echo.NewHTTPError(http.StatusBadRequest, "name query parameter is required")
		}
		task.Data, err = io.ReadAll(req.Body)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return task, echo.NewHTTPError(http.StatusRequestEntityTooLarge,
				fmt.Sprintf("document exceeds %d bytes", s.config.MaxUploadBytes))
		}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return task, he
		}
		return task, echo.NewHTTPError(http.StatusBadRequest, "invalid upload")
	}
	if len(task.Data) == 0 {
		return task, echo.NewHTTPError(http.StatusBadRequest, "document is empty")
	}
	return task, nil
}

func readMultipart(c echo.Context, task ingest.Task) (ingest.Task, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return task, err
		}
		return task, echo.NewHTTPError(http.StatusBadRequest, "file field is required")
	}
	f, err := fh.Open()
	if err != nil {
		return task, err
	}
	defer f.Close()

	task.Name = fh.Filename
	task.MimeHint = fh.Header.Get(echo.HeaderContentType)
	task.Data, err = io.ReadAll(f)
	return task, err
}

func (s *Server) streamIngest(c echo.Context, task ingest.Task) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, MIMEApplicationNDJSON)
	res.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(res)
	broken := false
	for ev := range s.app.Submit(c.Request().Context(), task) {
		if broken {
			continue
		}
		if err := enc.Encode(newIngestEvent(ev)); err != nil {
			s.logger.Debug("event stream closed", zap.Error(err))
			broken = true
			continue
		}
		res.Flush()
	}
	return nil
}

func (s *Server) handleListDocuments(c echo.Context) error {
	docs, err := s.app.Documents(c.Request().Context())
	if err != nil {
		return s.fail(err, "listing documents")
	}
	out := DocumentListResponse{Documents: make([]DocumentSummary, 0, len(docs))}
	for _, d := range docs {
		out.Documents = append(out.Documents, summarize(d))
	}
	return c.JSON(http.StatusOK, out)
}

// handleGetDocument returns a document with its chunk text but without
// embeddings.
func (s *Server) handleGetDocument(c echo.Context) error {
	doc, err := s.app.Document(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(err, "loading document")
	}
	for i := range doc.Chunks {
		doc.Chunks[i].Embedding = nil
	}
	return c.JSON(http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(c echo.Context) error {
	if err := s.app.DeleteDocument(c.Request().Context(), c.Param("id")); err != nil {
		return s.fail(err, "deleting document")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDeleteAllDocuments(c echo.Context) error {
	if err := s.app.DeleteAllDocuments(c.Request().Context()); err != nil {
		return s.fail(err, "deleting documents")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleMoveDocument(c echo.Context) error {
	x, y, err := bindPosition(c)
	if err != nil {
		return err
	}
	if err := s.app.MoveDocument(c.Request().Context(), c.Param("id"), x, y); err != nil {
		return s.fail(err, "moving document")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid search request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	hits, err := s.app.Search(c.Request().Context(), req.Query)
	if err != nil {
		return s.fail(err, "searching")
	}
	return c.JSON(http.StatusOK, SearchResponse{Results: hits})
}

// handleChat answers a message. Provider failures are returned as the reply
// text with status 200.
func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid chat request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	answer, err := s.app.Chat(c.Request().Context(), req.Message, req.Persona)
	if err != nil {
		return s.fail(err, "answering message")
	}
	return c.JSON(http.StatusOK, answer)
}

func (s *Server) handleListTurns(c echo.Context) error {
	turns, err := s.app.Turns(c.Request().Context())
	if err != nil {
		return s.fail(err, "listing turns")
	}
	return c.JSON(http.StatusOK, TurnListResponse{Turns: turns})
}

func (s *Server) handleClearTurns(c echo.Context) error {
	if err := s.app.ClearTurns(c.Request().Context()); err != nil {
		return s.fail(err, "clearing turns")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDeleteTurn(c echo.Context) error {
	if err := s.app.DeleteTurn(c.Request().Context(), c.Param("id")); err != nil {
		return s.fail(err, "deleting turn")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleMoveTurn(c echo.Context) error {
	x, y, err := bindPosition(c)
	if err != nil {
		return err
	}
	if err := s.app.MoveTurn(c.Request().Context(), c.Param("id"), x, y); err != nil {
		return s.fail(err, "moving turn")
	}
	return c.NoContent(http.StatusNoContent)
}

// handleExtract runs entity extraction. A failed model call yields an empty
// list; only unknown ids and store errors fail the request.
func (s *Server) handleExtract(c echo.Context) error {
	var req ExtractRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}
	entities, err := s.app.Extract(c.Request().Context(), req.DocumentIDs)
	if err != nil {
		return s.fail(err, "extracting entities")
	}
	return c.JSON(http.StatusOK, EntityListResponse{Entities: entities})
}

func (s *Server) handleListEntities(c echo.Context) error {
	entities, err := s.app.Entities(c.Request().Context())
	if err != nil {
		return s.fail(err, "listing entities")
	}
	return c.JSON(http.StatusOK, EntityListResponse{Entities: entities})
}

func (s *Server) handleClearEntities(c echo.Context) error {
	if err := s.app.ClearEntities(c.Request().Context()); err != nil {
		return s.fail(err, "clearing entities")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListPersonas(c echo.Context) error {
	return c.JSON(http.StatusOK, PersonaListResponse{Personas: s.app.Personas()})
}

func bindPosition(c echo.Context) (float64, float64, error) {
	var req PositionRequest
	if err := c.Bind(&req); err != nil {
		return 0, 0, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.X == nil || req.Y == nil {
		return 0, 0, echo.NewHTTPError(http.StatusBadRequest, "x and y are required")
	}
	return *req.X, *req.Y, nil
}

// fail maps application errors onto HTTP errors.
func (s *Server) fail(err error, action string) error {
	switch {
	case errors.Is(err, app.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrEmptyInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s.logger.Error(action, zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, action+" failed")
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
