// Package server provides the HTTP API for intaked: health, metrics, and
// the quarantine review endpoints.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/crestline-eng/intaked/internal/config"
	"github.com/crestline-eng/intaked/internal/logging"
	"github.com/crestline-eng/intaked/internal/pipeline"
	"github.com/crestline-eng/intaked/internal/review"
)

// Reviewer is the review surface the server exposes. Implemented by the
// pipeline orchestrator.
type Reviewer interface {
	Pending(ctx context.Context) ([]pipeline.Record, error)
	Resolve(ctx context.Context, messageID string, final pipeline.Outcome, reviewer string) (pipeline.Record, error)
}

// Server is the intaked HTTP server.
type Server struct {
	echo     *echo.Echo
	reviewer Reviewer
	log      *logging.Logger
	addr     string
}

// New builds the server and registers its routes.
func New(cfg config.ServerConfig, reviewer Reviewer, log *logging.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			log.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:     e,
		reviewer: reviewer,
		log:      log.Named("server"),
		addr:     cfg.Addr,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/review/pending", s.handlePending)
	v1.POST("/review/decision", s.handleDecision)
}

// HealthResponse is the response body for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// PendingResponse is the response body for GET /api/v1/review/pending.
type PendingResponse struct {
	Pending []pipeline.Record `json:"pending"`
	Count   int               `json:"count"`
}

func (s *Server) handlePending(c echo.Context) error {
	pending, err := s.reviewer.Pending(c.Request().Context())
	if err != nil {
		s.log.Error(c.Request().Context(), "failed to list pending reviews", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list pending reviews")
	}
	if pending == nil {
		pending = []pipeline.Record{}
	}
	return c.JSON(http.StatusOK, PendingResponse{Pending: pending, Count: len(pending)})
}

func (s *Server) handleDecision(c echo.Context) error {
	var dec review.Decision
	if err := c.Bind(&dec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if dec.MessageID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message_id is required")
	}
	if dec.Reviewer == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "reviewer is required")
	}

	final, err := dec.Outcome()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rec, err := s.reviewer.Resolve(c.Request().Context(), dec.MessageID, final, dec.Reviewer)
	switch {
	case errors.Is(err, pipeline.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "no outcome recorded for message")
	case errors.Is(err, pipeline.ErrNotQuarantined):
		return echo.NewHTTPError(http.StatusConflict, "message is not awaiting review")
	case err != nil:
		s.log.Error(c.Request().Context(), "failed to apply review decision",
			zap.String("message_id", dec.MessageID),
			zap.Error(err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to apply decision")
	}
	return c.JSON(http.StatusOK, rec)
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start() error {
	s.log.Info(context.Background(), "starting http server", zap.String("addr", s.addr))
	return s.echo.Start(s.addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
