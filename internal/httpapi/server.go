// Package httpapi exposes the interview workflow over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spigell/interviewd/internal/interview"
	"github.com/spigell/interviewd/internal/orchestrator"
	"github.com/spigell/interviewd/internal/resume"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Interviews is the slice of the orchestrator the HTTP layer drives.
type Interviews interface {
	Create(ctx context.Context, cfg interview.Config) (*interview.Session, error)
	Step(ctx context.Context, sessionID string, event orchestrator.Event) (*orchestrator.StepResult, error)
	Inspect(ctx context.Context, sessionID string) (*interview.Session, error)
	Expire(ctx context.Context, sessionID, reason string) error
	Delete(ctx context.Context, sessionID string) error
}

// Server provides the HTTP endpoints for interviewd.
type Server struct {
	echo       *echo.Echo
	interviews Interviews
	logger     *zap.Logger
	config     *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// NewServer creates a new HTTP server.
func NewServer(interviews Interviews, logger *zap.Logger, cfg *Config) (*Server, error) {
	if interviews == nil {
		return nil, fmt.Errorf("interviews backend cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
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
		echo:       e,
		interviews: interviews,
		logger:     logger,
		config:     cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/interviews", s.handleCreate)
	v1.POST("/interviews/:id/resume", s.handleResume)
	v1.POST("/interviews/:id/answers", s.handleAnswer)
	v1.POST("/interviews/:id/code", s.handleCode)
	v1.GET("/interviews/:id", s.handleInspect)
	v1.GET("/interviews/:id/result", s.handleResult)
	v1.DELETE("/interviews/:id", s.handleDelete)
}

// CreateRequest is the request body for POST /api/v1/interviews. Omitted
// fields fall back to the server defaults.
type CreateRequest struct {
	AdaptiveQuestioning  *bool  `json:"adaptive_questioning"`
	MaxFollowUpsPerTopic *int   `json:"max_follow_ups_per_topic"`
	Difficulty           string `json:"difficulty"`
}

// CreateResponse is the response body for POST /api/v1/interviews.
type CreateResponse struct {
	SessionID string          `json:"session_id"`
	Stage     interview.Stage `json:"stage"`
}

// TextRequest carries resume text and answers.
type TextRequest struct {
	Text string `json:"text"`
}

// CodeRequest carries the coding challenge submission.
type CodeRequest struct {
	Code string `json:"code"`
}

// SessionResponse is the response body for GET /api/v1/interviews/:id.
type SessionResponse struct {
	SessionID    string                `json:"session_id"`
	Stage        interview.Stage       `json:"stage"`
	Progress     orchestrator.Progress `json:"progress"`
	Degraded     bool                  `json:"degraded,omitempty"`
	FailureCause string                `json:"failure_cause,omitempty"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleCreate registers a new interview session.
func (s *Server) handleCreate(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid create request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	cfg := interview.Config{
		AdaptiveQuestioning: true,
		Difficulty:          interview.Difficulty(req.Difficulty),
	}
	if req.AdaptiveQuestioning != nil {
		cfg.AdaptiveQuestioning = *req.AdaptiveQuestioning
	}
	if req.MaxFollowUpsPerTopic != nil {
		if *req.MaxFollowUpsPerTopic < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "max_follow_ups_per_topic must not be negative")
		}
		cfg.MaxFollowUpsPerTopic = *req.MaxFollowUpsPerTopic
	}
	switch cfg.Difficulty {
	case "", interview.DifficultyMedium, interview.DifficultyHard:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "difficulty must be medium or hard")
	}

	sess, err := s.interviews.Create(c.Request().Context(), cfg)
	if err != nil {
		return s.mapError(err)
	}

	return c.JSON(http.StatusCreated, CreateResponse{SessionID: sess.ID, Stage: sess.Stage})
}

// handleResume accepts the resume and starts the questioning stage.
func (s *Server) handleResume(c echo.Context) error {
	var req TextRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	text, err := resume.Normalize(req.Text)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	res, err := s.interviews.Step(c.Request().Context(), c.Param("id"), orchestrator.ResumeSubmitted{Text: text})
	if err != nil {
		return s.mapError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// handleAnswer records one candidate answer.
func (s *Server) handleAnswer(c echo.Context) error {
	var req TextRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text field is required")
	}

	res, err := s.interviews.Step(c.Request().Context(), c.Param("id"), orchestrator.AnswerSubmitted{Text: req.Text})
	if err != nil {
		return s.mapError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// handleCode accepts the coding challenge submission.
func (s *Server) handleCode(c echo.Context) error {
	var req CodeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Code) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "code field is required")
	}

	res, err := s.interviews.Step(c.Request().Context(), c.Param("id"), orchestrator.CodeSubmitted{Code: req.Code})
	if err != nil {
		return s.mapError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// handleInspect reports where the session is in its state machine.
func (s *Server) handleInspect(c echo.Context) error {
	sess, err := s.interviews.Inspect(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.mapError(err)
	}

	return c.JSON(http.StatusOK, SessionResponse{
		SessionID: sess.ID,
		Stage:     sess.Stage,
		Progress: orchestrator.Progress{
			Stage:         sess.Stage,
			TopicIndex:    sess.TopicIndex,
			TotalTopics:   len(sess.Topics),
			FollowUpCount: sess.FollowUpCount,
		},
		Degraded:     sess.Degraded,
		FailureCause: sess.FailureCause,
	})
}

// handleResult returns the final result. Before completion it is a conflict,
// not an absence: the session exists but has nothing final to report yet.
func (s *Server) handleResult(c echo.Context) error {
	sess, err := s.interviews.Inspect(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.mapError(err)
	}

	switch sess.Stage {
	case interview.StageCompleted:
		return c.JSON(http.StatusOK, sess.Result)
	case interview.StageFailed:
		return echo.NewHTTPError(http.StatusConflict, fmt.Sprintf("session failed: %s", sess.FailureCause))
	default:
		return echo.NewHTTPError(http.StatusConflict, fmt.Sprintf("session is still in stage %s", sess.Stage))
	}
}

// handleDelete expires a running session and removes its record.
func (s *Server) handleDelete(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	err := s.interviews.Expire(ctx, id, "canceled by client")
	if err != nil && !interview.IsInvalidTransition(err) && !errors.Is(err, interview.ErrSessionNotFound) {
		return s.mapError(err)
	}

	if err := s.interviews.Delete(ctx, id); err != nil {
		return s.mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// mapError translates workflow errors into HTTP status codes.
func (s *Server) mapError(err error) error {
	switch {
	case errors.Is(err, interview.ErrSessionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	case interview.IsInvalidTransition(err):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, interview.ErrVersionConflict):
		return echo.NewHTTPError(http.StatusConflict, "a concurrent step was applied first, reload and retry")
	case errors.Is(err, orchestrator.ErrRetryLater):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
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
