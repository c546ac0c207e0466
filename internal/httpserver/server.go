package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/resumekit/interview-agent/internal/analysis"
	"github.com/resumekit/interview-agent/internal/config"
	"github.com/resumekit/interview-agent/internal/interview"
)

// QuestionGenerator produces the raw interview question blob for a resume.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, resume string) (string, error)
}

// ConversationAnalyzer turns a finished conversation into structured
// feedback. The bool reports a cache hit.
type ConversationAnalyzer interface {
	Analyze(ctx context.Context, entries []interview.Entry) (analysis.Result, bool, error)
}

// Server bundles the HTTP router and dependencies.
type Server struct {
	Router http.Handler

	cfg      config.Config
	log      *zap.Logger
	gen      QuestionGenerator
	analyzer ConversationAnalyzer
}

// New constructs the HTTP server with routes.
func New(cfg config.Config, gen QuestionGenerator, analyzer ConversationAnalyzer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{cfg: cfg, log: log, gen: gen, analyzer: analyzer}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.POST("/interview/content", s.handleContent)
	e.POST("/interview/analyze", s.handleAnalyze)
	e.GET("/interview/session", s.handleSession)

	s.Router = e
	return s
}

type contentRequest struct {
	Resume string `json:"resume"`
}

type contentResponse struct {
	Message   string `json:"message"`
	Questions string `json:"questions"`
}

func (s *Server) handleContent(c echo.Context) error {
	if !authOK(c.Request(), s.cfg.AuthPassword) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req contentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Resume == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "resume is required"})
	}
	if s.gen == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "question generation unavailable"})
	}

	blob, err := s.gen.GenerateQuestions(c.Request().Context(), req.Resume)
	if err != nil {
		s.log.Error("question generation failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "question generation failed"})
	}
	return c.JSON(http.StatusOK, contentResponse{
		Message:   "Interview content generated successfully",
		Questions: blob,
	})
}

type analyzeRequest struct {
	ConversationLog []interview.Entry `json:"conversationLog"`
}

type analyzeResponse struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Analysis analysis.Result `json:"analysis"`
	Cached   bool            `json:"cached"`
}

// handleAnalyze returns model feedback for a conversation. When the model is
// unavailable the locally constructed fallback is returned instead of an
// error, so the client always gets a renderable result.
func (s *Server) handleAnalyze(c echo.Context) error {
	if !authOK(c.Request(), s.cfg.AuthPassword) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(req.ConversationLog) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "conversation log is required"})
	}

	if s.analyzer != nil {
		result, cached, err := s.analyzer.Analyze(c.Request().Context(), req.ConversationLog)
		if err == nil {
			return c.JSON(http.StatusOK, analyzeResponse{
				Success:  true,
				Message:  "Interview analysis completed successfully",
				Analysis: result,
				Cached:   cached,
			})
		}
		s.log.Warn("analysis failed, serving fallback", zap.Error(err))
	}
	return c.JSON(http.StatusOK, analyzeResponse{
		Success:  true,
		Message:  "Interview analysis constructed locally",
		Analysis: analysis.Fallback(req.ConversationLog),
	})
}
