package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"aigc_sentinel/internal/aidetect"
)

// Server exposes a scoring worker over HTTP. The worker runs one job at a
// time, so concurrent requests get 503 instead of queueing.
type Server struct {
	worker *aidetect.Worker
	logger *slog.Logger
}

func NewServer(worker *aidetect.Worker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{worker: worker, logger: logger}
}

// NewRouter constructs a Gin engine with registered routes.
func (s *Server) NewRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", handleHealth)
	v1 := r.Group("/v1")
	v1.POST("/score", s.handleScore)
	v1.POST("/score/stream", s.handleScoreStream)
	return r
}

type scoreRequest struct {
	Text *string `json:"text" binding:"required"`
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleScore(c *gin.Context) {
	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	run, err := s.worker.Start(c.Request.Context(), *req.Text)
	if err != nil {
		c.JSON(statusFor(err), bodyFor(err))
		return
	}
	res, err := run.Wait()
	if err != nil {
		c.JSON(statusFor(err), bodyFor(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// handleScoreStream sends one SSE event per progress step and finishes with a
// single result or error event. A client that disconnects cancels the run.
func (s *Server) handleScoreStream(c *gin.Context) {
	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	run, err := s.worker.Start(c.Request.Context(), *req.Text)
	if err != nil {
		c.JSON(statusFor(err), bodyFor(err))
		return
	}
	defer run.Cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	for {
		select {
		case <-c.Request.Context().Done():
			_, _ = run.Wait()
			return
		case ev, ok := <-run.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case aidetect.EventCompleted:
				c.SSEvent("result", ev.Result)
			case aidetect.EventFailed:
				c.SSEvent("error", bodyFor(ev.Err))
			default:
				c.SSEvent("progress", ev)
			}
			c.Writer.Flush()
		}
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, aidetect.ErrBusy):
		return http.StatusServiceUnavailable
	case aidetect.FailureKindOf(err) == aidetect.ModelPathInvalid:
		return http.StatusUnprocessableEntity
	case aidetect.FailureKindOf(err) == aidetect.EnvironmentConflict:
		return http.StatusConflict
	case errors.Is(err, aidetect.ErrCancelled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func bodyFor(err error) errorBody {
	body := errorBody{Error: err.Error(), Kind: string(aidetect.FailureKindOf(err))}
	var f *aidetect.ScoringFailure
	if errors.As(err, &f) {
		body.Error = f.Message
	}
	return body
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
}
