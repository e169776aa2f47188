// Package http provides the campusd HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/campusd/internal/auth"
	"github.com/fyrsmithlabs/campusd/internal/campus"
	"github.com/fyrsmithlabs/campusd/internal/chat"
	"github.com/fyrsmithlabs/campusd/internal/config"
	"github.com/fyrsmithlabs/campusd/internal/documents"
	"github.com/fyrsmithlabs/campusd/internal/index"
	"github.com/fyrsmithlabs/campusd/internal/logging"
	"github.com/fyrsmithlabs/campusd/internal/retrieval"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Chatter answers chat messages.
type Chatter interface {
	Route(ctx context.Context, req chat.Request) (*chat.Response, error)
}

// IndexService queries and reloads the served chunk index.
type IndexService interface {
	Retrieve(ctx context.Context, text string, topK int) ([]index.RetrievedChunk, error)
	Reload(ctx context.Context) (*index.Index, error)
	Stats() retrieval.Stats
}

// StudyService manages a user's study documents.
type StudyService interface {
	Upload(ctx context.Context, ownerID, filename, contentType string, r io.Reader) (*documents.UserDocument, error)
	List(ctx context.Context, ownerID string) ([]documents.UserDocument, error)
	Summarize(ctx context.Context, ownerID string, id int64) (*documents.Summary, error)
	Quiz(ctx context.Context, ownerID string, id int64, n int) (*documents.Quiz, error)
	Ask(ctx context.Context, ownerID string, id int64, question string) (*documents.Answer, error)
}

// Services are the handlers' dependencies. Chat and Campus are required;
// without Index the retrieval endpoints answer 503, and without Study the
// study routes are not registered.
type Services struct {
	Chat   Chatter
	Campus campus.Source
	Index  IndexService
	Study  StudyService
}

// Server provides HTTP endpoints for campusd.
type Server struct {
	echo     *echo.Echo
	services Services
	logger   *logging.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// RateLimit is the per-client chat rate in requests per second; 0 disables it.
	RateLimit      float64
	RateBurst      int
	AllowedOrigins []string
	Auth           config.AuthConfig
	// DefaultQuestions is the quiz size when num_questions is omitted.
	DefaultQuestions int
	// MeterProvider receives the API metrics; nil uses the global provider.
	MeterProvider metric.MeterProvider
}

const (
	defaultHost      = "localhost"
	defaultPort      = 8000
	rateLimitExpiry  = 3 * time.Minute
	defaultRateBurst = 10
)

// NewServer creates a new HTTP server.
func NewServer(services Services, logger *logging.Logger, cfg *Config) (*Server, error) {
	if services.Chat == nil {
		return nil, fmt.Errorf("chat service cannot be nil")
	}
	if services.Campus == nil {
		return nil, fmt.Errorf("campus source cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: defaultHost,
			Port: defaultPort,
		}
	}
	if cfg.DefaultQuestions <= 0 {
		cfg.DefaultQuestions = documents.DefaultQuestions
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = defaultRateBurst
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		services: services,
		logger:   logger,
		config:   cfg,
	}
	e.HTTPErrorHandler = s.handleError

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			ctx := logging.WithLogger(logging.WithRequestID(req.Context(), id), logger)
			c.SetRequest(req.WithContext(ctx))
		},
	}))
	if len(cfg.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowCredentials: true,
		}))
	}
	e.Use(NewAPIMetrics(cfg.MeterProvider, logger.Underlying()).Middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// Let the error handler write the response so the status below is final.
				c.Error(err)
			}
			duration := time.Since(start)

			logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
			)

			return nil
		}
	})

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/chat", s.handleChat, s.rateLimiter()...)
	v1.POST("/retrieve", s.handleRetrieve)
	v1.GET("/index", s.handleIndexStats)
	v1.POST("/index/reload", s.handleIndexReload)

	v1.GET("/timetable", s.handleTimetable)
	v1.GET("/bus_schedule", s.handleBusSchedule)
	v1.GET("/events", s.handleEvents)
	v1.GET("/exams", s.handleExams)
	v1.GET("/faculty_directory", s.handleFacultyDirectory)
	v1.GET("/faqs", s.handleFAQs)

	if s.services.Study != nil {
		study := v1.Group("/study", auth.Middleware(s.config.Auth))
		study.POST("/documents/upload", s.handleUpload)
		study.GET("/documents", s.handleListDocuments)
		study.POST("/documents/:id/summarize", s.handleSummarize)
		study.POST("/documents/:id/quiz", s.handleQuiz)
		study.POST("/documents/:id/qa", s.handleQA)
	}
}

// rateLimiter returns the chat rate limiting middleware, if enabled.
func (s *Server) rateLimiter() []echo.MiddlewareFunc {
	if s.config.RateLimit <= 0 {
		return nil
	}
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(s.config.RateLimit),
		Burst:     s.config.RateBurst,
		ExpiresIn: rateLimitExpiry,
	})
	return []echo.MiddlewareFunc{middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			s.logger.Warn(c.Request().Context(), "rate limit exceeded", zap.String("ip", identifier))
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		},
	})}
}

// handleError maps domain errors to HTTP statuses before writing the
// default JSON error body.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he := httpError(err)
	if he.Code >= http.StatusInternalServerError {
		s.logger.Error(c.Request().Context(), "request failed",
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	s.echo.DefaultHTTPErrorHandler(he, c)
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
