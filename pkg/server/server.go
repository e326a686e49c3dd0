// Package server exposes resolution over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/semaphore"

	"github.com/codeGROOVE-dev/personamatch/pkg/persona"
)

// DefaultMaxConcurrent bounds simultaneous resolutions when no limit is set.
const DefaultMaxConcurrent = 2

// Resolver runs one resolution.
type Resolver interface {
	Resolve(ctx context.Context, seed persona.SeedRecord) (persona.MatchResult, error)
}

// PersonaRequest is the POST /persona body.
type PersonaRequest struct {
	Persona *Persona `json:"persona" validate:"required"`
}

// Persona is the seed as accepted over HTTP. Only the name is required; links
// are passed through as-is and filtered downstream.
//
//nolint:govet // fieldalignment: mirrors persona.SeedRecord
type Persona struct {
	Name            string   `json:"name"             validate:"required"`
	Image           string   `json:"image"`
	Intro           string   `json:"intro"`
	Timezone        string   `json:"timezone"`
	CompanyIndustry string   `json:"company_industry"`
	CompanySize     string   `json:"company_size"`
	SocialProfiles  []string `json:"social_profile"`
}

// Seed converts the request body to a seed record.
func (p Persona) Seed() persona.SeedRecord {
	return persona.SeedRecord{
		Name:            p.Name,
		Image:           p.Image,
		Intro:           p.Intro,
		Timezone:        p.Timezone,
		CompanyIndustry: p.CompanyIndustry,
		CompanySize:     p.CompanySize,
		SocialProfiles:  p.SocialProfiles,
	}
}

// PersonaResponse is the POST /persona success body.
type PersonaResponse struct {
	Message string              `json:"message"`
	Result  persona.MatchResult `json:"Result"`
}

type requestValidator struct {
	validator *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	if err := v.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// Server routes HTTP requests to a Resolver.
type Server struct {
	resolver Resolver
	sem      *semaphore.Weighted
	logger   *slog.Logger
	echo     *echo.Echo
	started  time.Time
}

// Option configures a Server.
type Option func(*config)

type config struct {
	logger        *slog.Logger
	maxConcurrent int64
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithMaxConcurrent bounds simultaneous resolutions. Requests beyond the bound wait.
func WithMaxConcurrent(n int64) Option {
	return func(c *config) { c.maxConcurrent = n }
}

// New creates a Server and registers its routes.
func New(resolver Resolver, opts ...Option) *Server {
	cfg := &config{logger: slog.Default(), maxConcurrent: DefaultMaxConcurrent}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.maxConcurrent <= 0 {
		cfg.maxConcurrent = DefaultMaxConcurrent
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validator: validator.New()}

	s := &Server{
		resolver: resolver,
		sem:      semaphore.NewWeighted(cfg.maxConcurrent),
		logger:   cfg.logger,
		echo:     e,
		started:  time.Now(),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			s.logger.InfoContext(c.Request().Context(), "request", attrs...)
			return nil
		},
	}))

	s.RegisterRoutes(e)
	return s
}

// RegisterRoutes registers the API endpoints.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.POST("/persona", s.Persona)
	e.GET("/healthz", s.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting server", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Persona resolves the posted persona. No match is still a 200.
func (s *Server) Persona(c echo.Context) error {
	var req PersonaRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "request cancelled while waiting for a resolution slot")
	}
	defer s.sem.Release(1)

	result, err := s.resolver.Resolve(ctx, req.Persona.Seed())
	if err != nil {
		return s.resolveError(ctx, err)
	}
	return c.JSON(http.StatusOK, PersonaResponse{Message: "Status 200!", Result: result})
}

func (s *Server) resolveError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, persona.ErrExtraction):
		s.logger.WarnContext(ctx, "enrichment failed", "error", err)
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, persona.ErrConfiguration):
		s.logger.ErrorContext(ctx, "resolver misconfigured", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.ErrorContext(ctx, "resolution failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "resolution failed")
	}
}

// Health reports liveness and uptime.
func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}
