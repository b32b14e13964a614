// Package http exposes ticket processing over a JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ticketd/internal/logging"
	"github.com/fyrsmithlabs/ticketd/internal/routing"
	"github.com/fyrsmithlabs/ticketd/internal/status"
	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

// Processor drives a ticket to its outcome. Both the in-process
// orchestrator and the Temporal-backed processor satisfy it.
type Processor interface {
	ProcessTicket(ctx context.Context, t ticket.Ticket) (*ticket.Outcome, error)
}

// historyReader is implemented by status stores that keep transitions.
type historyReader interface {
	History(ticketID string) []status.Transition
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// RateLimit is requests per second per client IP. Zero disables limiting.
	RateLimit float64
	RateBurst int
	BodyLimit string
}

// Server serves the ticket API.
type Server struct {
	echo      *echo.Echo
	processor Processor
	status    status.Reader
	gatherer  prometheus.Gatherer
	limiter   *ipLimiter
	logger    *logging.Logger
	config    *Config
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer serves metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// NewServer creates a Server. processor and statusReader are required.
func NewServer(processor Processor, statusReader status.Reader, logger *logging.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if processor == nil {
		return nil, fmt.Errorf("processor cannot be nil")
	}
	if statusReader == nil {
		return nil, fmt.Errorf("status reader cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 8080}
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = "1M"
	}

	s := &Server{
		processor: processor,
		status:    statusReader,
		gatherer:  prometheus.DefaultGatherer,
		logger:    logger.Named("http"),
		config:    cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.RateLimit > 0 {
		s.limiter = newIPLimiter(cfg.RateLimit, cfg.RateBurst, time.Now)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(requestID())
	e.Use(NewHTTPMetrics(s.logger.Underlying()).MetricsMiddleware())
	e.Use(s.requestLogger())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	if s.limiter != nil {
		e.Use(s.rateLimit())
	}

	s.echo = e
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/tickets", s.handleProcess)
	v1.GET("/tickets/:id/status", s.handleStatus)
	v1.POST("/plan", s.handlePlan)
}

// requestID accepts a well-formed X-Request-ID from the caller or mints a
// new one, and puts it on the response and the request context.
func requestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(echo.HeaderXRequestID)
			if logging.ValidateID(id) != nil {
				id = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
			return next(c)
		}
	}
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			fields := []zap.Field{
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			}
			ctx := c.Request().Context()
			if c.Response().Status >= http.StatusInternalServerError {
				s.logger.Warn(ctx, "http request", append(fields, zap.Error(err))...)
			} else {
				s.logger.Info(ctx, "http request", fields...)
			}
			return nil
		}
	}
}

func (s *Server) rateLimit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if !s.limiter.allow(ip) {
				s.logger.Warn(c.Request().Context(), "rate limit exceeded", zap.String("ip", ip))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleProcess(c echo.Context) error {
	var req TicketRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := req.Validate(); err != nil {
		return err
	}
	t := req.Ticket()

	ctx := logging.WithTicketID(c.Request().Context(), t.ID)
	c.SetRequest(c.Request().WithContext(ctx))

	out, err := s.processor.ProcessTicket(ctx, t)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleStatus(c echo.Context) error {
	id := c.Param("id")
	ctx := logging.WithTicketID(c.Request().Context(), id)

	current, err := s.status.Current(ctx, id)
	if err != nil {
		return err
	}

	resp := StatusResponse{TicketID: id, Status: current}
	if h, ok := s.status.(historyReader); ok {
		resp.History = h.History(id)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handlePlan(c echo.Context) error {
	var req PlanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return err
	}

	plan := routing.Route(req.Classification)
	if plan.Pending && req.SearchResult != nil {
		plan = routing.Resume(plan, *req.SearchResult)
	}
	return c.JSON(http.StatusOK, PlanResponse{Plan: plan, RoutingVersion: routing.Version})
}

// handleError renders every failure as ErrorResponse.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, resp := errorResponse(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error(c.Request().Context(), "request failed", zap.Error(err), zap.String("kind", resp.Kind))
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(code)
	} else {
		werr = c.JSON(code, resp)
	}
	if werr != nil {
		s.logger.Warn(c.Request().Context(), "failed to write error response", zap.Error(werr))
	}
}

// errorResponse maps err to a status code and body.
func errorResponse(err error) (int, ErrorResponse) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, ErrorResponse{Error: fmt.Sprint(he.Message)}
	}

	if opErr, ok := ticket.AsOperationError(err); ok {
		return statusForKind(opErr.Kind), ErrorResponse{Error: opErr.Message, Kind: string(opErr.Kind)}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorResponse{Error: "deadline exceeded", Kind: "DeadlineExceeded"}
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "request cancelled", Kind: "Cancelled"}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: "internal error"}
}

func statusForKind(kind ticket.Kind) int {
	switch kind {
	case ticket.KindInvalidInput:
		return http.StatusBadRequest
	case ticket.KindNotFound:
		return http.StatusNotFound
	case ticket.KindIdempotencyMismatch:
		return http.StatusConflict
	case ticket.KindUpdateError, ticket.KindFetchError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Handler returns the underlying handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on the configured address until Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
