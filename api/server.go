package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/brettboylen/zs-parser/export"
	"github.com/brettboylen/zs-parser/input"
	"github.com/brettboylen/zs-parser/metrics"
	"github.com/brettboylen/zs-parser/models"
	"github.com/brettboylen/zs-parser/pipeline"
	"github.com/brettboylen/zs-parser/stats"
)

// Response headers describing a parse result
const (
	HeaderRecordCount = "X-Record-Count"
	HeaderPlatform    = "X-Platform"
	HeaderInputMode   = "X-Input-Mode"
)

// Options configures the HTTP service
type Options struct {
	Pipeline             pipeline.Options
	Collector            *stats.Collector
	Registry             *prometheus.Registry
	DefaultFormat        models.Format
	MaxRequestsPerMinute int
	BodyLimit            string
	Log                  *logrus.Logger
}

// Server exposes the pipeline over HTTP
type Server struct {
	echo      *echo.Echo
	opts      Options
	metrics   *metrics.Metrics
	collector *stats.Collector
	log       *logrus.Logger
}

// NewServer wires routes and middleware
func NewServer(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		opts:      opts,
		metrics:   metrics.New(opts.Registry),
		collector: opts.Collector,
		log:       opts.Log,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(opts.BodyLimit))

	requestsPerSecond := float64(opts.MaxRequestsPerMinute) / 60.0

	rateLimiterConfig := middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			// probes and scrapes must not eat into the parse budget
			p := c.Path()
			return p == "/healthz" || p == "/metrics"
		},
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(requestsPerSecond),
				Burst:     opts.MaxRequestsPerMinute,
				ExpiresIn: 3 * time.Minute,
			},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(ctx echo.Context, err error) error {
			return ctx.JSON(http.StatusForbidden, map[string]string{
				"error": "Unable to identify client",
			})
		},
		DenyHandler: func(ctx echo.Context, identifier string, err error) error {
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded, please try again later",
			})
		},
	}
	e.Use(middleware.RateLimiterWithConfig(rateLimiterConfig))

	e.POST("/api/parse", s.handleParse)
	e.GET("/api/stats", s.handleStats)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	return s
}

// ServeHTTP lets the server be mounted or tested directly
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// handleParse runs the pipeline over the request body. Undecodable input is
// a 422; empty input succeeds with zero records.
func (s *Server) handleParse(c echo.Context) error {
	format := s.opts.DefaultFormat
	if q := c.QueryParam("format"); q != "" {
		f, err := export.ParseFormat(q)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		format = f
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("failed to read request body: %v", err),
		})
	}

	started := time.Now()
	result, err := pipeline.RunBytes(body, s.opts.Pipeline)
	elapsed := time.Since(started).Seconds()
	if err != nil {
		if errors.Is(err, input.ErrDecode) {
			s.metrics.ObserveDecodeFailure(elapsed)
			return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		}
		s.log.WithError(err).Error("Pipeline failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "pipeline failed"})
	}
	s.metrics.ObserveResult(result, elapsed)

	if s.collector != nil {
		if err := s.collector.Record(result); err != nil {
			s.log.WithError(err).Error("Failed to record run")
		}
	}

	payload, err := export.Marshal(result.Records, format)
	if err != nil {
		s.log.WithError(err).Error("Failed to serialize records")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "serialization failed"})
	}

	h := c.Response().Header()
	h.Set(HeaderRecordCount, strconv.Itoa(len(result.Records)))
	h.Set(HeaderInputMode, string(result.Mode))
	if result.Platform != "" {
		h.Set(HeaderPlatform, result.Platform)
	}

	return c.Blob(http.StatusOK, export.ContentType(format), payload)
}

func (s *Server) handleStats(c echo.Context) error {
	if s.collector == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "statistics are disabled"})
	}
	return c.JSON(http.StatusOK, s.collector.GetStatistics())
}

// Start serves on port until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, port int) error {
	errCh := make(chan error, 1)
	go func() {
		serverAddr := fmt.Sprintf(":%d", port)
		s.log.WithField("port", port).Info("Starting API server")
		if err := s.echo.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("Shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("API server shutdown failed: %w", err)
	}
	return nil
}
