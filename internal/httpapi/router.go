package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shubh-37/multipost-agent/config"
	"github.com/shubh-37/multipost-agent/internal/logging"
	"github.com/shubh-37/multipost-agent/internal/models"
)

// Publisher runs fan-out batches
type Publisher interface {
	PublishToAll(ctx context.Context, req models.PostRequest) *models.AggregatedReport
	PublishInBackground(req models.PostRequest) (string, error)
}

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

type Config struct {
	Publisher      Publisher
	PlatformStatus func() []config.PlatformStatus
	Gatherer       prometheus.Gatherer
	HealthChecks   map[string]HealthCheck
	// MCP and SlackEvents are mounted only when set
	MCP         http.Handler
	SlackEvents http.HandlerFunc
	Logger      logging.Logger
}

// NewRouter creates the gin engine serving every HTTP surface of the agent
func NewRouter(cfg Config) *gin.Engine {
	router := gin.New()
	router.Use(loggingMiddleware(cfg.Logger))
	router.Use(recoveryMiddleware(cfg.Logger))

	h := &handlers{publisher: cfg.Publisher, platformStatus: cfg.PlatformStatus, logger: cfg.Logger}

	router.GET("/health", healthHandler(cfg.HealthChecks))

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	api.POST("/posts", h.createPost)
	api.POST("/posts/quick", h.createQuickPost)
	api.GET("/platforms", h.listPlatforms)

	if cfg.MCP != nil {
		router.Any("/mcp", gin.WrapH(cfg.MCP))
	}
	if cfg.SlackEvents != nil {
		router.POST("/slack/events", gin.WrapF(cfg.SlackEvents))
	}

	return router
}

func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		results := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}

		state := "healthy"
		if status != http.StatusOK {
			state = "unhealthy"
		}
		c.JSON(status, gin.H{
			"status":  state,
			"service": "multipost-agent",
			"checks":  results,
		})
	}
}

func loggingMiddleware(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.WithFields(logging.Fields{
			"status":    c.Writer.Status(),
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		}).Info("HTTP request")
	}
}

func recoveryMiddleware(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(logging.Fields{
					"error": fmt.Sprint(r),
					"path":  c.Request.URL.Path,
				}).Error("Panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}

// Run serves router on port until ctx is cancelled, then shuts down gracefully
func Run(ctx context.Context, port string, router http.Handler, logger logging.Logger) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("port", port).Info("🚀 HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}
