package ui

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"goodsam/internal"
	"goodsam/internal/analysis"
)

// Config holds request layer settings
type Config struct {
	// DataDir is reported back as the location of uploaded files
	DataDir string
	// Timeout bounds every analysis request
	Timeout time.Duration
	// GinMode is debug, release or test
	GinMode string
}

// Server is the JSON request layer in front of the analysis service
type Server struct {
	router  *gin.Engine
	service *analysis.Service
	cfg     Config
	logger  *internal.Logger
}

// NewServer creates the request layer and registers every route
func NewServer(service *analysis.Service, cfg Config, logger *internal.Logger) *Server {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	s := &Server{
		router:  gin.New(),
		service: service,
		cfg:     cfg,
		logger:  logger,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleHome)
	s.router.GET("/health", s.handleHealth)

	// Dataset metadata
	s.router.GET("/columns", s.handleColumns)
	s.router.GET("/column-ranges", s.handleColumnRanges)
	s.router.GET("/patterns", s.handlePatterns)
	s.router.GET("/constraints", s.handleConstraints)

	// Analyses
	s.router.GET("/histogram", s.handleHistogram)
	s.router.GET("/report", s.handleReport)
	s.router.POST("/userPattern", s.handleUserPattern)
	s.router.POST("/crossVal", s.handleCrossVal)
	s.router.POST("/geomapFilter", s.handleGeomapFilter)

	// Data files
	s.router.GET("/list-files", s.handleListFiles)
	s.router.POST("/reload-data", s.handleReloadData)
	s.router.POST("/upload", s.handleUpload)
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until ctx is done
func (s *Server) Start(ctx context.Context, addr string) error {
	return serve(ctx, addr, s.router, s.logger, "API")
}

// analysisContext bounds an analysis request by the configured timeout
func (s *Server) analysisContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), s.cfg.Timeout)
}

// serve runs an HTTP server and shuts it down gracefully when ctx is done
func serve(ctx context.Context, addr string, handler http.Handler, logger *internal.Logger, name string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("[%s] listening on %s", name, addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("[%s] shutting down", name)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
