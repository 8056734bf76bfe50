// Package server exposes the scrape pipeline and the image tools over HTTP.
package server

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sjsage522/dealscout/config"
	"sjsage522/dealscout/internal/pipeline"
	"sjsage522/dealscout/internal/product"
	"sjsage522/dealscout/logger"
	"sjsage522/dealscout/services/imaging"
	"sjsage522/dealscout/services/visualsearch"
)

// Scraper runs the product pipeline.
type Scraper interface {
	Run(ctx context.Context, site string, f product.Filter) (*pipeline.Result, error)
}

// Uploader stores an image and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, data []byte, filename, contentType string) (string, error)
}

// VisualSearcher finds products similar to an image URL.
type VisualSearcher interface {
	Search(ctx context.Context, imageURL string) ([]visualsearch.Match, error)
}

// ImageTools is the image service surface used by the handlers.
type ImageTools interface {
	Describe(ctx context.Context, img []byte, mimeType string) (imaging.Description, error)
	BOMWithViews(ctx context.Context, img []byte, mimeType string) (imaging.Views, imaging.BOM, error)
	Replace(ctx context.Context, imageURL, prompt string, size int) (*imaging.ReplaceResult, error)
	StaticDir() string
	StaticDirExists() bool
}

// Pinger is a backing service /api/health can check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators behind the routes. Uploader and
// VisualSearch may be nil when object storage is not configured.
type Deps struct {
	Scraper      Scraper
	Images       ImageTools
	Uploader     Uploader
	VisualSearch VisualSearcher
	Metrics      *pipeline.Metrics
	// Checks are pinged by /api/health, keyed by the name reported.
	Checks map[string]Pinger

	OpenAIConfigured bool
	GoogleConfigured bool
}

// Server is the HTTP API.
type Server struct {
	cfg    *config.Config
	deps   Deps
	engine *gin.Engine
	log    *logger.Logger
}

// New builds the router.
func New(cfg *config.Config, deps Deps) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.MaxMultipartMemory = cfg.MaxUploadBytes + 1<<20
	_ = engine.SetTrustedProxies(nil)
	engine.Use(recoverer(), requestID(), requestLogger(), cors(cfg.CORSOrigin))

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		engine: engine,
		log:    logger.ForComponent("server"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "API is running"})
	})

	api := r.Group("/api")
	api.GET("/health", s.health)
	api.GET("/websites", s.websites)
	api.POST("/scrape", s.scrape)

	r.POST("/similar-products", s.similarProducts)
	r.POST("/describe-product", s.describeProduct)
	r.POST("/bom-orthographic-view", s.bomOrthographicView)

	img := r.Group("/image")
	img.POST("/replace", s.replaceImage)
	img.GET("/health", s.imageHealth)
	if s.deps.Images != nil {
		img.Static("/static", s.deps.Images.StaticDir())
	}

	if s.deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Metrics.Registry, promhttp.HandlerOpts{})))
	}
}

// Handler returns the router for tests and custom servers.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on cfg.Port until ctx is cancelled, then drains in-flight
// requests for up to 10 seconds.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
