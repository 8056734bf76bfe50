package server

import (
	"context"
	"encoding/base64"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"sjsage522/dealscout/internal/crawler"
	"sjsage522/dealscout/internal/product"
	"sjsage522/dealscout/pkg/errors"
)

// ScrapeRequest is the body of POST /api/scrape.
type ScrapeRequest struct {
	Website string         `json:"website"`
	Filters product.Filter `json:"filters"`
}

// ScrapeResponse is the body of a successful scrape.
type ScrapeResponse struct {
	Success               bool             `json:"success"`
	Website               string           `json:"website"`
	FiltersApplied        product.Filter   `json:"filters_applied"`
	TotalProducts         int              `json:"total_products"`
	Products              []product.Record `json:"products"`
	Timestamp             string           `json:"timestamp"`
	ProcessingTimeSeconds float64          `json:"processing_time_seconds"`
}

const healthCheckTimeout = 2 * time.Second

func (s *Server) health(c *gin.Context) {
	status := "healthy"
	checks := make(map[string]string, len(s.deps.Checks))
	for name, p := range s.deps.Checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		err := p.Ping(ctx)
		cancel()
		if err != nil {
			s.log.Warn().Err(err).Str("check", name).Msg("Health check failed")
			checks[name] = "unavailable"
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            status,
		"openai_configured": s.deps.OpenAIConfigured,
		"google_configured": s.deps.GoogleConfigured,
		"websites":          crawler.SupportedSites(),
		"checks":            checks,
	})
}

func (s *Server) websites(c *gin.Context) {
	sites := crawler.SupportedSites()
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"websites": sites,
		"total":    len(sites),
	})
}

func (s *Server) scrape(c *gin.Context) {
	var req ScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.NewValidation("request", "invalid request body"))
		return
	}
	website := strings.ToLower(strings.TrimSpace(req.Website))
	if website == "" {
		website = crawler.DefaultSite
	}

	res, err := s.deps.Scraper.Run(c.Request.Context(), website, req.Filters)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ScrapeResponse{
		Success:               true,
		Website:               res.Website,
		FiltersApplied:        res.Filters,
		TotalProducts:         len(res.Products),
		Products:              res.Products,
		Timestamp:             time.Now().UTC().Format(time.RFC3339),
		ProcessingTimeSeconds: math.Round(res.Duration.Seconds()*100) / 100,
	})
}

func (s *Server) similarProducts(c *gin.Context) {
	if s.deps.Uploader == nil || s.deps.VisualSearch == nil {
		writeError(c, errors.NewConfiguration("visual search is not configured", nil))
		return
	}
	up, err := readImageUpload(c, s.cfg.MaxUploadBytes)
	if err != nil {
		writeError(c, err)
		return
	}

	imageURL, err := s.deps.Uploader.Upload(c.Request.Context(), up.Data, up.Filename, up.MIME)
	if err != nil {
		writeError(c, err)
		return
	}
	results, err := s.deps.VisualSearch.Search(c.Request.Context(), imageURL)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) describeProduct(c *gin.Context) {
	up, err := readImageUpload(c, s.cfg.MaxUploadBytes)
	if err != nil {
		writeError(c, err)
		return
	}
	d, err := s.deps.Images.Describe(c.Request.Context(), up.Data, up.MIME)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) bomOrthographicView(c *gin.Context) {
	up, err := readImageUpload(c, s.cfg.MaxUploadBytes)
	if err != nil {
		writeError(c, err)
		return
	}
	views, bom, err := s.deps.Images.BOMWithViews(c.Request.Context(), up.Data, up.MIME)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"top_view":    base64.StdEncoding.EncodeToString(views.Top),
		"side_view":   base64.StdEncoding.EncodeToString(views.Side),
		"bom_details": bom,
	})
}

func (s *Server) replaceImage(c *gin.Context) {
	imageURL := c.PostForm("image_url")
	prompt := c.PostForm("prompt")
	if imageURL == "" || prompt == "" {
		writeError(c, errors.NewValidation(errors.StageImage, "image_url, prompt and size are required"))
		return
	}
	size, err := strconv.Atoi(strings.TrimSpace(c.PostForm("size")))
	if err != nil {
		writeError(c, errors.NewValidation(errors.StageImage, "size must be an integer"))
		return
	}

	res, err := s.deps.Images.Replace(c.Request.Context(), imageURL, prompt, size)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) imageHealth(c *gin.Context) {
	body := gin.H{
		"status":            "healthy",
		"service":           "Image Engineering",
		"openai_configured": s.deps.OpenAIConfigured,
	}
	if s.deps.Images != nil {
		body["static_dir"] = s.deps.Images.StaticDir()
		body["static_dir_exists"] = s.deps.Images.StaticDirExists()
	}
	c.JSON(http.StatusOK, body)
}
