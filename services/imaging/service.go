// Package imaging implements the footwear image tools: descriptions,
// bills of materials, orthographic views and size-aware edits.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sjsage522/dealscout/helpers"
	"sjsage522/dealscout/logger"
	"sjsage522/dealscout/pkg/errors"
)

// StaticRoute is the URL prefix edited images are served from.
const StaticRoute = "/image/static"

const (
	downloadTimeout = 15 * time.Second
	maxDownload     = 20 << 20
	describeTokens  = 300
	editSize        = "1024x1024"
)

// Editor edits a PNG according to a prompt.
type Editor interface {
	EditImage(ctx context.Context, pngData []byte, prompt, size string) ([]byte, error)
}

// VisionModel answers a prompt about an image.
type VisionModel interface {
	Vision(ctx context.Context, system, prompt string, image []byte, mimeType string, maxTokens int) (string, error)
}

// Service runs the image tools against an LLM provider.
type Service struct {
	editor        Editor
	vision        VisionModel
	staticDir     string
	publicBaseURL string
	client        *http.Client
	newID         func() string
	log           *logger.Logger
}

// NewService creates the image service. Edited images are written to
// staticDir; publicBaseURL identifies links that point back at this server.
func NewService(editor Editor, vision VisionModel, staticDir, publicBaseURL string) *Service {
	return &Service{
		editor:        editor,
		vision:        vision,
		staticDir:     staticDir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		client:        &http.Client{Timeout: downloadTimeout},
		newID:         uuid.NewString,
		log:           logger.ForComponent("imaging"),
	}
}

// EnsureStaticDir creates the static directory.
func (s *Service) EnsureStaticDir() error {
	return os.MkdirAll(s.staticDir, 0o755)
}

// StaticDir returns the directory edited images are saved in.
func (s *Service) StaticDir() string {
	return s.staticDir
}

// StaticDirExists reports whether the static directory is present.
func (s *Service) StaticDirExists() bool {
	info, err := os.Stat(s.staticDir)
	return err == nil && info.IsDir()
}

// NormalizePNG decodes a JPEG, PNG or GIF and re-encodes it as PNG.
func NormalizePNG(data []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewValidation(errors.StageImage, "image could not be decoded")
	}
	if format == "png" {
		return data, nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.NewMalformed(errors.StageImage, "cannot encode PNG", err)
	}
	return buf.Bytes(), nil
}

// GenerateBOM asks the vision model for a bill of materials.
func (s *Service) GenerateBOM(ctx context.Context, img []byte, mimeType string) (BOM, error) {
	reply, err := s.vision.Vision(ctx, bomSystemPrompt, bomPrompt, img, mimeType, 0)
	if err != nil {
		return BOM{}, err
	}
	var bom BOM
	if err := helpers.DecodeJSONObject(reply, &bom); err != nil {
		return BOM{}, errors.NewMalformed(errors.StageImage, "BOM reply is not JSON", err)
	}
	if bom.Components == nil {
		bom.Components = []BOMComponent{}
	}
	return bom, nil
}

// Describe returns a search-oriented description of a footwear image.
func (s *Service) Describe(ctx context.Context, img []byte, mimeType string) (Description, error) {
	reply, err := s.vision.Vision(ctx, "", describePrompt, img, mimeType, describeTokens)
	if err != nil {
		return Description{}, err
	}
	var d Description
	if err := helpers.DecodeJSONObject(reply, &d); err != nil {
		return Description{}, errors.NewMalformed(errors.StageImage, "description reply is not JSON", err)
	}
	return d, nil
}

// OrthographicViews renders top and side views of img concurrently.
func (s *Service) OrthographicViews(ctx context.Context, img []byte) (Views, error) {
	pngData, err := NormalizePNG(img)
	if err != nil {
		return Views{}, err
	}

	var views Views
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		views.Top, err = s.editor.EditImage(ctx, pngData, topViewPrompt, editSize)
		return err
	})
	g.Go(func() error {
		var err error
		views.Side, err = s.editor.EditImage(ctx, pngData, sideViewPrompt, editSize)
		return err
	})
	if err := g.Wait(); err != nil {
		return Views{}, err
	}
	return views, nil
}

// BOMWithViews runs the orthographic views and BOM generation together.
func (s *Service) BOMWithViews(ctx context.Context, img []byte, mimeType string) (Views, BOM, error) {
	var (
		views Views
		bom   BOM
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		views, err = s.OrthographicViews(gctx, img)
		return err
	})
	g.Go(func() error {
		var err error
		bom, err = s.GenerateBOM(gctx, img, mimeType)
		return err
	})
	if err := g.Wait(); err != nil {
		return Views{}, BOM{}, err
	}
	return views, bom, nil
}

// Replace edits the image at imageURL with a size-aware prompt, saves the
// result under the static directory and derives its BOM. A failed BOM
// falls back to FallbackBOM.
func (s *Service) Replace(ctx context.Context, imageURL, prompt string, size int) (*ReplaceResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.NewValidation(errors.StageImage, "prompt is required")
	}
	editPrompt, err := SizeAwarePrompt(prompt, size)
	if err != nil {
		return nil, err
	}
	mm, _ := SoleLengthMM(size)

	base, err := s.LoadImage(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	pngData, err := NormalizePNG(base)
	if err != nil {
		return nil, err
	}

	edited, err := s.editor.EditImage(ctx, pngData, editPrompt, editSize)
	if err != nil {
		return nil, err
	}

	filename := s.newID() + "_edited.png"
	if err := os.WriteFile(filepath.Join(s.staticDir, filename), edited, 0o644); err != nil {
		return nil, errors.New(errors.ErrorTypeUpstream, errors.StageImage, "failed to save edited image", err)
	}
	s.log.Info().Str("file", filename).Int("bytes", len(edited)).Int("size", size).Msg("Saved edited image")

	bom, err := s.GenerateBOM(ctx, edited, "image/png")
	if err != nil {
		s.log.Warn().Err(err).Msg("BOM generation failed, using fallback")
		bom = FallbackBOM()
	}

	return &ReplaceResult{
		Status:       "success",
		Size:         size,
		SoleLengthMM: mm,
		BOM:          bom,
		Views:        map[string]string{"edited": StaticRoute + "/" + filename},
	}, nil
}

// LoadImage reads imageURL from the static directory when it points at
// this server and downloads it otherwise.
func (s *Service) LoadImage(ctx context.Context, imageURL string) ([]byte, error) {
	u, err := url.Parse(strings.TrimSpace(imageURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errors.NewValidation(errors.StageImage, "image_url must be an http(s) URL")
	}

	if s.isLocal(u) {
		name := path.Base(u.Path)
		data, err := os.ReadFile(filepath.Join(s.staticDir, name))
		if err != nil {
			return nil, errors.NewValidation(errors.StageImage, "local file not found: "+name)
		}
		return data, nil
	}

	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.NewValidation(errors.StageImage, "invalid image_url")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.NewValidation(errors.StageImage, "failed to get image: "+err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewValidation(errors.StageImage, fmt.Sprintf("failed to download image: HTTP %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload+1))
	if err != nil {
		return nil, errors.NewUpstream(errors.StageImage, "failed to read image", err)
	}
	if len(data) > maxDownload {
		return nil, errors.NewResourceLimit(errors.StageImage, "downloaded image is too large")
	}
	return data, nil
}

func (s *Service) isLocal(u *url.URL) bool {
	if s.publicBaseURL != "" && strings.HasPrefix(u.String(), s.publicBaseURL+StaticRoute+"/") {
		return true
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
