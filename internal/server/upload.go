package server

import (
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"sjsage522/dealscout/pkg/errors"
)

const uploadField = "file"

// uploadOverhead is the room left for multipart framing on top of the
// image limit.
const uploadOverhead = 64 << 10

// upload is a validated image from a multipart form.
type upload struct {
	Filename string
	MIME     string
	Data     []byte
}

// readImageUpload reads the "file" form field. The request body is capped
// before the form is parsed. The declared content type and the sniffed one
// must both be image/*, and the file must not exceed maxBytes.
func readImageUpload(c *gin.Context, maxBytes int64) (*upload, error) {
	limit := maxBytes + uploadOverhead
	if c.Request.ContentLength > limit {
		return nil, errors.NewResourceLimit(errors.StageUpload, tooLarge(maxBytes))
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	fh, err := c.FormFile(uploadField)
	if err != nil {
		var tooBig *http.MaxBytesError
		if stderrors.As(err, &tooBig) {
			return nil, errors.NewResourceLimit(errors.StageUpload, tooLarge(maxBytes))
		}
		return nil, errors.NewValidation(errors.StageUpload, "an image file is required in field \"file\"")
	}
	if !strings.HasPrefix(fh.Header.Get("Content-Type"), "image/") {
		return nil, errors.NewValidation(errors.StageUpload, "Only image files are allowed")
	}
	if fh.Size > maxBytes {
		return nil, errors.NewResourceLimit(errors.StageUpload, tooLarge(maxBytes))
	}

	f, err := fh.Open()
	if err != nil {
		return nil, errors.NewValidation(errors.StageUpload, "cannot read uploaded file")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, errors.NewValidation(errors.StageUpload, "cannot read uploaded file")
	}
	if int64(len(data)) > maxBytes {
		return nil, errors.NewResourceLimit(errors.StageUpload, tooLarge(maxBytes))
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, errors.NewValidation(errors.StageUpload, "Only image files are allowed")
	}

	return &upload{Filename: fh.Filename, MIME: mt.String(), Data: data}, nil
}

func tooLarge(maxBytes int64) string {
	return fmt.Sprintf("Image size must be under %dMB", maxBytes/(1024*1024))
}
