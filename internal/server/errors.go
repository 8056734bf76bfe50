package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sjsage522/dealscout/logger"
	"sjsage522/dealscout/pkg/errors"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	Timestamp string `json:"timestamp"`
}

func errorBody(msg, detail string) ErrorResponse {
	return ErrorResponse{
		Success:   false,
		Error:     msg,
		Detail:    detail,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// writeError renders err with the status of its type. Wrapped causes are
// logged, never returned to the client.
func writeError(c *gin.Context, err error) {
	e, ok := errors.As(err)
	if !ok {
		logger.ForComponent("http").Error().Err(err).Str("path", c.Request.URL.Path).Msg("Unhandled error")
		c.JSON(http.StatusInternalServerError, errorBody("Internal server error", ""))
		return
	}

	status := e.HTTPStatus()
	ev := logger.ForComponent("http").Warn()
	if status >= http.StatusInternalServerError {
		ev = logger.ForComponent("http").Error()
	}
	ev.Err(e.Err).
		Str("type", string(e.Type)).
		Str("stage", e.Stage).
		Str("path", c.Request.URL.Path).
		Msg(e.Message)

	detail := ""
	if e.Stage != "" {
		detail = "stage: " + e.Stage
	}
	c.JSON(status, errorBody(e.Message, detail))
}
