// Package llm wraps the OpenAI-compatible chat, vision and image edit
// endpoints used by extraction and the image services.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"sjsage522/dealscout/config"
	"sjsage522/dealscout/logger"
	"sjsage522/dealscout/pkg/errors"
)

const (
	// DefaultImageSize is the only edit size the image services request.
	DefaultImageSize = "1024x1024"

	imageEditTimeout = 2 * time.Minute
)

// Client talks to an OpenAI-compatible API.
type Client struct {
	api         *openai.Client
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	chatModel   string
	visionModel string
	imageModel  string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	log         *logger.Logger
}

// New creates a client from the LLM section of cfg.
func New(cfg *config.Config) *Client {
	httpClient := &http.Client{}

	oc := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.OpenAIBaseURL, "/")
	}
	oc.HTTPClient = httpClient

	return &Client{
		api:         openai.NewClientWithConfig(oc),
		httpClient:  httpClient,
		baseURL:     oc.BaseURL,
		apiKey:      cfg.OpenAIAPIKey,
		chatModel:   cfg.ChatModel,
		visionModel: cfg.VisionModel,
		imageModel:  cfg.ImageModel,
		temperature: cfg.LLMTemperature,
		maxTokens:   cfg.LLMMaxTokens,
		timeout:     cfg.LLMTimeout,
		log:         logger.ForComponent("llm"),
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Complete sends a system and a user message to the chat model and returns
// the text of the first choice.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	return c.chat(ctx, c.chatModel, c.maxTokens, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: user},
	})
}

// Vision asks the vision model about an image. mimeType defaults to
// image/png. maxTokens of zero uses the configured limit.
func (c *Client) Vision(ctx context.Context, system, prompt string, image []byte, mimeType string, maxTokens int) (string, error) {
	if mimeType == "" {
		mimeType = "image/png"
	}
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	dataURI := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)

	var msgs []openai.ChatCompletionMessage
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
				URL:    dataURI,
				Detail: openai.ImageURLDetailAuto,
			}},
		},
	})
	return c.chat(ctx, c.visionModel, maxTokens, msgs)
}

func (c *Client) chat(ctx context.Context, model string, maxTokens int, msgs []openai.ChatCompletionMessage) (string, error) {
	if !c.Configured() {
		return "", errors.NewConfiguration("OPENAI_API_KEY is not set", nil)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: requestTemperature(c.temperature),
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.NewMalformed("llm", "completion has no choices", nil)
	}

	c.log.Debug().
		Str("model", model).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("Chat completion")

	return resp.Choices[0].Message.Content, nil
}

// requestTemperature keeps a zero temperature on the wire. The request
// field is omitempty, and an omitted temperature means the provider default.
func requestTemperature(t float32) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

// classify maps provider errors onto the service error types.
func classify(err error) error {
	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return errors.New(errors.ErrorTypeRateLimit, "llm", apiErr.Message, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return errors.NewConfiguration("LLM credentials rejected", err)
		}
	}
	return errors.NewUpstream("llm", "completion request failed", err)
}

type imageEditResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// EditImage sends a PNG and a prompt to the image edit endpoint and returns
// the decoded PNG of the first result.
func (c *Client) EditImage(ctx context.Context, pngData []byte, prompt, size string) ([]byte, error) {
	if !c.Configured() {
		return nil, errors.NewConfiguration("OPENAI_API_KEY is not set", nil)
	}
	if size == "" {
		size = DefaultImageSize
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range map[string]string{"model": c.imageModel, "prompt": prompt, "size": size, "n": "1"} {
		if err := w.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="image.png"`)
	h.Set("Content-Type", "image/png")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(pngData); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, imageEditTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/edits", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewUpstream(errors.StageImage, "image edit request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewUpstream(errors.StageImage, "read image edit response", err)
	}

	var out imageEditResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("image edit returned status %d", resp.StatusCode)
		if decodeErr == nil && out.Error != nil {
			msg += ": " + out.Error.Message
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, errors.New(errors.ErrorTypeRateLimit, errors.StageImage, msg, nil)
		}
		return nil, errors.NewUpstream(errors.StageImage, msg, nil)
	}
	if decodeErr != nil {
		return nil, errors.NewMalformed(errors.StageImage, "image edit response is not JSON", decodeErr)
	}
	if len(out.Data) == 0 || out.Data[0].B64JSON == "" {
		return nil, errors.NewMalformed(errors.StageImage, "image edit response has no image", nil)
	}

	img, err := base64.StdEncoding.DecodeString(out.Data[0].B64JSON)
	if err != nil {
		return nil, errors.NewMalformed(errors.StageImage, "image edit payload is not base64", err)
	}

	c.log.Debug().Dur("took", time.Since(started)).Int("bytes", len(img)).Msg("Image edited")
	return img, nil
}
