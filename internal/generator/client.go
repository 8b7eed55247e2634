package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"unlockstudio/internal/domain"
	"unlockstudio/internal/infra"
)

// DefaultTimeout bounds a generation request end to end.
const DefaultTimeout = 2 * time.Minute

const (
	textToImagePath  = "/api/generate"
	imageToImagePath = "/api/generate-image-to-image"
	maxResponseBytes = 64 << 20
)

// Options configures the generation API client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client calls the external image generation API.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *infra.Logger
}

// Request is one generation call.
type Request struct {
	Mode      domain.Mode
	Prompt    string
	Size      string
	InitImage string
	Weight    float64
}

type textPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

type textToImageBody struct {
	Prompt string `json:"prompt"`
	Size   string `json:"size,omitempty"`
}

type imageToImageBody struct {
	TextPrompts []textPrompt `json:"text_prompts"`
	InitImage   string       `json:"init_image"`
	Size        string       `json:"size,omitempty"`
}

type responseArtifact struct {
	URL    string `json:"url,omitempty"`
	Base64 string `json:"base64,omitempty"`
}

type generateResponse struct {
	Artifacts []responseArtifact `json:"artifacts"`
	Error     string             `json:"error"`
	Code      string             `json:"code"`
	Kind      string             `json:"kind"`
}

// NewClient constructs a client with defaults applied.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("generator: base url is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &Client{baseURL: baseURL, timeout: timeout, httpClient: httpClient, logger: logger}, nil
}

// Timeout returns the configured client-side timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Generate performs one request and returns the usable artifacts. Artifacts
// without a url or base64 payload are dropped; an empty result is an error.
func (c *Client) Generate(ctx context.Context, req Request) ([]domain.Artifact, error) {
	path, body, err := c.encode(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("generator: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.transportError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, c.transportError(ctx, err)
	}
	c.logger.Debug().Str("path", path).Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("generator: response")

	var payload generateResponse
	decodeErr := json.Unmarshal(raw, &payload)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(payload.Error)
		if decodeErr != nil || msg == "" {
			msg = fmt.Sprintf("generation failed with status %d", resp.StatusCode)
		}
		return nil, Classify(msg, firstNonEmpty(payload.Kind, payload.Code))
	}
	if decodeErr != nil {
		return nil, domain.NewError(domain.KindGeneration, "invalid response from generation service", decodeErr)
	}

	artifacts := usableArtifacts(payload.Artifacts)
	if len(artifacts) == 0 {
		return nil, domain.NewError(domain.KindGeneration, "no images were generated", nil)
	}
	return artifacts, nil
}

func (c *Client) encode(req Request) (string, []byte, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", nil, domain.NewError(domain.KindGeneration, "prompt is required", domain.ErrInvalidPrompt)
	}
	var (
		path string
		v    any
	)
	switch req.Mode {
	case domain.ModeImageToImage:
		initImage := strings.TrimSpace(req.InitImage)
		if initImage == "" {
			return "", nil, domain.NewError(domain.KindGeneration, "an input image is required", domain.ErrInvalidPrompt)
		}
		weight := req.Weight
		if weight <= 0 {
			weight = 1
		}
		path = imageToImagePath
		v = imageToImageBody{
			TextPrompts: []textPrompt{{Text: prompt, Weight: weight}},
			InitImage:   stripDataPrefix(initImage),
			Size:        strings.TrimSpace(req.Size),
		}
	default:
		path = textToImagePath
		v = textToImageBody{Prompt: prompt, Size: strings.TrimSpace(req.Size)}
	}
	body, err := json.Marshal(v)
	if err != nil {
		return "", nil, fmt.Errorf("generator: encode request: %w", err)
	}
	return path, body, nil
}

func (c *Client) transportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		c.logger.Warn().Dur("timeout", c.timeout).Msg("generator: request timed out")
		return domain.NewError(domain.KindTimeout, "request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return domain.NewError(domain.KindGeneration, "request was cancelled", err)
	}
	return domain.NewError(domain.KindGeneration, "generation service unavailable", err)
}

func usableArtifacts(in []responseArtifact) []domain.Artifact {
	out := make([]domain.Artifact, 0, len(in))
	for _, a := range in {
		var src string
		switch {
		case strings.TrimSpace(a.URL) != "":
			src = strings.TrimSpace(a.URL)
		case strings.TrimSpace(a.Base64) != "":
			src = toDataURI(strings.TrimSpace(a.Base64))
		default:
			continue
		}
		out = append(out, domain.Artifact{Index: len(out), PreviewURL: src, FullURL: src})
	}
	return out
}

func toDataURI(b64 string) string {
	if domain.IsDataURI(b64) {
		return b64
	}
	return "data:image/png;base64," + b64
}

func stripDataPrefix(raw string) string {
	if !domain.IsDataURI(raw) {
		return raw
	}
	if i := strings.IndexByte(raw, ','); i >= 0 {
		return raw[i+1:]
	}
	return raw
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
