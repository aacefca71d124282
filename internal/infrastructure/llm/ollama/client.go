package ollama

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
)

// Client talks to an Ollama server hosting a vision model. It implements
// ports.VisionModel.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	keepAlive  string
}

type Option func(*Client)

// WithHTTPClient replaces the default client. Per-call deadlines come from
// the request context.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithKeepAlive(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.keepAlive = d.String()
		}
	}
}

func New(baseURL, model string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 180 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generateRequest struct {
	Model     string         `json:"model"`
	Prompt    string         `json:"prompt"`
	Images    []string       `json:"images,omitempty"`
	Stream    bool           `json:"stream"`
	Format    string         `json:"format,omitempty"`
	KeepAlive string         `json:"keep_alive,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate sends the prompt with every page image attached and returns the
// model's raw text.
func (c *Client) Generate(ctx context.Context, req domain.VisionRequest) (string, error) {
	images, err := encodeImages(req.ImagePaths)
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, req.Operation, err)
	}

	payload := generateRequest{
		Model:     c.model,
		Prompt:    req.Prompt,
		Images:    images,
		Stream:    false,
		Format:    "json",
		KeepAlive: c.keepAlive,
		Options:   map[string]any{"temperature": 0},
	}

	var response generateResponse
	if err := c.postJSON(ctx, "/api/generate", payload, &response, req.Operation); err != nil {
		return "", mapTransportError(ctx, req.Operation, err)
	}
	return strings.TrimSpace(response.Response), nil
}

func encodeImages(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read page image: %w", err)
		}
		out = append(out, base64.StdEncoding.EncodeToString(raw))
	}
	return out, nil
}
