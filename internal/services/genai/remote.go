package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"quill/internal/services"
)

const defaultRemoteTimeout = 120 * time.Second

// RemoteConfig captures the settings required to talk to a hosted chat
// completion API.
type RemoteConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// RemoteClient wraps an OpenRouter-compatible chat completion API.
type RemoteClient struct {
	cfg        RemoteConfig
	httpClient *http.Client
}

// RemoteOption customizes the client.
type RemoteOption func(*RemoteClient)

// WithRemoteHTTPClient overrides the default HTTP client.
func WithRemoteHTTPClient(client *http.Client) RemoteOption {
	return func(c *RemoteClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewRemoteClient constructs a remote chat client.
func NewRemoteClient(cfg RemoteConfig, opts ...RemoteOption) *RemoteClient {
	timeout := defaultRemoteTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &RemoteClient{
		cfg: RemoteConfig{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.BaseURL == "" {
		c.cfg.BaseURL = "https://openrouter.ai/api/v1/chat/completions"
	}
	return c
}

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate issues a chat completion call and returns the assistant content.
func (c *RemoteClient) Generate(ctx context.Context, req Request) (string, error) {
	if c.cfg.APIKey == "" {
		return "", services.Wrap(services.ErrConfiguration, "genai", "generate", c.cfg.Model+": api key required", nil)
	}

	message := chatMessage{Role: "user", Content: req.Prompt}
	if req.ImagePath != "" {
		dataURI, err := imageDataURI(req.ImagePath)
		if err != nil {
			return "", services.Wrap(services.ErrConfiguration, "genai", "generate", "read image attachment", err)
		}
		message.Content = []chatContentPart{
			{Type: "text", Text: req.Prompt},
			{Type: "image_url", ImageURL: &chatImageURL{URL: dataURI}},
		}
	}

	payload := chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{message},
		Temperature: 0,
	}
	if req.WantsJSON() {
		payload.ResponseFormat = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "response",
				"schema": req.Schema,
			},
		}
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "genai", "generate", "encode body", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "genai", "generate", "new request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "genai", "generate", c.cfg.Model, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "genai", "generate", "read body", err)
	}
	if resp.StatusCode != http.StatusOK {
		marker := services.ErrTransient
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			marker = services.ErrConfiguration
		}
		return "", services.Wrap(marker, "genai", "generate",
			fmt.Sprintf("%s: http %d: %s", c.cfg.Model, resp.StatusCode, payloadSnippet(string(body))), nil)
	}

	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", services.Wrap(services.ErrInvalidResponse, "genai", "generate", "decode response", err)
	}
	if decoded.Error != nil {
		return "", services.Wrap(services.ErrTransient, "genai", "generate", strings.TrimSpace(decoded.Error.Message), nil)
	}
	for _, choice := range decoded.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
	}
	return "", services.Wrap(services.ErrInvalidResponse, "genai", "generate", c.cfg.Model+": empty choices", nil)
}

func imageDataURI(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	mime := "image/png"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		mime = "image/jpeg"
	case ".webp":
		mime = "image/webp"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
