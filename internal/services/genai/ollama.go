package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"quill/internal/services"
)

const defaultOllamaTimeout = 5 * time.Minute

// OllamaClient talks to a locally hosted ollama server's generate endpoint.
type OllamaClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// OllamaOption customizes the client.
type OllamaOption func(*OllamaClient)

// WithOllamaHTTPClient overrides the default HTTP client.
func WithOllamaHTTPClient(client *http.Client) OllamaOption {
	return func(c *OllamaClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewOllamaClient constructs a client for the given base URL
// (e.g. "http://localhost:11434") and model identifier.
func NewOllamaClient(baseURL, model string, opts ...OllamaOption) *OllamaClient {
	c := &OllamaClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		model:      strings.TrimSpace(model),
		httpClient: &http.Client{Timeout: defaultOllamaTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ollamaGenerateRequest struct {
	Model  string          `json:"model"`
	Prompt string          `json:"prompt"`
	Images []string        `json:"images,omitempty"`
	Format json.RawMessage `json:"format,omitempty"`
	Stream bool            `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Generate issues a single non-streaming generate call and returns the raw
// response text.
func (c *OllamaClient) Generate(ctx context.Context, req Request) (string, error) {
	payload := ollamaGenerateRequest{
		Model:  c.model,
		Prompt: req.Prompt,
		Format: req.Schema,
	}
	if req.ImagePath != "" {
		data, err := os.ReadFile(req.ImagePath)
		if err != nil {
			return "", services.Wrap(services.ErrConfiguration, "genai", "generate", "read image attachment", err)
		}
		payload.Images = []string{base64.StdEncoding.EncodeToString(data)}
	}

	endpoint, err := url.JoinPath(c.baseURL, "api", "generate")
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "genai", "generate", "build url", err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "genai", "generate", "encode body", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "genai", "generate", "new request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "genai", "generate", c.model, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "genai", "generate", "read body", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", services.Wrap(services.ErrTransient, "genai", "generate",
			fmt.Sprintf("%s: http %d: %s", c.model, resp.StatusCode, payloadSnippet(string(body))), nil)
	}

	var decoded ollamaGenerateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", services.Wrap(services.ErrInvalidResponse, "genai", "generate", "decode response", err)
	}
	if decoded.Error != "" {
		return "", services.Wrap(services.ErrTransient, "genai", "generate", decoded.Error, nil)
	}
	if strings.TrimSpace(decoded.Response) == "" {
		return "", services.Wrap(services.ErrInvalidResponse, "genai", "generate", c.model+": empty response", nil)
	}
	return decoded.Response, nil
}
