package genai

import (
	"context"
	"strings"
	"sync"

	"quill/internal/config"
	"quill/internal/services"
)

// Client issues generation calls against a single model.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Registry resolves model identifiers to clients. Identifiers listed in the
// ollama config are served by the local ollama server and exempt from pacing;
// everything else goes through the remote chat API.
type Registry struct {
	cfg *config.Config

	mu    sync.Mutex
	cache map[string]Client
}

// NewRegistry constructs a registry over the given configuration.
func NewRegistry(cfg *config.Config) *Registry {
	return &Registry{cfg: cfg, cache: make(map[string]Client)}
}

// Resolve returns the client for model and whether it is locally hosted.
// Unknown or unusable identifiers surface as configuration errors.
func (r *Registry) Resolve(model string) (Client, bool, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, false, services.Wrap(services.ErrConfiguration, "genai", "resolve", "empty model identifier", nil)
	}

	local := r.cfg.LocalModel(model)
	if !local && strings.TrimSpace(r.cfg.Remote.APIKey) == "" {
		return nil, false, services.Wrap(services.ErrConfiguration, "genai", "resolve",
			model+": remote model requires an api key", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if client, ok := r.cache[model]; ok {
		return client, local, nil
	}

	var client Client
	if local {
		client = NewOllamaClient(r.cfg.Ollama.BaseURL, model)
	} else {
		client = NewRemoteClient(RemoteConfig{
			APIKey:         r.cfg.Remote.APIKey,
			BaseURL:        r.cfg.Remote.BaseURL,
			Model:          model,
			TimeoutSeconds: r.cfg.Remote.TimeoutSeconds,
		})
	}
	r.cache[model] = client
	return client, local, nil
}
