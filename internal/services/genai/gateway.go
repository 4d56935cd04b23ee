package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"quill/internal/logging"
	"quill/internal/services"
)

// BackoffPolicy governs retry and pacing behavior for generation calls.
// MaxRetries counts additional attempts beyond the first; RetryDelay is the
// fixed sleep before each retry; PacingDelay is the fixed pre-call delay for
// externally rate-limited (non-local) models.
type BackoffPolicy struct {
	MaxRetries  int
	RetryDelay  time.Duration
	PacingDelay time.Duration
}

// DefaultBackoffPolicy returns the stock policy of two retries 45 seconds
// apart with 30 second remote pacing.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		MaxRetries:  2,
		RetryDelay:  45 * time.Second,
		PacingDelay: 30 * time.Second,
	}
}

// Resolver maps a model identifier to a client and its locality.
type Resolver interface {
	Resolve(model string) (Client, bool, error)
}

// Gateway routes generation calls through its backoff policy. Transient
// failures are retried up to MaxRetries additional attempts with a fixed
// delay; remote models additionally receive a fixed pre-call pacing delay
// before every call after the gateway's first.
type Gateway struct {
	resolver Resolver
	policy   BackoffPolicy
	sleeper  func(ctx context.Context, d time.Duration) error
	logger   *slog.Logger

	mu         sync.Mutex
	remoteSeen bool
}

// GatewayOption customizes the gateway.
type GatewayOption func(*Gateway)

// WithBackoffPolicy replaces the gateway's backoff policy.
func WithBackoffPolicy(policy BackoffPolicy) GatewayOption {
	return func(g *Gateway) {
		g.policy = policy
	}
}

// WithSleeper overrides how delays are performed (useful for tests).
func WithSleeper(sleeper func(ctx context.Context, d time.Duration) error) GatewayOption {
	return func(g *Gateway) {
		if sleeper != nil {
			g.sleeper = sleeper
		}
	}
}

// WithLogger attaches a logger to the gateway.
func WithLogger(logger *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logging.WithComponent(logger, "genai")
		}
	}
}

// NewGateway constructs a gateway over the given resolver.
func NewGateway(resolver Resolver, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		resolver: resolver,
		policy:   DefaultBackoffPolicy(),
		sleeper:  sleepContext,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Call resolves model and issues the request under the gateway's policy.
// Configuration and invalid-response failures surface immediately; transient
// failures are retried until the attempt budget is exhausted.
func (g *Gateway) Call(ctx context.Context, model string, req Request) (string, error) {
	client, local, err := g.resolver.Resolve(model)
	if err != nil {
		return "", err
	}

	attempts := g.policy.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := g.sleeper(ctx, g.policy.RetryDelay); err != nil {
				return "", err
			}
		}
		if !local {
			if err := g.pace(ctx); err != nil {
				return "", err
			}
		}

		response, err := client.Generate(ctx, req)
		if err == nil {
			return response, nil
		}
		lastErr = err
		if !services.Retryable(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		g.logger.Warn("generation attempt failed",
			logging.String(logging.FieldModel, model),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", attempts),
			logging.Error(err))
	}
	return "", fmt.Errorf("generate with %s: failed after %d attempts: %w", model, attempts, lastErr)
}

// pace applies the pre-call delay for rate-limited services. The gateway's
// very first remote call is exempt.
func (g *Gateway) pace(ctx context.Context) error {
	g.mu.Lock()
	first := !g.remoteSeen
	g.remoteSeen = true
	g.mu.Unlock()
	if first || g.policy.PacingDelay <= 0 {
		return nil
	}
	return g.sleeper(ctx, g.policy.PacingDelay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
