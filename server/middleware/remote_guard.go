package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"

	aierrors "github.com/hrygo/synapse/internal/errors"
	"github.com/hrygo/synapse/plugin/ai/timeout"
	"github.com/hrygo/synapse/store"
)

// RemoteGuardConfig configures RemoteGuard.
type RemoteGuardConfig struct {
	// Timeout bounds each remote call, including the rate limiter wait.
	Timeout time.Duration

	// RPS and Burst limit calls per operation.
	RPS   float64
	Burst int

	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int

	// OpenTimeout is how long the circuit stays open before probing again.
	OpenTimeout time.Duration
}

// DefaultRemoteGuardConfig returns the default configuration.
func DefaultRemoteGuardConfig() RemoteGuardConfig {
	return RemoteGuardConfig{
		Timeout:          timeout.RemoteQueryTimeout,
		RPS:              5,
		Burst:            10,
		FailureThreshold: 5,
		OpenTimeout:      timeout.CircuitOpenTimeout,
	}
}

// RemoteGuard wraps a RemoteVectorService with a per-call timeout, a rate
// limiter and a circuit breaker. Failures are reported as REMOTE_TIMEOUT or
// REMOTE_FAILURE errors.
type RemoteGuard struct {
	next    store.RemoteVectorService
	breaker circuitbreaker.CircuitBreaker[struct{}]
	limiter *RateLimiter
	timeout time.Duration
}

var _ store.RemoteVectorService = (*RemoteGuard)(nil)

// NewRemoteGuard creates a guard around next.
func NewRemoteGuard(next store.RemoteVectorService, cfg RemoteGuardConfig) *RemoteGuard {
	def := DefaultRemoteGuardConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	threshold := uint32(cfg.FailureThreshold) // #nosec G115 -- bounds checked above

	return &RemoteGuard{
		next: next,
		breaker: circuitbreaker.New[struct{}](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    cfg.OpenTimeout,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
		}),
		limiter: NewRateLimiter(cfg.RPS, cfg.Burst),
		timeout: cfg.Timeout,
	}
}

// Query runs a guarded remote top-K query.
func (g *RemoteGuard) Query(ctx context.Context, vector []float32, topK int) ([]store.RemoteMatch, error) {
	var matches []store.RemoteMatch
	err := g.do(ctx, "query", func(ctx context.Context) error {
		var err error
		matches, err = g.next.Query(ctx, vector, topK)
		return err
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// Upsert runs a guarded remote upsert.
func (g *RemoteGuard) Upsert(ctx context.Context, nodeID string, vector []float32) error {
	return g.do(ctx, "upsert", func(ctx context.Context) error {
		return g.next.Upsert(ctx, nodeID, vector)
	})
}

// CircuitState returns the circuit breaker state name.
func (g *RemoteGuard) CircuitState() string {
	return g.breaker.State().String()
}

func (g *RemoteGuard) do(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	invoked := false
	_, err := g.breaker.Execute(callCtx, func(ctx context.Context) (struct{}, error) {
		invoked = true
		if err := g.limiter.Wait(ctx, op); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, fn(ctx)
	})
	if err == nil {
		slog.Debug("remote call completed", "op", op, "latency_ms", time.Since(start).Milliseconds())
		return nil
	}

	slog.Warn("remote call failed",
		"op", op,
		"error", err,
		"circuit", g.breaker.State().String(),
		"latency_ms", time.Since(start).Milliseconds())

	switch {
	case !invoked:
		return aierrors.RemoteFailure("remote "+op+" rejected: circuit open", err)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return aierrors.RemoteTimeout("remote "+op+" timed out", err)
	default:
		return aierrors.RemoteFailure("remote "+op+" failed", err)
	}
}
