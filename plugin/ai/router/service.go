package router

import (
	"context"
	"errors"
	"log/slog"
	"time"

	aierrors "github.com/hrygo/synapse/internal/errors"
	"github.com/hrygo/synapse/plugin/ai/timeout"
	"github.com/hrygo/synapse/store"
)

// DefaultQuotaTimeout bounds every call to the quota ledger.
const DefaultQuotaTimeout = timeout.QuotaTimeout

// Service applies Decide and performs its side effect: a remote decision on
// platform quota consumes one credit before the remote call is made.
type Service struct {
	flags        store.FeatureFlags
	quota        store.QuotaLedger
	network      store.NetworkMonitor
	quotaTimeout time.Duration
}

// Config contains the configuration for the router service.
type Config struct {
	Flags        store.FeatureFlags
	Quota        store.QuotaLedger
	Network      store.NetworkMonitor
	QuotaTimeout time.Duration
}

// NewService creates a new router service. Nil flags mean every flag is off.
func NewService(cfg Config) *Service {
	if cfg.Flags == nil {
		cfg.Flags = NoFlags{}
	}
	if cfg.QuotaTimeout <= 0 {
		cfg.QuotaTimeout = DefaultQuotaTimeout
	}
	return &Service{
		flags:        cfg.Flags,
		quota:        cfg.Quota,
		network:      cfg.Network,
		quotaTimeout: cfg.QuotaTimeout,
	}
}

// Flags returns the feature flags the service routes with.
func (s *Service) Flags() store.FeatureFlags {
	return s.flags
}

// Environment samples the network monitor and the quota ledger.
// A ledger failure is logged and reported as zero remaining quota.
func (s *Service) Environment(ctx context.Context, tier Tier, hasUserCredential bool) Environment {
	env := Environment{
		Network:           store.NetworkUnknown,
		Tier:              tier,
		HasUserCredential: hasUserCredential,
	}
	if s.network != nil {
		env.Network = s.network.CurrentState()
	}
	if s.quota != nil {
		qctx, cancel := context.WithTimeout(ctx, s.quotaTimeout)
		defer cancel()
		remaining, err := s.quota.Remaining(qctx)
		if err != nil {
			slog.Warn("failed to read remaining quota", "error", err)
		} else {
			env.RemainingQuota = remaining
		}
	}
	return env
}

// Route decides the path for a task and, for a platform-funded remote
// decision, consumes one credit. The credit is not refunded if the remote
// call later fails. When consumption fails the decision is returned with an
// error and the remote call must not proceed.
func (s *Service) Route(ctx context.Context, task Task, env Environment) (Decision, error) {
	start := time.Now()
	decision := Decide(task, env, s.flags)

	slog.Debug("task routed",
		"task", task.Kind.String(),
		"items", task.ItemCount,
		"tier", string(env.Tier),
		"network", env.Network.String(),
		"mode", decision.Mode.String(),
		"reason", decision.Reason,
		"latency_ms", time.Since(start).Milliseconds())

	if decision.Mode != ModeRemote || decision.Reason == ReasonUserCredential {
		return decision, nil
	}

	if err := s.consume(ctx); err != nil {
		return decision, err
	}
	return decision, nil
}

func (s *Service) consume(ctx context.Context) error {
	if s.quota == nil {
		return aierrors.InsufficientCredits("no quota ledger configured")
	}

	qctx, cancel := context.WithTimeout(ctx, s.quotaTimeout)
	defer cancel()

	err := s.quota.Consume(qctx, 1)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrInsufficientCredits):
		return aierrors.InsufficientCredits("remote quota exhausted").WithContext("cause", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return aierrors.RemoteTimeout("quota consumption timed out", err)
	default:
		return aierrors.RemoteFailure("quota consumption failed", err)
	}
}
