package main

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/hrygo/synapse/internal/profile"
	"github.com/hrygo/synapse/plugin/ai"
	"github.com/hrygo/synapse/plugin/ai/cache"
	"github.com/hrygo/synapse/plugin/ai/duplicate"
	"github.com/hrygo/synapse/plugin/ai/router"
	"github.com/hrygo/synapse/plugin/ai/vector"
	serverai "github.com/hrygo/synapse/server/ai"
	"github.com/hrygo/synapse/server/middleware"
	"github.com/hrygo/synapse/server/retrieval"
	"github.com/hrygo/synapse/server/runner/embedding"
	"github.com/hrygo/synapse/store"
	"github.com/hrygo/synapse/store/db"
	"github.com/hrygo/synapse/store/db/postgres"
)

// appOptions are the per-invocation settings that are not part of the profile.
type appOptions struct {
	offline     bool
	resultLimit int
}

// app wires the retrieval engine for one CLI invocation.
type app struct {
	profile *profile.Profile
	store   *store.Store

	embedder     *serverai.Embedder
	index        *vector.LocalIndex
	remote       *postgres.VectorStore
	redis        *cache.RedisTier
	monitor      *router.StaticMonitor
	runner       *embedding.Runner
	orchestrator *retrieval.Orchestrator
	detector     *duplicate.Detector
}

func newApp(ctx context.Context, p *profile.Profile, opts appOptions) (*app, error) {
	tier, err := router.ParseTier(p.Tier)
	if err != nil {
		return nil, err
	}

	driver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, err
	}
	a := &app{profile: p, store: store.New(driver)}

	model, err := ai.NewOpenAIModel(ai.NewConfigFromProfile(p))
	if err != nil {
		a.close()
		return nil, errors.Wrap(err, "failed to create embedding model")
	}

	embedderOpts := []serverai.EmbedderOption{serverai.WithBatchConcurrency(p.EmbedConcurrency)}
	if p.CacheRedisAddr != "" {
		cfg := cache.DefaultRedisConfig()
		cfg.Addr = p.CacheRedisAddr
		cfg.Password = p.CacheRedisPassword
		a.redis, err = cache.NewRedisTier(ctx, cfg)
		if err != nil {
			// The in-memory cache still works; Redis only saves regeneration.
			slog.Warn("embedding cache tier unavailable", "addr", p.CacheRedisAddr, "error", err)
		} else {
			embedderOpts = append(embedderOpts, serverai.WithTier(a.redis))
		}
	}
	a.embedder = serverai.NewEmbedder(model, cache.NewEmbeddingCache(p.CacheCapacity), embedderOpts...)
	a.index = vector.NewLocalIndex(a.embedder.Version())

	var remote store.RemoteVectorService
	if a.remote, err = db.NewRemoteIndex(ctx, p); err != nil {
		slog.Warn("remote vector index unavailable, searching locally", "error", err)
	} else if a.remote != nil {
		guardCfg := middleware.DefaultRemoteGuardConfig()
		guardCfg.Timeout = p.RemoteTimeout
		guardCfg.RPS = p.RemoteRPS
		remote = middleware.NewRemoteGuard(a.remote, guardCfg)
	}

	network := store.NetworkOnline
	if opts.offline {
		network = store.NetworkOffline
	}
	a.monitor = router.NewStaticMonitor(network)

	runnerOpts := []embedding.Option{
		embedding.WithBatchSize(p.IndexBatchSize),
		embedding.WithInterval(p.IndexInterval),
	}
	if remote != nil {
		runnerOpts = append(runnerOpts, embedding.WithRemote(remote))
	}
	a.runner = embedding.NewRunner(a.store, a.embedder, a.index, runnerOpts...)
	a.detector = duplicate.NewDetector(a.embedder, a.index, a.store)

	a.orchestrator = retrieval.NewOrchestrator(retrieval.Config{
		Embedder: a.embedder,
		Index:    a.index,
		Nodes:    a.store,
		Remote:   remote,
		Router: router.NewService(router.Config{
			Flags:   p.Flags,
			Quota:   a.store,
			Network: a.monitor,
		}),
		Tier:              tier,
		HasUserCredential: p.HasUserCredential(),
		RemoteTopK:        p.RemoteTopK,
		ResultLimit:       opts.resultLimit,
	})
	return a, nil
}

// warm loads every stored node into the local index. Embeddings come from
// the cache tiers when available.
func (a *app) warm(ctx context.Context) (embedding.Report, error) {
	nodes, err := a.store.ListNodes(ctx, &store.FindNode{})
	if err != nil {
		return embedding.Report{}, err
	}
	report := a.runner.EnsureIndexed(ctx, nodes)
	slog.Debug("local index warmed",
		"indexed", report.Indexed,
		"skipped", report.Skipped,
		"failed", report.Failed)
	return report, nil
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			slog.Warn("failed to close redis", "error", err)
		}
	}
	if a.remote != nil {
		if err := a.remote.Close(); err != nil {
			slog.Warn("failed to close remote index", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("failed to close node store", "error", err)
		}
	}
}
