package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	aierrors "github.com/hrygo/synapse/internal/errors"
	"github.com/hrygo/synapse/plugin/ai"
	"github.com/hrygo/synapse/plugin/ai/router"
	"github.com/hrygo/synapse/plugin/ai/vector"
	"github.com/hrygo/synapse/server/internal/observability"
	"github.com/hrygo/synapse/store"
)

const (
	// MaxRemoteTopK caps the remote candidate count.
	MaxRemoteTopK = 50
	// relatedLimit is the number of related nodes attached to each result.
	relatedLimit = 3
	// maxQueryLength rejects pathological queries before embedding.
	maxQueryLength = 1000
)

// ErrSuperseded is returned by a session search that was overtaken by a newer
// search on the same session. Its results are discarded.
var ErrSuperseded = errors.New("search superseded by a newer search")

// QueryEmbedder produces query embeddings on-device.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) (ai.TextEmbedding, error)
	EmbeddingsGenerated() int64
}

// Config configures an Orchestrator.
type Config struct {
	Embedder QueryEmbedder
	Index    *vector.LocalIndex
	Nodes    store.NodeStore
	// Remote is optional; without it remote decisions fall back to local.
	Remote store.RemoteVectorService
	Router *router.Service

	Tier              router.Tier
	HasUserCredential bool

	Weights     RankingWeights
	RemoteTopK  int
	ResultLimit int
	// MinMultiModalTier is the lowest tier allowed to run MultiModalSearch.
	MinMultiModalTier router.Tier
	HistoryCapacity   int
}

// Orchestrator answers searches from the local index and, when routed
// remote, from the remote vector service.
type Orchestrator struct {
	embedder QueryEmbedder
	index    *vector.LocalIndex
	nodes    store.NodeStore
	remote   store.RemoteVectorService
	router   *router.Service

	tier              router.Tier
	hasUserCredential bool
	weights           RankingWeights
	remoteTopK        int
	resultLimit       int
	minMultiModalTier router.Tier

	history *History
	metrics *observability.SearchMetrics
	now     func() time.Time
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.RemoteTopK <= 0 || cfg.RemoteTopK > MaxRemoteTopK {
		cfg.RemoteTopK = MaxRemoteTopK
	}
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = cfg.RemoteTopK
	}
	if cfg.Weights == (RankingWeights{}) {
		cfg.Weights = DefaultRankingWeights()
	}
	if cfg.Tier == "" {
		cfg.Tier = router.TierFree
	}
	if cfg.MinMultiModalTier == "" {
		cfg.MinMultiModalTier = router.TierPlus
	}

	return &Orchestrator{
		embedder:          cfg.Embedder,
		index:             cfg.Index,
		nodes:             cfg.Nodes,
		remote:            cfg.Remote,
		router:            cfg.Router,
		tier:              cfg.Tier,
		hasUserCredential: cfg.HasUserCredential,
		weights:           cfg.Weights,
		remoteTopK:        cfg.RemoteTopK,
		resultLimit:       cfg.ResultLimit,
		minMultiModalTier: cfg.MinMultiModalTier,
		history:           NewHistory(cfg.HistoryCapacity),
		metrics:           observability.NewSearchMetrics(),
		now:               time.Now,
	}
}

// History returns the search history, newest first.
func (o *Orchestrator) History() []HistoryEntry {
	return o.history.Entries()
}

// Metrics returns the running counters.
func (o *Orchestrator) Metrics() Metrics {
	snap := o.metrics.Snapshot()
	m := Metrics{
		TotalSearches:      snap.TotalSearches,
		FailedSearches:     snap.FailedSearches,
		AverageResultCount: snap.AverageResultCount,
		SuccessRate:        snap.SuccessRate(),
		ByMode:             snap.ByMode,
	}
	if o.embedder != nil {
		m.EmbeddingsGenerated = o.embedder.EmbeddingsGenerated()
	}
	return m
}

// Search runs a local-only search and returns the top limit results.
// It never consults the router and never charges quota.
func (o *Orchestrator) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		return []SearchResult{}, nil
	}
	outcome, err := o.run(ctx, searchRequest{
		query: query,
		mode:  SearchLocalOnly,
		kind:  router.TaskSemanticSearch,
		limit: limit,
	}, nil)
	if err != nil {
		return nil, err
	}
	return outcome.Results, nil
}

// GlobalSearch embeds the query locally and answers it on the path chosen for
// mode. A remote failure falls back to local results and is reported on the
// outcome. INSUFFICIENT_CREDITS and FEATURE_UNAVAILABLE are returned as errors.
// A MODEL_UNAVAILABLE error comes with an empty outcome.
func (o *Orchestrator) GlobalSearch(ctx context.Context, query string, mode SearchMode) (*SearchOutcome, error) {
	return o.run(ctx, searchRequest{
		query: query,
		mode:  mode,
		kind:  router.TaskSemanticSearch,
		limit: o.resultLimit,
	}, nil)
}

// MultiModalSearch ranks nodes by the optional text and then keeps only those
// matching every present filter. Filtering never adds results. It is gated by
// the multi-modal flag and a minimum tier.
func (o *Orchestrator) MultiModalSearch(ctx context.Context, filters MultiModalFilters) (*SearchOutcome, error) {
	flags := o.flags()
	if !flags.IsEnabled(store.FlagMultiModalSearch) {
		o.metrics.RecordFailure()
		return nil, aierrors.FeatureUnavailable(store.FlagMultiModalSearch).WithMode("local").
			WithContext("reason", "flag disabled")
	}
	if !o.tier.AtLeast(o.minMultiModalTier) {
		o.metrics.RecordFailure()
		return nil, aierrors.FeatureUnavailable(store.FlagMultiModalSearch).WithMode("local").
			WithContext("tier", string(o.tier)).
			WithContext("required_tier", string(o.minMultiModalTier))
	}

	return o.run(ctx, searchRequest{
		query:   filters.Text,
		mode:    SearchAuto,
		kind:    router.TaskMultiModalSearch,
		limit:   o.resultLimit,
		filters: &filters,
	}, nil)
}

// FindSimilarNodes returns the nodes nearest to node, never node itself.
// An unindexed node is embedded from its content first.
func (o *Orchestrator) FindSimilarNodes(ctx context.Context, node *store.Node, limit int) ([]SearchResult, error) {
	if node == nil {
		return nil, aierrors.InvalidArgument("node is required")
	}
	if limit <= 0 {
		return []SearchResult{}, nil
	}

	var matches []vector.Match
	if o.index.Contains(node.ID) {
		var err error
		matches, err = o.index.FindSimilar(node.ID, limit)
		if err != nil {
			return nil, err
		}
	} else {
		emb, err := o.embedder.Embed(ctx, ai.PlainText(node.Content))
		if err != nil {
			return nil, err
		}
		// One extra candidate covers the node itself if it was indexed meanwhile.
		found, err := o.index.Search(emb, limit+1)
		if err != nil {
			return nil, err
		}
		for _, m := range found {
			if m.NodeID != node.ID && len(matches) < limit {
				matches = append(matches, m)
			}
		}
	}

	candidates := make(map[string]float64, len(matches))
	for _, m := range matches {
		candidates[m.NodeID] = clampSimilarity(m.Similarity)
	}
	results := o.buildResults(ctx, candidates, "", router.ModeLocal)
	sortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

type searchRequest struct {
	query   string
	mode    SearchMode
	kind    router.TaskKind
	limit   int
	filters *MultiModalFilters
}

// run executes one search. superseded, when non-nil, is consulted before
// results are committed to history and metrics.
func (o *Orchestrator) run(ctx context.Context, req searchRequest, superseded func() bool) (*SearchOutcome, error) {
	ctx, rc := observability.Ensure(ctx, "search")
	started := o.now()
	outcome := &SearchOutcome{
		Results:   []SearchResult{},
		Requested: req.mode,
		Attempted: router.ModeLocal,
		Ran:       router.ModeLocal,
		StartedAt: started,
	}

	fail := func(err error) (*SearchOutcome, error) {
		if superseded != nil && superseded() {
			// Cancelled by the newer search; its own error does not matter.
			return nil, ErrSuperseded
		}
		var aiErr *aierrors.AIError
		if errors.As(err, &aiErr) && aiErr.Mode == "" {
			aiErr.WithMode(outcome.Attempted.String())
		}
		o.metrics.RecordFailure()
		code := aierrors.GetCodeFromError(err, aierrors.ErrCodeRemoteFailure)
		switch code {
		case aierrors.ErrCodeInvalidArgument, aierrors.ErrCodeFeatureUnavailable, aierrors.ErrCodeInsufficientCredits:
			rc.Warn("search rejected",
				slog.String(observability.LogFieldErrorCode, string(code)),
				slog.String("error", err.Error()))
		default:
			rc.Error("search failed", err, slog.String(observability.LogFieldErrorCode, string(code)))
		}
		return outcome, err
	}

	query := strings.TrimSpace(req.query)
	if len(query) > maxQueryLength {
		return fail(aierrors.InvalidArgument(fmt.Sprintf("query too long: %d characters (max %d)", len(query), maxQueryLength)))
	}
	if query == "" && req.filters == nil {
		return fail(aierrors.InvalidArgument("query is required"))
	}

	// The query embedding is always computed locally, whatever the route.
	var queryEmb ai.TextEmbedding
	if query != "" {
		emb, err := o.embedder.Embed(ctx, query)
		if err != nil {
			outcome.Reason = "query embedding unavailable"
			return fail(err)
		}
		queryEmb = emb
	}

	// A filter-only search has no vector to send remotely and always runs locally.
	decision := router.Decision{Mode: router.ModeLocal, Reason: "filter-only search runs locally"}
	var err error
	if !queryEmb.IsZero() {
		decision, err = o.decide(ctx, req)
	}
	outcome.Attempted = decision.Mode
	outcome.Ran = decision.Mode
	outcome.Reason = decision.Reason
	if err != nil {
		switch {
		case aierrors.IsCode(err, aierrors.ErrCodeRemoteTimeout), aierrors.IsCode(err, aierrors.ErrCodeRemoteFailure):
			// The quota ledger could not be reached; serve locally.
			o.fallback(outcome, req.kind, err)
		default:
			return fail(err)
		}
	}

	candidates := make(map[string]float64)
	switch outcome.Ran {
	case router.ModeDisabled:
		// Zero results; the reason explains why.
	case router.ModeRemote:
		if err := o.collectLocal(queryEmb, req, candidates); err != nil {
			return fail(err)
		}
		if err := o.collectRemote(ctx, queryEmb, candidates); err != nil {
			o.fallback(outcome, req.kind, err)
		}
	default:
		if err := o.collectLocal(queryEmb, req, candidates); err != nil {
			return fail(err)
		}
	}

	if outcome.Ran != router.ModeDisabled {
		results := o.buildResults(ctx, candidates, query, outcome.Ran)
		sortResults(results)
		if req.filters != nil {
			results = applyFilters(results, o.nodeLookup(ctx), *req.filters)
		}
		if len(results) > req.limit {
			results = results[:req.limit]
		}
		outcome.Results = results
	}

	if superseded != nil && superseded() {
		rc.Debug("discarding superseded search", slog.String("query", truncate(query, 50)))
		return nil, ErrSuperseded
	}

	historyQuery := query
	if req.filters != nil {
		historyQuery = req.filters.describe()
	}
	o.history.Add(HistoryEntry{
		Query:       historyQuery,
		Timestamp:   started,
		ResultCount: len(outcome.Results),
		Mode:        outcome.Ran,
	})
	o.metrics.RecordSearch(outcome.Ran.String(), len(outcome.Results), o.now().Sub(started))

	rc.Info("search completed",
		slog.String("requested", req.mode.String()),
		slog.String(observability.LogFieldMode, outcome.Ran.String()),
		slog.Bool("fallback", outcome.Fallback),
		slog.String("reason", outcome.Reason),
		slog.Int(observability.LogFieldResultCount, len(outcome.Results)),
		slog.Int64(observability.LogFieldDuration, rc.DurationMs()))

	return outcome, nil
}

// decide maps the requested mode to a routing decision. Only a remote
// decision on platform quota charges a credit.
func (o *Orchestrator) decide(ctx context.Context, req searchRequest) (router.Decision, error) {
	if req.mode == SearchLocalOnly || o.router == nil {
		return router.Decision{Mode: router.ModeLocal, Reason: "local search requested"}, nil
	}

	task := router.Task{Kind: req.kind, ItemCount: o.index.Len()}
	env := o.router.Environment(ctx, o.tier, o.hasUserCredential)

	if req.mode == SearchRemote {
		// Check first so a refused remote request never charges quota.
		if d := router.Decide(task, env, o.router.Flags()); d.Mode != router.ModeRemote {
			return d, aierrors.FeatureUnavailable("remote_search").WithMode("remote").
				WithContext("reason", d.Reason)
		}
	}
	return o.router.Route(ctx, task, env)
}

// fallback switches the outcome to the local path after a remote failure, or
// to disabled when the task has no local path.
func (o *Orchestrator) fallback(outcome *SearchOutcome, kind router.TaskKind, cause error) {
	outcome.RemoteErr = cause
	if kind.HasLocalPath() {
		outcome.Ran = router.ModeLocal
		outcome.Fallback = true
		outcome.Reason = "remote unavailable, showing local results: " + cause.Error()
		return
	}
	outcome.Ran = router.ModeDisabled
	outcome.Reason = "remote unavailable: " + cause.Error()
}

func (o *Orchestrator) collectLocal(queryEmb ai.TextEmbedding, req searchRequest, candidates map[string]float64) error {
	if queryEmb.IsZero() {
		// Filter-only multi-modal search: every indexed node is a candidate.
		for _, id := range o.index.IDs() {
			candidates[id] = 0
		}
		return nil
	}

	k := o.remoteTopK
	if req.limit > k {
		k = req.limit
	}
	matches, err := o.index.Search(queryEmb, k)
	if err != nil {
		return err
	}
	for _, m := range matches {
		mergeCandidate(candidates, m.NodeID, clampSimilarity(m.Similarity))
	}
	return nil
}

func (o *Orchestrator) collectRemote(ctx context.Context, queryEmb ai.TextEmbedding, candidates map[string]float64) error {
	if queryEmb.IsZero() {
		return nil
	}
	if o.remote == nil {
		return aierrors.RemoteFailure("no remote vector service configured", nil)
	}

	matches, err := o.remote.Query(ctx, queryEmb.Vector, o.remoteTopK)
	if err != nil {
		if aierrors.GetCodeFromError(err, "") == "" {
			err = aierrors.RemoteFailure("remote query failed", err)
		}
		return err
	}
	for _, m := range matches {
		mergeCandidate(candidates, m.NodeID, clampSimilarity(float64(m.RawSimilarity)))
	}
	return nil
}

// mergeCandidate keeps the highest similarity seen for a node.
func mergeCandidate(candidates map[string]float64, id string, sim float64) {
	if cur, ok := candidates[id]; !ok || sim > cur {
		candidates[id] = sim
	}
}

// buildResults loads each candidate node and scores it. Candidates the node
// store cannot resolve are dropped.
func (o *Orchestrator) buildResults(ctx context.Context, candidates map[string]float64, query string, mode router.Mode) []SearchResult {
	now := o.now()
	results := make([]SearchResult, 0, len(candidates))

	for id, raw := range candidates {
		node, err := o.nodes.GetNode(ctx, id)
		if err != nil || node == nil {
			slog.Debug("dropping unresolved search candidate", "node_id", id, "error", err)
			continue
		}

		recency := recencyBoost(node.CreatedAt, now)
		emotional := emotionalBoost(node)
		h := findFirstMatch(node.Content, query)

		results = append(results, SearchResult{
			NodeID:             id,
			RawSimilarity:      raw,
			RelevanceScore:     o.weights.relevance(raw, recency, emotional),
			HighlightedSnippet: highlightSnippet(node.Content, h),
			Highlight:          h,
			Explanation:        o.explain(mode, raw, recency, emotional),
			RelatedNodeIDs:     o.related(id),
			Mode:               mode,
		})
	}
	return results
}

func (o *Orchestrator) explain(mode router.Mode, raw, recency, emotional float64) string {
	parts := []string{
		fmt.Sprintf("%s match", mode),
		fmt.Sprintf("similarity %.2f", raw),
	}
	if boost := o.weights.Recency * recency; boost > 0 {
		parts = append(parts, fmt.Sprintf("recency +%.3f", boost))
	}
	if boost := o.weights.Emotional * emotional; boost > 0 {
		parts = append(parts, fmt.Sprintf("emotional +%.3f", boost))
	}
	return strings.Join(parts, ", ")
}

func (o *Orchestrator) related(nodeID string) []string {
	matches, err := o.index.FindSimilar(nodeID, relatedLimit)
	if err != nil {
		return []string{}
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.NodeID
	}
	return ids
}

func (o *Orchestrator) nodeLookup(ctx context.Context) func(string) *store.Node {
	return func(id string) *store.Node {
		node, err := o.nodes.GetNode(ctx, id)
		if err != nil {
			return nil
		}
		return node
	}
}

func (o *Orchestrator) flags() store.FeatureFlags {
	if o.router == nil {
		return router.NoFlags{}
	}
	return o.router.Flags()
}

// truncate truncates a string to maxLen runes for logging.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
