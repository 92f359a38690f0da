package retrieval

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	aierrors "github.com/hrygo/synapse/internal/errors"
	"github.com/hrygo/synapse/internal/profile"
	"github.com/hrygo/synapse/plugin/ai"
	"github.com/hrygo/synapse/plugin/ai/router"
	"github.com/hrygo/synapse/plugin/ai/vector"
	"github.com/hrygo/synapse/store"
)

const testModel = "test-model"

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeEmbedder maps texts to fixed vectors by keyword.
type fakeEmbedder struct {
	generated atomic.Int64

	mu    sync.Mutex
	texts []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (ai.TextEmbedding, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()

	t := strings.ToLower(text)
	var v []float32
	switch {
	case strings.Contains(t, "coffee"):
		v = []float32{1, 0, 0}
	case strings.Contains(t, "tax"):
		v = []float32{0, 1, 0}
	default:
		return ai.TextEmbedding{}, aierrors.ModelUnavailable("no recognised tokens", nil)
	}
	f.generated.Add(1)
	return ai.TextEmbedding{Vector: v, ModelVersion: testModel}, nil
}

func (f *fakeEmbedder) embedded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func (f *fakeEmbedder) EmbeddingsGenerated() int64 {
	return f.generated.Load()
}

// memoryNodes is an in-memory store.NodeStore.
type memoryNodes struct {
	mu    sync.RWMutex
	nodes map[string]*store.Node
}

func (m *memoryNodes) GetNode(_ context.Context, id string) (*store.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	if !ok {
		return nil, store.ErrNodeNotFound
	}
	return n, nil
}

func (m *memoryNodes) ListUnembedded(_ context.Context, model string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, n := range m.nodes {
		if !n.IsEmbeddedWith(model) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memoryNodes) MarkEmbedded(_ context.Context, id string, model string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	if !ok {
		return store.ErrNodeNotFound
	}
	n.EmbeddedModel = model
	return nil
}

// testClock advances one millisecond per reading.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

type fixture struct {
	orchestrator *Orchestrator
	index        *vector.LocalIndex
	nodes        *memoryNodes
	remote       *vector.MockRemoteService
	ledger       *router.MockQuotaLedger
	monitor      *router.StaticMonitor
	embedder     *fakeEmbedder
}

type fixtureOptions struct {
	tier       router.Tier
	quota      int
	network    store.NetworkState
	flags      profile.Flags
	noRemote   bool
	credential bool
}

func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()

	days := func(n int) time.Time { return baseTime.Add(-time.Duration(n) * 24 * time.Hour) }
	nodes := &memoryNodes{nodes: map[string]*store.Node{
		"n1": {ID: "n1", Content: "Morning coffee ritual", NodeType: "journal", EmotionalMarkers: []string{"joy"}, CreatedAt: days(1)},
		"n2": {ID: "n2", Content: "Coffee beans from Ethiopia", NodeType: "note", CreatedAt: days(400)},
		"n3": {ID: "n3", Content: "Quarterly tax planning", NodeType: "task", CreatedAt: days(10)},
		"n4": {ID: "n4", Content: "Feeling anxious about taxes", NodeType: "journal", EmotionalMarkers: []string{"Anxiety"}, CreatedAt: days(30)},
		"r1": {ID: "r1", Content: "Espresso machine review", NodeType: "note", CreatedAt: days(200)},
	}}

	index := vector.NewLocalIndex(testModel)
	emb := func(v ...float32) ai.TextEmbedding { return ai.TextEmbedding{Vector: v, ModelVersion: testModel} }
	require.NoError(t, index.Upsert("n1", emb(1, 0, 0)))
	require.NoError(t, index.Upsert("n2", emb(0.9, 0.1, 0)))
	require.NoError(t, index.Upsert("n3", emb(0, 1, 0)))
	require.NoError(t, index.Upsert("n4", emb(0, 0.8, 0.2)))

	remote := vector.NewMockRemoteService()
	ctx := context.Background()
	require.NoError(t, remote.Upsert(ctx, "r1", []float32{0.95, 0.05, 0}))
	require.NoError(t, remote.Upsert(ctx, "ghost", []float32{1, 0, 0}))

	if opts.tier == "" {
		opts.tier = router.TierPro
	}
	if opts.flags == nil {
		opts.flags = profile.Flags{store.FlagMultiModalSearch: true}
	}
	ledger := router.NewMockQuotaLedger(opts.quota)
	monitor := router.NewStaticMonitor(opts.network)
	embedder := &fakeEmbedder{}

	cfg := Config{
		Embedder:          embedder,
		Index:             index,
		Nodes:             nodes,
		Remote:            remote,
		Router:            router.NewService(router.Config{Flags: opts.flags, Quota: ledger, Network: monitor}),
		Tier:              opts.tier,
		HasUserCredential: opts.credential,
	}
	if opts.noRemote {
		cfg.Remote = nil
	}

	o := NewOrchestrator(cfg)
	clock := &testClock{now: baseTime}
	o.now = clock.Now

	return &fixture{
		orchestrator: o,
		index:        index,
		nodes:        nodes,
		remote:       remote,
		ledger:       ledger,
		monitor:      monitor,
		embedder:     embedder,
	}
}

func resultIDs(results []SearchResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.NodeID
	}
	return ids
}
