package retrieval

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/synapse/plugin/ai"
	"github.com/hrygo/synapse/plugin/ai/router"
	serverai "github.com/hrygo/synapse/server/ai"
	"github.com/hrygo/synapse/store"
)

// gatedModel is an ai.EmbeddingModel whose calls block until released.
type gatedModel struct {
	started     chan struct{}
	startedOnce sync.Once
	release     chan struct{}
	calls       atomic.Int32
}

func newGatedModel() *gatedModel {
	return &gatedModel{started: make(chan struct{}), release: make(chan struct{})}
}

func (m *gatedModel) Version() string { return testModel }

func (m *gatedModel) Dimensions() int { return 3 }

func (m *gatedModel) EmbedText(ctx context.Context, _ string) ([]float32, error) {
	m.calls.Add(1)
	m.startedOnce.Do(func() { close(m.started) })
	select {
	case <-m.release:
		return []float32{1, 0, 0}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *gatedModel) EmbedTokens(context.Context, []string) ([][]float32, error) {
	return nil, ai.ErrTextNotEmbeddable
}

func TestSearchSession_SupersededSearchIsDiscarded(t *testing.T) {
	f := newFixture(t, fixtureOptions{tier: router.TierPro, quota: 5, network: store.NetworkOnline})
	f.remote.Delay = 5 * time.Second
	session := f.orchestrator.NewSession()
	ctx := context.Background()

	type result struct {
		outcome *SearchOutcome
		err     error
	}
	first := make(chan result, 1)
	go func() {
		outcome, err := session.GlobalSearch(ctx, "coffee", SearchAuto)
		first <- result{outcome, err}
	}()

	// Wait until the first search is blocked on the remote call.
	require.Eventually(t, func() bool {
		queries, _ := f.remote.Calls()
		return queries == 1
	}, time.Second, 5*time.Millisecond)

	outcome, err := session.GlobalSearch(ctx, "tax", SearchLocalOnly)
	require.NoError(t, err)
	assert.Equal(t, "n3", outcome.Results[0].NodeID)

	select {
	case r := <-first:
		assert.ErrorIs(t, r.err, ErrSuperseded)
		assert.Nil(t, r.outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("superseded search was not cancelled")
	}

	history := f.orchestrator.History()
	require.Len(t, history, 1)
	assert.Equal(t, "tax", history[0].Query)
	assert.Equal(t, int64(1), f.orchestrator.Metrics().TotalSearches)
	// The superseded search had already been charged.
	assert.Equal(t, []int{1}, f.ledger.ConsumeCalls())
}

func TestSearchSession_NewerSearchSharesEmbeddingOfSupersededOne(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	model := newGatedModel()
	f.orchestrator.embedder = serverai.NewEmbedder(model, nil)
	session := f.orchestrator.NewSession()
	ctx := context.Background()

	first := make(chan error, 1)
	go func() {
		_, err := session.GlobalSearch(ctx, "coffee", SearchLocalOnly)
		first <- err
	}()
	<-model.started

	type result struct {
		outcome *SearchOutcome
		err     error
	}
	second := make(chan result, 1)
	go func() {
		outcome, err := session.GlobalSearch(ctx, "Coffee ", SearchLocalOnly)
		second <- result{outcome, err}
	}()

	// Starting the second search cancels the first one.
	select {
	case err := <-first:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("superseded search did not return")
	}
	close(model.release)

	select {
	case r := <-second:
		require.NoError(t, r.err)
		require.NotEmpty(t, r.outcome.Results)
		assert.Equal(t, "n1", r.outcome.Results[0].NodeID)
	case <-time.After(2 * time.Second):
		t.Fatal("newer search did not return")
	}

	assert.Equal(t, int32(1), model.calls.Load())
	history := f.orchestrator.History()
	require.Len(t, history, 1)
	assert.Equal(t, "Coffee", history[0].Query)
	assert.Zero(t, f.orchestrator.Metrics().FailedSearches)
}

func TestSearchSession_Cancel(t *testing.T) {
	f := newFixture(t, fixtureOptions{tier: router.TierPro, quota: 5, network: store.NetworkOnline})
	f.remote.Delay = 5 * time.Second
	session := f.orchestrator.NewSession()

	done := make(chan error, 1)
	go func() {
		_, err := session.GlobalSearch(context.Background(), "coffee", SearchAuto)
		done <- err
	}()

	require.Eventually(t, func() bool {
		queries, _ := f.remote.Calls()
		return queries == 1
	}, time.Second, 5*time.Millisecond)
	session.Cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled search did not return")
	}
	assert.Empty(t, f.orchestrator.History())
}

func TestSearchSession_SequentialSearchesBothRecorded(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	session := f.orchestrator.NewSession()
	ctx := context.Background()

	_, err := session.GlobalSearch(ctx, "coffee", SearchLocalOnly)
	require.NoError(t, err)
	_, err = session.GlobalSearch(ctx, "tax", SearchLocalOnly)
	require.NoError(t, err)

	assert.Len(t, f.orchestrator.History(), 2)
}
