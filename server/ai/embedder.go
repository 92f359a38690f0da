package ai

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	aierrors "github.com/hrygo/synapse/internal/errors"
	"github.com/hrygo/synapse/plugin/ai"
	"github.com/hrygo/synapse/plugin/ai/cache"
	"github.com/hrygo/synapse/plugin/ai/timeout"
)

// DefaultBatchConcurrency is the maximum number of simultaneous generations in EmbedBatch.
const DefaultBatchConcurrency = 10

// Embedder produces embeddings for text through a shared model and a bounded cache.
type Embedder struct {
	model       ai.EmbeddingModel
	cache       *cache.EmbeddingCache
	tier        cache.Tier
	concurrency int

	group     singleflight.Group
	generated atomic.Int64
}

// EmbedderOption configures an Embedder.
type EmbedderOption func(*Embedder)

// WithTier adds a second-level cache consulted on an in-memory miss.
func WithTier(tier cache.Tier) EmbedderOption {
	return func(e *Embedder) {
		e.tier = tier
	}
}

// WithBatchConcurrency sets the EmbedBatch fan-out width.
func WithBatchConcurrency(n int) EmbedderOption {
	return func(e *Embedder) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// NewEmbedder creates a new embedder. A nil cache gets a default-sized one.
func NewEmbedder(model ai.EmbeddingModel, c *cache.EmbeddingCache, opts ...EmbedderOption) *Embedder {
	if c == nil {
		c = cache.NewEmbeddingCache(cache.DefaultCapacity)
	}
	e := &Embedder{
		model:       model,
		cache:       c,
		concurrency: DefaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Version returns the model version stamped on every embedding.
func (e *Embedder) Version() string {
	return e.model.Version()
}

// EmbeddingsGenerated returns how many embeddings were produced by the model
// (cache hits excluded).
func (e *Embedder) EmbeddingsGenerated() int64 {
	return e.generated.Load()
}

// Embed returns the embedding of text. Texts equal after normalization share
// one cache entry, and concurrent misses for the same key run the model once.
func (e *Embedder) Embed(ctx context.Context, text string) (ai.TextEmbedding, error) {
	key := cache.NormalizeKey(text)
	if key == "" {
		return ai.TextEmbedding{}, aierrors.ModelUnavailable("nothing to embed in empty text", nil)
	}

	if emb, ok := e.lookup(key); ok {
		return emb, nil
	}

	// The flight outlives a cancelled caller so that callers joining it later
	// are not failed by the first caller's cancellation. generate still bounds
	// it with EmbeddingTimeout.
	ch := e.group.DoChan(key, func() (any, error) {
		fctx := context.WithoutCancel(ctx)

		// A concurrent flight may have filled the cache already.
		if emb, ok := e.lookup(key); ok {
			return emb, nil
		}
		if emb, ok := e.lookupTier(fctx, key); ok {
			e.cache.Set(key, emb)
			return emb, nil
		}

		emb, err := e.generate(fctx, key)
		if err != nil {
			return nil, err
		}
		e.generated.Add(1)
		e.cache.Set(key, emb)
		e.storeTier(fctx, key, emb)
		return emb, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return ai.TextEmbedding{}, res.Err
		}
		return res.Val.(ai.TextEmbedding), nil
	case <-ctx.Done():
		return ai.TextEmbedding{}, aierrors.ModelUnavailable("embedding cancelled", ctx.Err())
	}
}

// EmbedBatch embeds every text with bounded concurrency. Texts that fail are
// absent from the result; a failure never aborts the batch.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) map[string]ai.TextEmbedding {
	results := make(map[string]ai.TextEmbedding, len(texts))
	if len(texts) == 0 {
		return results
	}

	var mu sync.Mutex
	sem := semaphore.NewWeighted(int64(e.concurrency))
	g, gctx := errgroup.WithContext(ctx)

	seen := make(map[string]struct{}, len(texts))
	for _, text := range texts {
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}

		if err := sem.Acquire(gctx, 1); err != nil {
			slog.Warn("embed batch interrupted", "error", err)
			break
		}
		g.Go(func() error {
			defer sem.Release(1)

			emb, err := e.Embed(gctx, text)
			if err != nil {
				slog.Warn("failed to embed text in batch", "text_len", len(text), "error", err)
				return nil
			}
			mu.Lock()
			results[text] = emb
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func (e *Embedder) lookup(key string) (ai.TextEmbedding, bool) {
	emb, ok := e.cache.Get(key)
	if !ok || emb.ModelVersion != e.model.Version() {
		return ai.TextEmbedding{}, false
	}
	return emb, true
}

// lookupTier consults the second-level cache. Errors count as a miss.
func (e *Embedder) lookupTier(ctx context.Context, key string) (ai.TextEmbedding, bool) {
	if e.tier == nil {
		return ai.TextEmbedding{}, false
	}
	emb, ok, err := e.tier.Get(ctx, key)
	if err != nil {
		slog.Warn("embedding tier lookup failed", "error", err)
		return ai.TextEmbedding{}, false
	}
	if !ok || emb.ModelVersion != e.model.Version() || emb.Dimensions() != e.model.Dimensions() {
		return ai.TextEmbedding{}, false
	}
	return emb, true
}

func (e *Embedder) storeTier(ctx context.Context, key string, emb ai.TextEmbedding) {
	if e.tier == nil {
		return
	}
	if err := e.tier.Set(ctx, key, emb); err != nil {
		slog.Warn("embedding tier write failed", "error", err)
	}
}

// generate embeds the whole text, falling back to the average of the
// embeddings of the recognised tokens.
func (e *Embedder) generate(ctx context.Context, text string) (ai.TextEmbedding, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout.EmbeddingTimeout)
	defer cancel()

	version := e.model.Version()

	vec, err := e.model.EmbedText(ctx, text)
	if err == nil && len(vec) > 0 {
		return ai.TextEmbedding{Vector: vec, ModelVersion: version}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ai.TextEmbedding{}, aierrors.ModelUnavailable("embedding cancelled", ctxErr)
	}

	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return ai.TextEmbedding{}, aierrors.ModelUnavailable("no tokens to embed", err)
	}

	tokenVectors, tokErr := e.model.EmbedTokens(ctx, tokens)
	if tokErr != nil {
		return ai.TextEmbedding{}, aierrors.ModelUnavailable("token embedding failed", tokErr)
	}

	avg, recognised := averageEmbeddings(tokenVectors, e.model.Dimensions())
	if recognised == 0 {
		return ai.TextEmbedding{}, aierrors.ModelUnavailable("no recognised tokens", err).
			WithContext("tokens", len(tokens))
	}

	slog.Debug("embedded text via token average",
		"tokens", len(tokens),
		"recognised", recognised,
		"cause", err)

	return ai.TextEmbedding{Vector: avg, ModelVersion: version}, nil
}

// Tokenize splits text into words on any rune that is neither a letter nor a digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// averageEmbeddings computes the element-wise average of the vectors of
// dimension dims, skipping nil and mis-sized entries. Returns the number of
// vectors averaged.
func averageEmbeddings(embeddings [][]float32, dims int) ([]float32, int) {
	if dims <= 0 {
		return nil, 0
	}

	result := make([]float32, dims)
	count := 0
	for _, emb := range embeddings {
		if len(emb) != dims {
			continue
		}
		for i := 0; i < dims; i++ {
			result[i] += emb[i]
		}
		count++
	}
	if count == 0 {
		return nil, 0
	}

	n := float32(count)
	for i := 0; i < dims; i++ {
		result[i] /= n
	}
	return result, count
}
