package ai

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"

	aierrors "github.com/hrygo/synapse/internal/errors"
)

// ErrTextNotEmbeddable is returned by EmbeddingModel.EmbedText when the model
// cannot embed the text as a whole (length limit, vocabulary).
var ErrTextNotEmbeddable = errors.New("text cannot be embedded as a whole")

// TextEmbedding is a vector produced by a specific model version.
// Vectors are only comparable when both dimension and model version match.
type TextEmbedding struct {
	Vector       []float32
	ModelVersion string
}

// Dimensions returns the vector length.
func (e TextEmbedding) Dimensions() int {
	return len(e.Vector)
}

// IsZero reports whether the embedding carries no vector.
func (e TextEmbedding) IsZero() bool {
	return len(e.Vector) == 0
}

// CheckCompatible returns a VERSION_MISMATCH error when e and other were
// produced by different models or have different dimensions.
func (e TextEmbedding) CheckCompatible(other TextEmbedding) error {
	if e.ModelVersion != other.ModelVersion {
		return aierrors.VersionMismatch(e.ModelVersion, other.ModelVersion)
	}
	if len(e.Vector) != len(other.Vector) {
		return aierrors.VersionMismatch(
			e.ModelVersion+"/"+strconv.Itoa(len(e.Vector)),
			other.ModelVersion+"/"+strconv.Itoa(len(other.Vector)),
		)
	}
	return nil
}

// EmbeddingModel is the on-device embedding model.
// A model is loaded once and shared read-only by all callers.
type EmbeddingModel interface {
	// Version identifies the model; it is stamped on every TextEmbedding.
	Version() string

	// Dimensions returns the vector dimension.
	Dimensions() int

	// EmbedText embeds the whole text.
	// Returns ErrTextNotEmbeddable when the text cannot be embedded in one piece.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTokens embeds each token separately. The result has one entry per
	// token; unrecognised tokens have a nil entry.
	EmbedTokens(ctx context.Context, tokens []string) ([][]float32, error)
}

// OpenAIModel is an EmbeddingModel backed by an OpenAI-compatible endpoint,
// typically a local Ollama server.
type OpenAIModel struct {
	client        *openai.Client
	model         string
	dimensions    int
	maxInputChars int
}

// NewOpenAIModel creates a new OpenAIModel.
func NewOpenAIModel(cfg *EmbeddingConfig) (*OpenAIModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.BaseURL

	maxInput := cfg.MaxInputChars
	if maxInput <= 0 {
		maxInput = DefaultMaxInputChars
	}

	return &OpenAIModel{
		client:        openai.NewClientWithConfig(clientConfig),
		model:         cfg.Model,
		dimensions:    cfg.Dimensions,
		maxInputChars: maxInput,
	}, nil
}

func (m *OpenAIModel) Version() string {
	return m.model
}

func (m *OpenAIModel) Dimensions() int {
	return m.dimensions
}

func (m *OpenAIModel) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if text == "" || utf8.RuneCountInString(text) > m.maxInputChars {
		return nil, ErrTextNotEmbeddable
	}

	vectors, err := m.create(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if vectors[0] == nil {
		return nil, ErrTextNotEmbeddable
	}
	return vectors[0], nil
}

func (m *OpenAIModel) EmbedTokens(ctx context.Context, tokens []string) ([][]float32, error) {
	result := make([][]float32, len(tokens))

	// Empty tokens are never sent; positions are restored afterwards.
	inputs := make([]string, 0, len(tokens))
	positions := make([]int, 0, len(tokens))
	for i, token := range tokens {
		if token == "" {
			continue
		}
		inputs = append(inputs, token)
		positions = append(positions, i)
	}
	if len(inputs) == 0 {
		return result, nil
	}

	vectors, err := m.create(ctx, inputs)
	if err != nil {
		return nil, err
	}
	for i, vec := range vectors {
		result[positions[i]] = vec
	}
	return result, nil
}

// create calls the embeddings endpoint and returns one vector per input,
// ordered by input index. Vectors of the wrong dimension are returned as nil.
func (m *OpenAIModel) create(ctx context.Context, inputs []string) ([][]float32, error) {
	resp, err := m.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: inputs,
		Model: openai.EmbeddingModel(m.model),
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("empty embedding response")
	}

	vectors := make([][]float32, len(inputs))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(inputs) {
			continue
		}
		if len(data.Embedding) != m.dimensions {
			continue
		}
		vectors[data.Index] = data.Embedding
	}
	return vectors, nil
}
