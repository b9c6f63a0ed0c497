// Package openai wraps the upstream API for the two remote model calls
// the engine depends on: batched embeddings and rerank scoring.
package openai

import (
	"context"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/doclane/doclane/internal/domain"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.AdaEmbeddingV2
	// DefaultEmbeddingDimensions is the expected dimension of embeddings from ada-002
	DefaultEmbeddingDimensions = 1536
	// DefaultRerankModel scores passages during rerank
	DefaultRerankModel = openai.GPT4oMini

	// EmbeddingBatchSize bounds payload size per embeddings call
	EmbeddingBatchSize = 64

	// diagnosticLimit truncates upstream error payloads carried in
	// domain errors
	diagnosticLimit = 500
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrNoAPIKey is returned when OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
)

// API defines the remote calls the client depends on.
type API interface {
	CreateEmbeddings(ctx context.Context, texts []string, model openai.EmbeddingModel) ([][]float32, error)
	CreateCompletion(ctx context.Context, model, system, user string) (string, error)
}

// Client wraps the OpenAI API client.
type Client struct {
	api         API
	model       openai.EmbeddingModel
	rerankModel string
	dimensions  int
}

// OpenAIAdapter implements API against the real upstream client.
type OpenAIAdapter struct {
	client *openai.Client
}

func NewOpenAIAdapter(apiKey string) *OpenAIAdapter {
	return &OpenAIAdapter{client: openai.NewClient(apiKey)}
}

// CreateEmbeddings calls the OpenAI API to create embeddings
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, texts []string, model openai.EmbeddingModel) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: model,
	})
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// CreateCompletion runs one chat completion and returns the first choice.
func (a *OpenAIAdapter) CreateCompletion(ctx context.Context, model, system, user string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

type Config struct {
	APIKey              string
	EmbeddingModel      openai.EmbeddingModel
	EmbeddingDimensions int
	RerankModel         string
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	model := cfg.EmbeddingModel
	if model == "" {
		model = DefaultEmbeddingModel
	}
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	rerankModel := cfg.RerankModel
	if rerankModel == "" {
		rerankModel = DefaultRerankModel
	}
	return &Client{
		api:         NewOpenAIAdapter(cfg.APIKey),
		model:       model,
		rerankModel: rerankModel,
		dimensions:  dimensions,
	}
}

// NewClientFromEnv creates a new OpenAI client using OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// GenerateEmbedding generates an embedding for a single text. Used for
// query embedding; a batch of one.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	vecs, err := c.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// GenerateEmbeddings embeds texts in order-preserving batches. The whole
// call fails when any batch fails; partial results would corrupt ordinal
// correspondence with passages.
func (c *Client) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyText
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += EmbeddingBatchSize {
		end := start + EmbeddingBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		vecs, err := c.api.CreateEmbeddings(ctx, texts[start:end], c.model)
		if err != nil {
			return nil, domain.NewEmbeddingError(
				fmt.Sprintf("embedding batch %d-%d failed: %s", start, end, truncate(err.Error(), diagnosticLimit)), err)
		}
		if len(vecs) != end-start {
			return nil, domain.NewEmbeddingError(
				fmt.Sprintf("embedding batch %d-%d returned %d vectors for %d inputs", start, end, len(vecs), end-start), nil)
		}
		for i, v := range vecs {
			if len(v) != c.dimensions {
				return nil, domain.NewEmbeddingError(
					fmt.Sprintf("embedding %d has %d dimensions, expected %d", start+i, len(v), c.dimensions), nil)
			}
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// Dimensions returns the configured embedding dimensionality.
func (c *Client) Dimensions() int {
	return c.dimensions
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
