// File: internal/llm/client.go
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"texplicit_backend/internal/config"
	"texplicit_backend/internal/platform/httpclient"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrDisabled is returned by every call when no OpenAI key is configured.
var ErrDisabled = errors.New("llm: OPENAI_API_KEY is not set")

// Roles of chat messages.
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// Message is one turn of a conversation sent to the model.
type Message struct {
	Role    string
	Content string
}

// Request describes one completion.
type Request struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float32
}

// Client is the language model surface used by chat, reports and summaries.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	// Stream calls onDelta for every content chunk and returns the full answer.
	Stream(ctx context.Context, req Request, onDelta func(string)) (string, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAI implements Client with go-openai.
type OpenAI struct {
	client    *openai.Client
	batchSize int
	logger    *zap.Logger
}

// New returns an OpenAI client, or a disabled one when no key is configured.
func New(cfg *config.Config, logger *zap.Logger) Client {
	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		logger.Warn("OPENAI_API_KEY not set, language model features are disabled")
		return disabled{}
	}
	oc := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.OpenAIBaseURL, "/")
	}
	oc.HTTPClient = httpclient.NewSlow(5 * time.Minute)
	batch := cfg.EmbeddingBatchSize
	if batch <= 0 {
		batch = 64
	}
	return &OpenAI{client: openai.NewClientWithConfig(oc), batchSize: batch, logger: logger}
}

func toOpenAI(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func (o *OpenAI) chatRequest(req Request, stream bool) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    toOpenAI(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      stream,
	}
}

func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, o.chatRequest(req, false))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (o *OpenAI) Stream(ctx context.Context, req Request, onDelta func(string)) (string, error) {
	stream, err := o.client.CreateChatCompletionStream(ctx, o.chatRequest(req, true))
	if err != nil {
		return "", fmt.Errorf("chat stream: %w", err)
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), fmt.Errorf("chat stream: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		sb.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
}

// Embed returns one ada-002 vector per text, in input order.
func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += o.batchSize {
		end := start + o.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts[start:end],
			Model: openai.AdaEmbeddingV2,
		})
		if err != nil {
			return nil, fmt.Errorf("create embeddings: %w", err)
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("create embeddings: got %d vectors for %d inputs", len(resp.Data), end-start)
		}
		batch := make([][]float32, len(resp.Data))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(batch) {
				return nil, fmt.Errorf("create embeddings: index %d out of range", d.Index)
			}
			batch[d.Index] = d.Embedding
		}
		out = append(out, batch...)
	}
	o.logger.Debug("Created embeddings", zap.Int("count", len(out)))
	return out, nil
}

type disabled struct{}

func (disabled) Complete(context.Context, Request) (string, error) { return "", ErrDisabled }
func (disabled) Stream(context.Context, Request, func(string)) (string, error) {
	return "", ErrDisabled
}
func (disabled) Embed(context.Context, []string) ([][]float32, error) { return nil, ErrDisabled }
