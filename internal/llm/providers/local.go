// File path: internal/llm/providers/local.go
package providers

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/smpleo/leochat/internal/llm"
)

// LocalProvider is a deterministic stand-in used when no inference token is
// configured. Answers echo the question and embeddings are a stable hash of
// the text, which keeps retrieval and tests reproducible offline.
type LocalProvider struct{}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

func (l *LocalProvider) Chat(ctx context.Context, messages []llm.Message, cfg llm.ModelConfig) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("llm: no messages provided")
	}
	last := messages[len(messages)-1].Content
	return "[local] " + strings.TrimSpace(last), nil
}

func (l *LocalProvider) Embed(ctx context.Context, input []string) ([][]float32, error) {
	vectors := make([][]float32, len(input))
	for i, text := range input {
		h := fnv.New32a()
		_, _ = h.Write([]byte(text))
		seed := h.Sum32()
		vectors[i] = []float32{
			float32(seed%997) / 997,
			float32(seed%991) / 991,
			float32(seed%983) / 983,
		}
	}
	return vectors, nil
}

func (l *LocalProvider) Name() string {
	return "local"
}
