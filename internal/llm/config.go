// File path: internal/llm/config.go
package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ModelConfig carries the sampling parameters for one orchestration call.
// It is a value object: nothing persists it, and history is stored
// independently of the configuration that produced it.
type ModelConfig struct {
	Model             string  `json:"model_name"`
	Temperature       float32 `json:"temperature"`
	TopK              int     `json:"top_k"`
	TopP              float32 `json:"top_p"`
	RepetitionPenalty float32 `json:"repetition_penalty"`
	MaxTokens         int     `json:"max_tokens"`
}

// SupportedModels enumerates the hosted models the chatbot may be pointed
// at.
var SupportedModels = []string{
	"meta-llama/Meta-Llama-3-8B-Instruct",
	"mistralai/Mistral-7B-Instruct-v0.3",
	"HuggingFaceH4/zephyr-7b-beta",
}

// DefaultModelConfig returns the configuration the chat page starts with.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Model:             "meta-llama/Meta-Llama-3-8B-Instruct",
		Temperature:       1.0,
		TopK:              50,
		TopP:              0.8,
		RepetitionPenalty: 1.0,
		MaxTokens:         2000,
	}
}

// Merge overlays the non-zero fields of other onto the receiver. Callers use
// it to apply partial overrides on top of the defaults.
func (c ModelConfig) Merge(other ModelConfig) ModelConfig {
	if other.Model != "" {
		c.Model = other.Model
	}
	if other.Temperature != 0 {
		c.Temperature = other.Temperature
	}
	if other.TopK != 0 {
		c.TopK = other.TopK
	}
	if other.TopP != 0 {
		c.TopP = other.TopP
	}
	if other.RepetitionPenalty != 0 {
		c.RepetitionPenalty = other.RepetitionPenalty
	}
	if other.MaxTokens != 0 {
		c.MaxTokens = other.MaxTokens
	}
	return c
}

// Validate checks every field against its allowed range.
func (c ModelConfig) Validate() error {
	supported := false
	for _, model := range SupportedModels {
		if c.Model == model {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("unsupported model %q", c.Model)
	}
	if c.Temperature < 0.1 || c.Temperature > 2.0 {
		return fmt.Errorf("temperature %.2f outside [0.1, 2.0]", c.Temperature)
	}
	if c.TopK < 1 || c.TopK > 100 {
		return fmt.Errorf("top_k %d outside [1, 100]", c.TopK)
	}
	if c.TopP < 0.1 || c.TopP > 1.0 {
		return fmt.Errorf("top_p %.2f outside [0.1, 1.0]", c.TopP)
	}
	if c.RepetitionPenalty < 1.0 || c.RepetitionPenalty > 2.0 {
		return fmt.Errorf("repetition_penalty %.2f outside [1.0, 2.0]", c.RepetitionPenalty)
	}
	if c.MaxTokens < 100 || c.MaxTokens > 8000 {
		return fmt.Errorf("max_tokens %d outside [100, 8000]", c.MaxTokens)
	}
	return nil
}

// CacheKey is a canonical hash of the fields that select a model client.
// Sampling parameters are per-call inputs and deliberately excluded.
func (c ModelConfig) CacheKey() string {
	sum := sha256.Sum256([]byte("model=" + c.Model))
	return hex.EncodeToString(sum[:])
}
