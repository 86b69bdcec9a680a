// File path: internal/chat/config.go
package chat

import (
	"os"
	"strconv"
)

const (
	defaultHistoryWindow  = 7
	defaultRetrievalLimit = 4
)

// defaultSystemPrompt is the assistant persona. The deployment serves an
// Indonesian school, so the persona and the context framing are Indonesian.
const defaultSystemPrompt = "Anda adalah asisten virtual sekolah yang ramah dan membantu. " +
	"Jawablah pertanyaan siswa, orang tua, dan guru berdasarkan konteks dokumen sekolah yang diberikan. " +
	"Abaikan konteks yang tidak relevan dengan pertanyaan, dan jangan pernah menyebutkan bahwa Anda diberi konteks. " +
	"Jika jawaban tidak terdapat dalam konteks, katakan dengan jujur bahwa Anda tidak mengetahuinya. " +
	"Selalu jawab dalam Bahasa Indonesia yang sopan."

// Config controls prompt assembly and retrieval.
type Config struct {
	HistoryWindow  int    `json:"history_window"`
	RetrievalLimit int    `json:"retrieval_limit"`
	SystemPrompt   string `json:"system_prompt"`
}

func (c Config) applyDefaults() Config {
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = defaultHistoryWindow
	}
	if c.RetrievalLimit <= 0 {
		c.RetrievalLimit = defaultRetrievalLimit
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = defaultSystemPrompt
	}
	return c
}

// LoadConfig reads orchestrator settings from the environment.
func LoadConfig() Config {
	cfg := Config{
		SystemPrompt: os.Getenv("LEOCHAT_SYSTEM_PROMPT"),
	}
	if raw := os.Getenv("LEOCHAT_HISTORY_WINDOW"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			cfg.HistoryWindow = v
		}
	}
	if raw := os.Getenv("LEOCHAT_RETRIEVAL_LIMIT"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			cfg.RetrievalLimit = v
		}
	}
	return cfg.applyDefaults()
}
