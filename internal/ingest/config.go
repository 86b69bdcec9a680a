// File path: internal/ingest/config.go
package ingest

import (
	"os"
	"strconv"
)

const (
	defaultChunkSize      = 300
	defaultChunkOverlap   = 50
	defaultSplitThreshold = 1500
)

// Config controls how documents are chunked before indexing.
type Config struct {
	ChunkSize      int `json:"chunk_size"`
	ChunkOverlap   int `json:"chunk_overlap"`
	SplitThreshold int `json:"split_threshold"`
}

func (c Config) applyDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = defaultChunkSize
	}
	if c.ChunkOverlap <= 0 {
		c.ChunkOverlap = defaultChunkOverlap
	}
	if c.SplitThreshold <= 0 {
		c.SplitThreshold = defaultSplitThreshold
	}
	return c
}

// LoadConfig reads chunking settings from the environment.
func LoadConfig() Config {
	cfg := Config{
		ChunkSize:      envInt("LEOCHAT_CHUNK_SIZE"),
		ChunkOverlap:   envInt("LEOCHAT_CHUNK_OVERLAP"),
		SplitThreshold: envInt("LEOCHAT_SPLIT_THRESHOLD"),
	}
	return cfg.applyDefaults()
}

func envInt(key string) int {
	raw := os.Getenv(key)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}
