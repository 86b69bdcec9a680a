// File path: internal/llm/llm.go
package llm

import (
	"context"
	"fmt"
)

// Role tags a chat message. Keeping it a dedicated type forces prompt
// assembly and provider mapping to handle every variant explicitly.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged entry of a model conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func System(content string) Message { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message   { return Message{Role: RoleUser, Content: content} }

// ParseRole maps a persisted role string back onto the tagged type.
func ParseRole(role string) (Role, error) {
	switch Role(role) {
	case RoleSystem, RoleUser, RoleAssistant:
		return Role(role), nil
	}
	return "", fmt.Errorf("unknown message role %q", role)
}

// Provider is the boundary to a hosted model: a blocking chat completion
// and a text embedding call. Both honour context cancellation and the HTTP
// timeouts of the underlying client.
type Provider interface {
	Chat(ctx context.Context, messages []Message, cfg ModelConfig) (string, error)
	Embed(ctx context.Context, input []string) ([][]float32, error)
	Name() string
}
