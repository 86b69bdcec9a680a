// File path: internal/chat/prompt.go
package chat

import (
	"fmt"
	"strings"

	"github.com/smpleo/leochat/internal/llm"
	"github.com/smpleo/leochat/internal/store"
)

// contextTemplate frames the retrieved chunks and the question as the final
// user message.
const contextTemplate = "Konteks: %s \nBerikut ini adalah pertanyaan yang harus Anda jawab. Pertanyaan: %s"

// buildPrompt assembles the completion request: the system persona first,
// then the most recent history entries up to the window, with the current
// question as the last entry. When retrieved context is present the final
// user message is replaced by the combined context-plus-question message;
// earlier turns are passed through untouched.
func buildPrompt(systemPrompt string, history []store.Message, question, retrieved string, window int) []llm.Message {
	entries := make([]llm.Message, 0, len(history)+1)
	for _, msg := range history {
		role, err := llm.ParseRole(msg.Role)
		if err != nil {
			continue
		}
		entries = append(entries, llm.Message{Role: role, Content: msg.Content})
	}
	entries = append(entries, llm.User(question))
	if window > 0 && len(entries) > window {
		entries = entries[len(entries)-window:]
	}
	final := question
	if strings.TrimSpace(retrieved) != "" {
		final = fmt.Sprintf(contextTemplate, retrieved, question)
	}
	entries[len(entries)-1] = llm.User(final)

	prompt := make([]llm.Message, 0, len(entries)+1)
	prompt = append(prompt, llm.System(systemPrompt))
	prompt = append(prompt, entries...)
	return prompt
}
