// File path: internal/chat/orchestrator.go
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smpleo/leochat/internal/common"
	"github.com/smpleo/leochat/internal/common/telemetry"
	"github.com/smpleo/leochat/internal/llm"
	"github.com/smpleo/leochat/internal/store"
	"github.com/smpleo/leochat/internal/vector"
)

// ErrEmptyQuestion is returned when a turn carries no question text.
var ErrEmptyQuestion = errors.New("question must not be empty")

const maxTitleRunes = 100

// AskRequest is one user turn. SessionID may be empty, in which case a new
// conversation is started.
type AskRequest struct {
	UserID    int64
	SessionID string
	Question  string
	Model     llm.ModelConfig
}

// Answer is the orchestrator's reply for one turn.
type Answer struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
	Created   bool   `json:"created"`
	Context   string `json:"-"`
}

// Orchestrator runs the question-to-answer pipeline: retrieve context, build
// the prompt window from persisted history, call the model, persist the turn.
type Orchestrator struct {
	store     *store.Store
	vectors   vector.Store
	providers *llm.Cache
	cfg       Config
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*sync.Mutex
}

// New wires an orchestrator over the conversation store, the vector store,
// and the provider cache.
func New(st *store.Store, vectors vector.Store, providers *llm.Cache, cfg Config) *Orchestrator {
	return &Orchestrator{
		store:     st,
		vectors:   vectors,
		providers: providers,
		cfg:       cfg.applyDefaults(),
		logger:    common.Logger().With("component", "chat"),
		sessions:  make(map[string]*sync.Mutex),
	}
}

// sessionLock returns the mutex serializing turns for one session. At most
// one turn per session may be in flight, otherwise interleaved appends would
// corrupt turn order.
func (o *Orchestrator) sessionLock(sessionID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.sessions[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		o.sessions[sessionID] = lock
	}
	return lock
}

// Ask processes one user turn synchronously. Provider failures propagate to
// the caller and nothing is persisted for the turn. A persistence failure
// after a successful completion is returned as an error with the answer
// discarded.
func (o *Orchestrator) Ask(ctx context.Context, req AskRequest) (Answer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}
	ctx, endSpan := telemetry.StartSpan(ctx, "chat.ask")
	defer endSpan()
	start := time.Now()
	if err := req.Model.Validate(); err != nil {
		return Answer{}, err
	}
	provider, err := o.providers.Provider(req.Model)
	if err != nil {
		return Answer{}, err
	}

	created := req.SessionID == ""
	sessionID := req.SessionID
	if created {
		sessionID = uuid.NewString()
	}
	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	var history []store.Message
	if !created {
		conv, err := o.store.GetBySession(ctx, sessionID)
		if err != nil {
			return Answer{}, err
		}
		if conv == nil {
			return Answer{}, fmt.Errorf("conversation %s: %w", sessionID, store.ErrNotFound)
		}
		if conv.UserID != req.UserID {
			return Answer{}, fmt.Errorf("conversation %s: %w", sessionID, store.ErrNotFound)
		}
		if _, err := o.store.TouchConversation(ctx, sessionID); err != nil {
			return Answer{}, err
		}
		history, err = o.store.LoadHistory(ctx, sessionID)
		if err != nil {
			return Answer{}, err
		}
	}

	retrieved, err := o.retrieve(ctx, provider, question)
	if err != nil {
		return Answer{}, err
	}

	prompt := buildPrompt(o.cfg.SystemPrompt, history, question, retrieved, o.cfg.HistoryWindow)
	answer, err := provider.Chat(ctx, prompt, req.Model)
	if err != nil {
		return Answer{}, err
	}

	if created {
		conv := &store.Conversation{
			UserID:    req.UserID,
			Title:     conversationTitle(question),
			SessionID: sessionID,
		}
		if err := o.store.CreateConversation(ctx, conv); err != nil {
			return Answer{}, err
		}
	}
	if err := o.store.AppendTurn(ctx, sessionID, question, answer); err != nil {
		o.logger.Error("turn lost after completion", "session", sessionID, "error", err)
		return Answer{}, fmt.Errorf("persist turn: %w", err)
	}

	telemetry.RecordChatTurn(time.Since(start))
	o.logger.Info("turn completed", "session", sessionID, "model", req.Model.Model, "grounded", retrieved != "")
	return Answer{SessionID: sessionID, Answer: answer, Created: created, Context: retrieved}, nil
}

// retrieve embeds the question and gathers the top matching chunks into one
// context string. Zero matches yield an empty string, not an error.
func (o *Orchestrator) retrieve(ctx context.Context, provider llm.Provider, question string) (string, error) {
	vectors, err := provider.Embed(ctx, []string{question})
	if err != nil {
		return "", fmt.Errorf("embed question: %w", err)
	}
	if len(vectors) == 0 {
		return "", fmt.Errorf("embed question: provider returned no vector")
	}
	results, err := o.vectors.Search(ctx, vectors[0], o.cfg.RetrievalLimit)
	if err != nil {
		return "", fmt.Errorf("search context: %w", err)
	}
	texts := make([]string, 0, len(results))
	for _, result := range results {
		if strings.TrimSpace(result.Text) == "" {
			continue
		}
		texts = append(texts, result.Text)
	}
	return strings.Join(texts, "\n\n"), nil
}

// History returns the persisted turns for a session in append order. The
// persisted log is the single source of truth for display.
func (o *Orchestrator) History(ctx context.Context, sessionID string) ([]store.Message, error) {
	return o.store.LoadHistory(ctx, sessionID)
}

func conversationTitle(question string) string {
	runes := []rune(question)
	if len(runes) <= maxTitleRunes {
		return question
	}
	return string(runes[:maxTitleRunes])
}
