// File path: internal/store/conversations.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smpleo/leochat/internal/common"
)

// Conversation is the persisted metadata for one chat session. The session
// id is the stable external key; the numeric id is store-assigned.
type Conversation struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Title     string    `db:"title" json:"title"`
	SessionID string    `db:"session_id" json:"session_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Message is one entry of a session's append-only history log. Position is
// the append order within the session.
type Message struct {
	SessionID string `db:"session_id" json:"session_id"`
	Role      string `db:"role" json:"role"`
	Content   string `db:"content" json:"content"`
	Position  int    `db:"position" json:"position"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// CreateConversation inserts a new conversation with server timestamps.
// It fails with ErrDuplicateSession when the session id is already taken
// and leaves the existing record untouched.
func (s *Store) CreateConversation(ctx context.Context, conv *Conversation) error {
	if conv == nil {
		return errors.New("conversation required")
	}
	if strings.TrimSpace(conv.SessionID) == "" {
		return errors.New("session id required")
	}
	if strings.TrimSpace(conv.Title) == "" {
		return errors.New("title required")
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create conversation: %w", err)
	}
	defer tx.Rollback()
	var exists int
	err = tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM conversations WHERE session_id = ?`, conv.SessionID)
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if exists > 0 {
		return ErrDuplicateSession
	}
	now := time.Now().UTC()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	res, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (user_id, title, session_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		conv.UserID, conv.Title, conv.SessionID, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		conv.ID = id
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create conversation: %w", err)
	}
	common.Logger().Debug("store: conversation created", "session", conv.SessionID, "user", conv.UserID)
	return nil
}

// GetBySession returns the conversation with the given session id, or nil
// when none exists. Absence is not an error.
func (s *Store) GetBySession(ctx context.Context, sessionID string) (*Conversation, error) {
	var conv Conversation
	err := s.db.GetContext(ctx, &conv, `SELECT * FROM conversations WHERE session_id = ?`, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &conv, nil
}

// ListByOwner returns the owner's conversations ordered by most recent
// activity first. The ordering is what the sidebar renders.
func (s *Store) ListByOwner(ctx context.Context, userID int64) ([]Conversation, error) {
	var convs []Conversation
	err := s.db.SelectContext(ctx, &convs,
		`SELECT * FROM conversations WHERE user_id = ? ORDER BY updated_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// UpdateTitle renames a conversation. Returns false when no row matched.
func (s *Store) UpdateTitle(ctx context.Context, sessionID, title string) (bool, error) {
	if strings.TrimSpace(title) == "" {
		return false, errors.New("title required")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET title = ? WHERE session_id = ?`, title, sessionID)
	if err != nil {
		return false, fmt.Errorf("update title: %w", err)
	}
	changed, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update title: %w", err)
	}
	return changed > 0, nil
}

// TouchConversation bumps updated_at to now.
func (s *Store) TouchConversation(ctx context.Context, sessionID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE session_id = ?`, time.Now().UTC(), sessionID)
	if err != nil {
		return false, fmt.Errorf("touch conversation: %w", err)
	}
	changed, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("touch conversation: %w", err)
	}
	return changed > 0, nil
}

// DeleteConversation removes the conversation and its entire message
// history in one transaction. Returns false when the session is unknown.
func (s *Store) DeleteConversation(ctx context.Context, sessionID string) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete conversation: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return false, fmt.Errorf("delete history: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE session_id = ?`, sessionID)
	if err != nil {
		return false, fmt.Errorf("delete conversation: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete conversation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete conversation: %w", err)
	}
	common.Logger().Info("store: conversation deleted", "session", sessionID, "removed", removed > 0)
	return removed > 0, nil
}

// AppendTurn atomically appends the (question, answer) pair to the
// session's history and bumps the conversation's updated_at. This is the
// only write path for message content; a turn is never half-written.
func (s *Store) AppendTurn(ctx context.Context, sessionID, question, answer string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append turn: %w", err)
	}
	defer tx.Rollback()
	var exists int
	if err := tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM conversations WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("append turn %q: %w", sessionID, ErrNotFound)
	}
	var last int
	if err := tx.GetContext(ctx, &last, `SELECT COALESCE(MAX(position), -1) FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("read history position: %w", err)
	}
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (session_id, role, content, position, created_at) VALUES (?, ?, ?, ?, ?)`,
		sessionID, RoleUser, question, last+1, now); err != nil {
		return fmt.Errorf("append question: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (session_id, role, content, position, created_at) VALUES (?, ?, ?, ?, ?)`,
		sessionID, RoleAssistant, answer, last+2, now); err != nil {
		return fmt.Errorf("append answer: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE session_id = ?`, now, sessionID); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append turn: %w", err)
	}
	return nil
}

// LoadHistory returns all turns of a session in append order. An unknown
// session yields an empty history, not an error.
func (s *Store) LoadHistory(ctx context.Context, sessionID string) ([]Message, error) {
	var msgs []Message
	err := s.db.SelectContext(ctx, &msgs,
		`SELECT session_id, role, content, position FROM messages WHERE session_id = ? ORDER BY position ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return msgs, nil
}
