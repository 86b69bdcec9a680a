// File path: internal/store/users.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// User is an authenticated principal. Password carries the bcrypt hash,
// never plaintext; hashing is the caller's concern.
type User struct {
	ID        int64      `db:"id" json:"id"`
	Username  string     `db:"username" json:"username"`
	Email     string     `db:"email" json:"email"`
	Password  string     `db:"password" json:"-"`
	FirstName string     `db:"first_name" json:"first_name"`
	LastName  string     `db:"last_name" json:"last_name"`
	Role      string     `db:"role" json:"role"`
	IsAdmin   bool       `db:"is_admin" json:"is_admin"`
	IsActive  bool       `db:"is_active" json:"is_active"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	LastLogin *time.Time `db:"last_login" json:"last_login,omitempty"`
}

// CreateUser inserts a new user with server timestamps. Fails with
// ErrDuplicateUser when the username or email is already taken.
func (s *Store) CreateUser(ctx context.Context, user *User) error {
	if user == nil {
		return errors.New("user required")
	}
	if strings.TrimSpace(user.Username) == "" || strings.TrimSpace(user.Email) == "" {
		return errors.New("username and email required")
	}
	if strings.TrimSpace(user.Password) == "" {
		return errors.New("password hash required")
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create user: %w", err)
	}
	defer tx.Rollback()
	var exists int
	err = tx.GetContext(ctx, &exists,
		`SELECT COUNT(*) FROM users WHERE username = ? OR email = ?`, user.Username, user.Email)
	if err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	if exists > 0 {
		return ErrDuplicateUser
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if strings.TrimSpace(user.Role) == "" {
		user.Role = "student"
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (username, email, password, first_name, last_name, role, is_admin, is_active, created_at, updated_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Username, user.Email, user.Password, user.FirstName, user.LastName,
		user.Role, user.IsAdmin, user.IsActive, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		user.ID = id
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create user: %w", err)
	}
	return nil
}

// GetUserByUsername returns the user with the given username, or nil when
// none exists.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, `SELECT * FROM users WHERE username = ?`, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// GetUserByID returns the user with the given id, or nil when none exists.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// ListUsers returns all users for the admin dashboard.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := s.db.SelectContext(ctx, &users, `SELECT * FROM users ORDER BY id ASC`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// UpdateUser patches the user matching the criteria through the generic
// adapter and bumps updated_at.
func (s *Store) UpdateUser(ctx context.Context, id int64, patch map[string]interface{}) (bool, error) {
	if len(patch) == 0 {
		return false, errors.New("empty patch")
	}
	patch["updated_at"] = time.Now().UTC()
	return s.Update(ctx, "users", map[string]interface{}{"id": id}, patch)
}

// RecordLogin stamps last_login for the user.
func (s *Store) RecordLogin(ctx context.Context, id int64) error {
	if _, err := s.Update(ctx, "users",
		map[string]interface{}{"id": id},
		map[string]interface{}{"last_login": time.Now().UTC()}); err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	return nil
}

// DeleteUser removes the user. The user's conversations are removed with
// their histories so nothing is orphaned.
func (s *Store) DeleteUser(ctx context.Context, id int64) (bool, error) {
	convs, err := s.ListByOwner(ctx, id)
	if err != nil {
		return false, err
	}
	for _, conv := range convs {
		if _, err := s.DeleteConversation(ctx, conv.SessionID); err != nil {
			return false, err
		}
	}
	return s.Delete(ctx, "users", map[string]interface{}{"id": id})
}
