package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/medzoom/accounts-be/internal/models"
)

// SQLite is a Store backed by the users table.
type SQLite struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed store.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

const userColumns = "id, username, email, password_hash, created_at"

func (s *SQLite) scanUser(row *sql.Row) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

// FindByID retrieves a single user by their ID.
func (s *SQLite) FindByID(ctx context.Context, id string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	return s.scanUser(row)
}

// FindByEmail retrieves a single user by their email.
func (s *SQLite) FindByEmail(ctx context.Context, email string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
	return s.scanUser(row)
}

// FindByUsername retrieves a single user by their username.
func (s *SQLite) FindByUsername(ctx context.Context, username string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", username)
	return s.scanUser(row)
}

// Insert persists a new user. Uniqueness violations on the email or username
// indexes are mapped to ErrEmailTaken / ErrUsernameTaken.
func (s *SQLite) Insert(ctx context.Context, user models.User) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users(id, username, email, password_hash) VALUES(?, ?, ?, ?)",
		user.ID, user.Username, user.Email, user.PasswordHash)
	if err != nil {
		return mapConstraintError(err)
	}
	return nil
}

// mapConstraintError translates sqlite UNIQUE violations into sentinel errors.
// The driver reports them as "UNIQUE constraint failed: users.<column>".
func mapConstraintError(err error) error {
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return err
	}
	switch {
	case strings.Contains(msg, "users.email"):
		return ErrEmailTaken
	case strings.Contains(msg, "users.username"):
		return ErrUsernameTaken
	}
	return err
}
