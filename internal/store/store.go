package store

import (
	"context"
	"errors"

	"github.com/medzoom/accounts-be/internal/models"
)

// Sentinel errors returned by Store implementations.
var (
	ErrNotFound      = errors.New("store: user not found")
	ErrEmailTaken    = errors.New("store: email already registered")
	ErrUsernameTaken = errors.New("store: username already taken")
)

// Store is the credential store the account workflow depends on. Insert must
// enforce email and username uniqueness atomically; callers rely on the store,
// not their own lookups, to settle races between concurrent signups.
type Store interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	Insert(ctx context.Context, user models.User) error
}
