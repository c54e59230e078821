package users

import (
	"context"
	"errors"
)

var (
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateAPIKey   = errors.New("api key already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrNegativeCredits   = errors.New("credits must be >= 0")
)

// Repository is the storage behind the ledger. Implementations must be safe
// for concurrent use; Create performs its uniqueness check and insert as one
// atomic step.
type Repository interface {
	// Create assigns user.ID and stores the record.
	Create(ctx context.Context, user *User) error
	// GetByUsername and GetByAPIKey return nil, nil when absent.
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	// DecrementCredits subtracts one credit, never going below zero, and
	// returns the new balance.
	DecrementCredits(ctx context.Context, username string) (int, error)
	Update(ctx context.Context, username string, upd Update) (*User, error)
	Delete(ctx context.Context, username string) error
	Ping(ctx context.Context) error
}
