package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fxgate/fxgate/internal/auth"
	"github.com/fxgate/fxgate/internal/metrics"
)

// DefaultInitialCredits is the balance granted on registration.
const DefaultInitialCredits = 10

const maxKeyAttempts = 3

// Service is the ledger: it owns every User record and is the only writer.
type Service struct {
	repo           Repository
	initialCredits int
	hashSecret     func(string) (string, error)
	newAPIKey      func() (string, error)
	now            func() time.Time
}

type Option func(*Service)

func WithInitialCredits(n int) Option {
	return func(s *Service) { s.initialCredits = n }
}

// WithSecretHasher replaces bcrypt, mainly so tests avoid its cost.
func WithSecretHasher(fn func(string) (string, error)) Option {
	return func(s *Service) { s.hashSecret = fn }
}

func WithKeyGenerator(fn func() (string, error)) Option {
	return func(s *Service) { s.newAPIKey = fn }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:           repo,
		initialCredits: DefaultInitialCredits,
		hashSecret:     auth.HashSecret,
		newAPIKey:      auth.GenerateAPIKey,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user with a fresh API key and the initial credit grant.
// It fails with ErrDuplicateUsername if the username is taken.
func (s *Service) Register(ctx context.Context, username, secret string) (*User, error) {
	hash, err := s.hashSecret(secret)
	if err != nil {
		return nil, fmt.Errorf("hashing secret: %w", err)
	}

	for attempt := 1; ; attempt++ {
		key, err := s.newAPIKey()
		if err != nil {
			return nil, err
		}

		user := &User{
			Username:     username,
			PasswordHash: hash,
			APIKey:       key,
			IsActive:     true,
			CreatedAt:    s.now().UTC(),
			Credits:      s.initialCredits,
		}

		err = s.repo.Create(ctx, user)
		if err == nil {
			metrics.UsersRegisteredTotal.Inc()
			slog.Info("user registered", "user_id", user.ID, "username", user.Username)
			return user, nil
		}
		if errors.Is(err, ErrDuplicateAPIKey) && attempt < maxKeyAttempts {
			continue
		}
		return nil, err
	}
}

func (s *Service) FindByUsername(ctx context.Context, username string) (*User, error) {
	return s.repo.GetByUsername(ctx, username)
}

func (s *Service) FindByAPIKey(ctx context.Context, apiKey string) (*User, error) {
	if apiKey == "" {
		return nil, nil
	}
	return s.repo.GetByAPIKey(ctx, apiKey)
}

func (s *Service) ListAll(ctx context.Context) ([]*User, error) {
	return s.repo.List(ctx)
}

// DecrementCredits charges one credit. The balance is floored at zero.
func (s *Service) DecrementCredits(ctx context.Context, username string) (int, error) {
	return s.repo.DecrementCredits(ctx, username)
}

// Update applies the non-nil fields of req. A new password is hashed before
// it is stored.
func (s *Service) Update(ctx context.Context, username string, req UpdateRequest) (*User, error) {
	upd := Update{
		IsActive: req.IsActive,
		Credits:  req.Credits,
	}
	if req.Credits != nil && *req.Credits < 0 {
		return nil, fmt.Errorf("%w, got %d", ErrNegativeCredits, *req.Credits)
	}
	if req.Password != nil {
		hash, err := s.hashSecret(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("hashing secret: %w", err)
		}
		upd.PasswordHash = &hash
	}
	return s.repo.Update(ctx, username, upd)
}

func (s *Service) Delete(ctx context.Context, username string) error {
	if err := s.repo.Delete(ctx, username); err != nil {
		return err
	}
	slog.Info("user deleted", "username", username)
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
