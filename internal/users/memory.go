package users

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu       sync.RWMutex
	byName   map[string]*User
	byAPIKey map[string]*User
	order    []string
	nextID   int64
}

// NewMemoryRepository returns a process-local Repository. Records are lost
// on shutdown.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		byName:   make(map[string]*User),
		byAPIKey: make(map[string]*User),
		nextID:   1,
	}
}

func (r *memoryRepository) Create(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[user.Username]; exists {
		return ErrDuplicateUsername
	}
	if _, exists := r.byAPIKey[user.APIKey]; exists {
		return ErrDuplicateAPIKey
	}

	user.ID = r.nextID
	r.nextID++

	stored := *user
	r.byName[stored.Username] = &stored
	r.byAPIKey[stored.APIKey] = &stored
	r.order = append(r.order, stored.Username)
	return nil
}

func (r *memoryRepository) GetByUsername(_ context.Context, username string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneUser(r.byName[username]), nil
}

func (r *memoryRepository) GetByAPIKey(_ context.Context, apiKey string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneUser(r.byAPIKey[apiKey]), nil
}

// List returns users in insertion order.
func (r *memoryRepository) List(_ context.Context) ([]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*User, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, cloneUser(r.byName[name]))
	}
	return out, nil
}

func (r *memoryRepository) DecrementCredits(_ context.Context, username string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byName[username]
	if !ok {
		return 0, ErrUserNotFound
	}
	if u.Credits > 0 {
		u.Credits--
	}
	return u.Credits, nil
}

func (r *memoryRepository) Update(_ context.Context, username string, upd Update) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byName[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	if upd.Credits != nil {
		u.Credits = *upd.Credits
	}
	return cloneUser(u), nil
}

func (r *memoryRepository) Delete(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byName[username]
	if !ok {
		return ErrUserNotFound
	}
	delete(r.byName, username)
	delete(r.byAPIKey, u.APIKey)
	for i, name := range r.order {
		if name == username {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *memoryRepository) Ping(context.Context) error {
	return nil
}

func cloneUser(u *User) *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
