package users

import "time"

// User is a ledger record. PasswordHash is never serialized.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	APIKey       string    `json:"api_key"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	Credits      int       `json:"credits"`
}

// Update carries the mutable fields of a User. Nil fields are left unchanged.
// ID, Username, APIKey and CreatedAt are not updatable.
type Update struct {
	PasswordHash *string
	IsActive     *bool
	Credits      *int
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
	Password string `json:"password" validate:"required,min=1,max=72"`
}

type UpdateRequest struct {
	Password *string `json:"password" validate:"omitempty,min=1,max=72"`
	IsActive *bool   `json:"is_active"`
	Credits  *int    `json:"credits" validate:"omitempty,gte=0"`
}
