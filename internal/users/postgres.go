package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation    = "23505"
	usernameUniqueConstr = "users_username_key"
	apiKeyUniqueConstr   = "users_api_key_key"

	userColumns = `id, username, password_hash, api_key, is_active, created_at, credits`
)

type postgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository stores the ledger in the users table created by
// migrations/000001_create_users.up.sql.
func NewPostgresRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (username, password_hash, api_key, is_active, created_at, credits)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := r.pool.QueryRow(ctx, query,
		user.Username, user.PasswordHash, user.APIKey, user.IsActive, user.CreatedAt, user.Credits,
	).Scan(&user.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			switch pgErr.ConstraintName {
			case usernameUniqueConstr:
				return ErrDuplicateUsername
			case apiKeyUniqueConstr:
				return ErrDuplicateAPIKey
			}
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	user, err := scanUser(r.pool.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying user by username: %w", err)
	}
	return user, nil
}

func (r *postgresRepository) GetByAPIKey(ctx context.Context, apiKey string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE api_key = $1`
	user, err := scanUser(r.pool.QueryRow(ctx, query, apiKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying user by api key: %w", err)
	}
	return user, nil
}

func (r *postgresRepository) List(ctx context.Context) ([]*User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		out = append(out, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user rows: %w", err)
	}
	return out, nil
}

func (r *postgresRepository) DecrementCredits(ctx context.Context, username string) (int, error) {
	query := `
		UPDATE users SET credits = GREATEST(credits - 1, 0)
		WHERE username = $1
		RETURNING credits`

	var credits int
	err := r.pool.QueryRow(ctx, query, username).Scan(&credits)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("decrementing credits: %w", err)
	}
	return credits, nil
}

func (r *postgresRepository) Update(ctx context.Context, username string, upd Update) (*User, error) {
	query := `
		UPDATE users SET
			password_hash = COALESCE($2, password_hash),
			is_active     = COALESCE($3, is_active),
			credits       = COALESCE($4, credits)
		WHERE username = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, username, upd.PasswordHash, upd.IsActive, upd.Credits))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("updating user: %w", err)
	}
	return user, nil
}

func (r *postgresRepository) Delete(ctx context.Context, username string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE username = $1`, username)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *postgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanUser(row pgx.Row) (*User, error) {
	u := &User{}
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.APIKey, &u.IsActive, &u.CreatedAt, &u.Credits)
	if err != nil {
		return nil, err
	}
	return u, nil
}
