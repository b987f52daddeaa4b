package users

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"attendtrack/internal/auth"
)

// ErrDuplicate is returned when a unique column (uid, email) already exists.
var ErrDuplicate = errors.New("duplicate user")

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, q string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, q string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, q string, args ...any) *sql.Row
}

// Repository persists users and refresh tokens in Postgres.
type Repository struct {
	db DBTX
}

// NewRepository creates a repo.
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

const userColumns = `uid, full_name, email, photo_url, role, active, registered_at, updated_at, auth_provider, password_hash`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	var role, provider string
	if err := row.Scan(&u.UID, &u.FullName, &u.Email, &u.PhotoURL, &role, &u.Active,
		&u.RegisteredAt, &u.UpdatedAt, &provider, &u.PasswordHash); err != nil {
		return User{}, err
	}
	u.Role = auth.Role(role)
	u.Provider = Provider(provider)
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Create inserts a user. Timestamps are assigned by the database.
func (r *Repository) Create(ctx context.Context, u User) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (uid, full_name, email, photo_url, role, active, auth_provider, password_hash)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING registered_at, updated_at
	`, u.UID, u.FullName, u.Email, u.PhotoURL, string(u.Role), u.Active, string(u.Provider), u.PasswordHash)
	if err := row.Scan(&u.RegisteredAt, &u.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrDuplicate
		}
		return User{}, err
	}
	return u, nil
}

func (r *Repository) one(ctx context.Context, where string, arg any) (*User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// Get returns a user by uid, or nil.
func (r *Repository) Get(ctx context.Context, uid string) (*User, error) {
	return r.one(ctx, "uid = $1", uid)
}

// GetByEmail returns a user by case-insensitive email, or nil.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.one(ctx, "lower(email) = lower($1)", email)
}

// List returns users, optionally restricted to one role.
func (r *Repository) List(ctx context.Context, role auth.Role) ([]User, error) {
	q := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if role != "" {
		q += ` WHERE role = $1`
		args = append(args, string(role))
	}
	q += ` ORDER BY full_name`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Repository) exec(ctx context.Context, q string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetRole changes the role and reports whether the user exists.
func (r *Repository) SetRole(ctx context.Context, uid string, role auth.Role) (bool, error) {
	return r.exec(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE uid = $1`, uid, string(role))
}

// SetActive toggles the account.
func (r *Repository) SetActive(ctx context.Context, uid string, active bool) (bool, error) {
	return r.exec(ctx, `UPDATE users SET active = $2, updated_at = NOW() WHERE uid = $1`, uid, active)
}

// SetPhoto stores the profile photo URL.
func (r *Repository) SetPhoto(ctx context.Context, uid, url string) (bool, error) {
	return r.exec(ctx, `UPDATE users SET photo_url = $2, updated_at = NOW() WHERE uid = $1`, uid, url)
}

// UpdateProfile changes the non-nil fields of p and bumps updated_at. A taken email
// returns ErrDuplicate.
func (r *Repository) UpdateProfile(ctx context.Context, uid string, p ProfileUpdate) (bool, error) {
	ok, err := r.exec(ctx, `
		UPDATE users
		SET full_name = COALESCE($2, full_name), email = COALESCE($3, email), updated_at = NOW()
		WHERE uid = $1
	`, uid, p.FullName, p.Email)
	if isUniqueViolation(err) {
		return false, ErrDuplicate
	}
	return ok, err
}

// Delete removes the user. Their attendance records stay.
func (r *Repository) Delete(ctx context.Context, uid string) (bool, error) {
	return r.exec(ctx, `DELETE FROM users WHERE uid = $1`, uid)
}

// SaveRefreshToken stores a refresh token id for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, tokenID, uid string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (token_id, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, tokenID, uid, expiresAt)
	return err
}

// RefreshTokenActive reports whether the token id exists, is unrevoked and unexpired.
func (r *Repository) RefreshTokenActive(ctx context.Context, tokenID string) (bool, error) {
	var active bool
	err := r.db.QueryRowContext(ctx, `
		SELECT NOT revoked AND expires_at > NOW() FROM refresh_tokens WHERE token_id = $1
	`, tokenID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return active, err
}

// RevokeRefreshToken marks a token revoked.
func (r *Repository) RevokeRefreshToken(ctx context.Context, tokenID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token_id = $1`, tokenID)
	return err
}
