package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/userapi/userapi/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrUsernameExists = errors.New("username already exists")
	ErrEmailExists    = errors.New("email already exists")
)

// Unique constraint names from migrations/00001_create_users.sql.
const (
	usernameConstraint = "users_username_key"
	emailConstraint    = "users_email_key"
)

const userColumns = `id, username, email, first_name, last_name, active, created_at`

// FindUserByID retrieves a user by ID. Returns ErrUserNotFound if absent.
func (r *Repository) FindUserByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.findOne(ctx, "id", query, id)
}

// FindUserByUsername retrieves a user by exact username.
func (r *Repository) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.findOne(ctx, "username", query, username)
}

// FindUserByEmail retrieves a user by exact email.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.findOne(ctx, "email", query, email)
}

func (r *Repository) findOne(ctx context.Context, by, query string, arg any) (*model.User, error) {
	var user *model.User
	err := r.inTx(ctx, readOnly, func(tx pgx.Tx) error {
		u, err := scanUser(tx.QueryRow(ctx, query, arg))
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by %s: %w", by, err)
	}
	return user, nil
}

// ListUsers returns every user, most recently created first.
func (r *Repository) ListUsers(ctx context.Context) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query)
}

// ListActiveUsers returns active users, most recently created first.
func (r *Repository) ListActiveUsers(ctx context.Context) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE active ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query)
}

func (r *Repository) list(ctx context.Context, query string) ([]*model.User, error) {
	var users []*model.User
	err := r.inTx(ctx, readOnly, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query)
		if err != nil {
			return err
		}
		users, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.User, error) {
			return scanUser(row)
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if users == nil {
		users = []*model.User{}
	}
	return users, nil
}

// CountUsers returns the total number of users.
func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.inTx(ctx, readOnly, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// UserExistsByID reports whether a user with id exists.
func (r *Repository) UserExistsByID(ctx context.Context, id int64) (bool, error) {
	return r.exists(ctx, "id", `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id)
}

// UserExistsByUsername reports whether username is taken.
func (r *Repository) UserExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username", `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username)
}

// UserExistsByEmail reports whether email is taken.
func (r *Repository) UserExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email", `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email)
}

func (r *Repository) exists(ctx context.Context, by, query string, arg any) (bool, error) {
	var exists bool
	err := r.inTx(ctx, readOnly, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query, arg).Scan(&exists)
	})
	if err != nil {
		return false, fmt.Errorf("failed to check user existence by %s: %w", by, err)
	}
	return exists, nil
}

// SaveUser inserts the user when it has no ID yet, otherwise overwrites every
// mutable column of the existing row. The persisted representation is
// returned; the argument is not modified.
func (r *Repository) SaveUser(ctx context.Context, user *model.User) (*model.User, error) {
	if user.IsNew() {
		return r.insertUser(ctx, user)
	}
	return r.updateUser(ctx, user)
}

func (r *Repository) insertUser(ctx context.Context, user *model.User) (*model.User, error) {
	query := `
		INSERT INTO users (username, email, first_name, last_name, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns

	var saved *model.User
	err := r.inTx(ctx, readWrite, func(tx pgx.Tx) error {
		u, err := scanUser(tx.QueryRow(ctx, query,
			user.Username,
			user.Email,
			user.FirstName,
			user.LastName,
			user.Active,
		))
		saved = u
		return err
	})
	if err != nil {
		if dupErr := uniqueViolation(err); dupErr != nil {
			return nil, dupErr
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return saved, nil
}

func (r *Repository) updateUser(ctx context.Context, user *model.User) (*model.User, error) {
	// created_at is never updated.
	query := `
		UPDATE users
		SET username = $2, email = $3, first_name = $4, last_name = $5, active = $6
		WHERE id = $1
		RETURNING ` + userColumns

	var saved *model.User
	err := r.inTx(ctx, readWrite, func(tx pgx.Tx) error {
		u, err := scanUser(tx.QueryRow(ctx, query,
			user.ID,
			user.Username,
			user.Email,
			user.FirstName,
			user.LastName,
			user.Active,
		))
		saved = u
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		if dupErr := uniqueViolation(err); dupErr != nil {
			return nil, dupErr
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return saved, nil
}

// DeleteUser removes the given user's row.
func (r *Repository) DeleteUser(ctx context.Context, user *model.User) error {
	return r.DeleteUserByID(ctx, user.ID)
}

// DeleteUserByID removes a user row. Deleting a missing row is not an error.
func (r *Repository) DeleteUserByID(ctx context.Context, id int64) error {
	err := r.inTx(ctx, readWrite, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.Active,
		&u.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

// uniqueViolation maps a PostgreSQL unique_violation (SQLSTATE 23505) on the
// users table to the matching sentinel. It returns nil for any other error.
func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}

	switch pgErr.ConstraintName {
	case usernameConstraint:
		return ErrUsernameExists
	case emailConstraint:
		return ErrEmailExists
	default:
		return fmt.Errorf("unique constraint %q violated: %w", pgErr.ConstraintName, err)
	}
}
