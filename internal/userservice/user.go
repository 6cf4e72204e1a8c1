package userservice

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sushihentaime/emerald/internal/common"
)

var (
	ErrDuplicateUsername = errors.New("duplicate username")
	ErrDuplicateEmail    = errors.New("duplicate email")
	ErrNotFound          = errors.New("user not found")
	ErrEditConflict      = errors.New("edit conflict")
)

const userColumns = `id, full_name, username, phone_number, email, password, COALESCE(google_subject, ''), role, created_at, updated_at, version`

func newUserModel(db *sql.DB) *DBModel {
	return &DBModel{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*User, error) {
	var u User

	err := row.Scan(&u.ID, &u.FullName, &u.Username, &u.PhoneNumber, &u.Email, &u.Password.hash, &u.GoogleSubject, &u.Role, &u.CreatedAt, &u.UpdatedAt, &u.Version)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrNotFound
		default:
			return nil, err
		}
	}

	return &u, nil
}

func (m *DBModel) insertUser(ctx context.Context, q querier, u *User) error {
	query := `
		INSERT INTO users (full_name, username, phone_number, email, password, google_subject, role)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
		RETURNING id, created_at, updated_at, version`

	args := []any{
		u.FullName,
		u.Username,
		u.PhoneNumber,
		u.Email,
		u.Password.value(),
		u.GoogleSubject,
		u.Role,
	}

	err := q.QueryRowContext(ctx, query, args...).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt, &u.Version)
	if err != nil {
		switch {
		case common.IsUniqueViolation(err, "users_username_key"):
			return ErrDuplicateUsername
		case common.IsUniqueViolation(err, "users_email_key"):
			return ErrDuplicateEmail
		default:
			return err
		}
	}
	return nil
}

func (m *DBModel) getUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	return scanUser(m.db.QueryRowContext(ctx, query, email))
}

func (m *DBModel) getUserByID(ctx context.Context, id int) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	return scanUser(m.db.QueryRowContext(ctx, query, id))
}

func (m *DBModel) getUserByGoogleSubject(ctx context.Context, subject string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE google_subject = $1`

	return scanUser(m.db.QueryRowContext(ctx, query, subject))
}

func (m *DBModel) usernameExists(ctx context.Context, username string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`

	var exists bool
	err := m.db.QueryRowContext(ctx, query, username).Scan(&exists)
	return exists, err
}

func (m *DBModel) linkGoogleSubject(ctx context.Context, u *User, subject string) error {
	query := `
		UPDATE users
		SET google_subject = $1, updated_at = NOW(), version = version + 1
		WHERE id = $2 AND version = $3
		RETURNING updated_at, version`

	err := m.db.QueryRowContext(ctx, query, subject, u.ID, u.Version).Scan(&u.UpdatedAt, &u.Version)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return ErrEditConflict
		default:
			return err
		}
	}

	u.GoogleSubject = subject
	return nil
}

func (m *DBModel) updateUserPassword(ctx context.Context, q querier, u *User) error {
	query := `
		UPDATE users
		SET password = $1, updated_at = NOW(), version = version + 1
		WHERE id = $2 AND version = $3
		RETURNING updated_at, version`

	err := q.QueryRowContext(ctx, query, u.Password.value(), u.ID, u.Version).Scan(&u.UpdatedAt, &u.Version)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return ErrEditConflict
		default:
			return err
		}
	}

	return nil
}
