package userservice

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/sushihentaime/emerald/internal/common"
)

type tokenScope string

type Role string

const (
	TokenScopePasswordReset tokenScope = "password-reset"

	PasswordResetTokenTime time.Duration = time.Hour
	AccessTokenTime        time.Duration = 7 * 24 * time.Hour

	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

var (
	AnonymousUser = User{}
)

type UserService struct {
	m          *DBModel
	mb         common.MessageProducer
	verifier   IdentityVerifier
	adminEmail string
	logger     *slog.Logger
}

type DBModel struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type User struct {
	ID            int       `json:"id"`
	FullName      string    `json:"full_name"`
	Username      string    `json:"username"`
	PhoneNumber   string    `json:"phone_number"`
	Email         string    `json:"email"`
	Password      Password  `json:"-"`
	GoogleSubject string    `json:"-"`
	Role          Role      `json:"role"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Version       int       `json:"version"`
}

type Password struct {
	Plain string `json:"-"`
	hash  []byte `json:"-"`
}

type Token struct {
	Plain  string     `json:"token"`
	Hash   []byte     `json:"-"`
	UserID int        `json:"-"`
	Expiry time.Time  `json:"expiry"`
	Scope  tokenScope `json:"-"`
}

// Authentication Token
type AuthToken struct {
	AccessTokenPlain  string    `json:"access_token"`
	AccessTokenHash   []byte    `json:"-"`
	UserID            int       `json:"user_id"`
	AccessTokenExpiry time.Time `json:"access_token_expiry"`
	IPAddress         string    `json:"-"`
	UserAgent         string    `json:"-"`
}

// ClientInfo is recorded alongside every issued auth token.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

type RegisterInput struct {
	FullName    string
	Username    string
	PhoneNumber string
	Email       string
	Password    string
}

// UserEvent is the payload published on the user exchange.
type UserEvent struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Username string `json:"username"`
	Token    string `json:"token,omitempty"`
}
