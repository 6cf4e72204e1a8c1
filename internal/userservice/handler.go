package userservice

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"regexp"
	"strings"

	"github.com/sushihentaime/emerald/internal/common"
)

var (
	ErrAuthenticationFailure = fmt.Errorf("unauthorized access")
	ErrGoogleSignInDisabled  = errors.New("google sign-in is not configured")
)

// NewUserService wires the user model to the broker. verifier may be nil when Google sign-in is disabled.
func NewUserService(db *sql.DB, mb common.MessageProducer, verifier IdentityVerifier, adminEmail string, logger *slog.Logger) *UserService {
	return &UserService{
		m:          newUserModel(db),
		mb:         mb,
		verifier:   verifier,
		adminEmail: adminEmail,
		logger:     logger,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser registers an account, signs it in and publishes a user.created event.
// The role is computed once from the configured admin email.
func (s *UserService) CreateUser(ctx context.Context, input RegisterInput, client ClientInfo) (*User, *AuthToken, error) {
	u := User{
		FullName:    strings.TrimSpace(input.FullName),
		Username:    strings.TrimSpace(input.Username),
		PhoneNumber: strings.TrimSpace(input.PhoneNumber),
		Email:       normalizeEmail(input.Email),
	}

	v := common.NewValidator()
	validateFullName(v, u.FullName)
	validateUsername(v, u.Username)
	validatePhoneNumber(v, u.PhoneNumber)
	validateEmail(v, u.Email)
	validatePassword(v, input.Password)
	if !v.Valid() {
		return nil, nil, v.ValidationError()
	}

	u.Role = RoleForEmail(u.Email, s.adminEmail)

	err := u.Password.set(input.Password)
	if err != nil {
		return nil, nil, err
	}

	token, err := s.insertAndSignIn(ctx, &u, client)
	if err != nil {
		return nil, nil, err
	}

	s.publishUserEvent(ctx, common.UserCreatedKey, UserEvent{Email: u.Email, FullName: u.FullName, Username: u.Username})

	return &u, token, nil
}

func (s *UserService) insertAndSignIn(ctx context.Context, u *User, client ClientInfo) (*AuthToken, error) {
	tx, err := s.m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	err = s.m.insertUser(ctx, tx, u)
	if err != nil {
		return nil, err
	}

	token, err := s.m.createAuthToken(ctx, tx, u.ID, client)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return token, nil
}

// publishUserEvent is best effort: the account exists whether or not the email goes out.
func (s *UserService) publishUserEvent(ctx context.Context, key common.BindingKey, event UserEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("could not encode user event", slog.String("key", string(key)), slog.String("error", err.Error()))
		return
	}

	err = s.mb.Publish(ctx, data, key, common.UserExchange)
	if err != nil {
		s.logger.Error("could not publish user event", slog.String("key", string(key)), slog.String("error", err.Error()))
	}
}

// UsernameAvailable is advisory only. The unique constraint decides at write time.
func (s *UserService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)

	v := common.NewValidator()
	v.Check(username != "", "username", "must be provided")
	v.Check(v.CheckStringLength(username, 3, 25), "username", "must be between 3 and 25 characters long")
	if !v.Valid() {
		return false, v.ValidationError()
	}

	exists, err := s.m.usernameExists(ctx, username)
	if err != nil {
		return false, err
	}

	return !exists, nil
}

// LoginUser signs in with email and password and returns a new access token.
func (s *UserService) LoginUser(ctx context.Context, email, password string, client ClientInfo) (*AuthToken, error) {
	email = normalizeEmail(email)

	v := common.NewValidator()
	validateEmail(v, email)
	v.Check(password != "", "password", "must be provided")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	user, err := s.m.getUserByEmail(ctx, email)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, ErrAuthenticationFailure
		default:
			return nil, err
		}
	}

	ok, err := user.Password.compare(password)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, ErrAuthenticationFailure
	}

	return s.m.createAuthToken(ctx, s.m.db, user.ID, client)
}

// SignInWithGoogle verifies a Google ID token and signs in the matching account.
// Accounts are matched by Google subject, then linked by email, then created.
func (s *UserService) SignInWithGoogle(ctx context.Context, idToken string, client ClientInfo) (*User, *AuthToken, error) {
	if s.verifier == nil {
		return nil, nil, ErrGoogleSignInDisabled
	}

	v := common.NewValidator()
	v.Check(idToken != "", "id_token", "must be provided")
	if !v.Valid() {
		return nil, nil, v.ValidationError()
	}

	identity, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrAuthenticationFailure, err)
	}

	if !identity.EmailVerified {
		return nil, nil, fmt.Errorf("%w: email not verified", ErrAuthenticationFailure)
	}

	user, err := s.m.getUserByGoogleSubject(ctx, identity.Subject)
	if err == nil {
		token, err := s.m.createAuthToken(ctx, s.m.db, user.ID, client)
		return user, token, err
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, nil, err
	}

	email := normalizeEmail(identity.Email)

	user, err = s.m.getUserByEmail(ctx, email)
	switch {
	case err == nil:
		if err := s.m.linkGoogleSubject(ctx, user, identity.Subject); err != nil {
			return nil, nil, err
		}
		token, err := s.m.createAuthToken(ctx, s.m.db, user.ID, client)
		return user, token, err
	case !errors.Is(err, ErrNotFound):
		return nil, nil, err
	}

	return s.createGoogleUser(ctx, identity, email, client)
}

const maxUsernameAttempts = 5

var nonUsernameRX = regexp.MustCompile("[^a-zA-Z0-9_]+")

// usernameFromEmail derives a username candidate from the local part of an email address.
func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	name := nonUsernameRX.ReplaceAllString(local, "")
	if len(name) < 3 {
		name += "user"
	}
	if len(name) > 20 {
		name = name[:20]
	}
	return strings.ToLower(name)
}

func (s *UserService) createGoogleUser(ctx context.Context, identity *GoogleIdentity, email string, client ClientInfo) (*User, *AuthToken, error) {
	base := usernameFromEmail(email)

	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		username := base
		if attempt > 0 {
			n, err := rand.Int(rand.Reader, big.NewInt(10000))
			if err != nil {
				return nil, nil, err
			}
			username = fmt.Sprintf("%s%04d", base, n.Int64())
		}

		u := User{
			FullName:      strings.TrimSpace(identity.Name),
			Username:      username,
			Email:         email,
			GoogleSubject: identity.Subject,
			Role:          RoleForEmail(email, s.adminEmail),
		}

		token, err := s.insertAndSignIn(ctx, &u, client)
		if err != nil {
			if errors.Is(err, ErrDuplicateUsername) {
				continue
			}
			return nil, nil, err
		}

		s.publishUserEvent(ctx, common.UserCreatedKey, UserEvent{Email: u.Email, FullName: u.FullName, Username: u.Username})

		return &u, token, nil
	}

	return nil, nil, ErrDuplicateUsername
}

// RequestPasswordReset issues a reset token and publishes it for the mail service.
// Unknown addresses are ignored so the endpoint does not reveal which emails exist.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	v := common.NewValidator()
	validateEmail(v, email)
	if !v.Valid() {
		return v.ValidationError()
	}

	user, err := s.m.getUserByEmail(ctx, email)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return nil
		default:
			return err
		}
	}

	token, err := s.m.createToken(ctx, s.m.db, user.ID, PasswordResetTokenTime, TokenScopePasswordReset)
	if err != nil {
		return err
	}

	data, err := json.Marshal(UserEvent{Email: user.Email, FullName: user.FullName, Username: user.Username, Token: token.Plain})
	if err != nil {
		return err
	}

	return s.mb.Publish(ctx, data, common.PasswordResetKey, common.UserExchange)
}

// ResetPassword consumes a reset token, sets the new password and signs out every session.
func (s *UserService) ResetPassword(ctx context.Context, token, password string) error {
	v := common.NewValidator()
	ValidateToken(v, token)
	validatePassword(v, password)
	if !v.Valid() {
		return v.ValidationError()
	}

	user, err := s.m.getUserForToken(ctx, TokenScopePasswordReset, hashToken(token))
	if err != nil {
		return err
	}

	if err := user.Password.set(password); err != nil {
		return err
	}

	tx, err := s.m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.m.updateUserPassword(ctx, tx, user); err != nil {
		return err
	}

	if err := s.m.deleteTokensForUser(ctx, tx, user.ID, TokenScopePasswordReset); err != nil {
		return err
	}

	if err := s.m.deleteAuthTokensForUser(ctx, tx, user.ID); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdatePassword changes the password of a signed-in user. Accounts created through
// Google have no password yet and may set one without supplying the current one.
func (s *UserService) UpdatePassword(ctx context.Context, userID int, current, password string) error {
	v := common.NewValidator()
	validateInt(v, userID, "user_id")
	validatePassword(v, password)
	if !v.Valid() {
		return v.ValidationError()
	}

	user, err := s.m.getUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.Password.isSet() {
		ok, err := user.Password.compare(current)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAuthenticationFailure
		}
	}

	if err := user.Password.set(password); err != nil {
		return err
	}

	return s.m.updateUserPassword(ctx, s.m.db, user)
}

func (s *UserService) GetUserByAccessToken(ctx context.Context, token string) (*User, error) {
	v := common.NewValidator()
	ValidateToken(v, token)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	return s.m.getUserForAuthToken(ctx, hashToken(token))
}

// LogoutUser revokes only the presented access token; other sessions stay signed in.
func (s *UserService) LogoutUser(ctx context.Context, token string) error {
	v := common.NewValidator()
	ValidateToken(v, token)
	if !v.Valid() {
		return v.ValidationError()
	}

	return s.m.deleteAuthToken(ctx, hashToken(token))
}

func (s *UserService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.m.deleteExpiredTokens(ctx)
}
