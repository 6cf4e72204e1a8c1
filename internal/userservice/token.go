package userservice

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"time"
)

func hashToken(token string) []byte {
	hash := sha256.Sum256([]byte(token))
	return hash[:]
}

func newToken(userID int, ttl time.Duration, scope tokenScope) (*Token, error) {
	randomBytes := make([]byte, 16)
	_, err := rand.Read(randomBytes)
	if err != nil {
		return nil, err
	}

	token := &Token{
		Plain:  base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(randomBytes),
		UserID: userID,
		Expiry: time.Now().Add(ttl),
		Scope:  scope,
	}

	token.Hash = hashToken(token.Plain)

	return token, nil
}

func (m *DBModel) createToken(ctx context.Context, q querier, userID int, ttl time.Duration, scope tokenScope) (*Token, error) {
	token, err := newToken(userID, ttl, scope)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO tokens (hash, user_id, expiry, scope)
		VALUES ($1, $2, $3, $4)`

	_, err = q.ExecContext(ctx, query, token.Hash, token.UserID, token.Expiry, string(token.Scope))
	if err != nil {
		return nil, err
	}

	return token, nil
}

// getUserForToken returns the owner of an unexpired token of the given scope.
func (m *DBModel) getUserForToken(ctx context.Context, scope tokenScope, hash []byte) (*User, error) {
	query := `
		SELECT u.id, u.full_name, u.username, u.phone_number, u.email, u.password, COALESCE(u.google_subject, ''), u.role, u.created_at, u.updated_at, u.version
		FROM users u
		INNER JOIN tokens t ON u.id = t.user_id
		WHERE t.hash = $1 AND t.scope = $2 AND t.expiry > $3`

	return scanUser(m.db.QueryRowContext(ctx, query, hash, string(scope), time.Now()))
}

func (m *DBModel) deleteTokensForUser(ctx context.Context, q querier, userID int, scope tokenScope) error {
	query := `
		DELETE FROM tokens
		WHERE user_id = $1 AND scope = $2`

	_, err := q.ExecContext(ctx, query, userID, string(scope))
	return err
}

func (m *DBModel) createAuthToken(ctx context.Context, q querier, userID int, client ClientInfo) (*AuthToken, error) {
	accessToken, err := newToken(userID, AccessTokenTime, "")
	if err != nil {
		return nil, err
	}

	authToken := &AuthToken{
		AccessTokenPlain:  accessToken.Plain,
		AccessTokenHash:   accessToken.Hash,
		UserID:            userID,
		AccessTokenExpiry: accessToken.Expiry,
		IPAddress:         client.IPAddress,
		UserAgent:         client.UserAgent,
	}

	query := `
		INSERT INTO auth_tokens (access_token, user_id, access_token_expiry, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = q.ExecContext(ctx, query, authToken.AccessTokenHash, authToken.UserID, authToken.AccessTokenExpiry, authToken.IPAddress, authToken.UserAgent)
	if err != nil {
		return nil, err
	}

	return authToken, nil
}

func (m *DBModel) getUserForAuthToken(ctx context.Context, hash []byte) (*User, error) {
	query := `
		SELECT u.id, u.full_name, u.username, u.phone_number, u.email, u.password, COALESCE(u.google_subject, ''), u.role, u.created_at, u.updated_at, u.version
		FROM users u
		INNER JOIN auth_tokens a ON u.id = a.user_id
		WHERE a.access_token = $1 AND a.access_token_expiry > $2`

	return scanUser(m.db.QueryRowContext(ctx, query, hash, time.Now()))
}

func (m *DBModel) deleteAuthToken(ctx context.Context, hash []byte) error {
	query := `
		DELETE FROM auth_tokens
		WHERE access_token = $1`

	_, err := m.db.ExecContext(ctx, query, hash)
	return err
}

func (m *DBModel) deleteAuthTokensForUser(ctx context.Context, q querier, userID int) error {
	query := `
		DELETE FROM auth_tokens
		WHERE user_id = $1`

	_, err := q.ExecContext(ctx, query, userID)
	return err
}

// deleteExpiredTokens removes expired reset and auth tokens and returns how many rows went.
func (m *DBModel) deleteExpiredTokens(ctx context.Context) (int64, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := time.Now()

	res, err := tx.ExecContext(ctx, `DELETE FROM tokens WHERE expiry <= $1`, now)
	if err != nil {
		return 0, err
	}
	tokens, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	res, err = tx.ExecContext(ctx, `DELETE FROM auth_tokens WHERE access_token_expiry <= $1`, now)
	if err != nil {
		return 0, err
	}
	authTokens, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return tokens + authTokens, nil
}
