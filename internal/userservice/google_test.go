package userservice

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sushihentaime/emerald/internal/common"
)

const testClientID = "client-id.apps.googleusercontent.com"

type staticKeys map[string]*rsa.PublicKey

func (k staticKeys) Keys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	return k, nil
}

func signGoogleToken(t *testing.T, key *rsa.PrivateKey, kid string, claims googleClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(key)
	require.NoError(t, err)

	return signed
}

func validClaims() googleClaims {
	return googleClaims{
		Email:         "jane@example.com",
		EmailVerified: true,
		Name:          "Jane Doe",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://accounts.google.com",
			Subject:   "1234567890",
			Audience:  jwt.ClaimStrings{testClientID},
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestGoogleVerifier(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	verifier := NewGoogleVerifier(testClientID, staticKeys{"kid-1": &key.PublicKey})

	testCases := []struct {
		name    string
		token   func() string
		wantErr bool
	}{
		{
			name:  "valid token",
			token: func() string { return signGoogleToken(t, key, "kid-1", validClaims()) },
		},
		{
			name: "wrong audience",
			token: func() string {
				c := validClaims()
				c.Audience = jwt.ClaimStrings{"someone-else"}
				return signGoogleToken(t, key, "kid-1", c)
			},
			wantErr: true,
		},
		{
			name: "wrong issuer",
			token: func() string {
				c := validClaims()
				c.Issuer = "https://evil.example.com"
				return signGoogleToken(t, key, "kid-1", c)
			},
			wantErr: true,
		},
		{
			name: "expired",
			token: func() string {
				c := validClaims()
				c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
				return signGoogleToken(t, key, "kid-1", c)
			},
			wantErr: true,
		},
		{
			name:    "unknown key id",
			token:   func() string { return signGoogleToken(t, key, "kid-2", validClaims()) },
			wantErr: true,
		},
		{
			name:    "signed by another key",
			token:   func() string { return signGoogleToken(t, other, "kid-1", validClaims()) },
			wantErr: true,
		},
		{
			name:    "garbage",
			token:   func() string { return "not.a.jwt" },
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			identity, err := verifier.Verify(context.Background(), tc.token())
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidIdentityToken)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, &GoogleIdentity{Subject: "1234567890", Email: "jane@example.com", EmailVerified: true, Name: "Jane Doe"}, identity)
		})
	}
}

func TestCertSource(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Cache-Control", "public, max-age=3600, must-revalidate, no-transform")
		json.NewEncoder(w).Encode(map[string]string{"kid-1": string(pemBytes)})
	}))
	defer srv.Close()

	src := NewCertSource(srv.URL, common.NewMemoryCache(time.Hour, time.Hour))

	for i := 0; i < 3; i++ {
		keys, err := src.Keys(context.Background())
		require.NoError(t, err)
		require.Contains(t, keys, "kid-1")
		assert.True(t, key.PublicKey.Equal(keys["kid-1"]))
	}

	assert.Equal(t, int32(1), hits.Load())
}

func TestMaxAge(t *testing.T) {
	assert.Equal(t, time.Hour, maxAge("public, max-age=3600, must-revalidate"))
	assert.Equal(t, time.Duration(0), maxAge("no-store"))
	assert.Equal(t, time.Duration(0), maxAge("max-age=abc"))
}
