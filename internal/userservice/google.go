package userservice

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sushihentaime/emerald/internal/common"
)

const GoogleCertsURL = "https://www.googleapis.com/oauth2/v1/certs"

var (
	googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

	ErrInvalidIdentityToken = errors.New("invalid identity token")
)

// GoogleIdentity is the verified subset of a Google ID token.
type GoogleIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

type IdentityVerifier interface {
	Verify(ctx context.Context, rawToken string) (*GoogleIdentity, error)
}

// KeySource returns the RSA public keys that may have signed a token, by key id.
type KeySource interface {
	Keys(ctx context.Context) (map[string]*rsa.PublicKey, error)
}

type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	jwt.RegisteredClaims
}

type GoogleVerifier struct {
	clientID string
	keys     KeySource
}

func NewGoogleVerifier(clientID string, keys KeySource) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID, keys: keys}
}

func (g *GoogleVerifier) Verify(ctx context.Context, rawToken string) (*GoogleIdentity, error) {
	keys, err := g.keys.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not load signing keys: %w", err)
	}

	var claims googleClaims

	_, err = jwt.ParseWithClaims(rawToken, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		key, ok := keys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(g.clientID),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentityToken, err)
	}

	if !slices.Contains(googleIssuers, claims.Issuer) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidIdentityToken, claims.Issuer)
	}

	if claims.Subject == "" || claims.Email == "" {
		return nil, fmt.Errorf("%w: missing subject or email", ErrInvalidIdentityToken)
	}

	return &GoogleIdentity{
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
	}, nil
}

// CertSource downloads Google's PEM certificates and caches them for the
// max-age the endpoint advertises.
type CertSource struct {
	url    string
	client *http.Client
	cache  common.Cache
}

func NewCertSource(url string, cache common.Cache) *CertSource {
	return &CertSource{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		cache:  cache,
	}
}

func (c *CertSource) Keys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	body, err := c.cache.Get(ctx, common.CacheKeyGoogleCerts)
	if err != nil {
		body, err = c.fetch(ctx)
		if err != nil {
			return nil, err
		}
	}

	var certs map[string]string
	if err := json.Unmarshal(body, &certs); err != nil {
		return nil, fmt.Errorf("could not decode certificates: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pem := range certs {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			return nil, fmt.Errorf("could not parse certificate %s: %w", kid, err)
		}
		keys[kid] = key
	}

	return keys, nil
}

func (c *CertSource) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status fetching certificates: %s", res.Status)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if ttl := maxAge(res.Header.Get("Cache-Control")); ttl > 0 {
		_ = c.cache.Set(ctx, common.CacheKeyGoogleCerts, body, ttl)
	}

	return body, nil
}

func maxAge(cacheControl string) time.Duration {
	for _, directive := range strings.Split(cacheControl, ",") {
		directive = strings.TrimSpace(directive)
		if v, ok := strings.CutPrefix(directive, "max-age="); ok {
			secs, err := strconv.Atoi(v)
			if err != nil || secs <= 0 {
				return 0
			}
			return time.Duration(secs) * time.Second
		}
	}

	return 0
}
