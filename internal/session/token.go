// Package session mints and verifies the signed, short-lived bearer tokens
// handed to clients after login. A token identifies its holder; it is never
// the source of truth for role or lock status.
package session

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"coffeeshop/internal/models"
)

// CookieName is the cookie that carries the session token.
const CookieName = "access_token"

// DefaultTTL is the lifetime of an issued token.
const DefaultTTL = time.Hour

const minTokenLength = 32

var tokenFormat = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Verification errors.
var (
	ErrMalformed = errors.New("session token is malformed")
	ErrExpired   = errors.New("session token has expired")
	ErrInvalid   = errors.New("session token is invalid")
)

// Claims is the signed payload of a session token.
type Claims struct {
	UserID string      `json:"id"`
	Name   string      `json:"name"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies session tokens with a server-held HMAC secret.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer creates an Issuer. A non-positive ttl falls back to DefaultTTL.
func NewIssuer(secret, issuer string, ttl time.Duration, opts ...Option) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	i := &Issuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// TTL returns the token lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue mints a token for the identity.
func (i *Issuer) Issue(id models.Identity) (string, error) {
	now := i.now()
	claims := &Claims{
		UserID: id.ID,
		Name:   id.Name,
		Email:  id.Email,
		Role:   id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   id.ID,
			Audience:  jwt.ClaimStrings{id.Email},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// WellFormed is the cheap pre-check run before any cryptography.
func WellFormed(token string) bool {
	return len(token) >= minTokenLength && tokenFormat.MatchString(token)
}

// Verify checks format, signature, issuer and expiry and returns the claims.
// It fails closed: anything other than a fully valid token is an error.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	if !WellFormed(tokenString) {
		return nil, ErrMalformed
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !token.Valid {
		return nil, ErrInvalid
	}

	if claims.UserID == "" || claims.UserID != claims.Subject || !slices.Contains(claims.Audience, claims.Email) {
		return nil, fmt.Errorf("%w: inconsistent claims", ErrInvalid)
	}
	return claims, nil
}
