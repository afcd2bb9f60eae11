package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid indicates the presented credential failed verification.
	ErrTokenInvalid = errors.New("credential token invalid")
)

// TokenCodec signs and verifies the opaque bearer credentials issued to
// authenticated users. Verification fails closed: any tampering, algorithm
// confusion or expiry yields ErrTokenInvalid.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration

	nowFunc func() time.Time
}

// NewTokenCodec constructs a codec signing HS256 tokens with the provided
// secret and lifetime.
func NewTokenCodec(secret string, ttl time.Duration) *TokenCodec {
	if secret == "" {
		panic("auth: token secret must not be empty")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenCodec{secret: []byte(secret), ttl: ttl, nowFunc: time.Now}
}

// WithNowFunc overrides the time source. Useful for tests.
func (c *TokenCodec) WithNowFunc(now func() time.Time) *TokenCodec {
	if now != nil {
		c.nowFunc = now
	}
	return c
}

// Issue mints a signed credential whose subject is the provided user id.
func (c *TokenCodec) Issue(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("user id must be provided")
	}

	now := c.nowFunc().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign credential: %w", err)
	}

	return signed, nil
}

// Verify parses the presented credential and returns the subject user id.
func (c *TokenCodec) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrTokenInvalid
	}

	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return c.nowFunc().UTC() }),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return "", ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrTokenInvalid
	}

	return claims.Subject, nil
}
