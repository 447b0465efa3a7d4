// Package auth mints and verifies the signed credentials handed to clients
// and hashes the secrets stored next to them.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingSecret = errors.New("auth: signing secret is empty")
	ErrInvalidToken  = errors.New("auth: invalid token")
	ErrExpiredToken  = errors.New("auth: token expired")
)

// IsUnauthorized reports whether err is a credential failure.  Expired and
// invalid tokens collapse into the same outcome for callers.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrExpiredToken)
}

// Payload is the identity carried by every token.
type Payload struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// Claims is the JWT body: the payload plus the registered claims.
type Claims struct {
	Payload
	jwt.RegisteredClaims
}

// SignedToken is a compact JWS together with its expiry.
type SignedToken struct {
	Token     string
	ExpiresAt time.Time
}

// Issuer signs and verifies HS256 tokens with a single secret.
type Issuer struct {
	secret []byte
	name   string
	now    func() time.Time
}

type IssuerOption func(*Issuer)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) { i.now = now }
}

// WithIssuerName sets the iss claim and requires it on verification.
func WithIssuerName(name string) IssuerOption {
	return func(i *Issuer) { i.name = name }
}

func NewIssuer(secret string, opts ...IssuerOption) (*Issuer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	i := &Issuer{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue signs payload with an expiry of now+ttl.  The same payload and
// expiry always produce the same token.
func (i *Issuer) Issue(p Payload, ttl time.Duration) (SignedToken, error) {
	return i.sign(p, ttl, "")
}

func (i *Issuer) sign(p Payload, ttl time.Duration, id string) (SignedToken, error) {
	now := i.now().UTC().Truncate(time.Second)
	exp := now.Add(ttl)
	claims := Claims{
		Payload: p,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			Issuer:    i.name,
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return SignedToken{}, fmt.Errorf("sign token: %w", err)
	}
	return SignedToken{Token: signed, ExpiresAt: exp}, nil
}

// Verify checks signature, algorithm and expiry and returns the payload.
func (i *Issuer) Verify(token string) (Payload, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	}
	if i.name != "" {
		opts = append(opts, jwt.WithIssuer(i.name))
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return Payload{}, ErrExpiredToken
	default:
		return Payload{}, ErrInvalidToken
	}
	if claims.UserID == "" {
		return Payload{}, ErrInvalidToken
	}
	return claims.Payload, nil
}
