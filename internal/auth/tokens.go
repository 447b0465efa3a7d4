package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Pair is the credential pair returned by login, registration and refresh.
// Both tokens decode to the same payload.
type Pair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Tokens signs access and refresh tokens with separate secrets so a
// refresh token is never accepted as an access token and vice versa.
type Tokens struct {
	access     *Issuer
	refresh    *Issuer
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokens builds both issuers.  A zero TTL selects the default.
func NewTokens(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, opts ...IssuerOption) (*Tokens, error) {
	access, err := NewIssuer(accessSecret, opts...)
	if err != nil {
		return nil, fmt.Errorf("access issuer: %w", err)
	}
	refresh, err := NewIssuer(refreshSecret, opts...)
	if err != nil {
		return nil, fmt.Errorf("refresh issuer: %w", err)
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &Tokens{access: access, refresh: refresh, accessTTL: accessTTL, refreshTTL: refreshTTL}, nil
}

// IssuePair mints a fresh access/refresh pair for p.  Each refresh token
// carries a random jti so two refreshes within the same second never
// produce the same stored hash.
func (t *Tokens) IssuePair(p Payload) (Pair, error) {
	at, err := t.access.Issue(p, t.accessTTL)
	if err != nil {
		return Pair{}, err
	}
	rt, err := t.refresh.sign(p, t.refreshTTL, uuid.NewString())
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		AccessToken:      at.Token,
		RefreshToken:     rt.Token,
		AccessExpiresAt:  at.ExpiresAt,
		RefreshExpiresAt: rt.ExpiresAt,
	}, nil
}

func (t *Tokens) VerifyAccess(token string) (Payload, error)  { return t.access.Verify(token) }
func (t *Tokens) VerifyRefresh(token string) (Payload, error) { return t.refresh.Verify(token) }
