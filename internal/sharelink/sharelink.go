// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package sharelink issues and verifies signed preview links. A token
// names one site and lets anyone holding it view that site, public or
// not, until it expires.
package sharelink

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "storefront"

	// audience keeps tokens scoped to site previews.
	audience = "site-preview"

	// DefaultTTL is how long a share link stays valid.
	DefaultTTL = 7 * 24 * time.Hour
)

var (
	// ErrExpired is returned for well-formed tokens past their expiry.
	ErrExpired = errors.New("sharelink: link expired")

	// ErrInvalid is returned for tampered, foreign or malformed tokens.
	ErrInvalid = errors.New("sharelink: invalid link")
)

// Signer creates and verifies share tokens with an HMAC secret.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner creates a Signer. ttl <= 0 selects DefaultTTL.
func NewSigner(secret string, ttl time.Duration) (*Signer, error) {
	if len(secret) < 16 {
		return nil, errors.New("sharelink: secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL returns the lifetime of issued tokens.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Sign issues a token for siteID. The subject is the site id; the token
// id records who shared it.
func (s *Signer) Sign(siteID, sharedBy string) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)

	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Audience:  jwt.ClaimStrings{audience},
		Subject:   siteID,
		ID:        sharedBy,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sharelink: sign: %w", err)
	}
	return signed, expires, nil
}

// Verify checks a token and returns the site id it grants access to.
func (s *Signer) Verify(tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpired
		}
		return "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: no subject", ErrInvalid)
	}
	return claims.Subject, nil
}
