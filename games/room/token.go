/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "arcadebox"

var ErrTokenRoom = errors.New("join token is for a different room")

// JoinClaims is the payload of a join token.
type JoinClaims struct {
	Room string `json:"room"`
	Role Role   `json:"role"`
	jwt.RegisteredClaims
}

// Signer issues and checks the opaque join tokens embedded in join URLs.
type Signer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewSigner(key []byte, ttl time.Duration) *Signer {
	return &Signer{key: key, ttl: ttl, now: time.Now}
}

func (s *Signer) Issue(code string, role Role) (string, error) {
	if !role.Valid() {
		return "", ErrInvalidRole
	}

	now := s.now()
	claims := JoinClaims{
		Room: code,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Issuer:   tokenIssuer,
			Subject:  code,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Verify checks the token signature, expiry and room, and returns the role
// it grants.
func (s *Signer) Verify(token, code string) (Role, error) {
	claims := &JoinClaims{}

	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("invalid join token: %w", err)
	}

	if claims.Room != code {
		return "", ErrTokenRoom
	}
	if !claims.Role.Valid() {
		return "", ErrInvalidRole
	}

	return claims.Role, nil
}
