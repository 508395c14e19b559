// Package auth resolves transport credentials into identities.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dkeye/Voice/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "voice"

// Claims is what a credential carries about its holder.
type Claims struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTResolver validates HS256 bearer tokens.
type JWTResolver struct {
	key []byte
}

func NewJWTResolver(secret string) (*JWTResolver, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	return &JWTResolver{key: []byte(secret)}, nil
}

// Resolve parses the credential and returns the identity it names.
// Every failure is reported as domain.ErrUnauthorized.
func (r *JWTResolver) Resolve(_ context.Context, credential string) (domain.Identity, error) {
	credential = strings.TrimSpace(strings.TrimPrefix(credential, "Bearer "))
	if credential == "" || credential == "null" || credential == "undefined" {
		return domain.Identity{}, fmt.Errorf("%w: token is missing", domain.ErrUnauthorized)
	}
	token, err := jwt.ParseWithClaims(credential, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return r.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return domain.Identity{}, fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	}
	id := claims.ID
	if id == "" {
		id = claims.Subject
	}
	who, err := domain.NewIdentity(id, claims.Name, domain.IdentityKind(claims.Role))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return who, nil
}

// Issue signs a credential for who. Credential issuance normally lives elsewhere; this is
// used by tooling and tests.
func (r *JWTResolver) Issue(who domain.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		ID:   string(who.ID),
		Name: who.DisplayName,
		Role: string(who.Kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(who.ID),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.key)
}
