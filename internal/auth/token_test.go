package auth

import (
	"context"
	"testing"
	"time"

	"github.com/dkeye/Voice/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestJWTResolver_RoundTrip(t *testing.T) {
	req := require.New(t)
	r, err := NewJWTResolver("secret")
	req.NoError(err)

	who := domain.Identity{ID: "doc-1", DisplayName: "Dr Who", Kind: domain.KindDoctor}
	token, err := r.Issue(who, time.Minute)
	req.NoError(err)

	got, err := r.Resolve(context.Background(), "Bearer "+token)
	req.NoError(err)
	req.Equal(who, got)
}

func TestJWTResolver_Rejects(t *testing.T) {
	r, err := NewJWTResolver("secret")
	require.NoError(t, err)
	other, err := NewJWTResolver("other")
	require.NoError(t, err)

	who := domain.Identity{ID: "u1", DisplayName: "U", Kind: domain.KindClient}
	foreign, err := other.Issue(who, time.Minute)
	require.NoError(t, err)
	expired, err := r.Issue(who, -time.Minute)
	require.NoError(t, err)
	noID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{Name: "x"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, &Claims{ID: "u1"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	cases := map[string]string{
		"empty":      "",
		"null":       "null",
		"garbage":    "not-a-token",
		"bad key":    foreign,
		"expired":    expired,
		"missing id": noID,
		"wrong alg":  wrongAlg,
	}
	for name, credential := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), credential)
			require.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}

func TestNewJWTResolver_EmptySecret(t *testing.T) {
	_, err := NewJWTResolver("")
	require.Error(t, err)
}
