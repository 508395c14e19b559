// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxUserIDLen   = 64
	MaxUsernameLen = 64
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUserIDEmpty     = errors.New("user id empty")
	ErrUserIDTooLong   = errors.New("user id too long")
)

type UserID string

type IdentityKind string

const (
	KindClient IdentityKind = "client"
	KindDoctor IdentityKind = "doctor"
	KindAdmin  IdentityKind = "admin"
)

// Identity is an authenticated party. It is immutable for the lifetime of a transport session.
type Identity struct {
	ID          UserID       `json:"id"`
	DisplayName string       `json:"name"`
	Kind        IdentityKind `json:"role"`
}

// NewIdentity is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewIdentity(id, name string, kind IdentityKind) (Identity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Identity{}, ErrUserIDEmpty
	}
	if len(id) > MaxUserIDLen {
		return Identity{}, ErrUserIDTooLong
	}
	if len(name) > MaxUsernameLen {
		return Identity{}, ErrUsernameTooLong
	}
	if name == "" {
		name = "guest"
	}
	if kind == "" {
		kind = KindClient
	}
	return Identity{ID: UserID(id), DisplayName: name, Kind: kind}, nil
}
