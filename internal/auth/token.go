package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	employeeIdClaim   = "employee_id"
	employeeNameClaim = "employee_name"
	expClaim          = "exp"
)

// Identity is the local sender identity carried by a session token.
type Identity struct {
	EmployeeId string
	Name       string
	ExpiresAt  time.Time
}

// ParseIdentity extracts the identity claims from a session token without
// verifying its signature. Verification belongs to the backend; the client
// only needs to know who it is sending as and when the token lapses.
func ParseIdentity(token string) (Identity, error) {
	claims := jwt.MapClaims{}
	parser := jwt.Parser{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("parse token: %w", err)
	}

	id, ok := claims[employeeIdClaim].(string)
	if !ok || id == "" {
		return Identity{}, fmt.Errorf("token has no %s claim", employeeIdClaim)
	}

	ident := Identity{EmployeeId: id}

	if name, ok := claims[employeeNameClaim].(string); ok {
		ident.Name = name
	}

	if exp, ok := claims[expClaim].(float64); ok {
		ident.ExpiresAt = time.Unix(int64(exp), 0)
	}

	return ident, nil
}

// Expired reports whether the identity's token has lapsed at the given time.
// Tokens without an exp claim never expire client-side.
func (i Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}
