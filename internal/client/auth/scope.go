// Package auth reads the registrar's permissions from the access token.
//
// The token is verified by the server on every call; the client only
// decodes it to decide what to ask for, so signatures are not checked here.
package auth

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Sadman-Ilham/opencrvs-core/internal/common"
)

// Scopes granted to registration office users.
const (
	ScopeDeclare  = "declare"
	ScopeValidate = "validate"
	ScopeRegister = "register"
	ScopeCertify  = "certify"
)

// Scopes accepts both a JSON array and a space separated string.
type Scopes []string

func (s *Scopes) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*s = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(b, &joined); err != nil {
		return fmt.Errorf("scope claim: %w", err)
	}
	*s = strings.Fields(joined)
	return nil
}

type Claims struct {
	jwt.RegisteredClaims
	Scope Scopes `json:"scope"`
}

// Has reports whether scope was granted.
func (c *Claims) Has(scope string) bool {
	return c != nil && slices.Contains(c.Scope, scope)
}

// CanRegister reports whether the holder may register declarations.
func (c *Claims) CanRegister() bool {
	return c.Has(ScopeRegister)
}

// ParseClaims decodes tokenString without verifying its signature.
func ParseClaims(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
	return claims, nil
}

// CanRegister is a shortcut for ParseClaims(token).CanRegister. An empty or
// unreadable token grants nothing.
func CanRegister(tokenString string) bool {
	if tokenString == "" {
		return false
	}
	claims, err := ParseClaims(tokenString)
	if err != nil {
		return false
	}
	return claims.CanRegister()
}
