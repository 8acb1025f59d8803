// Package token validates the bearer tokens minted by the identity
// subsystem. The core never issues tokens; it only verifies the signature and
// extracts the caller identity and coarse role.
package token

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"landledger/internal/platform/middleware"
	id "landledger/pkg/domain"
	"landledger/pkg/requestcontext"
)

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Validator verifies HMAC-signed tokens from the identity subsystem.
type Validator struct {
	signingKey []byte
}

func NewValidator(signingKey string) *Validator {
	return &Validator{signingKey: []byte(signingKey)}
}

// ValidateToken parses and verifies the token, returning caller claims.
func (v *Validator) ValidateToken(tokenString string) (*middleware.Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	userID, err := id.ParseUserID(c.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid subject: %w", err)
	}

	role := requestcontext.Role(c.Role)
	if !role.IsValid() {
		role = requestcontext.RoleCitizen
	}

	return &middleware.Claims{UserID: userID, Role: role}, nil
}
