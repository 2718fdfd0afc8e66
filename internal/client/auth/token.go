// Package auth derives the current identity from an access token issued by
// the backend. The client never verifies signatures; verification is the
// backend's job, the token only identifies whose data is on this device.
package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/carnetapp/carnet/internal/common"
)

// Claims mirrors the registered claims plus the user identifier claim the
// backend places in access tokens.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId,omitempty"`
}

// SubjectFromToken extracts the stable user identifier from tokenString
// without verifying the signature. It prefers the userId claim and falls
// back to the registered subject.
func SubjectFromToken(tokenString string) (string, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return "", fmt.Errorf("%w: empty token", common.ErrValidation)
	}

	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	if claims.UserID != "" {
		return claims.UserID, nil
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	return "", fmt.Errorf("%w: token carries no subject", common.ErrValidation)
}
