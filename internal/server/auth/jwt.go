// Package auth issues and verifies the signed bearer tokens that admit
// connections. Tokens are HS256-signed with a secret shared with the
// surrounding platform, which issues them at login.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/venturelink/messenger/internal/common"
	"github.com/venturelink/messenger/internal/server/models"
)

// Claims carries the authenticated actor alongside the registered claims.
type Claims struct {
	jwt.RegisteredClaims
	ActorType models.ActorType `json:"actorType"`
	ActorID   int64            `json:"actorId"`
}

// GenerateToken signs a token for the given identity. Used by the platform's
// login flow and by tests; this service only verifies.
func GenerateToken(identity models.Identity, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		ActorType: identity.Type,
		ActorID:   identity.ID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// IdentityFromToken verifies signature and expiry and returns the embedded
// identity. Expired tokens map to common.ErrTokenExpired, everything else to
// common.ErrInvalidToken.
func IdentityFromToken(tokenString string, secretKey []byte) (models.Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Identity{}, common.ErrTokenExpired
		}
		return models.Identity{}, common.ErrInvalidToken
	}

	if !token.Valid {
		return models.Identity{}, common.ErrInvalidToken
	}

	identity := models.Identity{Type: claims.ActorType, ID: claims.ActorID}
	if !identity.Valid() {
		return models.Identity{}, common.ErrInvalidToken
	}

	return identity, nil
}
