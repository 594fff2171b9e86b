package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

// Manager handles JWT token creation and parsing for the session identity
// cookie. Authentication itself lives outside this service; the token only
// carries the opaque owner ID the external session layer established.
type Manager struct {
	secret []byte
}

// Claims represents the JWT claims, including the user ID.
type Claims struct {
	jwt.RegisteredClaims
	UserID string
}

// NewManager creates an authentication manager with the given signing key.
func NewManager(secret string) *Manager {
	return &Manager{secret: []byte(secret)}
}

// BuildJWTString generates a signed token string carrying the user ID.
func (m *Manager) BuildJWTString(userID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
	})

	tokenString, err := token.SignedString(m.secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetUserID parses a token string, verifies its signature and returns the
// embedded user ID.
func (m *Manager) GetUserID(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.secret, nil
		})
	if err != nil {
		return "", fmt.Errorf("token error: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("token is not valid")
	}

	if claims.UserID == "" {
		return "", fmt.Errorf("token is valid but userID is missing")
	}

	return claims.UserID, nil
}
