package auth

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"livechat-client/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoIdentity = errors.New("auth: token carries no identity")

// CustomClaims is the access token issued by the chat backend.
type CustomClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// ParseIdentity extracts the identity from an access token. With an empty
// key the signature is not checked; the token is then only a local hint
// and the server stays the authority.
func ParseIdentity(tokenString, key string) (models.Identity, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return models.Identity{}, ErrNoIdentity
	}

	claims := &CustomClaims{}
	if key == "" {
		if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
			log.Printf("[AUTH] Unverified parse failed: %v", err)
			return models.Identity{}, fmt.Errorf("parse token: %w", err)
		}
		if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
			return models.Identity{}, jwt.ErrTokenExpired
		}
	} else {
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(key), nil
		})
		if err != nil {
			log.Printf("[AUTH] JWT Parse Error: %v", err)
			return models.Identity{}, fmt.Errorf("validate token: %w", err)
		}
		if !token.Valid {
			return models.Identity{}, errors.New("invalid token")
		}
	}

	id := models.NewIdentity(claims.Username, claims.Role)
	if id.Username == "" {
		return models.Identity{}, ErrNoIdentity
	}
	return id, nil
}

// GenerateToken signs an HS256 token for id. The client only needs it for
// tests and local tooling.
func GenerateToken(id models.Identity, key string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		Username: id.Username,
		Role:     id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "GoHub",
			Subject:   id.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
}
