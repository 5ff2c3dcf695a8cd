package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const sessionTokenType = "session"

// Token validation errors
var (
	ErrTokenInvalid = errors.New("session token is invalid")
	ErrTokenExpired = errors.New("session token is expired")
)

// TokenGenerator signs and validates session tokens.
//
// A token only carries the session id, everything else lives in the session store.
type TokenGenerator struct {
	secret []byte
}

// NewTokenGenerator creates a new token generator
func NewTokenGenerator(secret string) *TokenGenerator {
	return &TokenGenerator{secret: []byte(secret)}
}

// Generate signs a token for the session that stops being accepted at expiresAt
func (tg *TokenGenerator) Generate(sessionID string, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sid":  sessionID,
		"exp":  expiresAt.Unix(),
		"iat":  time.Now().Unix(),
		"type": sessionTokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tg.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}

// Validate checks the signature and expiry and returns the session id
func (tg *TokenGenerator) Validate(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tg.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrTokenInvalid
	}

	if tokenType, _ := claims["type"].(string); tokenType != sessionTokenType {
		return "", fmt.Errorf("%w: not a session token", ErrTokenInvalid)
	}

	sessionID, _ := claims["sid"].(string)
	if sessionID == "" {
		return "", fmt.Errorf("%w: session id not found in token", ErrTokenInvalid)
	}

	return sessionID, nil
}
