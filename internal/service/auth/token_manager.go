package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenTypeAccess = "access"

var (
	// ErrInvalidToken indicates the token format is invalid or its signature does not match.
	ErrInvalidToken = errors.New("invalid authentication token")
	// ErrExpiredToken indicates the token has expired.
	ErrExpiredToken = errors.New("authentication token has expired")
)

// Token is an issued access token and its expiry.
type Token struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// Tokens is the token bundle returned on register and login.
type Tokens struct {
	Access Token `json:"access"`
}

type claims struct {
	UserID    string `json:"uid"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// tokenManager issues and validates HS256 signed access tokens.
type tokenManager struct {
	signingKey []byte
	ttl        time.Duration
	clockSkew  time.Duration
	timeFunc   func() time.Time
}

func newTokenManager(secret string, ttl time.Duration) (*tokenManager, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 characters")
	}
	if ttl <= 0 {
		return nil, errors.New("token lifetime must be positive")
	}
	return &tokenManager{
		signingKey: []byte(secret),
		ttl:        ttl,
		clockSkew:  time.Minute,
		timeFunc:   time.Now,
	}, nil
}

func (m *tokenManager) Issue(userID string) (Token, error) {
	now := m.timeFunc()
	expires := now.Add(m.ttl)
	c := claims{
		UserID:    userID,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.signingKey)
	if err != nil {
		return Token{}, fmt.Errorf("sign access token: %w", err)
	}
	return Token{Token: signed, Expires: expires.UTC()}, nil
}

// Validate returns the user id carried by an access token.
func (m *tokenManager) Validate(token string) (string, error) {
	now := m.timeFunc()
	parsed, err := jwt.ParseWithClaims(token, &claims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(m.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || c.TokenType != tokenTypeAccess || c.UserID == "" {
		return "", ErrInvalidToken
	}
	return c.UserID, nil
}
