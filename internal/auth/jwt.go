// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

// Package auth verifies the credentials of the two surfaces Bantay
// exposes: JWT feed tokens carried by viewer sessions and the shared
// secret presented by the Traccar webhook forwarder.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/DummyC/Bantay-v2/internal/config"
	"github.com/DummyC/Bantay-v2/internal/models"
)

// Claims are the JWT claims a feed token carries: the user id and the
// role the feed filters by.
type Claims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager creates and validates feed tokens. HMAC-SHA256 only;
// tokens with any other algorithm are rejected to prevent algorithm
// confusion.
type JWTManager struct {
	secret  []byte
	timeout time.Duration
}

// NewJWTManager creates a JWT manager with the configured secret and
// session timeout.
func NewJWTManager(cfg *config.SecurityConfig) (*JWTManager, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but was empty")
	}

	return &JWTManager{
		secret:  []byte(cfg.JWTSecret),
		timeout: cfg.SessionTimeout,
	}, nil
}

// GenerateToken signs a feed token for a user. Tokens are stateless and
// expire after the configured session timeout.
func (m *JWTManager) GenerateToken(userID int64, role models.Role) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Role:   role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.timeout)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, nil
}

// ValidateToken validates a feed token and resolves its identity.
// Returns an error when the token is expired, tampered with, malformed,
// or carries a role outside the closed set.
func (m *JWTManager) ValidateToken(tokenString string) (int64, models.Role, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return 0, "", fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return 0, "", fmt.Errorf("invalid token claims")
	}

	if claims.UserID <= 0 {
		return 0, "", fmt.Errorf("token carries no user id")
	}
	role, err := models.ParseRole(claims.Role)
	if err != nil {
		return 0, "", fmt.Errorf("token role: %w", err)
	}

	return claims.UserID, role, nil
}
