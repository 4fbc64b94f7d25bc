package main

import (
	"fmt"

	"secure_chat_service/internal/chat/domain"

	"github.com/golang-jwt/jwt/v5"
)

// whoami read identity claims from the token without verifying it, the
// server verifies every request
func whoami() (domain.Session, error) {
	var claims struct {
		UserID string `json:"user_id"`
		Email  string `json:"email"`
		jwt.RegisteredClaims
	}
	if _, _, err := jwt.NewParser().ParseUnverified(cfg.Token, &claims); err != nil {
		return domain.Session{}, fmt.Errorf("parse token: %w", err)
	}
	if claims.UserID == "" {
		return domain.Session{}, fmt.Errorf("token has no user id")
	}
	return domain.Session{UserID: claims.UserID, Email: claims.Email}, nil
}
