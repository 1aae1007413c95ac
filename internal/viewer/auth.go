package viewer

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// TokenManager handles session token generation and validation
type TokenManager struct {
	tokenLength int
}

// NewTokenManager creates a new token manager
func NewTokenManager() *TokenManager {
	return &TokenManager{
		tokenLength: 32,
	}
}

// GenerateToken creates a random session token
func (tm *TokenManager) GenerateToken() (string, error) {
	token := make([]byte, tm.tokenLength)
	_, err := rand.Read(token)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(token), nil
}

// ValidateToken performs basic token validation
func (tm *TokenManager) ValidateToken(token string) error {
	if len(token) == 0 {
		return errors.New("token cannot be empty")
	}

	// Decode to verify it's valid base64
	_, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return fmt.Errorf("invalid token format: %w", err)
	}

	return nil
}

// ValidateName checks if a viewer name meets requirements
func ValidateName(name string) error {
	if len(name) < 3 {
		return errors.New("name must be at least 3 characters long")
	}
	if len(name) > 32 {
		return errors.New("name must not exceed 32 characters")
	}

	// Check for valid characters (alphanumeric, underscores and dashes)
	for _, char := range name {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '_' || char == '-') {
			return errors.New("name can only contain letters, numbers, underscores and dashes")
		}
	}

	return nil
}
