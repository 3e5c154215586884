package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"research-orchestrator/internal/domain"

	"github.com/google/uuid"
)

const apiKeyPrefix = "beyond-"

// APIKey authenticates machine clients of the research endpoints.
// Each account owns at most one key.
type APIKey struct {
	ID        string
	AccountID string
	Key       string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAPIKey issues a fresh active key for accountID.
func NewAPIKey(accountID string) (*APIKey, error) {
	if accountID == "" {
		return nil, domain.ErrInvalidArgument
	}
	key, err := GenerateAPIKey()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &APIKey{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Key:       key,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GenerateAPIKey returns "beyond-" followed by 32 random bytes in hex.
func GenerateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return apiKeyPrefix + hex.EncodeToString(b), nil
}
