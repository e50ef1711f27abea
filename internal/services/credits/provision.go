package credits

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/obsidian-neural/loop-service/internal/core/docdb"
	"github.com/obsidian-neural/loop-service/internal/domain/models"
	"github.com/obsidian-neural/loop-service/internal/pkg/encryption"
)

const (
	apiKeyLength   = 32
	apiKeyAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateAPIKey returns a new random API key value.
func GenerateAPIKey() (string, error) {
	key := make([]byte, apiKeyLength)
	max := big.NewInt(int64(len(apiKeyAlphabet)))
	for i := range key {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate API key: %w", err)
		}
		key[i] = apiKeyAlphabet[n.Int64()]
	}
	return string(key), nil
}

// ProvisionRequest describes a credential to provision.
type ProvisionRequest struct {
	Name         string
	IsLimited    bool
	TotalCredits int64
	ExpiresAt    *time.Time
}

// Provision creates a new credential record, storing only the key digest
// and the encrypted key value, and returns the clear key. The clear key is
// shown once and never persisted.
func Provision(ctx context.Context, credentials docdb.CredentialsCollection, encryptor encryption.Encryptor, req ProvisionRequest) (string, error) {
	apiKey, err := GenerateAPIKey()
	if err != nil {
		return "", err
	}

	encrypted, err := encryptor.EncryptString(apiKey)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt API key: %w", err)
	}

	record := &models.CredentialRecord{
		Digest:       Digest(apiKey),
		KeyEncrypted: encrypted,
		Name:         req.Name,
		IsLimited:    req.IsLimited,
		TotalCredits: req.TotalCredits,
		ExpiresAt:    req.ExpiresAt,
		CreatedAt:    time.Now().UTC(),
	}

	if err := credentials.Create(ctx, record); err != nil {
		return "", err
	}

	return apiKey, nil
}
