package apikeys

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/mikepea/leaddesk/pkg/leaddesk/models"
	"gorm.io/gorm"
)

const (
	// KeyLength is the number of characters in a generated API key
	KeyLength = 32
	// KeyPrefixLength is the number of characters to store as prefix for identification
	KeyPrefixLength = 8

	keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// ErrNotFound is returned by Lookup when no live key matches
var ErrNotFound = errors.New("api key not found")

// generateAPIKey generates a new random API key of KeyLength characters from [A-Z0-9]
func generateAPIKey() (string, error) {
	max := big.NewInt(int64(len(keyAlphabet)))
	key := make([]byte, KeyLength)
	for i := range key {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		key[i] = keyAlphabet[n.Int64()]
	}
	return string(key), nil
}

// HashKey creates a SHA-256 hash of the API key
func HashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// Lookup finds the key record for a presented key, active or not.
// Soft-deleted keys are not returned.
func Lookup(db *gorm.DB, key string) (*models.APIKey, error) {
	var apiKey models.APIKey
	err := db.Where("key_hash = ?", HashKey(key)).Take(&apiKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup api key: %w", err)
	}
	return &apiKey, nil
}

// TouchLastUsed sets last_used_at on one key
func TouchLastUsed(db *gorm.DB, apiKeyID uint, at time.Time) error {
	return db.Model(&models.APIKey{}).Where("id = ?", apiKeyID).Update("last_used_at", at).Error
}
