package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/makkenzo/keybind-service/internal/domain/apikey"
)

func generateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// generateRandomString returns length URL-safe characters with '-' and '_'
// removed, so '_' can act as the API key separator.
func generateRandomString(length int) (string, error) {
	var sb strings.Builder
	for sb.Len() < length {
		b, err := generateRandomBytes(length)
		if err != nil {
			return "", err
		}
		str := base64.RawURLEncoding.EncodeToString(b)
		str = strings.NewReplacer("-", "", "_", "").Replace(str)
		sb.WriteString(str)
	}
	return sb.String()[:length], nil
}

func GenerateAPIKey() (fullKey string, prefix string, keyHash string, err error) {
	prefix, err = generateRandomString(apikey.APIKeyPrefixLength)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to generate prefix: %w", err)
	}

	secret, err := generateRandomString(apikey.APIKeySecretLength)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to generate secret: %w", err)
	}

	fullKey = fmt.Sprintf(apikey.APIKeyFormat, prefix, secret)
	return fullKey, prefix, HashAPIKey(fullKey), nil
}

func HashAPIKey(fullKey string) string {
	hashBytes := sha256.Sum256([]byte(fullKey))
	return fmt.Sprintf("%x", hashBytes)
}

// ParseAPIKey splits "kb_<prefix>_<secret>" and returns the prefix.
func ParseAPIKey(fullKey string) (prefix string, ok bool) {
	parts := strings.SplitN(fullKey, "_", 3)
	if len(parts) != 3 || parts[0] != apikey.APIKeyScheme || parts[1] == "" || parts[2] == "" {
		return "", false
	}
	return parts[1], true
}
