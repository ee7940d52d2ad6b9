package apikey

import (
	"time"

	"github.com/google/uuid"
)

// APIKey authenticates the chat relay calling the command API. Only the
// sha256 hash of the full key is stored.
type APIKey struct {
	ID          uuid.UUID  `json:"id"`
	KeyHash     string     `json:"key_hash"`
	Prefix      string     `json:"prefix"`
	Description string     `json:"description"`
	IsEnabled   bool       `json:"is_enabled"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
}

const (
	APIKeyPrefixLength = 8
	APIKeySecretLength = 32
	APIKeyScheme       = "kb"
	APIKeyFormat       = APIKeyScheme + "_%s_%s"
)
