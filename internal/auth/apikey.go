package auth

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/opsdeck/platform/internal/domain"
)

// APIKey is one configured service credential: only the bcrypt hash of the
// key material is held in memory.
type APIKey struct {
	ID   string
	Role string
	Hash []byte
}

// APIKeyVerifier authenticates service-to-service callers against a static
// key set loaded from config.
type APIKeyVerifier struct {
	keys []APIKey
}

// ParseAPIKeys parses comma-separated "id:role:bcrypt-hash" entries. An empty
// spec yields a nil verifier, which MultiVerifier skips.
func ParseAPIKeys(spec string) (*APIKeyVerifier, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	var keys []APIKey
	for _, entry := range strings.Split(spec, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
			return nil, fmt.Errorf("malformed api key entry %q, want id:role:hash", entry)
		}
		keys = append(keys, APIKey{ID: parts[0], Role: parts[1], Hash: []byte(parts[2])})
	}
	return &APIKeyVerifier{keys: keys}, nil
}

// Verify compares the credential against each configured key hash.
func (v *APIKeyVerifier) Verify(_ context.Context, credential string) (domain.Identity, error) {
	for _, key := range v.keys {
		if bcrypt.CompareHashAndPassword(key.Hash, []byte(credential)) == nil {
			return domain.Identity{Subject: "service:" + key.ID, Role: key.Role}, nil
		}
	}
	return domain.Identity{}, ErrInvalidCredential
}
