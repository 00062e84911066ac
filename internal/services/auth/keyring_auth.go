package auth

import (
	"errors"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringStore keeps carbon feed API keys in the OS keychain, one entry
// per provider under the carbonq service name.
type KeyringStore struct {
	serviceName string
}

// NewKeyringStore returns a keychain store. An empty serviceName uses
// ServiceName.
func NewKeyringStore(serviceName string) *KeyringStore {
	if serviceName == "" {
		serviceName = ServiceName
	}
	return &KeyringStore{serviceName: serviceName}
}

// SetToken stores key for provider, trimmed of surrounding whitespace.
func (k *KeyringStore) SetToken(provider string, key string) error {
	return keyring.Set(k.serviceName, NormalizeProvider(provider), strings.TrimSpace(key))
}

// GetToken returns the stored key, or ErrTokenNotFound.
func (k *KeyringStore) GetToken(provider string) (string, error) {
	key, err := keyring.Get(k.serviceName, NormalizeProvider(provider))
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return "", ErrTokenNotFound
	case err != nil:
		return "", err
	}
	return strings.TrimSpace(key), nil
}

// DeleteToken removes the stored key, or reports ErrTokenNotFound.
func (k *KeyringStore) DeleteToken(provider string) error {
	err := keyring.Delete(k.serviceName, NormalizeProvider(provider))
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrTokenNotFound
	}
	return err
}
