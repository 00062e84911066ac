// Package auth stores carbon feed credentials in the OS keychain.
package auth

import (
	"errors"
	"strings"

	"nathanbeddoewebdev/carbonq/internal/util"
)

const ServiceName = "carbonq"

// ProviderElectricityMaps is the keychain entry for the Electricity Maps key.
const ProviderElectricityMaps = "electricitymaps"

var ErrTokenNotFound = errors.New("auth token not found")

type Store interface {
	SetToken(provider string, token string) error
	GetToken(provider string) (string, error)
	DeleteToken(provider string) error
}

// DefaultStore returns the standard auth store backed by the OS keychain.
func DefaultStore() Store {
	return NewKeyringStore(ServiceName)
}

// NormalizeProvider normalizes a provider name for consistent key lookup.
func NormalizeProvider(provider string) string {
	return util.NormalizeKey(provider)
}

// KeySource reports where a resolved API key came from.
type KeySource string

const (
	KeySourceConfig   KeySource = "config"
	KeySourceKeychain KeySource = "keychain"
	KeySourceNone     KeySource = "none"
)

// ResolveAPIKey prefers an explicit configured key and falls back to the
// keychain. A missing key is not an error: the engine then runs on the
// historical model alone.
func ResolveAPIKey(configured string, store Store) (string, KeySource, error) {
	if key := strings.TrimSpace(configured); key != "" {
		return key, KeySourceConfig, nil
	}
	if store == nil {
		return "", KeySourceNone, nil
	}
	key, err := store.GetToken(ProviderElectricityMaps)
	switch {
	case err == nil && key != "":
		return key, KeySourceKeychain, nil
	case err == nil, errors.Is(err, ErrTokenNotFound):
		return "", KeySourceNone, nil
	default:
		return "", KeySourceNone, err
	}
}
