package auth

import (
	"errors"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestKeyringStore_RoundTrip(t *testing.T) {
	keyring.MockInit()
	store := NewKeyringStore("")

	if _, err := store.GetToken("ElectricityMaps"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound before set, got %v", err)
	}
	if err := store.SetToken(" ElectricityMaps ", "secret"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	got, err := store.GetToken(ProviderElectricityMaps)
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if got != "secret" {
		t.Errorf("token = %q, want %q", got, "secret")
	}
	if err := store.DeleteToken(ProviderElectricityMaps); err != nil {
		t.Fatalf("DeleteToken: %v", err)
	}
	if err := store.DeleteToken(ProviderElectricityMaps); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("second delete = %v, want ErrTokenNotFound", err)
	}
}

func TestKeyringStore_TrimsPastedKeys(t *testing.T) {
	keyring.MockInit()
	store := NewKeyringStore("")

	if err := store.SetToken(ProviderElectricityMaps, "  abc123\n"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	got, err := store.GetToken(ProviderElectricityMaps)
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if got != "abc123" {
		t.Errorf("token = %q, want %q", got, "abc123")
	}
}

func TestMockStore_NormalizesProvider(t *testing.T) {
	store := NewMockStore()
	if err := store.SetToken(" ElectricityMaps", "k"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	if got, err := store.GetToken(ProviderElectricityMaps); err != nil || got != "k" {
		t.Errorf("GetToken = (%q, %v), want (%q, nil)", got, err, "k")
	}
	if err := store.DeleteToken("ELECTRICITYMAPS"); err != nil {
		t.Fatalf("DeleteToken: %v", err)
	}
	if _, err := store.GetToken(ProviderElectricityMaps); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("expected ErrTokenNotFound after delete, got %v", err)
	}
}

type failingStore struct{ *MockStore }

func (failingStore) GetToken(string) (string, error) { return "", errors.New("keychain locked") }

func TestResolveAPIKey(t *testing.T) {
	withKey := NewMockStore()
	_ = withKey.SetToken(ProviderElectricityMaps, "from-keychain")

	tests := []struct {
		name       string
		configured string
		store      Store
		wantKey    string
		wantSource KeySource
		wantErr    bool
	}{
		{name: "config wins", configured: " from-config ", store: withKey, wantKey: "from-config", wantSource: KeySourceConfig},
		{name: "keychain fallback", store: withKey, wantKey: "from-keychain", wantSource: KeySourceKeychain},
		{name: "nothing stored", store: NewMockStore(), wantSource: KeySourceNone},
		{name: "nil store", wantSource: KeySourceNone},
		{name: "keychain error", store: failingStore{NewMockStore()}, wantSource: KeySourceNone, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, source, err := ResolveAPIKey(tt.configured, tt.store)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if key != tt.wantKey || source != tt.wantSource {
				t.Errorf("got (%q, %q), want (%q, %q)", key, source, tt.wantKey, tt.wantSource)
			}
		})
	}
}
