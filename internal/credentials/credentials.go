// Package credentials resolves the Home Assistant access token from the
// OS-native keyring, with fallback to an environment variable or the
// config file.
package credentials

import (
	"fmt"
	"os"
	"strings"
)

// EnvToken is the environment variable consulted before the keyring.
const EnvToken = "HOMEDASH_HUB_TOKEN"

const (
	keyringService = "homedash"
	keyringAccount = "hub-token"
)

// Source indicates where the token was retrieved from
type Source string

const (
	SourceEnvironment Source = "environment"
	SourceKeyring     Source = "keyring"
	SourceConfig      Source = "config"
	SourceNone        Source = "none"
)

// TokenInfo describes a resolved token without exposing it in displays
type TokenInfo struct {
	Source Source
	Token  string
	Found  bool
}

// Masked returns a display-safe form of the token.
func (t *TokenInfo) Masked() string {
	if !t.Found {
		return "(none)"
	}
	if len(t.Token) <= 8 {
		return "****"
	}
	return t.Token[:4] + "..." + t.Token[len(t.Token)-4:]
}

// Keyring is the interface for keyring operations
type Keyring interface {
	Set(service, account, password string) error
	Get(service, account string) (string, error)
	Delete(service, account string) error
}

// Manager handles token resolution and storage
type Manager struct {
	keyring Keyring
}

// ManagerOption is a functional option for Manager
type ManagerOption func(*Manager)

// WithKeyring sets a custom keyring implementation
func WithKeyring(k Keyring) ManagerOption {
	return func(m *Manager) {
		m.keyring = k
	}
}

// NewManager creates a new credential manager backed by the system keyring
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{keyring: &systemKeyring{}}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Resolve returns the hub token, trying the environment first, then the
// keyring, then the config file value.
func (m *Manager) Resolve(configToken string) *TokenInfo {
	if token := strings.TrimSpace(os.Getenv(EnvToken)); token != "" {
		return &TokenInfo{Source: SourceEnvironment, Token: token, Found: true}
	}

	if token, err := m.keyring.Get(keyringService, keyringAccount); err == nil && token != "" {
		return &TokenInfo{Source: SourceKeyring, Token: token, Found: true}
	}

	if configToken != "" {
		return &TokenInfo{Source: SourceConfig, Token: configToken, Found: true}
	}

	return &TokenInfo{Source: SourceNone}
}

// Store saves the hub token in the keyring
func (m *Manager) Store(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("token must not be empty")
	}
	return m.keyring.Set(keyringService, keyringAccount, token)
}

// Delete removes the hub token from the keyring
func (m *Manager) Delete() error {
	return m.keyring.Delete(keyringService, keyringAccount)
}
