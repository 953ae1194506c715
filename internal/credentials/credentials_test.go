package credentials

import "testing"

func newTestManager(t *testing.T) (*Manager, *MockKeyring) {
	t.Helper()
	mk := NewMockKeyring()
	return NewManager(WithKeyring(mk)), mk
}

func TestResolveEnvironmentWinsOverKeyring(t *testing.T) {
	m, _ := newTestManager(t)
	t.Setenv(EnvToken, "env-token")
	if err := m.Store("keyring-token"); err != nil {
		t.Fatal(err)
	}

	info := m.Resolve("config-token")
	if !info.Found || info.Source != SourceEnvironment || info.Token != "env-token" {
		t.Errorf("resolved %+v, want environment token", info)
	}
}

func TestResolveKeyringWinsOverConfig(t *testing.T) {
	m, _ := newTestManager(t)
	t.Setenv(EnvToken, "")
	if err := m.Store("keyring-token"); err != nil {
		t.Fatal(err)
	}

	info := m.Resolve("config-token")
	if !info.Found || info.Source != SourceKeyring || info.Token != "keyring-token" {
		t.Errorf("resolved %+v, want keyring token", info)
	}
}

func TestResolveConfigFallback(t *testing.T) {
	m, _ := newTestManager(t)
	t.Setenv(EnvToken, "")

	info := m.Resolve("config-token")
	if !info.Found || info.Source != SourceConfig || info.Token != "config-token" {
		t.Errorf("resolved %+v, want config token", info)
	}
}

func TestResolveNone(t *testing.T) {
	m, _ := newTestManager(t)
	t.Setenv(EnvToken, "")

	info := m.Resolve("")
	if info.Found || info.Source != SourceNone {
		t.Errorf("resolved %+v, want none", info)
	}
	if got := info.Masked(); got != "(none)" {
		t.Errorf("masked = %q", got)
	}
}

func TestResolveIgnoresWhitespaceEnv(t *testing.T) {
	m, _ := newTestManager(t)
	t.Setenv(EnvToken, "   ")

	info := m.Resolve("config-token")
	if info.Source != SourceConfig {
		t.Errorf("whitespace env token should be skipped, got %v", info.Source)
	}
}

func TestStoreAndDelete(t *testing.T) {
	m, mk := newTestManager(t)
	t.Setenv(EnvToken, "")

	if err := m.Store("  secret-token  "); err != nil {
		t.Fatal(err)
	}
	got, err := mk.Get(keyringService, keyringAccount)
	if err != nil {
		t.Fatal(err)
	}
	if got != "secret-token" {
		t.Errorf("stored token = %q, want trimmed", got)
	}

	if err := m.Delete(); err != nil {
		t.Fatal(err)
	}
	if info := m.Resolve(""); info.Found {
		t.Errorf("token still resolvable after delete: %+v", info)
	}
}

func TestStoreEmptyToken(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.Store("   "); err == nil {
		t.Error("expected error storing empty token")
	}
}

func TestMasked(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"short", "****"},
		{"12345678", "****"},
		{"eyJhbGciOiJIUzI1NiJ9.longtoken", "eyJh...oken"},
	}
	for _, tt := range tests {
		info := &TokenInfo{Token: tt.token, Found: true}
		if got := info.Masked(); got != tt.want {
			t.Errorf("Masked(%q) = %q, want %q", tt.token, got, tt.want)
		}
	}
}
