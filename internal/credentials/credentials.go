// Package credentials resolves the API endpoint and token the current
// session is configured with. Resolution is best-effort: any failure at any
// stage reports absence, because quota enrichment is cosmetic and must never
// block the status line.
package credentials

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const (
	// EnvBaseURL and EnvAuthToken are consulted when the settings file does
	// not yield a usable pair.
	EnvBaseURL   = "ANTHROPIC_BASE_URL"
	EnvAuthToken = "ANTHROPIC_AUTH_TOKEN"
)

// Credentials is an (endpoint, token) pair. It is resolved fresh on every
// invocation and never persisted by this package.
type Credentials struct {
	BaseURL   string
	AuthToken string
}

type settingsFile struct {
	BaseURL   string `json:"baseURL"`
	AuthToken string `json:"authToken"`
}

// DefaultSettingsPath returns ~/.claude/settings.json, or "" when the home
// directory cannot be determined.
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".claude", "settings.json")
}

// Resolve reads credentials from the default settings file, falling back to
// the environment. The second return is false when no complete pair exists.
func Resolve() (Credentials, bool) {
	return ResolveFrom(DefaultSettingsPath())
}

// ResolveFrom is Resolve with an explicit settings path.
func ResolveFrom(path string) (Credentials, bool) {
	if creds, ok := fromSettings(path); ok {
		return creds, true
	}
	return fromEnv()
}

func fromSettings(path string) (Credentials, bool) {
	if path == "" {
		return Credentials{}, false
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, false
	}
	var settings settingsFile
	if err := json.Unmarshal(raw, &settings); err != nil {
		return Credentials{}, false
	}
	if settings.BaseURL == "" || settings.AuthToken == "" {
		return Credentials{}, false
	}
	return Credentials{BaseURL: settings.BaseURL, AuthToken: settings.AuthToken}, true
}

func fromEnv() (Credentials, bool) {
	baseURL := os.Getenv(EnvBaseURL)
	token := os.Getenv(EnvAuthToken)
	if baseURL == "" || token == "" {
		return Credentials{}, false
	}
	return Credentials{BaseURL: baseURL, AuthToken: token}, true
}
