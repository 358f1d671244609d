package credentials

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	return path
}

func TestResolveFromSettingsFile(t *testing.T) {
	t.Setenv(EnvBaseURL, "")
	t.Setenv(EnvAuthToken, "")
	path := writeSettings(t, `{"baseURL": "https://api.bigmodel.cn/v1", "authToken": "tok-1"}`)

	creds, ok := ResolveFrom(path)
	if !ok {
		t.Fatalf("expected credentials from settings file")
	}
	if creds.BaseURL != "https://api.bigmodel.cn/v1" || creds.AuthToken != "tok-1" {
		t.Fatalf("creds = %+v, want settings values", creds)
	}
}

func TestResolveFallsBackToEnvWhenFileMissing(t *testing.T) {
	t.Setenv(EnvBaseURL, "https://yunyi.cfd/api")
	t.Setenv(EnvAuthToken, "tok-env")

	creds, ok := ResolveFrom(filepath.Join(t.TempDir(), "missing.json"))
	if !ok {
		t.Fatalf("expected env fallback")
	}
	if creds.BaseURL != "https://yunyi.cfd/api" || creds.AuthToken != "tok-env" {
		t.Fatalf("creds = %+v, want env values", creds)
	}
}

func TestResolveFallsBackToEnvWhenFieldMissing(t *testing.T) {
	t.Setenv(EnvBaseURL, "https://env.example")
	t.Setenv(EnvAuthToken, "tok-env")
	path := writeSettings(t, `{"baseURL": "https://file.example"}`)

	creds, ok := ResolveFrom(path)
	if !ok {
		t.Fatalf("expected env fallback when authToken is missing")
	}
	if creds.BaseURL != "https://env.example" {
		t.Fatalf("baseURL = %q, want env value", creds.BaseURL)
	}
}

func TestResolveFallsBackToEnvWhenFileMalformed(t *testing.T) {
	t.Setenv(EnvBaseURL, "https://env.example")
	t.Setenv(EnvAuthToken, "tok-env")
	path := writeSettings(t, `{broken`)

	if _, ok := ResolveFrom(path); !ok {
		t.Fatalf("expected env fallback when file is malformed")
	}
}

func TestResolveAbsentEverywhere(t *testing.T) {
	t.Setenv(EnvBaseURL, "")
	t.Setenv(EnvAuthToken, "tok-env")

	if _, ok := ResolveFrom(filepath.Join(t.TempDir(), "missing.json")); ok {
		t.Fatalf("expected absence when base URL is missing everywhere")
	}
}
