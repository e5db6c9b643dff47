package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// ErrMissingAPIKey is returned when no key is configured for a provider.
var ErrMissingAPIKey = errors.New("missing API key")

// apiKeysEnv names the variables holding a JSON object of keys, as injected by
// container secret managers.
var apiKeysEnv = []string{"APIKEYS", "apikeys"}

// LoadEnv loads variables from the given .env files (default ".env") without
// overriding variables already set. Missing files are ignored.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ResolveAPIKey returns the key named name, looked up first in the JSON object held by
// APIKEYS (or apikeys), then in the environment variable name itself. A malformed JSON
// object is reported only when the key is not found elsewhere.
func ResolveAPIKey(name string) (string, error) {
	var parseErr error
	for _, env := range apiKeysEnv {
		raw := os.Getenv(env)
		if raw == "" {
			continue
		}
		var keys map[string]string
		if err := json.Unmarshal([]byte(raw), &keys); err != nil {
			parseErr = fmt.Errorf("%s is not a JSON object: %w", env, err)
			continue
		}
		if v := keys[name]; v != "" {
			return v, nil
		}
	}
	if v := os.Getenv(name); v != "" {
		return v, nil
	}
	if parseErr != nil {
		return "", fmt.Errorf("%w: %s (%v)", ErrMissingAPIKey, name, parseErr)
	}
	return "", fmt.Errorf("%w: %s", ErrMissingAPIKey, name)
}

// MaskKey returns the first six characters of key followed by "...", for logging.
func MaskKey(key string) string {
	if len(key) <= 6 {
		return "***"
	}
	return key[:6] + "..."
}
