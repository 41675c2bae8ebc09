// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Drover Contributors

// Package secrets resolves the API credential drover needs at startup.
// Precedence: environment variable, then explicit config value, then the
// OS keyring.
package secrets

import (
	"errors"
	"os"

	droverr "github.com/drover-dev/drover/pkg/errors"
	"github.com/zalando/go-keyring"
)

const (
	// EnvAPIKey is the environment variable checked first.
	EnvAPIKey = "ANTHROPIC_API_KEY"

	// KeyringService and KeyringKey locate the credential in the OS
	// keyring (Keychain on macOS, secret-service on Linux, Credential
	// Manager on Windows).
	KeyringService = "drover"
	KeyringKey     = "anthropic_api_key"
)

// keyringGet is swapped in tests; the real implementation hits the OS
// keyring via zalando/go-keyring.
var keyringGet = keyring.Get

// ResolveAPIKey returns the API credential from the first source that has
// one: the environment, the supplied config value, or the OS keyring. A
// missing credential everywhere is a startup-fatal condition for callers.
func ResolveAPIKey(configValue string) (string, error) {
	if v := os.Getenv(EnvAPIKey); v != "" {
		return v, nil
	}

	if configValue != "" {
		return configValue, nil
	}

	v, err := keyringGet(KeyringService, KeyringKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", droverr.Errorf(droverr.CodeSecretNotFound,
				"no API key found: set %s, configure anthropic.api_key, or store it in the OS keyring (%s/%s)",
				EnvAPIKey, KeyringService, KeyringKey)
		}
		return "", droverr.Wrapf(err, droverr.CodeSecretStoreFailure,
			"reading API key from OS keyring %s/%s", KeyringService, KeyringKey)
	}
	if v == "" {
		return "", droverr.Errorf(droverr.CodeSecretNotFound,
			"OS keyring entry %s/%s is empty", KeyringService, KeyringKey)
	}

	return v, nil
}

// StoreAPIKey saves the credential to the OS keyring for later runs.
func StoreAPIKey(value string) error {
	if value == "" {
		return droverr.New(droverr.CodeSecretInvalidInput, "API key must not be empty")
	}
	if err := keyring.Set(KeyringService, KeyringKey, value); err != nil {
		return droverr.Wrapf(err, droverr.CodeSecretStoreFailure,
			"storing API key in OS keyring %s/%s", KeyringService, KeyringKey)
	}
	return nil
}
