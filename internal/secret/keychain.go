package secret

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultKeychainService is the keychain service entries are filed under.
const DefaultKeychainService = "listbind"

// runSecurity runs the macOS `security` tool. Swapped in tests.
var runSecurity = func(args ...string) ([]byte, error) {
	return exec.Command("security", args...).Output()
}

// KeychainStore implements SecretStore using the macOS Keychain
// via the `security` CLI tool.
type KeychainStore struct {
	service string
}

// NewKeychainStore creates a new KeychainStore. An empty service uses
// DefaultKeychainService.
func NewKeychainStore(service string) *KeychainStore {
	if service == "" {
		service = DefaultKeychainService
	}
	return &KeychainStore{service: service}
}

// Set stores a secret in the macOS Keychain.
// If the key already exists, it updates the value.
func (k *KeychainStore) Set(key string, value []byte) error {
	_ = k.Delete(key)

	out, err := runSecurity("add-generic-password",
		"-a", key,
		"-s", k.service,
		"-w", string(value),
		"-U", // update if exists
	)
	if err != nil {
		return fmt.Errorf("keychain set: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

// Get retrieves a secret from the macOS Keychain.
// Returns empty slice and nil error if the key doesn't exist.
func (k *KeychainStore) Get(key string) ([]byte, error) {
	if key == "" {
		return []byte{}, nil
	}
	out, err := runSecurity("find-generic-password",
		"-a", key,
		"-s", k.service,
		"-w", // output only the password
	)
	if err != nil {
		// "security" exits 44 when the item is not found
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 44 {
			return []byte{}, nil
		}
		return nil, fmt.Errorf("keychain get %s: %w", key, err)
	}
	return []byte(strings.TrimSpace(string(out))), nil
}

// Delete removes a secret from the macOS Keychain. Missing items are not an error.
func (k *KeychainStore) Delete(key string) error {
	_, _ = runSecurity("delete-generic-password",
		"-a", key,
		"-s", k.service,
	)
	return nil
}
