package secret

import "fmt"

// Backends accepted by Open.
const (
	BackendEnv      = "env"
	BackendKeychain = "keychain"
)

// Open returns the SecretStore for a configured backend. An empty backend
// selects the environment.
func Open(backend, envPrefix, keychainService string) (SecretStore, error) {
	switch backend {
	case "", BackendEnv:
		return NewEnvStore(envPrefix), nil
	case BackendKeychain:
		return NewKeychainStore(keychainService), nil
	default:
		return nil, fmt.Errorf("unknown secrets backend %q", backend)
	}
}
