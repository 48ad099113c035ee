package secret

import (
	"os"
	"sync"
)

// SecretStore provides a pluggable interface for sensitive data such as
// external source passwords.
type SecretStore interface {
	// Set stores a secret value under the given key.
	Set(key string, value []byte) error

	// Get retrieves the secret value for the given key.
	// Returns empty slice and nil error if key does not exist.
	Get(key string) ([]byte, error)

	// Delete removes the secret for the given key.
	Delete(key string) error
}

// EnvStore resolves secrets from environment variables. Values set at runtime
// shadow the environment for the life of the process.
type EnvStore struct {
	prefix string

	mu      sync.RWMutex
	overlay map[string][]byte
	deleted map[string]bool
}

// NewEnvStore creates an EnvStore. Keys are looked up as prefix+key.
func NewEnvStore(prefix string) *EnvStore {
	return &EnvStore{prefix: prefix, overlay: map[string][]byte{}, deleted: map[string]bool{}}
}

func (s *EnvStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlay[key] = append([]byte(nil), value...)
	delete(s.deleted, key)
	return nil
}

func (s *EnvStore) Get(key string) ([]byte, error) {
	if key == "" {
		return []byte{}, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.overlay[key]; ok {
		return append([]byte(nil), v...), nil
	}
	if s.deleted[key] {
		return []byte{}, nil
	}
	return []byte(os.Getenv(s.prefix + key)), nil
}

func (s *EnvStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overlay, key)
	s.deleted[key] = true
	return nil
}
