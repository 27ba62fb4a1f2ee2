// Package keybackend provides the access key stores behind presigned share
// links.
package keybackend

import (
	"fmt"

	"github.com/sagarc03/stowgate"
)

// MapSecretStore looks keys up in memory.
type MapSecretStore struct {
	keys map[string]string
}

var _ stowgate.SecretStore = (*MapSecretStore)(nil)

func NewMapSecretStore(keys map[string]string) *MapSecretStore {
	return &MapSecretStore{keys: keys}
}

// Lookup returns the secret for accessKey. Unknown keys fail with an error
// matching both ErrKeyNotFound and stowgate.ErrUnauthorized.
func (s *MapSecretStore) Lookup(accessKey string) (string, error) {
	secretKey, found := s.keys[accessKey]
	if !found {
		return "", fmt.Errorf("%w: %w", ErrKeyNotFound, stowgate.ErrUnauthorized)
	}
	return secretKey, nil
}

// Len reports the number of keys held.
func (s *MapSecretStore) Len() int {
	return len(s.keys)
}
