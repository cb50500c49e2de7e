// Package keyring stores a single secret, such as the owner's ID token, in the
// operating system keyring with a file fallback for headless hosts.
package keyring

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// ErrNotFound is returned by Get when no secret is stored.
var ErrNotFound = errors.New("keyring: secret not found")

// Store holds one secret.
type Store interface {
	Get() (string, error)
	Set(secret string) error
	Delete() error
}

// Keyring keeps the secret under (Service, User) in the OS keyring.
type Keyring struct {
	Service string
	User    string
}

var (
	keyringSet    = keyring.Set
	keyringGet    = keyring.Get
	keyringDelete = keyring.Delete
)

func NewKeyring(service, user string) *Keyring {
	return &Keyring{Service: service, User: user}
}

func (k *Keyring) Get() (string, error) {
	s, err := keyringGet(k.Service, k.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return s, err
}

func (k *Keyring) Set(secret string) error {
	return keyringSet(k.Service, k.User, secret)
}

// Delete removes the secret. Deleting an absent secret is not an error.
func (k *Keyring) Delete() error {
	err := keyringDelete(k.Service, k.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
