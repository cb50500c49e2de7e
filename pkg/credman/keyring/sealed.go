package keyring

import (
	"encoding/base64"
	"fmt"

	"github.com/lexipath/lexisync/pkg/credman/encryption"
)

// Sealed encrypts the secret before handing it to the wrapped store. It is
// used around the file fallback so the token never sits on disk in clear.
type Sealed struct {
	inner Store
	key   []byte
}

func NewSealed(inner Store, key []byte) *Sealed {
	return &Sealed{inner: inner, key: key}
}

func (s *Sealed) Get() (string, error) {
	enc, err := s.inner.Get()
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", fmt.Errorf("keyring: sealed secret is not base64: %w", err)
	}
	return encryption.Open(raw, s.key)
}

func (s *Sealed) Set(secret string) error {
	raw, err := encryption.Seal(secret, s.key)
	if err != nil {
		return err
	}
	return s.inner.Set(base64.StdEncoding.EncodeToString(raw))
}

func (s *Sealed) Delete() error {
	return s.inner.Delete()
}
