package keyring

import (
	"errors"

	"github.com/lexipath/lexisync/pkg/logger"
)

// Fallback prefers the primary store and falls back to the secondary one
// when the primary is unavailable (no secret service, locked keychain).
type Fallback struct {
	primary   Store
	secondary Store
	log       logger.Logger
}

func NewFallback(primary, secondary Store, log logger.Logger) *Fallback {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Fallback{primary: primary, secondary: secondary, log: log}
}

func (f *Fallback) Get() (string, error) {
	s, err := f.primary.Get()
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrNotFound) {
		f.log.Warning("keyring: primary store unavailable, reading fallback: %v", err)
	}
	return f.secondary.Get()
}

func (f *Fallback) Set(secret string) error {
	err := f.primary.Set(secret)
	if err == nil {
		// Drop any stale copy left in the fallback.
		f.secondary.Delete()
		return nil
	}
	f.log.Warning("keyring: primary store unavailable, writing fallback: %v", err)
	return f.secondary.Set(secret)
}

// Delete removes the secret from both stores. A primary failure is only
// reported when the fallback could not be cleared either.
func (f *Fallback) Delete() error {
	perr := f.primary.Delete()
	serr := f.secondary.Delete()
	if perr != nil && serr == nil {
		f.log.Warning("keyring: primary store unavailable, cleared fallback only: %v", perr)
		return nil
	}
	return errors.Join(perr, serr)
}
