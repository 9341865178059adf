// Package tokenstore keeps bearer tokens in the operating system keyring.
package tokenstore

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/tartampluch/go-friendcare/internal/config"
	"github.com/zalando/go-keyring"
)

// Class identifies which credential family a token belongs to.
type Class string

const (
	ClassKakao  Class = config.TokenClassKakao
	ClassApple  Class = config.TokenClassApple
	ClassServer Class = config.TokenClassServer
)

// Keyring stores tokens under one keyring service, one account per class and variant.
// There is no expiry tracking: a stale token is discovered when a call using it fails.
type Keyring struct {
	Service string
}

// New returns a Keyring bound to service.
func New(service string) *Keyring {
	return &Keyring{Service: service}
}

// Save writes token into the primary or refresh slot of class.
func (k *Keyring) Save(token string, class Class, refresh bool) error {
	if err := keyring.Set(k.Service, account(class, refresh), token); err != nil {
		return fmt.Errorf("%s: %w", config.ErrTokenSave, err)
	}
	return nil
}

// Get returns the stored token and whether it was present.
// Keyring failures other than "not found" are logged and reported as absent.
func (k *Keyring) Get(class Class, refresh bool) (string, bool) {
	token, err := keyring.Get(k.Service, account(class, refresh))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			slog.Debug(config.MsgTokenMissing,
				config.LogKeyComponent, config.CompTokens,
				config.LogKeyClass, string(class),
			)
		} else {
			slog.Warn(config.ErrTokenRead,
				config.LogKeyComponent, config.CompTokens,
				config.LogKeyClass, string(class),
				config.LogKeyError, err,
			)
		}
		return "", false
	}
	return token, token != ""
}

// Clear removes both variants of class. The Apple class holds a single identity
// token, so only its primary slot is removed.
func (k *Keyring) Clear(class Class) {
	k.remove(account(class, false))
	if class == ClassApple {
		return
	}
	k.remove(account(class, true))
}

// Forget removes every slot of class, the Apple refresh token included.
// It backs user-driven sign-out and account deletion.
func (k *Keyring) Forget(class Class) {
	k.remove(account(class, false))
	k.remove(account(class, true))
}

func (k *Keyring) remove(user string) {
	if err := keyring.Delete(k.Service, user); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		slog.Warn(config.ErrTokenDelete,
			config.LogKeyComponent, config.CompTokens,
			config.LogKeyKey, user,
			config.LogKeyError, err,
		)
	}
}

func account(class Class, refresh bool) string {
	if refresh {
		return string(class) + config.TokenSuffixRefresh
	}
	return string(class) + config.TokenSuffixAccess
}
