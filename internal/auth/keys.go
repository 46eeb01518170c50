// Package auth holds the app-key credential store consumed by the admission
// gate. The gate itself only sees the boolean verdict plus the app id.
package auth

import (
	"crypto/subtle"

	"rwkvd/internal/config"
)

// Keystore answers authorization checks for configured app keys.
type Keystore struct {
	secrets map[string]string
}

// NewKeystore builds a Keystore from configured credential pairs.
func NewKeystore(keys []config.AppKey) *Keystore {
	s := make(map[string]string, len(keys))
	for _, k := range keys {
		s[k.AppID] = k.SecretKey
	}
	return &Keystore{secrets: s}
}

// Empty reports whether no keys are configured. An empty keystore means the
// operator runs an open instance; the gate treats every caller as authorized.
func (k *Keystore) Empty() bool { return len(k.secrets) == 0 }

// Authorize checks the presented secret for the given app id.
// Comparison is constant-time over the secret.
func (k *Keystore) Authorize(appID, secret string) bool {
	if k.Empty() {
		return true
	}
	want, ok := k.secrets[appID]
	if !ok {
		// Burn a comparison anyway so unknown ids cost the same as bad secrets.
		subtle.ConstantTimeCompare([]byte(secret), []byte(secret))
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(secret)) == 1
}
