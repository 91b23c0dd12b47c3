package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"sort"
	"sync"
)

type entry struct {
	key  Key
	hash [sha256.Size]byte
}

// Validator validates API keys against a configured set. Keys are indexed by
// their SHA-256 digest so raw secrets are not used as map keys.
type Validator struct {
	mu   sync.RWMutex
	keys map[string]entry
}

// NewValidator returns a validator holding keys. Keys with an empty secret
// are ignored.
func NewValidator(keys []Key) *Validator {
	v := &Validator{keys: make(map[string]entry, len(keys))}
	for _, k := range keys {
		v.Add(k)
	}
	return v
}

func digest(secret string) ([sha256.Size]byte, string) {
	sum := sha256.Sum256([]byte(secret))
	return sum, hex.EncodeToString(sum[:])
}

// Validate returns the key matching secret.
func (v *Validator) Validate(secret string) (Key, error) {
	if secret == "" {
		return Key{}, ErrMissingKey
	}
	sum, id := digest(secret)

	v.mu.RLock()
	e, ok := v.keys[id]
	v.mu.RUnlock()

	if !ok || subtle.ConstantTimeCompare(e.hash[:], sum[:]) != 1 {
		return Key{}, ErrInvalidKey
	}
	if !e.key.Enabled {
		return Key{}, ErrKeyDisabled
	}
	return e.key, nil
}

// Add registers or replaces a key.
func (v *Validator) Add(k Key) {
	if k.Secret == "" {
		return
	}
	sum, id := digest(k.Secret)

	v.mu.Lock()
	v.keys[id] = entry{key: k, hash: sum}
	v.mu.Unlock()
}

// Remove drops the key with the given secret.
func (v *Validator) Remove(secret string) {
	_, id := digest(secret)

	v.mu.Lock()
	delete(v.keys, id)
	v.mu.Unlock()
}

// Admins returns the administrators with an enabled key, sorted.
func (v *Validator) Admins() []string {
	v.mu.RLock()
	seen := make(map[string]bool, len(v.keys))
	for _, e := range v.keys {
		if e.key.Enabled {
			seen[e.key.Admin] = true
		}
	}
	v.mu.RUnlock()

	admins := make([]string, 0, len(seen))
	for a := range seen {
		admins = append(admins, a)
	}
	sort.Strings(admins)
	return admins
}

// Len returns the number of configured keys.
func (v *Validator) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.keys)
}
